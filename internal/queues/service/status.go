package queues

import (
	"context"
	"fmt"

	"github.com/JhonAQ/te-toca-web-sub000/internal/apperror"
	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
)

// QueueStatus is the public summary shown on display boards.
type QueueStatus struct {
	QueueID             string `json:"queueId"`
	Name                string `json:"name"`
	IsActive            bool   `json:"isActive"`
	WaitingCount        int    `json:"waitingCount"`
	CalledCount         int    `json:"calledCount"`
	InProgressCount     int    `json:"inProgressCount"`
	AverageServiceTime  int    `json:"averageServiceTime"`
	EstimatedWaitForNew int    `json:"estimatedWaitForNew"`
	TotalProcessedToday int    `json:"totalProcessedToday"`
	NowServing          string `json:"nowServing,omitempty"`
}

// WaitingEntry is a waiting ticket with its live position and ETA.
type WaitingEntry struct {
	models.Ticket
	LivePosition int `json:"livePosition"`
	LiveETA      int `json:"liveEstimatedWaitTime"`
}

// QueueDetails is the operator view of a queue.
type QueueDetails struct {
	Status     QueueStatus     `json:"status"`
	Waiting    []WaitingEntry  `json:"waiting"`
	Called     []models.Ticket `json:"called"`
	InProgress []models.Ticket `json:"inProgress"`
	Paused     []models.Ticket `json:"paused"`
	Skipped    []models.Ticket `json:"skipped"`
}

func (s *QueueService) Status(ctx context.Context, queueID string) (*QueueStatus, error) {
	queue, err := s.GetQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}
	return s.status(ctx, queue)
}

func (s *QueueService) status(ctx context.Context, queue *models.Queue) (*QueueStatus, error) {
	counts := map[models.TicketStatus]int{}
	for _, st := range []models.TicketStatus{models.StatusWaiting, models.StatusCalled, models.StatusInProgress} {
		n, err := s.Tickets.CountByStatus(ctx, queue.ID, st)
		if err != nil {
			return nil, apperror.Internal(fmt.Errorf("count %s tickets: %w", st, err))
		}
		counts[st] = n
	}

	status := &QueueStatus{
		QueueID:             queue.ID,
		Name:                queue.Name,
		IsActive:            queue.IsActive,
		WaitingCount:        counts[models.StatusWaiting],
		CalledCount:         counts[models.StatusCalled],
		InProgressCount:     counts[models.StatusInProgress],
		AverageServiceTime:  queue.AverageServiceTime,
		EstimatedWaitForNew: queue.EstimatedWait(counts[models.StatusWaiting] + 1),
		TotalProcessedToday: queue.TotalProcessedToday,
	}

	called, err := s.Tickets.ListByStatus(ctx, queue.ID, models.StatusCalled)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("list called tickets: %w", err))
	}
	if last := latestCalled(called); last != nil {
		status.NowServing = last.Number
	}
	return status, nil
}

func latestCalled(tickets []models.Ticket) *models.Ticket {
	var last *models.Ticket
	for i := range tickets {
		t := &tickets[i]
		if t.CalledAt == nil {
			continue
		}
		if last == nil || t.CalledAt.After(*last.CalledAt) {
			last = t
		}
	}
	return last
}

// Details lists every open ticket of the queue grouped by status.
func (s *QueueService) Details(ctx context.Context, queue *models.Queue) (*QueueDetails, error) {
	status, err := s.status(ctx, queue)
	if err != nil {
		return nil, err
	}
	open, err := s.Tickets.ListByStatus(ctx, queue.ID,
		models.StatusWaiting, models.StatusCalled, models.StatusInProgress, models.StatusPaused, models.StatusSkipped)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("list open tickets: %w", err))
	}

	details := &QueueDetails{
		Status:     *status,
		Waiting:    []WaitingEntry{},
		Called:     []models.Ticket{},
		InProgress: []models.Ticket{},
		Paused:     []models.Ticket{},
		Skipped:    []models.Ticket{},
	}
	for _, t := range open {
		switch t.Status {
		case models.StatusWaiting:
			pos := len(details.Waiting) + 1
			details.Waiting = append(details.Waiting, WaitingEntry{Ticket: t, LivePosition: pos, LiveETA: queue.EstimatedWait(pos)})
		case models.StatusCalled:
			details.Called = append(details.Called, t)
		case models.StatusInProgress:
			details.InProgress = append(details.InProgress, t)
		case models.StatusPaused:
			details.Paused = append(details.Paused, t)
		case models.StatusSkipped:
			details.Skipped = append(details.Skipped, t)
		}
	}
	return details, nil
}

// LivePosition returns a waiting ticket's current rank and ETA. Tickets that
// are not waiting have position 0.
func (s *QueueService) LivePosition(ctx context.Context, ticket *models.Ticket) (int, int, error) {
	if ticket.Status != models.StatusWaiting {
		return 0, 0, nil
	}
	queue, err := s.GetQueue(ctx, ticket.QueueID)
	if err != nil {
		return 0, 0, err
	}
	waiting, err := s.Tickets.ListByStatus(ctx, ticket.QueueID, models.StatusWaiting)
	if err != nil {
		return 0, 0, apperror.Internal(fmt.Errorf("list waiting tickets: %w", err))
	}
	for i, t := range waiting {
		if t.ID == ticket.ID {
			return i + 1, queue.EstimatedWait(i + 1), nil
		}
	}
	return ticket.Position, ticket.EstimatedWaitTime, nil
}
