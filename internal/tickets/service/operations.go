package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JhonAQ/te-toca-web-sub000/internal/apperror"
	"github.com/JhonAQ/te-toca-web-sub000/internal/metrics"
	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
	ticketdb "github.com/JhonAQ/te-toca-web-sub000/internal/tickets/db"
	"github.com/JhonAQ/te-toca-web-sub000/internal/tickets/lifecycle"
	"github.com/JhonAQ/te-toca-web-sub000/internal/utils"
)

// callNextRetries bounds how often CallNext retries when another operator
// called the same head ticket first.
const callNextRetries = 3

// mutation applies an operation's side fields to a copy of the ticket. The
// status itself is set by transition.
type mutation func(t *models.Ticket, worker *models.Worker, now time.Time) error

// transition runs one lifecycle operation: resolve, authorize, guard, write.
// Nothing is written when any step fails.
func (s *TicketService) transition(ctx context.Context, ticket *models.Ticket, worker *models.Worker, action models.Action, mutate mutation) (*models.Ticket, error) {
	to, err := lifecycle.Check(action, ticket.Status)
	if err != nil {
		return nil, err
	}

	now := s.now()
	next := *ticket
	if mutate != nil {
		if err := mutate(&next, worker, now); err != nil {
			return nil, err
		}
	}
	next.Status = to
	next.UpdatedAt = now

	if err := s.DB.UpdateTicket(ctx, &next, ticket.Status); err != nil {
		if errors.Is(err, ticketdb.ErrStaleTicket) {
			current, getErr := s.DB.GetTicketByID(ctx, ticket.ID)
			if getErr != nil {
				return nil, apperror.Internal(getErr)
			}
			return nil, apperror.InvalidTransition(string(current.Status), string(action))
		}
		return nil, apperror.Internal(fmt.Errorf("update ticket %s: %w", ticket.ID, err))
	}
	return &next, nil
}

// operate is transition for operator actions.
func (s *TicketService) operate(ctx context.Context, workerID, ref string, action models.Action, mutate mutation) (*models.Ticket, error) {
	ticket, err := s.GetTicket(ctx, ref)
	if err != nil {
		return nil, err
	}
	worker, err := s.Workers.AuthorizeTicketAction(ctx, workerID, ticket, action)
	if err != nil {
		metrics.ObserveTransition(string(action), err)
		return nil, err
	}

	updated, err := s.transition(ctx, ticket, worker, action, mutate)
	metrics.ObserveTransition(string(action), err)
	if err != nil {
		return nil, err
	}
	s.Logger.LogTicket(string(action), updated.Number, fmt.Sprintf("%s -> %s by worker %s", ticket.Status, updated.Status, worker.ID))
	return updated, nil
}

func requireOwner(t *models.Ticket, w *models.Worker) error {
	if t.ProcessedByID != w.ID {
		return apperror.Forbidden("ticket %s is being handled by another worker", t.Number)
	}
	return nil
}

// Call moves a waiting ticket to called and assigns it to the worker.
func (s *TicketService) Call(ctx context.Context, workerID, ref string) (*models.Ticket, error) {
	ticket, err := s.operate(ctx, workerID, ref, models.ActionCall, func(t *models.Ticket, w *models.Worker, now time.Time) error {
		t.CalledAt = &now
		t.ProcessedByID = w.ID
		t.Position = 0
		t.EstimatedWaitTime = 0
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.Workers.SetCurrentQueue(ctx, workerID, ticket.QueueID); err != nil {
		s.Logger.Warn("TICKET", fmt.Sprintf("failed to set current queue for worker %s: %v", workerID, err))
	}
	s.Notifier.TicketCalled(ctx, ticket)
	s.announce(ctx, ticket)
	return ticket, nil
}

// CallNext calls the head of the queue. It returns NotFound when nobody is waiting.
func (s *TicketService) CallNext(ctx context.Context, workerID, queueID string) (*models.Ticket, error) {
	for i := 0; i < callNextRetries; i++ {
		head, err := s.GetNextTicketInQueue(ctx, workerID, queueID)
		if err != nil {
			return nil, err
		}
		if head == nil {
			return nil, apperror.NotFound("waiting ticket in queue", queueID)
		}
		ticket, err := s.Call(ctx, workerID, head.ID)
		if errors.Is(err, apperror.ErrInvalidStateTransition) {
			continue
		}
		return ticket, err
	}
	return nil, apperror.InvalidTransition(string(models.StatusCalled), string(models.ActionCall))
}

// Start begins attending a called ticket, or takes a paused one straight back into service.
func (s *TicketService) Start(ctx context.Context, workerID, ref string) (*models.Ticket, error) {
	ticket, err := s.operate(ctx, workerID, ref, models.ActionStart, func(t *models.Ticket, w *models.Worker, now time.Time) error {
		if t.ProcessedByID != "" && t.ProcessedByID != w.ID {
			return requireOwner(t, w)
		}
		t.ProcessedByID = w.ID
		if t.CalledAt == nil {
			t.CalledAt = &now
		}
		if t.Status == models.StatusPaused {
			t.ResumedAt = &now
			t.Reason = ""
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.announce(ctx, ticket)
	return ticket, nil
}

// Finish completes a ticket owned by the worker and records its timings.
func (s *TicketService) Finish(ctx context.Context, workerID, ref, notes string) (*models.Ticket, error) {
	ticket, err := s.operate(ctx, workerID, ref, models.ActionFinish, func(t *models.Ticket, w *models.Worker, now time.Time) error {
		if err := requireOwner(t, w); err != nil {
			return err
		}
		t.ServiceTime = utils.MinutesBetween(serviceStart(t), now)
		t.ActualWaitTime = utils.MinutesBetween(t.CreatedAt, now)
		t.CompletedAt = &now
		if notes != "" {
			t.Notes = notes
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The ticket is already completed; stale statistics are logged, not returned.
	queue, err := s.Queues.GetQueue(ctx, ticket.QueueID)
	if err == nil {
		err = s.Queues.RecordCompletion(ctx, queue, *ticket.CompletedAt)
	}
	if err != nil {
		s.Logger.Error("QUEUE", fmt.Sprintf("failed to refresh statistics for queue %s: %v", ticket.QueueID, err))
	}
	s.announce(ctx, ticket)
	return ticket, nil
}

// serviceStart is when attention began: the call, else the return from the
// skipped list, else issue time.
func serviceStart(t *models.Ticket) time.Time {
	if t.CalledAt != nil {
		return *t.CalledAt
	}
	if t.ResumedAt != nil {
		return *t.ResumedAt
	}
	return t.CreatedAt
}

func (s *TicketService) Skip(ctx context.Context, workerID, ref, reason string) (*models.Ticket, error) {
	ticket, err := s.operate(ctx, workerID, ref, models.ActionSkip, func(t *models.Ticket, _ *models.Worker, now time.Time) error {
		t.SkippedAt = &now
		t.Reason = reason
		t.Position = 0
		t.EstimatedWaitTime = 0
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.announce(ctx, ticket)
	return ticket, nil
}

type CancelInput struct {
	ByUserID   string
	ByWorkerID string
	Reason     string
}

// Cancel ends a ticket on behalf of its owner or of an authorized worker.
func (s *TicketService) Cancel(ctx context.Context, ref string, in CancelInput) (*models.Ticket, error) {
	cancel := func(t *models.Ticket, _ *models.Worker, now time.Time) error {
		t.CancelledAt = &now
		t.Reason = in.Reason
		t.Position = 0
		t.EstimatedWaitTime = 0
		return nil
	}

	var (
		ticket *models.Ticket
		err    error
	)
	switch {
	case in.ByWorkerID != "":
		ticket, err = s.operate(ctx, in.ByWorkerID, ref, models.ActionCancel, cancel)
	case in.ByUserID != "":
		ticket, err = s.cancelByUser(ctx, in.ByUserID, ref, cancel)
	default:
		return nil, apperror.Validation("cancel requires a user or a worker")
	}
	if err != nil {
		return nil, err
	}
	s.announce(ctx, ticket)
	return ticket, nil
}

func (s *TicketService) cancelByUser(ctx context.Context, userID, ref string, cancel mutation) (*models.Ticket, error) {
	ticket, err := s.GetTicket(ctx, ref)
	if err != nil {
		return nil, err
	}
	if ticket.UserID == "" || ticket.UserID != userID {
		s.Logger.LogSecurity("CANCEL_DENIED", fmt.Sprintf("user %s tried to cancel ticket %s", userID, ticket.Number))
		return nil, apperror.Forbidden("ticket %s does not belong to the caller", ticket.Number)
	}
	updated, err := s.transition(ctx, ticket, nil, models.ActionCancel, cancel)
	metrics.ObserveTransition(string(models.ActionCancel), err)
	if err != nil {
		return nil, err
	}
	s.Logger.LogTicket("cancel", updated.Number, fmt.Sprintf("%s -> cancelled by user %s", ticket.Status, userID))
	return updated, nil
}

func (s *TicketService) Pause(ctx context.Context, workerID, ref, reason string) (*models.Ticket, error) {
	ticket, err := s.operate(ctx, workerID, ref, models.ActionPause, func(t *models.Ticket, _ *models.Worker, now time.Time) error {
		t.PausedAt = &now
		t.Reason = reason
		t.Position = 0
		t.EstimatedWaitTime = 0
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.announce(ctx, ticket)
	return ticket, nil
}

// Resume puts a paused ticket back at the end of the current waiting line.
func (s *TicketService) Resume(ctx context.Context, workerID, ref string) (*models.Ticket, error) {
	current, err := s.GetTicket(ctx, ref)
	if err != nil {
		return nil, err
	}
	queue, err := s.Queues.GetQueue(ctx, current.QueueID)
	if err != nil {
		return nil, err
	}

	if s.Locker != nil {
		owner := utils.GenerateID()
		if err := s.Locker.LockQueue(ctx, queue.ID, owner); err != nil {
			return nil, apperror.Internal(err)
		}
		defer func() {
			if err := s.Locker.UnlockQueue(context.Background(), queue.ID, owner); err != nil {
				s.Logger.Warn("REDIS", fmt.Sprintf("failed to unlock queue %s: %v", queue.ID, err))
			}
		}()
	}

	ticket, err := s.operate(ctx, workerID, current.ID, models.ActionResume, func(t *models.Ticket, _ *models.Worker, now time.Time) error {
		waiting, err := s.DB.CountByStatus(ctx, t.QueueID, models.StatusWaiting)
		if err != nil {
			return apperror.Internal(fmt.Errorf("count waiting tickets: %w", err))
		}
		t.Position = waiting + 1
		t.EstimatedWaitTime = queue.EstimatedWait(t.Position)
		t.Reason = ""
		t.ResumedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.announce(ctx, ticket)
	return ticket, nil
}

// SelectSkipped brings a skipped ticket straight into service with the worker.
func (s *TicketService) SelectSkipped(ctx context.Context, workerID, ref string) (*models.Ticket, error) {
	ticket, err := s.operate(ctx, workerID, ref, models.ActionSelectSkipped, func(t *models.Ticket, w *models.Worker, now time.Time) error {
		t.ResumedAt = &now
		t.ProcessedByID = w.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.Workers.SetCurrentQueue(ctx, workerID, ticket.QueueID); err != nil {
		s.Logger.Warn("TICKET", fmt.Sprintf("failed to set current queue for worker %s: %v", workerID, err))
	}
	s.Notifier.TicketCalled(ctx, ticket)
	s.announce(ctx, ticket)
	return ticket, nil
}

// GetNextTicketInQueue returns the ticket that would be called next, or nil
// when the queue is empty. It does not change any ticket.
func (s *TicketService) GetNextTicketInQueue(ctx context.Context, workerID, queueID string) (*models.Ticket, error) {
	if err := s.authorizeQueue(ctx, workerID, queueID, models.ActionView); err != nil {
		return nil, err
	}
	next, err := s.DB.NextWaiting(ctx, queueID)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("select next ticket: %w", err))
	}
	return next, nil
}

// ListSkipped returns the queue's skipped tickets in serving order.
func (s *TicketService) ListSkipped(ctx context.Context, workerID, queueID string) ([]models.Ticket, error) {
	if err := s.authorizeQueue(ctx, workerID, queueID, models.ActionView); err != nil {
		return nil, err
	}
	list, err := s.DB.ListByStatus(ctx, queueID, models.StatusSkipped)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("list skipped tickets: %w", err))
	}
	return list, nil
}

func (s *TicketService) authorizeQueue(ctx context.Context, workerID, queueID string, action models.Action) error {
	_, err := s.QueueForWorker(ctx, workerID, queueID, action)
	return err
}

// QueueForWorker loads a queue the worker may perform action on.
func (s *TicketService) QueueForWorker(ctx context.Context, workerID, queueID string, action models.Action) (*models.Queue, error) {
	if queueID == "" {
		return nil, apperror.Validation("queueId is required")
	}
	queue, err := s.Queues.GetQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Workers.AuthorizeQueue(ctx, workerID, queue, action); err != nil {
		return nil, err
	}
	return queue, nil
}

// announce tells the new head of the queue it is next and publishes the
// waiting count. Failures only affect notifications.
func (s *TicketService) announce(ctx context.Context, ticket *models.Ticket) {
	head, err := s.DB.NextWaiting(ctx, ticket.QueueID)
	if err != nil {
		s.Logger.Warn("TICKET", fmt.Sprintf("failed to load head of queue %s: %v", ticket.QueueID, err))
	} else if head != nil {
		s.Notifier.TicketReady(ctx, head)
	}

	waiting, err := s.DB.CountByStatus(ctx, ticket.QueueID, models.StatusWaiting)
	if err != nil {
		s.Logger.Warn("TICKET", fmt.Sprintf("failed to count queue %s: %v", ticket.QueueID, err))
		return
	}
	s.Notifier.QueueUpdated(ctx, ticket.TenantID, ticket.QueueID, waiting)
}
