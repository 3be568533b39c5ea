package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/JhonAQ/te-toca-web-sub000/internal/apperror"
	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
	"github.com/JhonAQ/te-toca-web-sub000/internal/utils"
)

// QueueLookup resolves a queue within the caller's tenant.
type QueueLookup interface {
	GetTenantQueue(ctx context.Context, tenantID, queueID string) (*models.Queue, error)
}

// HistoryReader reads processed-ticket history.
type HistoryReader interface {
	DailyHistory(ctx context.Context, queueID string, from, to time.Time) ([]models.QueueDailyCount, error)
	TotalIssued(ctx context.Context, queueID string) (int, error)
}

// StatusCounter counts a queue's tickets per status.
type StatusCounter interface {
	CountByQueueGrouped(ctx context.Context, queueID string) (map[models.TicketStatus]int, error)
}

// Service handles analytics operations
type Service struct {
	Queues   QueueLookup
	History  HistoryReader
	Tickets  StatusCounter
	Location *time.Location
	Now      func() time.Time
}

func NewService(queues QueueLookup, history HistoryReader, tickets StatusCounter, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{Queues: queues, History: history, Tickets: tickets, Location: loc, Now: time.Now}
}

// QueueAnalytics is the admin report for one queue over a date range.
type QueueAnalytics struct {
	QueueID             string                      `json:"queueId"`
	Name                string                      `json:"name"`
	From                string                      `json:"from"`
	To                  string                      `json:"to"`
	TotalIssued         int                         `json:"totalIssued"`
	TotalProcessed      int                         `json:"totalProcessed"`
	AverageServiceTime  int                         `json:"averageServiceTime"`
	TotalProcessedToday int                         `json:"totalProcessedToday"`
	ByStatus            map[models.TicketStatus]int `json:"byStatus"`
	Daily               []DailyProcessed            `json:"daily"`
	BusiestDay          *DailyProcessed             `json:"busiestDay,omitempty"`
}

// DailyProcessed contains metrics for a single day
type DailyProcessed struct {
	Date      string `json:"date"`
	Processed int    `json:"processed"`
}

// DefaultRange returns the last seven local days, today included.
func (s *Service) DefaultRange() (time.Time, time.Time) {
	to := utils.NextMidnight(s.Now(), s.Location)
	return to.AddDate(0, 0, -7), to
}

// QueueReport builds the report for [from, to). Both bounds are local midnights.
func (s *Service) QueueReport(ctx context.Context, tenantID, queueID string, from, to time.Time) (*QueueAnalytics, error) {
	queue, err := s.Queues.GetTenantQueue(ctx, tenantID, queueID)
	if err != nil {
		return nil, err
	}

	history, err := s.History.DailyHistory(ctx, queue.ID, from, to)
	if err != nil {
		return nil, err
	}
	issued, err := s.History.TotalIssued(ctx, queue.ID)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.Tickets.CountByQueueGrouped(ctx, queue.ID)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("count tickets by status for queue %s: %w", queue.ID, err))
	}

	report := &QueueAnalytics{
		QueueID:             queue.ID,
		Name:                queue.Name,
		From:                from.Format("2006-01-02"),
		To:                  to.Format("2006-01-02"),
		TotalIssued:         issued,
		AverageServiceTime:  queue.AverageServiceTime,
		TotalProcessedToday: queue.TotalProcessedToday,
		ByStatus:            byStatus,
		Daily:               make([]DailyProcessed, 0, len(history)),
	}
	for _, day := range history {
		entry := DailyProcessed{Date: day.Date.In(s.Location).Format("2006-01-02"), Processed: day.Processed}
		report.Daily = append(report.Daily, entry)
		report.TotalProcessed += day.Processed
		if day.Processed > 0 && (report.BusiestDay == nil || day.Processed > report.BusiestDay.Processed) {
			busiest := entry
			report.BusiestDay = &busiest
		}
	}
	return report, nil
}
