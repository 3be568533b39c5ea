package tickets

import (
	"context"
	"fmt"
	"time"

	"github.com/JhonAQ/te-toca-web-sub000/internal/apperror"
	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
)

// TicketCountDBLayer represents the interface for processed-ticket history
type TicketCountDBLayer interface {
	GetDailyCounts(ctx context.Context, queueID string, from, to time.Time) ([]models.QueueDailyCount, error)
	GetTotalTicketsCount(ctx context.Context, queueID string) (int, error)
}

// TicketCountService reads the per-day processed history of a queue.
type TicketCountService struct {
	DB TicketCountDBLayer
}

// maxHistoryDays caps a history request.
const maxHistoryDays = 366

// DailyHistory returns one entry per day in [from, to), with zero for days
// on which nothing was processed. from and to must be local midnights.
func (s *TicketCountService) DailyHistory(ctx context.Context, queueID string, from, to time.Time) ([]models.QueueDailyCount, error) {
	if !to.After(from) {
		return nil, apperror.Validation("to must be after from")
	}
	if to.Sub(from) > maxHistoryDays*24*time.Hour {
		return nil, apperror.Validation("history is limited to %d days", maxHistoryDays)
	}

	rows, err := s.DB.GetDailyCounts(ctx, queueID, from, to)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load daily counts for queue %s: %w", queueID, err))
	}
	byDay := make(map[string]models.QueueDailyCount, len(rows))
	for _, r := range rows {
		byDay[r.Date.In(from.Location()).Format("2006-01-02")] = r
	}

	var out []models.QueueDailyCount
	for day := from; day.Before(to); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		if r, ok := byDay[key]; ok {
			r.Date = day
			out = append(out, r)
			continue
		}
		out = append(out, models.QueueDailyCount{QueueID: queueID, Date: day})
	}
	return out, nil
}

// TotalIssued returns the number of tickets ever issued in a queue.
func (s *TicketCountService) TotalIssued(ctx context.Context, queueID string) (int, error) {
	n, err := s.DB.GetTotalTicketsCount(ctx, queueID)
	if err != nil {
		return 0, apperror.Internal(fmt.Errorf("count tickets for queue %s: %w", queueID, err))
	}
	return n, nil
}
