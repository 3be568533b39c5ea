package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
)

// IncrementProcessedCount adds one completed ticket to the queue's history
// row for day. day must already be truncated to local midnight.
func (d *DB) IncrementProcessedCount(ctx context.Context, queueID, tenantID string, day time.Time) error {
	var existing models.QueueDailyCount
	err := d.Bun.NewSelect().
		Model(&existing).
		Where("queue_id = ?", queueID).
		Where("date = ?", day).
		Limit(1).
		Scan(ctx)

	if errors.Is(err, sql.ErrNoRows) {
		row := models.QueueDailyCount{
			QueueID:   queueID,
			TenantID:  tenantID,
			Processed: 1,
			Date:      day,
		}
		_, err = d.Bun.NewInsert().Model(&row).Exec(ctx)
		return err
	}
	if err != nil {
		return err
	}

	_, err = d.Bun.NewUpdate().
		Model((*models.QueueDailyCount)(nil)).
		Set("processed = processed + 1").
		Where("id = ?", existing.ID).
		Exec(ctx)
	return err
}

// GetDailyCounts returns the queue's history rows with from <= date < to, oldest first.
func (d *DB) GetDailyCounts(ctx context.Context, queueID string, from, to time.Time) ([]models.QueueDailyCount, error) {
	var counts []models.QueueDailyCount
	err := d.Bun.NewSelect().
		Model(&counts).
		Where("queue_id = ?", queueID).
		Where("date >= ?", from).
		Where("date < ?", to).
		Order("date ASC").
		Scan(ctx)
	return counts, err
}

// GetTotalTicketsCount returns the number of tickets ever issued in a queue.
func (d *DB) GetTotalTicketsCount(ctx context.Context, queueID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("queue_id = ?", queueID).
		Count(ctx)
}
