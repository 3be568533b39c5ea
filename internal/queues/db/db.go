package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateQueue(ctx context.Context, queue *models.Queue) error {
	_, err := d.Bun.NewInsert().Model(queue).Exec(ctx)
	return err
}

func (d *DB) GetQueueByID(ctx context.Context, id string) (*models.Queue, error) {
	var queue models.Queue
	err := d.Bun.NewSelect().
		Model(&queue).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &queue, nil
}

// UpdateQueue writes the admin-editable columns.
func (d *DB) UpdateQueue(ctx context.Context, queue *models.Queue) error {
	_, err := d.Bun.NewUpdate().
		Model(queue).
		Column("name", "description", "category", "priority", "is_active", "updated_at").
		Where("id = ?", queue.ID).
		Exec(ctx)
	return err
}

// ListByCompany returns the company's queues, highest queue priority first.
func (d *DB) ListByCompany(ctx context.Context, companyID string, activeOnly bool) ([]models.Queue, error) {
	var queues []models.Queue
	q := d.Bun.NewSelect().
		Model(&queues).
		Where("company_id = ?", companyID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Order("priority DESC", "name ASC").Scan(ctx)
	return queues, err
}

func (d *DB) ListByTenant(ctx context.Context, tenantID string) ([]models.Queue, error) {
	var queues []models.Queue
	err := d.Bun.NewSelect().
		Model(&queues).
		Where("tenant_id = ?", tenantID).
		Order("company_id ASC", "priority DESC", "name ASC").
		Scan(ctx)
	return queues, err
}

func (d *DB) SetAverageServiceTime(ctx context.Context, queueID string, minutes int, at time.Time) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Queue)(nil)).
		Set("average_service_time = ?", minutes).
		Set("updated_at = ?", at).
		Where("id = ?", queueID).
		Exec(ctx)
	return err
}

func (d *DB) SetProcessedToday(ctx context.Context, queueID string, n int, at time.Time) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Queue)(nil)).
		Set("total_processed_today = ?", n).
		Set("updated_at = ?", at).
		Where("id = ?", queueID).
		Exec(ctx)
	return err
}

// IncrementProcessedToday adds one to the queue's daily counter in place.
func (d *DB) IncrementProcessedToday(ctx context.Context, queueID string, at time.Time) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Queue)(nil)).
		Set("total_processed_today = total_processed_today + 1").
		Set("updated_at = ?", at).
		Where("id = ?", queueID).
		Exec(ctx)
	return err
}

// ResetProcessedToday zeroes every queue's daily counter and returns how many
// queues had a non-zero count.
func (d *DB) ResetProcessedToday(ctx context.Context, at time.Time) (int, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Queue)(nil)).
		Set("total_processed_today = 0").
		Set("updated_at = ?", at).
		Where("total_processed_today <> 0").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
