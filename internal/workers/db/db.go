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

func (d *DB) CreateWorker(ctx context.Context, worker *models.Worker) error {
	_, err := d.Bun.NewInsert().Model(worker).Exec(ctx)
	return err
}

func (d *DB) GetWorkerByID(ctx context.Context, id string) (*models.Worker, error) {
	worker := new(models.Worker)
	err := d.Bun.NewSelect().Model(worker).Where("id = ?", id).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return worker, nil
}

func (d *DB) GetWorkerByUsername(ctx context.Context, tenantID, username string) (*models.Worker, error) {
	worker := new(models.Worker)
	err := d.Bun.NewSelect().
		Model(worker).
		Where("tenant_id = ?", tenantID).
		Where("username = ?", username).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return worker, nil
}

func (d *DB) ListByTenant(ctx context.Context, tenantID string) ([]models.Worker, error) {
	var workers []models.Worker
	err := d.Bun.NewSelect().
		Model(&workers).
		Where("tenant_id = ?", tenantID).
		OrderExpr("name ASC").
		Scan(ctx)
	return workers, err
}

func (d *DB) SetPaused(ctx context.Context, id string, paused bool, at time.Time) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Worker)(nil)).
		Set("is_paused = ?", paused).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (d *DB) SetCurrentQueue(ctx context.Context, id, queueID string, at time.Time) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Worker)(nil)).
		Set("current_queue_id = ?", queueID).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	return err
}
