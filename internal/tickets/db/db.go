package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
)

// ErrStaleTicket is returned by UpdateTicket when the stored status no longer
// matches the status the caller read.
var ErrStaleTicket = errors.New("ticket was modified concurrently")

type DB struct {
	Bun *bun.DB
}

// priorityOrder ranks "priority" tickets ahead of "normal" ones.
const priorityOrder = "CASE priority WHEN 'priority' THEN 1 ELSE 0 END DESC"

func (d *DB) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	_, err := d.Bun.NewInsert().Model(ticket).Exec(ctx)
	return err
}

func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) GetTicketByNumber(ctx context.Context, number string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("number = ?", strings.ToUpper(number)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// UpdateTicket writes every mutable column of ticket, guarded on the row still
// being in prevStatus.
func (d *DB) UpdateTicket(ctx context.Context, ticket *models.Ticket, prevStatus models.TicketStatus) error {
	res, err := d.Bun.NewUpdate().
		Model(ticket).
		Column(
			"status", "position", "estimated_wait_time", "actual_wait_time", "service_time",
			"notes", "reason", "processed_by_id", "updated_at", "called_at", "completed_at",
			"cancelled_at", "skipped_at", "paused_at", "resumed_at",
		).
		Where("id = ?", ticket.ID).
		Where("status = ?", prevStatus).
		Exec(ctx)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleTicket
	}
	return nil
}

func (d *DB) NumberExists(ctx context.Context, number string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("number = ?", number).
		Exists(ctx)
}

// HasActiveTicket reports whether userID holds a waiting, called or paused ticket in queueID.
func (d *DB) HasActiveTicket(ctx context.Context, userID, queueID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("user_id = ?", userID).
		Where("queue_id = ?", queueID).
		Where("status IN (?)", bun.In(models.ActiveStatuses)).
		Exists(ctx)
}

func (d *DB) CountByStatus(ctx context.Context, queueID string, status models.TicketStatus) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("queue_id = ?", queueID).
		Where("status = ?", status).
		Count(ctx)
}

// NextWaiting returns the head of the queue, or nil when nobody is waiting.
func (d *DB) NextWaiting(ctx context.Context, queueID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("queue_id = ?", queueID).
		Where("status = ?", models.StatusWaiting).
		OrderExpr(priorityOrder).
		OrderExpr("created_at ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// ListByStatus returns the queue's tickets in any of statuses, in serving order.
func (d *DB) ListByStatus(ctx context.Context, queueID string, statuses ...models.TicketStatus) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("queue_id = ?", queueID).
		Where("status IN (?)", bun.In(statuses)).
		OrderExpr(priorityOrder).
		OrderExpr("created_at ASC").
		Scan(ctx)
	return tickets, err
}

func (d *DB) ListByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	return tickets, err
}

// AverageServiceTime returns the mean service time of tickets completed in
// queueID since the given instant, and how many tickets it covers.
func (d *DB) AverageServiceTime(ctx context.Context, queueID string, since time.Time) (float64, int, error) {
	var row struct {
		Avg   sql.NullFloat64 `bun:"avg"`
		Count int             `bun:"n"`
	}
	err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		ColumnExpr("AVG(service_time) AS avg").
		ColumnExpr("COUNT(*) AS n").
		Where("queue_id = ?", queueID).
		Where("status = ?", models.StatusCompleted).
		Where("completed_at >= ?", since).
		Scan(ctx, &row)
	if err != nil {
		return 0, 0, err
	}
	return row.Avg.Float64, row.Count, nil
}

func (d *DB) CountCompletedSince(ctx context.Context, queueID string, since time.Time) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("queue_id = ?", queueID).
		Where("status = ?", models.StatusCompleted).
		Where("completed_at >= ?", since).
		Count(ctx)
}

// CountByQueueGrouped returns the number of tickets per status for a queue.
func (d *DB) CountByQueueGrouped(ctx context.Context, queueID string) (map[models.TicketStatus]int, error) {
	var rows []struct {
		Status models.TicketStatus `bun:"status"`
		Count  int                 `bun:"n"`
	}
	err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Column("status").
		ColumnExpr("COUNT(*) AS n").
		Where("queue_id = ?", queueID).
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	out := make(map[models.TicketStatus]int, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}

// UserExists checks if a user with the given ID exists in the database
func (d *DB) UserExists(ctx context.Context, userID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.User)(nil)).
		Where("id = ?", userID).
		Exists(ctx)
}

// IsUniqueViolation reports whether err is a unique constraint failure from
// Postgres or SQLite.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
