package models

import (
	"time"

	"github.com/uptrace/bun"
)

// QueueDailyCount is the number of tickets completed in a queue on one day.
type QueueDailyCount struct {
	bun.BaseModel `bun:"table:queue_daily_counts"`

	ID        int64     `bun:"id,pk,autoincrement" json:"-"`
	QueueID   string    `bun:"queue_id,notnull" json:"queueId"`
	TenantID  string    `bun:"tenant_id,notnull" json:"tenantId"`
	Processed int       `bun:"processed" json:"processed"`
	Date      time.Time `bun:"date,notnull" json:"date"`
}
