package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Queue is a waiting line for one service at one company.
// AverageServiceTime holds the rolling mean service time in minutes; per-position
// wait estimates are always derived from it and never stored on the queue.
type Queue struct {
	bun.BaseModel `bun:"table:queues"`

	ID                  string    `bun:"id,pk" json:"id"`
	TenantID            string    `bun:"tenant_id,notnull" json:"tenantId"`
	CompanyID           string    `bun:"company_id,notnull" json:"companyId"`
	Name                string    `bun:"name,notnull" json:"name"`
	Description         string    `bun:"description" json:"description,omitempty"`
	Category            string    `bun:"category" json:"category,omitempty"`
	Priority            int       `bun:"priority" json:"priority"`
	IsActive            bool      `bun:"is_active" json:"isActive"`
	AverageServiceTime  int       `bun:"average_service_time" json:"averageServiceTime"`
	TotalProcessedToday int       `bun:"total_processed_today" json:"totalProcessedToday"`
	CreatedAt           time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt           time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

// EstimatedWait is the linear wait estimate for a ticket at position.
func (q *Queue) EstimatedWait(position int) int {
	if position < 0 {
		position = 0
	}
	return position * q.AverageServiceTime
}
