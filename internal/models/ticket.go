package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	StatusWaiting    TicketStatus = "waiting"
	StatusCalled     TicketStatus = "called"
	StatusInProgress TicketStatus = "in_progress"
	StatusCompleted  TicketStatus = "completed"
	StatusCancelled  TicketStatus = "cancelled"
	StatusSkipped    TicketStatus = "skipped"
	StatusPaused     TicketStatus = "paused"
)

// ActiveStatuses are the statuses that count against the one-ticket-per-user-per-queue rule.
var ActiveStatuses = []TicketStatus{StatusWaiting, StatusCalled, StatusPaused}

func (s TicketStatus) Valid() bool {
	switch s {
	case StatusWaiting, StatusCalled, StatusInProgress, StatusCompleted,
		StatusCancelled, StatusSkipped, StatusPaused:
		return true
	}
	return false
}

type TicketPriority string

const (
	PriorityNormal TicketPriority = "normal"
	PriorityHigh   TicketPriority = "priority"
)

func (p TicketPriority) Valid() bool {
	return p == PriorityNormal || p == PriorityHigh
}

// Rank orders priorities for next-ticket selection; higher is served first.
func (p TicketPriority) Rank() int {
	if p == PriorityHigh {
		return 1
	}
	return 0
}

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID                string         `bun:"id,pk" json:"id"`
	Number            string         `bun:"number,unique,notnull" json:"number"`
	QueueID           string         `bun:"queue_id,notnull" json:"queueId"`
	TenantID          string         `bun:"tenant_id,notnull" json:"tenantId"`
	UserID            string         `bun:"user_id,nullzero" json:"userId,omitempty"`
	CustomerName      string         `bun:"customer_name" json:"customerName"`
	CustomerPhone     string         `bun:"customer_phone" json:"customerPhone,omitempty"`
	CustomerEmail     string         `bun:"customer_email" json:"customerEmail,omitempty"`
	ServiceType       string         `bun:"service_type" json:"serviceType,omitempty"`
	Priority          TicketPriority `bun:"priority,notnull" json:"priority"`
	Status            TicketStatus   `bun:"status,notnull" json:"status"`
	Position          int            `bun:"position" json:"position"`
	EstimatedWaitTime int            `bun:"estimated_wait_time" json:"estimatedWaitTime"`
	ActualWaitTime    int            `bun:"actual_wait_time" json:"actualWaitTime"`
	ServiceTime       int            `bun:"service_time" json:"serviceTime"`
	Notes             string         `bun:"notes" json:"notes,omitempty"`
	Reason            string         `bun:"reason" json:"reason,omitempty"`
	ProcessedByID     string         `bun:"processed_by_id,nullzero" json:"processedById,omitempty"`

	CreatedAt   time.Time  `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull" json:"updatedAt"`
	CalledAt    *time.Time `bun:"called_at,nullzero" json:"calledAt,omitempty"`
	CompletedAt *time.Time `bun:"completed_at,nullzero" json:"completedAt,omitempty"`
	CancelledAt *time.Time `bun:"cancelled_at,nullzero" json:"cancelledAt,omitempty"`
	SkippedAt   *time.Time `bun:"skipped_at,nullzero" json:"skippedAt,omitempty"`
	PausedAt    *time.Time `bun:"paused_at,nullzero" json:"pausedAt,omitempty"`
	ResumedAt   *time.Time `bun:"resumed_at,nullzero" json:"resumedAt,omitempty"`
}

// IsActive reports whether the ticket still holds the user's slot in its queue.
func (t *Ticket) IsActive() bool {
	for _, s := range ActiveStatuses {
		if t.Status == s {
			return true
		}
	}
	return false
}
