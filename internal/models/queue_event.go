package models

import "time"

type QueueEventType string

const (
	EventTicketCalled QueueEventType = "ticket.called"
	EventTicketReady  QueueEventType = "ticket.ready"
	EventQueueUpdated QueueEventType = "queue.updated"
)

// QueueEvent is the payload published to Kafka and streamed over SSE.
type QueueEvent struct {
	Type         QueueEventType `json:"type"`
	TenantID     string         `json:"tenantId"`
	QueueID      string         `json:"queueId"`
	TicketID     string         `json:"ticketId,omitempty"`
	TicketNumber string         `json:"ticketNumber,omitempty"`
	UserID       string         `json:"userId,omitempty"`
	Status       TicketStatus   `json:"status,omitempty"`
	WaitingCount int            `json:"waitingCount"`
	OccurredAt   time.Time      `json:"occurredAt"`
}
