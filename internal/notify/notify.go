// Package notify delivers fire-and-forget ticket and queue events. Delivery
// failures are logged and never reach the caller.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/JhonAQ/te-toca-web-sub000/internal/kafka"
	"github.com/JhonAQ/te-toca-web-sub000/internal/logger"
	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
)

type Notifier interface {
	TicketCalled(ctx context.Context, ticket *models.Ticket)
	TicketReady(ctx context.Context, ticket *models.Ticket)
	QueueUpdated(ctx context.Context, tenantID, queueID string, waiting int)
}

// Sink receives built events.
type Sink interface {
	Send(ctx context.Context, event models.QueueEvent) error
}

type Dispatcher struct {
	sinks   []Sink
	logger  *logger.Logger
	now     func() time.Time
	async   bool
	timeout time.Duration
}

type Option func(*Dispatcher)

// Async sends every event from its own goroutine, bounded by timeout.
func Async(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.async = true
		d.timeout = timeout
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(log *logger.Logger, sinks []Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{sinks: sinks, logger: log, now: time.Now, timeout: 5 * time.Second}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Dispatcher) TicketCalled(ctx context.Context, ticket *models.Ticket) {
	d.dispatch(ctx, ticketEvent(models.EventTicketCalled, ticket, d.now()))
}

func (d *Dispatcher) TicketReady(ctx context.Context, ticket *models.Ticket) {
	d.dispatch(ctx, ticketEvent(models.EventTicketReady, ticket, d.now()))
}

func (d *Dispatcher) QueueUpdated(ctx context.Context, tenantID, queueID string, waiting int) {
	d.dispatch(ctx, models.QueueEvent{
		Type:         models.EventQueueUpdated,
		TenantID:     tenantID,
		QueueID:      queueID,
		WaitingCount: waiting,
		OccurredAt:   d.now(),
	})
}

func ticketEvent(t models.QueueEventType, ticket *models.Ticket, at time.Time) models.QueueEvent {
	return models.QueueEvent{
		Type:         t,
		TenantID:     ticket.TenantID,
		QueueID:      ticket.QueueID,
		TicketID:     ticket.ID,
		TicketNumber: ticket.Number,
		UserID:       ticket.UserID,
		Status:       ticket.Status,
		OccurredAt:   at,
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, event models.QueueEvent) {
	if !d.async {
		d.deliver(ctx, event)
		return
	}
	// Detach from the request so the send outlives the response.
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		d.deliver(sendCtx, event)
	}()
}

func (d *Dispatcher) deliver(ctx context.Context, event models.QueueEvent) {
	for _, s := range d.sinks {
		if err := s.Send(ctx, event); err != nil {
			d.logger.Error("NOTIFY", fmt.Sprintf("failed to deliver %s for queue %s: %v", event.Type, event.QueueID, err))
		}
	}
}

// KafkaSink publishes each event to its topic, keyed by queue.
type KafkaSink struct {
	Producer *kafka.Producer
}

func (k KafkaSink) Send(ctx context.Context, event models.QueueEvent) error {
	topic, ok := kafka.TopicFor(event.Type)
	if !ok {
		return fmt.Errorf("no topic for event type %q", event.Type)
	}
	return k.Producer.Publish(ctx, topic, event.QueueID, event)
}

// Nop discards every notification.
type Nop struct{}

func (Nop) TicketCalled(context.Context, *models.Ticket) {}
func (Nop) TicketReady(context.Context, *models.Ticket) {}
func (Nop) QueueUpdated(context.Context, string, string, int) {}
