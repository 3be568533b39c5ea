package sse

import (
	"context"
	"sync"

	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
)

const clientBuffer = 10

// QueueEventEmitter fans queue events out to SSE subscribers, keyed by queue
// (display boards, operator consoles) and by ticket (a customer's phone).
type QueueEventEmitter struct {
	mu            sync.RWMutex
	queueClients  map[string][]chan models.QueueEvent
	ticketClients map[string][]chan models.QueueEvent
}

func NewQueueEventEmitter() *QueueEventEmitter {
	return &QueueEventEmitter{
		queueClients:  make(map[string][]chan models.QueueEvent),
		ticketClients: make(map[string][]chan models.QueueEvent),
	}
}

// SubscribeToQueue returns a channel receiving every event for queueID. The
// channel is closed once ctx is done.
func (e *QueueEventEmitter) SubscribeToQueue(ctx context.Context, queueID string) <-chan models.QueueEvent {
	return e.subscribe(ctx, e.queueClients, queueID)
}

// SubscribeToTicket returns a channel receiving events about one ticket.
func (e *QueueEventEmitter) SubscribeToTicket(ctx context.Context, ticketID string) <-chan models.QueueEvent {
	return e.subscribe(ctx, e.ticketClients, ticketID)
}

func (e *QueueEventEmitter) subscribe(ctx context.Context, clients map[string][]chan models.QueueEvent, key string) <-chan models.QueueEvent {
	ch := make(chan models.QueueEvent, clientBuffer)

	e.mu.Lock()
	clients[key] = append(clients[key], ch)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(clients, key, ch)
	}()
	return ch
}

// Emit delivers event to its queue and ticket subscribers. Slow clients whose
// buffer is full miss the event rather than block the emitter.
func (e *QueueEventEmitter) Emit(event models.QueueEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, ch := range e.queueClients[event.QueueID] {
		send(ch, event)
	}
	if event.TicketID != "" {
		for _, ch := range e.ticketClients[event.TicketID] {
			send(ch, event)
		}
	}
}

// Send lets the emitter act as a notification sink.
func (e *QueueEventEmitter) Send(_ context.Context, event models.QueueEvent) error {
	e.Emit(event)
	return nil
}

func send(ch chan models.QueueEvent, event models.QueueEvent) {
	select {
	case ch <- event:
	default:
	}
}

func (e *QueueEventEmitter) remove(clients map[string][]chan models.QueueEvent, key string, ch chan models.QueueEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	list := clients[key]
	for i, c := range list {
		if c == ch {
			clients[key] = append(list[:i], list[i+1:]...)
			close(ch)
			break
		}
	}
	if len(clients[key]) == 0 {
		delete(clients, key)
	}
}

func (e *QueueEventEmitter) QueueClientCount(queueID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.queueClients[queueID])
}

func (e *QueueEventEmitter) TicketClientCount(ticketID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.ticketClients[ticketID])
}
