package tickets_test

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/JhonAQ/te-toca-web-sub000/internal/apperror"
	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
	ticketdb "github.com/JhonAQ/te-toca-web-sub000/internal/tickets/db"
)

// memStore is an in-memory TicketDBLayer.
type memStore struct {
	mu      sync.Mutex
	tickets map[string]models.Ticket
	users   map[string]bool

	// failInserts makes the next n inserts fail with a unique violation.
	failInserts int
}

func newMemStore() *memStore {
	return &memStore{tickets: map[string]models.Ticket{}, users: map[string]bool{}}
}

func (m *memStore) put(t models.Ticket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[t.ID] = t
}

func (m *memStore) get(id string) models.Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tickets[id]
}

func (m *memStore) CreateTicket(_ context.Context, t *models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInserts > 0 {
		m.failInserts--
		return errors.New("UNIQUE constraint failed: tickets.number")
	}
	for _, existing := range m.tickets {
		if existing.Number == t.Number {
			return errors.New("UNIQUE constraint failed: tickets.number")
		}
	}
	m.tickets[t.ID] = *t
	return nil
}

func (m *memStore) GetTicketByID(_ context.Context, id string) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

func (m *memStore) GetTicketByNumber(_ context.Context, number string) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tickets {
		if t.Number == number {
			t := t
			return &t, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memStore) UpdateTicket(_ context.Context, t *models.Ticket, prev models.TicketStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.tickets[t.ID]
	if !ok || stored.Status != prev {
		return ticketdb.ErrStaleTicket
	}
	m.tickets[t.ID] = *t
	return nil
}

func (m *memStore) NumberExists(_ context.Context, number string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tickets {
		if t.Number == number {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) HasActiveTicket(_ context.Context, userID, queueID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tickets {
		if t.UserID == userID && t.QueueID == queueID && t.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CountByStatus(_ context.Context, queueID string, status models.TicketStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tickets {
		if t.QueueID == queueID && t.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *memStore) ListByStatus(_ context.Context, queueID string, statuses ...models.TicketStatus) ([]models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Ticket
	for _, t := range m.tickets {
		if t.QueueID != queueID {
			continue
		}
		for _, s := range statuses {
			if t.Status == s {
				out = append(out, t)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority.Rank() != out[j].Priority.Rank() {
			return out[i].Priority.Rank() > out[j].Priority.Rank()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memStore) NextWaiting(ctx context.Context, queueID string) (*models.Ticket, error) {
	list, _ := m.ListByStatus(ctx, queueID, models.StatusWaiting)
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

func (m *memStore) ListByUser(_ context.Context, userID string) ([]models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Ticket
	for _, t := range m.tickets {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) UserExists(_ context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userID], nil
}

// fakeQueues is an in-memory QueueStore.
type fakeQueues struct {
	mu          sync.Mutex
	queues      map[string]*models.Queue
	completions int
	failRecord  bool
}

func (f *fakeQueues) GetQueue(_ context.Context, id string) (*models.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.queues[id]
	if !ok {
		return nil, apperror.NotFound("queue", id)
	}
	cp := *q
	return &cp, nil
}

func (f *fakeQueues) RecordCompletion(_ context.Context, q *models.Queue, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRecord {
		return errors.New("stats store down")
	}
	f.completions++
	f.queues[q.ID].TotalProcessedToday++
	return nil
}

func (f *fakeQueues) processedToday(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queues[id].TotalProcessedToday
}

// fakeWorkers applies the tenant, pause and permission rules.
type fakeWorkers struct {
	workers map[string]*models.Worker
	current map[string]string
}

func (f *fakeWorkers) check(workerID, tenantID, queueID string, action models.Action) (*models.Worker, error) {
	w, ok := f.workers[workerID]
	if !ok {
		return nil, apperror.NotFound("worker", workerID)
	}
	if w.TenantID != tenantID {
		return nil, apperror.Forbidden("worker %s cannot act on tenant %s", w.ID, tenantID)
	}
	if action == models.ActionCall && w.IsPaused {
		return nil, apperror.Forbidden("worker %s is paused", w.ID)
	}
	if !w.Permissions.AllowsQueue(queueID) || !w.Permissions.AllowsAction(action) {
		return nil, apperror.Forbidden("worker %s lacks permission", w.ID)
	}
	return w, nil
}

func (f *fakeWorkers) AuthorizeTicketAction(_ context.Context, workerID string, t *models.Ticket, action models.Action) (*models.Worker, error) {
	return f.check(workerID, t.TenantID, t.QueueID, action)
}

func (f *fakeWorkers) AuthorizeQueue(_ context.Context, workerID string, q *models.Queue, action models.Action) (*models.Worker, error) {
	return f.check(workerID, q.TenantID, q.ID, action)
}

func (f *fakeWorkers) SetCurrentQueue(_ context.Context, workerID, queueID string) error {
	f.current[workerID] = queueID
	return nil
}

// recordingNotifier captures notifications.
type recordingNotifier struct {
	mu     sync.Mutex
	called []string
	ready  []string
	counts []int
}

func (r *recordingNotifier) TicketCalled(_ context.Context, t *models.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.called = append(r.called, t.Number)
}

func (r *recordingNotifier) TicketReady(_ context.Context, t *models.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = append(r.ready, t.Number)
}

func (r *recordingNotifier) QueueUpdated(_ context.Context, _, _ string, waiting int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = append(r.counts, waiting)
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// sequence returns a number generator yielding numbers in order, then
// repeating the last one.
func sequence(numbers ...string) (func() (string, error), *int) {
	calls := 0
	return func() (string, error) {
		n := numbers[len(numbers)-1]
		if calls < len(numbers) {
			n = numbers[calls]
		}
		calls++
		return n, nil
	}, &calls
}
