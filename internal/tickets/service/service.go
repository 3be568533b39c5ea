package tickets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JhonAQ/te-toca-web-sub000/internal/apperror"
	"github.com/JhonAQ/te-toca-web-sub000/internal/logger"
	"github.com/JhonAQ/te-toca-web-sub000/internal/metrics"
	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
	"github.com/JhonAQ/te-toca-web-sub000/internal/notify"
	ticketdb "github.com/JhonAQ/te-toca-web-sub000/internal/tickets/db"
	"github.com/JhonAQ/te-toca-web-sub000/internal/utils"
)

// MaxNumberAttempts bounds ticket number generation.
const MaxNumberAttempts = 10

type TicketDBLayer interface {
	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	GetTicketByNumber(ctx context.Context, number string) (*models.Ticket, error)
	UpdateTicket(ctx context.Context, ticket *models.Ticket, prevStatus models.TicketStatus) error
	NumberExists(ctx context.Context, number string) (bool, error)
	HasActiveTicket(ctx context.Context, userID, queueID string) (bool, error)
	CountByStatus(ctx context.Context, queueID string, status models.TicketStatus) (int, error)
	NextWaiting(ctx context.Context, queueID string) (*models.Ticket, error)
	ListByStatus(ctx context.Context, queueID string, statuses ...models.TicketStatus) ([]models.Ticket, error)
	ListByUser(ctx context.Context, userID string) ([]models.Ticket, error)
	UserExists(ctx context.Context, userID string) (bool, error)
}

// QueueStore resolves queues and owns their statistics.
type QueueStore interface {
	GetQueue(ctx context.Context, queueID string) (*models.Queue, error)
	RecordCompletion(ctx context.Context, queue *models.Queue, at time.Time) error
}

// WorkerAuthorizer decides whether a worker may act on a ticket or queue.
type WorkerAuthorizer interface {
	AuthorizeTicketAction(ctx context.Context, workerID string, ticket *models.Ticket, action models.Action) (*models.Worker, error)
	AuthorizeQueue(ctx context.Context, workerID string, queue *models.Queue, action models.Action) (*models.Worker, error)
	SetCurrentQueue(ctx context.Context, workerID, queueID string) error
}

// Locker serializes ticket creation per queue and reserves numbers across
// service instances.
type Locker interface {
	ReserveNumber(ctx context.Context, number, owner string) (bool, error)
	ReleaseNumber(ctx context.Context, number, owner string) error
	LockQueue(ctx context.Context, queueID, owner string) error
	UnlockQueue(ctx context.Context, queueID, owner string) error
}

type TicketService struct {
	DB       TicketDBLayer
	Queues   QueueStore
	Workers  WorkerAuthorizer
	Locker   Locker
	Notifier notify.Notifier
	Logger   *logger.Logger

	Now            func() time.Time
	GenerateNumber func() (string, error)
}

func NewTicketService(db TicketDBLayer, queues QueueStore, workers WorkerAuthorizer, locker Locker, notifier notify.Notifier, log *logger.Logger) *TicketService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &TicketService{
		DB:             db,
		Queues:         queues,
		Workers:        workers,
		Locker:         locker,
		Notifier:       notifier,
		Logger:         log,
		Now:            time.Now,
		GenerateNumber: utils.GenerateTicketNumber,
	}
}

func (s *TicketService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

type CreateTicketInput struct {
	QueueID       string                `json:"queueId"`
	UserID        string                `json:"userId,omitempty"`
	CustomerName  string                `json:"customerName"`
	CustomerPhone string                `json:"customerPhone,omitempty"`
	CustomerEmail string                `json:"customerEmail,omitempty"`
	ServiceType   string                `json:"serviceType,omitempty"`
	Priority      models.TicketPriority `json:"priority,omitempty"`
	Notes         string                `json:"notes,omitempty"`
}

func (in *CreateTicketInput) validate() error {
	in.QueueID = strings.TrimSpace(in.QueueID)
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	if in.QueueID == "" {
		return apperror.Validation("queueId is required")
	}
	if in.Priority == "" {
		in.Priority = models.PriorityNormal
	}
	if !in.Priority.Valid() {
		return apperror.Validation("priority must be %q or %q", models.PriorityNormal, models.PriorityHigh)
	}
	if in.UserID == "" && in.CustomerName == "" {
		return apperror.Validation("customerName is required for anonymous tickets")
	}
	return nil
}

// Create issues a new waiting ticket at the back of its priority band.
func (s *TicketService) Create(ctx context.Context, in CreateTicketInput) (*models.Ticket, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	queue, err := s.Queues.GetQueue(ctx, in.QueueID)
	if err != nil {
		return nil, err
	}
	if !queue.IsActive {
		return nil, apperror.Validation("queue %s is not accepting tickets", queue.ID)
	}

	if in.UserID != "" {
		exists, err := s.DB.UserExists(ctx, in.UserID)
		if err != nil {
			return nil, apperror.Internal(fmt.Errorf("check user %s: %w", in.UserID, err))
		}
		if !exists {
			return nil, apperror.NotFound("user", in.UserID)
		}
	}

	ticketID := utils.GenerateID()
	if s.Locker != nil {
		if err := s.Locker.LockQueue(ctx, queue.ID, ticketID); err != nil {
			return nil, apperror.Internal(err)
		}
		defer func() {
			if err := s.Locker.UnlockQueue(context.Background(), queue.ID, ticketID); err != nil {
				s.Logger.Warn("REDIS", fmt.Sprintf("failed to unlock queue %s: %v", queue.ID, err))
			}
		}()
	}

	if in.UserID != "" {
		active, err := s.DB.HasActiveTicket(ctx, in.UserID, queue.ID)
		if err != nil {
			return nil, apperror.Internal(fmt.Errorf("check active tickets: %w", err))
		}
		if active {
			return nil, apperror.DuplicateActiveTicket(in.UserID, queue.ID)
		}
	}

	waiting, err := s.DB.CountByStatus(ctx, queue.ID, models.StatusWaiting)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("count waiting tickets: %w", err))
	}

	now := s.now()
	ticket := &models.Ticket{
		ID:                ticketID,
		QueueID:           queue.ID,
		TenantID:          queue.TenantID,
		UserID:            in.UserID,
		CustomerName:      in.CustomerName,
		CustomerPhone:     in.CustomerPhone,
		CustomerEmail:     in.CustomerEmail,
		ServiceType:       in.ServiceType,
		Priority:          in.Priority,
		Status:            models.StatusWaiting,
		Position:          waiting + 1,
		EstimatedWaitTime: queue.EstimatedWait(waiting + 1),
		Notes:             in.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.insertWithUniqueNumber(ctx, ticket); err != nil {
		return nil, err
	}

	metrics.TicketsCreated.WithLabelValues(string(ticket.Priority)).Inc()
	s.Logger.LogTicket("CREATE", ticket.Number, fmt.Sprintf("queue %s position %d eta %dm", queue.ID, ticket.Position, ticket.EstimatedWaitTime))
	s.Notifier.QueueUpdated(ctx, queue.TenantID, queue.ID, waiting+1)
	return ticket, nil
}

// IssueWalkIn creates an anonymous ticket on behalf of a walk-in customer.
// The worker must be allowed on the queue.
func (s *TicketService) IssueWalkIn(ctx context.Context, workerID string, in CreateTicketInput) (*models.Ticket, error) {
	in.UserID = ""
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := s.QueueForWorker(ctx, workerID, in.QueueID, models.ActionView); err != nil {
		return nil, err
	}
	ticket, err := s.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.Logger.LogTicket("ISSUE", ticket.Number, fmt.Sprintf("walk-in ticket issued by worker %s", workerID))
	return ticket, nil
}

// insertWithUniqueNumber assigns a fresh number and inserts the ticket. A
// number counts as taken if the store has it, another creator holds its
// reservation, or the insert hits the unique index.
func (s *TicketService) insertWithUniqueNumber(ctx context.Context, ticket *models.Ticket) error {
	for attempt := 1; attempt <= MaxNumberAttempts; attempt++ {
		number, err := s.GenerateNumber()
		if err != nil {
			return apperror.Internal(fmt.Errorf("generate ticket number: %w", err))
		}

		taken, err := s.DB.NumberExists(ctx, number)
		if err != nil {
			return apperror.Internal(fmt.Errorf("probe ticket number: %w", err))
		}
		if taken {
			metrics.NumberCollisions.Inc()
			continue
		}

		if s.Locker != nil {
			ok, err := s.Locker.ReserveNumber(ctx, number, ticket.ID)
			if err != nil {
				return apperror.Internal(fmt.Errorf("reserve ticket number: %w", err))
			}
			if !ok {
				metrics.NumberCollisions.Inc()
				continue
			}
		}

		ticket.Number = number
		err = s.DB.CreateTicket(ctx, ticket)
		s.releaseNumber(number, ticket.ID)
		if err == nil {
			return nil
		}
		if ticketdb.IsUniqueViolation(err) {
			metrics.NumberCollisions.Inc()
			continue
		}
		return apperror.Internal(fmt.Errorf("insert ticket: %w", err))
	}
	ticket.Number = ""
	s.Logger.Error("TICKET", fmt.Sprintf("number generation exhausted for queue %s", ticket.QueueID))
	return apperror.NumberGenerationExhausted(MaxNumberAttempts)
}

func (s *TicketService) releaseNumber(number, owner string) {
	if s.Locker == nil {
		return
	}
	if err := s.Locker.ReleaseNumber(context.Background(), number, owner); err != nil {
		s.Logger.Warn("REDIS", fmt.Sprintf("failed to release number %s: %v", number, err))
	}
}

// GetTicket resolves ref as a ticket id or, failing that, a ticket number.
func (s *TicketService) GetTicket(ctx context.Context, ref string) (*models.Ticket, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, apperror.Validation("ticket reference is required")
	}

	var (
		ticket *models.Ticket
		err    error
	)
	if _, parseErr := uuid.Parse(ref); parseErr == nil {
		ticket, err = s.DB.GetTicketByID(ctx, ref)
	} else {
		ticket, err = s.DB.GetTicketByNumber(ctx, strings.ToUpper(ref))
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("ticket", ref)
	}
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load ticket %s: %w", ref, err))
	}
	return ticket, nil
}

func (s *TicketService) ListByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	tickets, err := s.DB.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("list tickets for user %s: %w", userID, err))
	}
	return tickets, nil
}
