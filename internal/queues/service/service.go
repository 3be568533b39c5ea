package queues

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/JhonAQ/te-toca-web-sub000/internal/apperror"
	"github.com/JhonAQ/te-toca-web-sub000/internal/logger"
	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
	"github.com/JhonAQ/te-toca-web-sub000/internal/utils"
)

// DefaultStatsWindow is how far back completed tickets feed the average service time.
const DefaultStatsWindow = 7 * 24 * time.Hour

type QueueDBLayer interface {
	CreateQueue(ctx context.Context, queue *models.Queue) error
	GetQueueByID(ctx context.Context, id string) (*models.Queue, error)
	UpdateQueue(ctx context.Context, queue *models.Queue) error
	ListByCompany(ctx context.Context, companyID string, activeOnly bool) ([]models.Queue, error)
	ListByTenant(ctx context.Context, tenantID string) ([]models.Queue, error)
	SetAverageServiceTime(ctx context.Context, queueID string, minutes int, at time.Time) error
	SetProcessedToday(ctx context.Context, queueID string, n int, at time.Time) error
	IncrementProcessedToday(ctx context.Context, queueID string, at time.Time) error
	ResetProcessedToday(ctx context.Context, at time.Time) (int, error)
}

// TicketStats is the read side of the ticket store the statistics are built from.
type TicketStats interface {
	CountByStatus(ctx context.Context, queueID string, status models.TicketStatus) (int, error)
	ListByStatus(ctx context.Context, queueID string, statuses ...models.TicketStatus) ([]models.Ticket, error)
	AverageServiceTime(ctx context.Context, queueID string, since time.Time) (float64, int, error)
	CountCompletedSince(ctx context.Context, queueID string, since time.Time) (int, error)
	IncrementProcessedCount(ctx context.Context, queueID, tenantID string, day time.Time) error
}

type CompanyLookup interface {
	GetCompany(ctx context.Context, companyID string) (*models.Company, error)
	GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error)
}

type QueueService struct {
	DB        QueueDBLayer
	Tickets   TicketStats
	Companies CompanyLookup
	Logger    *logger.Logger

	// Location defines local midnight for the daily counters.
	Location    *time.Location
	StatsWindow time.Duration
	Now         func() time.Time
}

func NewQueueService(db QueueDBLayer, tickets TicketStats, companies CompanyLookup, log *logger.Logger, loc *time.Location, window time.Duration) *QueueService {
	if loc == nil {
		loc = time.UTC
	}
	if window <= 0 {
		window = DefaultStatsWindow
	}
	return &QueueService{
		DB:          db,
		Tickets:     tickets,
		Companies:   companies,
		Logger:      log,
		Location:    loc,
		StatsWindow: window,
		Now:         time.Now,
	}
}

func (s *QueueService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *QueueService) GetQueue(ctx context.Context, queueID string) (*models.Queue, error) {
	queue, err := s.DB.GetQueueByID(ctx, queueID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("queue", queueID)
	}
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load queue %s: %w", queueID, err))
	}
	return queue, nil
}

// GetTenantQueue loads a queue and checks it belongs to tenantID.
func (s *QueueService) GetTenantQueue(ctx context.Context, tenantID, queueID string) (*models.Queue, error) {
	queue, err := s.GetQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}
	if queue.TenantID != tenantID {
		// Do not reveal queues of other tenants.
		return nil, apperror.NotFound("queue", queueID)
	}
	return queue, nil
}

type CreateQueueInput struct {
	CompanyID          string `json:"companyId"`
	Name               string `json:"name"`
	Description        string `json:"description"`
	Category           string `json:"category"`
	Priority           int    `json:"priority"`
	AverageServiceTime int    `json:"averageServiceTime"`
}

func (s *QueueService) CreateQueue(ctx context.Context, tenantID string, in CreateQueueInput) (*models.Queue, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperror.Validation("name is required")
	}
	if in.AverageServiceTime < 0 {
		return nil, apperror.Validation("averageServiceTime must not be negative")
	}
	company, err := s.Companies.GetCompany(ctx, in.CompanyID)
	if err != nil {
		return nil, err
	}
	if company.TenantID != tenantID {
		return nil, apperror.NotFound("company", in.CompanyID)
	}
	if err := s.checkQueueLimit(ctx, tenantID); err != nil {
		return nil, err
	}

	now := s.now()
	queue := &models.Queue{
		ID:                 utils.GenerateID(),
		TenantID:           tenantID,
		CompanyID:          company.ID,
		Name:               in.Name,
		Description:        in.Description,
		Category:           in.Category,
		Priority:           in.Priority,
		IsActive:           true,
		AverageServiceTime: in.AverageServiceTime,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.DB.CreateQueue(ctx, queue); err != nil {
		return nil, apperror.Internal(fmt.Errorf("create queue: %w", err))
	}
	s.Logger.LogQueue("CREATE", queue.ID, fmt.Sprintf("%q for company %s", queue.Name, company.ID))
	return queue, nil
}

func (s *QueueService) checkQueueLimit(ctx context.Context, tenantID string) error {
	tenant, err := s.Companies.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if tenant.Settings.MaxQueues <= 0 {
		return nil
	}
	existing, err := s.DB.ListByTenant(ctx, tenantID)
	if err != nil {
		return apperror.Internal(fmt.Errorf("count tenant queues: %w", err))
	}
	if len(existing) >= tenant.Settings.MaxQueues {
		return apperror.Validation("tenant %s already has the maximum of %d queues", tenantID, tenant.Settings.MaxQueues)
	}
	return nil
}

type UpdateQueueInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Priority    *int    `json:"priority"`
	IsActive    *bool   `json:"isActive"`
}

func (s *QueueService) UpdateQueue(ctx context.Context, tenantID, queueID string, in UpdateQueueInput) (*models.Queue, error) {
	queue, err := s.GetTenantQueue(ctx, tenantID, queueID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperror.Validation("name must not be empty")
		}
		queue.Name = name
	}
	if in.Description != nil {
		queue.Description = *in.Description
	}
	if in.Category != nil {
		queue.Category = *in.Category
	}
	if in.Priority != nil {
		queue.Priority = *in.Priority
	}
	if in.IsActive != nil {
		queue.IsActive = *in.IsActive
	}
	queue.UpdatedAt = s.now()

	if err := s.DB.UpdateQueue(ctx, queue); err != nil {
		return nil, apperror.Internal(fmt.Errorf("update queue %s: %w", queueID, err))
	}
	s.Logger.LogQueue("UPDATE", queue.ID, fmt.Sprintf("active=%t", queue.IsActive))
	return queue, nil
}

func (s *QueueService) DeactivateQueue(ctx context.Context, tenantID, queueID string) (*models.Queue, error) {
	inactive := false
	return s.UpdateQueue(ctx, tenantID, queueID, UpdateQueueInput{IsActive: &inactive})
}

// ListForCompany returns the active queues customers can join.
func (s *QueueService) ListForCompany(ctx context.Context, companyID string) ([]models.Queue, error) {
	queues, err := s.DB.ListByCompany(ctx, companyID, true)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("list queues for company %s: %w", companyID, err))
	}
	return queues, nil
}

func (s *QueueService) ListForTenant(ctx context.Context, tenantID string) ([]models.Queue, error) {
	queues, err := s.DB.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("list queues for tenant %s: %w", tenantID, err))
	}
	return queues, nil
}

func (s *QueueService) WaitingCount(ctx context.Context, queueID string) (int, error) {
	n, err := s.Tickets.CountByStatus(ctx, queueID, models.StatusWaiting)
	if err != nil {
		return 0, apperror.Internal(fmt.Errorf("count waiting tickets: %w", err))
	}
	return n, nil
}

// RecordCompletion updates the queue's statistics after one of its tickets
// completed at the given instant.
func (s *QueueService) RecordCompletion(ctx context.Context, queue *models.Queue, at time.Time) error {
	day := utils.StartOfDay(at, s.Location)
	var errs []error

	if err := s.Tickets.IncrementProcessedCount(ctx, queue.ID, queue.TenantID, day); err != nil {
		errs = append(errs, fmt.Errorf("daily history: %w", err))
	}
	if err := s.DB.IncrementProcessedToday(ctx, queue.ID, at); err != nil {
		errs = append(errs, fmt.Errorf("processed today: %w", err))
	}
	if _, _, err := s.RefreshAverageServiceTime(ctx, queue.ID, at); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// refreshProcessedToday recounts the tickets completed since local midnight.
// Only an explicit refresh recounts; completions increment the counter so an
// admin reset holds until the next refresh.
func (s *QueueService) refreshProcessedToday(ctx context.Context, queueID string, at time.Time) (int, error) {
	n, err := s.Tickets.CountCompletedSince(ctx, queueID, utils.StartOfDay(at, s.Location))
	if err != nil {
		return 0, fmt.Errorf("count processed today: %w", err)
	}
	if err := s.DB.SetProcessedToday(ctx, queueID, n, at); err != nil {
		return 0, fmt.Errorf("store processed today: %w", err)
	}
	return n, nil
}

// RefreshAverageServiceTime recomputes the mean service time over the stats
// window. When no ticket completed in the window the stored value is kept
// and updated is false.
func (s *QueueService) RefreshAverageServiceTime(ctx context.Context, queueID string, at time.Time) (minutes int, updated bool, err error) {
	avg, n, err := s.Tickets.AverageServiceTime(ctx, queueID, at.Add(-s.StatsWindow))
	if err != nil {
		return 0, false, fmt.Errorf("average service time: %w", err)
	}
	if n == 0 {
		return 0, false, nil
	}
	minutes = int(math.Round(avg))
	if err := s.DB.SetAverageServiceTime(ctx, queueID, minutes, at); err != nil {
		return 0, false, fmt.Errorf("store average service time: %w", err)
	}
	return minutes, true, nil
}

// RefreshStatistics recomputes both counters of a tenant's queue on demand.
func (s *QueueService) RefreshStatistics(ctx context.Context, tenantID, queueID string) (*models.Queue, error) {
	if _, err := s.GetTenantQueue(ctx, tenantID, queueID); err != nil {
		return nil, err
	}
	at := s.now()
	if _, err := s.refreshProcessedToday(ctx, queueID, at); err != nil {
		return nil, apperror.Internal(err)
	}
	if _, _, err := s.RefreshAverageServiceTime(ctx, queueID, at); err != nil {
		return nil, apperror.Internal(err)
	}
	return s.GetQueue(ctx, queueID)
}

// ResetDailyCounters zeroes totalProcessedToday on every queue.
func (s *QueueService) ResetDailyCounters(ctx context.Context) (int, error) {
	n, err := s.DB.ResetProcessedToday(ctx, s.now())
	if err != nil {
		return 0, apperror.Internal(fmt.Errorf("reset daily counters: %w", err))
	}
	s.Logger.LogJob("daily-reset", fmt.Sprintf("reset %d queue counters", n))
	return n, nil
}

// ResetQueueCounter zeroes one tenant queue's daily counter.
func (s *QueueService) ResetQueueCounter(ctx context.Context, tenantID, queueID string) (*models.Queue, error) {
	queue, err := s.GetTenantQueue(ctx, tenantID, queueID)
	if err != nil {
		return nil, err
	}
	if err := s.DB.SetProcessedToday(ctx, queueID, 0, s.now()); err != nil {
		return nil, apperror.Internal(fmt.Errorf("reset queue %s: %w", queueID, err))
	}
	queue.TotalProcessedToday = 0
	s.Logger.LogQueue("RESET", queueID, "daily counter reset by admin")
	return queue, nil
}
