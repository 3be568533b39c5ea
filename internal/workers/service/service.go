package workers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JhonAQ/te-toca-web-sub000/internal/apperror"
	"github.com/JhonAQ/te-toca-web-sub000/internal/auth"
	"github.com/JhonAQ/te-toca-web-sub000/internal/logger"
	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
	"github.com/JhonAQ/te-toca-web-sub000/internal/utils"
)

type WorkerDBLayer interface {
	CreateWorker(ctx context.Context, worker *models.Worker) error
	GetWorkerByID(ctx context.Context, id string) (*models.Worker, error)
	GetWorkerByUsername(ctx context.Context, tenantID, username string) (*models.Worker, error)
	ListByTenant(ctx context.Context, tenantID string) ([]models.Worker, error)
	SetPaused(ctx context.Context, id string, paused bool, at time.Time) error
	SetCurrentQueue(ctx context.Context, id, queueID string, at time.Time) error
}

type WorkerService struct {
	DB     WorkerDBLayer
	Logger *logger.Logger
	Now    func() time.Time
}

func NewWorkerService(db WorkerDBLayer, log *logger.Logger) *WorkerService {
	return &WorkerService{DB: db, Logger: log, Now: time.Now}
}

func (s *WorkerService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *WorkerService) GetWorker(ctx context.Context, workerID string) (*models.Worker, error) {
	worker, err := s.DB.GetWorkerByID(ctx, workerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("worker", workerID)
	}
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load worker %s: %w", workerID, err))
	}
	return worker, nil
}

// authorize applies the tenant, activity, pause and permission rules.
func (s *WorkerService) authorize(ctx context.Context, workerID, tenantID, queueID string, action models.Action) (*models.Worker, error) {
	worker, err := s.GetWorker(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if worker.TenantID != tenantID {
		s.Logger.LogSecurity("CROSS_TENANT", fmt.Sprintf("worker %s (tenant %s) tried %s on tenant %s", worker.ID, worker.TenantID, action, tenantID))
		return nil, apperror.Forbidden("worker %s cannot act on another tenant's queues", worker.ID)
	}
	if !worker.IsActive {
		return nil, apperror.Forbidden("worker %s is not active", worker.ID)
	}
	if action == models.ActionCall && worker.IsPaused {
		return nil, apperror.Forbidden("worker %s is paused and cannot call tickets", worker.ID)
	}
	if !worker.Permissions.AllowsQueue(queueID) {
		return nil, apperror.Forbidden("worker %s is not assigned to queue %s", worker.ID, queueID)
	}
	if action != models.ActionView && !worker.Permissions.AllowsAction(action) {
		return nil, apperror.Forbidden("worker %s is not allowed to %s tickets", worker.ID, action)
	}
	return worker, nil
}

func (s *WorkerService) AuthorizeTicketAction(ctx context.Context, workerID string, ticket *models.Ticket, action models.Action) (*models.Worker, error) {
	return s.authorize(ctx, workerID, ticket.TenantID, ticket.QueueID, action)
}

func (s *WorkerService) AuthorizeQueue(ctx context.Context, workerID string, queue *models.Queue, action models.Action) (*models.Worker, error) {
	return s.authorize(ctx, workerID, queue.TenantID, queue.ID, action)
}

func (s *WorkerService) SetCurrentQueue(ctx context.Context, workerID, queueID string) error {
	if err := s.DB.SetCurrentQueue(ctx, workerID, queueID, s.now()); err != nil {
		return apperror.Internal(fmt.Errorf("set current queue of worker %s: %w", workerID, err))
	}
	return nil
}

// TogglePause flips the worker's paused flag and returns the updated worker.
func (s *WorkerService) TogglePause(ctx context.Context, workerID string) (*models.Worker, error) {
	worker, err := s.GetWorker(ctx, workerID)
	if err != nil {
		return nil, err
	}
	worker.IsPaused = !worker.IsPaused
	worker.UpdatedAt = s.now()
	if err := s.DB.SetPaused(ctx, worker.ID, worker.IsPaused, worker.UpdatedAt); err != nil {
		return nil, apperror.Internal(fmt.Errorf("toggle pause of worker %s: %w", workerID, err))
	}
	s.Logger.Info("WORKER", fmt.Sprintf("worker %s paused=%t", worker.ID, worker.IsPaused))
	return worker, nil
}

// Authenticate checks a worker's credentials within a tenant.
func (s *WorkerService) Authenticate(ctx context.Context, tenantID, username, password string) (*models.Worker, error) {
	worker, err := s.DB.GetWorkerByUsername(ctx, tenantID, strings.TrimSpace(username))
	if errors.Is(err, sql.ErrNoRows) {
		s.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("unknown worker %q in tenant %s", username, tenantID))
		return nil, apperror.Unauthorized("invalid credentials")
	}
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load worker %s: %w", username, err))
	}
	if !auth.CheckPassword(worker.PasswordHash, password) {
		s.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("bad password for worker %s", worker.ID))
		return nil, apperror.Unauthorized("invalid credentials")
	}
	if !worker.IsActive {
		return nil, apperror.Forbidden("worker %s is not active", worker.ID)
	}
	return worker, nil
}

type CreateWorkerInput struct {
	Name        string                   `json:"name"`
	Username    string                   `json:"username"`
	Password    string                   `json:"password"`
	Role        models.WorkerRole        `json:"role"`
	Permissions models.WorkerPermissions `json:"permissions"`
}

func (s *WorkerService) CreateWorker(ctx context.Context, tenantID string, in CreateWorkerInput) (*models.Worker, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Username = strings.TrimSpace(in.Username)
	if in.Name == "" || in.Username == "" {
		return nil, apperror.Validation("name and username are required")
	}
	if len(in.Password) < 8 {
		return nil, apperror.Validation("password must have at least 8 characters")
	}
	switch in.Role {
	case "":
		in.Role = models.RoleOperator
	case models.RoleOperator, models.RoleSupervisor, models.RoleAdmin:
	default:
		return nil, apperror.Validation("unknown role %q", in.Role)
	}

	_, err := s.DB.GetWorkerByUsername(ctx, tenantID, in.Username)
	if err == nil {
		return nil, apperror.Validation("username %q is already taken", in.Username)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.Internal(fmt.Errorf("check username: %w", err))
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("hash password: %w", err))
	}
	now := s.now()
	worker := &models.Worker{
		ID:           utils.GenerateID(),
		TenantID:     tenantID,
		Name:         in.Name,
		Username:     in.Username,
		PasswordHash: hash,
		Role:         in.Role,
		Permissions:  in.Permissions,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.DB.CreateWorker(ctx, worker); err != nil {
		return nil, apperror.Internal(fmt.Errorf("create worker: %w", err))
	}
	s.Logger.Info("WORKER", fmt.Sprintf("created worker %s (%s) in tenant %s", worker.ID, worker.Role, tenantID))
	return worker, nil
}

func (s *WorkerService) ListWorkers(ctx context.Context, tenantID string) ([]models.Worker, error) {
	workers, err := s.DB.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("list workers: %w", err))
	}
	return workers, nil
}
