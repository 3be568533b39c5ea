package worker_api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JhonAQ/te-toca-web-sub000/internal/apperror"
	"github.com/JhonAQ/te-toca-web-sub000/internal/auth"
	"github.com/JhonAQ/te-toca-web-sub000/internal/logger"
	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
	"github.com/JhonAQ/te-toca-web-sub000/internal/utils"
	workers "github.com/JhonAQ/te-toca-web-sub000/internal/workers/service"
)

type Handler struct {
	WorkerService *workers.WorkerService
	Revocations   *auth.RevocationList
	Secret        []byte
	TokenTTL      time.Duration
	Logger        *logger.Logger
	Now           func() time.Time
}

func NewHandler(workerService *workers.WorkerService, revocations *auth.RevocationList, secret []byte, ttl time.Duration, log *logger.Logger) *Handler {
	return &Handler{
		WorkerService: workerService,
		Revocations:   revocations,
		Secret:        secret,
		TokenTTL:      ttl,
		Logger:        log,
		Now:           time.Now,
	}
}

type loginRequest struct {
	TenantID string `json:"tenantId"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string         `json:"accessToken"`
	TokenType   string         `json:"tokenType"`
	ExpiresAt   time.Time      `json:"expiresAt"`
	Worker      *models.Worker `json:"worker"`
}

// AuthRoutes are mounted under /api/auth.
func (h *Handler) AuthRoutes(r chi.Router) {
	r.Post("/workers/login", h.Login)
	r.Post("/logout", h.Logout)
}

// OperatorRoutes are mounted with the ticket operator routes.
func (h *Handler) OperatorRoutes(r chi.Router) {
	r.Post("/toggle-pause", h.TogglePause)
}

func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/", h.ListWorkers)
	r.Post("/", h.CreateWorker)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	if req.TenantID == "" || req.Username == "" || req.Password == "" {
		utils.WriteRequestError(w, r, h.Logger, apperror.Validation("tenantId, username and password are required"))
		return
	}

	worker, err := h.WorkerService.Authenticate(r.Context(), req.TenantID, req.Username, req.Password)
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	principal := auth.Principal{ID: worker.ID, TenantID: worker.TenantID, Role: string(worker.Role), Type: auth.TypeWorker}
	token, expires, err := auth.IssueToken(h.Secret, principal, h.TokenTTL, h.Now())
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, apperror.Internal(err))
		return
	}

	h.Logger.Info("AUTH", fmt.Sprintf("worker %s logged in to tenant %s", worker.ID, worker.TenantID))
	utils.WriteSuccess(w, http.StatusOK, "Login successful", LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expires,
		Worker:      worker,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	if p == nil {
		utils.WriteRequestError(w, r, h.Logger, apperror.Unauthorized("authentication required"))
		return
	}
	expires := p.ExpiresAt
	if expires.IsZero() {
		expires = h.Now().Add(h.TokenTTL)
	}
	if err := h.Revocations.Revoke(r.Context(), p.TokenID, expires); err != nil {
		utils.WriteRequestError(w, r, h.Logger, apperror.Internal(err))
		return
	}
	h.Logger.Info("AUTH", fmt.Sprintf("%s %s logged out", p.Type, p.ID))
	utils.WriteSuccess(w, http.StatusOK, "Logged out", nil)
}

func (h *Handler) TogglePause(w http.ResponseWriter, r *http.Request) {
	worker, err := h.WorkerService.TogglePause(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	message := "Worker resumed"
	if worker.IsPaused {
		message = "Worker paused"
	}
	utils.WriteSuccess(w, http.StatusOK, message, worker)
}

func tenantOf(r *http.Request) string {
	if p := auth.FromContext(r.Context()); p != nil {
		return p.TenantID
	}
	return ""
}

func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	list, err := h.WorkerService.ListWorkers(r.Context(), tenantOf(r))
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", list)
}

func (h *Handler) CreateWorker(w http.ResponseWriter, r *http.Request) {
	var in workers.CreateWorkerInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	worker, err := h.WorkerService.CreateWorker(r.Context(), tenantOf(r), in)
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Worker created", worker)
}
