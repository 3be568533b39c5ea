package queue_api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JhonAQ/te-toca-web-sub000/internal/auth"
	"github.com/JhonAQ/te-toca-web-sub000/internal/logger"
	queues "github.com/JhonAQ/te-toca-web-sub000/internal/queues/service"
	"github.com/JhonAQ/te-toca-web-sub000/internal/sse"
	"github.com/JhonAQ/te-toca-web-sub000/internal/utils"
)

type Handler struct {
	QueueService *queues.QueueService
	Emitter      *sse.QueueEventEmitter
	Logger       *logger.Logger
}

func NewHandler(queueService *queues.QueueService, emitter *sse.QueueEventEmitter, log *logger.Logger) *Handler {
	return &Handler{QueueService: queueService, Emitter: emitter, Logger: log}
}

func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/{queueId}/status", h.GetStatus)
	r.Get("/{queueId}/events", h.HandleQueueEvents)
}

// AdminRoutes are tenant scoped; the tenant comes from the admin's token.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/", h.ListQueues)
	r.Post("/", h.CreateQueue)
	r.Patch("/{queueId}", h.UpdateQueue)
	r.Delete("/{queueId}", h.DeactivateQueue)
	r.Post("/{queueId}/reset-daily", h.ResetDaily)
	r.Post("/{queueId}/refresh-stats", h.RefreshStats)
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.QueueService.Status(r.Context(), chi.URLParam(r, "queueId"))
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", status)
}

func tenantOf(r *http.Request) string {
	if p := auth.FromContext(r.Context()); p != nil {
		return p.TenantID
	}
	return ""
}

func (h *Handler) ListQueues(w http.ResponseWriter, r *http.Request) {
	list, err := h.QueueService.ListForTenant(r.Context(), tenantOf(r))
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", list)
}

func (h *Handler) CreateQueue(w http.ResponseWriter, r *http.Request) {
	var in queues.CreateQueueInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	queue, err := h.QueueService.CreateQueue(r.Context(), tenantOf(r), in)
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Queue created", queue)
}

func (h *Handler) UpdateQueue(w http.ResponseWriter, r *http.Request) {
	var in queues.UpdateQueueInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	queue, err := h.QueueService.UpdateQueue(r.Context(), tenantOf(r), chi.URLParam(r, "queueId"), in)
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Queue updated", queue)
}

func (h *Handler) DeactivateQueue(w http.ResponseWriter, r *http.Request) {
	queue, err := h.QueueService.DeactivateQueue(r.Context(), tenantOf(r), chi.URLParam(r, "queueId"))
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Queue deactivated", queue)
}

func (h *Handler) ResetDaily(w http.ResponseWriter, r *http.Request) {
	queue, err := h.QueueService.ResetQueueCounter(r.Context(), tenantOf(r), chi.URLParam(r, "queueId"))
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Daily counter reset", queue)
}

func (h *Handler) RefreshStats(w http.ResponseWriter, r *http.Request) {
	queue, err := h.QueueService.RefreshStatistics(r.Context(), tenantOf(r), chi.URLParam(r, "queueId"))
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Statistics refreshed", queue)
}
