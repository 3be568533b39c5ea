package analytics_api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JhonAQ/te-toca-web-sub000/internal/analytics"
	"github.com/JhonAQ/te-toca-web-sub000/internal/apperror"
	"github.com/JhonAQ/te-toca-web-sub000/internal/auth"
	"github.com/JhonAQ/te-toca-web-sub000/internal/logger"
	"github.com/JhonAQ/te-toca-web-sub000/internal/utils"
)

// Handler handles analytics HTTP endpoints
type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
}

func NewHandler(service *analytics.Service, logger *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: logger}
}

// RegisterRoutes registers the analytics routes on an admin router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/analytics/queues/{queueId}", h.GetQueueAnalytics)
}

// GetQueueAnalytics accepts optional from/to dates (YYYY-MM-DD, to exclusive).
func (h *Handler) GetQueueAnalytics(w http.ResponseWriter, r *http.Request) {
	from, to := h.Service.DefaultRange()
	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.ParseInLocation("2006-01-02", v, h.Service.Location); err != nil {
			utils.WriteRequestError(w, r, h.Logger, apperror.Validation("invalid from date %q", v))
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.ParseInLocation("2006-01-02", v, h.Service.Location); err != nil {
			utils.WriteRequestError(w, r, h.Logger, apperror.Validation("invalid to date %q", v))
			return
		}
	}

	tenantID := ""
	if p := auth.FromContext(r.Context()); p != nil {
		tenantID = p.TenantID
	}
	report, err := h.Service.QueueReport(r.Context(), tenantID, chi.URLParam(r, "queueId"), from, to)
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", report)
}
