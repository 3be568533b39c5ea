package company_api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JhonAQ/te-toca-web-sub000/internal/auth"
	companies "github.com/JhonAQ/te-toca-web-sub000/internal/companies/service"
	"github.com/JhonAQ/te-toca-web-sub000/internal/logger"
	queues "github.com/JhonAQ/te-toca-web-sub000/internal/queues/service"
	"github.com/JhonAQ/te-toca-web-sub000/internal/utils"
)

type Handler struct {
	CompanyService *companies.CompanyService
	QueueService   *queues.QueueService
	Logger         *logger.Logger
}

func NewHandler(companyService *companies.CompanyService, queueService *queues.QueueService, log *logger.Logger) *Handler {
	return &Handler{CompanyService: companyService, QueueService: queueService, Logger: log}
}

// PublicRoutes serve the customer company picker.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/", h.ListCompanies)
	r.Get("/{companyId}/queues", h.ListCompanyQueues)
}

func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/", h.ListTenantCompanies)
	r.Post("/", h.CreateCompany)
	r.Patch("/{companyId}", h.UpdateCompany)
}

func (h *Handler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	list, err := h.CompanyService.ListPublic(r.Context())
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", list)
}

func (h *Handler) ListCompanyQueues(w http.ResponseWriter, r *http.Request) {
	company, err := h.CompanyService.GetCompany(r.Context(), chi.URLParam(r, "companyId"))
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	list, err := h.QueueService.ListForCompany(r.Context(), company.ID)
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", list)
}

func tenantOf(r *http.Request) string {
	if p := auth.FromContext(r.Context()); p != nil {
		return p.TenantID
	}
	return ""
}

func (h *Handler) ListTenantCompanies(w http.ResponseWriter, r *http.Request) {
	list, err := h.CompanyService.ListForTenant(r.Context(), tenantOf(r))
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", list)
}

func (h *Handler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var in companies.CompanyInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	company, err := h.CompanyService.CreateCompany(r.Context(), tenantOf(r), in)
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Company created", company)
}

func (h *Handler) UpdateCompany(w http.ResponseWriter, r *http.Request) {
	var in companies.CompanyInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	company, err := h.CompanyService.UpdateCompany(r.Context(), tenantOf(r), chi.URLParam(r, "companyId"), in)
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Company updated", company)
}
