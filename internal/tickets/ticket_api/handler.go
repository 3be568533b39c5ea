package ticket_api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JhonAQ/te-toca-web-sub000/internal/apperror"
	"github.com/JhonAQ/te-toca-web-sub000/internal/auth"
	"github.com/JhonAQ/te-toca-web-sub000/internal/logger"
	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
	queues "github.com/JhonAQ/te-toca-web-sub000/internal/queues/service"
	"github.com/JhonAQ/te-toca-web-sub000/internal/tickets/qr"
	tickets "github.com/JhonAQ/te-toca-web-sub000/internal/tickets/service"
	"github.com/JhonAQ/te-toca-web-sub000/internal/tickets/slip"
	"github.com/JhonAQ/te-toca-web-sub000/internal/utils"
)

type Handler struct {
	TicketService *tickets.TicketService
	QueueService  *queues.QueueService
	QRGenerator   *qr.QRGenerator
	Slips         *slip.Generator
	Logger        *logger.Logger
}

func NewHandler(ticketService *tickets.TicketService, queueService *queues.QueueService, qrGen *qr.QRGenerator, slips *slip.Generator, log *logger.Logger) *Handler {
	return &Handler{
		TicketService: ticketService,
		QueueService:  queueService,
		QRGenerator:   qrGen,
		Slips:         slips,
		Logger:        log,
	}
}

// TicketView is a ticket with its live place in the queue.
type TicketView struct {
	*models.Ticket
	LivePosition int `json:"livePosition"`
	LiveETA      int `json:"liveEstimatedWaitTime"`
}

func (h *Handler) view(r *http.Request, ticket *models.Ticket) TicketView {
	v := TicketView{Ticket: ticket}
	pos, eta, err := h.QueueService.LivePosition(r.Context(), ticket)
	if err != nil {
		h.Logger.Warn("TICKET", fmt.Sprintf("failed to compute live position of %s: %v", ticket.Number, err))
		return v
	}
	v.LivePosition, v.LiveETA = pos, eta
	return v
}

// PublicTicketView is what anyone holding a ticket number may see.
type PublicTicketView struct {
	Number       string                `json:"number"`
	QueueID      string                `json:"queueId"`
	Status       models.TicketStatus   `json:"status"`
	Priority     models.TicketPriority `json:"priority"`
	CreatedAt    time.Time             `json:"createdAt"`
	CalledAt     *time.Time            `json:"calledAt,omitempty"`
	LivePosition int                   `json:"livePosition"`
	LiveETA      int                   `json:"liveEstimatedWaitTime"`
}

func publicView(v TicketView) PublicTicketView {
	return PublicTicketView{
		Number:       v.Number,
		QueueID:      v.QueueID,
		Status:       v.Status,
		Priority:     v.Priority,
		CreatedAt:    v.CreatedAt,
		CalledAt:     v.CalledAt,
		LivePosition: v.LivePosition,
		LiveETA:      v.LiveETA,
	}
}

// canViewDetails reports whether the caller may see the full ticket record:
// its owner, a worker allowed on its queue, or an admin of its tenant.
func (h *Handler) canViewDetails(r *http.Request, ticket *models.Ticket) bool {
	p := auth.FromContext(r.Context())
	switch {
	case p == nil:
		return false
	case p.IsAdmin():
		return p.TenantID != "" && p.TenantID == ticket.TenantID
	case p.Type == auth.TypeUser:
		return ticket.UserID != "" && ticket.UserID == p.ID
	case p.Type == auth.TypeWorker:
		_, err := h.TicketService.Workers.AuthorizeTicketAction(r.Context(), p.ID, ticket, models.ActionView)
		return err == nil
	}
	return false
}

// PublicRoutes are reachable without authentication. Callers who cannot see
// the full record get PublicTicketView and a slip without customer data.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/{ticketRef}", h.GetTicket)
	r.Get("/{ticketRef}/qr", h.GetTicketQR)
	r.Get("/{ticketRef}/slip", h.GetTicketSlip)
}

// CustomerRoutes require a user principal.
func (h *Handler) CustomerRoutes(r chi.Router) {
	r.Post("/", h.CreateTicket)
	r.Get("/mine", h.ListMyTickets)
	r.Post("/{ticketRef}/cancel", h.CancelTicket)
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.TicketService.GetTicket(r.Context(), chi.URLParam(r, "ticketRef"))
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	v := h.view(r, ticket)
	if !h.canViewDetails(r, ticket) {
		utils.WriteSuccess(w, http.StatusOK, "", publicView(v))
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", v)
}

func (h *Handler) GetTicketQR(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.TicketService.GetTicket(r.Context(), chi.URLParam(r, "ticketRef"))
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	png, err := h.QRGenerator.GenerateEncryptedQR(ticket, time.Now())
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, apperror.Internal(err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *Handler) GetTicketSlip(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.TicketService.GetTicket(r.Context(), chi.URLParam(r, "ticketRef"))
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	queue, err := h.QueueService.GetQueue(r.Context(), ticket.QueueID)
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	png, err := h.QRGenerator.GenerateEncryptedQR(ticket, time.Now())
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, apperror.Internal(err))
		return
	}
	printed := *ticket
	if !h.canViewDetails(r, ticket) {
		printed.CustomerName, printed.CustomerPhone, printed.CustomerEmail = "", "", ""
	}
	pdf, err := h.Slips.Generate(&printed, queue.Name, png)
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, apperror.Internal(err))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", "ticket-"+ticket.Number+".pdf"))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

func (h *Handler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	var in tickets.CreateTicketInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	in.UserID = auth.UserID(r.Context())

	ticket, err := h.TicketService.Create(r.Context(), in)
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Ticket created", TicketView{
		Ticket:       ticket,
		LivePosition: ticket.Position,
		LiveETA:      ticket.EstimatedWaitTime,
	})
}

func (h *Handler) ListMyTickets(w http.ResponseWriter, r *http.Request) {
	list, err := h.TicketService.ListByUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	views := make([]TicketView, 0, len(list))
	for i := range list {
		views = append(views, h.view(r, &list[i]))
	}
	utils.WriteSuccess(w, http.StatusOK, "", views)
}

func (h *Handler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 {
		if err := utils.DecodeJSON(r, &body); err != nil {
			utils.WriteRequestError(w, r, h.Logger, err)
			return
		}
	}
	ticket, err := h.TicketService.Cancel(r.Context(), chi.URLParam(r, "ticketRef"), tickets.CancelInput{
		ByUserID: auth.UserID(r.Context()),
		Reason:   body.Reason,
	})
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Ticket cancelled", ticket)
}
