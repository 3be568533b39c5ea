package ticket_api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JhonAQ/te-toca-web-sub000/internal/apperror"
	"github.com/JhonAQ/te-toca-web-sub000/internal/auth"
	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
	"github.com/JhonAQ/te-toca-web-sub000/internal/tickets/qr"
	tickets "github.com/JhonAQ/te-toca-web-sub000/internal/tickets/service"
	"github.com/JhonAQ/te-toca-web-sub000/internal/utils"
)

// OperatorResponse is the body of every successful operator action.
type OperatorResponse struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Ticket    *models.Ticket `json:"ticket"`
	Timestamp time.Time      `json:"timestamp"`
}

type operatorRequest struct {
	TicketID string `json:"ticketId"`
	QueueID  string `json:"queueId"`
	Notes    string `json:"notes"`
	Reason   string `json:"reason"`
}

// OperatorRoutes require a worker principal.
func (h *Handler) OperatorRoutes(r chi.Router) {
	r.Post("/issue-ticket", h.IssueTicket)
	r.Post("/call-customer", h.CallCustomer)
	r.Post("/start-attention", h.ticketAction("Attention started", func(h *Handler, r *http.Request, req operatorRequest) (*models.Ticket, error) {
		return h.TicketService.Start(r.Context(), auth.UserID(r.Context()), req.TicketID)
	}))
	r.Post("/finish-attention", h.ticketAction("Attention finished", func(h *Handler, r *http.Request, req operatorRequest) (*models.Ticket, error) {
		return h.TicketService.Finish(r.Context(), auth.UserID(r.Context()), req.TicketID, req.Notes)
	}))
	r.Post("/skip-turn", h.ticketAction("Turn skipped", func(h *Handler, r *http.Request, req operatorRequest) (*models.Ticket, error) {
		return h.TicketService.Skip(r.Context(), auth.UserID(r.Context()), req.TicketID, req.Reason)
	}))
	r.Post("/cancel-ticket", h.ticketAction("Ticket cancelled", func(h *Handler, r *http.Request, req operatorRequest) (*models.Ticket, error) {
		return h.TicketService.Cancel(r.Context(), req.TicketID, tickets.CancelInput{
			ByWorkerID: auth.UserID(r.Context()),
			Reason:     req.Reason,
		})
	}))
	r.Post("/pause-ticket", h.ticketAction("Ticket paused", func(h *Handler, r *http.Request, req operatorRequest) (*models.Ticket, error) {
		return h.TicketService.Pause(r.Context(), auth.UserID(r.Context()), req.TicketID, req.Reason)
	}))
	r.Post("/resume-ticket", h.ticketAction("Ticket resumed", func(h *Handler, r *http.Request, req operatorRequest) (*models.Ticket, error) {
		return h.TicketService.Resume(r.Context(), auth.UserID(r.Context()), req.TicketID)
	}))
	r.Post("/select-skipped-ticket", h.ticketAction("Skipped ticket selected", func(h *Handler, r *http.Request, req operatorRequest) (*models.Ticket, error) {
		return h.TicketService.SelectSkipped(r.Context(), auth.UserID(r.Context()), req.TicketID)
	}))
	r.Get("/next-ticket", h.NextTicket)
	r.Get("/queue-status", h.QueueStatus)
	r.Get("/queue-details", h.QueueDetails)
	r.Get("/skipped-tickets", h.SkippedTickets)
	r.Post("/scan", h.ScanTicket)
}

func writeTicket(w http.ResponseWriter, status int, message string, ticket *models.Ticket) {
	utils.WriteJSON(w, status, OperatorResponse{
		Success:   true,
		Message:   message,
		Ticket:    ticket,
		Timestamp: time.Now(),
	})
}

type operatorFunc func(h *Handler, r *http.Request, req operatorRequest) (*models.Ticket, error)

// ticketAction decodes {ticketId, notes, reason} and runs op on it.
func (h *Handler) ticketAction(message string, op operatorFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req operatorRequest
		if err := utils.DecodeJSON(r, &req); err != nil {
			utils.WriteRequestError(w, r, h.Logger, err)
			return
		}
		if req.TicketID == "" {
			utils.WriteRequestError(w, r, h.Logger, apperror.Validation("ticketId is required"))
			return
		}
		ticket, err := op(h, r, req)
		if err != nil {
			utils.WriteRequestError(w, r, h.Logger, err)
			return
		}
		writeTicket(w, http.StatusOK, message, ticket)
	}
}

// IssueTicket creates an anonymous ticket for a walk-in customer at the desk.
func (h *Handler) IssueTicket(w http.ResponseWriter, r *http.Request) {
	var in tickets.CreateTicketInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	ticket, err := h.TicketService.IssueWalkIn(r.Context(), auth.UserID(r.Context()), in)
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	writeTicket(w, http.StatusCreated, fmt.Sprintf("Ticket %s issued", ticket.Number), ticket)
}

// CallCustomer calls the given ticket, or the head of queueId when no ticket is named.
func (h *Handler) CallCustomer(w http.ResponseWriter, r *http.Request) {
	var req operatorRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	workerID := auth.UserID(r.Context())

	var (
		ticket *models.Ticket
		err    error
	)
	switch {
	case req.TicketID != "":
		ticket, err = h.TicketService.Call(r.Context(), workerID, req.TicketID)
	case req.QueueID != "":
		ticket, err = h.TicketService.CallNext(r.Context(), workerID, req.QueueID)
	default:
		err = apperror.Validation("ticketId or queueId is required")
	}
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	writeTicket(w, http.StatusOK, fmt.Sprintf("Calling ticket %s", ticket.Number), ticket)
}

func (h *Handler) NextTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.TicketService.GetNextTicketInQueue(r.Context(), auth.UserID(r.Context()), r.URL.Query().Get("queueId"))
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	message := "Next ticket"
	if ticket == nil {
		message = "No tickets waiting"
	}
	writeTicket(w, http.StatusOK, message, ticket)
}

func (h *Handler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	queue, err := h.TicketService.QueueForWorker(r.Context(), auth.UserID(r.Context()), r.URL.Query().Get("queueId"), models.ActionView)
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	status, err := h.QueueService.Status(r.Context(), queue.ID)
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", status)
}

func (h *Handler) QueueDetails(w http.ResponseWriter, r *http.Request) {
	queue, err := h.TicketService.QueueForWorker(r.Context(), auth.UserID(r.Context()), r.URL.Query().Get("queueId"), models.ActionView)
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	details, err := h.QueueService.Details(r.Context(), queue)
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", details)
}

func (h *Handler) SkippedTickets(w http.ResponseWriter, r *http.Request) {
	list, err := h.TicketService.ListSkipped(r.Context(), auth.UserID(r.Context()), r.URL.Query().Get("queueId"))
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	if list == nil {
		list = []models.Ticket{}
	}
	utils.WriteSuccess(w, http.StatusOK, "", list)
}

// ScanTicket resolves an encrypted QR payload to the ticket it names.
// Expected POST request body: {"encrypted_qr": "..."}
func (h *Handler) ScanTicket(w http.ResponseWriter, r *http.Request) {
	var body struct {
		EncryptedQR string `json:"encrypted_qr"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	if body.EncryptedQR == "" {
		utils.WriteRequestError(w, r, h.Logger, apperror.Validation("encrypted_qr is required"))
		return
	}

	payload, err := h.QRGenerator.DecryptQRData(body.EncryptedQR)
	if errors.Is(err, qr.ErrInvalidPayload) {
		h.Logger.LogSecurity("QR_REJECTED", fmt.Sprintf("worker %s scanned an invalid code", auth.UserID(r.Context())))
		utils.WriteRequestError(w, r, h.Logger, apperror.Validation("invalid QR code"))
		return
	}
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, apperror.Internal(err))
		return
	}

	ticket, err := h.TicketService.GetTicket(r.Context(), payload.TicketID)
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	if _, err := h.TicketService.QueueForWorker(r.Context(), auth.UserID(r.Context()), ticket.QueueID, models.ActionView); err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}
	writeTicket(w, http.StatusOK, fmt.Sprintf("Ticket %s", ticket.Number), ticket)
}
