package queue_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JhonAQ/te-toca-web-sub000/internal/apperror"
	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
	"github.com/JhonAQ/te-toca-web-sub000/internal/utils"
)

// heartbeatInterval keeps idle connections open through proxies.
const heartbeatInterval = 25 * time.Second

// HandleQueueEvents streams queue events to display boards. With ?ticketId=
// only that ticket's events are sent.
func (h *Handler) HandleQueueEvents(w http.ResponseWriter, r *http.Request) {
	queueID := chi.URLParam(r, "queueId")
	queue, err := h.QueueService.GetQueue(r.Context(), queueID)
	if err != nil {
		utils.WriteRequestError(w, r, h.Logger, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteRequestError(w, r, h.Logger, apperror.Internal(fmt.Errorf("streaming unsupported")))
		return
	}

	setupSSEHeaders(w)
	ctx := r.Context()

	var events <-chan models.QueueEvent
	if ticketID := r.URL.Query().Get("ticketId"); ticketID != "" {
		events = h.Emitter.SubscribeToTicket(ctx, ticketID)
	} else {
		events = h.Emitter.SubscribeToQueue(ctx, queue.ID)
	}

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"queueId\":%q}\n\n", queue.ID)
	flusher.Flush()
	h.Logger.Info("SSE", fmt.Sprintf("Client connected to queue events for queue: %s", queue.ID))

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				h.Logger.Debug("SSE", fmt.Sprintf("Channel closed for queue: %s", queue.ID))
				return
			}
			if event.QueueID != queue.ID {
				continue
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize queue event: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from queue events for: %s", queue.ID))
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Accel-Buffering", "no")
}
