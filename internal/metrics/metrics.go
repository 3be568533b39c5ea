package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TicketsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_tickets_created_total",
		Help: "Tickets issued, by priority.",
	}, []string{"priority"})

	TicketTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_ticket_transitions_total",
		Help: "Ticket lifecycle operations, by action and outcome.",
	}, []string{"action", "outcome"})

	NumberCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queue_ticket_number_collisions_total",
		Help: "Generated ticket numbers rejected because they were taken.",
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route pattern and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// ObserveTransition records one lifecycle operation.
func ObserveTransition(action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	TicketTransitions.WithLabelValues(action, outcome).Inc()
}

// Middleware records request counts and latency labelled by the chi route
// pattern, so path parameters do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
