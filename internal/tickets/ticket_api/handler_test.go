package ticket_api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"github.com/JhonAQ/te-toca-web-sub000/internal/apperror"
	"github.com/JhonAQ/te-toca-web-sub000/internal/auth"
	"github.com/JhonAQ/te-toca-web-sub000/internal/logger"
	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
	queuedb "github.com/JhonAQ/te-toca-web-sub000/internal/queues/db"
	queues "github.com/JhonAQ/te-toca-web-sub000/internal/queues/service"
	ticketdb "github.com/JhonAQ/te-toca-web-sub000/internal/tickets/db"
	"github.com/JhonAQ/te-toca-web-sub000/internal/tickets/qr"
	tickets "github.com/JhonAQ/te-toca-web-sub000/internal/tickets/service"
	"github.com/JhonAQ/te-toca-web-sub000/internal/tickets/slip"
	"github.com/JhonAQ/te-toca-web-sub000/internal/tickets/ticket_api"
	workerdb "github.com/JhonAQ/te-toca-web-sub000/internal/workers/db"
	workers "github.com/JhonAQ/te-toca-web-sub000/internal/workers/service"
)

var secret = []byte("handler-test-secret")

type noCompanies struct{}

func (noCompanies) GetCompany(_ context.Context, id string) (*models.Company, error) {
	return nil, apperror.NotFound("company", id)
}

func (noCompanies) GetTenant(_ context.Context, id string) (*models.Tenant, error) {
	return nil, apperror.NotFound("tenant", id)
}

type server struct {
	router  http.Handler
	qr      *qr.QRGenerator
	tickets *tickets.TicketService
	workerA string
	workerB string
}

func setupServer(t *testing.T) *server {
	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	ctx := context.Background()
	for _, m := range []interface{}{
		(*models.Queue)(nil),
		(*models.Ticket)(nil),
		(*models.QueueDailyCount)(nil),
		(*models.User)(nil),
		(*models.Worker)(nil),
	} {
		_, err := bunDB.NewCreateTable().Model(m).Exec(ctx)
		require.NoError(t, err)
	}
	t.Cleanup(func() { bunDB.Close() })

	now := time.Now().UTC()
	log := logger.Discard()
	queueStore := &queuedb.DB{Bun: bunDB}
	ticketStore := &ticketdb.DB{Bun: bunDB}
	require.NoError(t, queueStore.CreateQueue(ctx, &models.Queue{
		ID: "q1", TenantID: "tenant-a", CompanyID: "c1", Name: "Caja",
		IsActive: true, AverageServiceTime: 5, CreatedAt: now, UpdatedAt: now,
	}))
	_, err = bunDB.NewInsert().Model(&models.User{ID: "user-1", Name: "Ana", CreatedAt: now}).Exec(ctx)
	require.NoError(t, err)

	workerSvc := workers.NewWorkerService(&workerdb.DB{Bun: bunDB}, log)
	wa, err := workerSvc.CreateWorker(ctx, "tenant-a", workers.CreateWorkerInput{Name: "A", Username: "a", Password: "password1"})
	require.NoError(t, err)
	wb, err := workerSvc.CreateWorker(ctx, "tenant-b", workers.CreateWorkerInput{Name: "B", Username: "b", Password: "password1"})
	require.NoError(t, err)

	queueSvc := queues.NewQueueService(queueStore, ticketStore, noCompanies{}, log, time.UTC, 0)
	ticketSvc := tickets.NewTicketService(ticketStore, queueSvc, workerSvc, nil, nil, log)
	gen := qr.NewQRGenerator("qr-secret")
	h := ticket_api.NewHandler(ticketSvc, queueSvc, gen, slip.NewGenerator(""), log)

	r := chi.NewRouter()
	r.Use(auth.Middleware(&auth.HMACVerifier{Secret: secret}, nil, log))
	r.Route("/api/tickets", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireType(auth.TypeUser))
			h.CustomerRoutes(r)
		})
		h.PublicRoutes(r)
	})
	r.Route("/api/operator", func(r chi.Router) {
		r.Use(auth.RequireType(auth.TypeWorker))
		h.OperatorRoutes(r)
	})

	return &server{router: r, qr: gen, tickets: ticketSvc, workerA: wa.ID, workerB: wb.ID}
}

func token(t *testing.T, p auth.Principal) string {
	signed, _, err := auth.IssueToken(secret, p, time.Hour, time.Now())
	require.NoError(t, err)
	return signed
}

func (s *server) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Ticket  *models.Ticket  `json:"ticket"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestCustomerCreatesAndViewsTicket(t *testing.T) {
	s := setupServer(t)
	user := token(t, auth.Principal{ID: "user-1", Type: auth.TypeUser})

	rec := s.do(t, http.MethodPost, "/api/tickets", user, map[string]string{"queueId": "q1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created ticket_api.TicketView
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &created))
	assert.Equal(t, 1, created.Position)
	assert.Equal(t, 5, created.EstimatedWaitTime)
	assert.Len(t, created.Number, 4)

	rec = s.do(t, http.MethodPost, "/api/tickets", user, map[string]string{"queueId": "q1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(apperror.KindDuplicateActiveTicket), decode(t, rec).Code)

	rec = s.do(t, http.MethodGet, "/api/tickets/"+created.Number, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var viewed ticket_api.PublicTicketView
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &viewed))
	assert.Equal(t, created.Number, viewed.Number)
	assert.Equal(t, 1, viewed.LivePosition)

	rec = s.do(t, http.MethodGet, "/api/tickets/mine", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/tickets/"+created.Number+"/qr", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = s.do(t, http.MethodPost, "/api/tickets/"+created.ID+"/cancel", user, map[string]string{"reason": "late"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/tickets/ZZ99", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCustomerRoutesRequireUser(t *testing.T) {
	s := setupServer(t)
	rec := s.do(t, http.MethodPost, "/api/tickets", "", map[string]string{"queueId": "q1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	worker := token(t, auth.Principal{ID: s.workerA, TenantID: "tenant-a", Type: auth.TypeWorker})
	rec = s.do(t, http.MethodPost, "/api/tickets", worker, map[string]string{"queueId": "q1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOperatorFlow(t *testing.T) {
	s := setupServer(t)
	user := token(t, auth.Principal{ID: "user-1", Type: auth.TypeUser})
	worker := token(t, auth.Principal{ID: s.workerA, TenantID: "tenant-a", Type: auth.TypeWorker})

	rec := s.do(t, http.MethodPost, "/api/tickets", user, map[string]string{"queueId": "q1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/operator/next-ticket?queueId=q1", worker, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	next := decode(t, rec).Ticket
	require.NotNil(t, next)

	rec = s.do(t, http.MethodPost, "/api/operator/call-customer", worker, map[string]string{"queueId": "q1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env := decode(t, rec)
	assert.True(t, env.Success)
	require.NotNil(t, env.Ticket)
	assert.Equal(t, next.ID, env.Ticket.ID)
	assert.Equal(t, models.StatusCalled, env.Ticket.Status)

	rec = s.do(t, http.MethodPost, "/api/operator/start-attention", worker, map[string]string{"ticketId": next.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusInProgress, decode(t, rec).Ticket.Status)

	rec = s.do(t, http.MethodPost, "/api/operator/finish-attention", worker, map[string]string{"ticketId": next.ID, "notes": "ok"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusCompleted, decode(t, rec).Ticket.Status)

	rec = s.do(t, http.MethodPost, "/api/operator/skip-turn", worker, map[string]string{"ticketId": next.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(apperror.KindInvalidStateTransition), decode(t, rec).Code)

	rec = s.do(t, http.MethodPost, "/api/operator/call-customer", worker, map[string]string{"queueId": "q1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/operator/queue-status?queueId=q1", worker, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status queues.QueueStatus
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &status))
	assert.Equal(t, 1, status.TotalProcessedToday)
	assert.Zero(t, status.WaitingCount)
}

func TestOperatorCrossTenantIsForbidden(t *testing.T) {
	s := setupServer(t)
	user := token(t, auth.Principal{ID: "user-1", Type: auth.TypeUser})
	outsider := token(t, auth.Principal{ID: s.workerB, TenantID: "tenant-b", Type: auth.TypeWorker})

	rec := s.do(t, http.MethodPost, "/api/tickets", user, map[string]string{"queueId": "q1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created ticket_api.TicketView
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &created))

	rec = s.do(t, http.MethodPost, "/api/operator/call-customer", outsider, map[string]string{"ticketId": created.ID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/operator/queue-details?queueId=q1", outsider, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/operator/call-customer", user, map[string]string{"ticketId": created.ID})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOperatorValidation(t *testing.T) {
	s := setupServer(t)
	worker := token(t, auth.Principal{ID: s.workerA, TenantID: "tenant-a", Type: auth.TypeWorker})

	rec := s.do(t, http.MethodPost, "/api/operator/finish-attention", worker, map[string]string{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/operator/call-customer", worker, map[string]string{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/operator/skipped-tickets", worker, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestScanTicket(t *testing.T) {
	s := setupServer(t)
	worker := token(t, auth.Principal{ID: s.workerA, TenantID: "tenant-a", Type: auth.TypeWorker})

	ticket, err := s.tickets.Create(context.Background(), tickets.CreateTicketInput{QueueID: "q1", CustomerName: "Walk-in"})
	require.NoError(t, err)
	sealed, err := s.qr.Seal(ticket, time.Now())
	require.NoError(t, err)

	rec := s.do(t, http.MethodPost, "/api/operator/scan", worker, map[string]string{"encrypted_qr": sealed})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, ticket.Number, decode(t, rec).Ticket.Number)

	rec = s.do(t, http.MethodPost, "/api/operator/scan", worker, map[string]string{"encrypted_qr": "garbage"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestTicketDetailsOnlyForOwnerAndStaff(t *testing.T) {
	s := setupServer(t)
	owner := token(t, auth.Principal{ID: "user-1", Type: auth.TypeUser})
	stranger := token(t, auth.Principal{ID: "user-2", Type: auth.TypeUser})
	worker := token(t, auth.Principal{ID: s.workerA, TenantID: "tenant-a", Type: auth.TypeWorker})
	outsider := token(t, auth.Principal{ID: s.workerB, TenantID: "tenant-b", Type: auth.TypeWorker})
	admin := token(t, auth.Principal{ID: "admin-1", TenantID: "tenant-a", Type: auth.TypeAdmin})

	rec := s.do(t, http.MethodPost, "/api/tickets", owner, map[string]string{
		"queueId": "q1", "customerName": "Ana", "customerPhone": "+51999888777", "customerEmail": "ana@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created ticket_api.TicketView
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &created))

	for name, bearer := range map[string]string{"anonymous": "", "other user": stranger, "other tenant": outsider} {
		rec = s.do(t, http.MethodGet, "/api/tickets/"+created.Number, bearer, nil)
		require.Equal(t, http.StatusOK, rec.Code, name)
		body := string(decode(t, rec).Data)
		assert.Contains(t, body, created.Number, name)
		for _, hidden := range []string{"+51999888777", "ana@example.com", "user-1", "customerName", created.ID} {
			assert.NotContains(t, body, hidden, name)
		}
	}

	for name, bearer := range map[string]string{"owner": owner, "worker": worker, "admin": admin} {
		rec = s.do(t, http.MethodGet, "/api/tickets/"+created.Number, bearer, nil)
		require.Equal(t, http.StatusOK, rec.Code, name)
		var full ticket_api.TicketView
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &full), name)
		assert.Equal(t, "+51999888777", full.CustomerPhone, name)
		assert.Equal(t, "user-1", full.UserID, name)
	}
}

func TestWorkerIssuesWalkInTicket(t *testing.T) {
	s := setupServer(t)
	worker := token(t, auth.Principal{ID: s.workerA, TenantID: "tenant-a", Type: auth.TypeWorker})
	outsider := token(t, auth.Principal{ID: s.workerB, TenantID: "tenant-b", Type: auth.TypeWorker})

	rec := s.do(t, http.MethodPost, "/api/operator/issue-ticket", worker, map[string]string{"queueId": "q1", "customerName": "Walk-in"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	env := decode(t, rec)
	require.NotNil(t, env.Ticket)
	assert.Empty(t, env.Ticket.UserID)
	assert.Equal(t, "Walk-in", env.Ticket.CustomerName)
	assert.Equal(t, models.StatusWaiting, env.Ticket.Status)

	rec = s.do(t, http.MethodPost, "/api/operator/issue-ticket", worker, map[string]string{"queueId": "q1"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/operator/issue-ticket", outsider, map[string]string{"queueId": "q1", "customerName": "X"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
