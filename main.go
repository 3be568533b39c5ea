package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JhonAQ/te-toca-web-sub000/internal/analytics"
	analytics_api "github.com/JhonAQ/te-toca-web-sub000/internal/analytics/api"
	"github.com/JhonAQ/te-toca-web-sub000/internal/auth"
	"github.com/JhonAQ/te-toca-web-sub000/internal/companies/company_api"
	company_db "github.com/JhonAQ/te-toca-web-sub000/internal/companies/db"
	companies "github.com/JhonAQ/te-toca-web-sub000/internal/companies/service"
	"github.com/JhonAQ/te-toca-web-sub000/internal/config"
	"github.com/JhonAQ/te-toca-web-sub000/internal/database"
	"github.com/JhonAQ/te-toca-web-sub000/internal/database/migrations"
	"github.com/JhonAQ/te-toca-web-sub000/internal/jobs"
	"github.com/JhonAQ/te-toca-web-sub000/internal/kafka"
	"github.com/JhonAQ/te-toca-web-sub000/internal/logger"
	"github.com/JhonAQ/te-toca-web-sub000/internal/metrics"
	"github.com/JhonAQ/te-toca-web-sub000/internal/notify"
	queue_db "github.com/JhonAQ/te-toca-web-sub000/internal/queues/db"
	"github.com/JhonAQ/te-toca-web-sub000/internal/queues/queue_api"
	queues "github.com/JhonAQ/te-toca-web-sub000/internal/queues/service"
	"github.com/JhonAQ/te-toca-web-sub000/internal/sse"
	ticket_db "github.com/JhonAQ/te-toca-web-sub000/internal/tickets/db"
	"github.com/JhonAQ/te-toca-web-sub000/internal/tickets/qr"
	ticketredis "github.com/JhonAQ/te-toca-web-sub000/internal/tickets/redis"
	tickets "github.com/JhonAQ/te-toca-web-sub000/internal/tickets/service"
	"github.com/JhonAQ/te-toca-web-sub000/internal/tickets/slip"
	"github.com/JhonAQ/te-toca-web-sub000/internal/tickets/ticket_api"
	"github.com/JhonAQ/te-toca-web-sub000/internal/utils"
	worker_db "github.com/JhonAQ/te-toca-web-sub000/internal/workers/db"
	workers "github.com/JhonAQ/te-toca-web-sub000/internal/workers/service"
	"github.com/JhonAQ/te-toca-web-sub000/internal/workers/worker_api"
)

const serviceName = "queue-service"

// requestLogger writes one API log line per request.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.LogAPI(r.Method, r.URL.Path, strconv.Itoa(status), time.Since(start).Round(time.Millisecond).String())
		})
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccess(w, http.StatusOK, "ok", map[string]string{"service": serviceName})
}

func main() {
	cfg, envLoaded := config.Load()

	level := logger.ParseLevel(cfg.Log.Level)
	logger := logger.NewLogger(serviceName, cfg.Log.Dir)
	defer logger.Close()
	logger.SetLevel(level)

	logger.Info("APP", "Starting Queue Service initialization")
	if envLoaded {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	} else {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("APP", "Verifying database connections")
	bunDB, err := database.ConnectPostgres(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	redisClient, err := database.ConnectRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("DATABASE", err.Error())
	}
	defer redisClient.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
			MigrationsDir: cfg.Database.MigrationsDir,
			AutoMigrate:   true,
		}, logger)
		if err := runner.RunMigrations(); err != nil {
			logger.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
		if err := runner.Close(); err != nil {
			logger.Warn("DATABASE", err.Error())
		}
	}

	verifier, err := auth.NewVerifier(ctx, auth.AuthPolicy{
		Mode:             auth.Mode(cfg.Auth.Mode),
		Secret:           []byte(cfg.Auth.Secret),
		Issuer:           cfg.Auth.Issuer,
		AllowInsecureDev: cfg.Auth.AllowInsecureDev,
	})
	if err != nil {
		logger.Fatal("AUTH", fmt.Sprintf("Invalid auth configuration: %v", err))
	}
	if cfg.Auth.AllowInsecureDev {
		logger.LogSecurity("INSECURE_AUTH", "unsigned tokens are accepted; never enable this outside development")
	}
	revocations := auth.NewRevocationList(redisClient)

	// Notifications: with Kafka every instance consumes every event and feeds
	// its own SSE clients; without it the emitter is fed directly.
	emitter := sse.NewQueueEventEmitter()
	var sinks []notify.Sink
	var producer *kafka.Producer
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, kafka.AllTopics, logger); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers, logger)
		sinks = append(sinks, notify.KafkaSink{Producer: producer})

		groupID := cfg.Kafka.GroupID
		if groupID == "" {
			groupID = serviceName + "-" + uuid.NewString()
		}
		consumer = kafka.NewConsumer(cfg.Kafka.Brokers, kafka.AllTopics, groupID, logger)
		go consumer.Start(ctx, emitter.Emit)
		logger.Info("KAFKA", fmt.Sprintf("Kafka notifications enabled (group %s)", groupID))
	} else {
		sinks = append(sinks, emitter)
		logger.Info("KAFKA", "Kafka disabled, events are delivered in-process only")
	}
	notifier := notify.NewDispatcher(logger, sinks, notify.Async(5*time.Second))

	location := utils.LoadLocation(cfg.Queues.Timezone)
	ticketDB := &ticket_db.DB{Bun: bunDB}

	companyService := companies.NewCompanyService(&company_db.DB{Bun: bunDB}, logger)
	queueService := queues.NewQueueService(
		&queue_db.DB{Bun: bunDB},
		ticketDB,
		companyService,
		logger,
		location,
		time.Duration(cfg.Queues.StatsWindowDays)*24*time.Hour,
	)
	workerService := workers.NewWorkerService(&worker_db.DB{Bun: bunDB}, logger)
	ticketService := tickets.NewTicketService(
		ticketDB,
		queueService,
		workerService,
		ticketredis.NewRedis(redisClient, logger, cfg.Tickets.NumberLockTTL, cfg.Tickets.QueueLockTTL),
		notifier,
		logger,
	)
	analyticsService := analytics.NewService(queueService, &tickets.TicketCountService{DB: ticketDB}, ticketDB, location)

	qrSecret := cfg.Tickets.QRSecretKey
	if qrSecret == "" {
		qrSecret = cfg.Auth.Secret
		logger.Warn("CONFIG", "QR_SECRET_KEY not set, deriving QR key from JWT_SECRET")
	}

	ticketHandler := ticket_api.NewHandler(ticketService, queueService, qr.NewQRGenerator(qrSecret), slip.NewGenerator(cfg.Tickets.SlipFontPath), logger)
	queueHandler := queue_api.NewHandler(queueService, emitter, logger)
	companyHandler := company_api.NewHandler(companyService, queueService, logger)
	workerHandler := worker_api.NewHandler(workerService, revocations, []byte(cfg.Auth.Secret), cfg.Auth.TokenTTL, logger)
	analyticsHandler := analytics_api.NewHandler(analyticsService, logger)

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if cfg.Server.RateLimitPerMinute > 0 {
		r.Use(httprate.LimitByIP(cfg.Server.RateLimitPerMinute, time.Minute))
	}
	r.Use(metrics.Middleware)
	r.Use(requestLogger(logger))
	r.Use(auth.Middleware(verifier, revocations, logger))

	r.Get("/health", healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	// Streams stay open, so they sit outside the request timeout.
	r.Route("/api/queues", queueHandler.PublicRoutes)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.Server.RequestTimeout))

		r.Route("/api/auth", workerHandler.AuthRoutes)
		r.Route("/api/companies", companyHandler.PublicRoutes)

		r.Route("/api/tickets", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireType(auth.TypeUser))
				ticketHandler.CustomerRoutes(r)
			})
			ticketHandler.PublicRoutes(r)
		})
		logger.Info("ROUTER", "Ticket routes registered under /api/tickets")

		r.Route("/api/operator", func(r chi.Router) {
			r.Use(auth.RequireType(auth.TypeWorker))
			ticketHandler.OperatorRoutes(r)
			workerHandler.OperatorRoutes(r)
		})
		logger.Info("ROUTER", "Operator routes registered under /api/operator")

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Route("/companies", companyHandler.AdminRoutes)
			r.Route("/queues", queueHandler.AdminRoutes)
			r.Route("/workers", workerHandler.AdminRoutes)
			analyticsHandler.RegisterRoutes(r)
		})
		logger.Info("ROUTER", "Admin routes registered under /api/admin")
	})

	dailyReset := jobs.NewDailyReset(queueService, location, logger)
	go dailyReset.Run(ctx)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Queue Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	// Cancelling ctx ends SSE streams, the consumer and the daily job.
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	}

	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Failed to close consumer: %v", err))
		}
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Failed to close producer: %v", err))
		}
	}
	logger.Info("HTTP", "✅ Queue Service shutdown complete")
}
