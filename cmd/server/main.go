package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kestrelhq/portal/internal/domain"
	"github.com/kestrelhq/portal/internal/handler"
	"github.com/kestrelhq/portal/internal/infrastructure/logger"
	"github.com/kestrelhq/portal/internal/infrastructure/mail"
	"github.com/kestrelhq/portal/internal/infrastructure/pdf"
	"github.com/kestrelhq/portal/internal/infrastructure/redis"
	"github.com/kestrelhq/portal/internal/infrastructure/storage"
	"github.com/kestrelhq/portal/internal/memstore"
	"github.com/kestrelhq/portal/internal/observability/tracing"
	"github.com/kestrelhq/portal/internal/repository"
	"github.com/kestrelhq/portal/internal/security/audit"
	"github.com/kestrelhq/portal/internal/security/auth"
	"github.com/kestrelhq/portal/internal/security/middleware"
	"github.com/kestrelhq/portal/internal/security/ratelimit"
	"github.com/kestrelhq/portal/internal/service"
	"github.com/kestrelhq/portal/internal/worker"
	"github.com/kestrelhq/portal/pkg/config"
	"github.com/kestrelhq/portal/pkg/database"
)

// repositories is one implementation of every data port
type repositories struct {
	businesses domain.BusinessRepository
	employees  domain.EmployeeRepository
	documents  domain.DocumentRepository
	surveys    domain.SurveyRepository
	tasks      domain.TaskRepository
	crons      domain.CronRepository
}

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting portal server",
		slog.String("environment", cfg.Environment),
		slog.String("store", cfg.StoreDriver),
		slog.Bool("hosted", cfg.Hosted),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, log, cfg.OTLPEndpoint, "portal", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	checks := map[string]handler.HealthCheck{}

	// 3. Initialize repositories
	var repos repositories
	switch cfg.StoreDriver {
	case "memory":
		store := memstore.New()
		seeded := store.Seed()
		log.Warn("using in-memory store; data is lost on restart", slog.String("demo_slug", seeded.Business.Slug))
		repos = repositories{
			businesses: store.Businesses,
			employees:  store.Employees,
			documents:  store.Documents,
			surveys:    store.Surveys,
			tasks:      store.Tasks,
			crons:      store.Crons,
		}
	default:
		pool, err := database.NewConnectionPool(ctx, &database.Config{URL: cfg.DatabaseURL}, log)
		if err != nil {
			log.Error("failed to connect to database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()
		if err := pool.Migrate(ctx); err != nil {
			log.Error("failed to apply schema", slog.String("error", err.Error()))
			os.Exit(1)
		}
		db := pool.GetDB()
		repos = repositories{
			businesses: repository.NewPostgresBusinessRepository(db, log),
			employees:  repository.NewPostgresEmployeeRepository(db, log),
			documents:  repository.NewPostgresDocumentRepository(db, log),
			surveys:    repository.NewPostgresSurveyRepository(db, log),
			tasks:      repository.NewPostgresTaskRepository(db, log),
			crons:      repository.NewPostgresCronRepository(db, log),
		}
		checks["database"] = pool.Health
	}

	// 4. Notification queue
	var queue domain.NotificationQueue
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(cfg.RedisURL, log)
		if err != nil {
			log.Error("failed to connect to Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisClient.Close()
		queue = redis.NewNotificationQueue(redisClient)
		checks["redis"] = redisClient.Ping
	} else {
		log.Warn("REDIS_URL not set; notifications queue in process memory")
		queue = memstore.NewNotificationQueue()
	}

	// 5. Object storage and mail
	var objects domain.ObjectStorage
	if cfg.Storage.Enabled() {
		s3, err := storage.NewS3Storage(ctx, cfg.Storage, log)
		if err != nil {
			log.Error("failed to configure object storage", slog.String("error", err.Error()))
			os.Exit(1)
		}
		objects = s3
	} else {
		log.Warn("S3_BUCKET not set; artifacts kept in memory")
		objects = storage.NewMemoryStorage("onboarding")
	}

	var mailer domain.Mailer
	if cfg.SMTP.Enabled() {
		mailer = mail.NewSMTPMailer(cfg.SMTP)
	} else {
		log.Warn("SMTP not configured; emails are logged, not sent")
		mailer = mail.NewLogMailer(log)
	}

	// 6. Security components
	sessionSecret := cfg.SessionSecret
	if sessionSecret == "" {
		sessionSecret = "dev-session-secret"
		log.Warn("SESSION_SECRET not set; using a development secret")
	}
	tokenManager := auth.NewTokenManager(sessionSecret, "portal")
	rateLimiter := ratelimit.NewLimiter(cfg.PublicRatePerMinute, time.Minute)
	auditLogger := audit.NewLogger(log, middleware.RequestIDFromContext)

	sessions, err := service.NewSessionService(map[string]string{
		service.AreaHQ:   cfg.HQPassword,
		service.AreaSide: cfg.SidePassword,
	}, tokenManager, cfg.SessionMaxAge, log)
	if err != nil {
		log.Error("failed to initialize sessions", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 7. Services
	board := handler.NewBoardHub(cfg.CORSAllowedOrigins, log)
	registry := service.NewRegistryService(repos.businesses, log)
	links := service.NewFileLinks(tokenManager, objects, cfg.PublicBaseURL)
	submissions := service.NewSubmissionService(registry, repos.employees, repos.documents, objects, pdf.NewRenderer(), cfg.BusinessTimezone, log)
	// memory runs deliver through the log mailer
	notify := cfg.SMTP.Enabled() || cfg.StoreDriver == "memory"
	surveys := service.NewSurveyService(registry, repos.employees, repos.documents, repos.surveys, queue, links,
		cfg.StaffNotifyEmail, notify, log)
	employees := service.NewEmployeeService(registry, repos.employees, repos.documents, log)
	tasks := service.NewTaskService(repos.tasks, board, log)
	crons := service.NewCronService(repos.crons, cfg.Hosted, cfg.CronSourcePath, log)

	// 8. Setup HTTP routes
	router := handler.NewRouter(handler.Deps{
		Logger:         log,
		Tokens:         tokenManager,
		Sessions:       sessions,
		Limiter:        rateLimiter,
		Audit:          auditLogger,
		Registry:       registry,
		Submissions:    submissions,
		Surveys:        surveys,
		Employees:      employees,
		Tasks:          tasks,
		Crons:          crons,
		Links:          links,
		Board:          board,
		HealthChecks:   checks,
		HQSharedSecret: cfg.HQSharedSecret,
		SecureCookies:  cfg.Environment == "production",
	})

	// Chain middleware: request ID -> CORS -> tracing -> routes
	rootHandler := middleware.WithRequestID(
		middleware.CORS(cfg.CORSAllowedOrigins)(
			otelhttp.NewHandler(router, "portal"),
		),
		log,
	)

	// 9. Start background workers
	notifier := worker.NewNotificationWorker(queue, mailer, repos.employees, cfg.NotifyMaxAttempts, cfg.NotifyPollInterval, log)
	reconciler := worker.NewReconcileWorker(repos.documents, objects, log, cfg.ReconcileInterval, cfg.PendingStaleAfter)
	go notifier.Start(ctx)
	go reconciler.Start(ctx)

	// 10. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.Int("rate_limit", cfg.PublicRatePerMinute),
		slog.String("rate_limit_window", "1m"),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
			sigChan <- syscall.SIGTERM
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // Stop workers
	rateLimiter.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}
