package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/demahagit/rcp-edd-member-downloads/internal"
	"github.com/demahagit/rcp-edd-member-downloads/internal/billing"
	"github.com/demahagit/rcp-edd-member-downloads/internal/email"
	"github.com/demahagit/rcp-edd-member-downloads/internal/handler"
	"github.com/demahagit/rcp-edd-member-downloads/internal/jobs"
	"github.com/demahagit/rcp-edd-member-downloads/internal/metrics"
	"github.com/demahagit/rcp-edd-member-downloads/internal/middleware"
	"github.com/demahagit/rcp-edd-member-downloads/internal/repository"
	"github.com/demahagit/rcp-edd-member-downloads/internal/service"
	"github.com/demahagit/rcp-edd-member-downloads/internal/storage"
	"github.com/demahagit/rcp-edd-member-downloads/internal/worker"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repository
	repo := repository.New(db)

	// Initialize file storage
	var store storage.Storage
	switch cfg.StorageProvider {
	case "r2":
		store, err = storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	default:
		store, err = storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	}
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	logger.Info("Storage ready", "provider", cfg.StorageProvider)

	// Initialize email notifier
	notifier, err := email.NewSMTPNotifier(email.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, cfg.BaseURL, logger)
	if err != nil {
		return fmt.Errorf("email notifier initialization failed: %w", err)
	}

	// Initialize Stripe billing (optional)
	var billingService billing.Service
	if cfg.StripeSecretKey != "" {
		billingService = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
		logger.Info("Stripe billing enabled")
	} else {
		logger.Warn("Stripe billing disabled, webhook endpoint will return 503")
	}

	// Initialize services
	memberService := service.NewMemberService(repo, logger)
	levelService := service.NewLevelService(repo, logger)
	quotaStore := service.NewQuotaStore(repo, logger)
	entitlementService := service.NewEntitlementService(repo, levelService, quotaStore, logger)
	catalogService := service.NewCatalogService(repo, logger)
	ledger := service.NewPurchaseLedger(db, repo, store, notifier, cfg.DownloadLinkTTL, logger)
	authorizer := service.NewDownloadAuthorizer(entitlementService, quotaStore, ledger, logger)
	billingEvents := service.NewBillingEvents(quotaStore, ledger, logger)

	// Initialize background worker
	workerCfg := worker.DefaultConfig()
	workerCfg.Concurrency = cfg.WorkerConcurrency
	workerCfg.PollInterval = cfg.WorkerPollInterval
	workerCfg.JobTimeout = cfg.WorkerJobTimeout

	jobWorker, err := worker.New(db, repo, workerCfg, logger)
	if err != nil {
		return fmt.Errorf("worker initialization failed: %w", err)
	}
	jobWorker.Register(jobs.NewPeriodResetHandler(billingEvents, logger))
	jobWorker.Register(jobs.NewRefundReconcileHandler(billingEvents, logger))

	if cfg.WorkerEnabled {
		jobWorker.Start(ctx)
		defer jobWorker.Stop()
	}

	// Initialize middleware
	isSecure := cfg.Env != "development"
	authMw := middleware.NewAuthMiddleware(memberService, logger, isSecure)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)

	rateLimiter := middleware.NewRateLimiter(cfg.DownloadRateLimit, cfg.DownloadRateWindow)
	rateLimitMw := middleware.NewRateLimitMiddleware(rateLimiter, logger)

	// Initialize handlers
	downloadHandler := handler.NewDownloadHandler(catalogService, authorizer, cfg.DownloadsEnabled, isSecure, logger)
	quotaHandler := handler.NewQuotaHandler(entitlementService, cfg.DownloadsEnabled, logger)
	adminHandler := handler.NewAdminHandler(levelService, ledger, billingService, repo, logger)
	webhookHandler := handler.NewWebhookHandler(billingService, memberService, entitlementService, ledger, repo, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Metrics (basic auth when configured)
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	// Local storage file serving (development only)
	if cfg.StorageProvider == "local" {
		filesFS := http.FileServer(http.Dir(cfg.LocalStoragePath))
		mux.Handle("GET /files/", http.StripPrefix("/files/", filesFS))
	}

	// Middleware stacks
	base := middleware.Stack(
		loggingMw.Handler,
		metrics.Middleware,
		securityMw.Handler,
	)
	memberStack := middleware.Stack(
		loggingMw.Handler,
		metrics.Middleware,
		securityMw.Handler,
		authMw.WithMember,
		authMw.RequireMember,
		rateLimitMw.Limit,
	)
	adminStack := middleware.Stack(
		loggingMw.Handler,
		metrics.Middleware,
		securityMw.Handler,
		authMw.WithMember,
		authMw.RequireAdmin(cfg.AdminEmails),
	)

	// Member routes
	downloadHandler.RegisterRoutes(mux, memberStack)
	quotaHandler.RegisterRoutes(mux, memberStack)

	// Admin routes
	adminHandler.RegisterRoutes(mux, adminStack)

	// Billing webhooks (signature-authenticated, no session)
	webhookHandler.RegisterRoutes(mux, base)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
