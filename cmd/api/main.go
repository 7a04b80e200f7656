package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contractor_portal_backend/internal/adapters"
	"contractor_portal_backend/internal/adapters/storage"
	"contractor_portal_backend/internal/auth"
	"contractor_portal_backend/internal/catalog"
	apphttp "contractor_portal_backend/internal/http"
	"contractor_portal_backend/internal/http/router"
	"contractor_portal_backend/internal/invoices"
	"contractor_portal_backend/internal/notification"
	"contractor_portal_backend/internal/payments"
	"contractor_portal_backend/internal/payments/gateway"
	"contractor_portal_backend/internal/progress"
	"contractor_portal_backend/internal/quotations"
	"contractor_portal_backend/internal/requests"
	"contractor_portal_backend/internal/scheduler"
	"contractor_portal_backend/platform/config"
	"contractor_portal_backend/platform/db"
	"contractor_portal_backend/platform/events"
	"contractor_portal_backend/platform/logger"
	"contractor_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// Storage service for progress media (MinIO)
	storageSvc, err := storage.NewMinIOService(cfg, cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}
	if err := withRetry(ctx, log, "ensure progress media bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", cfg.GetMinioBucketProgressMedia())
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
	log.Info("storage service initialized", "bucket", cfg.GetMinioBucketProgressMedia())

	// Notification enqueuer. Delivery is handled by the worker process; when
	// Redis is not configured the outbox dispatcher there still sweeps rows.
	enqueuer, closeEnqueuer := initNotificationEnqueuer(cfg, log)
	if closeEnqueuer != nil {
		defer closeEnqueuer()
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Notification module subscribes to domain events (not HTTP-facing)
	notificationModule := notification.NewModule(pool, enqueuer, cfg, log)
	notificationModule.RegisterHandlers(eventBus)

	authModule := auth.NewModule(pool, cfg, eventBus, log, val)
	catalogModule := catalog.NewModule(pool, val, log)

	// Requests resolve service types through an anti-corruption adapter so the
	// module only depends on its own CatalogReader interface.
	catalogReader := adapters.NewCatalogReaderAdapter(catalogModule.Repository())
	requestsModule := requests.NewModule(pool, catalogReader, eventBus, log, val)

	quotationsModule := quotations.NewModule(pool, requestsModule.Repository(), cfg, eventBus, log, val)

	gw := gateway.NewRazorpay(cfg)
	paymentsModule := payments.NewModule(pool, requestsModule.Repository(), quotationsModule.Repository(), gw, cfg, eventBus, log, val)

	progressModule := progress.NewModule(pool, requestsModule.Repository(), paymentsModule.Repository(), storageSvc, cfg, eventBus, log, val)

	invoicesModule := invoices.NewModule(pool, requestsModule.Repository(), quotationsModule.Repository(), paymentsModule.Repository(), cfg, eventBus, log, val)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			authModule,
			catalogModule,
			requestsModule,
			quotationsModule,
			paymentsModule,
			progressModule,
			invoicesModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		// Drain in-flight event handlers before exit.
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initNotificationEnqueuer(cfg config.SchedulerConfig, log *logger.Logger) (scheduler.NotificationEnqueuer, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; notification delivery relies on the outbox dispatcher")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
