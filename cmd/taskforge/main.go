package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go/jetstream"

	cfhttp "github.com/Strob0t/TaskForge/internal/adapter/http"
	cfnats "github.com/Strob0t/TaskForge/internal/adapter/nats"
	"github.com/Strob0t/TaskForge/internal/adapter/natskv"
	cfotel "github.com/Strob0t/TaskForge/internal/adapter/otel"
	"github.com/Strob0t/TaskForge/internal/adapter/postgres"
	"github.com/Strob0t/TaskForge/internal/adapter/ristretto"
	"github.com/Strob0t/TaskForge/internal/adapter/tiered"
	"github.com/Strob0t/TaskForge/internal/adapter/ws"
	"github.com/Strob0t/TaskForge/internal/config"
	"github.com/Strob0t/TaskForge/internal/logger"
	"github.com/Strob0t/TaskForge/internal/middleware"
	"github.com/Strob0t/TaskForge/internal/port/cache"
	"github.com/Strob0t/TaskForge/internal/port/messagequeue"
	"github.com/Strob0t/TaskForge/internal/service"
)

const tokenCleanupInterval = 15 * time.Minute

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
		"nats", cfg.NATS.URL != "",
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- Observability ---
	providers, err := cfotel.NewProviders(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()
	metrics, err := cfotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Infrastructure ---

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	// NATS is optional. Without it events go straight to the local hub and
	// the L2 cache and idempotency store are disabled.
	var (
		queue    messagequeue.Queue
		l2       cache.Cache
		idemKV   jetstream.KeyValue
		natsConn *cfnats.Queue
	)
	if cfg.NATS.URL != "" {
		natsConn, err = cfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() {
			if err := natsConn.Drain(); err != nil {
				slog.Warn("nats drain", "error", err)
			}
		}()
		queue = natsConn
		slog.Info("nats connected")

		if cfg.Cache.L2Bucket != "" {
			kvCache, err := natskv.Open(ctx, natsConn.JetStream(), cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
			if err != nil {
				return fmt.Errorf("tenant cache l2: %w", err)
			}
			l2 = kvCache
		}
		if cfg.Idempotency.Bucket != "" {
			idemKV, err = natsConn.KeyValue(ctx, cfg.Idempotency.Bucket, cfg.Idempotency.TTL)
			if err != nil {
				return fmt.Errorf("idempotency store: %w", err)
			}
		}
	}

	// Tenant directory cache: ristretto in process, NATS KV shared.
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("tenant cache l1: %w", err)
	}
	defer l1.Close()
	tenantCache := tiered.New(l1, l2, cfg.Cache.TTL)

	// --- Services ---
	store := postgres.NewStore(pool)
	hub := ws.NewHub(cfg.Server.CORSOrigin)
	defer hub.Close()

	events := service.NewTaskEvents(queue, hub)
	resolver := service.NewTenantResolver(store, tenantCache, cfg.Cache.TTL, metrics)
	taskSvc := service.NewTaskService(store, events, metrics, cfg.Tenancy.PageSize)
	authSvc := service.NewAuthService(store, cfg.Auth)
	authSvc.StartTokenCleanup(ctx, tokenCleanupInterval)

	if queue != nil {
		cancelRelay, err := queue.Subscribe(ctx, messagequeue.SubjectTaskAll, events.Relay)
		if err != nil {
			return fmt.Errorf("task event relay: %w", err)
		}
		defer cancelRelay()
	}

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopLimiterCleanup := limiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopLimiterCleanup()

	// --- HTTP ---
	handlers := &cfhttp.Handlers{
		Tasks:     taskSvc,
		Auth:      authSvc,
		Health:    store,
		BodyLimit: cfg.Server.BodyLimit,
	}

	r := chi.NewRouter()

	cfhttp.UseBaseMiddleware(r, cfg.Server.CORSOrigin, cfotel.HTTPMiddleware(cfg.OTEL.ServiceName))

	cfhttp.MountRoutes(r, handlers, cfhttp.RouteDeps{
		Resolver:    resolver,
		Limiter:     limiter,
		Idempotency: idemKV,
		Events:      hub.HandleWS,
		Timeout:     cfg.Server.RequestTimeout,
	})

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-done:
	case err := <-serveErr:
		return fmt.Errorf("server: %w", err)
	}
	slog.Info("shutting down server")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
