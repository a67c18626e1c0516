package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"mandoub-backend/internal/auth"
	"mandoub-backend/internal/cache"
	"mandoub-backend/internal/config"
	"mandoub-backend/internal/database"
	"mandoub-backend/internal/db"
	"mandoub-backend/internal/handlers"
	"mandoub-backend/internal/health"
	h "mandoub-backend/internal/http"
	"mandoub-backend/internal/live"
	"mandoub-backend/internal/logger"
	"mandoub-backend/internal/middleware"
	"mandoub-backend/internal/objectstore"
	"mandoub-backend/internal/proxy"
	"mandoub-backend/internal/proxyclient"
	"mandoub-backend/internal/repositories"
	"mandoub-backend/internal/services"
	"mandoub-backend/internal/sheets"
	"mandoub-backend/internal/store"
	"mandoub-backend/migrations"
)

const shutdownTimeout = 20 * time.Second

func main() {
	mode := flag.String("mode", "app", "Server mode: app or proxy")
	flag.Parse()

	cfg := config.Load()
	logger.Setup(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch *mode {
	case "app":
		err = runApp(ctx, cfg)
	case "proxy":
		err = runProxy(ctx, cfg)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		log.Fatal().Err(err).Str("mode", *mode).Msg("server failed")
	}
}

func runApp(ctx context.Context, cfg *config.Config) error {
	log := logger.For("app")

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect store A: %w", err)
	}
	defer pool.Close()
	log.Info().Str("host", cfg.Database.Host).Msg("connected to store A")

	migrator := database.NewMigratorWithFS(pool, migrations.FS, ".")
	if err := migrator.RunMigrations(ctx); err != nil {
		return fmt.Errorf("migrate store A: %w", err)
	}

	// Redis is optional: caching and duplicate detection degrade to no-ops
	var redisPinger health.Pinger
	if err := cache.Init(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, running without cache")
	} else {
		defer cache.Close()
		redisPinger = health.PingFunc(func(ctx context.Context) error {
			return cache.GetClient().Ping(ctx).Err()
		})
	}

	storeA := repositories.NewDocumentRepository(pool)
	storeB := proxyclient.New(cfg.Proxy.URL, cfg.Proxy.Resource, cfg.Proxy.ClientTimeout)

	reconciler := services.NewReconciler(storeA, storeB)

	hub := live.NewHub()
	go hub.Run()
	defer hub.Stop()
	reconciler.SetNotifier(hub)

	outboxRepo := repositories.NewOutboxRepository(pool)
	if cfg.Outbox.Enabled {
		reconciler.SetOutbox(outboxRepo)
		worker := services.NewOutboxWorker(outboxRepo, storeA, storeB,
			cfg.Outbox.Interval, cfg.Outbox.BatchSize, cfg.Outbox.MaxAttempts)
		worker.Start()
		defer worker.Stop()
	}

	jwtManager := auth.NewJWTManager(cfg)
	if cfg.JWT.Secret == "" {
		log.Warn().Msg("JWT_SECRET not set, admin login is disabled")
	}

	settingsService, err := services.NewSettingsService(reconciler, jwtManager, cfg.Admin.DefaultPassword)
	if err != nil {
		return err
	}
	mirror := sheets.New(settingsService, cfg.Sheets.Timeout)
	settingsService.SetMirror(mirror)

	submissionService := services.NewSubmissionService(reconciler)
	submissionService.SetMirror(mirror)
	if cfg.Dedup.Enabled {
		log.Info().Dur("window", cfg.Dedup.Window).Msg("duplicate submission detection enabled")
		submissionService.SetIdempotencyGuard(services.NewIdempotencyGuard(services.RedisClaimer{}, cfg.Dedup.Window))
	}

	representativeService := services.NewRepresentativeService(reconciler)
	representativeService.SetMirror(mirror)

	healthChecker := health.NewHealthChecker(pool, storeB, redisPinger)

	router := h.NewRouter(h.Handlers{
		Submissions:     handlers.NewSubmissionHandler(submissionService),
		Representatives: handlers.NewRepresentativeHandler(representativeService),
		Settings:        handlers.NewSettingsHandler(settingsService),
		Auth:            handlers.NewAuthHandler(settingsService),
		Admin:           handlers.NewAdminHandler(reconciler, outboxRepo),
		Health:          handlers.NewHealthHandler(healthChecker),
		Feed:            hub,
	}, middleware.NewAuthMiddleware(jwtManager))

	handler := middleware.PanicRecovery(middleware.NewCORS(cfg)(router))
	return serve(ctx, "app", cfg.Server.Port, handler)
}

func runProxy(ctx context.Context, cfg *config.Config) error {
	log := logger.For("proxy")

	var backend store.DocumentStore
	if cfg.StoreBConfigured() {
		bucket, err := objectstore.New(ctx, objectstore.Options{
			Endpoint:  cfg.StoreB.Endpoint,
			Region:    cfg.StoreB.Region,
			Bucket:    cfg.StoreB.Bucket,
			Prefix:    cfg.StoreB.Prefix,
			AccessKey: cfg.StoreB.AccessKey,
			SecretKey: cfg.StoreB.SecretKey,
		})
		if err != nil {
			return fmt.Errorf("configure store B: %w", err)
		}
		backend = bucket
		log.Info().Str("bucket", cfg.StoreB.Bucket).Msg("store B bucket configured")
	} else {
		log.Warn().Msg("STOREB_* not set, store B is in-memory and will not survive a restart")
		backend = store.NewMemoryStore()
	}

	queue := proxy.NewQueue(cfg.Proxy.MaxConcurrent)
	handler := proxy.NewHandler(backend, queue, cfg.Proxy.Timeout)
	log.Info().Int("max_concurrent", queue.Limit()).Dur("timeout", handler.Timeout).Msg("admission queue ready")

	router := h.NewProxyRouter(handler, cfg.Proxy.Resource)
	return serve(ctx, "proxy", cfg.Proxy.Port, middleware.PanicRecovery(middleware.NewCORS(cfg)(router)))
}

// serve runs until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, name string, port int, handler http.Handler) error {
	log := logger.For(name)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
