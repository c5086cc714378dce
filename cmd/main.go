package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/talentboard/internal/adapters/http/api"
	"github.com/okian/talentboard/internal/adapters/http/auth"
	"github.com/okian/talentboard/internal/adapters/http/swagger"
	"github.com/okian/talentboard/internal/adapters/repository"
	app "github.com/okian/talentboard/internal/app"
	"github.com/okian/talentboard/internal/config"
	"github.com/okian/talentboard/internal/tracing"
	"github.com/okian/talentboard/pkg/logger"
	"github.com/okian/talentboard/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := run(); err != nil {
		os.Stderr.WriteString("talentboard: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Defaults -> .env -> optional file -> env.
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	owner, _ := cfg.OwnerIdentity()

	if err := logger.InitWith(os.Stdout, cfg.LogFormat); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	tp, err := tracing.NewProvider(ctx, cfg.Tracing())
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error(ctx, "tracer shutdown failed", logger.Error(err))
		}
	}()

	store, err := repository.Open(ctx, cfg.Store, cfg.SQLitePath)
	if err != nil {
		return err
	}

	svc := app.New(
		app.WithStore(store),
		app.WithOwner(owner),
		app.WithTracer(tp.Tracer()),
		app.WithLogger(log),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithMaxPageSize(cfg.MaxPageSize),
	)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return err
	}
	// Stop closes the store.
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("store", cfg.Store),
			logger.String("owner", owner.String()),
			logger.Bool("tracing", tp.Enabled()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// newHandler builds the HTTP surface: API docs, business routes and the
// request-id middleware around both.
func newHandler(ctx context.Context, cfg *config.Config, svc *app.Service) http.Handler {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	verifier := auth.NewVerifier([]byte(cfg.JWTSecret), auth.WithMaxLifetime(cfg.TokenTTL))
	api.NewServer(svc, verifier).Register(ctx, mux)
	return api.RequestIDMiddleware(mux)
}

// startSystemMetricsUpdater refreshes runtime gauges until ctx ends.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes registry gauges until ctx ends.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats updates the registry and queue gauges itself.
			if _, err := svc.GetStats(ctx); err != nil && ctx.Err() == nil {
				logger.Get().Warn(ctx, "stats refresh failed", logger.Error(err))
			}
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
