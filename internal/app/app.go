// Package app wires the campaign service together: storage, rate
// limiting, the SendGrid client, the dispatcher and the HTTP servers.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cleanearth/mailblast/internal/api"
	"github.com/cleanearth/mailblast/internal/batch"
	"github.com/cleanearth/mailblast/internal/config"
	"github.com/cleanearth/mailblast/internal/dispatch"
	"github.com/cleanearth/mailblast/internal/metrics"
	"github.com/cleanearth/mailblast/internal/ratelimit"
	"github.com/cleanearth/mailblast/internal/sendgrid"
	"github.com/cleanearth/mailblast/internal/template"
)

// App is the main application
type App struct {
	config        *config.Config
	store         *batch.Store
	rateLimitDB   *bolt.DB
	apiServer     *api.Server
	metricsServer *metrics.Server
	logger        *slog.Logger
}

// New creates a new application
func New(cfg *config.Config) (*App, error) {
	logger := setupLogger(cfg.Logging)

	store, err := batch.NewStore(cfg.Storage.BatchDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch store: %w", err)
	}

	// Rate limiter counters live in BoltDB so they survive restarts
	var limiter dispatch.Limiter
	var rateLimitDB *bolt.DB
	if cfg.RateLimit.Enabled {
		rateLimitDB, err = bolt.Open(cfg.RateLimit.StatePath, 0600, &bolt.Options{Timeout: 5 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("failed to open rate limit state: %w", err)
		}
		l, err := ratelimit.NewLimiter(rateLimitDB, ratelimit.Config{
			MessagesPerHour: cfg.RateLimit.MessagesPerHour,
			MessagesPerDay:  cfg.RateLimit.MessagesPerDay,
		})
		if err != nil {
			rateLimitDB.Close()
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		limiter = l
		logger.Info("rate limiting enabled",
			"messages_per_hour", cfg.RateLimit.MessagesPerHour,
			"messages_per_day", cfg.RateLimit.MessagesPerDay,
		)
	}

	client := sendgrid.NewClient(&cfg.SendGrid)

	runner := dispatch.NewRunner(client, store, limiter, dispatch.Config{
		Concurrency:   cfg.Dispatch.Concurrency,
		MaxRetries:    cfg.Dispatch.MaxRetries,
		RetryInterval: cfg.Dispatch.RetryInterval,
		SendTimeout:   cfg.SendGrid.SendTimeout,
		FromEmail:     cfg.SendGrid.FromEmail,
	}, logger.With("component", "dispatch"))

	templates := template.NewStore(cfg.Templates.Dir, cfg.Templates.Default, logger.With("component", "templates"))

	apiServer := api.NewServer(runner, store, templates, client, &cfg.Server, logger.With("component", "api"))

	a := &App{
		config:      cfg,
		store:       store,
		rateLimitDB: rateLimitDB,
		apiServer:   apiServer,
		logger:      logger,
	}

	if cfg.Metrics.Enabled {
		m := metrics.New()
		metrics.SetGlobal(m)
		a.metricsServer = metrics.NewServer(m, &cfg.Metrics, logger.With("component", "metrics"))
	}

	return a, nil
}

// Run starts the servers and blocks until a shutdown signal arrives
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting mailblast",
		"api_addr", a.config.Server.ListenAddr,
		"batch_dir", a.config.Storage.BatchDir,
		"from", a.config.SendGrid.FromEmail,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 2)

	go func() {
		if err := a.apiServer.ListenAndServe(); err != nil {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	if a.metricsServer != nil {
		go func() {
			if err := a.metricsServer.ListenAndServe(); err != nil {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.logger.Error("server error", "error", err)
		cancel()
	}

	return a.Shutdown(context.Background())
}

// Shutdown gracefully shuts down all components
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("api server shutdown error", "error", err)
	}

	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics server shutdown error", "error", err)
		}
	}

	if a.rateLimitDB != nil {
		if err := a.rateLimitDB.Close(); err != nil {
			a.logger.Error("rate limit state close error", "error", err)
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}

// setupLogger creates a logger based on configuration
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
