// Package api exposes the campaign HTTP API: submitting campaigns,
// browsing batch records and the delivery dashboard.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cleanearth/mailblast/internal/batch"
	"github.com/cleanearth/mailblast/internal/config"
	"github.com/cleanearth/mailblast/internal/dispatch"
	"github.com/cleanearth/mailblast/internal/metrics"
	"github.com/cleanearth/mailblast/internal/sendgrid"
	"github.com/cleanearth/mailblast/internal/template"
)

// CampaignRunner dispatches one campaign and returns its batch summary
type CampaignRunner interface {
	Run(ctx context.Context, c *dispatch.Campaign) (*batch.Summary, error)
}

// Analytics reports provider delivery statistics
type Analytics interface {
	Stats(ctx context.Context, days int) ([]sendgrid.DayStat, error)
	GlobalStats(ctx context.Context) (*sendgrid.GlobalStats, error)
}

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	runner     CampaignRunner
	store      *batch.Store
	templates  *template.Store
	analytics  Analytics
	config     *config.ServerConfig
	logger     *slog.Logger
	startTime  time.Time
}

// NewServer creates a new API server
func NewServer(runner CampaignRunner, store *batch.Store, templates *template.Store, analytics Analytics, cfg *config.ServerConfig, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		runner:    runner,
		store:     store,
		templates: templates,
		analytics: analytics,
		config:    cfg,
		logger:    logger,
		startTime: time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)

	// Health check (no auth required)
	s.router.Get("/health", s.handleHealth)

	// API v1 routes (auth required)
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Use(metrics.HTTPMiddleware)

		r.Post("/campaigns", s.handleCreateCampaign)
		r.Get("/campaigns", s.handleListCampaigns)
		r.Get("/campaigns/{id}", s.handleGetCampaign)
		r.Get("/campaigns/{id}/log", s.handleCampaignLog)
		r.Get("/templates", s.handleListTemplates)
		r.Get("/dashboard", s.handleDashboard)
	})
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.logger.Info("starting HTTP API server", "addr", s.config.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
