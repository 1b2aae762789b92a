// Package web serves the local HTTP API.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/emiliopalmerini/mtrack/internal/query"
)

// DefaultShutdownTimeout bounds graceful shutdown when no timeout is configured.
const DefaultShutdownTimeout = 10 * time.Second

type Server struct {
	svc             *query.Service
	metrics         http.Handler
	port            int
	log             *slog.Logger
	router          chi.Router
	shutdownTimeout time.Duration
}

type Option func(*Server)

// WithShutdownTimeout bounds how long Start waits for in-flight requests after ctx is done.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// NewServer builds the router. metrics may be nil, in which case /metrics is not served.
func NewServer(svc *query.Service, metrics http.Handler, port int, log *slog.Logger, opts ...Option) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{svc: svc, metrics: metrics, port: port, log: log, shutdownTimeout: DefaultShutdownTimeout}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(HTMX)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Get("/activities", s.handleListActivities)
		r.Post("/activities", s.handleAppendActivity)
		r.Get("/activities/export", s.handleExportActivities)
		r.Put("/domains/{date}", s.handleReplaceDomains)

		r.Get("/reports", s.handleListReports)
		r.Get("/reports/html", s.handleReportIndexHTML)
		r.Get("/report/latest", s.handleLatestReport)
		r.Route("/report/{date}", func(r chi.Router) {
			r.Get("/", s.handleReport)
			r.Get("/markdown", s.handleReportMarkdown)
			r.Get("/html", s.handleReportHTML)
			r.Get("/download/{format}", s.handleReportDownload)
			r.Post("/generate", s.handleGenerateReport)
		})

		r.Get("/categories", s.handleGetCategories)
		r.Put("/categories", s.handlePutCategories)
		r.Post("/categories/recategorize", s.handleRecategorize)

		r.Get("/settings/report-schedule", s.handleGetSchedule)
		r.Put("/settings/report-schedule", s.handlePutSchedule)
	})

	s.router = r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is done, then shuts down gracefully. It returns once
// shutdown has finished or the shutdown timeout has passed.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info("api listening", "addr", "http://"+server.Addr)

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		shutdownErr <- server.Shutdown(shutdownCtx)
	}()

	err := server.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-shutdownErr; err != nil {
		s.log.Error("api shutdown", "err", err, "timeout", s.shutdownTimeout)
		return fmt.Errorf("api shutdown: %w", err)
	}
	return nil
}
