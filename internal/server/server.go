// Package server wires the HTTP API: job submission and retrieval plus
// the operational endpoints (health probes, version).
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/offloadhq/offload/internal/errors"
	"github.com/offloadhq/offload/internal/server/handlers"
	"github.com/offloadhq/offload/internal/server/middleware"
	"github.com/offloadhq/offload/pkg/orchestrator"
)

// Option customizes a Server at construction time.
type Option func(*Server)

// WithOrchestrator attaches the job orchestrator and registers the /jobs
// routes. Without it the server only exposes operational endpoints.
func WithOrchestrator(o *orchestrator.Orchestrator) Option {
	return func(s *Server) { s.orch = o }
}

// WithLogger sets the structured logger used for request-level logging.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithVersionInfo sets the build info served at /version.
func WithVersionInfo(info handlers.VersionInfo) Option {
	return func(s *Server) { s.version = info }
}

// Server is the HTTP front end.
type Server struct {
	host    string
	port    int
	logger  *zap.Logger
	orch    *orchestrator.Orchestrator
	version handlers.VersionInfo
	router  *chi.Mux
	httpSrv *http.Server
}

// New builds a server listening on host:port. The handler is fully
// routed at construction; Start only binds the listener.
func New(host string, port int, opts ...Option) *Server {
	s := &Server{
		host:    host,
		port:    port,
		logger:  zap.NewNop(),
		version: handlers.VersionInfo{Version: "dev"},
	}
	for _, opt := range opts {
		opt(s)
	}

	middleware.SetLogger(s.logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.RealIP)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteError(w, req, http.StatusNotFound, apperrors.CodeNotFound,
			"resource not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteError(w, req, http.StatusMethodNotAllowed, apperrors.CodeMethodNotAllowed,
			"method not allowed", nil)
	})

	r.Get("/health", handlers.HealthHandler)
	r.Get("/health/live", handlers.LivenessHandler)
	r.Get("/health/ready", handlers.ReadinessHandler)
	r.Get("/health/startup", handlers.StartupHandler)
	r.Get("/version", handlers.VersionHandler(s.version))

	if s.orch != nil {
		jobs := handlers.NewJobsHandler(s.orch, s.logger)
		r.Post("/jobs", jobs.Submit)
		r.Get("/jobs", jobs.List)
		r.Get("/jobs/{jobID}", jobs.Status)
		r.Get("/jobs/{jobID}/result", jobs.Result)
	}

	s.router = r
	return s
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured listen port.
func (s *Server) Port() int {
	return s.port
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.host, s.port)
}

// Start serves HTTP until ctx is canceled, then drains in-flight
// requests for up to 15 seconds.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.Addr()))
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return <-errCh
}
