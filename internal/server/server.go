package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/gstcheck/gstcheck/internal/core/engine"
	apperrors "github.com/gstcheck/gstcheck/internal/errors"
	"github.com/gstcheck/gstcheck/internal/observability"
	"github.com/gstcheck/gstcheck/internal/server/handlers"
	"github.com/gstcheck/gstcheck/internal/server/jobs"
	servermw "github.com/gstcheck/gstcheck/internal/server/middleware"
)

// Options wires the server to its collaborators.
type Options struct {
	Host string
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	MaxUploadBytes int64
	Throttle       servermw.ThrottleConfig

	Limiter  *engine.RateLimiter
	Lookuper engine.Lookuper
	Queue    *jobs.Queue

	Build       handlers.BuildInfo
	Environment string
	// AdminToken enables POST /admin/signal when set.
	AdminToken string
}

// Server is the gstcheck HTTP API.
type Server struct {
	router *chi.Mux
	server *http.Server
	opts   Options
	health *handlers.HealthManager
}

// New builds the router and registers all routes.
func New(opts Options) *Server {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 60 * time.Second
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 120 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s := &Server{
		router: r,
		opts:   opts,
		health: handlers.NewHealthManager(opts.Build.Version),
	}
	handlers.SetHTTPErrorResponder(HandleError)

	if opts.Limiter != nil {
		s.health.RegisterChecker("quota", handlers.QuotaHealth(opts.Limiter))
	}
	if opts.Queue != nil {
		s.health.RegisterChecker("batch_queue", opts.Queue)
	}

	s.registerRoutes()
	return s
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.opts.Host, fmt.Sprint(s.opts.Port))
}

// Start listens on Addr and blocks until the server stops. A graceful
// Shutdown returns nil.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener.
func (s *Server) Serve(listener net.Listener) error {
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	if logger := observability.ServerLogger; logger != nil {
		logger.Info("Starting HTTP server",
			zap.String("addr", listener.Addr().String()),
			zap.String("environment", s.opts.Environment))
	}

	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if logger := observability.ServerLogger; logger != nil {
		logger.Info("Shutting down HTTP server")
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Health exposes the health manager so callers can add checks.
func (s *Server) Health() *handlers.HealthManager {
	return s.health
}
