package server

import (
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gstcheck/gstcheck/internal/appid"
	"github.com/gstcheck/gstcheck/internal/observability"
	"github.com/gstcheck/gstcheck/internal/server/handlers"
	servermw "github.com/gstcheck/gstcheck/internal/server/middleware"
)

func (s *Server) registerRoutes() {
	s.router.Get("/health", s.health.HealthHandler)
	s.router.Get("/health/live", s.health.LivenessHandler)
	s.router.Get("/health/ready", s.health.ReadinessHandler)
	s.router.Get("/health/startup", s.health.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler(s.opts.Build, s.opts.Environment))
	s.router.Get("/metrics", MetricsHandler)

	api := &handlers.API{
		Limiter:        s.opts.Limiter,
		Lookuper:       s.opts.Lookuper,
		Queue:          s.opts.Queue,
		MaxUploadBytes: s.opts.MaxUploadBytes,
	}
	s.router.Route("/v1", func(r chi.Router) {
		r.Use(servermw.Throttle(s.opts.Throttle))
		r.Get("/quota", api.Quota)
		if s.opts.Lookuper != nil {
			r.Post("/lookup", api.Lookup)
		}
		if s.opts.Queue != nil {
			r.Post("/batches", api.SubmitBatch)
			r.Get("/batches/{id}", api.GetBatch)
			r.Get("/batches/{id}/result", api.BatchResult)
		}
	})

	s.registerAdminEndpoint()
}

// registerAdminEndpoint exposes the gofulmen signal endpoint when a token is
// configured.
func (s *Server) registerAdminEndpoint() {
	logger := observability.ServerLogger
	if s.opts.AdminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no " + appid.EnvPrefix + "ADMIN_TOKEN set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.opts.AdminToken,
		RateLimit: 10,
		RateBurst: 5,
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("rate_limit", "10/min, burst 5"))
	}
}
