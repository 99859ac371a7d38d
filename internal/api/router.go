package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/truthsource/syncwatch/internal/api/alertrules"
	"github.com/truthsource/syncwatch/internal/api/alerts"
	"github.com/truthsource/syncwatch/internal/api/checks"
	"github.com/truthsource/syncwatch/internal/api/discrepancies"
	"github.com/truthsource/syncwatch/internal/api/middleware"
	"github.com/truthsource/syncwatch/internal/api/scores"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Rate limiter for write endpoints
	ipLimiter := middleware.NewRateLimiter(s.config.RateLimitPerIP)

	// Global middleware
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.PrometheusMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		checkHandler := checks.NewHandler(s.store, s.checker)
		r.Route("/checks", func(r chi.Router) {
			r.Get("/", checkHandler.List)
			r.Get("/{id}", checkHandler.GetByID)
			r.Get("/{id}/discrepancies", checkHandler.ListDiscrepancies)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitByIP(ipLimiter))
				r.Post("/", checkHandler.Start)
				r.Post("/{id}/abort", checkHandler.Abort)
			})
		})

		discHandler := discrepancies.NewHandler(s.store)
		r.Route("/discrepancies", func(r chi.Router) {
			r.Get("/", discHandler.ListOpen)
			r.Get("/{id}", discHandler.GetByID)
			r.Get("/{id}/remediations", discHandler.ListRemediations)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitByIP(ipLimiter))
				r.Put("/{id}/status", discHandler.UpdateStatus)
			})
		})

		ruleHandler := alertrules.NewHandler(s.store)
		r.Route("/alert-rules", func(r chi.Router) {
			r.Get("/", ruleHandler.List)
			r.Get("/{id}", ruleHandler.GetByID)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitByIP(ipLimiter))
				r.Post("/", ruleHandler.Create)
				r.Put("/{id}", ruleHandler.Update)
				r.Delete("/{id}", ruleHandler.Delete)
				r.Put("/{id}/active", ruleHandler.SetActive)
			})
		})

		alertHandler := alerts.NewHandler(s.store, s.alerts)
		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", alertHandler.List)
			r.Get("/{id}", alertHandler.GetByID)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitByIP(ipLimiter))
				r.Post("/{id}/acknowledge", alertHandler.Acknowledge)
				r.Post("/{id}/resolve", alertHandler.Resolve)
				r.Post("/{id}/snooze", alertHandler.Snooze)
			})
		})

		scoreHandler := scores.NewHandler(s.store, s.metricStore, s.config.Benchmark)
		r.Route("/scores", func(r chi.Router) {
			r.Get("/history", scoreHandler.History)
			r.Get("/trend", scoreHandler.Trend)
			r.Get("/breakdown", scoreHandler.Breakdown)
		})
	})

	// Health checks (public, no rate limit)
	r.Get("/health", s.healthHandler.Health)
	r.Get("/health/live", s.healthHandler.Live)
	r.Get("/health/ready", s.healthHandler.Ready)

	return r
}
