// Package api wires the HTTP surface: router, middleware, and handlers.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	corslib "github.com/rs/cors"

	"github.com/rahulmindslate/nextclass-notify/internal/api/handler"
	"github.com/rahulmindslate/nextclass-notify/internal/config"
	"github.com/rahulmindslate/nextclass-notify/internal/directory"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(db handler.HealthChecker, scheduler handler.SchedulerControl, users directory.Store, otpSvc handler.OTPService, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type"},
		ExposedHeaders:   []string{"X-Process-Time"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg))
	}

	// --- Handler dependencies ---
	h := handler.New(db, scheduler, users, otpSvc, cfg)

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Email sign-in codes
		r.Post("/send-otp", h.SendOTP)
		r.Post("/verify-otp", h.VerifyOTP)
		r.Post("/resend-otp", h.SendOTP)

		// Notification scheduler
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/status", h.NotificationStatus)
			r.Post("/start", h.StartNotifications)
			r.Post("/stop", h.StopNotifications)
			r.Post("/trigger", h.TriggerNotifications)
			r.Get("/preferences", h.GetPreferences)
			r.Post("/preferences", h.UpdatePreferences)
		})
	})

	return r
}
