// Package handler provides HTTP handlers for all API endpoints.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rahulmindslate/nextclass-notify/internal/api/respond"
	"github.com/rahulmindslate/nextclass-notify/internal/config"
	"github.com/rahulmindslate/nextclass-notify/internal/directory"
	"github.com/rahulmindslate/nextclass-notify/internal/notify"
)

// SchedulerControl is the slice of the notification scheduler the API needs.
type SchedulerControl interface {
	Start()
	Stop()
	Trigger() error
	Status() notify.CycleStatus
}

// OTPService issues and verifies email sign-in codes.
type OTPService interface {
	Send(ctx context.Context, email string) error
	Verify(ctx context.Context, email, code string) error
}

// HealthChecker reports database connectivity.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	db        HealthChecker
	scheduler SchedulerControl
	users     directory.Store
	otp       OTPService
	cfg       *config.Config
}

// New creates a Handler with shared dependencies.
func New(db HealthChecker, scheduler SchedulerControl, users directory.Store, otp OTPService, cfg *config.Config) *Handler {
	return &Handler{
		db:        db,
		scheduler: scheduler,
		users:     users,
		otp:       otp,
		cfg:       cfg,
	}
}

// Root serves API info at /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "nextClass Notification API",
		"version": "2.0.0",
		"status":  "running",
	})
}

// HealthCheck returns basic health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.db.HealthCheck(r.Context()); err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
