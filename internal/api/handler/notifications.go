package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rahulmindslate/nextclass-notify/internal/api/respond"
	"github.com/rahulmindslate/nextclass-notify/internal/directory"
	"github.com/rahulmindslate/nextclass-notify/internal/notify"
)

// --------------------------------------------------------------------------
// Scheduler control
// --------------------------------------------------------------------------

// NotificationStatus reports the scheduler state and last cycle summary.
func (h *Handler) NotificationStatus(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, h.scheduler.Status())
}

// StartNotifications starts the minute-cadence scheduler loop.
func (h *Handler) StartNotifications(w http.ResponseWriter, r *http.Request) {
	h.scheduler.Start()
	respond.WriteSuccess(w, http.StatusOK, "notification scheduler started")
}

// StopNotifications stops the scheduler loop. An in-flight cycle is allowed
// to finish.
func (h *Handler) StopNotifications(w http.ResponseWriter, r *http.Request) {
	h.scheduler.Stop()
	respond.WriteSuccess(w, http.StatusOK, "notification scheduler stopped")
}

// TriggerNotifications runs one matching/dispatch cycle immediately.
func (h *Handler) TriggerNotifications(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.Trigger(); err != nil {
		if errors.Is(err, notify.ErrCycleInFlight) {
			respond.WriteError(w, http.StatusConflict, "CYCLE_IN_FLIGHT", "A notification cycle is already running")
			return
		}
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "CYCLE_FAILED", "Notification cycle failed", err.Error())
		return
	}
	respond.WriteSuccess(w, http.StatusOK, "notification cycle completed")
}

// --------------------------------------------------------------------------
// Preferences
// --------------------------------------------------------------------------

// GetPreferences returns the user's notification settings.
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_UID", "Query parameter 'uid' is required")
		return
	}

	prefs, err := h.users.Preferences(r.Context(), uid)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			respond.WriteError(w, http.StatusNotFound, "USER_NOT_FOUND", "No such user")
			return
		}
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "DB_ERROR", "Failed to load preferences", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, prefs)
}

type updatePreferencesRequest struct {
	UID string `json:"uid"`
	directory.Preferences
}

// UpdatePreferences stores the user's notification settings.
func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req updatePreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_JSON", "Request body must be valid JSON")
		return
	}
	if req.UID == "" {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_UID", "Field 'uid' is required")
		return
	}
	if req.NotifyMinutesBefore < 1 || req.NotifyMinutesBefore > 60 {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_LEAD_TIME", "notifyMinutesBefore must be between 1 and 60")
		return
	}

	if err := h.users.UpdatePreferences(r.Context(), req.UID, req.Preferences); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			respond.WriteError(w, http.StatusNotFound, "USER_NOT_FOUND", "No such user")
			return
		}
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "DB_ERROR", "Failed to save preferences", err.Error())
		return
	}
	respond.WriteSuccess(w, http.StatusOK, "preferences saved")
}
