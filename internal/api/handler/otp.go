package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rahulmindslate/nextclass-notify/internal/api/respond"
	"github.com/rahulmindslate/nextclass-notify/internal/otp"
)

type otpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func decodeOTPRequest(w http.ResponseWriter, r *http.Request) (otpRequest, bool) {
	var req otpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_JSON", "Request body must be valid JSON")
		return req, false
	}
	if req.Email == "" {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_EMAIL", "Field 'email' is required")
		return req, false
	}
	return req, true
}

// SendOTP emails a fresh verification code. Also serves the resend route,
// since sending again replaces any previous code.
func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeOTPRequest(w, r)
	if !ok {
		return
	}

	if err := h.otp.Send(r.Context(), req.Email); err != nil {
		if errors.Is(err, otp.ErrInvalidEmail) {
			respond.WriteError(w, http.StatusBadRequest, "INVALID_EMAIL", "Invalid email address")
			return
		}
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "OTP_SEND_FAILED", "Failed to send verification code", err.Error())
		return
	}
	respond.WriteSuccess(w, http.StatusOK, "verification code sent")
}

// VerifyOTP checks a submitted code.
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeOTPRequest(w, r)
	if !ok {
		return
	}
	if req.OTP == "" {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_OTP", "Field 'otp' is required")
		return
	}

	err := h.otp.Verify(r.Context(), req.Email, req.OTP)
	switch {
	case err == nil:
		respond.WriteSuccess(w, http.StatusOK, "email verified")
	case errors.Is(err, otp.ErrInvalidEmail):
		respond.WriteError(w, http.StatusBadRequest, "INVALID_EMAIL", "Invalid email address")
	case errors.Is(err, otp.ErrNoCode), errors.Is(err, otp.ErrExpired):
		respond.WriteError(w, http.StatusBadRequest, "OTP_EXPIRED", err.Error())
	case errors.Is(err, otp.ErrTooMany):
		respond.WriteError(w, http.StatusTooManyRequests, "OTP_LOCKED", err.Error())
	case errors.Is(err, otp.ErrWrongCode):
		respond.WriteError(w, http.StatusUnauthorized, "OTP_WRONG", err.Error())
	default:
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "OTP_VERIFY_FAILED", "Failed to verify code", err.Error())
	}
}
