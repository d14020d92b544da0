package profile

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/harmonia-app/auth-service/internal/account"
	"github.com/harmonia-app/auth-service/internal/domain"
	"github.com/harmonia-app/auth-service/internal/http/middleware"
	"github.com/harmonia-app/auth-service/internal/httputil"
)

// Handler handles authenticated profile and lifecycle endpoints.
type Handler struct {
	logger       *slog.Logger
	profiles     *account.ProfileService
	lifecycle    *account.LifecycleService
	verification *account.VerificationService
}

// NewHandler creates a new profile handler.
func NewHandler(logger *slog.Logger, profiles *account.ProfileService, lifecycle *account.LifecycleService, verification *account.VerificationService) *Handler {
	return &Handler{logger: logger, profiles: profiles, lifecycle: lifecycle, verification: verification}
}

// ProfileResponse is the account view returned to its owner.
type ProfileResponse struct {
	AccountID       string     `json:"account_id"`
	Email           string     `json:"email"`
	Handle          *string    `json:"handle,omitempty"`
	Status          string     `json:"status"`
	Provider        string     `json:"provider"`
	ProfileImageURL *string    `json:"profile_image_url,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
}

// Get returns the authenticated account's profile.
// GET /v1/me
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetAccountID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	acct, err := h.profiles.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, err, "profile lookup failed")
		return
	}
	httputil.JSON(w, http.StatusOK, toResponse(acct))
}

// UpdateHandle changes the account's handle.
// PATCH /v1/me/handle
func (h *Handler) UpdateHandle(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetAccountID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req struct {
		Handle string `json:"handle"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Handle == "" {
		httputil.Error(w, http.StatusBadRequest, "handle is required")
		return
	}

	acct, err := h.profiles.UpdateHandle(r.Context(), id, req.Handle)
	if err != nil {
		if errors.Is(err, domain.ErrHandleExists) {
			httputil.Error(w, http.StatusConflict, "handle already taken")
			return
		}
		if errors.Is(err, domain.ErrInvalidHandle) {
			httputil.Error(w, http.StatusBadRequest, "handle must be 3-20 lowercase letters, digits or underscores")
			return
		}
		h.respondErr(w, err, "handle update failed")
		return
	}
	httputil.JSON(w, http.StatusOK, toResponse(acct))
}

// UpdatePhoto sets the profile photo URL.
// PUT /v1/me/photo
func (h *Handler) UpdatePhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetAccountID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		httputil.Error(w, http.StatusBadRequest, "url is required")
		return
	}

	acct, err := h.profiles.UpdateProfilePhoto(r.Context(), id, req.URL)
	if err != nil {
		h.respondErr(w, err, "photo update failed")
		return
	}
	httputil.JSON(w, http.StatusOK, toResponse(acct))
}

// RemovePhoto clears the profile photo.
// DELETE /v1/me/photo
func (h *Handler) RemovePhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetAccountID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	acct, err := h.profiles.RemoveProfilePhoto(r.Context(), id)
	if err != nil {
		h.respondErr(w, err, "photo removal failed")
		return
	}
	httputil.JSON(w, http.StatusOK, toResponse(acct))
}

// RequestDeactivation starts the deactivation grace period.
// POST /v1/me/deactivate
func (h *Handler) RequestDeactivation(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetAccountID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	_, err := h.lifecycle.RequestDeactivation(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrAccountDeactivated) {
			httputil.Error(w, http.StatusForbidden, "account is already deactivated")
			return
		}
		h.respondErr(w, err, "deactivation request failed")
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]string{
		"message": "account deactivation requested, log in within the grace period to cancel",
	})
}

// CancelDeactivation reverses a pending deactivation.
// POST /v1/me/deactivate/cancel
func (h *Handler) CancelDeactivation(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetAccountID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	acct, err := h.lifecycle.CancelDeactivation(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNoDeactivationRequest) {
			httputil.Error(w, http.StatusConflict, "no deactivation request found")
			return
		}
		h.respondErr(w, err, "deactivation cancel failed")
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]string{
		"message": "account deactivation cancelled",
		"status":  string(acct.Status),
	})
}

// RequestVerification re-sends the verification email for the
// authenticated account.
// POST /v1/me/verify-email
func (h *Handler) RequestVerification(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetAccountID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	err := h.verification.RequestVerification(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyVerified):
			httputil.Error(w, http.StatusConflict, "email is already verified")
		case errors.Is(err, domain.ErrNonLocalProvider):
			httputil.Error(w, http.StatusBadRequest, "provider accounts do not require email verification")
		case errors.Is(err, domain.ErrAccountDeactivated):
			httputil.Error(w, http.StatusForbidden, "account has a deactivation in progress")
		default:
			h.respondErr(w, err, "verification request failed")
		}
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]string{"message": "verification email sent"})
}

func (h *Handler) respondErr(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, domain.ErrAccountNotFound) {
		httputil.Error(w, http.StatusNotFound, "account not found")
		return
	}
	if errors.Is(err, domain.ErrConflict) {
		httputil.Error(w, http.StatusConflict, "concurrent update, please retry")
		return
	}
	h.logger.Error(msg, "error", err)
	httputil.Error(w, http.StatusInternalServerError, msg)
}

func toResponse(acct *domain.Account) ProfileResponse {
	return ProfileResponse{
		AccountID:       acct.ID.String(),
		Email:           acct.Email,
		Handle:          acct.Handle,
		Status:          string(acct.Status),
		Provider:        acct.Provider,
		ProfileImageURL: acct.ProfileImageURL,
		CreatedAt:       acct.CreatedAt,
		LastLoginAt:     acct.LastLoginAt,
	}
}
