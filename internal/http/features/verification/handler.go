package verification

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/harmonia-app/auth-service/internal/account"
	"github.com/harmonia-app/auth-service/internal/domain"
	"github.com/harmonia-app/auth-service/internal/httputil"
)

// Handler handles email verification endpoints.
type Handler struct {
	logger       *slog.Logger
	verification *account.VerificationService
}

// NewHandler creates a new verification handler.
func NewHandler(logger *slog.Logger, verification *account.VerificationService) *Handler {
	return &Handler{logger: logger, verification: verification}
}

// Verify consumes a verification token.
// POST /v1/auth/verify-email
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		httputil.Error(w, http.StatusBadRequest, "token is required")
		return
	}

	acct, err := h.verification.VerifyEmail(r.Context(), req.Token)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidToken):
			httputil.Error(w, http.StatusBadRequest, "invalid verification token")
		case errors.Is(err, domain.ErrTokenExpired):
			httputil.Error(w, http.StatusGone, "verification token has expired, request a new one")
		case errors.Is(err, domain.ErrAlreadyVerified):
			httputil.Error(w, http.StatusConflict, "email is already verified")
		default:
			h.logger.Error("email verification failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "email verification failed")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{
		"message": "email verified successfully",
		"status":  string(acct.Status),
	})
}

// Resend issues a fresh verification token for an unverified account.
// POST /v1/auth/verify-email/resend
func (h *Handler) Resend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		httputil.Error(w, http.StatusBadRequest, "email is required")
		return
	}

	err := h.verification.ResendVerification(r.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAccountNotFound):
			// Don't reveal which addresses exist.
		case errors.Is(err, domain.ErrAlreadyVerified):
			httputil.Error(w, http.StatusConflict, "email is already verified")
			return
		case errors.Is(err, domain.ErrNonLocalProvider):
			httputil.Error(w, http.StatusBadRequest, "provider accounts do not require email verification")
			return
		case errors.Is(err, domain.ErrAccountDeactivated):
			httputil.Error(w, http.StatusForbidden, "account has a deactivation in progress")
			return
		default:
			h.logger.Error("verification resend failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "verification resend failed")
			return
		}
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "if the address exists, a verification email has been sent"})
}
