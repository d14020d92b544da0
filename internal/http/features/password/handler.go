package password

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/harmonia-app/auth-service/internal/account"
	"github.com/harmonia-app/auth-service/internal/domain"
	"github.com/harmonia-app/auth-service/internal/httputil"
	"github.com/harmonia-app/auth-service/internal/token"
)

// Handler handles password authentication endpoints.
type Handler struct {
	logger   *slog.Logger
	accounts *account.PasswordService
	tokens   *token.Service
}

// NewHandler creates a new password handler.
func NewHandler(logger *slog.Logger, accounts *account.PasswordService, tokens *token.Service) *Handler {
	return &Handler{logger: logger, accounts: accounts, tokens: tokens}
}

// RegisterRequest represents a registration request.
type RegisterRequest struct {
	Email    string `json:"email"`
	Handle   string `json:"handle"`
	Password string `json:"password"`
}

// LoginRequest represents a login request; the identifier is an email
// or a handle.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// AuthResponse is returned on successful registration or login.
type AuthResponse struct {
	AccessToken string  `json:"access_token"`
	AccountID   string  `json:"account_id"`
	Email       string  `json:"email"`
	Handle      *string `json:"handle,omitempty"`
	Status      string  `json:"status"`
}

// Register handles local registration.
// POST /v1/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" || req.Handle == "" {
		httputil.Error(w, http.StatusBadRequest, "email, handle and password are required")
		return
	}

	acct, err := h.accounts.Register(r.Context(), req.Email, req.Handle, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmailExists):
			httputil.Error(w, http.StatusConflict, "email already exists")
		case errors.Is(err, domain.ErrHandleExists):
			httputil.Error(w, http.StatusConflict, "handle already taken")
		case errors.Is(err, domain.ErrInvalidHandle):
			httputil.Error(w, http.StatusBadRequest, "handle must be 3-20 lowercase letters, digits or underscores")
		default:
			h.logger.Error("registration failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	h.respond(w, http.StatusCreated, acct)
}

// Login handles local login.
// POST /v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Identifier == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "identifier and password are required")
		return
	}

	acct, err := h.accounts.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			httputil.Error(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, domain.ErrAccountDeactivated):
			httputil.Error(w, http.StatusForbidden, "account is deactivated")
		case errors.Is(err, domain.ErrOAuthOnlyAccount):
			httputil.Error(w, http.StatusBadRequest, "account uses provider login")
		default:
			h.logger.Error("login failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "login failed")
		}
		return
	}

	h.respond(w, http.StatusOK, acct)
}

// ResetRequestRequest asks for a password reset email.
type ResetRequestRequest struct {
	Email string `json:"email"`
}

// RequestReset initiates a password reset.
// POST /v1/auth/password/reset-request
func (h *Handler) RequestReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		httputil.Error(w, http.StatusBadRequest, "email is required")
		return
	}

	err := h.accounts.InitiatePasswordReset(r.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAccountNotFound):
			// Don't reveal which addresses exist.
		case errors.Is(err, domain.ErrNonLocalProvider):
			httputil.Error(w, http.StatusBadRequest, "cannot reset password for provider accounts")
			return
		case errors.Is(err, domain.ErrAccountDeactivated):
			httputil.Error(w, http.StatusForbidden, "account is deactivated")
			return
		default:
			h.logger.Error("password reset request failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "password reset request failed")
			return
		}
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "if the address exists, a reset email has been sent"})
}

// ResetRequest completes a password reset.
type ResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// Reset completes a password reset.
// POST /v1/auth/password/reset
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" || req.NewPassword == "" {
		httputil.Error(w, http.StatusBadRequest, "token and new_password are required")
		return
	}

	err := h.accounts.ResetPassword(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidToken):
			httputil.Error(w, http.StatusBadRequest, "invalid token")
		case errors.Is(err, domain.ErrTokenExpired):
			httputil.Error(w, http.StatusGone, "token has expired, request a new one")
		default:
			h.logger.Error("password reset failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "password reset failed")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "password reset successfully"})
}

func (h *Handler) respond(w http.ResponseWriter, status int, acct *domain.Account) {
	accessToken, err := h.tokens.Issue(acct.ID, acct.Email)
	if err != nil {
		h.logger.Error("token issue failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	httputil.JSON(w, status, AuthResponse{
		AccessToken: accessToken,
		AccountID:   acct.ID.String(),
		Email:       acct.Email,
		Handle:      acct.Handle,
		Status:      string(acct.Status),
	})
}
