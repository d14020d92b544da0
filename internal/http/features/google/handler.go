package google

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/harmonia-app/auth-service/internal/account"
	"github.com/harmonia-app/auth-service/internal/domain"
	"github.com/harmonia-app/auth-service/internal/httputil"
	"github.com/harmonia-app/auth-service/internal/token"
)

const stateCookieName = "oauth_state"

// Handler handles Google OAuth endpoints.
type Handler struct {
	logger *slog.Logger
	google *account.GoogleService
	tokens *token.Service
}

// NewHandler creates a new Google OAuth handler.
func NewHandler(logger *slog.Logger, google *account.GoogleService, tokens *token.Service) *Handler {
	return &Handler{logger: logger, google: google, tokens: tokens}
}

// Start begins the OAuth flow by redirecting to Google.
// GET /v1/auth/google
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	state, err := account.GenerateToken(16)
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "could not start OAuth flow")
		return
	}
	nonce, err := account.GenerateToken(16)
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "could not start OAuth flow")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state, nonce), http.StatusFound)
}

// Callback completes the OAuth flow: state check, code exchange,
// ID-token validation, then identity resolution.
// GET /v1/auth/google/callback
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(stateCookieName)
	if err != nil || state == "" || cookie.Value != state {
		httputil.Error(w, http.StatusBadRequest, "invalid OAuth state")
		return
	}
	// State is single-use.
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})

	code := r.URL.Query().Get("code")
	if code == "" {
		httputil.Error(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	tokenResp, err := h.google.ExchangeCode(r.Context(), code)
	if err != nil {
		h.logger.Error("code exchange failed", "error", err)
		httputil.Error(w, http.StatusBadGateway, "code exchange failed")
		return
	}

	claims, err := h.google.ValidateIDToken(tokenResp.IDToken)
	if err != nil {
		h.logger.Error("ID token validation failed", "error", err)
		httputil.Error(w, http.StatusUnauthorized, "invalid ID token")
		return
	}

	acct, err := h.google.Authenticate(r.Context(), claims)
	if err != nil {
		if errors.Is(err, domain.ErrAccountDeactivated) {
			httputil.Error(w, http.StatusForbidden, "account is deactivated")
			return
		}
		h.logger.Error("OAuth authentication failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "authentication failed")
		return
	}

	accessToken, err := h.tokens.Issue(acct.ID, acct.Email)
	if err != nil {
		h.logger.Error("token issue failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "could not issue token")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"access_token": accessToken,
		"account_id":   acct.ID.String(),
		"email":        acct.Email,
		"handle":       acct.Handle,
		"status":       string(acct.Status),
	})
}
