package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/harmonia-app/auth-service/internal/account"
	"github.com/harmonia-app/auth-service/internal/http/features/google"
	"github.com/harmonia-app/auth-service/internal/http/features/password"
	"github.com/harmonia-app/auth-service/internal/http/features/profile"
	"github.com/harmonia-app/auth-service/internal/http/features/verification"
	"github.com/harmonia-app/auth-service/internal/http/middleware"
	"github.com/harmonia-app/auth-service/internal/httputil"
	"github.com/harmonia-app/auth-service/internal/token"
)

// RouterConfig holds the dependencies for the router.
type RouterConfig struct {
	Logger              *slog.Logger
	PasswordService     *account.PasswordService
	VerificationService *account.VerificationService
	GoogleService       *account.GoogleService
	LifecycleService    *account.LifecycleService
	ProfileService      *account.ProfileService
	TokenService        *token.Service
	RateLimit           middleware.RateLimitConfig
}

// NewRouter creates the HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	rateLimit := middleware.RateLimit(cfg.RateLimit, cfg.Logger)

	passwordHandler := password.NewHandler(cfg.Logger, cfg.PasswordService, cfg.TokenService)
	r.Group(func(r chi.Router) {
		r.Use(rateLimit)
		r.Post("/v1/auth/register", passwordHandler.Register)
		r.Post("/v1/auth/login", passwordHandler.Login)
		r.Post("/v1/auth/password/reset-request", passwordHandler.RequestReset)
		r.Post("/v1/auth/password/reset", passwordHandler.Reset)
	})

	verificationHandler := verification.NewHandler(cfg.Logger, cfg.VerificationService)
	r.Group(func(r chi.Router) {
		r.Use(rateLimit)
		r.Post("/v1/auth/verify-email", verificationHandler.Verify)
		r.Post("/v1/auth/verify-email/resend", verificationHandler.Resend)
	})

	if cfg.GoogleService != nil {
		googleHandler := google.NewHandler(cfg.Logger, cfg.GoogleService, cfg.TokenService)
		r.Get("/v1/auth/google", googleHandler.Start)
		r.Get("/v1/auth/google/callback", googleHandler.Callback)
	}

	profileHandler := profile.NewHandler(cfg.Logger, cfg.ProfileService, cfg.LifecycleService, cfg.VerificationService)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.TokenService))
		r.Get("/v1/me", profileHandler.Get)
		r.Patch("/v1/me/handle", profileHandler.UpdateHandle)
		r.Put("/v1/me/photo", profileHandler.UpdatePhoto)
		r.Delete("/v1/me/photo", profileHandler.RemovePhoto)
		r.Post("/v1/me/deactivate", profileHandler.RequestDeactivation)
		r.Post("/v1/me/deactivate/cancel", profileHandler.CancelDeactivation)
		r.Post("/v1/me/verify-email", profileHandler.RequestVerification)
	})

	return r
}
