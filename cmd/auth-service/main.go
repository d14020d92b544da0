package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/harmonia-app/auth-service/internal/account"
	"github.com/harmonia-app/auth-service/internal/config"
	httpserver "github.com/harmonia-app/auth-service/internal/http"
	"github.com/harmonia-app/auth-service/internal/http/middleware"
	"github.com/harmonia-app/auth-service/internal/notification"
	"github.com/harmonia-app/auth-service/internal/repository"
	"github.com/harmonia-app/auth-service/internal/token"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := repository.NewDB(repository.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	store := repository.NewAccountsRepository(db)

	var notifier account.Notifier
	if cfg.HasSMTP() {
		notifier = notification.NewEmailService(notification.EmailConfig{
			Host:       cfg.SMTPHost,
			Port:       cfg.SMTPPort,
			User:       cfg.SMTPUser,
			Password:   cfg.SMTPPassword,
			From:       cfg.SMTPFrom,
			FromName:   cfg.SMTPFromName,
			AppBaseURL: cfg.AppBaseURL,
		})
		logger.Info("email service enabled")
	} else {
		notifier = notification.NewLogService(logger)
	}

	issuer := account.NewTokenIssuer(cfg.PasswordResetTTL, cfg.EmailVerificationTTL)
	passwordService := account.NewPasswordService(store, issuer, notifier, logger, cfg.GracePeriod)
	verificationService := account.NewVerificationService(store, issuer, notifier, logger)
	lifecycleService := account.NewLifecycleService(store, notifier, logger, cfg.GracePeriod)
	profileService := account.NewProfileService(store)
	linker := account.NewIdentityLinker(store, cfg.HandleMinLength, cfg.HandlePrefix)

	var googleService *account.GoogleService
	if cfg.HasGoogleOAuth() {
		googleService = account.NewGoogleService(account.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURI:  cfg.GoogleRedirectURI,
		}, linker)
		logger.Info("Google OAuth enabled")
	}

	tokenService := token.NewService(token.Config{
		Secret: []byte(cfg.JWTSecret),
		Issuer: cfg.JWTIssuer,
		TTL:    cfg.AccessTokenTTL,
	})

	// Background deactivation sweeper; single instance per deployment.
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	sweeper := account.NewDeactivationSweeper(store, lifecycleService, logger, cfg.SweepInterval)
	sweeper.Start(sweepCtx)
	logger.Info("deactivation sweeper started", "interval", cfg.SweepInterval.String())

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:              logger,
		PasswordService:     passwordService,
		VerificationService: verificationService,
		GoogleService:       googleService,
		LifecycleService:    lifecycleService,
		ProfileService:      profileService,
		TokenService:        tokenService,
		RateLimit: middleware.RateLimitConfig{
			Enabled:  cfg.RateLimitEnabled,
			Requests: cfg.RateLimitRequests,
			Window:   cfg.RateLimitWindow,
		},
	})

	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	stopSweeper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}
