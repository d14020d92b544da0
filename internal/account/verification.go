package account

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/harmonia-app/auth-service/internal/domain"
)

// VerificationService owns the email verification flow.
type VerificationService struct {
	store    AccountStore
	issuer   *TokenIssuer
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewVerificationService creates a verification service.
func NewVerificationService(store AccountStore, issuer *TokenIssuer, notifier Notifier, logger *slog.Logger) *VerificationService {
	return &VerificationService{
		store:    store,
		issuer:   issuer,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// VerifyEmail consumes a verification token, promotes the account to
// Active, and clears the token. A second use of the same token fails
// with ErrInvalidToken because the token no longer resolves.
func (s *VerificationService) VerifyEmail(ctx context.Context, rawToken string) (*domain.Account, error) {
	acct, err := s.store.FindByVerificationToken(ctx, HashToken(rawToken))
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}

	now := s.now()
	if !s.issuer.Validate(TokenKindEmailVerification, acct, now) {
		return nil, domain.ErrTokenExpired
	}

	return updateAccount(ctx, s.store, acct.ID, func(a *domain.Account) error {
		if !s.issuer.Validate(TokenKindEmailVerification, a, now) {
			return domain.ErrTokenExpired
		}
		if err := promoteOnVerification(a, now); err != nil {
			return err
		}
		s.issuer.Clear(TokenKindEmailVerification, a)
		return nil
	})
}

// ResendVerification issues a fresh verification token for an
// unverified local account, invalidating any previous one.
func (s *VerificationService) ResendVerification(ctx context.Context, email string) error {
	acct, err := s.store.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}
	return s.sendVerification(ctx, acct)
}

// RequestVerification issues a fresh verification token for the given
// account, used by an authenticated user asking for a re-send.
func (s *VerificationService) RequestVerification(ctx context.Context, id uuid.UUID) error {
	acct, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return s.sendVerification(ctx, acct)
}

func (s *VerificationService) sendVerification(ctx context.Context, acct *domain.Account) error {
	if acct.EmailVerifiedAt != nil {
		return domain.ErrAlreadyVerified
	}
	// Unverified but not PendingVerification means a deactivation is in
	// flight or final; verification resumes once it is cancelled.
	if acct.Status != domain.StatusPendingVerification {
		return domain.ErrAccountDeactivated
	}
	if acct.IsFederated() {
		return domain.ErrNonLocalProvider
	}

	now := s.now()
	var rawToken string
	acct, err := updateAccount(ctx, s.store, acct.ID, func(a *domain.Account) error {
		raw, err := s.issuer.Issue(TokenKindEmailVerification, a, now)
		if err != nil {
			return err
		}
		rawToken = raw
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.notifier.NotifyVerification(acct.Email, rawToken, handleOrEmpty(acct)); err != nil {
		s.logger.Warn("verification email failed", "account_id", acct.ID, "error", err)
	}
	return nil
}
