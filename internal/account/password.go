package account

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/harmonia-app/auth-service/internal/domain"
)

var handlePattern = regexp.MustCompile(`^[a-z0-9_]{3,20}$`)

// HashPassword hashes a password with bcrypt.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// VerifyPassword reports whether the password matches the stored hash.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NormalizeEmail lowercases and trims an address. Uniqueness is
// enforced on the normalized form, fixed at creation.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeHandle lowercases and trims a handle.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

// ValidHandle reports whether a normalized handle is acceptable.
func ValidHandle(handle string) bool {
	return handlePattern.MatchString(handle)
}

// PasswordService owns local registration, login and the password
// reset flow.
type PasswordService struct {
	store    AccountStore
	issuer   *TokenIssuer
	notifier Notifier
	logger   *slog.Logger

	gracePeriod time.Duration
	now         func() time.Time
}

// NewPasswordService creates a password service.
func NewPasswordService(store AccountStore, issuer *TokenIssuer, notifier Notifier, logger *slog.Logger, gracePeriod time.Duration) *PasswordService {
	return &PasswordService{
		store:       store,
		issuer:      issuer,
		notifier:    notifier,
		logger:      logger,
		gracePeriod: gracePeriod,
		now:         time.Now,
	}
}

// Register creates a local account in PendingVerification and sends
// the verification email.
func (s *PasswordService) Register(ctx context.Context, email, handle, password string) (*domain.Account, error) {
	email = NormalizeEmail(email)
	handle = NormalizeHandle(handle)
	if !ValidHandle(handle) {
		return nil, domain.ErrInvalidHandle
	}

	exists, err := s.store.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrEmailExists
	}
	exists, err = s.store.ExistsByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrHandleExists
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	acct := &domain.Account{
		ID:           uuid.New(),
		Email:        email,
		Handle:       &handle,
		PasswordHash: &hash,
		Status:       domain.StatusPendingVerification,
		Provider:     domain.ProviderLocal,
		CreatedAt:    now,
	}

	rawToken, err := s.issuer.Issue(TokenKindEmailVerification, acct, now)
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, acct); err != nil {
		return nil, err
	}

	if err := s.notifier.NotifyVerification(acct.Email, rawToken, handle); err != nil {
		s.logger.Warn("verification email failed", "account_id", acct.ID, "error", err)
	}

	return acct, nil
}

// Login authenticates by email or handle. A deactivated account cannot
// log in; a login inside the deactivation grace window implicitly
// cancels the pending deactivation.
func (s *PasswordService) Login(ctx context.Context, identifier, password string) (*domain.Account, error) {
	acct, err := s.store.FindByEmailOrHandle(ctx, NormalizeEmail(identifier))
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !acct.Status.CanLogin() {
		return nil, domain.ErrAccountDeactivated
	}
	if !acct.HasPassword() {
		return nil, domain.ErrOAuthOnlyAccount
	}
	if !VerifyPassword(password, *acct.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	now := s.now()
	return updateAccount(ctx, s.store, acct.ID, func(a *domain.Account) error {
		if !a.Status.CanLogin() {
			return domain.ErrAccountDeactivated
		}
		reactivateOnLogin(a, now, s.gracePeriod)
		a.LastLoginAt = &now
		return nil
	})
}

// InitiatePasswordReset mints a reset token and sends the reset email.
// Only local accounts can reset a password.
func (s *PasswordService) InitiatePasswordReset(ctx context.Context, email string) error {
	acct, err := s.store.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}
	if acct.IsFederated() {
		return domain.ErrNonLocalProvider
	}
	if !acct.Status.CanLogin() {
		return domain.ErrAccountDeactivated
	}

	now := s.now()
	var rawToken string
	acct, err = updateAccount(ctx, s.store, acct.ID, func(a *domain.Account) error {
		raw, err := s.issuer.Issue(TokenKindPasswordReset, a, now)
		if err != nil {
			return err
		}
		rawToken = raw
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.notifier.NotifyPasswordReset(acct.Email, rawToken, handleOrEmpty(acct)); err != nil {
		s.logger.Warn("password reset email failed", "account_id", acct.ID, "error", err)
	}
	return nil
}

// ResetPassword consumes a reset token and installs the new password.
// An unknown token and an expired token fail differently so the caller
// can tell the user to request a fresh one.
func (s *PasswordService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	acct, err := s.store.FindByPasswordResetToken(ctx, HashToken(rawToken))
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.ErrInvalidToken
		}
		return err
	}

	now := s.now()
	if !s.issuer.Validate(TokenKindPasswordReset, acct, now) {
		return domain.ErrTokenExpired
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	_, err = updateAccount(ctx, s.store, acct.ID, func(a *domain.Account) error {
		if !s.issuer.Validate(TokenKindPasswordReset, a, now) {
			return domain.ErrTokenExpired
		}
		a.PasswordHash = &hash
		s.issuer.Clear(TokenKindPasswordReset, a)
		return nil
	})
	return err
}

// ChangePassword replaces the password of a local account.
func (s *PasswordService) ChangePassword(ctx context.Context, id uuid.UUID, currentPassword, newPassword string) error {
	acct, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !acct.HasPassword() {
		return domain.ErrOAuthOnlyAccount
	}
	if !VerifyPassword(currentPassword, *acct.PasswordHash) {
		return domain.ErrInvalidCredentials
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	_, err = updateAccount(ctx, s.store, id, func(a *domain.Account) error {
		a.PasswordHash = &hash
		return nil
	})
	return err
}
