package account

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/harmonia-app/auth-service/internal/domain"
)

// Notifier delivers lifecycle emails. Delivery is best-effort: a
// failure never rolls back the state change that triggered it.
type Notifier interface {
	NotifyVerification(email, token, handle string) error
	NotifyPasswordReset(email, token, handle string) error
	NotifyDeactivationRequested(email, handle string) error
}

// requestDeactivation starts the grace period. Re-requesting simply
// refreshes the timestamp.
func requestDeactivation(acct *domain.Account, now time.Time) error {
	if acct.Status.IsTerminal() {
		return domain.ErrAccountDeactivated
	}
	acct.Status = domain.StatusDeactivationPending
	acct.DeactivationRequestedAt = &now
	return nil
}

// cancelDeactivation reverses a pending deactivation, restoring the
// status the account held before the request.
func cancelDeactivation(acct *domain.Account) error {
	if acct.DeactivationRequestedAt == nil {
		return domain.ErrNoDeactivationRequest
	}
	restorePreRequestStatus(acct)
	return nil
}

// reactivateOnLogin treats a login inside the grace window as an
// implicit cancellation. Outside the window, or with no pending
// request, it is a no-op.
func reactivateOnLogin(acct *domain.Account, now time.Time, gracePeriod time.Duration) {
	if acct.DeactivationRequestedAt == nil {
		return
	}
	if now.Before(acct.DeactivationRequestedAt.Add(gracePeriod)) {
		restorePreRequestStatus(acct)
	}
}

// finalizeDeactivation moves the account to its terminal state once the
// grace period has elapsed. Only the sweeper calls this.
func finalizeDeactivation(acct *domain.Account, now time.Time, gracePeriod time.Duration) error {
	if acct.Status != domain.StatusDeactivationPending {
		return domain.ErrNoDeactivationRequest
	}
	if acct.DeactivationRequestedAt == nil || now.Before(acct.DeactivationRequestedAt.Add(gracePeriod)) {
		return domain.ErrNoDeactivationRequest
	}
	acct.Status = domain.StatusDeactivated
	acct.DeactivatedAt = &now
	acct.DeactivationRequestedAt = nil
	return nil
}

// promoteOnVerification moves a pending account to Active once its
// email is proven owned.
func promoteOnVerification(acct *domain.Account, now time.Time) error {
	if acct.Status != domain.StatusPendingVerification {
		return domain.ErrAlreadyVerified
	}
	acct.Status = domain.StatusActive
	acct.EmailVerifiedAt = &now
	return nil
}

func restorePreRequestStatus(acct *domain.Account) {
	if acct.EmailVerifiedAt != nil {
		acct.Status = domain.StatusActive
	} else {
		acct.Status = domain.StatusPendingVerification
	}
	acct.DeactivationRequestedAt = nil
}

// LifecycleService applies account status transitions through the
// store. The grace period is configuration, never hard-coded in the
// transition functions.
type LifecycleService struct {
	store       AccountStore
	notifier    Notifier
	logger      *slog.Logger
	gracePeriod time.Duration
	now         func() time.Time
}

// NewLifecycleService creates a lifecycle service.
func NewLifecycleService(store AccountStore, notifier Notifier, logger *slog.Logger, gracePeriod time.Duration) *LifecycleService {
	return &LifecycleService{
		store:       store,
		notifier:    notifier,
		logger:      logger,
		gracePeriod: gracePeriod,
		now:         time.Now,
	}
}

// GracePeriod returns the configured deactivation grace period.
func (s *LifecycleService) GracePeriod() time.Duration {
	return s.gracePeriod
}

// RequestDeactivation starts (or refreshes) the deactivation grace
// period and sends the deactivation notice.
func (s *LifecycleService) RequestDeactivation(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	now := s.now()
	acct, err := updateAccount(ctx, s.store, id, func(a *domain.Account) error {
		return requestDeactivation(a, now)
	})
	if err != nil {
		return nil, err
	}

	if err := s.notifier.NotifyDeactivationRequested(acct.Email, handleOrEmpty(acct)); err != nil {
		s.logger.Warn("deactivation notice failed", "account_id", acct.ID, "error", err)
	}
	return acct, nil
}

// CancelDeactivation reverses a pending deactivation request.
func (s *LifecycleService) CancelDeactivation(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return updateAccount(ctx, s.store, id, cancelDeactivation)
}

// FinalizeDeactivation finalizes a single grace-elapsed account. Used
// by the sweeper; the precondition check makes re-runs idempotent.
func (s *LifecycleService) FinalizeDeactivation(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	now := s.now()
	return updateAccount(ctx, s.store, id, func(a *domain.Account) error {
		return finalizeDeactivation(a, now, s.gracePeriod)
	})
}

func handleOrEmpty(acct *domain.Account) string {
	if acct.Handle == nil {
		return ""
	}
	return *acct.Handle
}
