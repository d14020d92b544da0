package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/harmonia-app/auth-service/internal/domain"
)

// AccountStore is the persistence boundary for account records. It is
// satisfied by repository.AccountsRepository; tests use an in-memory
// implementation. All reads must reflect prior writes within the same
// process.
type AccountStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByHandle(ctx context.Context, handle string) (*domain.Account, error)
	FindByEmailOrHandle(ctx context.Context, identifier string) (*domain.Account, error)
	FindByProviderSubject(ctx context.Context, provider, subjectID string) (*domain.Account, error)
	FindByPasswordResetToken(ctx context.Context, tokenHash string) (*domain.Account, error)
	FindByVerificationToken(ctx context.Context, tokenHash string) (*domain.Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByHandle(ctx context.Context, handle string) (bool, error)
	Create(ctx context.Context, acct *domain.Account) error
	// Update persists the record iff its Version still matches the
	// stored one, returning domain.ErrConflict otherwise.
	Update(ctx context.Context, acct *domain.Account) error
	// ListDeactivationDue returns accounts in DeactivationPending whose
	// deactivation was requested at or before the cutoff.
	ListDeactivationDue(ctx context.Context, cutoff time.Time) ([]*domain.Account, error)
}

// maxUpdateAttempts bounds the reload-and-reapply loop for version
// conflicts. Business-rule failures are never retried.
const maxUpdateAttempts = 3

// updateAccount runs a read-modify-write against a single record,
// reloading and reapplying the mutation when a concurrent writer bumps
// the version first. The mutation must be pure apart from the record it
// receives.
func updateAccount(ctx context.Context, store AccountStore, id uuid.UUID, mutate func(*domain.Account) error) (*domain.Account, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		acct, err := store.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := mutate(acct); err != nil {
			return nil, err
		}
		err = store.Update(ctx, acct)
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return acct, nil
	}
	return nil, domain.ErrConflict
}
