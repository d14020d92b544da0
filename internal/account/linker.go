package account

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harmonia-app/auth-service/internal/domain"
)

// IdentityLinker reconciles a federated login against the existing
// account population: an identity resolves to the account already
// linked to it, links to an account sharing the email, or creates a
// fresh account. Repeated logins from the same (provider, subject)
// never create duplicates.
type IdentityLinker struct {
	store AccountStore

	handleMinLen int
	handlePrefix string
	now          func() time.Time
}

// NewIdentityLinker creates an identity linker. handleMinLen and
// handlePrefix govern handle derivation for newly created accounts.
func NewIdentityLinker(store AccountStore, handleMinLen int, handlePrefix string) *IdentityLinker {
	return &IdentityLinker{
		store:        store,
		handleMinLen: handleMinLen,
		handlePrefix: handlePrefix,
		now:          time.Now,
	}
}

// Resolve maps an external identity onto exactly one account record,
// creating or linking as needed, then applies the refresh step
// (lastLogin, last-provider-wins picture).
func (l *IdentityLinker) Resolve(ctx context.Context, ident domain.ExternalIdentity) (*domain.Account, error) {
	ident.Email = NormalizeEmail(ident.Email)

	// 1. Already linked.
	acct, err := l.store.FindByProviderSubject(ctx, ident.Provider, ident.SubjectID)
	if err == nil {
		return l.refresh(ctx, acct.ID, ident, nil)
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	// 2. Same email, registered locally or via another provider: link.
	acct, err = l.store.FindByEmail(ctx, ident.Email)
	if err == nil {
		return l.refresh(ctx, acct.ID, ident, func(a *domain.Account) error {
			a.Provider = ident.Provider
			a.ProviderSubject = &ident.SubjectID
			// The provider vouches for the address, which satisfies
			// verification for a pending account.
			if a.Status == domain.StatusPendingVerification {
				return promoteOnVerification(a, l.now())
			}
			return nil
		})
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	// 3. No match: create an Active federated account.
	return l.create(ctx, ident)
}

func (l *IdentityLinker) create(ctx context.Context, ident domain.ExternalIdentity) (*domain.Account, error) {
	handle, err := l.deriveHandle(ctx, ident.Email)
	if err != nil {
		return nil, err
	}

	now := l.now()
	acct := &domain.Account{
		ID:              uuid.New(),
		Email:           ident.Email,
		Handle:          &handle,
		Status:          domain.StatusActive,
		Provider:        ident.Provider,
		ProviderSubject: &ident.SubjectID,
		CreatedAt:       now,
		LastLoginAt:     &now,
		EmailVerifiedAt: &now,
	}
	if ident.Picture != "" {
		acct.ProfileImageURL = &ident.Picture
	}

	if err := l.store.Create(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

func (l *IdentityLinker) refresh(ctx context.Context, id uuid.UUID, ident domain.ExternalIdentity, link func(*domain.Account) error) (*domain.Account, error) {
	now := l.now()
	return updateAccount(ctx, l.store, id, func(a *domain.Account) error {
		if link != nil {
			if err := link(a); err != nil {
				return err
			}
		}
		a.LastLoginAt = &now
		if ident.Picture != "" {
			a.ProfileImageURL = &ident.Picture
		}
		return nil
	})
}

// deriveHandle builds a unique handle from the email local part: strip
// everything outside [A-Za-z0-9], lowercase, prefix-pad when too short,
// then append an ascending integer suffix until unused. Handles are
// finite at any instant, so the loop terminates.
func (l *IdentityLinker) deriveHandle(ctx context.Context, email string) (string, error) {
	local, _, _ := strings.Cut(email, "@")

	var b strings.Builder
	for _, r := range local {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else if r >= 'A' && r <= 'Z' {
			b.WriteRune(r + ('a' - 'A'))
		}
	}
	base := b.String()
	if len(base) < l.handleMinLen {
		base = l.handlePrefix + base
	}
	if len(base) > maxHandleLen {
		base = base[:maxHandleLen]
	}

	taken, err := l.store.ExistsByHandle(ctx, base)
	if err != nil {
		return "", err
	}
	if !taken {
		return base, nil
	}

	for counter := 1; ; counter++ {
		suffix := strconv.Itoa(counter)
		candidate := base
		if len(candidate)+len(suffix) > maxHandleLen {
			candidate = candidate[:maxHandleLen-len(suffix)]
		}
		candidate += suffix

		taken, err := l.store.ExistsByHandle(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
}

const maxHandleLen = 20
