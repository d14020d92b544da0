package account

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harmonia-app/auth-service/internal/domain"
)

// memStore is an in-memory AccountStore with the same version
// compare-and-swap semantics as the Postgres repository.
type memStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*domain.Account

	// conflictUpdates makes the next N Update calls fail with
	// ErrConflict, to exercise the reload-and-retry path.
	conflictUpdates int
}

func newMemStore() *memStore {
	return &memStore{accounts: make(map[uuid.UUID]*domain.Account)}
}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	c.Handle = clonePtr(a.Handle)
	c.PasswordHash = clonePtr(a.PasswordHash)
	c.ProviderSubject = clonePtr(a.ProviderSubject)
	c.ProfileImageURL = clonePtr(a.ProfileImageURL)
	c.LastLoginAt = clonePtr(a.LastLoginAt)
	c.EmailVerifiedAt = clonePtr(a.EmailVerifiedAt)
	c.DeactivationRequestedAt = clonePtr(a.DeactivationRequestedAt)
	c.DeactivatedAt = clonePtr(a.DeactivatedAt)
	if a.PasswordResetToken != nil {
		t := *a.PasswordResetToken
		c.PasswordResetToken = &t
	}
	if a.EmailVerificationToken != nil {
		t := *a.EmailVerificationToken
		c.EmailVerificationToken = &t
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (s *memStore) find(match func(*domain.Account) bool) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if match(a) {
			return cloneAccount(a), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (s *memStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.find(func(a *domain.Account) bool { return a.ID == id })
}

func (s *memStore) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.find(func(a *domain.Account) bool { return a.Email == email })
}

func (s *memStore) FindByHandle(ctx context.Context, handle string) (*domain.Account, error) {
	return s.find(func(a *domain.Account) bool { return a.Handle != nil && *a.Handle == handle })
}

func (s *memStore) FindByEmailOrHandle(ctx context.Context, identifier string) (*domain.Account, error) {
	return s.find(func(a *domain.Account) bool {
		return a.Email == identifier || (a.Handle != nil && *a.Handle == identifier)
	})
}

func (s *memStore) FindByProviderSubject(ctx context.Context, provider, subjectID string) (*domain.Account, error) {
	return s.find(func(a *domain.Account) bool {
		return a.Provider == provider && a.ProviderSubject != nil && *a.ProviderSubject == subjectID
	})
}

func (s *memStore) FindByPasswordResetToken(ctx context.Context, tokenHash string) (*domain.Account, error) {
	return s.find(func(a *domain.Account) bool {
		return a.PasswordResetToken != nil && a.PasswordResetToken.Hash == tokenHash
	})
}

func (s *memStore) FindByVerificationToken(ctx context.Context, tokenHash string) (*domain.Account, error) {
	return s.find(func(a *domain.Account) bool {
		return a.EmailVerificationToken != nil && a.EmailVerificationToken.Hash == tokenHash
	})
}

func (s *memStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.FindByEmail(ctx, email)
	if err == nil {
		return true, nil
	}
	return false, nil
}

func (s *memStore) ExistsByHandle(ctx context.Context, handle string) (bool, error) {
	_, err := s.FindByHandle(ctx, handle)
	if err == nil {
		return true, nil
	}
	return false, nil
}

func (s *memStore) Create(ctx context.Context, acct *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email == acct.Email {
			return domain.ErrEmailExists
		}
		if a.Handle != nil && acct.Handle != nil && *a.Handle == *acct.Handle {
			return domain.ErrHandleExists
		}
	}
	s.accounts[acct.ID] = cloneAccount(acct)
	return nil
}

func (s *memStore) Update(ctx context.Context, acct *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflictUpdates > 0 {
		s.conflictUpdates--
		return domain.ErrConflict
	}
	current, ok := s.accounts[acct.ID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	if current.Version != acct.Version {
		return domain.ErrConflict
	}
	acct.Version++
	s.accounts[acct.ID] = cloneAccount(acct)
	return nil
}

func (s *memStore) ListDeactivationDue(ctx context.Context, cutoff time.Time) ([]*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*domain.Account
	for _, a := range s.accounts {
		if a.Status == domain.StatusDeactivationPending &&
			a.DeactivationRequestedAt != nil &&
			!a.DeactivationRequestedAt.After(cutoff) {
			due = append(due, cloneAccount(a))
		}
	}
	return due, nil
}

// count returns the number of stored accounts.
func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

// fakeNotifier records notifications for assertions.
type fakeNotifier struct {
	mu            sync.Mutex
	verifications []notice
	resets        []notice
	deactivations []notice
	err           error
}

type notice struct {
	email  string
	token  string
	handle string
}

func (n *fakeNotifier) NotifyVerification(email, token, handle string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verifications = append(n.verifications, notice{email, token, handle})
	return n.err
}

func (n *fakeNotifier) NotifyPasswordReset(email, token, handle string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets = append(n.resets, notice{email, token, handle})
	return n.err
}

func (n *fakeNotifier) NotifyDeactivationRequested(email, handle string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deactivations = append(n.deactivations, notice{email: email, handle: handle})
	return n.err
}
