package account

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/harmonia-app/auth-service/internal/domain"
)

// ProfileService handles profile reads and edits outside the lifecycle
// core: handle changes and profile photo updates.
type ProfileService struct {
	store AccountStore
}

// NewProfileService creates a profile service.
func NewProfileService(store AccountStore) *ProfileService {
	return &ProfileService{store: store}
}

// Get returns the account for the given ID.
func (s *ProfileService) Get(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.store.FindByID(ctx, id)
}

// UpdateHandle changes the account's handle. A handle already held by
// the same account is not a conflict.
func (s *ProfileService) UpdateHandle(ctx context.Context, id uuid.UUID, handle string) (*domain.Account, error) {
	handle = NormalizeHandle(handle)
	if !ValidHandle(handle) {
		return nil, domain.ErrInvalidHandle
	}

	existing, err := s.store.FindByHandle(ctx, handle)
	if err == nil && existing.ID != id {
		return nil, domain.ErrHandleExists
	}
	if err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	return updateAccount(ctx, s.store, id, func(a *domain.Account) error {
		a.Handle = &handle
		return nil
	})
}

// UpdateProfilePhoto sets the account's profile image URL.
func (s *ProfileService) UpdateProfilePhoto(ctx context.Context, id uuid.UUID, url string) (*domain.Account, error) {
	return updateAccount(ctx, s.store, id, func(a *domain.Account) error {
		a.ProfileImageURL = &url
		return nil
	})
}

// RemoveProfilePhoto clears the account's profile image URL.
func (s *ProfileService) RemoveProfilePhoto(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return updateAccount(ctx, s.store, id, func(a *domain.Account) error {
		a.ProfileImageURL = nil
		return nil
	})
}
