package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccountStatus tracks where an account is in its lifecycle.
//
// The legal transitions are:
//
//	PendingVerification -> Active                (email verified)
//	PendingVerification -> DeactivationPending   (deactivation requested)
//	Active              -> DeactivationPending   (deactivation requested)
//	DeactivationPending -> Active                (cancel, previously verified)
//	DeactivationPending -> PendingVerification   (cancel, never verified)
//	DeactivationPending -> Deactivated           (grace period elapsed)
//
// Deactivated is terminal.
type AccountStatus string

const (
	StatusPendingVerification AccountStatus = "pending_verification"
	StatusActive              AccountStatus = "active"
	StatusDeactivationPending AccountStatus = "deactivation_pending"
	StatusDeactivated         AccountStatus = "deactivated"
)

// CanLogin reports whether an account in this status may sign in.
// Unverified accounts and accounts inside a deactivation grace period
// can still log in; only fully deactivated accounts cannot.
func (s AccountStatus) CanLogin() bool {
	return s == StatusActive || s == StatusPendingVerification || s == StatusDeactivationPending
}

// IsTerminal reports whether no transition leaves this status.
func (s AccountStatus) IsTerminal() bool {
	return s == StatusDeactivated
}

// Identity provider names.
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

// CredentialToken is an opaque single-use token stored on the account.
// The raw value is only ever returned to the caller at issue time; the
// record keeps a SHA-256 hash used as the lookup key. Hash and expiry
// are always set together.
type CredentialToken struct {
	Hash      string
	ExpiresAt time.Time
}

// Valid reports whether the token can still be consumed at the given
// instant. Expiry is exclusive: a token presented exactly at its
// expiry time is already expired.
func (t *CredentialToken) Valid(now time.Time) bool {
	if t == nil || t.Hash == "" || t.ExpiresAt.IsZero() {
		return false
	}
	return now.Before(t.ExpiresAt)
}

// Account is the central entity: one record per identity, whether it
// was created by local registration or by a federated login.
type Account struct {
	ID              uuid.UUID
	Email           string
	Handle          *string
	PasswordHash    *string
	Status          AccountStatus
	Provider        string
	ProviderSubject *string
	ProfileImageURL *string

	CreatedAt   time.Time
	LastLoginAt *time.Time

	// EmailVerifiedAt records that the address was proven owned, either
	// by consuming a verification token or by a federated provider
	// vouching for it. A deactivation cancel consults it to decide
	// which status to restore.
	EmailVerifiedAt *time.Time

	PasswordResetToken     *CredentialToken
	EmailVerificationToken *CredentialToken

	DeactivationRequestedAt *time.Time
	DeactivatedAt           *time.Time

	// Version is bumped by every store update; compare-and-swap on it
	// detects concurrent writers to the same record.
	Version int64
}

// IsFederated reports whether the account's identity is vouched for by
// an external provider rather than a local password.
func (a *Account) IsFederated() bool {
	return a.Provider != "" && a.Provider != ProviderLocal
}

// HasPassword reports whether local password login is possible.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// ExternalIdentity is a normalized identity record produced by an
// OAuth2 callback, the input to identity linking.
type ExternalIdentity struct {
	Provider  string
	SubjectID string
	Email     string
	Picture   string
}
