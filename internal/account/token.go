package account

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/harmonia-app/auth-service/internal/domain"
)

// opaqueTokenLen is the number of random bytes in an issued token,
// 256 bits of entropy before encoding.
const opaqueTokenLen = 32

// GenerateToken returns a cryptographically random, URL-safe opaque
// token of n random bytes.
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken derives the stored lookup key for a raw token. Records
// never hold the raw value, so a leaked store cannot be replayed.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// TokenKind selects which credential-token slot on the account an
// operation targets.
type TokenKind string

const (
	TokenKindPasswordReset     TokenKind = "password_reset"
	TokenKindEmailVerification TokenKind = "email_verification"
)

// TokenIssuer mints, validates, and clears the time-bounded credential
// tokens stored on an account. Both kinds share mechanics; only the
// storage slot and TTL differ. Issuing overwrites any prior token of
// the same kind, so at most one valid token per kind exists at a time.
type TokenIssuer struct {
	resetTTL        time.Duration
	verificationTTL time.Duration
}

// NewTokenIssuer creates a token issuer with the configured TTLs.
func NewTokenIssuer(resetTTL, verificationTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{resetTTL: resetTTL, verificationTTL: verificationTTL}
}

// TTL returns the configured time-to-live for a token kind.
func (i *TokenIssuer) TTL(kind TokenKind) time.Duration {
	if kind == TokenKindPasswordReset {
		return i.resetTTL
	}
	return i.verificationTTL
}

// Issue mints a new raw token, stores its hash and expiry on the
// account, and returns the raw value. This is the only time the raw
// token is ever exposed.
func (i *TokenIssuer) Issue(kind TokenKind, acct *domain.Account, now time.Time) (string, error) {
	raw, err := GenerateToken(opaqueTokenLen)
	if err != nil {
		return "", err
	}
	tok := &domain.CredentialToken{
		Hash:      HashToken(raw),
		ExpiresAt: now.Add(i.TTL(kind)),
	}
	switch kind {
	case TokenKindPasswordReset:
		acct.PasswordResetToken = tok
	case TokenKindEmailVerification:
		acct.EmailVerificationToken = tok
	}
	return raw, nil
}

// Validate reports whether the account currently holds a live token of
// the given kind. A missing token or expiry is never valid.
func (i *TokenIssuer) Validate(kind TokenKind, acct *domain.Account, now time.Time) bool {
	return i.slot(kind, acct).Valid(now)
}

// Clear removes the token of the given kind, making it permanently
// unusable. Must be called after every successful consumption.
func (i *TokenIssuer) Clear(kind TokenKind, acct *domain.Account) {
	switch kind {
	case TokenKindPasswordReset:
		acct.PasswordResetToken = nil
	case TokenKindEmailVerification:
		acct.EmailVerificationToken = nil
	}
}

func (i *TokenIssuer) slot(kind TokenKind, acct *domain.Account) *domain.CredentialToken {
	if kind == TokenKindPasswordReset {
		return acct.PasswordResetToken
	}
	return acct.EmailVerificationToken
}
