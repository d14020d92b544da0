package domain

import "errors"

// Account errors
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrEmailExists        = errors.New("email already exists")
	ErrHandleExists       = errors.New("handle already exists")
	ErrInvalidHandle      = errors.New("handle has invalid format")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDeactivated = errors.New("account is deactivated")
	ErrAlreadyVerified    = errors.New("email is already verified")
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")
)

// Lifecycle errors
var (
	ErrNoDeactivationRequest = errors.New("no deactivation request found")
	ErrOAuthOnlyAccount      = errors.New("account has no password, use provider login")
	ErrNonLocalProvider      = errors.New("operation not available for provider accounts")
)

// ErrConflict is returned when an optimistic-concurrency update loses
// the race and the bounded retry budget is exhausted.
var ErrConflict = errors.New("concurrent update conflict")
