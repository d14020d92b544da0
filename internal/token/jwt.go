// Package token issues and validates the JWT access tokens returned by
// login, registration and OAuth callbacks.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultAccessTokenTTL is used when no TTL is configured.
const DefaultAccessTokenTTL = 24 * time.Hour

// Config holds JWT signing configuration.
type Config struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// Claims are the claims carried by an access token.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// Service signs and validates access tokens with HS256.
type Service struct {
	config Config
	now    func() time.Time
}

// NewService creates a token service.
func NewService(config Config) *Service {
	if config.TTL == 0 {
		config.TTL = DefaultAccessTokenTTL
	}
	return &Service{config: config, now: time.Now}
}

// TTL returns the configured access token lifetime.
func (s *Service) TTL() time.Duration {
	return s.config.TTL
}

// Issue signs an access token for the given account.
func (s *Service) Issue(accountID uuid.UUID, email string) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TTL)),
		},
		Email: email,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.Secret)
}

// Validate parses and verifies an access token, returning its claims.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.config.Secret, nil
	}, jwt.WithIssuer(s.config.Issuer), jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
