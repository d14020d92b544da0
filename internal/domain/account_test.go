package domain

import (
	"testing"
	"time"
)

func TestAccountStatus_CanLogin(t *testing.T) {
	tests := []struct {
		status AccountStatus
		want   bool
	}{
		{StatusPendingVerification, true},
		{StatusActive, true},
		{StatusDeactivationPending, true},
		{StatusDeactivated, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.CanLogin(); got != tt.want {
				t.Errorf("CanLogin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccountStatus_IsTerminal(t *testing.T) {
	if !StatusDeactivated.IsTerminal() {
		t.Error("Deactivated should be terminal")
	}
	for _, s := range []AccountStatus{StatusPendingVerification, StatusActive, StatusDeactivationPending} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestCredentialToken_Valid(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		token *CredentialToken
		want  bool
	}{
		{"nil token", nil, false},
		{"empty hash", &CredentialToken{Hash: "", ExpiresAt: now.Add(time.Hour)}, false},
		{"zero expiry", &CredentialToken{Hash: "abc", ExpiresAt: time.Time{}}, false},
		{"before expiry", &CredentialToken{Hash: "abc", ExpiresAt: now.Add(time.Hour)}, true},
		{"exactly at expiry", &CredentialToken{Hash: "abc", ExpiresAt: now}, false},
		{"after expiry", &CredentialToken{Hash: "abc", ExpiresAt: now.Add(-time.Second)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.token.Valid(now); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccount_HasPassword(t *testing.T) {
	hash := "bcrypt-hash"
	empty := ""

	if (&Account{PasswordHash: nil}).HasPassword() {
		t.Error("nil hash should not count as a password")
	}
	if (&Account{PasswordHash: &empty}).HasPassword() {
		t.Error("empty hash should not count as a password")
	}
	if !(&Account{PasswordHash: &hash}).HasPassword() {
		t.Error("non-empty hash should count as a password")
	}
}

func TestAccount_IsFederated(t *testing.T) {
	if (&Account{Provider: ProviderLocal}).IsFederated() {
		t.Error("local provider should not be federated")
	}
	if !(&Account{Provider: ProviderGoogle}).IsFederated() {
		t.Error("google provider should be federated")
	}
}
