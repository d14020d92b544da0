package repository

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/harmonia-app/auth-service/internal/account"
	"github.com/harmonia-app/auth-service/internal/domain"
)

// The repository must work against the pool and inside a transaction,
// and plug in wherever the services expect a store.
var (
	_ Querier              = (*sql.DB)(nil)
	_ Querier              = (*sql.Tx)(nil)
	_ account.AccountStore = (*AccountsRepository)(nil)
)

func TestWithTx(t *testing.T) {
	root := NewAccountsRepository(&sql.DB{})
	if root.db == nil || root.q == nil {
		t.Fatal("root repository must carry the pool as its querier")
	}

	bound := root.WithTx(&sql.Tx{})
	if bound.db != nil {
		t.Error("transaction-bound repository must not hold the pool")
	}
	if bound.q == nil {
		t.Error("transaction-bound repository must query through the transaction")
	}
}

func TestTokenColumns(t *testing.T) {
	hash, expiry := tokenColumns(nil)
	if hash != nil || expiry != nil {
		t.Error("nil token must map to two NULL columns")
	}

	tok := &domain.CredentialToken{
		Hash:      "abc123",
		ExpiresAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	hash, expiry = tokenColumns(tok)
	if hash == nil || *hash != tok.Hash {
		t.Errorf("hash column = %v", hash)
	}
	if expiry == nil || !expiry.Equal(tok.ExpiresAt) {
		t.Errorf("expiry column = %v", expiry)
	}
}

func TestTokenFromColumns(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		hash   sql.NullString
		expiry sql.NullTime
		want   *domain.CredentialToken
	}{
		{"both null", sql.NullString{}, sql.NullTime{}, nil},
		{"hash only", sql.NullString{String: "abc", Valid: true}, sql.NullTime{}, nil},
		{"expiry only", sql.NullString{}, sql.NullTime{Time: at, Valid: true}, nil},
		{
			"both set",
			sql.NullString{String: "abc", Valid: true},
			sql.NullTime{Time: at, Valid: true},
			&domain.CredentialToken{Hash: "abc", ExpiresAt: at},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenFromColumns(tt.hash, tt.expiry)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			if got != nil && (got.Hash != tt.want.Hash || !got.ExpiresAt.Equal(tt.want.ExpiresAt)) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMapUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			"email constraint",
			&pq.Error{Code: "23505", Constraint: "accounts_email_key"},
			domain.ErrEmailExists,
		},
		{
			"handle constraint",
			&pq.Error{Code: "23505", Constraint: "accounts_handle_key"},
			domain.ErrHandleExists,
		},
		{
			"other unique constraint passes through",
			&pq.Error{Code: "23505", Constraint: "accounts_provider_subject_idx"},
			nil,
		},
		{
			"non-unique pq error passes through",
			&pq.Error{Code: "23503"},
			nil,
		},
		{
			"plain error passes through",
			errors.New("connection reset"),
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapUniqueViolation(tt.err)
			if tt.want != nil {
				if !errors.Is(got, tt.want) {
					t.Errorf("got %v, want %v", got, tt.want)
				}
				return
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("got %v, want the original error", got)
			}
		})
	}
}
