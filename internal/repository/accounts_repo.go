package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/harmonia-app/auth-service/internal/domain"
)

// AccountsRepository persists account records in Postgres. The unique
// constraints on email and handle are the backstop for the
// application-level existence checks; Update is a compare-and-swap on
// the version column.
type AccountsRepository struct {
	// db is the root pool, nil when the repository is bound to a
	// transaction via WithTx. Queries always go through q.
	db *sql.DB
	q  Querier
}

// NewAccountsRepository creates a new accounts repository.
func NewAccountsRepository(db *sql.DB) *AccountsRepository {
	return &AccountsRepository{db: db, q: db}
}

// WithTx returns a repository bound to the transaction. All queries,
// including the CAS update's follow-up probe, run on the transaction.
func (r *AccountsRepository) WithTx(tx *sql.Tx) *AccountsRepository {
	return &AccountsRepository{q: tx}
}

const accountColumns = `
	id, email, handle, password_hash, status, provider, provider_subject,
	profile_image_url, created_at, last_login_at, email_verified_at,
	password_reset_token_hash, password_reset_expires_at,
	email_verification_token_hash, email_verification_expires_at,
	deactivation_requested_at, deactivated_at, version
`

// Create inserts a new account.
func (r *AccountsRepository) Create(ctx context.Context, acct *domain.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	resetHash, resetExpiry := tokenColumns(acct.PasswordResetToken)
	verifyHash, verifyExpiry := tokenColumns(acct.EmailVerificationToken)

	_, err := r.q.ExecContext(ctx, query,
		acct.ID, acct.Email, acct.Handle, acct.PasswordHash, acct.Status,
		acct.Provider, acct.ProviderSubject, acct.ProfileImageURL,
		acct.CreatedAt, acct.LastLoginAt, acct.EmailVerifiedAt,
		resetHash, resetExpiry, verifyHash, verifyExpiry,
		acct.DeactivationRequestedAt, acct.DeactivatedAt, acct.Version,
	)
	return mapUniqueViolation(err)
}

// Update persists the record iff the stored version still matches,
// bumping the version on success. A lost race returns ErrConflict so
// the caller can reload and reapply. The CAS and the not-found probe
// run in one transaction so a zero-row update is classified against a
// consistent snapshot.
func (r *AccountsRepository) Update(ctx context.Context, acct *domain.Account) error {
	if r.db == nil {
		return r.update(ctx, r.q, acct)
	}
	return Tx(ctx, r.db, func(tx *sql.Tx) error {
		return r.update(ctx, tx, acct)
	})
}

func (r *AccountsRepository) update(ctx context.Context, q Querier, acct *domain.Account) error {
	query := `
		UPDATE accounts
		SET email = $2, handle = $3, password_hash = $4, status = $5,
		    provider = $6, provider_subject = $7, profile_image_url = $8,
		    last_login_at = $9, email_verified_at = $10,
		    password_reset_token_hash = $11, password_reset_expires_at = $12,
		    email_verification_token_hash = $13, email_verification_expires_at = $14,
		    deactivation_requested_at = $15, deactivated_at = $16,
		    version = version + 1
		WHERE id = $1 AND version = $17
	`
	resetHash, resetExpiry := tokenColumns(acct.PasswordResetToken)
	verifyHash, verifyExpiry := tokenColumns(acct.EmailVerificationToken)

	result, err := q.ExecContext(ctx, query,
		acct.ID, acct.Email, acct.Handle, acct.PasswordHash, acct.Status,
		acct.Provider, acct.ProviderSubject, acct.ProfileImageURL,
		acct.LastLoginAt, acct.EmailVerifiedAt,
		resetHash, resetExpiry, verifyHash, verifyExpiry,
		acct.DeactivationRequestedAt, acct.DeactivatedAt, acct.Version,
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		exists, err := existsByID(ctx, q, acct.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrAccountNotFound
		}
		return domain.ErrConflict
	}
	acct.Version++
	return nil
}

// FindByID retrieves an account by ID.
func (r *AccountsRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

// FindByEmail retrieves an account by email.
func (r *AccountsRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, `WHERE email = $1`, email)
}

// FindByHandle retrieves an account by handle.
func (r *AccountsRepository) FindByHandle(ctx context.Context, handle string) (*domain.Account, error) {
	return r.findOne(ctx, `WHERE handle = $1`, handle)
}

// FindByEmailOrHandle retrieves an account by either login identifier.
func (r *AccountsRepository) FindByEmailOrHandle(ctx context.Context, identifier string) (*domain.Account, error) {
	return r.findOne(ctx, `WHERE email = $1 OR handle = $1`, identifier)
}

// FindByProviderSubject retrieves the account linked to a federated
// identity.
func (r *AccountsRepository) FindByProviderSubject(ctx context.Context, provider, subjectID string) (*domain.Account, error) {
	return r.findOne(ctx, `WHERE provider = $1 AND provider_subject = $2`, provider, subjectID)
}

// FindByPasswordResetToken retrieves the account holding the given
// reset token hash.
func (r *AccountsRepository) FindByPasswordResetToken(ctx context.Context, tokenHash string) (*domain.Account, error) {
	return r.findOne(ctx, `WHERE password_reset_token_hash = $1`, tokenHash)
}

// FindByVerificationToken retrieves the account holding the given
// verification token hash.
func (r *AccountsRepository) FindByVerificationToken(ctx context.Context, tokenHash string) (*domain.Account, error) {
	return r.findOne(ctx, `WHERE email_verification_token_hash = $1`, tokenHash)
}

// ExistsByEmail checks whether an account exists with the email.
func (r *AccountsRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE email = $1)`, email).Scan(&exists)
	return exists, err
}

// ExistsByHandle checks whether an account exists with the handle.
func (r *AccountsRepository) ExistsByHandle(ctx context.Context, handle string) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE handle = $1)`, handle).Scan(&exists)
	return exists, err
}

// ListDeactivationDue returns DeactivationPending accounts whose grace
// period elapsed at or before the cutoff.
func (r *AccountsRepository) ListDeactivationDue(ctx context.Context, cutoff time.Time) ([]*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE status = $1 AND deactivation_requested_at <= $2
	`
	rows, err := r.q.QueryContext(ctx, query, domain.StatusDeactivationPending, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}
	return accounts, rows.Err()
}

func (r *AccountsRepository) findOne(ctx context.Context, where string, args ...any) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ` + where
	acct, err := scanAccount(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return acct, nil
}

func existsByID(ctx context.Context, q Querier, id uuid.UUID) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*domain.Account, error) {
	acct := &domain.Account{}
	var (
		resetHash    sql.NullString
		resetExpiry  sql.NullTime
		verifyHash   sql.NullString
		verifyExpiry sql.NullTime
	)
	err := row.Scan(
		&acct.ID, &acct.Email, &acct.Handle, &acct.PasswordHash, &acct.Status,
		&acct.Provider, &acct.ProviderSubject, &acct.ProfileImageURL,
		&acct.CreatedAt, &acct.LastLoginAt, &acct.EmailVerifiedAt,
		&resetHash, &resetExpiry, &verifyHash, &verifyExpiry,
		&acct.DeactivationRequestedAt, &acct.DeactivatedAt, &acct.Version,
	)
	if err != nil {
		return nil, err
	}
	acct.PasswordResetToken = tokenFromColumns(resetHash, resetExpiry)
	acct.EmailVerificationToken = tokenFromColumns(verifyHash, verifyExpiry)
	return acct, nil
}

// tokenColumns splits an optional token pair into its two columns.
// Both are null or both are set, never one of each.
func tokenColumns(t *domain.CredentialToken) (*string, *time.Time) {
	if t == nil {
		return nil, nil
	}
	return &t.Hash, &t.ExpiresAt
}

func tokenFromColumns(hash sql.NullString, expiry sql.NullTime) *domain.CredentialToken {
	if !hash.Valid || !expiry.Valid {
		return nil
	}
	return &domain.CredentialToken{Hash: hash.String, ExpiresAt: expiry.Time}
}

func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		switch pqErr.Constraint {
		case "accounts_email_key":
			return domain.ErrEmailExists
		case "accounts_handle_key":
			return domain.ErrHandleExists
		}
	}
	return err
}
