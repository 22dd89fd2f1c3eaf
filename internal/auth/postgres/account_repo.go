// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package postgres

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/storefront/storefront/internal/auth"
)

// accountsEmailKey is the unique constraint on accounts.email.
const accountsEmailKey = "accounts_email_key"

// accountRow mirrors the accounts table for scanning.
type accountRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r accountRow) toAccount() (*auth.Account, error) {
	id, err := ulid.Parse(r.ID)
	if err != nil {
		return nil, storeError("ACCOUNT_INVALID_ID", "parse account id", err)
	}
	return &auth.Account{
		ID:           id,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
	}, nil
}

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db  DBTX
	now func() time.Time
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db, now: time.Now}
}

// Insert stores a new account in a single statement. Uniqueness is left to
// the accounts_email_key constraint.
func (r *AccountRepository) Insert(ctx context.Context, email, passwordHash string) (*auth.Account, error) {
	if email == "" || passwordHash == "" {
		return nil, oops.Code("ACCOUNT_INSERT_FAILED").
			With("operation", "insert account").
			Wrap(auth.ErrMissingField)
	}

	account := &auth.Account{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    r.now().UTC().Truncate(time.Microsecond),
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`,
		account.ID.String(),
		email,
		passwordHash,
		account.CreatedAt,
	)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INSERT_FAILED").
			With("operation", "insert account").
			With("email", email).
			Wrap(classify(err))
	}
	return account, nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	var row accountRow
	err := pgxscan.Get(ctx, r.db, &row, `
		SELECT id, email, password_hash, created_at
		FROM accounts
		WHERE id = $1
	`, id.String())
	if pgxscan.NotFound(err) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("id", id.String()).
			Wrap(storeError("ACCOUNT_GET_BY_ID_FAILED", "get account by id", err))
	}
	return row.toAccount()
}

// GetByEmail retrieves an account by exact email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	var row accountRow
	err := pgxscan.Get(ctx, r.db, &row, `
		SELECT id, email, password_hash, created_at
		FROM accounts
		WHERE email = $1
	`, email)
	if pgxscan.NotFound(err) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("email", email).
			Wrap(storeError("ACCOUNT_GET_BY_EMAIL_FAILED", "get account by email", err))
	}
	return row.toAccount()
}

// Delete removes an account.
func (r *AccountRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.db.Exec(ctx, `
		DELETE FROM accounts WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.With("id", id.String()).
			Wrap(storeError("ACCOUNT_DELETE_FAILED", "delete account", err))
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Compile-time interface check.
var _ auth.AccountRepository = (*AccountRepository)(nil)
