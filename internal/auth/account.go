// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Account represents a registered storefront user.
type Account struct {
	ID           ulid.ULID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// LogValue keeps the password hash out of structured logs.
func (a *Account) LogValue() slog.Value {
	if a == nil {
		return slog.StringValue("<nil>")
	}
	return slog.GroupValue(
		slog.String("id", a.ID.String()),
		slog.String("email", a.Email),
	)
}

// ValidateCredentials rejects empty emails and passwords.
func ValidateCredentials(email, password string) error {
	if email == "" {
		return oops.Code("AUTH_EMPTY_EMAIL").With("field", "email").Wrap(ErrMissingField)
	}
	if password == "" {
		return oops.Code("AUTH_EMPTY_PASSWORD").With("field", "password").Wrap(ErrMissingField)
	}
	return nil
}

// AccountRepository manages account persistence.
//
// Implementations enforce email uniqueness atomically: two concurrent Inserts
// with the same email must result in exactly one success and one
// ErrDuplicateEmail.
type AccountRepository interface {
	// Insert stores a new account and returns it with its assigned ID.
	// Returns ErrMissingField, ErrDuplicateEmail or ErrStoreUnavailable.
	Insert(ctx context.Context, email, passwordHash string) (*Account, error)

	// GetByID retrieves an account by ID.
	// Returns ErrNotFound if no account has the given ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by exact email.
	// Returns ErrNotFound if no account has the given email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// Delete removes an account. Administrative use only.
	Delete(ctx context.Context, id ulid.ULID) error
}
