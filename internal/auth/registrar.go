// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/storefront/storefront/pkg/errutil"
)

// Registrar creates new accounts.
type Registrar struct {
	accounts AccountRepository
	hasher   PasswordHasher
	logger   *slog.Logger
}

// NewRegistrar creates a new Registrar.
func NewRegistrar(accounts AccountRepository, hasher PasswordHasher, logger *slog.Logger) (*Registrar, error) {
	if accounts == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("accounts repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger is required")
	}
	return &Registrar{accounts: accounts, hasher: hasher, logger: logger}, nil
}

// Register hashes password and inserts a new account for email.
//
// The returned error wraps ErrMissingField, ErrPasswordTooLong, ErrHashing,
// ErrDuplicateEmail or ErrStoreUnavailable. Uniqueness is decided by the
// repository's atomic insert; there is no existence pre-check.
func (r *Registrar) Register(ctx context.Context, email, password string) (acct *Account, err error) {
	ctx, span := tracer.Start(ctx, "auth.Register")
	defer func() { endSpan(span, err) }()

	if err := ValidateCredentials(email, password); err != nil {
		return nil, err
	}

	hash, err := r.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, ErrHashing) {
			errutil.LogErrorContext(ctx, r.logger, "password hashing failed", err)
		}
		return nil, err //nolint:wrapcheck // hasher errors are already coded
	}

	acct, err = r.accounts.Insert(ctx, email, hash)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			errutil.LogErrorContext(ctx, r.logger, "account insert failed", err)
		}
		return nil, err //nolint:wrapcheck // repository errors are already coded
	}

	r.logger.InfoContext(ctx, "account registered", "account", acct)
	return acct, nil
}
