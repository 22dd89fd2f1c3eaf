// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/storefront/storefront/pkg/errutil"
)

// Authenticator verifies email/password pairs against stored accounts.
type Authenticator struct {
	accounts AccountRepository
	hasher   PasswordHasher
	logger   *slog.Logger

	// dummyHash is verified when no account matches so that unknown emails
	// cost the same as wrong passwords.
	dummyHash string
}

// NewAuthenticator creates a new Authenticator. It hashes a random throwaway
// password with hasher to obtain the timing-equalization hash.
func NewAuthenticator(accounts AccountRepository, hasher PasswordHasher, logger *slog.Logger) (*Authenticator, error) {
	if accounts == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("accounts repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger is required")
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, oops.Code("AUTH_DUMMY_HASH_FAILED").Wrap(err)
	}
	dummy, err := hasher.Hash(hex.EncodeToString(buf))
	if err != nil {
		return nil, oops.Code("AUTH_DUMMY_HASH_FAILED").Wrap(err)
	}

	return &Authenticator{
		accounts:  accounts,
		hasher:    hasher,
		logger:    logger,
		dummyHash: dummy,
	}, nil
}

func invalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
}

// Authenticate returns the account for email if password matches.
//
// Unknown emails, lookup failures and wrong passwords all return
// ErrInvalidCredentials. ErrVerification is returned only when the hasher
// fails on a stored hash.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (acct *Account, err error) {
	ctx, span := tracer.Start(ctx, "auth.Authenticate")
	defer func() { endSpan(span, err) }()

	if email == "" || password == "" {
		return nil, invalidCredentials()
	}

	account, lookupErr := a.accounts.GetByEmail(ctx, email)

	targetHash := a.dummyHash
	exists := false
	switch {
	case lookupErr == nil:
		targetHash = account.PasswordHash
		exists = true
	case errors.Is(lookupErr, ErrNotFound):
	default:
		errutil.LogErrorContext(ctx, a.logger, "account lookup failed during login", lookupErr)
	}

	// Always verify so response time does not depend on account existence.
	valid, verifyErr := a.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !exists {
			return nil, invalidCredentials()
		}
		errutil.LogErrorContext(ctx, a.logger, "password verification failed", verifyErr)
		return nil, oops.Code("AUTH_VERIFICATION_FAILED").
			With("account_id", account.ID.String()).
			Wrap(errors.Join(ErrVerification, verifyErr))
	}

	if !exists || !valid {
		return nil, invalidCredentials()
	}

	if a.hasher.NeedsUpgrade(account.PasswordHash) {
		a.logger.InfoContext(ctx, "password hash uses a non-preferred format", "account", account)
	}

	return account, nil
}
