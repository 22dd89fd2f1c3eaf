// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package auth

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// IdentityMapper converts accounts to session payloads and back.
type IdentityMapper struct {
	accounts AccountRepository
}

// NewIdentityMapper creates a new IdentityMapper.
func NewIdentityMapper(accounts AccountRepository) (*IdentityMapper, error) {
	if accounts == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("accounts repository is required")
	}
	return &IdentityMapper{accounts: accounts}, nil
}

// Serialize reduces account to its ID. IssuedAt is left for the caller.
func (m *IdentityMapper) Serialize(account *Account) Payload {
	return Payload{AccountID: account.ID}
}

// Deserialize loads the account referenced by payload.
// Returns ErrStaleSession if the account no longer exists; store failures
// are returned unchanged.
func (m *IdentityMapper) Deserialize(ctx context.Context, payload Payload) (*Account, error) {
	if payload.AccountID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_STALE").Wrap(ErrStaleSession)
	}

	account, err := m.accounts.GetByID(ctx, payload.AccountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_STALE").
				With("account_id", payload.AccountID.String()).
				Wrap(ErrStaleSession)
		}
		return nil, err //nolint:wrapcheck // store errors propagate unchanged
	}
	return account, nil
}

// SessionStatus records how a session token resolved.
type SessionStatus int

// Session statuses.
const (
	// SessionAbsent means no token was presented.
	SessionAbsent SessionStatus = iota
	// SessionValid means the token maps to a live session and account.
	SessionValid
	// SessionInvalid means the token is unknown, expired or stale. The
	// client should drop it.
	SessionInvalid
	// SessionUnavailable means the store could not be read. The token may
	// still be good.
	SessionUnavailable
)

// String returns the status name.
func (s SessionStatus) String() string {
	switch s {
	case SessionValid:
		return "valid"
	case SessionInvalid:
		return "invalid"
	case SessionUnavailable:
		return "unavailable"
	default:
		return "absent"
	}
}

// Identity is the result of resolving a session. The zero value is an
// unauthenticated identity.
type Identity struct {
	Account *Account
	Session *Session
	Status  SessionStatus
}

// Authenticated reports whether the identity carries an account.
func (i Identity) Authenticated() bool {
	return i.Account != nil
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored in ctx, or the
// unauthenticated zero value.
func IdentityFromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}
