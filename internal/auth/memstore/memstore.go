// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

// Package memstore provides in-process account and session repositories.
// They back tests and the "memory" database driver used for local
// development; contents are lost when the process exits.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/storefront/storefront/internal/auth"
)

// AccountRepository is an in-memory auth.AccountRepository.
// Uniqueness is checked and the record inserted under one lock.
type AccountRepository struct {
	mu      sync.RWMutex
	byID    map[ulid.ULID]*auth.Account
	byEmail map[string]ulid.ULID
	now     func() time.Time
}

// NewAccountRepository creates an empty AccountRepository.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		byID:    make(map[ulid.ULID]*auth.Account),
		byEmail: make(map[string]ulid.ULID),
		now:     time.Now,
	}
}

// Insert stores a new account.
func (r *AccountRepository) Insert(_ context.Context, email, passwordHash string) (*auth.Account, error) {
	if email == "" || passwordHash == "" {
		return nil, oops.Code("ACCOUNT_INSERT_FAILED").
			With("operation", "insert account").
			Wrap(auth.ErrMissingField)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[email]; taken {
		return nil, oops.Code("ACCOUNT_INSERT_FAILED").
			With("operation", "insert account").
			Wrap(auth.ErrDuplicateEmail)
	}

	acct := &auth.Account{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    r.now().UTC(),
	}
	r.byID[acct.ID] = acct
	r.byEmail[email] = acct.ID

	cp := *acct
	return &cp, nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acct, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	cp := *acct
	return &cp, nil
}

// GetByEmail retrieves an account by exact email.
func (r *AccountRepository) GetByEmail(_ context.Context, email string) (*auth.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	cp := *r.byID[id]
	return &cp, nil
}

// Delete removes an account.
func (r *AccountRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.byID[id]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	delete(r.byEmail, acct.Email)
	delete(r.byID, id)
	return nil
}

// Len returns the number of stored accounts.
func (r *AccountRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// SessionRepository is an in-memory auth.SessionRepository.
type SessionRepository struct {
	mu      sync.RWMutex
	byID    map[ulid.ULID]*auth.Session
	byToken map[string]ulid.ULID
}

// NewSessionRepository creates an empty SessionRepository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		byID:    make(map[ulid.ULID]*auth.Session),
		byToken: make(map[string]ulid.ULID),
	}
}

// Create stores a new session.
func (r *SessionRepository) Create(_ context.Context, session *auth.Session) error {
	if session == nil || session.TokenHash == "" {
		return oops.Code("SESSION_CREATE_FAILED").Wrap(auth.ErrMissingField)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byToken[session.TokenHash]; taken {
		return oops.Code("SESSION_CREATE_FAILED").
			With("session_id", session.ID.String()).
			Errorf("token hash already in use")
	}
	cp := *session
	r.byID[session.ID] = &cp
	r.byToken[session.TokenHash] = session.ID
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byToken[tokenHash]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	cp := *r.byID[id]
	return &cp, nil
}

// UpdateLastSeen updates the LastSeenAt timestamp for a session.
func (r *SessionRepository) UpdateLastSeen(_ context.Context, id ulid.ULID, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[id]
	if !ok {
		return oops.Code("SESSION_NOT_FOUND").With("session_id", id.String()).Wrap(auth.ErrNotFound)
	}
	s.LastSeenAt = lastSeen
	return nil
}

// Delete removes a session by ID.
func (r *SessionRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[id]
	if !ok {
		return oops.Code("SESSION_NOT_FOUND").With("session_id", id.String()).Wrap(auth.ErrNotFound)
	}
	r.remove(s)
	return nil
}

// DeleteByAccount removes all sessions for an account.
func (r *SessionRepository) DeleteByAccount(_ context.Context, accountID ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.byID {
		if s.Payload.AccountID == accountID {
			r.remove(s)
		}
	}
	return nil
}

// DeleteExpired removes sessions expired at now.
func (r *SessionRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, s := range r.byID {
		if s.IsExpiredAt(now) {
			r.remove(s)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions.
func (r *SessionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// remove must be called with mu held.
func (r *SessionRepository) remove(s *auth.Session) {
	delete(r.byToken, s.TokenHash)
	delete(r.byID, s.ID)
}

var (
	_ auth.AccountRepository = (*AccountRepository)(nil)
	_ auth.SessionRepository = (*SessionRepository)(nil)
)
