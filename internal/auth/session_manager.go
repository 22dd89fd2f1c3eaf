// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"

	"github.com/storefront/storefront/pkg/errutil"
)

// SessionManager owns session issuance, resolution and invalidation.
// It holds no identity state between calls; every Resolve reads storage.
type SessionManager struct {
	sessions   SessionRepository
	identities *IdentityMapper
	logger     *slog.Logger
	ttl        time.Duration
	now        func() time.Time
}

// SessionManagerOption configures a SessionManager.
type SessionManagerOption func(*SessionManager)

// WithSessionTTL sets the fixed session lifetime.
func WithSessionTTL(ttl time.Duration) SessionManagerOption {
	return func(m *SessionManager) { m.ttl = ttl }
}

// WithClock sets the time source. Used by tests.
func WithClock(now func() time.Time) SessionManagerOption {
	return func(m *SessionManager) { m.now = now }
}

// NewSessionManager creates a new SessionManager.
func NewSessionManager(sessions SessionRepository, identities *IdentityMapper, logger *slog.Logger, opts ...SessionManagerOption) (*SessionManager, error) {
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("sessions repository is required")
	}
	if identities == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("identity mapper is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger is required")
	}

	m := &SessionManager{
		sessions:   sessions,
		identities: identities,
		logger:     logger,
		ttl:        DefaultSessionTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.ttl <= 0 {
		return nil, oops.Code("AUTH_INVALID_CONFIG").With("ttl", m.ttl).Errorf("session ttl must be positive")
	}
	return m, nil
}

// TTL returns the session lifetime.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a session for account and returns the plaintext token to
// hand to the client.
func (m *SessionManager) Issue(ctx context.Context, account *Account) (token string, session *Session, err error) {
	ctx, span := tracer.Start(ctx, "auth.Session.Issue")
	defer func() { endSpan(span, err) }()

	if account == nil {
		return "", nil, oops.Code("SESSION_INVALID_ACCOUNT").Errorf("account is required")
	}

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return "", nil, oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	payload := m.identities.Serialize(account)
	payload.IssuedAt = m.now().UTC()

	session, err = NewSession(tokenHash, payload, m.ttl)
	if err != nil {
		return "", nil, oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	if err := m.sessions.Create(ctx, session); err != nil {
		errutil.LogErrorContext(ctx, m.logger, "session persist failed", err)
		return "", nil, oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("account_id", account.ID.String()).
			Wrap(err)
	}

	return token, session, nil
}

// Resolve maps a session token to an identity. It never fails: missing,
// unknown, expired and stale sessions, as well as store errors, all yield
// an unauthenticated Identity. Its Status tells a token the client should
// drop (SessionInvalid) from a store outage (SessionUnavailable).
func (m *SessionManager) Resolve(ctx context.Context, token string) Identity {
	ctx, span := tracer.Start(ctx, "auth.Session.Resolve")
	defer span.End()

	if token == "" {
		return Identity{}
	}

	session, err := m.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{Status: SessionInvalid}
		}
		m.logger.WarnContext(ctx, "session lookup failed", "error", err)
		return Identity{Status: SessionUnavailable}
	}

	now := m.now()
	if session.IsExpiredAt(now) {
		m.discard(ctx, session, "expired")
		return Identity{Status: SessionInvalid}
	}

	account, err := m.identities.Deserialize(ctx, session.Payload)
	if err != nil {
		if errors.Is(err, ErrStaleSession) {
			m.discard(ctx, session, "stale")
			return Identity{Status: SessionInvalid}
		}
		m.logger.WarnContext(ctx, "session account lookup failed",
			"session_id", session.ID.String(),
			"error", err)
		return Identity{Status: SessionUnavailable}
	}

	if err := m.sessions.UpdateLastSeen(ctx, session.ID, now.UTC()); err != nil {
		m.logger.DebugContext(ctx, "session last-seen update failed",
			"session_id", session.ID.String(),
			"error", err)
	}
	span.SetAttributes(attribute.String("account.id", account.ID.String()))

	return Identity{Account: account, Session: session, Status: SessionValid}
}

// discard deletes an unusable session. Failures are logged only.
func (m *SessionManager) discard(ctx context.Context, session *Session, reason string) {
	m.logger.DebugContext(ctx, "discarding session",
		"session_id", session.ID.String(),
		"reason", reason)
	if err := m.sessions.Delete(ctx, session.ID); err != nil && !errors.Is(err, ErrNotFound) {
		m.logger.WarnContext(ctx, "session delete failed",
			"session_id", session.ID.String(),
			"error", err)
	}
}

// Revoke deletes the session for token. Revoking an unknown or empty token
// is not an error.
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	session, err := m.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if err := m.sessions.Delete(ctx, session.ID); err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete session").
			With("session_id", session.ID.String()).
			Wrap(err)
	}
	return nil
}

// PurgeExpired deletes every expired session and returns how many were removed.
func (m *SessionManager) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := m.sessions.DeleteExpired(ctx, m.now().UTC())
	if err != nil {
		return 0, oops.Code("SESSION_PURGE_FAILED").Wrap(err)
	}
	return n, nil
}
