// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package main

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/storefront/internal/auth"
	"github.com/storefront/storefront/internal/auth/memstore"
	"github.com/storefront/storefront/pkg/errutil"
)

func newSession(t *testing.T, accountID ulid.ULID, issuedAt time.Time, ttl time.Duration) *auth.Session {
	t.Helper()
	_, hash, err := auth.GenerateSessionToken()
	require.NoError(t, err)
	s, err := auth.NewSession(hash, auth.Payload{AccountID: accountID, IssuedAt: issuedAt}, ttl)
	require.NoError(t, err)
	return s
}

func TestSessionsPurge(t *testing.T) {
	isolateEnv(t)
	ctx := context.Background()

	be := memoryBackend()
	acct, err := be.Accounts.Insert(ctx, "a@x.io", "$2a$04$hash")
	require.NoError(t, err)

	require.NoError(t, be.Sessions.Create(ctx, newSession(t, acct.ID, time.Now().Add(-2*time.Hour), time.Hour)))
	require.NoError(t, be.Sessions.Create(ctx, newSession(t, acct.ID, time.Now(), time.Hour)))
	seen := useBackend(t, be, nil)

	out, err := execute(t, ctx, "sessions", "purge", "--database-url", testDatabaseURL)
	require.NoError(t, err)

	assert.Contains(t, out, "Purged 1 expired session(s)")
	assert.Equal(t, 1, be.Sessions.(*memstore.SessionRepository).Len())
	assert.False(t, seen.Database.AutoMigrate)
}

func TestSessionsPurge_RejectsMemoryDriver(t *testing.T) {
	isolateEnv(t)
	t.Setenv("XDG_CONFIG_HOME", writeConfig(t, "database:\n  driver: memory\n"))

	_, err := execute(t, context.Background(), "sessions", "purge")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	errutil.AssertErrorContext(t, err, "field", "database.driver")
}

func TestAccountsDelete(t *testing.T) {
	isolateEnv(t)
	ctx := context.Background()

	be := memoryBackend()
	acct, err := be.Accounts.Insert(ctx, "a@x.io", "$2a$04$hash")
	require.NoError(t, err)
	other, err := be.Accounts.Insert(ctx, "b@x.io", "$2a$04$hash")
	require.NoError(t, err)
	require.NoError(t, be.Sessions.Create(ctx, newSession(t, acct.ID, time.Now(), time.Hour)))
	require.NoError(t, be.Sessions.Create(ctx, newSession(t, other.ID, time.Now(), time.Hour)))
	useBackend(t, be, nil)

	out, err := execute(t, ctx, "accounts", "delete", "a@x.io", "--database-url", testDatabaseURL)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted account a@x.io")

	_, err = be.Accounts.GetByEmail(ctx, "a@x.io")
	require.ErrorIs(t, err, auth.ErrNotFound)
	_, err = be.Accounts.GetByEmail(ctx, "b@x.io")
	require.NoError(t, err)
	assert.Equal(t, 1, be.Sessions.(*memstore.SessionRepository).Len())
}

func TestAccountsDelete_Unknown(t *testing.T) {
	isolateEnv(t)
	useBackend(t, memoryBackend(), nil)

	_, err := execute(t, context.Background(), "accounts", "delete", "nobody@x.io", "--database-url", testDatabaseURL)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "ACCOUNT_NOT_FOUND")
}

func TestAccountsDelete_RequiresEmail(t *testing.T) {
	isolateEnv(t)
	_, err := execute(t, context.Background(), "accounts", "delete")
	require.Error(t, err)
}
