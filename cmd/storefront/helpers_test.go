// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package main

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/storefront/storefront/internal/config"
)

// syncBuffer is a bytes.Buffer safe for a command writing from another goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// isolateEnv keeps the host's config file and database from leaking into a test.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DATABASE_URL", "")
}

// useBackend replaces openBackend with one returning be.
func useBackend(t *testing.T, be *backend, openErr error) *config.Config {
	t.Helper()
	var seen config.Config
	prev := openBackend
	openBackend = func(_ context.Context, cfg *config.Config, _ *slog.Logger) (*backend, error) {
		seen = *cfg
		if openErr != nil {
			return nil, openErr
		}
		return be, nil
	}
	t.Cleanup(func() { openBackend = prev })
	return &seen
}

// useMigrator replaces newMigrator with one returning m.
func useMigrator(t *testing.T, m migrator) *string {
	t.Helper()
	var url string
	prev := newMigrator
	newMigrator = func(databaseURL string) (migrator, error) {
		url = databaseURL
		return m, nil
	}
	t.Cleanup(func() { newMigrator = prev })
	return &url
}

// execute runs the root command with args and returns its combined output.
func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(syncBuffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return buf.String(), err
}
