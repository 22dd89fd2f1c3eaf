// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package errutil_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/storefront/pkg/errutil"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogError_WithOopsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("ACCOUNT_INSERT_FAILED").
		With("operation", "insert account").
		Errorf("connection refused")

	errutil.LogError(logger, "account insert failed", err)

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "account insert failed", entry["msg"])
	assert.Equal(t, "ACCOUNT_INSERT_FAILED", entry["code"])
	ctx, ok := entry["context"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "insert account", ctx["operation"])
}

func TestLogError_WithStandardError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	errutil.LogError(logger, "lookup failed", errors.New("boom"))

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "boom", entry["error"])
	assert.NotContains(t, entry, "code")
	assert.NotContains(t, entry, "context")
}

type ctxKey struct{}

// recordingHandler captures the context passed to Handle.
type recordingHandler struct {
	slog.Handler
	got context.Context
}

func (h *recordingHandler) Handle(ctx context.Context, r slog.Record) error {
	h.got = ctx
	return h.Handler.Handle(ctx, r)
}

func TestLogErrorContext_PassesContext(t *testing.T) {
	var buf bytes.Buffer
	h := &recordingHandler{Handler: slog.NewJSONHandler(&buf, nil)}
	logger := slog.New(h)

	ctx := context.WithValue(context.Background(), ctxKey{}, "request-1")
	errutil.LogErrorContext(ctx, logger, "failed", errors.New("boom"))

	require.NotNil(t, h.got)
	assert.Equal(t, "request-1", h.got.Value(ctxKey{}))
}
