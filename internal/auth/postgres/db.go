// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

// Package postgres implements the auth repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/storefront/storefront/internal/auth"
)

// DBTX is the subset of pgxpool.Pool used by the repositories.
// pgxmock.PgxPoolIface satisfies it in tests.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// classify maps a driver error onto the auth error taxonomy.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			if pgErr.ConstraintName == accountsEmailKey {
				return errors.Join(auth.ErrDuplicateEmail, err)
			}
		case pgerrcode.NotNullViolation, pgerrcode.CheckViolation:
			return errors.Join(auth.ErrMissingField, err)
		}
	}
	return errors.Join(auth.ErrStoreUnavailable, err)
}

// storeError wraps err as ErrStoreUnavailable with an operation tag.
func storeError(code, operation string, err error) error {
	return oops.Code(code).
		With("operation", operation).
		Wrap(errors.Join(auth.ErrStoreUnavailable, err))
}
