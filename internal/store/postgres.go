// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

// Package store owns the PostgreSQL connection pool and schema migrations.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connection retry defaults.
const (
	defaultConnectAttempts = 5
	defaultConnectBackoff  = 250 * time.Millisecond
)

// Postgres holds the process-wide connection pool. It is created by Connect
// and must be released with Close.
type Postgres struct {
	pool *pgxpool.Pool
}

// ConnectOption configures Connect.
type ConnectOption func(*connectConfig)

type connectConfig struct {
	attempts uint64
	backoff  time.Duration
}

// WithConnectRetry sets how many times the initial ping is retried and the
// base exponential backoff between attempts.
func WithConnectRetry(attempts uint64, backoff time.Duration) ConnectOption {
	return func(c *connectConfig) {
		c.attempts = attempts
		c.backoff = backoff
	}
}

// Connect opens a pool for dsn and pings the database, retrying with
// exponential backoff until it answers or the attempts are exhausted.
func Connect(ctx context.Context, dsn string, opts ...ConnectOption) (*Postgres, error) {
	cfg := connectConfig{attempts: defaultConnectAttempts, backoff: defaultConnectBackoff}
	for _, opt := range opts {
		opt(&cfg)
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	backoff := retry.WithMaxRetries(cfg.attempts, retry.NewExponential(cfg.backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", cfg.attempts).
			Wrap(err)
	}

	return &Postgres{pool: pool}, nil
}

// Pool returns the underlying connection pool.
func (p *Postgres) Pool() *pgxpool.Pool {
	return p.pool
}

// Ping checks that the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return oops.Code("DB_PING_FAILED").Wrap(err)
	}
	return nil
}

// Close releases all pool connections.
func (p *Postgres) Close() {
	p.pool.Close()
}
