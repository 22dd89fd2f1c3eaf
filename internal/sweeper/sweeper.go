// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

// Package sweeper periodically purges expired sessions.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/samber/oops"

	"github.com/storefront/storefront/pkg/errutil"
)

// purgeTimeout bounds a single purge run.
const purgeTimeout = time.Minute

// Purger deletes expired sessions. auth.SessionManager implements it.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Recorder counts purged sessions. A nil *observability.Metrics is valid.
type Recorder interface {
	RecordSessionsPurged(n int64)
}

// Sweeper runs Purger on a cron schedule in UTC.
type Sweeper struct {
	cron     *cron.Cron
	purger   Purger
	recorder Recorder
	logger   *slog.Logger
}

// New creates a Sweeper for schedule, a standard five-field cron
// expression or a descriptor such as "@every 10m". recorder may be nil.
func New(schedule string, purger Purger, recorder Recorder, logger *slog.Logger) (*Sweeper, error) {
	if purger == nil {
		return nil, oops.Code("SWEEPER_INVALID_DEPENDENCY").Errorf("purger is required")
	}
	if logger == nil {
		return nil, oops.Code("SWEEPER_INVALID_DEPENDENCY").Errorf("logger is required")
	}

	s := &Sweeper{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		purger:   purger,
		recorder: recorder,
		logger:   logger,
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.Run(context.Background()) }); err != nil {
		return nil, oops.Code("SWEEPER_INVALID_SCHEDULE").
			With("schedule", schedule).
			Wrap(err)
	}
	return s, nil
}

// Start begins running the schedule in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running purge to finish or ctx
// to expire.
func (s *Sweeper) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return oops.Code("SWEEPER_STOP_TIMEOUT").Wrap(ctx.Err())
	}
}

// Run purges expired sessions once and returns the number removed.
// Failures are logged, not returned.
func (s *Sweeper) Run(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, purgeTimeout)
	defer cancel()

	n, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "expired session purge failed", err)
		return 0
	}
	if s.recorder != nil {
		s.recorder.RecordSessionsPurged(n)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "purged expired sessions", "count", n)
	}
	return n
}
