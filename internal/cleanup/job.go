// Package cleanup physically removes auth state that readers already treat as dead.
package cleanup

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"fieldbook/backend/internal/clock"
	"fieldbook/backend/internal/logging"
)

// RefreshTokenPurger deletes refresh records that are revoked or expired at now.
type RefreshTokenPurger interface {
	PurgeExpiredOrRevoked(ctx context.Context, now time.Time) (int64, error)
}

// Purger deletes expired records using its own clock.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Result reports how many records one sweep removed.
type Result struct {
	RefreshTokens int64
	Sessions      int64
	Blacklist     int64
	Skipped       bool
}

// Job runs the three purges. Overlapping calls to Sweep are skipped, not queued.
type Job struct {
	tokens       RefreshTokenPurger
	sessions     Purger
	blacklist    Purger
	clock        clock.Clock
	storeTimeout time.Duration
	log          logging.Logger

	running atomic.Bool
}

func NewJob(tokens RefreshTokenPurger, sessions, blacklist Purger, clk clock.Clock, storeTimeout time.Duration, log logging.Logger) *Job {
	if log == nil {
		log = logging.Nop()
	}
	return &Job{
		tokens:       tokens,
		sessions:     sessions,
		blacklist:    blacklist,
		clock:        clk,
		storeTimeout: storeTimeout,
		log:          log,
	}
}

// Sweep purges all three stores concurrently. The first failure is returned, but the other
// purges still run to completion and their counts are reported.
func (j *Job) Sweep(ctx context.Context) (Result, error) {
	if !j.running.CompareAndSwap(false, true) {
		j.log.Debug(ctx, "cleanup: sweep already in progress, skipping")
		return Result{Skipped: true}, nil
	}
	defer j.running.Store(false)

	started := j.clock.Now()
	var res Result
	var g errgroup.Group
	g.Go(func() error {
		tctx, cancel := context.WithTimeout(ctx, j.storeTimeout)
		defer cancel()
		n, err := j.tokens.PurgeExpiredOrRevoked(tctx, started)
		res.RefreshTokens = n
		return err
	})
	g.Go(func() error {
		n, err := j.sessions.PurgeExpired(ctx)
		res.Sessions = n
		return err
	})
	g.Go(func() error {
		n, err := j.blacklist.PurgeExpired(ctx)
		res.Blacklist = n
		return err
	})
	err := g.Wait()
	if err != nil {
		j.log.Error(ctx, "cleanup: sweep failed", "error", err)
	}
	j.log.Info(ctx, "cleanup: sweep finished",
		"refresh_tokens", res.RefreshTokens,
		"sessions", res.Sessions,
		"blacklist", res.Blacklist,
	)
	return res, err
}

// Run is a task suitable for a Scheduler.
func (j *Job) Run(ctx context.Context) {
	_, _ = j.Sweep(ctx)
}
