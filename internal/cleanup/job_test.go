package cleanup

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"fieldbook/backend/internal/blacklist"
	blacklistrepo "fieldbook/backend/internal/blacklist/repository"
	"fieldbook/backend/internal/clock"
	refreshdomain "fieldbook/backend/internal/refreshtoken/domain"
	refreshrepo "fieldbook/backend/internal/refreshtoken/repository"
	sessionrepo "fieldbook/backend/internal/session/repository"
	sessionsvc "fieldbook/backend/internal/session/service"
)

type purgerFunc func(ctx context.Context) (int64, error)

func (f purgerFunc) PurgeExpired(ctx context.Context) (int64, error) { return f(ctx) }

type tokenPurgerFunc func(ctx context.Context, now time.Time) (int64, error)

func (f tokenPurgerFunc) PurgeExpiredOrRevoked(ctx context.Context, now time.Time) (int64, error) {
	return f(ctx, now)
}

func TestSweep_PurgesDeadStateOnly(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)

	tokens := refreshrepo.NewMemoryRepository()
	live := &refreshdomain.RefreshToken{TokenHash: "live", UserID: "u1", SessionID: "s1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	expired := &refreshdomain.RefreshToken{TokenHash: "expired", UserID: "u1", SessionID: "s0", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	revoked := &refreshdomain.RefreshToken{TokenHash: "revoked", UserID: "u1", SessionID: "s2", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	for _, rt := range []*refreshdomain.RefreshToken{live, expired, revoked} {
		if err := tokens.Save(ctx, rt); err != nil {
			t.Fatal(err)
		}
	}
	if err := tokens.RevokeOne(ctx, "revoked", now); err != nil {
		t.Fatal(err)
	}

	sessions := sessionsvc.NewRegistry(sessionrepo.NewMemoryRepository(), clk, time.Hour, time.Second, nil)
	if _, err := sessions.Open(ctx, "u1", sessionsvc.Metadata{}); err != nil {
		t.Fatal(err)
	}
	guard := blacklist.NewGuard(blacklistrepo.NewMemoryStore(), clk, time.Second, nil)
	if err := guard.Block(ctx, "jti-1", now.Add(time.Minute), "logout"); err != nil {
		t.Fatal(err)
	}

	clk.Advance(30 * time.Minute)
	job := NewJob(tokens, sessions, guard, clk, time.Second, nil)
	res, err := job.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.RefreshTokens != 2 || res.Sessions != 0 || res.Blacklist != 1 {
		t.Errorf("result = %+v, want 2 tokens, 0 sessions, 1 blacklist", res)
	}
	if rt, _ := tokens.FindByHash(ctx, "live"); rt == nil {
		t.Error("live refresh token must survive the sweep")
	}

	clk.Advance(time.Hour)
	res, err = job.Sweep(ctx)
	if err != nil {
		t.Fatalf("second Sweep: %v", err)
	}
	if res.RefreshTokens != 1 || res.Sessions != 1 {
		t.Errorf("second result = %+v", res)
	}
}

func TestSweep_ReportsFailureButRunsAll(t *testing.T) {
	var sessionsRan, blacklistRan atomic.Bool
	job := NewJob(
		tokenPurgerFunc(func(context.Context, time.Time) (int64, error) { return 0, errors.New("db down") }),
		purgerFunc(func(context.Context) (int64, error) { sessionsRan.Store(true); return 3, nil }),
		purgerFunc(func(context.Context) (int64, error) { blacklistRan.Store(true); return 4, nil }),
		clock.NewFake(time.Now()), time.Second, nil,
	)
	res, err := job.Sweep(context.Background())
	if err == nil || err.Error() != "db down" {
		t.Fatalf("err = %v, want db down", err)
	}
	if !sessionsRan.Load() || !blacklistRan.Load() {
		t.Error("other purges should still run")
	}
	if res.Sessions != 3 || res.Blacklist != 4 {
		t.Errorf("result = %+v", res)
	}
}

func TestSweep_SkipsWhenAlreadyRunning(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var calls atomic.Int32
	job := NewJob(
		tokenPurgerFunc(func(context.Context, time.Time) (int64, error) {
			calls.Add(1)
			close(entered)
			<-release
			return 0, nil
		}),
		purgerFunc(func(context.Context) (int64, error) { return 0, nil }),
		purgerFunc(func(context.Context) (int64, error) { return 0, nil }),
		clock.NewFake(time.Now()), time.Second, nil,
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = job.Sweep(context.Background())
	}()
	<-entered

	res, err := job.Sweep(context.Background())
	if err != nil || !res.Skipped {
		t.Fatalf("overlapping sweep = %+v, %v; want skipped", res, err)
	}
	close(release)
	<-done
	if calls.Load() != 1 {
		t.Errorf("token purge calls = %d, want 1", calls.Load())
	}
}

func TestTickerScheduler_RunsUntilCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		TickerScheduler{Interval: 5 * time.Millisecond}.Run(ctx, func(context.Context) {
			if runs.Add(1) == 3 {
				cancel()
			}
		})
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	if runs.Load() < 3 {
		t.Errorf("runs = %d, want >= 3", runs.Load())
	}
}

func TestTickerScheduler_ZeroIntervalIsDisabled(t *testing.T) {
	called := false
	TickerScheduler{}.Run(context.Background(), func(context.Context) { called = true })
	if called {
		t.Error("task should not run with zero interval")
	}
}
