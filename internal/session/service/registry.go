// Package service tracks user sessions: one per login, touched on every authenticated use.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"fieldbook/backend/internal/clock"
	"fieldbook/backend/internal/logging"
	"fieldbook/backend/internal/session/domain"
	"fieldbook/backend/internal/session/repository"
)

// Metadata describes the client that opened a session.
type Metadata struct {
	DeviceInfo string
	IPAddress  string
	UserAgent  string
	Location   string
}

// Registry opens, lists, touches and deactivates sessions. Every repository call runs under
// the store timeout.
type Registry struct {
	repo    repository.Repository
	clock   clock.Clock
	ttl     time.Duration
	timeout time.Duration
	log     logging.Logger
}

// NewRegistry returns a Registry whose sessions live for ttl.
func NewRegistry(repo repository.Repository, clk clock.Clock, ttl, storeTimeout time.Duration, log logging.Logger) *Registry {
	if log == nil {
		log = logging.Nop()
	}
	return &Registry{repo: repo, clock: clk, ttl: ttl, timeout: storeTimeout, log: log.With("component", "session")}
}

func (r *Registry) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// Open creates an active session for userID with a fresh random token.
func (r *Registry) Open(ctx context.Context, userID string, meta Metadata) (*domain.Session, error) {
	now := r.clock.Now()
	s := &domain.Session{
		Token:        uuid.New().String(),
		UserID:       userID,
		DeviceInfo:   meta.DeviceInfo,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		Location:     meta.Location,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(r.ttl),
		Active:       true,
	}
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()
	if err := r.repo.Create(sctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the session for token, or nil if none exists.
func (r *Registry) Get(ctx context.Context, token string) (*domain.Session, error) {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()
	return r.repo.GetByToken(sctx, token)
}

// ListActive returns the user's valid sessions, most recently active first.
func (r *Registry) ListActive(ctx context.Context, userID string) ([]*domain.Session, error) {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()
	return r.repo.ListActiveByUser(sctx, userID, r.clock.Now())
}

// Touch records activity on a session. Missing, inactive or expired sessions are skipped.
func (r *Registry) Touch(ctx context.Context, token string) error {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()
	ok, err := r.repo.UpdateLastActivity(sctx, token, r.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		r.log.Debug(ctx, "touch skipped: session missing or no longer valid", "session", token)
	}
	return nil
}

// DeactivateOne ends a single session.
func (r *Registry) DeactivateOne(ctx context.Context, token string) error {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()
	_, err := r.repo.Deactivate(sctx, token)
	return err
}

// DeactivateAll ends every session of userID and returns how many were active.
func (r *Registry) DeactivateAll(ctx context.Context, userID string) (int64, error) {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()
	return r.repo.DeactivateAllByUser(sctx, userID)
}

// PurgeExpired deletes sessions whose lifetime has ended.
func (r *Registry) PurgeExpired(ctx context.Context) (int64, error) {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()
	return r.repo.PurgeExpired(sctx, r.clock.Now())
}
