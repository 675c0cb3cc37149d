// Package blacklist rejects access tokens before their natural expiry (logout, theft response).
package blacklist

import (
	"context"
	"time"

	"fieldbook/backend/internal/blacklist/domain"
	"fieldbook/backend/internal/blacklist/repository"
	"fieldbook/backend/internal/clock"
	"fieldbook/backend/internal/logging"
)

// Guard answers whether an access token id is blocked. Expiry is evaluated lazily against the
// clock, so an entry stops blocking the moment its token would have expired, purge or not.
type Guard struct {
	store   repository.Store
	clock   clock.Clock
	timeout time.Duration
	log     logging.Logger
}

func NewGuard(store repository.Store, clk clock.Clock, storeTimeout time.Duration, log logging.Logger) *Guard {
	if log == nil {
		log = logging.Nop()
	}
	return &Guard{store: store, clock: clk, timeout: storeTimeout, log: log.With("component", "blacklist")}
}

// Block rejects tokenID until expiresAt. Blocking an already blocked id is a no-op, as is
// blocking a token that has already expired.
func (g *Guard) Block(ctx context.Context, tokenID string, expiresAt time.Time, reason string) error {
	now := g.clock.Now()
	if !expiresAt.After(now) {
		return nil
	}
	sctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	err := g.store.Put(sctx, &domain.Entry{TokenID: tokenID, BlacklistedAt: now, ExpiresAt: expiresAt, Reason: reason})
	if err != nil {
		return err
	}
	g.log.Info(ctx, "access token blocked", "jti", tokenID, "reason", reason)
	return nil
}

// IsBlocked reports whether tokenID has an unexpired entry. Store failures are returned as-is
// (unavailable), never as "blocked" or "not blocked".
func (g *Guard) IsBlocked(ctx context.Context, tokenID string) (bool, error) {
	sctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	e, err := g.store.Get(sctx, tokenID)
	if err != nil {
		return false, err
	}
	return e != nil && !e.IsExpired(g.clock.Now()), nil
}

// PurgeExpired deletes entries whose tokens have expired.
func (g *Guard) PurgeExpired(ctx context.Context) (int64, error) {
	sctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.store.DeleteExpired(sctx, g.clock.Now())
}
