package repository

import (
	"context"
	"time"

	"fieldbook/backend/internal/blacklist/domain"
)

// Store persists blacklist entries keyed by token id.
type Store interface {
	// Put records e. Putting an id that is already present keeps the first entry.
	Put(ctx context.Context, e *domain.Entry) error
	// Get returns the entry for tokenID, or nil if none is stored.
	Get(ctx context.Context, tokenID string) (*domain.Entry, error)
	// DeleteExpired removes entries whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
