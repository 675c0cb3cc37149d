package repository

import (
	"context"
	"time"

	"fieldbook/backend/internal/refreshtoken/domain"
)

// Repository persists refresh-token records keyed by the hash of their secret.
type Repository interface {
	Save(ctx context.Context, t *domain.RefreshToken) error
	// FindByHash returns the record for hash, or nil if none exists.
	FindByHash(ctx context.Context, hash string) (*domain.RefreshToken, error)
	FindValidByOwner(ctx context.Context, userID string, now time.Time) ([]*domain.RefreshToken, error)
	CountValid(ctx context.Context, userID string, now time.Time) (int, error)
	RevokeOne(ctx context.Context, hash string, at time.Time) error
	RevokeBySession(ctx context.Context, sessionID string, at time.Time) (int64, error)
	RevokeAllForOwner(ctx context.Context, userID string, at time.Time) (int64, error)
	// Rotate revokes the record for currentHash and inserts next, as one atomic step, only when the
	// current record is still unrevoked and unexpired at now. It reports false when that condition
	// did not hold; nothing is written in that case.
	Rotate(ctx context.Context, currentHash string, now time.Time, next *domain.RefreshToken) (bool, error)
	// PurgeExpiredOrRevoked deletes records that are revoked or expired at now.
	PurgeExpiredOrRevoked(ctx context.Context, now time.Time) (int64, error)
}
