package repository

import (
	"context"
	"time"

	"fieldbook/backend/internal/session/domain"
)

// Repository defines persistence for sessions.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	// GetByToken returns the session, or nil if not found.
	GetByToken(ctx context.Context, token string) (*domain.Session, error)
	// ListActiveByUser returns the user's active, unexpired sessions ordered by last activity, most recent first.
	ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error)
	// UpdateLastActivity touches a valid session and reports whether one was updated.
	UpdateLastActivity(ctx context.Context, token string, at time.Time) (bool, error)
	Deactivate(ctx context.Context, token string) (bool, error)
	DeactivateAllByUser(ctx context.Context, userID string) (int64, error)
	// PurgeExpired deletes sessions whose lifetime ended at or before now.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
