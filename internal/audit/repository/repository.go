package repository

import (
	"context"

	"fieldbook/backend/internal/audit/domain"
)

// Repository persists audit events. Entries are append-only.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	// ListByUser returns the user's events, newest first.
	ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.AuditLog, error)
}
