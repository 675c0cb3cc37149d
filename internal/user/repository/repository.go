package repository

import (
	"context"
	"time"

	"fieldbook/backend/internal/user/domain"
)

// Repository defines persistence for users. Lookups return (nil, nil) when the user does not exist.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// Create fails with an apperr conflict when the email is taken.
	Create(ctx context.Context, u *domain.User) error
	UpdateRole(ctx context.Context, id string, role domain.Role, at time.Time) error
}
