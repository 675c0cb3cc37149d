package repository

import (
	"context"
	"sync"
	"time"

	"fieldbook/backend/internal/apperr"
	"fieldbook/backend/internal/user/domain"
)

// MemoryRepository keeps users in process memory. Used by STORE_DRIVER=memory and tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*domain.User), byEmail: make(map[string]string)}
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	id, ok := r.byEmail[domain.NormalizeEmail(email)]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryRepository) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := domain.NormalizeEmail(u.Email)
	if _, taken := r.byEmail[email]; taken {
		return apperr.Conflict("email already registered")
	}
	if _, taken := r.byID[u.ID]; taken {
		return apperr.Conflict("user id already exists")
	}
	c := *u
	c.Email = email
	r.byID[c.ID] = &c
	r.byEmail[email] = c.ID
	return nil
}

func (r *MemoryRepository) UpdateRole(_ context.Context, id string, role domain.Role, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		u.Role = role
		u.UpdatedAt = at
	}
	return nil
}
