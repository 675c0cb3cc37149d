package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"fieldbook/backend/internal/apperr"
	"fieldbook/backend/internal/session/domain"
)

// MemoryRepository keeps sessions in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]*domain.Session)}
}

func (r *MemoryRepository) Create(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.Token]; exists {
		return apperr.Conflict("session token already exists")
	}
	c := *s
	r.sessions[s.Token] = &c
	return nil
}

func (r *MemoryRepository) GetByToken(_ context.Context, token string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[token]
	if !ok {
		return nil, nil
	}
	c := *s
	return &c, nil
}

func (r *MemoryRepository) ListActiveByUser(_ context.Context, userID string, now time.Time) ([]*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Session
	for _, s := range r.sessions {
		if s.UserID == userID && s.IsValid(now) {
			c := *s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out, nil
}

func (r *MemoryRepository) UpdateLastActivity(_ context.Context, token string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok || !s.IsValid(at) {
		return false, nil
	}
	s.LastActivity = at
	return true, nil
}

func (r *MemoryRepository) Deactivate(_ context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok || !s.Active {
		return false, nil
	}
	s.Active = false
	return true, nil
}

func (r *MemoryRepository) DeactivateAllByUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.sessions {
		if s.UserID == userID && s.Active {
			s.Active = false
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for token, s := range r.sessions {
		if s.IsExpired(now) {
			delete(r.sessions, token)
			n++
		}
	}
	return n, nil
}
