package repository

import (
	"context"
	"sync"
	"time"

	"fieldbook/backend/internal/blacklist/domain"
)

// MemoryStore keeps entries in process memory. Expired entries stay until DeleteExpired runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]domain.Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]domain.Entry)}
}

func (s *MemoryStore) Put(_ context.Context, e *domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e.TokenID]; !ok {
		s.entries[e.TokenID] = *e
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, tokenID string) (*domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[tokenID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, e := range s.entries {
		if e.IsExpired(now) {
			delete(s.entries, id)
			n++
		}
	}
	return n, nil
}
