package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"fieldbook/backend/internal/apperr"
	"fieldbook/backend/internal/refreshtoken/domain"
)

// MemoryRepository keeps refresh-token records in process memory. Every operation, Rotate
// included, runs under one mutex, which gives it the same atomicity as the Postgres statement.
type MemoryRepository struct {
	mu     sync.Mutex
	tokens map[string]*domain.RefreshToken
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tokens: make(map[string]*domain.RefreshToken)}
}

func (r *MemoryRepository) Save(_ context.Context, t *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tokens[t.TokenHash]; exists {
		return apperr.Conflict("refresh token hash already stored")
	}
	r.tokens[t.TokenHash] = clone(t)
	return nil
}

func (r *MemoryRepository) FindByHash(_ context.Context, hash string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[hash]
	if !ok {
		return nil, nil
	}
	return clone(t), nil
}

func (r *MemoryRepository) FindValidByOwner(_ context.Context, userID string, now time.Time) ([]*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.RefreshToken
	for _, t := range r.tokens {
		if t.UserID == userID && t.IsValid(now) {
			out = append(out, clone(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) CountValid(ctx context.Context, userID string, now time.Time) (int, error) {
	list, err := r.FindValidByOwner(ctx, userID, now)
	return len(list), err
}

func (r *MemoryRepository) RevokeOne(_ context.Context, hash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tokens[hash]; ok {
		revoke(t, at)
	}
	return nil
}

func (r *MemoryRepository) RevokeBySession(_ context.Context, sessionID string, at time.Time) (int64, error) {
	return r.revokeWhere(func(t *domain.RefreshToken) bool { return t.SessionID == sessionID }, at), nil
}

func (r *MemoryRepository) RevokeAllForOwner(_ context.Context, userID string, at time.Time) (int64, error) {
	return r.revokeWhere(func(t *domain.RefreshToken) bool { return t.UserID == userID }, at), nil
}

func (r *MemoryRepository) revokeWhere(match func(*domain.RefreshToken) bool, at time.Time) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.tokens {
		if match(t) && revoke(t, at) {
			n++
		}
	}
	return n
}

func (r *MemoryRepository) Rotate(ctx context.Context, currentHash string, now time.Time, next *domain.RefreshToken) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, apperr.Storage("refresh_tokens.rotate", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.tokens[currentHash]
	if !ok || !cur.IsValid(now) {
		return false, nil
	}
	if _, exists := r.tokens[next.TokenHash]; exists {
		return false, apperr.Conflict("refresh token hash already stored")
	}
	revoke(cur, now)
	used := now
	cur.LastUsedAt = &used
	n := clone(next)
	n.UserID = cur.UserID
	n.Revoked = false
	n.RevokedAt = nil
	r.tokens[n.TokenHash] = n
	return true, nil
}

func (r *MemoryRepository) PurgeExpiredOrRevoked(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for hash, t := range r.tokens {
		if !t.IsValid(now) {
			delete(r.tokens, hash)
			n++
		}
	}
	return n, nil
}

// revoke marks t revoked and reports whether it changed.
func revoke(t *domain.RefreshToken, at time.Time) bool {
	if t.Revoked {
		return false
	}
	t.Revoked = true
	ts := at
	t.RevokedAt = &ts
	return true
}

func clone(t *domain.RefreshToken) *domain.RefreshToken {
	c := *t
	if t.LastUsedAt != nil {
		v := *t.LastUsedAt
		c.LastUsedAt = &v
	}
	if t.RevokedAt != nil {
		v := *t.RevokedAt
		c.RevokedAt = &v
	}
	return &c
}
