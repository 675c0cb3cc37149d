package repository

import (
	"context"
	"testing"
	"time"

	"fieldbook/backend/internal/blacklist/domain"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = s.Put(ctx, &domain.Entry{TokenID: "a", ExpiresAt: now.Add(time.Minute), Reason: "first"})
	_ = s.Put(ctx, &domain.Entry{TokenID: "a", ExpiresAt: now.Add(time.Minute), Reason: "second"})
	_ = s.Put(ctx, &domain.Entry{TokenID: "b", ExpiresAt: now.Add(time.Hour)})

	e, _ := s.Get(ctx, "a")
	if e == nil || e.Reason != "first" {
		t.Fatalf("Get(a) = %+v", e)
	}
	n, _ := s.DeleteExpired(ctx, now.Add(time.Minute))
	if n != 1 {
		t.Errorf("DeleteExpired = %d, want 1", n)
	}
	if e, _ := s.Get(ctx, "b"); e == nil {
		t.Error("unexpired entry removed")
	}
}
