package repository

import (
	"context"
	"testing"
	"time"

	"fieldbook/backend/internal/apperr"
	"fieldbook/backend/internal/session/domain"
)

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	repo := NewMemoryRepository()

	mk := func(token, user string, lastActivity, expires time.Time) *domain.Session {
		return &domain.Session{Token: token, UserID: user, CreatedAt: now, LastActivity: lastActivity, ExpiresAt: expires, Active: true}
	}
	for _, s := range []*domain.Session{
		mk("a", "u1", now, now.Add(time.Hour)),
		mk("b", "u1", now.Add(time.Minute), now.Add(time.Hour)),
		mk("old", "u1", now, now.Add(-time.Second)),
		mk("c", "u2", now, now.Add(time.Hour)),
	} {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create %s: %v", s.Token, err)
		}
	}
	if err := repo.Create(ctx, mk("a", "u9", now, now)); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("duplicate token err = %v, want conflict", err)
	}

	list, _ := repo.ListActiveByUser(ctx, "u1", now)
	if len(list) != 2 || list[0].Token != "b" || list[1].Token != "a" {
		t.Fatalf("ListActiveByUser = %+v, want [b a]", list)
	}

	if ok, _ := repo.UpdateLastActivity(ctx, "a", now.Add(2*time.Minute)); !ok {
		t.Error("touch of a valid session should report true")
	}
	if ok, _ := repo.UpdateLastActivity(ctx, "old", now); ok {
		t.Error("touch of an expired session should report false")
	}
	got, _ := repo.GetByToken(ctx, "a")
	if !got.LastActivity.Equal(now.Add(2 * time.Minute)) {
		t.Errorf("LastActivity = %v", got.LastActivity)
	}
	got.Active = false
	if again, _ := repo.GetByToken(ctx, "a"); !again.Active {
		t.Error("GetByToken must return a copy")
	}

	if ok, _ := repo.Deactivate(ctx, "a"); !ok {
		t.Error("first Deactivate should report true")
	}
	if ok, _ := repo.Deactivate(ctx, "a"); ok {
		t.Error("second Deactivate should report false")
	}
	if n, _ := repo.DeactivateAllByUser(ctx, "u1"); n != 2 {
		t.Errorf("DeactivateAllByUser = %d, want 2 (b and the expired-but-active old)", n)
	}
	if c, _ := repo.GetByToken(ctx, "c"); !c.Active {
		t.Error("other users' sessions must be untouched")
	}

	if n, _ := repo.PurgeExpired(ctx, now); n != 1 {
		t.Errorf("PurgeExpired = %d, want 1", n)
	}
	if s, _ := repo.GetByToken(ctx, "old"); s != nil {
		t.Error("expired session should be gone")
	}
	if s, _ := repo.GetByToken(ctx, "b"); s == nil {
		t.Error("inactive but unexpired session is kept until expiry")
	}
}
