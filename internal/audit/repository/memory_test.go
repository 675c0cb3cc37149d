package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldbook/backend/internal/audit/domain"
)

func TestMemory_ListByUser_NewestFirstWithPaging(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, action := range []string{domain.ActionRegister, domain.ActionLogin, domain.ActionRefresh} {
		require.NoError(t, repo.Create(ctx, &domain.AuditLog{ID: action, UserID: "u1", Action: action, CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}
	require.NoError(t, repo.Create(ctx, &domain.AuditLog{ID: "other", UserID: "u2", Action: domain.ActionLogin, CreatedAt: base}))

	all, err := repo.ListByUser(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, domain.ActionRefresh, all[0].Action)
	assert.Equal(t, domain.ActionRegister, all[2].Action)

	page, err := repo.ListByUser(ctx, "u1", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, domain.ActionLogin, page[0].Action)

	empty, err := repo.ListByUser(ctx, "u1", 10, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
