package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldbook/backend/internal/apperr"
	"fieldbook/backend/internal/session/domain"
)

var sessionCols = []string{"token", "user_id", "device_info", "ip_address", "user_agent", "location", "created_at", "last_activity", "expires_at", "active"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = conn.Close()
	})
	return NewPostgresRepository(conn), mock
}

func TestPostgres_Create(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()
	s := &domain.Session{Token: "s1", UserID: "u1", DeviceInfo: "web", CreatedAt: now, LastActivity: now, ExpiresAt: now.Add(time.Hour), Active: true}
	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs("s1", "u1", "web", "", "", sql.NullString{}, now, now, s.ExpiresAt, true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), s))
}

func TestPostgres_GetByToken(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM sessions WHERE token = \$1`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(sessionCols).AddRow("s1", "u1", "web", "1.1.1.1", "curl", nil, now, now, now.Add(time.Hour), true))

	s, err := repo.GetByToken(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "", s.Location)
	assert.True(t, s.Active)

	mock.ExpectQuery(`FROM sessions WHERE token = \$1`).WithArgs("s2").WillReturnError(sql.ErrNoRows)
	s, err = repo.GetByToken(context.Background(), "s2")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestPostgres_ListActiveByUser(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`WHERE user_id = \$1 AND active = TRUE AND expires_at > \$2\s+ORDER BY last_activity DESC`).
		WithArgs("u1", now).
		WillReturnRows(sqlmock.NewRows(sessionCols).
			AddRow("s2", "u1", "phone", "", "", "Lima", now, now, now.Add(time.Hour), true).
			AddRow("s1", "u1", "web", "", "", nil, now, now.Add(-time.Hour), now.Add(time.Hour), true))

	list, err := repo.ListActiveByUser(context.Background(), "u1", now)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Lima", list[0].Location)
}

func TestPostgres_UpdateLastActivity(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	at := time.Now().UTC()
	mock.ExpectExec(`UPDATE sessions SET last_activity = \$2 WHERE token = \$1 AND active = TRUE AND expires_at > \$2`).
		WithArgs("s1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdateLastActivity(context.Background(), "s1", at)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgres_DeactivateAllByUser(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(`UPDATE sessions SET active = FALSE WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeactivateAllByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestPostgres_Deactivate_Unavailable(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(`UPDATE sessions SET active = FALSE WHERE token = \$1`).
		WithArgs("s1").
		WillReturnError(context.DeadlineExceeded)

	_, err := repo.Deactivate(context.Background(), "s1")
	assert.True(t, apperr.Is(err, apperr.KindUnavailable), "got %v", err)
}

func TestPostgres_PurgeExpired(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()
	mock.ExpectExec(`DELETE FROM sessions WHERE expires_at <= \$1`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.PurgeExpired(context.Background(), now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}
