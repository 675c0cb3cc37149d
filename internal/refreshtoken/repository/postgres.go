package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fieldbook/backend/internal/apperr"
	"fieldbook/backend/internal/db"
	"fieldbook/backend/internal/refreshtoken/domain"
)

const tokenColumns = `token_hash, user_id, session_id, expires_at, created_at, last_used_at, revoked, revoked_at, device_info, ip_address`

// rotateSQL revokes the current record and inserts its successor in a single statement. The insert
// reads from the UPDATE's RETURNING set, so it happens only when the guarded update matched. Under
// READ COMMITTED a concurrent rotation of the same hash blocks on the row lock, re-checks
// revoked = FALSE after the winner commits, and inserts nothing.
const rotateSQL = `
WITH revoked AS (
	UPDATE refresh_tokens
	SET revoked = TRUE, revoked_at = $2, last_used_at = $2
	WHERE token_hash = $1 AND revoked = FALSE AND expires_at > $2
	RETURNING user_id
)
INSERT INTO refresh_tokens (` + tokenColumns + `)
SELECT $3, revoked.user_id, $4, $5, $6, $7, FALSE, NULL, $8, $9 FROM revoked`

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a refresh-token repository backed by Postgres.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

func (r *PostgresRepository) Save(ctx context.Context, t *domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (`+tokenColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.TokenHash, t.UserID, t.SessionID, t.ExpiresAt, t.CreatedAt,
		timeToNullTime(t.LastUsedAt), t.Revoked, timeToNullTime(t.RevokedAt), t.DeviceInfo, t.IPAddress,
	)
	return apperr.Storage("refresh_tokens.save", err)
}

// FindByHash returns the record for hash, or nil if not found.
func (r *PostgresRepository) FindByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM refresh_tokens WHERE token_hash = $1`, hash)
	t, err := scanToken(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Storage("refresh_tokens.find", err)
	}
	return t, nil
}

// FindValidByOwner lists the owner's unrevoked, unexpired records, newest first.
func (r *PostgresRepository) FindValidByOwner(ctx context.Context, userID string, now time.Time) ([]*domain.RefreshToken, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens
		 WHERE user_id = $1 AND revoked = FALSE AND expires_at > $2
		 ORDER BY created_at DESC`, userID, now)
	if err != nil {
		return nil, apperr.Storage("refresh_tokens.find_valid", err)
	}
	defer rows.Close()
	var out []*domain.RefreshToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, apperr.Storage("refresh_tokens.find_valid", err)
		}
		out = append(out, t)
	}
	return out, apperr.Storage("refresh_tokens.find_valid", rows.Err())
}

func (r *PostgresRepository) CountValid(ctx context.Context, userID string, now time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM refresh_tokens WHERE user_id = $1 AND revoked = FALSE AND expires_at > $2`,
		userID, now).Scan(&n)
	if err != nil {
		return 0, apperr.Storage("refresh_tokens.count_valid", err)
	}
	return n, nil
}

// RevokeOne revokes a single record. Already revoked or missing records are left untouched.
func (r *PostgresRepository) RevokeOne(ctx context.Context, hash string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE token_hash = $1 AND revoked = FALSE`,
		hash, at)
	return apperr.Storage("refresh_tokens.revoke_one", err)
}

func (r *PostgresRepository) RevokeBySession(ctx context.Context, sessionID string, at time.Time) (int64, error) {
	return r.revokeWhere(ctx, "refresh_tokens.revoke_by_session", `session_id = $1`, sessionID, at)
}

func (r *PostgresRepository) RevokeAllForOwner(ctx context.Context, userID string, at time.Time) (int64, error) {
	return r.revokeWhere(ctx, "refresh_tokens.revoke_all", `user_id = $1`, userID, at)
}

func (r *PostgresRepository) revokeWhere(ctx context.Context, op, cond, arg string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE `+cond+` AND revoked = FALSE`,
		arg, at)
	if err != nil {
		return 0, apperr.Storage(op, err)
	}
	n, err := res.RowsAffected()
	return n, apperr.Storage(op, err)
}

func (r *PostgresRepository) Rotate(ctx context.Context, currentHash string, now time.Time, next *domain.RefreshToken) (bool, error) {
	res, err := r.db.ExecContext(ctx, rotateSQL,
		currentHash, now,
		next.TokenHash, next.SessionID, next.ExpiresAt, next.CreatedAt, timeToNullTime(next.LastUsedAt),
		next.DeviceInfo, next.IPAddress,
	)
	if err != nil {
		return false, apperr.Storage("refresh_tokens.rotate", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Storage("refresh_tokens.rotate", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) PurgeExpiredOrRevoked(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE revoked = TRUE OR expires_at <= $1`, now)
	if err != nil {
		return 0, apperr.Storage("refresh_tokens.purge", err)
	}
	n, err := res.RowsAffected()
	return n, apperr.Storage("refresh_tokens.purge", err)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanToken(s scanner) (*domain.RefreshToken, error) {
	var (
		t                   domain.RefreshToken
		lastUsed, revokedAt sql.NullTime
	)
	if err := s.Scan(&t.TokenHash, &t.UserID, &t.SessionID, &t.ExpiresAt, &t.CreatedAt,
		&lastUsed, &t.Revoked, &revokedAt, &t.DeviceInfo, &t.IPAddress); err != nil {
		return nil, err
	}
	t.LastUsedAt = nullTimeToPtr(lastUsed)
	t.RevokedAt = nullTimeToPtr(revokedAt)
	return &t, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
