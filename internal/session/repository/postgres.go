package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fieldbook/backend/internal/apperr"
	"fieldbook/backend/internal/db"
	"fieldbook/backend/internal/session/domain"
)

const sessionColumns = `token, user_id, device_info, ip_address, user_agent, location, created_at, last_activity, expires_at, active`

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a session repository backed by Postgres.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// Create persists the session. The session must have Token set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.Token, s.UserID, s.DeviceInfo, s.IPAddress, s.UserAgent,
		sql.NullString{String: s.Location, Valid: s.Location != ""},
		s.CreatedAt, s.LastActivity, s.ExpiresAt, s.Active,
	)
	return apperr.Storage("sessions.create", err)
}

// GetByToken returns the session for token, or nil if not found.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token = $1`, token)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Storage("sessions.get", err)
	}
	return s, nil
}

func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = $1 AND active = TRUE AND expires_at > $2
		 ORDER BY last_activity DESC`, userID, now)
	if err != nil {
		return nil, apperr.Storage("sessions.list_active", err)
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, apperr.Storage("sessions.list_active", err)
		}
		out = append(out, s)
	}
	return out, apperr.Storage("sessions.list_active", rows.Err())
}

func (r *PostgresRepository) UpdateLastActivity(ctx context.Context, token string, at time.Time) (bool, error) {
	return r.execOne(ctx, "sessions.touch",
		`UPDATE sessions SET last_activity = $2 WHERE token = $1 AND active = TRUE AND expires_at > $2`, token, at)
}

func (r *PostgresRepository) Deactivate(ctx context.Context, token string) (bool, error) {
	return r.execOne(ctx, "sessions.deactivate",
		`UPDATE sessions SET active = FALSE WHERE token = $1 AND active = TRUE`, token)
}

func (r *PostgresRepository) DeactivateAllByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE sessions SET active = FALSE WHERE user_id = $1 AND active = TRUE`, userID)
	if err != nil {
		return 0, apperr.Storage("sessions.deactivate_all", err)
	}
	n, err := res.RowsAffected()
	return n, apperr.Storage("sessions.deactivate_all", err)
}

func (r *PostgresRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, apperr.Storage("sessions.purge", err)
	}
	n, err := res.RowsAffected()
	return n, apperr.Storage("sessions.purge", err)
}

func (r *PostgresRepository) execOne(ctx context.Context, op, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, apperr.Storage(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Storage(op, err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(s scanner) (*domain.Session, error) {
	var (
		out      domain.Session
		location sql.NullString
	)
	if err := s.Scan(&out.Token, &out.UserID, &out.DeviceInfo, &out.IPAddress, &out.UserAgent, &location,
		&out.CreatedAt, &out.LastActivity, &out.ExpiresAt, &out.Active); err != nil {
		return nil, err
	}
	out.Location = location.String
	return &out, nil
}
