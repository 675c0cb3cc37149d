package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fieldbook/backend/internal/apperr"
	"fieldbook/backend/internal/db"
	"fieldbook/backend/internal/user/domain"
)

const userColumns = `id, first_name, last_name, email, password_hash, role, created_at, updated_at`

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a user repository backed by Postgres.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByID returns the user for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row, "users.get")
}

// GetByEmail returns the user with the given email (case-insensitive), or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, domain.NormalizeEmail(email))
	return scanUser(row, "users.get_by_email")
}

// Create inserts u. The caller assigns the ID.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.FirstName, u.LastName, domain.NormalizeEmail(u.Email), u.PasswordHash, string(u.Role), u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		err = apperr.Storage("users.create", err)
		if apperr.Is(err, apperr.KindConflict) {
			return apperr.Conflict("email already registered")
		}
		return err
	}
	return nil
}

// UpdateRole changes a user's role. Missing users are a no-op.
func (r *PostgresRepository) UpdateRole(ctx context.Context, id string, role domain.Role, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET role = $2, updated_at = $3 WHERE id = $1`, id, string(role), at)
	return apperr.Storage("users.update_role", err)
}

func scanUser(row *sql.Row, op string) (*domain.User, error) {
	var (
		u    domain.User
		role string
	)
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Storage(op, err)
	}
	u.Role = domain.Role(role)
	return &u, nil
}
