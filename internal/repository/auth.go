// Package repository provides persistence implementations for
// authentication services.
package repository

import (
	"context"
	"database/sql"

	"github.com/atinyakov/LinkKeeper/internal/models"
)

// PostgresAuthRepository implements session-token storage using a
// PostgreSQL database.
type PostgresAuthRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresAuthRepository creates a new PostgresAuthRepository with
// the given database connection.
func NewPostgresAuthRepository(db *sql.DB) *PostgresAuthRepository {
	return &PostgresAuthRepository{DB: db}
}

// GetSession resolves a token to its user and role.
func (r *PostgresAuthRepository) GetSession(ctx context.Context, token string) (string, models.Role, bool, error) {
	var (
		userID string
		role   string
	)
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT user_login, role FROM sessions WHERE token = $1`,
		token,
	).Scan(&userID, &role)
	if err == sql.ErrNoRows {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}
	return userID, models.Role(role), true, nil
}

// RegisterSession stores a token with its user and role. Registering an
// existing token updates its role.
func (r *PostgresAuthRepository) RegisterSession(ctx context.Context, token, userID string, role models.Role) error {
	_, err := r.DB.ExecContext(
		ctx,
		`INSERT INTO sessions (token, user_login, role) VALUES ($1, $2, $3)
		 ON CONFLICT (token) DO UPDATE SET user_login = EXCLUDED.user_login, role = EXCLUDED.role`,
		token, userID, string(role),
	)
	return err
}
