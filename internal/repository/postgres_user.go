package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atinyakov/vultsync/internal/models"
)

// PostgresUserRepository stores per-user key derivation salts in a PostgreSQL database.
type PostgresUserRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository with the given database connection.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

// SetUser records the salt and hash of alias. It reports false, without
// changing anything, if alias was already initialized.
func (s *PostgresUserRepository) SetUser(ctx context.Context, alias string, secrets models.UserSecrets) (bool, error) {
	res, err := s.DB.ExecContext(
		ctx,
		`INSERT INTO users (alias, salt, hash) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		alias, secrets.Salt, secrets.Hash,
	)
	if err != nil {
		return false, fmt.Errorf("set user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// GetUser returns the salt and hash of alias, or models.ErrUninitializedUser.
func (s *PostgresUserRepository) GetUser(ctx context.Context, alias string) (models.UserSecrets, error) {
	var secrets models.UserSecrets
	err := s.DB.QueryRowContext(
		ctx,
		`SELECT salt, hash FROM users WHERE alias = $1`,
		alias,
	).Scan(&secrets.Salt, &secrets.Hash)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserSecrets{}, fmt.Errorf("%w: %s", models.ErrUninitializedUser, alias)
	}
	if err != nil {
		return models.UserSecrets{}, fmt.Errorf("get user: %w", err)
	}
	return secrets, nil
}

// RemoveUser forgets the salt and hash of alias.
func (s *PostgresUserRepository) RemoveUser(ctx context.Context, alias string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM users WHERE alias = $1`, alias); err != nil {
		return fmt.Errorf("remove user: %w", err)
	}
	return nil
}
