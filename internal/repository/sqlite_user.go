package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atinyakov/vultsync/internal/models"
)

// SQLiteUserRepository stores per-user key derivation salts in a shared SQLite file.
type SQLiteUserRepository struct {
	Pool *SQLitePool
}

// NewSQLiteUserRepository creates a SQLiteUserRepository over pool.
func NewSQLiteUserRepository(pool *SQLitePool) *SQLiteUserRepository {
	return &SQLiteUserRepository{Pool: pool}
}

// SetUser records the salt and hash of alias, reporting false if alias was already initialized.
func (s *SQLiteUserRepository) SetUser(ctx context.Context, alias string, secrets models.UserSecrets) (bool, error) {
	var created bool
	err := s.Pool.withUsers(func(conn *sql.DB) error {
		res, err := conn.ExecContext(ctx,
			`INSERT OR IGNORE INTO Users (alias, salt, hash) VALUES (?, ?, ?)`,
			alias, secrets.Salt, secrets.Hash)
		if err != nil {
			return fmt.Errorf("set user: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		created = n == 1
		return nil
	})
	return created, err
}

// GetUser returns the salt and hash of alias, or models.ErrUninitializedUser.
func (s *SQLiteUserRepository) GetUser(ctx context.Context, alias string) (models.UserSecrets, error) {
	var secrets models.UserSecrets
	err := s.Pool.withUsers(func(conn *sql.DB) error {
		err := conn.QueryRowContext(ctx,
			`SELECT salt, hash FROM Users WHERE alias = ?`, alias,
		).Scan(&secrets.Salt, &secrets.Hash)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", models.ErrUninitializedUser, alias)
		}
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.UserSecrets{}, err
	}
	return secrets, nil
}

// RemoveUser forgets the salt and hash of alias.
func (s *SQLiteUserRepository) RemoveUser(ctx context.Context, alias string) error {
	return s.Pool.withUsers(func(conn *sql.DB) error {
		if _, err := conn.ExecContext(ctx, `DELETE FROM Users WHERE alias = ?`, alias); err != nil {
			return fmt.Errorf("remove user: %w", err)
		}
		return nil
	})
}
