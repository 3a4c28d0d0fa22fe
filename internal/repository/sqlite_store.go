package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/atinyakov/vultsync/internal/idgen"
	"github.com/atinyakov/vultsync/internal/models"
)

// SQLiteStoreRepository implements the credential store on per-user SQLite files.
type SQLiteStoreRepository struct {
	Pool *SQLitePool
	// NewID generates replacement ids for colliding credentials.
	NewID func() string
}

// NewSQLiteStoreRepository creates a SQLiteStoreRepository over pool.
func NewSQLiteStoreRepository(pool *SQLitePool) *SQLiteStoreRepository {
	return &SQLiteStoreRepository{Pool: pool, NewID: idgen.New}
}

// Apply applies one mutation to the store of alias; see
// PostgresStoreRepository.Apply for the contract.
func (s *SQLiteStoreRepository) Apply(ctx context.Context, alias string, m models.Mutation) (string, error) {
	var newID string
	err := s.Pool.withAlias(alias, func(conn *sql.DB) error {
		c := m.Credential()
		switch m.Op() {
		case models.OpAdd:
			err := sqliteInsert(ctx, conn, c)
			if err == nil {
				return nil
			}
			if !isDuplicateKey(err) {
				return fmt.Errorf("add credential: %w", err)
			}
			for attempt := 0; attempt < maxIDAttempts; attempt++ {
				c.ID = s.NewID()
				err := sqliteInsert(ctx, conn, c)
				if err == nil {
					newID = c.ID
					return nil
				}
				if !isDuplicateKey(err) {
					return fmt.Errorf("add credential under new id: %w", err)
				}
			}
			return fmt.Errorf("add credential: %w", errIDExhausted)

		case models.OpModify:
			res, err := conn.ExecContext(ctx, `UPDATE Store SET value = ? WHERE id = ?`, c.Value, c.ID)
			if err != nil {
				return fmt.Errorf("modify credential: %w", err)
			}
			return requireOneRow(res, c.ID)

		case models.OpDelete:
			res, err := conn.ExecContext(ctx, `DELETE FROM Store WHERE id = ?`, c.ID)
			if err != nil {
				return fmt.Errorf("delete credential: %w", err)
			}
			return requireOneRow(res, c.ID)
		}
		return fmt.Errorf("apply: unknown op %q", m.Op())
	})
	return newID, err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func sqliteInsert(ctx context.Context, conn execer, c models.Credential) error {
	_, err := conn.ExecContext(ctx, `INSERT INTO Store (id, value) VALUES (?, ?)`, c.ID, c.Value)
	return err
}

// ExportAll returns every credential of alias. The slice is never nil.
func (s *SQLiteStoreRepository) ExportAll(ctx context.Context, alias string) ([]models.Credential, error) {
	credentials := []models.Credential{}
	err := s.Pool.withAlias(alias, func(conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx, `SELECT id, value FROM Store`)
		if err != nil {
			return fmt.Errorf("export store: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var c models.Credential
			if err := rows.Scan(&c.ID, &c.Value); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			credentials = append(credentials, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return credentials, nil
}

// ImportAll inserts credentials into the empty store of alias within one
// transaction. It fails with models.ErrExistingUser if the store holds anything.
func (s *SQLiteStoreRepository) ImportAll(ctx context.Context, alias string, credentials []models.Credential) error {
	return s.Pool.withAlias(alias, func(conn *sql.DB) error {
		return inTx(ctx, conn, func(tx *sql.Tx) error {
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM Store)`).Scan(&exists); err != nil {
				return fmt.Errorf("check store: %w", err)
			}
			if exists {
				return existing(alias)
			}
			for _, c := range credentials {
				if err := sqliteInsert(ctx, tx, c); err != nil {
					return fmt.Errorf("import credential: %w", err)
				}
			}
			return nil
		})
	})
}

// IsEmpty reports whether alias has no credentials.
func (s *SQLiteStoreRepository) IsEmpty(ctx context.Context, alias string) (bool, error) {
	var exists bool
	err := s.Pool.withAlias(alias, func(conn *sql.DB) error {
		if err := conn.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM Store)`).Scan(&exists); err != nil {
			return fmt.Errorf("check store: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// Reset removes every credential of alias.
func (s *SQLiteStoreRepository) Reset(ctx context.Context, alias string) error {
	return s.Pool.withAlias(alias, func(conn *sql.DB) error {
		if _, err := conn.ExecContext(ctx, `DELETE FROM Store`); err != nil {
			return fmt.Errorf("reset store: %w", err)
		}
		return nil
	})
}
