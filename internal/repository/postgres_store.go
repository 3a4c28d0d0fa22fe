package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/atinyakov/vultsync/internal/idgen"
	"github.com/atinyakov/vultsync/internal/models"
)

// PostgresStoreRepository implements the credential store against a PostgreSQL database.
type PostgresStoreRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
	// NewID generates replacement ids for colliding credentials.
	NewID func() string
}

// NewPostgresStoreRepository creates a PostgresStoreRepository using the provided *sql.DB.
func NewPostgresStoreRepository(db *sql.DB) *PostgresStoreRepository {
	return &PostgresStoreRepository{DB: db, NewID: idgen.New}
}

// Apply applies one mutation to the store of alias.
//
// An Add whose id is taken is stored under a freshly generated id, which is
// returned; otherwise the returned id is empty. Modify and Delete fail with
// models.ErrMissingItem when no credential has the mutation's id.
func (s *PostgresStoreRepository) Apply(ctx context.Context, alias string, m models.Mutation) (string, error) {
	c := m.Credential()
	switch m.Op() {
	case models.OpAdd:
		err := s.insert(ctx, alias, c)
		if err == nil {
			return "", nil
		}
		if !isDuplicateKey(err) {
			return "", fmt.Errorf("add credential: %w", err)
		}
		for attempt := 0; attempt < maxIDAttempts; attempt++ {
			c.ID = s.NewID()
			err := s.insert(ctx, alias, c)
			if err == nil {
				return c.ID, nil
			}
			if !isDuplicateKey(err) {
				return "", fmt.Errorf("add credential under new id: %w", err)
			}
		}
		return "", fmt.Errorf("add credential: %w", errIDExhausted)

	case models.OpModify:
		res, err := s.DB.ExecContext(ctx,
			`UPDATE store SET value = $1 WHERE alias = $2 AND id = $3`,
			c.Value, alias, c.ID)
		if err != nil {
			return "", fmt.Errorf("modify credential: %w", err)
		}
		return "", requireOneRow(res, c.ID)

	case models.OpDelete:
		res, err := s.DB.ExecContext(ctx,
			`DELETE FROM store WHERE alias = $1 AND id = $2`,
			alias, c.ID)
		if err != nil {
			return "", fmt.Errorf("delete credential: %w", err)
		}
		return "", requireOneRow(res, c.ID)
	}
	return "", fmt.Errorf("apply: unknown op %q", m.Op())
}

func (s *PostgresStoreRepository) insert(ctx context.Context, alias string, c models.Credential) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO store (alias, id, value) VALUES ($1, $2, $3)`,
		alias, c.ID, c.Value)
	return err
}

func requireOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return missing(id)
	}
	return nil
}

// ExportAll returns every credential of alias. The slice is never nil.
func (s *PostgresStoreRepository) ExportAll(ctx context.Context, alias string) ([]models.Credential, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, value FROM store WHERE alias = $1`, alias)
	if err != nil {
		return nil, fmt.Errorf("export store: %w", err)
	}
	defer rows.Close()

	credentials := []models.Credential{}
	for rows.Next() {
		var c models.Credential
		if err := rows.Scan(&c.ID, &c.Value); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		credentials = append(credentials, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("export store: %w", err)
	}
	return credentials, nil
}

// ImportAll inserts credentials into the empty store of alias within one
// transaction. It fails with models.ErrExistingUser if the store holds anything.
func (s *PostgresStoreRepository) ImportAll(ctx context.Context, alias string, credentials []models.Credential) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM store WHERE alias = $1)`, alias,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check store: %w", err)
	}
	if exists {
		return existing(alias)
	}

	for _, c := range credentials {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO store (alias, id, value) VALUES ($1, $2, $3)`,
			alias, c.ID, c.Value,
		); err != nil {
			return fmt.Errorf("import credential: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// IsEmpty reports whether alias has no credentials.
func (s *PostgresStoreRepository) IsEmpty(ctx context.Context, alias string) (bool, error) {
	var exists bool
	err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM store WHERE alias = $1)`, alias,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check store: %w", err)
	}
	return !exists, nil
}

// Reset removes every credential of alias.
func (s *PostgresStoreRepository) Reset(ctx context.Context, alias string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM store WHERE alias = $1`, alias); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	return nil
}
