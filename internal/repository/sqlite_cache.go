package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/atinyakov/vultsync/internal/idgen"
	"github.com/atinyakov/vultsync/internal/models"
)

// SQLiteCacheRepository implements the mutation cache on per-user SQLite files.
type SQLiteCacheRepository struct {
	Pool *SQLitePool
	// NewID generates state ids.
	NewID func() string
	// Now stamps appended batches.
	Now func() time.Time
}

// NewSQLiteCacheRepository creates a SQLiteCacheRepository over pool.
func NewSQLiteCacheRepository(pool *SQLitePool) *SQLiteCacheRepository {
	return &SQLiteCacheRepository{Pool: pool, NewID: idgen.New, Now: time.Now}
}

// AddMutations appends a batch to the cache of alias and returns its state id.
// Each batch is stamped strictly later than the previous one of the same file.
func (c *SQLiteCacheRepository) AddMutations(ctx context.Context, alias string, mutations []models.Mutation) (string, error) {
	blob, err := encodeBatch(mutations)
	if err != nil {
		return "", err
	}
	now := c.Now().UnixNano()

	var id string
	err = c.Pool.withAlias(alias, func(conn *sql.DB) error {
		for attempt := 0; attempt < maxIDAttempts; attempt++ {
			id = c.NewID()
			_, err := conn.ExecContext(ctx, `
				INSERT INTO Cache (id, time, mutation)
				SELECT ?, max(?, COALESCE(MAX(time), 0) + 1), ? FROM Cache
			`, id, now, blob)
			if err == nil {
				return nil
			}
			if !isDuplicateKey(err) {
				return fmt.Errorf("add mutations: %w", err)
			}
		}
		return fmt.Errorf("add mutations: %w", errIDExhausted)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// HasState reports whether id names a batch in the cache of alias.
func (c *SQLiteCacheRepository) HasState(ctx context.Context, alias, id string) (bool, error) {
	var exists bool
	err := c.Pool.withAlias(alias, func(conn *sql.DB) error {
		if err := conn.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM Cache WHERE id = ?)`, id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("has state: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return exists, nil
}

// GetNextMutations returns the mutations of every batch appended after the
// batch id, oldest first. The batch id itself is excluded.
func (c *SQLiteCacheRepository) GetNextMutations(ctx context.Context, alias, id string) ([]models.Mutation, error) {
	var mutations []models.Mutation
	err := c.Pool.withAlias(alias, func(conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx, `
			SELECT mutation FROM Cache
			WHERE time > (SELECT time FROM Cache WHERE id = ?)
			ORDER BY time
		`, id)
		if err != nil {
			return fmt.Errorf("get next mutations: %w", err)
		}
		mutations, err = scanBatches(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return mutations, nil
}

// GetMutationsBetween returns the mutations of every batch appended after
// batch from and before batch to, oldest first. Both bounds are excluded.
func (c *SQLiteCacheRepository) GetMutationsBetween(ctx context.Context, alias, from, to string) ([]models.Mutation, error) {
	var mutations []models.Mutation
	err := c.Pool.withAlias(alias, func(conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx, `
			SELECT mutation FROM Cache
			WHERE time > (SELECT time FROM Cache WHERE id = ?)
			  AND time < (SELECT time FROM Cache WHERE id = ?)
			ORDER BY time
		`, from, to)
		if err != nil {
			return fmt.Errorf("get mutations between: %w", err)
		}
		mutations, err = scanBatches(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return mutations, nil
}

// IsEmpty reports whether the cache of alias holds no batch.
func (c *SQLiteCacheRepository) IsEmpty(ctx context.Context, alias string) (bool, error) {
	var exists bool
	err := c.Pool.withAlias(alias, func(conn *sql.DB) error {
		if err := conn.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM Cache)`).Scan(&exists); err != nil {
			return fmt.Errorf("check cache: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// Prune deletes all but the keep newest batches of alias.
func (c *SQLiteCacheRepository) Prune(ctx context.Context, alias string, keep int) (int64, error) {
	var removed int64
	err := c.Pool.withAlias(alias, func(conn *sql.DB) error {
		res, err := conn.ExecContext(ctx, `
			DELETE FROM Cache WHERE id NOT IN (SELECT id FROM Cache ORDER BY time DESC LIMIT ?)
		`, keep)
		if err != nil {
			return fmt.Errorf("prune cache: %w", err)
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

// Reset removes every batch of alias.
func (c *SQLiteCacheRepository) Reset(ctx context.Context, alias string) error {
	return c.Pool.withAlias(alias, func(conn *sql.DB) error {
		if _, err := conn.ExecContext(ctx, `DELETE FROM Cache`); err != nil {
			return fmt.Errorf("reset cache: %w", err)
		}
		return nil
	})
}
