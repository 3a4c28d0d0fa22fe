package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/atinyakov/vultsync/internal/idgen"
	"github.com/atinyakov/vultsync/internal/models"
)

// PostgresCacheRepository implements the mutation cache against a PostgreSQL database.
type PostgresCacheRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
	// NewID generates state ids.
	NewID func() string
	// Now stamps appended batches.
	Now func() time.Time
}

// NewPostgresCacheRepository creates a PostgresCacheRepository using the provided *sql.DB.
func NewPostgresCacheRepository(db *sql.DB) *PostgresCacheRepository {
	return &PostgresCacheRepository{DB: db, NewID: idgen.New, Now: time.Now}
}

// AddMutations appends a batch to the cache of alias and returns its state id.
// An empty batch is valid and records a checkpoint.
//
// Appends of one alias are serialized with an advisory lock, and each batch is
// stamped strictly later than the previous one.
func (c *PostgresCacheRepository) AddMutations(ctx context.Context, alias string, mutations []models.Mutation) (string, error) {
	blob, err := encodeBatch(mutations)
	if err != nil {
		return "", err
	}
	now := c.Now().UnixNano()

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := c.NewID()
		err := c.append(ctx, alias, id, now, blob)
		if err == nil {
			return id, nil
		}
		if !isDuplicateKey(err) {
			return "", fmt.Errorf("add mutations: %w", err)
		}
	}
	return "", fmt.Errorf("add mutations: %w", errIDExhausted)
}

func (c *PostgresCacheRepository) append(ctx context.Context, alias, id string, now int64, blob []byte) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, alias); err != nil {
		return fmt.Errorf("lock cache: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO cache (alias, id, time, mutation)
		SELECT $1, $2, GREATEST($3::BIGINT, COALESCE(MAX(time), 0) + 1), $4
		FROM cache WHERE alias = $1
	`, alias, id, now, blob); err != nil {
		return err
	}
	return tx.Commit()
}

// HasState reports whether id names a batch in the cache of alias.
func (c *PostgresCacheRepository) HasState(ctx context.Context, alias, id string) (bool, error) {
	var exists bool
	err := c.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM cache WHERE alias = $1 AND id = $2)`,
		alias, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has state: %w", err)
	}
	return exists, nil
}

// GetNextMutations returns the mutations of every batch appended after the
// batch id, oldest first. The batch id itself is excluded.
func (c *PostgresCacheRepository) GetNextMutations(ctx context.Context, alias, id string) ([]models.Mutation, error) {
	rows, err := c.DB.QueryContext(ctx, `
		SELECT mutation FROM cache
		WHERE alias = $1 AND time > (SELECT time FROM cache WHERE alias = $1 AND id = $2)
		ORDER BY time
	`, alias, id)
	if err != nil {
		return nil, fmt.Errorf("get next mutations: %w", err)
	}
	return scanBatches(rows)
}

// GetMutationsBetween returns the mutations of every batch appended after
// batch from and before batch to, oldest first. Both bounds are excluded.
func (c *PostgresCacheRepository) GetMutationsBetween(ctx context.Context, alias, from, to string) ([]models.Mutation, error) {
	rows, err := c.DB.QueryContext(ctx, `
		SELECT mutation FROM cache
		WHERE alias = $1
		  AND time > (SELECT time FROM cache WHERE alias = $1 AND id = $2)
		  AND time < (SELECT time FROM cache WHERE alias = $1 AND id = $3)
		ORDER BY time
	`, alias, from, to)
	if err != nil {
		return nil, fmt.Errorf("get mutations between: %w", err)
	}
	return scanBatches(rows)
}

// IsEmpty reports whether the cache of alias holds no batch.
func (c *PostgresCacheRepository) IsEmpty(ctx context.Context, alias string) (bool, error) {
	var exists bool
	err := c.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM cache WHERE alias = $1)`, alias,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check cache: %w", err)
	}
	return !exists, nil
}

// Prune deletes all but the keep newest batches of alias.
func (c *PostgresCacheRepository) Prune(ctx context.Context, alias string, keep int) (int64, error) {
	res, err := c.DB.ExecContext(ctx, `
		DELETE FROM cache
		WHERE alias = $1 AND id NOT IN (
			SELECT id FROM cache WHERE alias = $1 ORDER BY time DESC LIMIT $2
		)
	`, alias, keep)
	if err != nil {
		return 0, fmt.Errorf("prune cache: %w", err)
	}
	return res.RowsAffected()
}

// Reset removes every batch of alias.
func (c *PostgresCacheRepository) Reset(ctx context.Context, alias string) error {
	if _, err := c.DB.ExecContext(ctx, `DELETE FROM cache WHERE alias = $1`, alias); err != nil {
		return fmt.Errorf("reset cache: %w", err)
	}
	return nil
}
