// Package repository provides the durable per-user credential store, mutation
// cache and user salt tables, backed by PostgreSQL or by one SQLite file per user.
package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/atinyakov/vultsync/internal/models"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// maxIDAttempts bounds id regeneration after collisions.
const maxIDAttempts = 32

var errIDExhausted = errors.New("no free id after repeated collisions")

// pgUniqueViolation is the SQLSTATE of a unique constraint violation.
const pgUniqueViolation = "23505"

// isDuplicateKey reports whether err is a primary key collision from either driver.
func isDuplicateKey(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// encodeBatch serializes a mutation batch for the cache.
func encodeBatch(mutations []models.Mutation) ([]byte, error) {
	if mutations == nil {
		mutations = []models.Mutation{}
	}
	blob, err := json.Marshal(mutations)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	return blob, nil
}

// decodeBatch appends the mutations serialized in blob to dst.
func decodeBatch(dst []models.Mutation, blob []byte) ([]models.Mutation, error) {
	var batch []models.Mutation
	if err := json.Unmarshal(blob, &batch); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	return append(dst, batch...), nil
}

// scanBatches reads and flattens a result set of serialized batches, closing rows.
func scanBatches(rows *sql.Rows) ([]models.Mutation, error) {
	defer rows.Close()

	var mutations []models.Mutation
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		var err error
		if mutations, err = decodeBatch(mutations, blob); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read batches: %w", err)
	}
	return mutations, nil
}

func missing(id string) error {
	return fmt.Errorf("%w: %s", models.ErrMissingItem, id)
}

func existing(alias string) error {
	return fmt.Errorf("%w: %s", models.ErrExistingUser, alias)
}
