// Package db bootstraps the storage engines and runs storage maintenance.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    alias TEXT PRIMARY KEY,
    salt TEXT NOT NULL,
    hash TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS store (
    alias TEXT NOT NULL,
    id TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (alias, id)
);

CREATE TABLE IF NOT EXISTS cache (
    alias TEXT NOT NULL,
    id TEXT NOT NULL,
    time BIGINT NOT NULL,
    mutation BYTEA NOT NULL,
    PRIMARY KEY (alias, id)
);

CREATE INDEX IF NOT EXISTS cache_alias_time ON cache (alias, time);
`

// InitPostgres opens dsn, verifies the connection and creates the schema.
func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return db, nil
}
