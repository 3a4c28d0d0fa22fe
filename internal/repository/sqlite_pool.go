package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/atinyakov/vultsync/internal/db"
	lru "github.com/hashicorp/golang-lru"
)

const (
	aliasSchema = `
CREATE TABLE IF NOT EXISTS Store (id TEXT PRIMARY KEY, value TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS Cache (id TEXT PRIMARY KEY, time INTEGER NOT NULL, mutation BLOB NOT NULL);
CREATE INDEX IF NOT EXISTS Cache_time ON Cache (time);
`
	usersSchema = `
CREATE TABLE IF NOT EXISTS Users (alias TEXT PRIMARY KEY, salt TEXT NOT NULL, hash TEXT NOT NULL DEFAULT '');
`
	// usersFile cannot collide with an alias file: aliases never start with a dot.
	usersFile = ".users"
)

// SQLitePool hands out database handles for per-user SQLite files in one
// directory. At most size handles stay open; a handle evicted while in use is
// closed when its last user releases it.
type SQLitePool struct {
	dir string

	mu      sync.Mutex
	handles *lru.Cache
}

type sqliteHandle struct {
	db      *sql.DB
	refs    int
	evicted bool
}

// NewSQLitePool creates dir if needed and returns a pool keeping up to size open handles.
func NewSQLitePool(dir string, size int) (*SQLitePool, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	p := &SQLitePool{dir: dir}
	handles, err := lru.NewWithEvict(size, p.onEvict)
	if err != nil {
		return nil, fmt.Errorf("create handle cache: %w", err)
	}
	p.handles = handles
	return p, nil
}

// onEvict runs with p.mu held, from Add or Purge.
func (p *SQLitePool) onEvict(_ interface{}, value interface{}) {
	h := value.(*sqliteHandle)
	h.evicted = true
	if h.refs == 0 {
		h.db.Close()
	}
}

func (p *SQLitePool) acquire(name, schema string) (*sqliteHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v, ok := p.handles.Get(name); ok {
		h := v.(*sqliteHandle)
		h.refs++
		return h, nil
	}

	conn, err := db.OpenSQLite(filepath.Join(p.dir, name+".sqlite"), schema)
	if err != nil {
		return nil, err
	}
	h := &sqliteHandle{db: conn, refs: 1}
	p.handles.Add(name, h)
	return h, nil
}

func (p *SQLitePool) release(h *sqliteHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h.refs--
	if h.evicted && h.refs == 0 {
		h.db.Close()
	}
}

// withAlias runs fn against the database file of alias.
func (p *SQLitePool) withAlias(alias string, fn func(*sql.DB) error) error {
	return p.with(alias, aliasSchema, fn)
}

func (p *SQLitePool) withUsers(fn func(*sql.DB) error) error {
	return p.with(usersFile, usersSchema, fn)
}

func (p *SQLitePool) with(name, schema string, fn func(*sql.DB) error) error {
	h, err := p.acquire(name, schema)
	if err != nil {
		return err
	}
	defer p.release(h)
	return fn(h.db)
}

// Open reports the number of handles currently cached.
func (p *SQLitePool) Open() int {
	return p.handles.Len()
}

// Close closes every idle handle; handles still in use close on release.
func (p *SQLitePool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handles.Purge()
	return nil
}

// inTx runs fn in a transaction on conn, committing when fn succeeds.
func inTx(ctx context.Context, conn *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
