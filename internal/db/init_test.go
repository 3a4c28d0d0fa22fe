package db_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/atinyakov/vultsync/internal/db"
)

func TestInitPostgres_ErrorPaths(t *testing.T) {
	cases := []struct {
		name       string
		dsn        string
		wantSubstr string
	}{
		{"invalid DSN", "some=random", "ping postgres"},
		{"empty DSN", "", "ping postgres"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := db.InitPostgres(tc.dsn)
			if err == nil {
				t.Fatalf("InitPostgres(%q) did not return error", tc.dsn)
			}
			if !strings.Contains(err.Error(), tc.wantSubstr) {
				t.Errorf("InitPostgres(%q) error = %q; want substring %q", tc.dsn, err.Error(), tc.wantSubstr)
			}
		})
	}
}

func TestOpenSQLite_CreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unit.sqlite")

	conn, err := db.OpenSQLite(path, "CREATE TABLE IF NOT EXISTS t (id TEXT PRIMARY KEY)")
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	defer conn.Close()

	var mode string
	if err := conn.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q; want wal", mode)
	}
	if _, err := conn.Exec("INSERT INTO t VALUES ('x')"); err != nil {
		t.Errorf("schema not applied: %v", err)
	}
}

func TestOpenSQLite_BadSchema(t *testing.T) {
	_, err := db.OpenSQLite(filepath.Join(t.TempDir(), "x.sqlite"), "CREATE NONSENSE")
	if err == nil || !strings.Contains(err.Error(), "create schema") {
		t.Errorf("expected create schema error, got %v", err)
	}
}

func TestOpenSQLite_MissingDirectory(t *testing.T) {
	_, err := db.OpenSQLite(filepath.Join(t.TempDir(), "absent", "x.sqlite"), "")
	if err == nil {
		t.Error("expected error for missing directory")
	}
}
