// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/mbolis/quick-apply/config"
	"github.com/mbolis/quick-apply/database"
)

func Config(t testing.TB) config.Config {
	t.Helper()
	return config.Config{
		DBUrl:           filepath.Join(t.TempDir(), "test.sqlite"),
		BusyTimeout:     10 * time.Second,
		StoreTimeout:    10 * time.Second,
		ConflictRetries: 3,
	}
}

// OpenDB returns a migrated database in a temp dir, closed on cleanup.
func OpenDB(t testing.TB) *sql.DB {
	t.Helper()
	db, err := database.Open(Config(t))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// CreateUser inserts a row in the identity collaborator's users table.
func CreateUser(t testing.TB, db *sql.DB, name, email, role string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRowContext(context.Background(), `
		INSERT INTO users (email, full_name, role) VALUES (?, ?, ?)
		RETURNING id`,
		email, name, role,
	).Scan(&id)
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return id
}

// CountRows counts rows of table matching where (may be empty).
func CountRows(t testing.TB, db *sql.DB, table, where string, args ...any) int {
	t.Helper()
	q := "SELECT COUNT(*) FROM " + table
	if where != "" {
		q += " WHERE " + where
	}
	var n int
	if err := db.QueryRow(q, args...).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
