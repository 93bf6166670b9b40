package store

import (
	"context"
	"path/filepath"
	"testing"
)

const testSchema = `
CREATE TABLE customers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	deleted_at TEXT
);
CREATE TABLE orders (
	id INTEGER PRIMARY KEY,
	customer_id INTEGER NOT NULL REFERENCES customers(id),
	amount INTEGER CHECK (amount >= 0)
);
`

// createTestDB opens a SQLite database in a temp dir with the test schema.
func createTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(context.Background(), Config{Driver: "sqlite3", DSN: path, LogStatements: true})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Exec(context.Background(), testSchema); err != nil {
		t.Fatalf("Exec(schema) failed: %v", err)
	}
	db.ResetStatements()
	return db
}
