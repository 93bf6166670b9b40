package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/nestmap/internal/store"
)

// OpenSQLite opens a SQLite database in a temp dir with statement
// logging on, runs ddl and clears the statement log. The database is
// closed when the test ends.
func OpenSQLite(t testing.TB, ddl string) *store.DB {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(ctx, store.Config{Driver: "sqlite3", DSN: path, LogStatements: true})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Exec(ctx, ddl); err != nil {
		t.Fatalf("apply test schema: %v", err)
	}
	db.ResetStatements()
	return db
}
