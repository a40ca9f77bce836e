package testutil

import (
	"path/filepath"
	"testing"

	"github.com/andy/billable/internal/db"
)

// NewTestDB creates a plain SQLite database in a temp dir with all migrations
// applied. A file is used rather than ":memory:" so every pooled connection
// sees the same data. The database is closed when the test completes.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "billable.db"), "")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})
	if err := database.RunMigrations(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return database
}

// NewTestUoW creates a UnitOfWork backed by the given test database.
func NewTestUoW(database *db.DB) db.UnitOfWork {
	return db.NewUnitOfWork(database.DB)
}
