package testutil

import (
	"testing"

	"chatvault/internal/database"
)

// NewTestDatabase creates a migrated in-memory history database stamped by
// the fixed clock. It is closed when the test completes.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:", FixedClock())
	if err != nil {
		t.Fatalf("failed to open history database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}
