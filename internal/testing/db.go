// Package testing provides shared helpers for tests that need a real database.
package testing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/rebalancer/internal/database"
	"github.com/rs/zerolog"
)

// NewTestDB creates a migrated SQLite database in a temporary directory.
// name selects the schema ("portfolio" or "ledger"); unknown names get an empty database.
// The database is closed automatically when the test finishes.
func NewTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), name+".db")

	profile := database.ProfileStandard
	if name == database.NameLedger {
		profile = database.ProfileLedger
	}

	db, err := database.New(database.Config{
		Path:    path,
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
		_ = os.Remove(path)
	})

	return db
}

// NopLogger returns a logger that discards everything
func NopLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}
