package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableNames(t *testing.T, db *DB) map[string]bool {
	t.Helper()
	rows, err := db.Conn().Query(`SELECT name FROM sqlite_master WHERE type = 'table'`)
	require.NoError(t, err)
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names[name] = true
	}
	require.NoError(t, rows.Err())
	return names
}

func TestMigrate_CreatesSchemaTables(t *testing.T) {
	testCases := []struct {
		name    string
		profile DatabaseProfile
		tables  []string
	}{
		{
			name:    NamePortfolio,
			profile: ProfileStandard,
			tables: []string{"accounts", "securities", "positions", "quotes", "sleeves",
				"sleeve_members", "allocation_models", "allocation_model_members"},
		},
		{
			name:    NameLedger,
			profile: ProfileLedger,
			tables:  []string{"orders", "order_executions", "wash_sale_restrictions"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db := openTestDB(t, tc.name, tc.profile)
			require.NoError(t, db.Migrate())
			// idempotent
			require.NoError(t, db.Migrate())

			names := tableNames(t, db)
			for _, table := range tc.tables {
				assert.True(t, names[table], "missing table %s", table)
			}
		})
	}
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db := openTestDB(t, "scratch", ProfileStandard)
	require.NoError(t, db.Migrate())
	assert.Empty(t, tableNames(t, db))
}

func TestNew_DefaultsToStandardProfile(t *testing.T) {
	db := openTestDB(t, "scratch", "")
	assert.Equal(t, ProfileStandard, db.Profile())
	assert.Equal(t, "scratch", db.Name())
}

func TestWithTransaction(t *testing.T) {
	db := openTestDB(t, "scratch", ProfileStandard)
	_, err := db.Conn().Exec(`CREATE TABLE items (name TEXT)`)
	require.NoError(t, err)

	count := func() int {
		var n int
		require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM items`).Scan(&n))
		return n
	}

	err = WithTransaction(context.Background(), db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO items (name) VALUES ('kept')`)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count())

	boom := errors.New("boom")
	err = WithTransaction(context.Background(), db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO items (name) VALUES ('dropped')`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, count())

	err = WithTransaction(context.Background(), db.Conn(), func(tx *sql.Tx) error {
		_, _ = tx.Exec(`INSERT INTO items (name) VALUES ('panicked')`)
		panic("unexpected")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in transaction")
	assert.Equal(t, 1, count())
}

func TestWithTransaction_NilDB(t *testing.T) {
	err := WithTransaction(context.Background(), nil, func(tx *sql.Tx) error { return nil })
	assert.Error(t, err)
}

func TestHealthCheckAndStats(t *testing.T) {
	db := openTestDB(t, NameLedger, ProfileLedger)
	require.NoError(t, db.Migrate())

	ctx := context.Background()
	require.NoError(t, db.HealthCheck(ctx))
	require.NoError(t, db.WALCheckpoint())

	stats, err := db.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, NameLedger, stats.Name)
	assert.Positive(t, stats.PageCount)
	assert.Positive(t, stats.PageSize)
	assert.Positive(t, stats.SizeBytes)
}
