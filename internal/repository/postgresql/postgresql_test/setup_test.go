package postgresql_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cmlabs-hris/absence-dashboard-go/internal/pkg/database"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/repository/postgresql"
)

// newTestDatabase connects to TEST_DATABASE_URL, skipping the test when it is not set
func newTestDatabase(t *testing.T) *database.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.NewPostgreSQLDB(ctx, dsn, database.PoolOptions{MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, postgresql.EnsureSchema(ctx, db))
	truncateTables(t, db)
	t.Cleanup(func() { truncateTables(t, db) })

	return db
}

// truncateTables removes all import data
func truncateTables(t *testing.T, db *database.DB) {
	t.Helper()

	_, err := db.Exec(context.Background(), "TRUNCATE TABLE absence_imports CASCADE")
	require.NoError(t, err)
}
