package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ellis-vester/backloggd-discord/backend/data"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// ConnectTestPool connects to the database named by TEST_DATABASE_URL, migrates it, and empties the tables. The test is
// skipped when TEST_DATABASE_URL is not set.
func ConnectTestPool(t testing.TB) *pgxpool.Pool {
	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	err = data.MigratePostgres(ctx, conn.Conn(), nil)
	require.NoError(t, err)

	_, err = conn.Exec(ctx, `truncate subscriptions, feeds restart identity`)
	require.NoError(t, err)

	return pool
}

// OpenTestSQLite opens a fresh SQLite store in a temporary directory.
func OpenTestSQLite(t testing.TB) *data.SQLiteStore {
	store, err := data.OpenSQLite(context.Background(), t.TempDir()+"/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}
