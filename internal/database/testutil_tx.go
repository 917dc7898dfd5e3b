package database

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// sharedPool connects and migrates once per test binary.
var sharedPool = sync.OnceValues(func() (*pgxpool.Pool, error) {
	ctx := context.Background()
	pool, err := Connect(ctx, os.Getenv("TEST_DATABASE_URL"))
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
})

// TestPool returns the migrated pool shared by every test in the binary.
// Skips the test if TEST_DATABASE_URL is not set.
func TestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	testDatabaseURL(t)
	pool, err := sharedPool()
	if err != nil {
		t.Fatalf("failed to set up test database: %v", err)
	}
	return pool
}

// TestTx opens a transaction on the shared pool and rolls it back when the
// test ends, so parallel tests never see each other's rows.
//
//	tx := database.TestTx(t)
//	workflows := repository.NewExpenseWorkflowRepository(tx)
//
// Begin on the returned DB opens a savepoint, so repository units of work
// (Save, Update) commit into the test transaction and still roll back.
func TestTx(t *testing.T) DB {
	t.Helper()

	tx, err := TestPool(t).Begin(context.Background())
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	t.Cleanup(func() {
		_ = tx.Rollback(context.Background())
	})

	return tx
}
