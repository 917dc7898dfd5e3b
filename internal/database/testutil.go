package database

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// approvalTables lists the schema's tables, children first.
var approvalTables = []string{"approval_steps", "expense_workflows", "approval_chains"}

func testDatabaseURL(t *testing.T) string {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}
	return dbURL
}

// TestDB returns a dedicated pool, closed when the test ends. Prefer TestTx
// unless the test needs to see committed state.
func TestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	pool, err := Connect(context.Background(), testDatabaseURL(t))
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}

// CleanupTables empties every approval table in one statement.
func CleanupTables(t *testing.T, db PGXDB) {
	t.Helper()

	query := "TRUNCATE TABLE " + approvalTables[0]
	for _, table := range approvalTables[1:] {
		query += ", " + table
	}
	if _, err := db.Exec(context.Background(), query+" CASCADE"); err != nil {
		t.Fatalf("failed to truncate approval tables: %v", err)
	}
}
