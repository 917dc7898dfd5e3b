package database

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func TestTestPool_ReturnsSharedPool(t *testing.T) {
	if os.Getenv("TEST_DATABASE_URL") == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	p1 := TestPool(t)
	p2 := TestPool(t)

	require.NotNil(t, p1)
	require.Same(t, p1, p2)
}

func TestTestTx_ReturnsUsableTx(t *testing.T) {
	if os.Getenv("TEST_DATABASE_URL") == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db := TestTx(t)
	require.NotNil(t, db)

	var n int
	err := db.QueryRow(context.Background(), "SELECT 1").Scan(&n)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestInTx_RollsBackOnError(t *testing.T) {
	if os.Getenv("TEST_DATABASE_URL") == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db := TestTx(t)
	ctx := context.Background()

	_, err := db.Exec(ctx, `CREATE TEMP TABLE intx_probe (n INTEGER)`)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = InTx(ctx, db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO intx_probe VALUES (1)`); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = InTx(ctx, db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO intx_probe VALUES (2)`)
		return err
	})
	require.NoError(t, err)

	var total int
	require.NoError(t, db.QueryRow(ctx, `SELECT COALESCE(SUM(n), 0) FROM intx_probe`).Scan(&total))
	require.Equal(t, 2, total)
}
