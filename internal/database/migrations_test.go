package database

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func TestRunMigrations(t *testing.T) {
	pool := TestDB(t)
	ctx := context.Background()

	err := RunMigrations(ctx, pool)
	require.NoError(t, err)

	for _, table := range []string{"approval_chains", "expense_workflows", "approval_steps"} {
		var tableExists bool
		err = pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&tableExists)
		require.NoError(t, err)
		require.True(t, tableExists, table)
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	pool := TestDB(t)
	ctx := context.Background()

	require.NoError(t, RunMigrations(ctx, pool))
	require.NoError(t, RunMigrations(ctx, pool))
	CleanupTables(t, pool)

	var count int
	err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM approval_chains").Scan(&count)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestMigrations_ChainConstraints(t *testing.T) {
	tx := TestTx(t)
	ctx := context.Background()

	t.Run("rejects empty approver sequence", func(t *testing.T) {
		err := InTx(ctx, tx, func(inner pgx.Tx) error {
			_, err := inner.Exec(ctx, `
				INSERT INTO approval_chains (id, workspace_id, name, approver_sequence)
				VALUES (gen_random_uuid(), gen_random_uuid(), 'empty', '{}')
			`)
			return err
		})
		require.Error(t, err)
	})

	t.Run("rejects inverted amount range", func(t *testing.T) {
		err := InTx(ctx, tx, func(inner pgx.Tx) error {
			_, err := inner.Exec(ctx, `
				INSERT INTO approval_chains (id, workspace_id, name, approver_sequence, min_amount, max_amount)
				VALUES (gen_random_uuid(), gen_random_uuid(), 'inverted', ARRAY[gen_random_uuid()::text], 500, 100)
			`)
			return err
		})
		require.Error(t, err)
	})

	t.Run("step numbers are unique per workflow", func(t *testing.T) {
		var exists bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT FROM information_schema.table_constraints
				WHERE table_name = 'approval_steps' AND constraint_type = 'UNIQUE'
			)
		`).Scan(&exists)
		require.NoError(t, err)
		require.True(t, exists)
	})
}
