package database

import (
	"context"
	"fmt"
)

// RunMigrations creates the database schema.
func RunMigrations(ctx context.Context, db PGXDB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS approval_chains (
			id UUID PRIMARY KEY,
			workspace_id UUID NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			min_amount DECIMAL(14, 2),
			max_amount DECIMAL(14, 2),
			category_ids TEXT[],
			requires_receipt BOOLEAN NOT NULL DEFAULT FALSE,
			approver_sequence TEXT[] NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT approval_chains_sequence_not_empty CHECK (cardinality(approver_sequence) > 0),
			CONSTRAINT approval_chains_amount_range CHECK (
				min_amount IS NULL OR max_amount IS NULL OR min_amount <= max_amount
			)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_approval_chains_workspace ON approval_chains(workspace_id, is_active)`,

		`CREATE TABLE IF NOT EXISTS expense_workflows (
			id UUID PRIMARY KEY,
			expense_id UUID NOT NULL,
			workspace_id UUID NOT NULL,
			requester_id UUID NOT NULL,
			chain_id UUID NOT NULL,
			status TEXT NOT NULL,
			current_step_number INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ
		)`,

		`CREATE INDEX IF NOT EXISTS idx_expense_workflows_expense_id ON expense_workflows(expense_id)`,
		`CREATE INDEX IF NOT EXISTS idx_expense_workflows_workspace ON expense_workflows(workspace_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_expense_workflows_requester ON expense_workflows(requester_id, workspace_id)`,

		`CREATE TABLE IF NOT EXISTS approval_steps (
			id UUID PRIMARY KEY,
			workflow_id UUID NOT NULL REFERENCES expense_workflows(id) ON DELETE CASCADE,
			step_number INTEGER NOT NULL,
			approver_id UUID NOT NULL,
			delegated_to UUID,
			status TEXT NOT NULL,
			comments TEXT NOT NULL DEFAULT '',
			processed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (workflow_id, step_number)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_approval_steps_approver ON approval_steps(approver_id)`,
		`CREATE INDEX IF NOT EXISTS idx_approval_steps_delegated_to ON approval_steps(delegated_to)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}
