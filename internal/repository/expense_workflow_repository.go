package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"gitlab.com/yelinaung/expense-approval/internal/database"
	"gitlab.com/yelinaung/expense-approval/internal/models"
)

const workflowColumns = `w.id, w.expense_id, w.workspace_id, w.requester_id, w.chain_id, w.status,
	w.current_step_number, w.created_at, w.updated_at, w.completed_at`

// ExpenseWorkflowRepository handles expense workflow database operations.
// A workflow and its steps are always written together in one transaction.
type ExpenseWorkflowRepository struct {
	db database.DB
}

// NewExpenseWorkflowRepository creates a new ExpenseWorkflowRepository.
func NewExpenseWorkflowRepository(db database.DB) *ExpenseWorkflowRepository {
	return &ExpenseWorkflowRepository{db: db}
}

// Save inserts or updates a workflow and all of its steps atomically.
func (r *ExpenseWorkflowRepository) Save(ctx context.Context, wf *models.ExpenseWorkflow) error {
	return database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		return saveWorkflow(ctx, tx, wf)
	})
}

// FindByExpenseID retrieves the workflow for an expense. Returns nil when
// none exists.
func (r *ExpenseWorkflowRepository) FindByExpenseID(ctx context.Context, expenseID string) (*models.ExpenseWorkflow, error) {
	return findByExpenseID(ctx, r.db, expenseID, false)
}

// FindByWorkspace retrieves every workflow in a workspace, newest first.
func (r *ExpenseWorkflowRepository) FindByWorkspace(ctx context.Context, workspaceID string) ([]*models.ExpenseWorkflow, error) {
	return r.findMany(ctx, `
		SELECT `+workflowColumns+`
		FROM expense_workflows w
		WHERE w.workspace_id = $1
		ORDER BY w.created_at DESC, w.id
	`, workspaceID)
}

// FindPendingByApprover retrieves in-progress workflows whose current step
// is waiting on approverID, either as assignee or as delegate.
func (r *ExpenseWorkflowRepository) FindPendingByApprover(ctx context.Context, approverID, workspaceID string) ([]*models.ExpenseWorkflow, error) {
	return r.findMany(ctx, `
		SELECT `+workflowColumns+`
		FROM expense_workflows w
		JOIN approval_steps s ON s.workflow_id = w.id AND s.step_number = w.current_step_number
		WHERE w.workspace_id = $2
		  AND w.status = $3
		  AND s.status IN ($4, $5)
		  AND COALESCE(s.delegated_to, s.approver_id) = $1
		ORDER BY w.created_at, w.id
	`, approverID, workspaceID, models.WorkflowStatusInProgress, models.StepStatusPending, models.StepStatusDelegated)
}

// FindByUser retrieves workflows requested by userID in a workspace, newest first.
func (r *ExpenseWorkflowRepository) FindByUser(ctx context.Context, userID, workspaceID string) ([]*models.ExpenseWorkflow, error) {
	return r.findMany(ctx, `
		SELECT `+workflowColumns+`
		FROM expense_workflows w
		WHERE w.requester_id = $1 AND w.workspace_id = $2
		ORDER BY w.created_at DESC, w.id
	`, userID, workspaceID)
}

// Update loads the workflow for expenseID under a row lock, passes it to fn
// and saves the result in the same transaction. fn receives nil when no
// workflow exists. If fn returns an error nothing is written and the error
// is returned unchanged.
func (r *ExpenseWorkflowRepository) Update(
	ctx context.Context,
	expenseID string,
	fn func(wf *models.ExpenseWorkflow) error,
) (*models.ExpenseWorkflow, error) {
	var updated *models.ExpenseWorkflow
	err := database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		wf, err := findByExpenseID(ctx, tx, expenseID, true)
		if err != nil {
			return err
		}
		if err := fn(wf); err != nil {
			return err
		}
		if wf == nil {
			return nil
		}
		if err := saveWorkflow(ctx, tx, wf); err != nil {
			return err
		}
		updated = wf
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *ExpenseWorkflowRepository) findMany(ctx context.Context, query string, args ...any) ([]*models.ExpenseWorkflow, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query expense workflows: %w", err)
	}
	recs, err := scanWorkflowRows(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	if err := attachSteps(ctx, r.db, recs); err != nil {
		return nil, err
	}

	workflows := make([]*models.ExpenseWorkflow, 0, len(recs))
	for _, rec := range recs {
		wf, err := workflowFromRecord(*rec)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, nil
}

func findByExpenseID(ctx context.Context, db database.PGXDB, expenseID string, forUpdate bool) (*models.ExpenseWorkflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM expense_workflows w
		WHERE w.expense_id = $1
		ORDER BY w.created_at DESC
		LIMIT 1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var rec models.ExpenseWorkflowRecord
	err := scanWorkflow(db.QueryRow(ctx, query, expenseID), &rec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get expense workflow: %w", err)
	}
	if err := attachSteps(ctx, db, []*models.ExpenseWorkflowRecord{&rec}); err != nil {
		return nil, err
	}
	return workflowFromRecord(rec)
}

func saveWorkflow(ctx context.Context, tx pgx.Tx, wf *models.ExpenseWorkflow) error {
	rec := wf.Record()
	_, err := tx.Exec(ctx, `
		INSERT INTO expense_workflows (id, expense_id, workspace_id, requester_id, chain_id, status,
			current_step_number, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_step_number = EXCLUDED.current_step_number,
			updated_at = EXCLUDED.updated_at,
			completed_at = EXCLUDED.completed_at
	`, rec.ID, rec.ExpenseID, rec.WorkspaceID, rec.RequesterID, rec.ChainID, rec.Status,
		rec.CurrentStepNumber, rec.CreatedAt, rec.UpdatedAt, rec.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to save expense workflow: %w", err)
	}

	for _, step := range rec.Steps {
		_, err := tx.Exec(ctx, `
			INSERT INTO approval_steps (id, workflow_id, step_number, approver_id, delegated_to, status,
				comments, processed_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET
				delegated_to = EXCLUDED.delegated_to,
				status = EXCLUDED.status,
				comments = EXCLUDED.comments,
				processed_at = EXCLUDED.processed_at,
				updated_at = EXCLUDED.updated_at
		`, step.ID, rec.ID, step.StepNumber, step.ApproverID, step.DelegatedTo, step.Status,
			step.Comments, step.ProcessedAt, step.CreatedAt, step.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to save approval step %d: %w", step.StepNumber, err)
		}
	}
	return nil
}

// attachSteps loads the steps for every record in one query.
func attachSteps(ctx context.Context, db database.PGXDB, recs []*models.ExpenseWorkflowRecord) error {
	ids := make([]string, len(recs))
	byID := make(map[string]*models.ExpenseWorkflowRecord, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
		byID[rec.ID] = rec
	}

	rows, err := db.Query(ctx, `
		SELECT id, workflow_id, step_number, approver_id, delegated_to, status, comments,
		       processed_at, created_at, updated_at
		FROM approval_steps
		WHERE workflow_id = ANY($1::uuid[])
		ORDER BY workflow_id, step_number
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query approval steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var step models.ApprovalStepRecord
		if err := rows.Scan(
			&step.ID, &step.WorkflowID, &step.StepNumber, &step.ApproverID, &step.DelegatedTo, &step.Status,
			&step.Comments, &step.ProcessedAt, &step.CreatedAt, &step.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to scan approval step: %w", err)
		}
		if rec, ok := byID[step.WorkflowID]; ok {
			rec.Steps = append(rec.Steps, step)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating approval steps: %w", err)
	}
	return nil
}

func scanWorkflow(row pgx.Row, rec *models.ExpenseWorkflowRecord) error {
	return row.Scan(
		&rec.ID, &rec.ExpenseID, &rec.WorkspaceID, &rec.RequesterID, &rec.ChainID, &rec.Status,
		&rec.CurrentStepNumber, &rec.CreatedAt, &rec.UpdatedAt, &rec.CompletedAt,
	)
}

func scanWorkflowRows(rows pgx.Rows) ([]*models.ExpenseWorkflowRecord, error) {
	defer rows.Close()

	var recs []*models.ExpenseWorkflowRecord
	for rows.Next() {
		var rec models.ExpenseWorkflowRecord
		if err := scanWorkflow(rows, &rec); err != nil {
			return nil, fmt.Errorf("failed to scan expense workflow: %w", err)
		}
		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expense workflows: %w", err)
	}
	return recs, nil
}
