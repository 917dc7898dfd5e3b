package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/expense-approval/internal/database"
	"gitlab.com/yelinaung/expense-approval/internal/models"
)

const chainColumns = `id, workspace_id, name, description, min_amount, max_amount, category_ids,
	requires_receipt, approver_sequence, is_active, created_at, updated_at`

// ApprovalChainRepository handles approval chain database operations.
type ApprovalChainRepository struct {
	db database.PGXDB
}

// NewApprovalChainRepository creates a new ApprovalChainRepository.
func NewApprovalChainRepository(db database.PGXDB) *ApprovalChainRepository {
	return &ApprovalChainRepository{db: db}
}

// Save inserts or updates a chain.
func (r *ApprovalChainRepository) Save(ctx context.Context, chain *models.ApprovalChain) error {
	rec := chain.Record()
	_, err := r.db.Exec(ctx, `
		INSERT INTO approval_chains (id, workspace_id, name, description, min_amount, max_amount, category_ids,
			requires_receipt, approver_sequence, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			min_amount = EXCLUDED.min_amount,
			max_amount = EXCLUDED.max_amount,
			category_ids = EXCLUDED.category_ids,
			requires_receipt = EXCLUDED.requires_receipt,
			approver_sequence = EXCLUDED.approver_sequence,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`, rec.ID, rec.WorkspaceID, rec.Name, rec.Description, rec.MinAmount, rec.MaxAmount, rec.CategoryIDs,
		rec.RequiresReceipt, rec.ApproverSequence, rec.IsActive, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save approval chain: %w", err)
	}
	return nil
}

// FindByID retrieves a chain by ID. Returns nil when it does not exist.
func (r *ApprovalChainRepository) FindByID(ctx context.Context, id string) (*models.ApprovalChain, error) {
	chain, err := scanChain(r.db.QueryRow(ctx, `SELECT `+chainColumns+` FROM approval_chains WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get approval chain: %w", err)
	}
	return chain, nil
}

// FindByWorkspace retrieves every chain in a workspace in matching order.
func (r *ApprovalChainRepository) FindByWorkspace(ctx context.Context, workspaceID string) ([]*models.ApprovalChain, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+chainColumns+`
		FROM approval_chains
		WHERE workspace_id = $1
		ORDER BY created_at, id
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query approval chains: %w", err)
	}
	defer rows.Close()

	return scanChains(rows)
}

// FindActiveByWorkspace retrieves active chains in a workspace in matching order.
func (r *ApprovalChainRepository) FindActiveByWorkspace(ctx context.Context, workspaceID string) ([]*models.ApprovalChain, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+chainColumns+`
		FROM approval_chains
		WHERE workspace_id = $1 AND is_active
		ORDER BY created_at, id
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active approval chains: %w", err)
	}
	defer rows.Close()

	return scanChains(rows)
}

// FindApplicableChain returns the first active chain matching the criteria,
// or nil. SQL narrows the candidates; the entity predicate has the final say.
func (r *ApprovalChainRepository) FindApplicableChain(ctx context.Context, criteria models.ChainCriteria) (*models.ApprovalChain, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+chainColumns+`
		FROM approval_chains
		WHERE workspace_id = $1
		  AND is_active
		  AND (min_amount IS NULL OR min_amount <= $2)
		  AND (max_amount IS NULL OR max_amount >= $2)
		  AND (NOT requires_receipt OR $3)
		ORDER BY created_at, id
	`, criteria.WorkspaceID, criteria.Amount, criteria.HasReceipt)
	if err != nil {
		return nil, fmt.Errorf("failed to query applicable approval chains: %w", err)
	}
	defer rows.Close()

	chains, err := scanChains(rows)
	if err != nil {
		return nil, err
	}
	return models.FirstMatchingChain(chains, criteria), nil
}

// Delete removes a chain by ID.
func (r *ApprovalChainRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM approval_chains WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete approval chain: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.NewApprovalChainNotFound(id)
	}
	return nil
}

func scanChain(row pgx.Row) (*models.ApprovalChain, error) {
	var rec models.ApprovalChainRecord
	var minAmount, maxAmount decimal.NullDecimal
	if err := row.Scan(
		&rec.ID, &rec.WorkspaceID, &rec.Name, &rec.Description, &minAmount, &maxAmount, &rec.CategoryIDs,
		&rec.RequiresReceipt, &rec.ApproverSequence, &rec.IsActive, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.MinAmount = nullDecimalPtr(minAmount)
	rec.MaxAmount = nullDecimalPtr(maxAmount)
	return chainFromRecord(rec)
}

func scanChains(rows pgx.Rows) ([]*models.ApprovalChain, error) {
	var chains []*models.ApprovalChain
	for rows.Next() {
		chain, err := scanChain(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval chain: %w", err)
		}
		chains = append(chains, chain)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating approval chains: %w", err)
	}
	return chains, nil
}
