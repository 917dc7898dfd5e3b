package repository

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/expense-approval/internal/models"
)

// chainFromRecord maps a stored row into the domain entity through the
// reconstitution factory.
func chainFromRecord(rec models.ApprovalChainRecord) (*models.ApprovalChain, error) {
	chain, err := models.ReconstituteApprovalChain(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to load approval chain %s: %w", rec.ID, err)
	}
	return chain, nil
}

// workflowFromRecord maps a stored workflow row plus its step rows into the
// aggregate through the reconstitution factory.
func workflowFromRecord(rec models.ExpenseWorkflowRecord) (*models.ExpenseWorkflow, error) {
	wf, err := models.ReconstituteExpenseWorkflow(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to load expense workflow %s: %w", rec.ID, err)
	}
	return wf, nil
}

func nullDecimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}
