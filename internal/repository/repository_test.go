package repository

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/expense-approval/internal/models"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func newChain(t *testing.T, params models.ApprovalChainParams, now time.Time) *models.ApprovalChain {
	t.Helper()

	if params.Name == "" {
		params.Name = "Default"
	}
	chain, err := models.NewApprovalChain(params, now)
	require.NoError(t, err)
	return chain
}

func newWorkflow(t *testing.T, chain *models.ApprovalChain, requesterID string) *models.ExpenseWorkflow {
	t.Helper()

	wf, err := models.NewExpenseWorkflow(models.NewWorkflowParams{
		ExpenseID:   models.NewID(),
		WorkspaceID: chain.WorkspaceID(),
		RequesterID: requesterID,
		Chain:       chain,
	}, testNow)
	require.NoError(t, err)
	require.NoError(t, wf.Start(testNow))
	return wf
}
