package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func newTestChain(t *testing.T, approvers ...string) *ApprovalChain {
	t.Helper()

	chain, err := NewApprovalChain(ApprovalChainParams{
		WorkspaceID:      NewID(),
		Name:             "Default",
		ApproverSequence: approvers,
	}, testNow)
	require.NoError(t, err)
	return chain
}

func newStartedWorkflow(t *testing.T, approvers ...string) *ExpenseWorkflow {
	t.Helper()

	chain := newTestChain(t, approvers...)
	wf, err := NewExpenseWorkflow(NewWorkflowParams{
		ExpenseID:   NewID(),
		WorkspaceID: chain.WorkspaceID(),
		RequesterID: NewID(),
		Chain:       chain,
	}, testNow)
	require.NoError(t, err)
	require.NoError(t, wf.Start(testNow))
	return wf
}
