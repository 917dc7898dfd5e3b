// Package approval implements sequential expense approval: resolving the
// applicable chain, building a workflow from it and driving that workflow
// through approve, reject, delegate, cancel and auto-approve transitions.
package approval

import (
	"context"

	"gitlab.com/yelinaung/expense-approval/internal/models"
)

// ChainRepository stores approval chains. Find methods return nil, nil when
// nothing matches.
type ChainRepository interface {
	Save(ctx context.Context, chain *models.ApprovalChain) error
	FindByID(ctx context.Context, id string) (*models.ApprovalChain, error)
	FindByWorkspace(ctx context.Context, workspaceID string) ([]*models.ApprovalChain, error)
	FindActiveByWorkspace(ctx context.Context, workspaceID string) ([]*models.ApprovalChain, error)
	FindApplicableChain(ctx context.Context, criteria models.ChainCriteria) (*models.ApprovalChain, error)
	Delete(ctx context.Context, id string) error
}

// WorkflowRepository stores expense workflows together with their steps.
//
// Update must load, call fn and save as one atomic unit: two concurrent
// Updates of the same expense never both observe the same prior state. fn
// receives nil when the expense has no workflow; when fn returns an error
// nothing is saved and the error is returned as is.
type WorkflowRepository interface {
	Save(ctx context.Context, wf *models.ExpenseWorkflow) error
	FindByExpenseID(ctx context.Context, expenseID string) (*models.ExpenseWorkflow, error)
	FindByWorkspace(ctx context.Context, workspaceID string) ([]*models.ExpenseWorkflow, error)
	FindPendingByApprover(ctx context.Context, approverID, workspaceID string) ([]*models.ExpenseWorkflow, error)
	FindByUser(ctx context.Context, userID, workspaceID string) ([]*models.ExpenseWorkflow, error)
	Update(ctx context.Context, expenseID string, fn func(wf *models.ExpenseWorkflow) error) (*models.ExpenseWorkflow, error)
}

// WorkspaceAuthorizer answers workspace role questions owned by the
// membership system.
type WorkspaceAuthorizer interface {
	IsWorkspaceAdmin(ctx context.Context, workspaceID, userID string) (bool, error)
}
