package approval

import (
	"context"

	"gitlab.com/yelinaung/expense-approval/internal/models"
)

// ChainResolver picks the approval chain for a new workflow.
type ChainResolver struct {
	chains ChainRepository
}

// NewChainResolver creates a ChainResolver over chains.
func NewChainResolver(chains ChainRepository) *ChainResolver {
	return &ChainResolver{chains: chains}
}

// Resolve returns the first active chain in the workspace that matches the
// expense, in the order the repository supplies them. It fails with
// NoMatchingApprovalChain when none does.
func (r *ChainResolver) Resolve(ctx context.Context, criteria models.ChainCriteria) (*models.ApprovalChain, error) {
	criteria, err := canonicalCriteria(criteria)
	if err != nil {
		return nil, err
	}

	chain, err := r.chains.FindApplicableChain(ctx, criteria)
	if err != nil {
		return nil, err
	}
	if chain == nil || chain.WorkspaceID() != criteria.WorkspaceID || !chain.Matches(criteria) {
		return nil, models.NewNoMatchingApprovalChain(criteria.WorkspaceID, criteria.Amount.String())
	}
	return chain, nil
}

func canonicalCriteria(criteria models.ChainCriteria) (models.ChainCriteria, error) {
	workspaceID, err := models.CanonicalID("workspace_id", criteria.WorkspaceID)
	if err != nil {
		return criteria, err
	}
	criteria.WorkspaceID = workspaceID
	if criteria.CategoryID != nil {
		categoryID, err := models.CanonicalID("category_id", *criteria.CategoryID)
		if err != nil {
			return criteria, err
		}
		criteria.CategoryID = &categoryID
	}
	if criteria.Amount.IsNegative() {
		return criteria, models.NewInvalidAmount(criteria.Amount.String())
	}
	return criteria, nil
}
