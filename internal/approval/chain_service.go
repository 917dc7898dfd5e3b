package approval

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/expense-approval/internal/logger"
	"gitlab.com/yelinaung/expense-approval/internal/models"
)

// ChainService authors approval chains. Workflows already built from a
// chain are not affected by later edits to it.
type ChainService struct {
	chains ChainRepository
	now    func() time.Time
}

// NewChainService creates a ChainService. A nil clock means time.Now in UTC.
func NewChainService(chains ChainRepository, now func() time.Time) *ChainService {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &ChainService{chains: chains, now: now}
}

// CreateChain validates params and stores a new active chain.
func (s *ChainService) CreateChain(ctx context.Context, params models.ApprovalChainParams) (*models.ApprovalChain, error) {
	chain, err := models.NewApprovalChain(params, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.chains.Save(ctx, chain); err != nil {
		return nil, err
	}

	logger.Log.Info().
		Str("chain_id", chain.ID()).
		Str("workspace_hash", logger.HashID(chain.WorkspaceID())).
		Int("approvers", len(chain.ApproverSequence())).
		Msg("Approval chain created")
	return chain, nil
}

// GetChain returns a chain or ApprovalChainNotFound.
func (s *ChainService) GetChain(ctx context.Context, id string) (*models.ApprovalChain, error) {
	id, err := models.CanonicalID("chain_id", id)
	if err != nil {
		return nil, err
	}
	chain, err := s.chains.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if chain == nil {
		return nil, models.NewApprovalChainNotFound(id)
	}
	return chain, nil
}

// ListChains returns every chain in a workspace in matching order.
func (s *ChainService) ListChains(ctx context.Context, workspaceID string) ([]*models.ApprovalChain, error) {
	workspaceID, err := models.CanonicalID("workspace_id", workspaceID)
	if err != nil {
		return nil, err
	}
	return s.chains.FindByWorkspace(ctx, workspaceID)
}

// ListActiveChains returns the chains eligible for matching.
func (s *ChainService) ListActiveChains(ctx context.Context, workspaceID string) ([]*models.ApprovalChain, error) {
	workspaceID, err := models.CanonicalID("workspace_id", workspaceID)
	if err != nil {
		return nil, err
	}
	return s.chains.FindActiveByWorkspace(ctx, workspaceID)
}

// RenameChain changes a chain's name.
func (s *ChainService) RenameChain(ctx context.Context, id, name string) (*models.ApprovalChain, error) {
	return s.mutate(ctx, id, "rename", func(c *models.ApprovalChain, now time.Time) error {
		return c.Rename(name, now)
	})
}

// DescribeChain replaces a chain's description.
func (s *ChainService) DescribeChain(ctx context.Context, id, description string) (*models.ApprovalChain, error) {
	return s.mutate(ctx, id, "describe", func(c *models.ApprovalChain, now time.Time) error {
		c.Describe(description, now)
		return nil
	})
}

// SetAmountRange replaces a chain's amount bounds. Either bound may be nil.
func (s *ChainService) SetAmountRange(ctx context.Context, id string, minAmount, maxAmount *decimal.Decimal) (*models.ApprovalChain, error) {
	return s.mutate(ctx, id, "set_amount_range", func(c *models.ApprovalChain, now time.Time) error {
		return c.SetAmountRange(minAmount, maxAmount, now)
	})
}

// SetCategories replaces a chain's category allow-list.
func (s *ChainService) SetCategories(ctx context.Context, id string, categoryIDs []string) (*models.ApprovalChain, error) {
	return s.mutate(ctx, id, "set_categories", func(c *models.ApprovalChain, now time.Time) error {
		return c.SetCategories(categoryIDs, now)
	})
}

// SetRequiresReceipt toggles a chain's receipt requirement.
func (s *ChainService) SetRequiresReceipt(ctx context.Context, id string, required bool) (*models.ApprovalChain, error) {
	return s.mutate(ctx, id, "set_requires_receipt", func(c *models.ApprovalChain, now time.Time) error {
		c.SetRequiresReceipt(required, now)
		return nil
	})
}

// SetApproverSequence replaces a chain's ordered approvers.
func (s *ChainService) SetApproverSequence(ctx context.Context, id string, sequence []string) (*models.ApprovalChain, error) {
	return s.mutate(ctx, id, "set_approver_sequence", func(c *models.ApprovalChain, now time.Time) error {
		return c.SetApproverSequence(sequence, now)
	})
}

// ActivateChain makes a chain eligible for matching.
func (s *ChainService) ActivateChain(ctx context.Context, id string) (*models.ApprovalChain, error) {
	return s.mutate(ctx, id, "activate", func(c *models.ApprovalChain, now time.Time) error {
		c.Activate(now)
		return nil
	})
}

// DeactivateChain removes a chain from matching.
func (s *ChainService) DeactivateChain(ctx context.Context, id string) (*models.ApprovalChain, error) {
	return s.mutate(ctx, id, "deactivate", func(c *models.ApprovalChain, now time.Time) error {
		c.Deactivate(now)
		return nil
	})
}

// DeleteChain removes a chain. In-flight workflows keep their steps.
func (s *ChainService) DeleteChain(ctx context.Context, id string) error {
	id, err := models.CanonicalID("chain_id", id)
	if err != nil {
		return err
	}
	if err := s.chains.Delete(ctx, id); err != nil {
		return err
	}
	logger.Log.Info().Str("chain_id", id).Msg("Approval chain deleted")
	return nil
}

func (s *ChainService) mutate(
	ctx context.Context,
	id, action string,
	fn func(c *models.ApprovalChain, now time.Time) error,
) (*models.ApprovalChain, error) {
	chain, err := s.GetChain(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(chain, s.now()); err != nil {
		return nil, err
	}
	if err := s.chains.Save(ctx, chain); err != nil {
		return nil, err
	}

	logger.Log.Info().
		Str("chain_id", chain.ID()).
		Str("action", action).
		Bool("active", chain.IsActive()).
		Msg("Approval chain updated")
	return chain, nil
}
