package approval

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/expense-approval/internal/models"
	"gitlab.com/yelinaung/expense-approval/internal/repository/memory"
)

// staticChains answers FindApplicableChain with a fixed result.
type staticChains struct {
	ChainRepository
	chain *models.ApprovalChain
	err   error
}

func (s staticChains) FindApplicableChain(context.Context, models.ChainCriteria) (*models.ApprovalChain, error) {
	return s.chain, s.err
}

func TestChainResolver_Resolve(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewApprovalChainStore()
	chainSvc := NewChainService(store, newTestClock().Now)
	resolver := NewChainResolver(store)

	workspaceID := models.NewID()
	travel := models.NewID()
	create := func(params models.ApprovalChainParams) *models.ApprovalChain {
		params.WorkspaceID = workspaceID
		params.Name = "chain"
		params.ApproverSequence = []string{models.NewID()}
		chain, err := chainSvc.CreateChain(ctx, params)
		require.NoError(t, err)
		return chain
	}

	upTo500 := create(models.ApprovalChainParams{MaxAmount: decimalPtr("500")})
	travelOnly := create(models.ApprovalChainParams{CategoryIDs: []string{travel}})
	large := create(models.ApprovalChainParams{MinAmount: decimalPtr("500.01"), RequiresReceipt: true})
	inactive := create(models.ApprovalChainParams{})
	_, err := chainSvc.DeactivateChain(ctx, inactive.ID())
	require.NoError(t, err)

	tests := []struct {
		name     string
		criteria models.ChainCriteria
		wantID   string
	}{
		{
			name:     "earliest matching chain wins",
			criteria: models.ChainCriteria{Amount: decimal.NewFromInt(20), CategoryID: &travel},
			wantID:   upTo500.ID(),
		},
		{
			name:     "category chain above first bound",
			criteria: models.ChainCriteria{Amount: decimal.NewFromInt(800), CategoryID: &travel, HasReceipt: true},
			wantID:   travelOnly.ID(),
		},
		{
			name:     "receipt and lower bound",
			criteria: models.ChainCriteria{Amount: decimal.NewFromInt(800), HasReceipt: true},
			wantID:   large.ID(),
		},
		{
			name:     "missing receipt leaves nothing",
			criteria: models.ChainCriteria{Amount: decimal.NewFromInt(800)},
		},
		{
			name:     "amount between two bounds",
			criteria: models.ChainCriteria{Amount: decimal.RequireFromString("500.005")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.criteria.WorkspaceID = workspaceID
			chain, err := resolver.Resolve(ctx, tt.criteria)
			if tt.wantID == "" {
				require.ErrorIs(t, err, models.ErrNoMatchingApprovalChain)
				require.Nil(t, chain)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantID, chain.ID())
		})
	}
}

func TestChainResolver_DoesNotTrustRepository(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	chain, err := models.NewApprovalChain(models.ApprovalChainParams{
		WorkspaceID:      models.NewID(),
		Name:             "elsewhere",
		ApproverSequence: []string{models.NewID()},
	}, testNow)
	require.NoError(t, err)

	resolver := NewChainResolver(staticChains{chain: chain})
	_, err = resolver.Resolve(ctx, models.ChainCriteria{WorkspaceID: models.NewID(), Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, models.ErrNoMatchingApprovalChain)
}

func TestChainResolver_PropagatesRepositoryErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("connection reset")
	resolver := NewChainResolver(staticChains{err: boom})

	_, err := resolver.Resolve(context.Background(), models.ChainCriteria{
		WorkspaceID: models.NewID(), Amount: decimal.NewFromInt(1),
	})
	require.ErrorIs(t, err, boom)
}
