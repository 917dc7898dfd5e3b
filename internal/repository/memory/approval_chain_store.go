// Package memory provides in-process implementations of the approval
// repositories. State is kept as flat records and rebuilt into entities on
// every read so callers never share mutable state with the store.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"gitlab.com/yelinaung/expense-approval/internal/models"
)

// ApprovalChainStore keeps approval chains in memory.
type ApprovalChainStore struct {
	mu     sync.RWMutex
	chains map[string]models.ApprovalChainRecord
}

// NewApprovalChainStore creates an empty ApprovalChainStore.
func NewApprovalChainStore() *ApprovalChainStore {
	return &ApprovalChainStore{chains: make(map[string]models.ApprovalChainRecord)}
}

// Save inserts or replaces a chain.
func (s *ApprovalChainStore) Save(_ context.Context, chain *models.ApprovalChain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := chain.Record()
	if existing, ok := s.chains[rec.ID]; ok {
		rec.CreatedAt = existing.CreatedAt
	}
	s.chains[rec.ID] = rec
	return nil
}

// FindByID returns nil when the chain does not exist.
func (s *ApprovalChainStore) FindByID(_ context.Context, id string) (*models.ApprovalChain, error) {
	s.mu.RLock()
	rec, ok := s.chains[id]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	return models.ReconstituteApprovalChain(rec)
}

// FindByWorkspace returns every chain in a workspace in matching order.
func (s *ApprovalChainStore) FindByWorkspace(_ context.Context, workspaceID string) ([]*models.ApprovalChain, error) {
	return s.find(func(rec models.ApprovalChainRecord) bool {
		return rec.WorkspaceID == workspaceID
	})
}

// FindActiveByWorkspace returns active chains in a workspace in matching order.
func (s *ApprovalChainStore) FindActiveByWorkspace(_ context.Context, workspaceID string) ([]*models.ApprovalChain, error) {
	return s.find(func(rec models.ApprovalChainRecord) bool {
		return rec.WorkspaceID == workspaceID && rec.IsActive
	})
}

// FindApplicableChain returns the first active chain matching the criteria, or nil.
func (s *ApprovalChainStore) FindApplicableChain(ctx context.Context, criteria models.ChainCriteria) (*models.ApprovalChain, error) {
	chains, err := s.FindActiveByWorkspace(ctx, criteria.WorkspaceID)
	if err != nil {
		return nil, err
	}
	return models.FirstMatchingChain(chains, criteria), nil
}

// Delete removes a chain.
func (s *ApprovalChainStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chains[id]; !ok {
		return models.NewApprovalChainNotFound(id)
	}
	delete(s.chains, id)
	return nil
}

func (s *ApprovalChainStore) find(keep func(models.ApprovalChainRecord) bool) ([]*models.ApprovalChain, error) {
	s.mu.RLock()
	recs := make([]models.ApprovalChainRecord, 0, len(s.chains))
	for _, rec := range s.chains {
		if keep(rec) {
			recs = append(recs, rec)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(recs, func(a, b models.ApprovalChainRecord) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	chains := make([]*models.ApprovalChain, 0, len(recs))
	for _, rec := range recs {
		chain, err := models.ReconstituteApprovalChain(rec)
		if err != nil {
			return nil, err
		}
		chains = append(chains, chain)
	}
	return chains, nil
}
