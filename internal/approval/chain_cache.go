package approval

import (
	"context"
	"sync"
	"time"

	"gitlab.com/yelinaung/expense-approval/internal/models"
)

type cachedChainsEntry struct {
	Chains    []models.ApprovalChainRecord
	ExpiresAt time.Time
}

type inFlightLoad struct {
	done chan struct{}
	recs []models.ApprovalChainRecord
	err  error
}

const maxCleanupInterval = 5 * time.Minute

// CachedChainRepository wraps a ChainRepository with an in-memory TTL cache
// of active chains per workspace. Writes through the cache invalidate it;
// writes that bypass it become visible after the TTL.
type CachedChainRepository struct {
	inner ChainRepository
	ttl   time.Duration
	now   func() time.Time

	mu          sync.RWMutex
	active      map[string]cachedChainsEntry
	inFlight    map[string]*inFlightLoad
	lastCleanup time.Time
}

// NewCachedChainRepository returns a repository that caches active chains.
func NewCachedChainRepository(inner ChainRepository, ttl time.Duration) *CachedChainRepository {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedChainRepository{
		inner:    inner,
		ttl:      ttl,
		now:      time.Now,
		active:   make(map[string]cachedChainsEntry),
		inFlight: make(map[string]*inFlightLoad),
	}
}

// Save writes through and drops the chain's workspace from the cache.
func (c *CachedChainRepository) Save(ctx context.Context, chain *models.ApprovalChain) error {
	if err := c.inner.Save(ctx, chain); err != nil {
		return err
	}
	c.invalidate(chain.WorkspaceID())
	return nil
}

// FindByID is not cached.
func (c *CachedChainRepository) FindByID(ctx context.Context, id string) (*models.ApprovalChain, error) {
	return c.inner.FindByID(ctx, id)
}

// FindByWorkspace is not cached; it includes inactive chains.
func (c *CachedChainRepository) FindByWorkspace(ctx context.Context, workspaceID string) ([]*models.ApprovalChain, error) {
	return c.inner.FindByWorkspace(ctx, workspaceID)
}

// FindActiveByWorkspace returns active chains, from the cache when fresh.
func (c *CachedChainRepository) FindActiveByWorkspace(ctx context.Context, workspaceID string) ([]*models.ApprovalChain, error) {
	recs, err := c.activeRecords(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return chainsFromRecords(recs)
}

// FindApplicableChain matches against the cached active chains.
func (c *CachedChainRepository) FindApplicableChain(ctx context.Context, criteria models.ChainCriteria) (*models.ApprovalChain, error) {
	chains, err := c.FindActiveByWorkspace(ctx, criteria.WorkspaceID)
	if err != nil {
		return nil, err
	}
	return models.FirstMatchingChain(chains, criteria), nil
}

// Delete removes the chain and clears the cache, since the chain's
// workspace is not known without another lookup.
func (c *CachedChainRepository) Delete(ctx context.Context, id string) error {
	if err := c.inner.Delete(ctx, id); err != nil {
		return err
	}
	c.mu.Lock()
	c.active = make(map[string]cachedChainsEntry)
	c.mu.Unlock()
	return nil
}

func (c *CachedChainRepository) activeRecords(ctx context.Context, workspaceID string) ([]models.ApprovalChainRecord, error) {
	now := c.now()

	c.mu.RLock()
	entry, ok := c.active[workspaceID]
	c.mu.RUnlock()
	if ok && now.Before(entry.ExpiresAt) {
		return entry.Chains, nil
	}

	c.mu.Lock()
	// Re-check under write lock in case another goroutine refreshed it.
	entry, ok = c.active[workspaceID]
	if ok && now.Before(entry.ExpiresAt) {
		c.mu.Unlock()
		return entry.Chains, nil
	}
	if ok {
		delete(c.active, workspaceID)
	}

	if call, waiting := c.inFlight[workspaceID]; waiting {
		c.mu.Unlock()
		return waitForLoad(ctx, call)
	}

	call := &inFlightLoad{done: make(chan struct{})}
	c.inFlight[workspaceID] = call
	c.mu.Unlock()

	// Detached so one caller's deadline does not fail every waiter.
	go c.loadAndBroadcast(context.WithoutCancel(ctx), workspaceID, call)
	return waitForLoad(ctx, call)
}

func (c *CachedChainRepository) loadAndBroadcast(ctx context.Context, workspaceID string, call *inFlightLoad) {
	chains, err := c.inner.FindActiveByWorkspace(ctx, workspaceID)
	var recs []models.ApprovalChainRecord
	if err == nil {
		recs = make([]models.ApprovalChainRecord, len(chains))
		for i, chain := range chains {
			recs[i] = chain.Record()
		}
	}

	loadedAt := c.now()
	c.mu.Lock()
	// A write may have invalidated the workspace while loading; the result
	// is still handed to waiters but only cached if nobody wrote meanwhile.
	if err == nil && c.inFlight[workspaceID] == call {
		c.active[workspaceID] = cachedChainsEntry{
			Chains:    recs,
			ExpiresAt: loadedAt.Add(c.ttl),
		}
		c.cleanupExpiredLocked(loadedAt)
	}
	call.recs = recs
	call.err = err
	if c.inFlight[workspaceID] == call {
		delete(c.inFlight, workspaceID)
	}
	close(call.done)
	c.mu.Unlock()
}

func (c *CachedChainRepository) invalidate(workspaceID string) {
	c.mu.Lock()
	delete(c.active, workspaceID)
	delete(c.inFlight, workspaceID)
	c.mu.Unlock()
}

func waitForLoad(ctx context.Context, call *inFlightLoad) ([]models.ApprovalChainRecord, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-call.done:
		return call.recs, call.err
	}
}

func (c *CachedChainRepository) cleanupExpiredLocked(now time.Time) {
	interval := min(c.ttl, maxCleanupInterval)
	if !c.lastCleanup.IsZero() && now.Sub(c.lastCleanup) < interval {
		return
	}
	for workspaceID, entry := range c.active {
		if !now.Before(entry.ExpiresAt) {
			delete(c.active, workspaceID)
		}
	}
	c.lastCleanup = now
}

// chainsFromRecords hands each caller its own entities so cached state is
// never mutated through them.
func chainsFromRecords(recs []models.ApprovalChainRecord) ([]*models.ApprovalChain, error) {
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
