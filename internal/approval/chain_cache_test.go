package approval

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/expense-approval/internal/models"
	"gitlab.com/yelinaung/expense-approval/internal/repository/memory"
)

// countingChains counts loads of active chains and can be told to fail.
type countingChains struct {
	ChainRepository
	loads atomic.Int32
	fail  atomic.Bool
}

func (c *countingChains) FindActiveByWorkspace(ctx context.Context, workspaceID string) ([]*models.ApprovalChain, error) {
	c.loads.Add(1)
	if c.fail.Load() {
		return nil, errors.New("database unavailable")
	}
	return c.ChainRepository.FindActiveByWorkspace(ctx, workspaceID)
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type cacheFixture struct {
	ctx         context.Context
	inner       *countingChains
	cache       *CachedChainRepository
	clock       *manualClock
	chainSvc    *ChainService
	workspaceID string
}

func newCacheFixture(t *testing.T) *cacheFixture {
	t.Helper()

	inner := &countingChains{ChainRepository: memory.NewApprovalChainStore()}
	clock := &manualClock{now: testNow}
	cache := NewCachedChainRepository(inner, time.Minute)
	cache.now = clock.Now
	return &cacheFixture{
		ctx:         context.Background(),
		inner:       inner,
		cache:       cache,
		clock:       clock,
		chainSvc:    NewChainService(cache, newTestClock().Now),
		workspaceID: models.NewID(),
	}
}

func (f *cacheFixture) create(t *testing.T, name string) *models.ApprovalChain {
	t.Helper()

	chain, err := f.chainSvc.CreateChain(f.ctx, models.ApprovalChainParams{
		WorkspaceID:      f.workspaceID,
		Name:             name,
		ApproverSequence: []string{models.NewID()},
	})
	require.NoError(t, err)
	return chain
}

func (f *cacheFixture) criteria() models.ChainCriteria {
	return models.ChainCriteria{WorkspaceID: f.workspaceID, Amount: decimal.NewFromInt(10)}
}

func TestCachedChainRepository_ServesFromCache(t *testing.T) {
	t.Parallel()
	f := newCacheFixture(t)
	chain := f.create(t, "Default")

	for range 3 {
		got, err := f.cache.FindApplicableChain(f.ctx, f.criteria())
		require.NoError(t, err)
		require.Equal(t, chain.ID(), got.ID())
	}
	require.Equal(t, int32(1), f.inner.loads.Load())
}

func TestCachedChainRepository_ExpiresAfterTTL(t *testing.T) {
	t.Parallel()
	f := newCacheFixture(t)
	f.create(t, "Default")

	_, err := f.cache.FindActiveByWorkspace(f.ctx, f.workspaceID)
	require.NoError(t, err)
	f.clock.Advance(59 * time.Second)
	_, err = f.cache.FindActiveByWorkspace(f.ctx, f.workspaceID)
	require.NoError(t, err)
	require.Equal(t, int32(1), f.inner.loads.Load())

	f.clock.Advance(time.Second)
	_, err = f.cache.FindActiveByWorkspace(f.ctx, f.workspaceID)
	require.NoError(t, err)
	require.Equal(t, int32(2), f.inner.loads.Load())
}

func TestCachedChainRepository_WritesInvalidate(t *testing.T) {
	t.Parallel()
	f := newCacheFixture(t)
	first := f.create(t, "First")

	chains, err := f.cache.FindActiveByWorkspace(f.ctx, f.workspaceID)
	require.NoError(t, err)
	require.Len(t, chains, 1)

	second := f.create(t, "Second")
	chains, err = f.cache.FindActiveByWorkspace(f.ctx, f.workspaceID)
	require.NoError(t, err)
	require.Len(t, chains, 2)

	_, err = f.chainSvc.DeactivateChain(f.ctx, first.ID())
	require.NoError(t, err)
	got, err := f.cache.FindApplicableChain(f.ctx, f.criteria())
	require.NoError(t, err)
	require.Equal(t, second.ID(), got.ID())

	require.NoError(t, f.chainSvc.DeleteChain(f.ctx, second.ID()))
	got, err = f.cache.FindApplicableChain(f.ctx, f.criteria())
	require.NoError(t, err)
	require.Nil(t, got)
	require.Equal(t, int32(4), f.inner.loads.Load())
}

func TestCachedChainRepository_ReturnsDetachedChains(t *testing.T) {
	t.Parallel()
	f := newCacheFixture(t)
	f.create(t, "Original")

	chains, err := f.cache.FindActiveByWorkspace(f.ctx, f.workspaceID)
	require.NoError(t, err)
	require.NoError(t, chains[0].Rename("Changed", testNow))

	chains, err = f.cache.FindActiveByWorkspace(f.ctx, f.workspaceID)
	require.NoError(t, err)
	require.Equal(t, "Original", chains[0].Name())
	require.Equal(t, int32(1), f.inner.loads.Load())
}

func TestCachedChainRepository_DoesNotCacheErrors(t *testing.T) {
	t.Parallel()
	f := newCacheFixture(t)
	f.create(t, "Default")

	f.inner.fail.Store(true)
	_, err := f.cache.FindActiveByWorkspace(f.ctx, f.workspaceID)
	require.Error(t, err)

	f.inner.fail.Store(false)
	chains, err := f.cache.FindActiveByWorkspace(f.ctx, f.workspaceID)
	require.NoError(t, err)
	require.Len(t, chains, 1)
	require.Equal(t, int32(2), f.inner.loads.Load())
}

func TestCachedChainRepository_ConcurrentLoadsShareOneQuery(t *testing.T) {
	t.Parallel()
	f := newCacheFixture(t)
	f.create(t, "Default")

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chains, err := f.cache.FindActiveByWorkspace(f.ctx, f.workspaceID)
			assert.NoError(t, err)
			assert.Len(t, chains, 1)
		}()
	}
	wg.Wait()

	// Late arrivals may miss the shared load but must then hit the cache.
	require.Equal(t, int32(1), f.inner.loads.Load())
}
