package approval

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/expense-approval/internal/events"
	"gitlab.com/yelinaung/expense-approval/internal/models"
	"gitlab.com/yelinaung/expense-approval/internal/repository/memory"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// testClock ticks one second per reading.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: testNow}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// eventRecorder keeps published events in memory.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) Publish(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func (r *eventRecorder) Types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type adminSet map[string]bool

func (a adminSet) IsWorkspaceAdmin(_ context.Context, _, userID string) (bool, error) {
	return a[userID], nil
}

type fixture struct {
	ctx         context.Context
	chains      *memory.ApprovalChainStore
	workflows   *memory.ExpenseWorkflowStore
	recorder    *eventRecorder
	service     *WorkflowService
	chainSvc    *ChainService
	workspaceID string
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	clock := newTestClock()
	f := &fixture{
		ctx:         context.Background(),
		chains:      memory.NewApprovalChainStore(),
		workflows:   memory.NewExpenseWorkflowStore(),
		recorder:    &eventRecorder{},
		workspaceID: models.NewID(),
	}
	opts = append([]Option{WithPublisher(f.recorder), WithClock(clock.Now)}, opts...)
	f.service = NewWorkflowService(f.workflows, f.chains, opts...)
	f.chainSvc = NewChainService(f.chains, clock.Now)
	return f
}

func (f *fixture) createChain(t *testing.T, params models.ApprovalChainParams) *models.ApprovalChain {
	t.Helper()

	if params.WorkspaceID == "" {
		params.WorkspaceID = f.workspaceID
	}
	if params.Name == "" {
		params.Name = "Default"
	}
	chain, err := f.chainSvc.CreateChain(f.ctx, params)
	require.NoError(t, err)
	return chain
}

func (f *fixture) initiate(t *testing.T, amount string, requesterID string) *models.ExpenseWorkflow {
	t.Helper()

	wf, err := f.service.InitiateWorkflow(f.ctx, f.request(amount, requesterID))
	require.NoError(t, err)
	return wf
}

func (f *fixture) request(amount, requesterID string) InitiateRequest {
	return InitiateRequest{
		ExpenseID:   models.NewID(),
		WorkspaceID: f.workspaceID,
		RequesterID: requesterID,
		Amount:      decimal.RequireFromString(amount),
	}
}

func (f *fixture) stored(t *testing.T, expenseID string) *models.ExpenseWorkflow {
	t.Helper()

	wf, err := f.workflows.FindByExpenseID(f.ctx, expenseID)
	require.NoError(t, err)
	return wf
}

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func stepStatuses(wf *models.ExpenseWorkflow) []models.StepStatus {
	steps := wf.Steps()
	out := make([]models.StepStatus, len(steps))
	for i, step := range steps {
		out[i] = step.Status()
	}
	return out
}
