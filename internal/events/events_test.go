package events

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/expense-approval/internal/models"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, Event) error { return f.err }

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func newWorkflow(t *testing.T) *models.ExpenseWorkflow {
	t.Helper()

	chain, err := models.NewApprovalChain(models.ApprovalChainParams{
		WorkspaceID:      models.NewID(),
		Name:             "Default",
		ApproverSequence: []string{models.NewID()},
	}, testNow)
	require.NoError(t, err)
	wf, err := models.NewExpenseWorkflow(models.NewWorkflowParams{
		ExpenseID:   models.NewID(),
		WorkspaceID: chain.WorkspaceID(),
		RequesterID: models.NewID(),
		Chain:       chain,
	}, testNow)
	require.NoError(t, err)
	return wf
}

func TestNew(t *testing.T) {
	t.Parallel()
	wf := newWorkflow(t)
	actor := models.NewID()

	e := New(WorkflowStarted, wf, actor, 1, testNow)

	require.Equal(t, WorkflowStarted, e.Type)
	require.Equal(t, wf.ID(), e.WorkflowID)
	require.Equal(t, wf.ExpenseID(), e.ExpenseID)
	require.Equal(t, wf.WorkspaceID(), e.WorkspaceID)
	require.Equal(t, actor, e.ActorID)
	require.Equal(t, 1, e.StepNumber)
	require.Equal(t, models.WorkflowStatusPending, e.Status)
	require.Equal(t, testNow, e.OccurredAt)
}

func TestLogPublisher(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	p := NewLogPublisher(zerolog.New(&buf))

	wf := newWorkflow(t)
	delegate := models.NewID()
	e := New(StepDelegated, wf, models.NewID(), 1, testNow)
	e.DelegatedTo = delegate
	e.Comments = "out of office until Monday"

	require.NoError(t, p.Publish(context.Background(), e))

	out := buf.String()
	require.Contains(t, out, `"event":"step.delegated"`)
	require.Contains(t, out, `"step_number":1`)
	require.Contains(t, out, `"delegate_hash"`)
	require.NotContains(t, out, wf.ExpenseID())
	require.NotContains(t, out, delegate)
	require.Contains(t, out, `"comments":"out...<26 chars>"`)
	require.NotContains(t, out, "office")
}

func TestMulti(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	wf := newWorkflow(t)
	e := New(WorkflowCancelled, wf, "", 0, testNow)

	t.Run("delivers to every publisher", func(t *testing.T) {
		a, b := &recorder{}, &recorder{}
		require.NoError(t, Multi{a, b}.Publish(ctx, e))
		require.Equal(t, []Type{WorkflowCancelled}, a.types())
		require.Equal(t, []Type{WorkflowCancelled}, b.types())
	})

	t.Run("keeps going after a failure", func(t *testing.T) {
		boom := errors.New("boom")
		rec := &recorder{}
		err := Multi{failingPublisher{err: boom}, rec}.Publish(ctx, e)
		require.ErrorIs(t, err, boom)
		require.Len(t, rec.types(), 1)
	})
}

func TestMetricPublisher(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	p, err := NewMetricPublisher(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))
	require.NoError(t, err)

	wf := newWorkflow(t)
	require.NoError(t, p.Publish(ctx, New(WorkflowStarted, wf, "", 1, testNow)))
	require.NoError(t, p.Publish(ctx, New(StepApproved, wf, "", 1, testNow)))
	require.NoError(t, p.Publish(ctx, New(StepApproved, wf, "", 1, testNow)))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)
	require.Equal(t, "approval.events", rm.ScopeMetrics[0].Metrics[0].Name)

	sum, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	counts := map[string]int64{}
	for _, dp := range sum.DataPoints {
		typ, _ := dp.Attributes.Value(attribute.Key("event"))
		counts[typ.AsString()] = dp.Value
	}
	require.Equal(t, map[string]int64{"workflow.started": 1, "step.approved": 2}, counts)
}
