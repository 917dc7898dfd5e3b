// Package events describes the workflow transitions that downstream
// collaborators, such as notification dispatch, subscribe to.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/yelinaung/expense-approval/internal/logger"
	"gitlab.com/yelinaung/expense-approval/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Type names a workflow transition.
type Type string

// Event types.
const (
	WorkflowStarted      Type = "workflow.started"
	WorkflowAutoApproved Type = "workflow.auto_approved"
	StepApproved         Type = "step.approved"
	StepRejected         Type = "step.rejected"
	StepDelegated        Type = "step.delegated"
	WorkflowCompleted    Type = "workflow.completed"
	WorkflowCancelled    Type = "workflow.cancelled"
)

// Event is a single transition of an expense workflow.
type Event struct {
	Type        Type
	WorkflowID  string
	ExpenseID   string
	WorkspaceID string
	ActorID     string
	StepNumber  int
	Status      models.WorkflowStatus
	DelegatedTo string
	// Comments is free text from the actor. Publishers that log must not
	// write it verbatim.
	Comments   string
	OccurredAt time.Time
}

// New builds an event from the workflow's current state.
func New(typ Type, wf *models.ExpenseWorkflow, actorID string, stepNumber int, at time.Time) Event {
	return Event{
		Type:        typ,
		WorkflowID:  wf.ID(),
		ExpenseID:   wf.ExpenseID(),
		WorkspaceID: wf.WorkspaceID(),
		ActorID:     actorID,
		StepNumber:  stepNumber,
		Status:      wf.Status(),
		OccurredAt:  at,
	}
}

// Publisher receives workflow events after the transition is persisted.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// LogPublisher writes events to a zerolog logger with identifiers hashed.
type LogPublisher struct {
	log zerolog.Logger
}

// NewLogPublisher creates a LogPublisher writing to log.
func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

// Publish logs the event at info level.
func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	entry := p.log.Info().
		Str("event", string(event.Type)).
		Str("workflow_id", event.WorkflowID).
		Str("expense_hash", logger.HashID(event.ExpenseID)).
		Str("workspace_hash", logger.HashID(event.WorkspaceID)).
		Str("actor_hash", logger.HashID(event.ActorID)).
		Str("status", string(event.Status)).
		Time("occurred_at", event.OccurredAt)
	if event.StepNumber > 0 {
		entry = entry.Int("step_number", event.StepNumber)
	}
	if event.DelegatedTo != "" {
		entry = entry.Str("delegate_hash", logger.HashID(event.DelegatedTo))
	}
	if event.Comments != "" {
		entry = entry.Str("comments", logger.SanitizeText(event.Comments))
	}
	entry.Msg("Workflow event")
	return nil
}

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

// Publish delivers event to each publisher in order.
func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MetricPublisher counts events on an OpenTelemetry meter.
type MetricPublisher struct {
	events metric.Int64Counter
}

// NewMetricPublisher registers the approval.events counter on meter.
func NewMetricPublisher(meter metric.Meter) (*MetricPublisher, error) {
	counter, err := meter.Int64Counter("approval.events",
		metric.WithDescription("Workflow events published, by type and resulting status"),
	)
	if err != nil {
		return nil, err
	}
	return &MetricPublisher{events: counter}, nil
}

// Publish adds one to the counter for the event's type and status.
func (p *MetricPublisher) Publish(ctx context.Context, event Event) error {
	p.events.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", string(event.Type)),
		attribute.String("status", string(event.Status)),
	))
	return nil
}
