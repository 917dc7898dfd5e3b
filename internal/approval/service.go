package approval

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/expense-approval/internal/events"
	"gitlab.com/yelinaung/expense-approval/internal/logger"
	"gitlab.com/yelinaung/expense-approval/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "gitlab.com/yelinaung/expense-approval/internal/approval"

// InitiateRequest carries the expense attributes needed to start a workflow.
type InitiateRequest struct {
	ExpenseID   string
	WorkspaceID string
	RequesterID string
	Amount      decimal.Decimal
	CategoryID  *string
	HasReceipt  bool
}

// StepAction identifies who acts on which expense's workflow.
type StepAction struct {
	ExpenseID string
	ActorID   string
	// StepNumber pins the action to the step the actor saw. Zero means
	// whichever step is current.
	StepNumber int
	Comments   string
}

// WorkflowService enforces the guards around every workflow transition and
// persists each transition as one unit of work.
type WorkflowService struct {
	workflows   WorkflowRepository
	resolver    *ChainResolver
	threshold   decimal.Decimal
	publisher   events.Publisher
	authorizer  WorkspaceAuthorizer
	now         func() time.Time
	tracer      trace.Tracer
	meter       metric.Meter
	transitions metric.Int64Counter
}

// NewWorkflowService creates a WorkflowService.
func NewWorkflowService(workflows WorkflowRepository, chains ChainRepository, opts ...Option) *WorkflowService {
	s := &WorkflowService{
		workflows: workflows,
		resolver:  NewChainResolver(chains),
		threshold: decimal.Zero,
		publisher: events.NewLogPublisher(logger.Log),
		now:       func() time.Time { return time.Now().UTC() },
		tracer:    otel.Tracer(instrumentationName),
		meter:     otel.Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}

	counter, err := s.meter.Int64Counter("approval.transitions",
		metric.WithDescription("Workflow transitions attempted, by action and outcome"),
	)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to create transition counter")
		counter = noop.Int64Counter{}
	}
	s.transitions = counter
	return s
}

// InitiateWorkflow resolves the chain for an expense and starts its
// workflow. Expenses at or below the auto-approval threshold complete
// immediately with every step auto-approved.
func (s *WorkflowService) InitiateWorkflow(ctx context.Context, req InitiateRequest) (result *models.ExpenseWorkflow, err error) {
	ctx, done := s.begin(ctx, "initiate", req.ExpenseID, req.RequesterID)
	defer func() { done(result, err) }()

	if err := models.CanonicalizeIDs(
		models.IDField{Name: "expense_id", Value: &req.ExpenseID},
		models.IDField{Name: "workspace_id", Value: &req.WorkspaceID},
		models.IDField{Name: "requester_id", Value: &req.RequesterID},
	); err != nil {
		return nil, err
	}
	if req.CategoryID != nil {
		categoryID, err := models.CanonicalID("category_id", *req.CategoryID)
		if err != nil {
			return nil, err
		}
		req.CategoryID = &categoryID
	}

	existing, err := s.workflows.FindByExpenseID(ctx, req.ExpenseID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewWorkflowAlreadyExists(req.ExpenseID)
	}

	chain, err := s.resolver.Resolve(ctx, models.ChainCriteria{
		WorkspaceID: req.WorkspaceID,
		Amount:      req.Amount,
		CategoryID:  req.CategoryID,
		HasReceipt:  req.HasReceipt,
	})
	if err != nil {
		return nil, err
	}
	if err := guardSelfApproval(chain, req.ExpenseID, req.RequesterID); err != nil {
		return nil, err
	}

	now := s.now()
	wf, err := models.NewExpenseWorkflow(models.NewWorkflowParams{
		ExpenseID:   req.ExpenseID,
		WorkspaceID: req.WorkspaceID,
		RequesterID: req.RequesterID,
		Chain:       chain,
	}, now)
	if err != nil {
		return nil, err
	}
	if err := wf.Start(now); err != nil {
		return nil, err
	}
	published := []events.Event{events.New(events.WorkflowStarted, wf, req.RequesterID, 1, now)}

	if req.Amount.LessThanOrEqual(s.threshold) {
		if err := wf.AutoApprove(now); err != nil {
			return nil, err
		}
		published = append(published,
			events.New(events.WorkflowAutoApproved, wf, "", wf.TotalSteps(), now),
			events.New(events.WorkflowCompleted, wf, "", wf.TotalSteps(), now),
		)
	}

	if err := s.workflows.Save(ctx, wf); err != nil {
		return nil, err
	}
	s.publish(ctx, published...)
	return wf, nil
}

// ApproveStep approves the current step for the actor and advances the
// workflow, completing it after the last step.
func (s *WorkflowService) ApproveStep(ctx context.Context, action StepAction) (result *models.ExpenseWorkflow, err error) {
	ctx, done := s.begin(ctx, "approve", action.ExpenseID, action.ActorID)
	defer func() { done(result, err) }()

	if err := canonicalAction(&action); err != nil {
		return nil, err
	}

	var published []events.Event
	wf, err := s.workflows.Update(ctx, action.ExpenseID, func(wf *models.ExpenseWorkflow) error {
		step, err := guardStepAction(wf, action)
		if err != nil {
			return err
		}
		now := s.now()
		if err := wf.ApproveCurrentStep(action.Comments, now); err != nil {
			return err
		}
		approved := events.New(events.StepApproved, wf, action.ActorID, step.StepNumber(), now)
		approved.Comments = action.Comments
		published = append(published, approved)
		if wf.IsCompleted() {
			published = append(published, events.New(events.WorkflowCompleted, wf, action.ActorID, step.StepNumber(), now))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, published...)
	return wf, nil
}

// RejectStep rejects the current step and terminates the workflow. A
// rejection must carry comments.
func (s *WorkflowService) RejectStep(ctx context.Context, action StepAction) (result *models.ExpenseWorkflow, err error) {
	ctx, done := s.begin(ctx, "reject", action.ExpenseID, action.ActorID)
	defer func() { done(result, err) }()

	if err := canonicalAction(&action); err != nil {
		return nil, err
	}

	var published []events.Event
	wf, err := s.workflows.Update(ctx, action.ExpenseID, func(wf *models.ExpenseWorkflow) error {
		step, err := guardStepAction(wf, action)
		if err != nil {
			return err
		}
		now := s.now()
		if err := wf.RejectCurrentStep(action.Comments, now); err != nil {
			return err
		}
		rejected := events.New(events.StepRejected, wf, action.ActorID, step.StepNumber(), now)
		rejected.Comments = action.Comments
		published = append(published,
			rejected,
			events.New(events.WorkflowCompleted, wf, action.ActorID, step.StepNumber(), now),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, published...)
	return wf, nil
}

// DelegateStep hands the current step to toUserID. The step stays current
// and only the delegate can act on it afterwards.
func (s *WorkflowService) DelegateStep(ctx context.Context, action StepAction, toUserID string) (result *models.ExpenseWorkflow, err error) {
	ctx, done := s.begin(ctx, "delegate", action.ExpenseID, action.ActorID)
	defer func() { done(result, err) }()

	if err := canonicalAction(&action); err != nil {
		return nil, err
	}
	toUserID, err = models.CanonicalID("delegate_to", toUserID)
	if err != nil {
		return nil, err
	}

	var published []events.Event
	wf, err := s.workflows.Update(ctx, action.ExpenseID, func(wf *models.ExpenseWorkflow) error {
		step, err := guardStepAction(wf, action)
		if err != nil {
			return err
		}
		if err := guardDelegationTarget(wf, toUserID); err != nil {
			return err
		}
		now := s.now()
		if err := wf.DelegateCurrentStep(toUserID, now); err != nil {
			return err
		}
		event := events.New(events.StepDelegated, wf, action.ActorID, step.StepNumber(), now)
		event.DelegatedTo = toUserID
		event.Comments = action.Comments
		published = append(published, event)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, published...)
	return wf, nil
}

// CancelWorkflow cancels a workflow that has not completed. Only the
// requester, or a workspace admin when an authorizer is configured, may cancel.
func (s *WorkflowService) CancelWorkflow(ctx context.Context, expenseID, actorID string) (result *models.ExpenseWorkflow, err error) {
	ctx, done := s.begin(ctx, "cancel", expenseID, actorID)
	defer func() { done(result, err) }()

	if err := models.CanonicalizeIDs(
		models.IDField{Name: "expense_id", Value: &expenseID},
		models.IDField{Name: "actor_id", Value: &actorID},
	); err != nil {
		return nil, err
	}

	var published []events.Event
	wf, err := s.workflows.Update(ctx, expenseID, func(wf *models.ExpenseWorkflow) error {
		if wf == nil {
			return models.NewWorkflowNotFound(expenseID)
		}
		if err := s.authorizeCancel(ctx, wf, actorID); err != nil {
			return err
		}
		now := s.now()
		if err := wf.Cancel(now); err != nil {
			return err
		}
		published = append(published, events.New(events.WorkflowCancelled, wf, actorID, 0, now))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, published...)
	return wf, nil
}

// GetWorkflow returns the workflow for an expense.
func (s *WorkflowService) GetWorkflow(ctx context.Context, expenseID string) (*models.ExpenseWorkflow, error) {
	expenseID, err := models.CanonicalID("expense_id", expenseID)
	if err != nil {
		return nil, err
	}
	wf, err := s.workflows.FindByExpenseID(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, models.NewWorkflowNotFound(expenseID)
	}
	return wf, nil
}

// ListWorkspaceWorkflows returns every workflow in a workspace.
func (s *WorkflowService) ListWorkspaceWorkflows(ctx context.Context, workspaceID string) ([]*models.ExpenseWorkflow, error) {
	workspaceID, err := models.CanonicalID("workspace_id", workspaceID)
	if err != nil {
		return nil, err
	}
	return s.workflows.FindByWorkspace(ctx, workspaceID)
}

// ListPendingForApprover returns workflows waiting on approverID, including
// steps delegated to them.
func (s *WorkflowService) ListPendingForApprover(ctx context.Context, approverID, workspaceID string) ([]*models.ExpenseWorkflow, error) {
	if err := models.CanonicalizeIDs(
		models.IDField{Name: "approver_id", Value: &approverID},
		models.IDField{Name: "workspace_id", Value: &workspaceID},
	); err != nil {
		return nil, err
	}
	return s.workflows.FindPendingByApprover(ctx, approverID, workspaceID)
}

// ListRequestedBy returns workflows for expenses userID submitted.
func (s *WorkflowService) ListRequestedBy(ctx context.Context, userID, workspaceID string) ([]*models.ExpenseWorkflow, error) {
	if err := models.CanonicalizeIDs(
		models.IDField{Name: "user_id", Value: &userID},
		models.IDField{Name: "workspace_id", Value: &workspaceID},
	); err != nil {
		return nil, err
	}
	return s.workflows.FindByUser(ctx, userID, workspaceID)
}

func (s *WorkflowService) authorizeCancel(ctx context.Context, wf *models.ExpenseWorkflow, actorID string) error {
	if actorID == wf.RequesterID() {
		return nil
	}
	if s.authorizer != nil {
		admin, err := s.authorizer.IsWorkspaceAdmin(ctx, wf.WorkspaceID(), actorID)
		if err != nil {
			return err
		}
		if admin {
			return nil
		}
	}
	return models.NewUnauthorizedApprover(wf.ID(), actorID)
}

func (s *WorkflowService) publish(ctx context.Context, published ...events.Event) {
	for _, event := range published {
		if err := s.publisher.Publish(ctx, event); err != nil {
			logger.Log.Warn().
				Err(err).
				Str("event", string(event.Type)).
				Str("workflow_id", event.WorkflowID).
				Msg("Failed to publish workflow event")
		}
	}
}

// begin opens a span for action and returns the func that closes it,
// counts the outcome and logs it.
func (s *WorkflowService) begin(ctx context.Context, action, expenseID, actorID string) (context.Context, func(*models.ExpenseWorkflow, error)) {
	ctx, span := s.tracer.Start(ctx, "approval."+action,
		trace.WithAttributes(attribute.String("approval.action", action)),
	)

	return ctx, func(wf *models.ExpenseWorkflow, err error) {
		defer span.End()

		outcome := "ok"
		if err != nil {
			outcome = errorCode(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)

			event := logger.Log.Warn()
			if outcome == "internal" {
				event = logger.Log.Error().Err(err)
			}
			event.
				Str("action", action).
				Str("error_code", outcome).
				Str("expense_hash", logger.HashID(expenseID)).
				Str("actor_hash", logger.HashID(actorID)).
				Msg("Approval action failed")
		} else if wf != nil {
			span.SetAttributes(
				attribute.String("workflow.id", wf.ID()),
				attribute.String("workflow.status", string(wf.Status())),
				attribute.Int("workflow.current_step", wf.CurrentStepNumber()),
			)
			logger.Log.Info().
				Str("action", action).
				Str("workflow_id", wf.ID()).
				Str("expense_hash", logger.HashID(expenseID)).
				Str("actor_hash", logger.HashID(actorID)).
				Str("status", string(wf.Status())).
				Int("current_step", wf.CurrentStepNumber()).
				Msg("Approval action applied")
		}

		s.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("action", action),
			attribute.String("outcome", outcome),
		))
	}
}

// canonicalAction validates the action and rewrites its identifiers to
// canonical form.
func canonicalAction(action *StepAction) error {
	if err := models.CanonicalizeIDs(
		models.IDField{Name: "expense_id", Value: &action.ExpenseID},
		models.IDField{Name: "actor_id", Value: &action.ActorID},
	); err != nil {
		return err
	}
	if action.StepNumber < 0 {
		return models.NewWorkflowStepNotFound("", action.StepNumber)
	}
	return nil
}

func errorCode(err error) string {
	var domainErr *models.Error
	if errors.As(err, &domainErr) && domainErr.Code != "" {
		return domainErr.Code
	}
	return "internal"
}
