package models

import (
	"fmt"
	"time"
)

// WorkflowStatus is the overall state of an expense's approval.
type WorkflowStatus string

// Workflow statuses.
const (
	WorkflowStatusPending    WorkflowStatus = "pending"
	WorkflowStatusInProgress WorkflowStatus = "in_progress"
	WorkflowStatusApproved   WorkflowStatus = "approved"
	WorkflowStatusRejected   WorkflowStatus = "rejected"
	WorkflowStatusCancelled  WorkflowStatus = "cancelled"
)

// IsValid reports whether s is a known workflow status.
func (s WorkflowStatus) IsValid() bool {
	switch s {
	case WorkflowStatusPending, WorkflowStatusInProgress, WorkflowStatusApproved,
		WorkflowStatusRejected, WorkflowStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func (s WorkflowStatus) IsTerminal() bool {
	return s == WorkflowStatusApproved || s == WorkflowStatusRejected || s == WorkflowStatusCancelled
}

// ExpenseWorkflow is the per-expense runtime instance of an approval chain.
// It owns its steps; all step transitions go through it so the step pointer
// and workflow status always move together with the step.
type ExpenseWorkflow struct {
	id                string
	expenseID         string
	workspaceID       string
	requesterID       string
	chainID           string
	status            WorkflowStatus
	currentStepNumber int
	steps             []*ApprovalStep
	createdAt         time.Time
	updatedAt         time.Time
	completedAt       *time.Time
}

// NewWorkflowParams holds the input for building a workflow from a chain.
type NewWorkflowParams struct {
	ExpenseID   string
	WorkspaceID string
	RequesterID string
	Chain       *ApprovalChain
}

// ExpenseWorkflowRecord is the flat persisted form of a workflow and its steps.
type ExpenseWorkflowRecord struct {
	ID                string
	ExpenseID         string
	WorkspaceID       string
	RequesterID       string
	ChainID           string
	Status            WorkflowStatus
	CurrentStepNumber int
	Steps             []ApprovalStepRecord
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CompletedAt       *time.Time
}

// NewExpenseWorkflow builds a pending workflow with one pending step per
// approver in the chain's sequence, numbered from 1.
func NewExpenseWorkflow(params NewWorkflowParams, now time.Time) (*ExpenseWorkflow, error) {
	if params.Chain == nil {
		return nil, NewInvalidApprovalChain("chain is required")
	}
	if err := CanonicalizeIDs(
		IDField{"expense_id", &params.ExpenseID},
		IDField{"workspace_id", &params.WorkspaceID},
		IDField{"requester_id", &params.RequesterID},
	); err != nil {
		return nil, err
	}
	sequence := params.Chain.ApproverSequence()
	if len(sequence) == 0 {
		return nil, NewInvalidApprovalChain("approver sequence must contain at least one approver")
	}

	wf := &ExpenseWorkflow{
		id:                NewID(),
		expenseID:         params.ExpenseID,
		workspaceID:       params.WorkspaceID,
		requesterID:       params.RequesterID,
		chainID:           params.Chain.ID(),
		status:            WorkflowStatusPending,
		currentStepNumber: 1,
		createdAt:         now,
		updatedAt:         now,
	}
	wf.steps = make([]*ApprovalStep, 0, len(sequence))
	for i, approverID := range sequence {
		wf.steps = append(wf.steps, newApprovalStep(wf.id, i+1, approverID, now))
	}
	return wf, nil
}

// ReconstituteExpenseWorkflow rebuilds a workflow from persisted state. It
// rejects records whose steps are not numbered 1..n or whose pointer does
// not land on a step.
func ReconstituteExpenseWorkflow(rec ExpenseWorkflowRecord) (*ExpenseWorkflow, error) {
	if rec.ID == "" || rec.ExpenseID == "" {
		return nil, NewCorruptWorkflowState(rec.ID, "missing identity")
	}
	if !rec.Status.IsValid() {
		return nil, NewCorruptWorkflowState(rec.ID, "unknown status "+string(rec.Status))
	}
	if len(rec.Steps) == 0 {
		return nil, NewCorruptWorkflowState(rec.ID, "workflow has no steps")
	}
	if rec.CurrentStepNumber < 1 || rec.CurrentStepNumber > len(rec.Steps) {
		return nil, NewCorruptWorkflowState(rec.ID,
			fmt.Sprintf("current step %d outside 1..%d", rec.CurrentStepNumber, len(rec.Steps)))
	}

	steps := make([]*ApprovalStep, len(rec.Steps))
	for _, stepRec := range rec.Steps {
		if stepRec.StepNumber < 1 || stepRec.StepNumber > len(rec.Steps) {
			return nil, NewCorruptWorkflowState(rec.ID, fmt.Sprintf("step number %d out of range", stepRec.StepNumber))
		}
		if steps[stepRec.StepNumber-1] != nil {
			return nil, NewCorruptWorkflowState(rec.ID, fmt.Sprintf("duplicate step number %d", stepRec.StepNumber))
		}
		stepRec.WorkflowID = rec.ID
		step, err := reconstituteApprovalStep(stepRec)
		if err != nil {
			return nil, err
		}
		steps[stepRec.StepNumber-1] = step
	}

	return &ExpenseWorkflow{
		id:                rec.ID,
		expenseID:         rec.ExpenseID,
		workspaceID:       rec.WorkspaceID,
		requesterID:       rec.RequesterID,
		chainID:           rec.ChainID,
		status:            rec.Status,
		currentStepNumber: rec.CurrentStepNumber,
		steps:             steps,
		createdAt:         rec.CreatedAt,
		updatedAt:         rec.UpdatedAt,
		completedAt:       copyTime(rec.CompletedAt),
	}, nil
}

// Record returns the flat persisted form of the workflow and its steps.
func (w *ExpenseWorkflow) Record() ExpenseWorkflowRecord {
	steps := make([]ApprovalStepRecord, len(w.steps))
	for i, step := range w.steps {
		steps[i] = step.Record()
	}
	return ExpenseWorkflowRecord{
		ID:                w.id,
		ExpenseID:         w.expenseID,
		WorkspaceID:       w.workspaceID,
		RequesterID:       w.requesterID,
		ChainID:           w.chainID,
		Status:            w.status,
		CurrentStepNumber: w.currentStepNumber,
		Steps:             steps,
		CreatedAt:         w.createdAt,
		UpdatedAt:         w.updatedAt,
		CompletedAt:       copyTime(w.completedAt),
	}
}

func (w *ExpenseWorkflow) ID() string { return w.id }
func (w *ExpenseWorkflow) ExpenseID() string { return w.expenseID }
func (w *ExpenseWorkflow) WorkspaceID() string { return w.workspaceID }
func (w *ExpenseWorkflow) RequesterID() string { return w.requesterID }
func (w *ExpenseWorkflow) ChainID() string { return w.chainID }
func (w *ExpenseWorkflow) Status() WorkflowStatus { return w.status }
func (w *ExpenseWorkflow) CurrentStepNumber() int { return w.currentStepNumber }
func (w *ExpenseWorkflow) CreatedAt() time.Time { return w.createdAt }
func (w *ExpenseWorkflow) UpdatedAt() time.Time { return w.updatedAt }
func (w *ExpenseWorkflow) CompletedAt() *time.Time { return copyTime(w.completedAt) }

// Steps returns copies of the steps in step order.
func (w *ExpenseWorkflow) Steps() []ApprovalStep {
	out := make([]ApprovalStep, len(w.steps))
	for i, step := range w.steps {
		out[i] = *step
		out[i].processedAt = copyTime(step.processedAt)
	}
	return out
}

// TotalSteps returns the number of steps.
func (w *ExpenseWorkflow) TotalSteps() int {
	return len(w.steps)
}

// IsCompleted reports whether the workflow reached a terminal status.
func (w *ExpenseWorkflow) IsCompleted() bool {
	return w.status.IsTerminal()
}

// Step returns a copy of the step with the given number.
func (w *ExpenseWorkflow) Step(stepNumber int) (ApprovalStep, error) {
	step := w.stepAt(stepNumber)
	if step == nil {
		return ApprovalStep{}, NewWorkflowStepNotFound(w.id, stepNumber)
	}
	out := *step
	out.processedAt = copyTime(step.processedAt)
	return out, nil
}

// CurrentStep returns a copy of the step the pointer designates.
func (w *ExpenseWorkflow) CurrentStep() (ApprovalStep, error) {
	step := w.stepAt(w.currentStepNumber)
	if step == nil {
		return ApprovalStep{}, NewCurrentStepNotFound(w.id, w.currentStepNumber)
	}
	out := *step
	out.processedAt = copyTime(step.processedAt)
	return out, nil
}

// Start moves a pending workflow into progress.
func (w *ExpenseWorkflow) Start(now time.Time) error {
	if w.status != WorkflowStatusPending {
		return NewInvalidApprovalTransition(string(w.status), "start")
	}
	w.status = WorkflowStatusInProgress
	w.updatedAt = now
	return nil
}

// AutoApprove marks every step auto-approved and completes the workflow as
// approved with the pointer on the last step.
func (w *ExpenseWorkflow) AutoApprove(now time.Time) error {
	if w.IsCompleted() {
		return NewInvalidApprovalTransition(string(w.status), "auto_approve")
	}
	for _, step := range w.steps {
		if step.IsProcessed() {
			return NewApprovalAlreadyProcessed(step.id, step.status)
		}
	}
	for _, step := range w.steps {
		if err := step.autoApprove(now); err != nil {
			return err
		}
	}
	w.currentStepNumber = len(w.steps)
	w.complete(WorkflowStatusApproved, now)
	return nil
}

// ApproveCurrentStep approves the current step and advances the workflow.
// The caller is responsible for checking who is acting.
func (w *ExpenseWorkflow) ApproveCurrentStep(comments string, now time.Time) error {
	step, err := w.actionableStep()
	if err != nil {
		return err
	}
	if err := step.approve(comments, now); err != nil {
		return err
	}
	return w.processStepApproval(step.stepNumber, now)
}

// RejectCurrentStep rejects the current step and terminates the workflow,
// leaving any later steps untouched.
func (w *ExpenseWorkflow) RejectCurrentStep(comments string, now time.Time) error {
	step, err := w.actionableStep()
	if err != nil {
		return err
	}
	if err := step.reject(comments, now); err != nil {
		return err
	}
	w.complete(WorkflowStatusRejected, now)
	return nil
}

// DelegateCurrentStep hands the current step to another user. The pointer
// and workflow status do not move.
func (w *ExpenseWorkflow) DelegateCurrentStep(toUserID string, now time.Time) error {
	toUserID, err := CanonicalID("delegate_to", toUserID)
	if err != nil {
		return err
	}
	step, err := w.actionableStep()
	if err != nil {
		return err
	}
	if err := step.delegate(toUserID, now); err != nil {
		return err
	}
	w.updatedAt = now
	return nil
}

// Cancel ends a workflow that has not completed yet. Steps are left as they are.
func (w *ExpenseWorkflow) Cancel(now time.Time) error {
	if w.IsCompleted() {
		return NewInvalidApprovalTransition(string(w.status), "cancel")
	}
	w.complete(WorkflowStatusCancelled, now)
	return nil
}

func (w *ExpenseWorkflow) processStepApproval(stepNumber int, now time.Time) error {
	if stepNumber != w.currentStepNumber {
		return NewInvalidApprovalTransition(string(w.status), fmt.Sprintf("approve step %d", stepNumber))
	}
	if stepNumber == len(w.steps) {
		w.complete(WorkflowStatusApproved, now)
		return nil
	}
	w.currentStepNumber = stepNumber + 1
	w.status = WorkflowStatusInProgress
	w.updatedAt = now
	return nil
}

func (w *ExpenseWorkflow) actionableStep() (*ApprovalStep, error) {
	if w.IsCompleted() {
		return nil, NewWorkflowAlreadyCompleted(w.id, w.status)
	}
	if w.status != WorkflowStatusInProgress {
		return nil, NewInvalidApprovalTransition(string(w.status), "act on step")
	}
	step := w.stepAt(w.currentStepNumber)
	if step == nil {
		return nil, NewCurrentStepNotFound(w.id, w.currentStepNumber)
	}
	return step, nil
}

func (w *ExpenseWorkflow) complete(status WorkflowStatus, now time.Time) {
	completedAt := now
	w.status = status
	w.completedAt = &completedAt
	w.updatedAt = now
}

func (w *ExpenseWorkflow) stepAt(stepNumber int) *ApprovalStep {
	if stepNumber < 1 || stepNumber > len(w.steps) {
		return nil
	}
	step := w.steps[stepNumber-1]
	if step.stepNumber != stepNumber {
		return nil
	}
	return step
}
