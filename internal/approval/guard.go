package approval

import (
	"fmt"

	"gitlab.com/yelinaung/expense-approval/internal/models"
)

// guardStepAction is the single authorization check shared by approve,
// reject and delegate. It returns the step the actor may act on.
//
// An actor repeating a decision they already made gets
// ApprovalAlreadyProcessed whether or not the action is pinned, even once
// that decision completed the workflow.
func guardStepAction(wf *models.ExpenseWorkflow, action StepAction) (models.ApprovalStep, error) {
	if wf == nil {
		return models.ApprovalStep{}, models.NewWorkflowNotFound(action.ExpenseID)
	}
	if wf.IsCompleted() {
		if decided, ok := repeatedDecision(wf, action); ok {
			return models.ApprovalStep{}, models.NewApprovalAlreadyProcessed(decided.ID(), decided.Status())
		}
		return models.ApprovalStep{}, models.NewWorkflowAlreadyCompleted(wf.ID(), wf.Status())
	}
	if action.StepNumber > 0 {
		if err := guardPinnedStep(wf, action.StepNumber); err != nil {
			return models.ApprovalStep{}, err
		}
	}
	step, err := wf.CurrentStep()
	if err != nil {
		return models.ApprovalStep{}, err
	}
	if action.ActorID != step.CurrentApproverID() {
		if decided, ok := repeatedDecision(wf, action); ok {
			return models.ApprovalStep{}, models.NewApprovalAlreadyProcessed(decided.ID(), decided.Status())
		}
		return models.ApprovalStep{}, models.NewUnauthorizedApprover(wf.ID(), action.ActorID)
	}
	// Unreachable while initiation and delegation guards hold, but a
	// requester must never act on their own expense.
	if action.ActorID == wf.RequesterID() {
		return models.ApprovalStep{}, models.NewSelfApprovalNotAllowed(wf.ExpenseID(), action.ActorID)
	}
	return step, nil
}

// guardPinnedStep checks the step the caller saw is still the one waiting.
// A step someone already decided reports ApprovalAlreadyProcessed.
func guardPinnedStep(wf *models.ExpenseWorkflow, stepNumber int) error {
	step, err := wf.Step(stepNumber)
	if err != nil {
		return err
	}
	if step.IsProcessed() {
		return models.NewApprovalAlreadyProcessed(step.ID(), step.Status())
	}
	if stepNumber != wf.CurrentStepNumber() {
		return models.NewInvalidApprovalTransition(string(wf.Status()), fmt.Sprintf("act on step %d", stepNumber))
	}
	return nil
}

// repeatedDecision finds the step the action would repeat: the pinned step,
// or the most recently decided one when unpinned. It matches only when the
// actor approved or rejected that step themselves.
func repeatedDecision(wf *models.ExpenseWorkflow, action StepAction) (models.ApprovalStep, bool) {
	var step models.ApprovalStep
	if action.StepNumber > 0 {
		pinned, err := wf.Step(action.StepNumber)
		if err != nil {
			return models.ApprovalStep{}, false
		}
		step = pinned
	} else {
		latest, ok := lastDecidedStep(wf)
		if !ok {
			return models.ApprovalStep{}, false
		}
		step = latest
	}

	switch step.Status() {
	case models.StepStatusApproved, models.StepStatusRejected:
		return step, step.CurrentApproverID() == action.ActorID
	}
	return models.ApprovalStep{}, false
}

// lastDecidedStep returns the highest-numbered processed step at or before
// the current one.
func lastDecidedStep(wf *models.ExpenseWorkflow) (models.ApprovalStep, bool) {
	for n := wf.CurrentStepNumber(); n >= 1; n-- {
		step, err := wf.Step(n)
		if err != nil {
			return models.ApprovalStep{}, false
		}
		if step.IsProcessed() {
			return step, true
		}
	}
	return models.ApprovalStep{}, false
}

// guardDelegationTarget keeps a step from being handed to the requester.
func guardDelegationTarget(wf *models.ExpenseWorkflow, toUserID string) error {
	if toUserID == wf.RequesterID() {
		return models.NewSelfApprovalNotAllowed(wf.ExpenseID(), toUserID)
	}
	return nil
}

// guardSelfApproval rejects a chain that would route an expense to its own requester.
func guardSelfApproval(chain *models.ApprovalChain, expenseID, requesterID string) error {
	if chain.IncludesApprover(requesterID) {
		return models.NewSelfApprovalNotAllowed(expenseID, requesterID)
	}
	return nil
}
