package models

import (
	"fmt"
	"sort"
	"strings"
)

// ErrorKind groups domain errors so callers can map them to responses.
type ErrorKind string

// Error kinds.
const (
	KindNotFound      ErrorKind = "not_found"
	KindConflict      ErrorKind = "conflict"
	KindAuthorization ErrorKind = "authorization"
	KindValidation    ErrorKind = "validation"
)

// Error codes.
const (
	CodeApprovalChainNotFound     = "APPROVAL_CHAIN_NOT_FOUND"
	CodeWorkflowNotFound          = "WORKFLOW_NOT_FOUND"
	CodeWorkflowStepNotFound      = "WORKFLOW_STEP_NOT_FOUND"
	CodeCurrentStepNotFound       = "CURRENT_STEP_NOT_FOUND"
	CodeWorkflowAlreadyExists     = "WORKFLOW_ALREADY_EXISTS"
	CodeApprovalAlreadyProcessed  = "APPROVAL_ALREADY_PROCESSED"
	CodeWorkflowAlreadyCompleted  = "WORKFLOW_ALREADY_COMPLETED"
	CodeUnauthorizedApprover      = "UNAUTHORIZED_APPROVER"
	CodeSelfApprovalNotAllowed    = "SELF_APPROVAL_NOT_ALLOWED"
	CodeNoMatchingApprovalChain   = "NO_MATCHING_APPROVAL_CHAIN"
	CodeInvalidApprovalTransition = "INVALID_APPROVAL_TRANSITION"
	CodeInvalidDelegation         = "INVALID_DELEGATION"
	CodeRejectionReasonRequired   = "REJECTION_REASON_REQUIRED"
	CodeInvalidApprovalChain      = "INVALID_APPROVAL_CHAIN"
	CodeInvalidIdentifier         = "INVALID_IDENTIFIER"
	CodeInvalidAmount             = "INVALID_AMOUNT"
	CodeCorruptWorkflowState      = "CORRUPT_WORKFLOW_STATE"
)

// Error is a domain error raised by the approval core. It carries a kind,
// a stable code and the identifiers involved.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Context map[string]any
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if len(e.Context) == 0 {
		return msg
	}
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Context[k]))
	}
	return fmt.Sprintf("%s (%s)", msg, strings.Join(parts, ", "))
}

// Is matches another *Error by code, or by kind when the target has no code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code == "" {
		return t.Kind == e.Kind
	}
	return t.Code == e.Code
}

// Kind sentinels, usable with errors.Is.
var (
	ErrNotFound      = &Error{Kind: KindNotFound, Message: "not found"}
	ErrConflict      = &Error{Kind: KindConflict, Message: "conflict"}
	ErrAuthorization = &Error{Kind: KindAuthorization, Message: "not authorized"}
	ErrValidation    = &Error{Kind: KindValidation, Message: "validation failed"}
)

// Code sentinels, usable with errors.Is.
var (
	ErrApprovalChainNotFound     = &Error{Kind: KindNotFound, Code: CodeApprovalChainNotFound}
	ErrWorkflowNotFound          = &Error{Kind: KindNotFound, Code: CodeWorkflowNotFound}
	ErrWorkflowStepNotFound      = &Error{Kind: KindNotFound, Code: CodeWorkflowStepNotFound}
	ErrCurrentStepNotFound       = &Error{Kind: KindNotFound, Code: CodeCurrentStepNotFound}
	ErrWorkflowAlreadyExists     = &Error{Kind: KindConflict, Code: CodeWorkflowAlreadyExists}
	ErrApprovalAlreadyProcessed  = &Error{Kind: KindConflict, Code: CodeApprovalAlreadyProcessed}
	ErrWorkflowAlreadyCompleted  = &Error{Kind: KindConflict, Code: CodeWorkflowAlreadyCompleted}
	ErrUnauthorizedApprover      = &Error{Kind: KindAuthorization, Code: CodeUnauthorizedApprover}
	ErrSelfApprovalNotAllowed    = &Error{Kind: KindAuthorization, Code: CodeSelfApprovalNotAllowed}
	ErrNoMatchingApprovalChain   = &Error{Kind: KindValidation, Code: CodeNoMatchingApprovalChain}
	ErrInvalidApprovalTransition = &Error{Kind: KindValidation, Code: CodeInvalidApprovalTransition}
	ErrInvalidDelegation         = &Error{Kind: KindValidation, Code: CodeInvalidDelegation}
	ErrRejectionReasonRequired   = &Error{Kind: KindValidation, Code: CodeRejectionReasonRequired}
	ErrInvalidApprovalChain      = &Error{Kind: KindValidation, Code: CodeInvalidApprovalChain}
	ErrInvalidIdentifier         = &Error{Kind: KindValidation, Code: CodeInvalidIdentifier}
	ErrInvalidAmount             = &Error{Kind: KindValidation, Code: CodeInvalidAmount}
	ErrCorruptWorkflowState      = &Error{Kind: KindValidation, Code: CodeCorruptWorkflowState}
)

func newError(kind ErrorKind, code, msg string, kv ...any) *Error {
	ctx := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			ctx[key] = kv[i+1]
		}
	}
	return &Error{Kind: kind, Code: code, Message: msg, Context: ctx}
}

// NewApprovalChainNotFound reports a missing chain.
func NewApprovalChainNotFound(chainID string) *Error {
	return newError(KindNotFound, CodeApprovalChainNotFound, "approval chain not found", "chain_id", chainID)
}

// NewWorkflowNotFound reports that no workflow exists for an expense.
func NewWorkflowNotFound(expenseID string) *Error {
	return newError(KindNotFound, CodeWorkflowNotFound, "approval workflow not found", "expense_id", expenseID)
}

// NewWorkflowStepNotFound reports a step number outside the workflow.
func NewWorkflowStepNotFound(workflowID string, stepNumber int) *Error {
	return newError(KindNotFound, CodeWorkflowStepNotFound, "workflow step not found",
		"workflow_id", workflowID, "step_number", stepNumber)
}

// NewCurrentStepNotFound reports that the step pointer does not resolve.
func NewCurrentStepNotFound(workflowID string, stepNumber int) *Error {
	return newError(KindNotFound, CodeCurrentStepNotFound, "current workflow step not found",
		"workflow_id", workflowID, "current_step_number", stepNumber)
}

// NewWorkflowAlreadyExists reports a second initiation for the same expense.
func NewWorkflowAlreadyExists(expenseID string) *Error {
	return newError(KindConflict, CodeWorkflowAlreadyExists, "approval workflow already exists for expense",
		"expense_id", expenseID)
}

// NewApprovalAlreadyProcessed reports an action on a processed step.
func NewApprovalAlreadyProcessed(stepID string, status StepStatus) *Error {
	return newError(KindConflict, CodeApprovalAlreadyProcessed, "approval step already processed",
		"step_id", stepID, "status", status)
}

// NewWorkflowAlreadyCompleted reports an action on a terminal workflow.
func NewWorkflowAlreadyCompleted(workflowID string, status WorkflowStatus) *Error {
	return newError(KindConflict, CodeWorkflowAlreadyCompleted, "approval workflow already completed",
		"workflow_id", workflowID, "status", status)
}

// NewUnauthorizedApprover reports an actor who is not the current approver.
func NewUnauthorizedApprover(workflowID, actorID string) *Error {
	return newError(KindAuthorization, CodeUnauthorizedApprover, "user is not authorized to act on this approval step",
		"workflow_id", workflowID, "user_id", actorID)
}

// NewSelfApprovalNotAllowed reports a requester placed in their own approval path.
func NewSelfApprovalNotAllowed(expenseID, userID string) *Error {
	return newError(KindAuthorization, CodeSelfApprovalNotAllowed, "users cannot approve their own expenses",
		"expense_id", expenseID, "user_id", userID)
}

// NewNoMatchingApprovalChain reports that no active chain covers the expense.
func NewNoMatchingApprovalChain(workspaceID, amount string) *Error {
	return newError(KindValidation, CodeNoMatchingApprovalChain, "no approval chain matches expense",
		"workspace_id", workspaceID, "amount", amount)
}

// NewInvalidApprovalTransition reports an illegal state change.
func NewInvalidApprovalTransition(from, action string) *Error {
	return newError(KindValidation, CodeInvalidApprovalTransition, "invalid approval transition",
		"from", from, "action", action)
}

// NewInvalidDelegation reports a delegation back to the same approver.
func NewInvalidDelegation(stepID, toUserID string) *Error {
	return newError(KindValidation, CodeInvalidDelegation, "cannot delegate a step to its own approver",
		"step_id", stepID, "delegate_to", toUserID)
}

// NewRejectionReasonRequired reports a rejection without comments.
func NewRejectionReasonRequired(stepID string) *Error {
	return newError(KindValidation, CodeRejectionReasonRequired, "rejection comments are required", "step_id", stepID)
}

// NewInvalidApprovalChain reports a chain that breaks its invariants.
func NewInvalidApprovalChain(reason string) *Error {
	return newError(KindValidation, CodeInvalidApprovalChain, "invalid approval chain: "+reason)
}

// NewInvalidIdentifier reports a malformed identifier.
func NewInvalidIdentifier(field, value string) *Error {
	return newError(KindValidation, CodeInvalidIdentifier, "invalid identifier", "field", field, "value", value)
}

// NewInvalidAmount reports a negative or otherwise unusable amount.
func NewInvalidAmount(amount string) *Error {
	return newError(KindValidation, CodeInvalidAmount, "invalid amount", "amount", amount)
}

// NewCorruptWorkflowState reports persisted state that violates workflow invariants.
func NewCorruptWorkflowState(workflowID, reason string) *Error {
	return newError(KindValidation, CodeCorruptWorkflowState, "corrupt workflow state: "+reason, "workflow_id", workflowID)
}
