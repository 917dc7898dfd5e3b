package models

import (
	"strings"
	"time"
)

// StepStatus is the state of a single approver's decision.
type StepStatus string

// Step statuses.
const (
	StepStatusPending      StepStatus = "pending"
	StepStatusApproved     StepStatus = "approved"
	StepStatusRejected     StepStatus = "rejected"
	StepStatusDelegated    StepStatus = "delegated"
	StepStatusAutoApproved StepStatus = "auto_approved"
)

// IsValid reports whether s is a known step status.
func (s StepStatus) IsValid() bool {
	switch s {
	case StepStatusPending, StepStatusApproved, StepStatusRejected, StepStatusDelegated, StepStatusAutoApproved:
		return true
	}
	return false
}

// IsProcessed reports whether a step in status s can no longer change.
// Delegation is not processing: the delegate still has to decide.
func (s StepStatus) IsProcessed() bool {
	return s == StepStatusApproved || s == StepStatusRejected || s == StepStatusAutoApproved
}

// ApprovalStep is one approver's slot within a workflow. Steps are only
// mutated through their owning ExpenseWorkflow.
type ApprovalStep struct {
	id          string
	workflowID  string
	stepNumber  int
	approverID  string
	delegatedTo string
	status      StepStatus
	comments    string
	processedAt *time.Time
	createdAt   time.Time
	updatedAt   time.Time
}

// ApprovalStepRecord is the flat persisted form of a step.
type ApprovalStepRecord struct {
	ID          string
	WorkflowID  string
	StepNumber  int
	ApproverID  string
	DelegatedTo *string
	Status      StepStatus
	Comments    string
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func newApprovalStep(workflowID string, stepNumber int, approverID string, now time.Time) *ApprovalStep {
	return &ApprovalStep{
		id:         NewID(),
		workflowID: workflowID,
		stepNumber: stepNumber,
		approverID: approverID,
		status:     StepStatusPending,
		createdAt:  now,
		updatedAt:  now,
	}
}

func reconstituteApprovalStep(rec ApprovalStepRecord) (*ApprovalStep, error) {
	if rec.ID == "" || rec.ApproverID == "" {
		return nil, NewCorruptWorkflowState(rec.WorkflowID, "step is missing identity")
	}
	if !rec.Status.IsValid() {
		return nil, NewCorruptWorkflowState(rec.WorkflowID, "unknown step status "+string(rec.Status))
	}
	step := &ApprovalStep{
		id:          rec.ID,
		workflowID:  rec.WorkflowID,
		stepNumber:  rec.StepNumber,
		approverID:  rec.ApproverID,
		status:      rec.Status,
		comments:    rec.Comments,
		processedAt: copyTime(rec.ProcessedAt),
		createdAt:   rec.CreatedAt,
		updatedAt:   rec.UpdatedAt,
	}
	if rec.DelegatedTo != nil {
		step.delegatedTo = *rec.DelegatedTo
	}
	if step.status == StepStatusDelegated && step.delegatedTo == "" {
		return nil, NewCorruptWorkflowState(rec.WorkflowID, "delegated step has no delegate")
	}
	return step, nil
}

// Record returns the flat persisted form of the step.
func (s *ApprovalStep) Record() ApprovalStepRecord {
	rec := ApprovalStepRecord{
		ID:          s.id,
		WorkflowID:  s.workflowID,
		StepNumber:  s.stepNumber,
		ApproverID:  s.approverID,
		Status:      s.status,
		Comments:    s.comments,
		ProcessedAt: copyTime(s.processedAt),
		CreatedAt:   s.createdAt,
		UpdatedAt:   s.updatedAt,
	}
	if s.delegatedTo != "" {
		delegatedTo := s.delegatedTo
		rec.DelegatedTo = &delegatedTo
	}
	return rec
}

func (s *ApprovalStep) ID() string { return s.id }
func (s *ApprovalStep) WorkflowID() string { return s.workflowID }
func (s *ApprovalStep) StepNumber() int { return s.stepNumber }
func (s *ApprovalStep) ApproverID() string { return s.approverID }
func (s *ApprovalStep) DelegatedTo() string { return s.delegatedTo }
func (s *ApprovalStep) Status() StepStatus { return s.status }
func (s *ApprovalStep) Comments() string { return s.comments }
func (s *ApprovalStep) ProcessedAt() *time.Time { return copyTime(s.processedAt) }
func (s *ApprovalStep) CreatedAt() time.Time { return s.createdAt }
func (s *ApprovalStep) UpdatedAt() time.Time { return s.updatedAt }

// IsProcessed reports whether the step has reached a final decision.
func (s *ApprovalStep) IsProcessed() bool {
	return s.status.IsProcessed()
}

// CurrentApproverID returns the user allowed to act on the step: the
// delegate when one is set, otherwise the original approver.
func (s *ApprovalStep) CurrentApproverID() string {
	if s.delegatedTo != "" {
		return s.delegatedTo
	}
	return s.approverID
}

func (s *ApprovalStep) approve(comments string, now time.Time) error {
	if s.IsProcessed() {
		return NewApprovalAlreadyProcessed(s.id, s.status)
	}
	s.status = StepStatusApproved
	s.comments = strings.TrimSpace(comments)
	s.stamp(now)
	return nil
}

func (s *ApprovalStep) reject(comments string, now time.Time) error {
	if s.IsProcessed() {
		return NewApprovalAlreadyProcessed(s.id, s.status)
	}
	comments = strings.TrimSpace(comments)
	if comments == "" {
		return NewRejectionReasonRequired(s.id)
	}
	s.status = StepStatusRejected
	s.comments = comments
	s.stamp(now)
	return nil
}

func (s *ApprovalStep) delegate(toUserID string, now time.Time) error {
	if s.IsProcessed() {
		return NewApprovalAlreadyProcessed(s.id, s.status)
	}
	if toUserID == s.approverID || toUserID == s.CurrentApproverID() {
		return NewInvalidDelegation(s.id, toUserID)
	}
	s.status = StepStatusDelegated
	s.delegatedTo = toUserID
	s.updatedAt = now
	return nil
}

func (s *ApprovalStep) autoApprove(now time.Time) error {
	if s.IsProcessed() {
		return NewApprovalAlreadyProcessed(s.id, s.status)
	}
	s.status = StepStatusAutoApproved
	s.stamp(now)
	return nil
}

func (s *ApprovalStep) stamp(now time.Time) {
	processedAt := now
	s.processedAt = &processedAt
	s.updatedAt = now
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
