package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"gitlab.com/yelinaung/expense-approval/internal/models"
)

// ExpenseWorkflowStore keeps expense workflows in memory. Update holds the
// store lock for the whole read-modify-write, so concurrent actions on the
// same expense are serialized.
type ExpenseWorkflowStore struct {
	mu        sync.RWMutex
	workflows map[string]models.ExpenseWorkflowRecord
	byExpense map[string]string
}

// NewExpenseWorkflowStore creates an empty ExpenseWorkflowStore.
func NewExpenseWorkflowStore() *ExpenseWorkflowStore {
	return &ExpenseWorkflowStore{
		workflows: make(map[string]models.ExpenseWorkflowRecord),
		byExpense: make(map[string]string),
	}
}

// Save inserts or replaces a workflow and its steps.
func (s *ExpenseWorkflowStore) Save(_ context.Context, wf *models.ExpenseWorkflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(wf.Record())
	return nil
}

// FindByExpenseID returns nil when the expense has no workflow.
func (s *ExpenseWorkflowStore) FindByExpenseID(_ context.Context, expenseID string) (*models.ExpenseWorkflow, error) {
	s.mu.RLock()
	rec, ok := s.lookup(expenseID)
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	return models.ReconstituteExpenseWorkflow(rec)
}

// FindByWorkspace returns every workflow in a workspace, newest first.
func (s *ExpenseWorkflowStore) FindByWorkspace(_ context.Context, workspaceID string) ([]*models.ExpenseWorkflow, error) {
	return s.find(true, func(rec models.ExpenseWorkflowRecord) bool {
		return rec.WorkspaceID == workspaceID
	})
}

// FindPendingByApprover returns in-progress workflows whose current step is
// waiting on approverID, oldest first.
func (s *ExpenseWorkflowStore) FindPendingByApprover(_ context.Context, approverID, workspaceID string) ([]*models.ExpenseWorkflow, error) {
	return s.find(false, func(rec models.ExpenseWorkflowRecord) bool {
		if rec.WorkspaceID != workspaceID || rec.Status != models.WorkflowStatusInProgress {
			return false
		}
		for _, step := range rec.Steps {
			if step.StepNumber != rec.CurrentStepNumber {
				continue
			}
			if step.Status != models.StepStatusPending && step.Status != models.StepStatusDelegated {
				return false
			}
			if step.DelegatedTo != nil {
				return *step.DelegatedTo == approverID
			}
			return step.ApproverID == approverID
		}
		return false
	})
}

// FindByUser returns workflows requested by userID in a workspace, newest first.
func (s *ExpenseWorkflowStore) FindByUser(_ context.Context, userID, workspaceID string) ([]*models.ExpenseWorkflow, error) {
	return s.find(true, func(rec models.ExpenseWorkflowRecord) bool {
		return rec.RequesterID == userID && rec.WorkspaceID == workspaceID
	})
}

// Update loads the workflow for expenseID, passes it to fn and stores the
// result if fn succeeds. fn receives nil when no workflow exists.
func (s *ExpenseWorkflowStore) Update(
	_ context.Context,
	expenseID string,
	fn func(wf *models.ExpenseWorkflow) error,
) (*models.ExpenseWorkflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var wf *models.ExpenseWorkflow
	if rec, ok := s.lookup(expenseID); ok {
		var err error
		wf, err = models.ReconstituteExpenseWorkflow(rec)
		if err != nil {
			return nil, err
		}
	}
	if err := fn(wf); err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, nil
	}
	s.put(wf.Record())
	return wf, nil
}

func (s *ExpenseWorkflowStore) put(rec models.ExpenseWorkflowRecord) {
	s.workflows[rec.ID] = rec
	current, ok := s.workflows[s.byExpense[rec.ExpenseID]]
	if !ok || current.ID == rec.ID || !rec.CreatedAt.Before(current.CreatedAt) {
		s.byExpense[rec.ExpenseID] = rec.ID
	}
}

func (s *ExpenseWorkflowStore) lookup(expenseID string) (models.ExpenseWorkflowRecord, bool) {
	id, ok := s.byExpense[expenseID]
	if !ok {
		return models.ExpenseWorkflowRecord{}, false
	}
	rec, ok := s.workflows[id]
	return rec, ok
}

func (s *ExpenseWorkflowStore) find(newestFirst bool, keep func(models.ExpenseWorkflowRecord) bool) ([]*models.ExpenseWorkflow, error) {
	s.mu.RLock()
	var recs []models.ExpenseWorkflowRecord
	for _, rec := range s.workflows {
		if keep(rec) {
			recs = append(recs, rec)
		}
	}
	s.mu.RUnlock()

	if len(recs) == 0 {
		return nil, nil
	}
	slices.SortFunc(recs, func(a, b models.ExpenseWorkflowRecord) int {
		c := a.CreatedAt.Compare(b.CreatedAt)
		if newestFirst {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	workflows := make([]*models.ExpenseWorkflow, 0, len(recs))
	for _, rec := range recs {
		wf, err := models.ReconstituteExpenseWorkflow(rec)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, nil
}
