package approval

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/expense-approval/internal/models"
	"gitlab.com/yelinaung/expense-approval/internal/repository/memory"
	"pgregory.net/rapid"
)

// TestWorkflowService_RequesterNeverApproves drives random workflows over a
// small user pool and checks that no step of a workflow is ever approved by
// its requester, directly or through delegation.
func TestWorkflowService_RequesterNeverApproves(t *testing.T) {
	users := []string{models.NewID(), models.NewID(), models.NewID(), models.NewID()}

	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		chains := memory.NewApprovalChainStore()
		clock := newTestClock()
		svc := NewWorkflowService(memory.NewExpenseWorkflowStore(), chains,
			WithPublisher(&eventRecorder{}),
			WithClock(clock.Now),
			WithAutoApprovalThreshold(decimal.NewFromInt(int64(rapid.IntRange(0, 100).Draw(t, "threshold")))),
		)
		workspaceID := models.NewID()

		sequence := rapid.SliceOfN(rapid.SampledFrom(users), 1, 5).Draw(t, "sequence")
		requester := rapid.SampledFrom(users).Draw(t, "requester")
		if _, err := NewChainService(chains, clock.Now).CreateChain(ctx, models.ApprovalChainParams{
			WorkspaceID:      workspaceID,
			Name:             "property",
			ApproverSequence: sequence,
		}); err != nil {
			t.Fatalf("create chain: %v", err)
		}

		expenseID := models.NewID()
		wf, err := svc.InitiateWorkflow(ctx, InitiateRequest{
			ExpenseID:   expenseID,
			WorkspaceID: workspaceID,
			RequesterID: requester,
			Amount:      decimal.NewFromInt(int64(rapid.IntRange(0, 1000).Draw(t, "amount"))),
		})
		if slices.Contains(sequence, requester) {
			if !errors.Is(err, models.ErrSelfApprovalNotAllowed) {
				t.Fatalf("expected self-approval rejection, got %v", err)
			}
			return
		}
		if err != nil {
			t.Fatalf("initiate: %v", err)
		}

		steps := rapid.IntRange(0, 15).Draw(t, "actions")
		for i := 0; i < steps && !wf.IsCompleted(); i++ {
			actor := rapid.SampledFrom(users).Draw(t, "actor")
			action := StepAction{ExpenseID: expenseID, ActorID: actor}
			if rapid.Bool().Draw(t, "delegate") {
				target := rapid.SampledFrom(users).Draw(t, "target")
				next, err := svc.DelegateStep(ctx, action, target)
				if err == nil {
					if target == requester {
						t.Fatalf("delegated step %d to the requester", wf.CurrentStepNumber())
					}
					wf = next
				}
				continue
			}
			next, err := svc.ApproveStep(ctx, action)
			if err == nil {
				if actor == requester {
					t.Fatalf("requester approved step %d", wf.CurrentStepNumber())
				}
				wf = next
			}
		}

		for _, step := range wf.Steps() {
			if step.Status() == models.StepStatusApproved && step.CurrentApproverID() == requester {
				t.Fatalf("step %d approved on behalf of the requester", step.StepNumber())
			}
		}
	})
}
