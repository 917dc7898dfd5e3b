package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStepStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status    StepStatus
		processed bool
	}{
		{StepStatusPending, false},
		{StepStatusDelegated, false},
		{StepStatusApproved, true},
		{StepStatusRejected, true},
		{StepStatusAutoApproved, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			require.True(t, tt.status.IsValid())
			require.Equal(t, tt.processed, tt.status.IsProcessed())
		})
	}

	require.False(t, StepStatus("skipped").IsValid())
}

func TestApprovalStep_Transitions(t *testing.T) {
	t.Parallel()

	approver := NewID()

	t.Run("approve twice conflicts", func(t *testing.T) {
		t.Parallel()
		step := newApprovalStep(NewID(), 1, approver, testNow)
		require.NoError(t, step.approve("ok", testNow))
		require.ErrorIs(t, step.approve("again", testNow), ErrApprovalAlreadyProcessed)
		require.Equal(t, "ok", step.Comments())
	})

	t.Run("processed step is immutable", func(t *testing.T) {
		t.Parallel()
		step := newApprovalStep(NewID(), 1, approver, testNow)
		require.NoError(t, step.reject("no", testNow))
		require.ErrorIs(t, step.approve("", testNow), ErrApprovalAlreadyProcessed)
		require.ErrorIs(t, step.delegate(NewID(), testNow), ErrApprovalAlreadyProcessed)
		require.ErrorIs(t, step.autoApprove(testNow), ErrApprovalAlreadyProcessed)
		require.Equal(t, StepStatusRejected, step.Status())
	})

	t.Run("delegated step stays actionable", func(t *testing.T) {
		t.Parallel()
		step := newApprovalStep(NewID(), 1, approver, testNow)
		delegate := NewID()
		require.NoError(t, step.delegate(delegate, testNow))
		require.Nil(t, step.ProcessedAt())
		require.NoError(t, step.approve("", testNow))
		require.Equal(t, StepStatusApproved, step.Status())
		require.Equal(t, delegate, step.DelegatedTo())
	})

	t.Run("auto approve stamps processed time", func(t *testing.T) {
		t.Parallel()
		step := newApprovalStep(NewID(), 1, approver, testNow)
		require.NoError(t, step.autoApprove(testNow))
		require.Equal(t, StepStatusAutoApproved, step.Status())
		require.Equal(t, testNow, *step.ProcessedAt())
	})

	t.Run("record keeps delegate", func(t *testing.T) {
		t.Parallel()
		step := newApprovalStep(NewID(), 2, approver, testNow)
		delegate := NewID()
		require.NoError(t, step.delegate(delegate, testNow))
		rec := step.Record()
		require.NotNil(t, rec.DelegatedTo)
		require.Equal(t, delegate, *rec.DelegatedTo)
		require.Equal(t, 2, rec.StepNumber)
	})
}
