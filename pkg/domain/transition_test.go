package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTable() TransitionTable {
	return TransitionTable{
		StepInfoCollection: {
			OutcomeSuccess: StepVerification,
			OutcomeFailure: StepInfoCollection,
			OutcomePending: StepInfoCollection,
		},
		StepVerification: {
			OutcomeSuccess: StepCompleted,
			OutcomeFailure: StepVerification,
			OutcomePending: StepVerification,
		},
	}
}

func TestTransitionTableNext(t *testing.T) {
	table := validTable()

	next, ok := table.Next(StepInfoCollection, OutcomeSuccess)
	require.True(t, ok)
	assert.Equal(t, StepVerification, next)

	_, ok = table.Next(StepCompleted, OutcomeSuccess)
	assert.False(t, ok)
}

func TestTransitionTableSteps(t *testing.T) {
	steps := validTable().Steps()
	assert.Equal(t, []Step{StepCompleted, StepInfoCollection, StepVerification}, steps)
}

func TestTransitionTableValidate(t *testing.T) {
	assert.NoError(t, validTable().Validate())

	t.Run("missing outcome", func(t *testing.T) {
		table := validTable()
		delete(table[StepVerification], OutcomeFailure)
		err := table.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "verification has no transition for outcome failure")
	})

	t.Run("terminal step with edges", func(t *testing.T) {
		table := validTable()
		table[StepCompleted] = map[Outcome]Step{OutcomeSuccess: StepInfoCollection}
		err := table.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "terminal step completed has outgoing transitions")
	})

	t.Run("referenced step without row", func(t *testing.T) {
		table := validTable()
		table[StepVerification][OutcomeSuccess] = StepPayment
		err := table.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "step payment has no transitions")
	})
}

func TestWorkflowStateClone(t *testing.T) {
	state := NewState("s1", StepInfoCollection)
	state.Pending = &InterruptRequest{
		RequestID: "r1",
		Payload:   map[string]any{"amount": 6200.0, "items": map[string]any{"tuition": 5000.0}},
		Options:   []string{DecisionApprove, DecisionReject},
	}

	clone := state.Clone()
	clone.CurrentStep = StepPayment
	clone.History = append(clone.History, StepPayment)
	clone.Pending.Payload["amount"] = 9999.0
	clone.Pending.Payload["items"].(map[string]any)["tuition"] = 0.0
	clone.Pending.Options[0] = "tampered"

	assert.Equal(t, StepInfoCollection, state.CurrentStep)
	assert.Len(t, state.History, 1)
	assert.Equal(t, 6200.0, state.Pending.Payload["amount"])
	assert.Equal(t, 5000.0, state.Pending.Payload["items"].(map[string]any)["tuition"])
	assert.Equal(t, DecisionApprove, state.Pending.Options[0])
}

func TestCloneNil(t *testing.T) {
	var state *WorkflowState
	assert.Nil(t, state.Clone())
}
