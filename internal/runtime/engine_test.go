package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrollkit/enrollkit/pkg/domain"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// rejectingDirectory fails every lookup.
type rejectingDirectory struct{}

func (rejectingDirectory) Lookup(ctx context.Context, id, name string) (bool, error) {
	return false, nil
}

// brokenDirectory returns an infrastructure error.
type brokenDirectory struct{}

func (brokenDirectory) Lookup(ctx context.Context, id, name string) (bool, error) {
	return false, errors.New("directory unavailable")
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	engine, err := New(opts...)
	require.NoError(t, err)
	return engine, clock
}

// suspendAtPayment drives a fresh session up to the payment suspension.
func suspendAtPayment(t *testing.T, engine *Engine) *domain.WorkflowState {
	t.Helper()
	ctx := context.Background()
	state := domain.NewState("s1", domain.StepInfoCollection)

	res, err := engine.Step(ctx, state, Input{Text: "2024000123 Li Hua"})
	require.NoError(t, err)
	require.Equal(t, domain.ResultAdvanced, res.Kind)
	require.Equal(t, domain.StepVerification, state.CurrentStep)

	res, err = engine.Step(ctx, state, Input{Text: "please verify me"})
	require.NoError(t, err)
	require.Equal(t, domain.StepPayment, state.CurrentStep)

	res, err = engine.Step(ctx, state, Input{Text: "I have paid the tuition"})
	require.NoError(t, err)
	require.Equal(t, domain.ResultSuspended, res.Kind)
	require.NotNil(t, state.Pending)
	require.Equal(t, domain.KindPaymentConfirmation, state.Pending.Kind)
	return state
}

func TestEngineHappyPath(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	state := suspendAtPayment(t, engine)

	res, err := engine.Resume(ctx, state, domain.Decision{
		RequestID: state.Pending.RequestID,
		Choice:    domain.DecisionApprove,
	})
	require.NoError(t, err)
	assert.True(t, state.Profile.PaymentConfirmed)
	assert.Equal(t, domain.StepAssignment, state.CurrentStep)

	// Assignment proposes a dorm and suspends again.
	res, err = engine.Step(ctx, state, Input{})
	require.NoError(t, err)
	require.Equal(t, domain.ResultSuspended, res.Kind)
	require.Equal(t, domain.KindDormAssignment, state.Pending.Kind)

	res, err = engine.Resume(ctx, state, domain.Decision{
		RequestID: state.Pending.RequestID,
		Choice:    domain.DecisionApprove,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultTerminal, res.Kind)
	assert.Equal(t, domain.StepCompleted, state.CurrentStep)
	assert.NotEmpty(t, state.Profile.Dorm)
	assert.Equal(t, []domain.Step{
		domain.StepInfoCollection,
		domain.StepVerification,
		domain.StepPayment,
		domain.StepAssignment,
		domain.StepCompleted,
	}, state.History)
}

func TestEnginePendingDoesNotEscalate(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	state := domain.NewState("s1", domain.StepInfoCollection)

	for i := 0; i < DefaultMaxErrors+2; i++ {
		res, err := engine.Step(ctx, state, Input{Text: ""})
		require.NoError(t, err)
		assert.Equal(t, domain.ResultAdvanced, res.Kind)
	}
	assert.Equal(t, domain.StepInfoCollection, state.CurrentStep)
	assert.Zero(t, state.ErrorCount)
}

func TestEngineEscalatesAfterRepeatedFailures(t *testing.T) {
	engine, _ := newTestEngine(t, WithNodes(CheckInNodes(rejectingDirectory{})...))
	ctx := context.Background()
	state := domain.NewState("s1", domain.StepInfoCollection)

	_, err := engine.Step(ctx, state, Input{Text: "2024000123 Li Hua"})
	require.NoError(t, err)
	require.Equal(t, domain.StepVerification, state.CurrentStep)

	for i := 0; i < DefaultMaxErrors-1; i++ {
		res, err := engine.Step(ctx, state, Input{Text: "try again"})
		require.NoError(t, err)
		assert.Equal(t, domain.ResultAdvanced, res.Kind)
		assert.Equal(t, domain.StepVerification, state.CurrentStep)
	}
	assert.Equal(t, DefaultMaxErrors-1, state.ErrorCount)

	res, err := engine.Step(ctx, state, Input{Text: "try again"})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultTerminal, res.Kind)
	assert.Equal(t, domain.StepManualReview, state.CurrentStep)
}

func TestEngineNodeErrorCountsAsFailure(t *testing.T) {
	engine, _ := newTestEngine(t, WithNodes(CheckInNodes(brokenDirectory{})...))
	ctx := context.Background()
	state := domain.NewState("s1", domain.StepInfoCollection)

	_, err := engine.Step(ctx, state, Input{Text: "2024000123 Li Hua"})
	require.NoError(t, err)

	res, err := engine.Step(ctx, state, Input{Text: "verify"})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultAdvanced, res.Kind)
	assert.Equal(t, 1, state.ErrorCount)
	assert.Equal(t, domain.StepVerification, state.CurrentStep)
}

func TestEngineSuccessResetsErrorCount(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	state := domain.NewState("s1", domain.StepInfoCollection)

	// A malformed student ID is a failed attempt.
	_, err := engine.Step(ctx, state, Input{Text: "my id is 12345"})
	require.NoError(t, err)
	require.Equal(t, 1, state.ErrorCount)

	_, err = engine.Step(ctx, state, Input{Text: "2024000123 Li Hua"})
	require.NoError(t, err)
	assert.Zero(t, state.ErrorCount)
	assert.Equal(t, domain.StepVerification, state.CurrentStep)
}

func TestEngineStepWhileSuspendedRepresents(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	state := suspendAtPayment(t, engine)
	requestID := state.Pending.RequestID

	res, err := engine.Step(ctx, state, Input{Text: "any news?"})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultSuspended, res.Kind)
	require.NotNil(t, res.Interrupt)
	assert.Equal(t, requestID, res.Interrupt.RequestID)
}

func TestEngineResumeReject(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	state := suspendAtPayment(t, engine)

	res, err := engine.Resume(ctx, state, domain.Decision{
		RequestID: state.Pending.RequestID,
		Choice:    domain.DecisionReject,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultAdvanced, res.Kind)
	assert.Equal(t, domain.StepPayment, state.CurrentStep)
	assert.Equal(t, 1, state.ErrorCount)
	assert.False(t, state.Profile.PaymentConfirmed)
	assert.Nil(t, state.Pending)
}

func TestEngineResumeModifyReSuspends(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	state := suspendAtPayment(t, engine)
	first := state.Pending.RequestID

	res, err := engine.Resume(ctx, state, domain.Decision{
		RequestID: first,
		Choice:    domain.DecisionModify,
		Amount:    6200,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultSuspended, res.Kind)
	require.NotNil(t, state.Pending)
	assert.NotEqual(t, first, state.Pending.RequestID)
	assert.Equal(t, 6200.0, state.Profile.PaymentAmount)
	assert.Equal(t, true, state.Pending.Payload["modified"])
}

func TestEngineResumeProtocolErrors(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	t.Run("no pending interrupt", func(t *testing.T) {
		state := domain.NewState("s1", domain.StepInfoCollection)
		_, err := engine.Resume(ctx, state, domain.Decision{Choice: domain.DecisionApprove})
		assert.ErrorIs(t, err, domain.ErrNoPendingInterrupt)
	})

	t.Run("stale request id", func(t *testing.T) {
		state := suspendAtPayment(t, engine)
		_, err := engine.Resume(ctx, state, domain.Decision{
			RequestID: "bogus",
			Choice:    domain.DecisionApprove,
		})
		var stale *domain.StaleResumeError
		require.ErrorAs(t, err, &stale)
		assert.Equal(t, state.Pending.RequestID, stale.Want)
	})

	t.Run("already resolved", func(t *testing.T) {
		state := suspendAtPayment(t, engine)
		decision := domain.Decision{RequestID: state.Pending.RequestID, Choice: domain.DecisionApprove}
		_, err := engine.Resume(ctx, state, decision)
		require.NoError(t, err)

		_, err = engine.Resume(ctx, state, decision)
		var resolved *domain.AlreadyResolvedError
		require.ErrorAs(t, err, &resolved)
		assert.Equal(t, decision.RequestID, resolved.RequestID)
	})

	t.Run("terminal session", func(t *testing.T) {
		state := domain.NewState("s1", domain.StepCompleted)
		_, err := engine.Step(ctx, state, Input{Text: "hello"})
		var terminal *domain.TerminalStateError
		assert.ErrorAs(t, err, &terminal)

		_, err = engine.Resume(ctx, state, domain.Decision{Choice: domain.DecisionApprove})
		assert.ErrorAs(t, err, &terminal)
	})
}

func TestEngineTimeoutAutoResolves(t *testing.T) {
	engine, clock := newTestEngine(t, WithInterruptTTL(time.Hour))
	ctx := context.Background()
	state := suspendAtPayment(t, engine)
	requestID := state.Pending.RequestID

	clock.Advance(2 * time.Hour)

	res, err := engine.Step(ctx, state, Input{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultTerminal, res.Kind)
	assert.Equal(t, domain.StepManualReview, state.CurrentStep)
	assert.Nil(t, state.Pending)
	assert.Equal(t, requestID, state.LastResolvedID)
}

func TestEngineLateDecisionResolvesAsTimeout(t *testing.T) {
	engine, clock := newTestEngine(t, WithInterruptTTL(time.Hour))
	ctx := context.Background()
	state := suspendAtPayment(t, engine)

	clock.Advance(2 * time.Hour)

	res, err := engine.Resume(ctx, state, domain.Decision{
		RequestID: state.Pending.RequestID,
		Choice:    domain.DecisionApprove,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StepManualReview, state.CurrentStep)
	assert.Equal(t, domain.ResultTerminal, res.Kind)
	assert.False(t, state.Profile.PaymentConfirmed)
}

func TestEngineHooks(t *testing.T) {
	var entered, left, suspended, resumed, escalated int
	hooks := domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, ev *domain.StepEvent) { entered++ },
		OnStepLeave: func(ctx context.Context, ev *domain.StepEvent) { left++ },
		OnSuspend:   func(ctx context.Context, ev *domain.InterruptEvent) { suspended++ },
		OnResume:    func(ctx context.Context, ev *domain.InterruptEvent) { resumed++ },
		OnEscalate:  func(ctx context.Context, ev *domain.StepEvent) { escalated++ },
	}
	engine, _ := newTestEngine(t, WithHooks(hooks))
	ctx := context.Background()
	state := suspendAtPayment(t, engine)

	_, err := engine.Resume(ctx, state, domain.Decision{
		RequestID: state.Pending.RequestID,
		Choice:    domain.DecisionApprove,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, entered)
	assert.Equal(t, 3, left) // the suspension turn never left its step
	assert.Equal(t, 1, suspended)
	assert.Equal(t, 1, resumed)
	assert.Zero(t, escalated)
}

func TestNewRejectsIncompleteTable(t *testing.T) {
	broken := domain.TransitionTable{
		domain.StepInfoCollection: {
			domain.OutcomeSuccess: domain.StepCompleted,
		},
	}
	_, err := New(WithTable(broken))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no transition for outcome")
}

func TestNewRejectsMissingNode(t *testing.T) {
	_, err := New(WithNodes(&infoCollectionNode{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no node registered")
}
