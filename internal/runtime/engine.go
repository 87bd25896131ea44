package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/enrollkit/enrollkit/internal/logging"
	"github.com/enrollkit/enrollkit/pkg/domain"
)

// DefaultMaxErrors is the escalation bound: once consecutive failures on a
// step reach this count, the session routes to manual review.
const DefaultMaxErrors = 3

// Input carries one turn's worth of caller-supplied data into a node.
type Input struct {
	// Text is the sanitized user message for this turn.
	Text string

	// Decision is set only when the engine re-enters a node after resume.
	Decision *domain.Decision
}

// SuspendRequest is a node's declaration that it cannot complete without
// externally supplied input. The engine assigns the request ID and deadline.
type SuspendRequest struct {
	Kind    domain.InterruptKind
	Payload map[string]any
	Options []string
}

// NodeResult reports what a node attempt produced.
type NodeResult struct {
	Outcome  domain.Outcome
	Messages []string

	// Suspend, when set, pauses the workflow instead of routing.
	Suspend *SuspendRequest

	// Abort routes unconditionally to the fallback step without error
	// counting. Nodes use it for abandoned or timed-out reviews.
	Abort bool
}

// Node is one unit of work in the workflow. It attempts its job and reports
// success, failure, or pending; routing is the engine's responsibility.
type Node interface {
	Step() domain.Step
	Run(ctx context.Context, state *domain.WorkflowState, input Input) (NodeResult, error)
}

// Engine drives the workflow state machine: one admissible transition (or
// controlled self-loop) per invocation.
type Engine struct {
	nodes        map[domain.Step]Node
	table        domain.TransitionTable
	maxErrors    int
	fallback     domain.Step
	interruptTTL time.Duration
	now          func() time.Time
	newID        func() string
	hooks        domain.LifecycleHooks
	logger       *slog.Logger
}

// Option configures the Engine.
type Option func(*Engine)

// WithNodes replaces the default check-in node set.
func WithNodes(nodes ...Node) Option {
	return func(e *Engine) {
		e.nodes = make(map[domain.Step]Node, len(nodes))
		for _, n := range nodes {
			e.nodes[n.Step()] = n
		}
	}
}

// WithTable replaces the default transition table.
func WithTable(table domain.TransitionTable) Option {
	return func(e *Engine) { e.table = table }
}

// WithMaxErrors sets the escalation bound.
func WithMaxErrors(n int) Option {
	return func(e *Engine) { e.maxErrors = n }
}

// WithFallback sets the step aborted or timed-out sessions route to.
func WithFallback(step domain.Step) Option {
	return func(e *Engine) { e.fallback = step }
}

// WithInterruptTTL sets the review deadline for new suspensions.
func WithInterruptTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.interruptTTL = ttl }
}

// WithClock injects a time source. Tests use this to expire suspensions.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithHooks registers observability hooks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) { e.hooks = hooks }
}

// WithLogger sets a structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New creates an engine and validates its transition table. Every step the
// table routes to must have a node (or be terminal); an incomplete table is
// a construction error, not a runtime surprise.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		table:        CheckInTable(),
		maxErrors:    DefaultMaxErrors,
		fallback:     domain.StepManualReview,
		interruptTTL: domain.DefaultInterruptTTL,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.nodes == nil {
		WithNodes(CheckInNodes(nil)...)(e)
	}

	if err := e.table.Validate(); err != nil {
		return nil, err
	}
	for _, step := range e.table.Steps() {
		if step.Terminal() {
			continue
		}
		if _, ok := e.nodes[step]; !ok {
			return nil, &missingNodeError{Step: step}
		}
	}
	return e, nil
}

// Step advances the state by one transition based on the given input.
// Business failures are absorbed by the retry/escalation policy; only
// protocol misuse (terminal state, unknown step) surfaces as an error.
func (e *Engine) Step(ctx context.Context, state *domain.WorkflowState, input Input) (*domain.StepResult, error) {
	if state.CurrentStep.Terminal() {
		return nil, &domain.TerminalStateError{SessionID: state.SessionID, Step: state.CurrentStep}
	}

	if state.Pending != nil {
		if state.Pending.Expired(e.now()) {
			return e.resolveTimeout(ctx, state)
		}
		// Still waiting on the reviewer; re-present the request.
		return &domain.StepResult{
			Kind:      domain.ResultSuspended,
			State:     state,
			Interrupt: state.Pending,
			Messages:  []string{"Your request is still awaiting review."},
		}, nil
	}

	return e.run(ctx, state, input)
}

// Resume re-enters the node that suspended, passing the reviewer's decision
// as its resolved input. The node then proceeds exactly as if it had
// received the answer synchronously.
func (e *Engine) Resume(ctx context.Context, state *domain.WorkflowState, decision domain.Decision) (*domain.StepResult, error) {
	if state.CurrentStep.Terminal() {
		return nil, &domain.TerminalStateError{SessionID: state.SessionID, Step: state.CurrentStep}
	}

	if state.Pending == nil {
		if decision.RequestID != "" && decision.RequestID == state.LastResolvedID {
			return nil, &domain.AlreadyResolvedError{SessionID: state.SessionID, RequestID: decision.RequestID}
		}
		return nil, domain.ErrNoPendingInterrupt
	}

	if state.Pending.Expired(e.now()) {
		e.logger.Warn("decision arrived after review deadline, resolving as timeout",
			"session_id", state.SessionID,
			"request_id", state.Pending.RequestID,
		)
		return e.resolveTimeout(ctx, state)
	}

	if decision.RequestID != state.Pending.RequestID {
		if decision.RequestID == state.LastResolvedID {
			return nil, &domain.AlreadyResolvedError{SessionID: state.SessionID, RequestID: decision.RequestID}
		}
		return nil, &domain.StaleResumeError{
			SessionID: state.SessionID,
			Got:       decision.RequestID,
			Want:      state.Pending.RequestID,
		}
	}

	resolved := e.consumePending(state)
	e.emitInterrupt(ctx, domain.EventResume, state.SessionID, resolved, decision.Choice)

	return e.run(ctx, state, Input{Decision: &decision})
}

// run executes the current step's node and routes on its outcome.
func (e *Engine) run(ctx context.Context, state *domain.WorkflowState, input Input) (*domain.StepResult, error) {
	node, ok := e.nodes[state.CurrentStep]
	if !ok {
		return nil, &missingNodeError{Step: state.CurrentStep}
	}

	started := e.now()
	e.emitStep(ctx, domain.EventStepEnter, state, "", 0)

	result, err := node.Run(ctx, state, input)
	if err != nil {
		// An unexpected node error is a failed attempt, subject to the same
		// escalation policy as a business failure.
		e.logger.Error("node failed unexpectedly",
			"session_id", state.SessionID,
			"step", state.CurrentStep,
			"err", err,
		)
		result = NodeResult{
			Outcome:  domain.OutcomeFailure,
			Messages: []string{"Something went wrong while processing this step. Please try again."},
		}
	}

	if result.Suspend != nil {
		return e.suspend(ctx, state, result)
	}

	next := e.route(ctx, state, result)
	duration := e.now().Sub(started)
	e.emitStep(ctx, domain.EventStepLeave, state, result.Outcome, duration)

	e.advance(state, next)

	kind := domain.ResultAdvanced
	if next.Terminal() {
		kind = domain.ResultTerminal
	}
	return &domain.StepResult{Kind: kind, State: state, Messages: result.Messages}, nil
}

// suspend stores the pending request on the state and returns a suspended
// result. The caller persists the checkpoint; this function must not block
// waiting for the reviewer.
func (e *Engine) suspend(ctx context.Context, state *domain.WorkflowState, result NodeResult) (*domain.StepResult, error) {
	if state.Pending != nil {
		return nil, domain.ErrDoubleSuspension
	}

	now := e.now()
	req := &domain.InterruptRequest{
		RequestID: e.newID(),
		SessionID: state.SessionID,
		Kind:      result.Suspend.Kind,
		Payload:   result.Suspend.Payload,
		Options:   result.Suspend.Options,
		Status:    domain.InterruptPending,
		CreatedAt: now,
		Deadline:  now.Add(e.interruptTTL),
	}
	state.Pending = req
	state.UpdatedAt = now

	e.emitInterrupt(ctx, domain.EventSuspend, state.SessionID, req, "")
	e.logger.Info("workflow suspended",
		"session_id", state.SessionID,
		"request_id", req.RequestID,
		"kind", req.Kind,
	)

	return &domain.StepResult{
		Kind:      domain.ResultSuspended,
		State:     state,
		Messages:  result.Messages,
		Interrupt: req,
	}, nil
}

// route applies the transition policy: success advances and resets the error
// count, pending self-loops for free, failure counts toward escalation, and
// abort goes straight to the fallback step.
func (e *Engine) route(ctx context.Context, state *domain.WorkflowState, result NodeResult) domain.Step {
	if result.Abort {
		return e.fallback
	}

	switch result.Outcome {
	case domain.OutcomeSuccess:
		state.ErrorCount = 0
	case domain.OutcomePending:
		// Not yet satisfied is not an error.
	case domain.OutcomeFailure:
		state.ErrorCount++
		if state.ErrorCount >= e.maxErrors {
			e.emitStep(ctx, domain.EventEscalate, state, result.Outcome, 0)
			e.logger.Warn("escalating to manual review",
				"session_id", state.SessionID,
				"step", state.CurrentStep,
				"error_count", state.ErrorCount,
			)
			return domain.StepManualReview
		}
	}

	next, ok := e.table.Next(state.CurrentStep, result.Outcome)
	if !ok {
		// Validate guarantees every (step, outcome) pair has an entry; an
		// unknown pair at runtime means the node reported a bogus outcome.
		e.logger.Error("no transition for outcome, escalating",
			"step", state.CurrentStep,
			"outcome", result.Outcome,
		)
		return e.fallback
	}
	return next
}

func (e *Engine) advance(state *domain.WorkflowState, next domain.Step) {
	if next != state.CurrentStep {
		state.History = append(state.History, next)
	}
	state.CurrentStep = next
	state.UpdatedAt = e.now()
}

// consumePending marks the outstanding request resolved and clears it.
func (e *Engine) consumePending(state *domain.WorkflowState) *domain.InterruptRequest {
	req := state.Pending
	req.Status = domain.InterruptResolved
	state.LastResolvedID = req.RequestID
	state.Pending = nil
	state.UpdatedAt = e.now()
	return req
}

// resolveTimeout auto-resolves an expired suspension with a synthetic
// timeout decision and re-enters the node so it can route to the fallback.
func (e *Engine) resolveTimeout(ctx context.Context, state *domain.WorkflowState) (*domain.StepResult, error) {
	req := state.Pending
	req.Status = domain.InterruptExpired
	state.LastResolvedID = req.RequestID
	state.Pending = nil
	state.UpdatedAt = e.now()

	e.emitInterrupt(ctx, domain.EventResume, state.SessionID, req, domain.DecisionTimeout)
	e.logger.Info("review deadline expired, auto-resolving",
		"session_id", state.SessionID,
		"request_id", req.RequestID,
		"kind", req.Kind,
	)

	decision := domain.Decision{RequestID: req.RequestID, Choice: domain.DecisionTimeout}
	return e.run(ctx, state, Input{Decision: &decision})
}

func (e *Engine) emitStep(ctx context.Context, typ domain.EventType, state *domain.WorkflowState, outcome domain.Outcome, d time.Duration) {
	var fn func(context.Context, *domain.StepEvent)
	switch typ {
	case domain.EventStepEnter:
		fn = e.hooks.OnStepEnter
	case domain.EventStepLeave:
		fn = e.hooks.OnStepLeave
	case domain.EventEscalate:
		fn = e.hooks.OnEscalate
	}
	if fn == nil {
		return
	}
	fn(ctx, &domain.StepEvent{
		Timestamp: e.now(),
		Type:      typ,
		SessionID: state.SessionID,
		Step:      state.CurrentStep,
		Outcome:   outcome,
		Duration:  d,
	})
}

func (e *Engine) emitInterrupt(ctx context.Context, typ domain.EventType, sessionID string, req *domain.InterruptRequest, choice string) {
	var fn func(context.Context, *domain.InterruptEvent)
	switch typ {
	case domain.EventSuspend:
		fn = e.hooks.OnSuspend
	case domain.EventResume:
		fn = e.hooks.OnResume
	}
	if fn == nil {
		return
	}
	fn(ctx, &domain.InterruptEvent{
		Timestamp: e.now(),
		Type:      typ,
		SessionID: sessionID,
		RequestID: req.RequestID,
		Kind:      req.Kind,
		Choice:    choice,
	})
}
