package enrollkit

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/enrollkit/enrollkit/internal/logging"
	"github.com/enrollkit/enrollkit/internal/runtime"
	"github.com/enrollkit/enrollkit/pkg/adapters/memory"
	"github.com/enrollkit/enrollkit/pkg/domain"
	"github.com/enrollkit/enrollkit/pkg/ports"
	"github.com/enrollkit/enrollkit/pkg/queryguard"
	"github.com/enrollkit/enrollkit/pkg/security"
	"github.com/enrollkit/enrollkit/pkg/session"
)

// Engine is the high-level entry point for the check-in library. It binds
// the workflow runtime, the security chain, and session persistence behind
// a per-turn API: every call loads a checkpoint, advances it by at most one
// transition, and saves it back.
type Engine struct {
	runtime  *runtime.Engine
	sessions *session.Manager
	chain    *security.Chain
	agent    *queryguard.Agent
	start    domain.Step
	logger   *slog.Logger

	store       ports.CheckpointStore
	locker      ports.DistributedLocker
	lockTTL     time.Duration
	secCfg      security.Config
	hooks       domain.LifecycleHooks
	runtimeOpts []runtime.Option
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore injects a checkpoint store. Defaults to the in-memory store.
func WithStore(store ports.CheckpointStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithLocker enables distributed locking for multi-instance deployments.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) { e.locker = locker }
}

// WithLockTTL sets the distributed lock expiration.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.lockTTL = ttl }
}

// WithSecurityChain injects a pre-built security chain.
func WithSecurityChain(chain *security.Chain) Option {
	return func(e *Engine) { e.chain = chain }
}

// WithSecurityConfig tunes the default security chain. Ignored when a chain
// is injected via WithSecurityChain.
func WithSecurityConfig(cfg security.Config) Option {
	return func(e *Engine) { e.secCfg = cfg }
}

// WithQueryAgent enables the natural-language query surface.
func WithQueryAgent(agent *queryguard.Agent) Option {
	return func(e *Engine) { e.agent = agent }
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) { e.hooks = hooks }
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRuntimeOptions forwards options to the workflow runtime, such as
// runtime.WithMaxErrors or runtime.WithInterruptTTL.
func WithRuntimeOptions(opts ...runtime.Option) Option {
	return func(e *Engine) { e.runtimeOpts = append(e.runtimeOpts, opts...) }
}

// WithStartStep sets the step new sessions begin at.
func WithStartStep(step domain.Step) Option {
	return func(e *Engine) { e.start = step }
}

// New initializes an Engine with the default check-in workflow.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		start: domain.StepInfoCollection,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}

	if e.chain == nil {
		chain, err := security.NewChain(e.secCfg, security.WithLogger(e.logger))
		if err != nil {
			return nil, fmt.Errorf("failed to build security chain: %w", err)
		}
		e.chain = chain
	}

	runtimeOpts := []runtime.Option{
		runtime.WithHooks(e.hooks),
		runtime.WithLogger(e.logger),
	}
	runtimeOpts = append(runtimeOpts, e.runtimeOpts...)

	rt, err := runtime.New(runtimeOpts...)
	if err != nil {
		return nil, err
	}
	e.runtime = rt

	sessionOpts := []session.Option{session.WithLogger(e.logger)}
	if e.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(e.locker))
	}
	if e.lockTTL > 0 {
		sessionOpts = append(sessionOpts, session.WithLockTTL(e.lockTTL))
	}
	e.sessions = session.NewManager(e.store, sessionOpts...)

	return e, nil
}

// TurnResult is the outcome of one turn as seen by the caller.
type TurnResult struct {
	SessionID string                   `json:"session_id"`
	Step      domain.Step              `json:"step"`
	Terminal  bool                     `json:"terminal"`
	Suspended bool                     `json:"suspended"`
	Messages  []string                 `json:"messages,omitempty"`
	Interrupt *domain.InterruptRequest `json:"interrupt,omitempty"`

	// Rejected reports that the security chain refused the message. Layer
	// names the refusing layer. The session is untouched and remains usable.
	Rejected    bool           `json:"rejected,omitempty"`
	Layer       string         `json:"layer,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Annotations map[string]any `json:"annotations,omitempty"`
}

// Step processes one user turn: the message runs through the security chain,
// then advances the session's workflow by one transition. A new session is
// started on first contact.
//
// The whole turn runs under the session lock, so store access inside the
// callback goes through the store directly; the manager's locking methods
// would re-acquire the same lock.
func (e *Engine) Step(ctx context.Context, sessionID, userID, message string) (*TurnResult, error) {
	var res *TurnResult
	err := e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		state, err := e.loadOrStart(ctx, sessionID)
		if err != nil {
			return err
		}

		dec := e.chain.Process(ctx, security.Request{
			UserID:    userID,
			SessionID: sessionID,
			Message:   message,
		})
		if !dec.Allowed {
			res = &TurnResult{
				SessionID:   sessionID,
				Step:        state.CurrentStep,
				Rejected:    true,
				Layer:       dec.Layer,
				Reason:      dec.Reason,
				Messages:    []string{dec.Message},
				Annotations: dec.Annotations,
			}
			return nil
		}

		sr, err := e.runtime.Step(ctx, state, runtime.Input{Text: dec.Message})
		if err != nil {
			return err
		}
		if err := e.store.Save(ctx, sessionID, sr.State); err != nil {
			return err
		}
		res = e.turnResult(ctx, userID, sr, dec.Annotations)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Resume applies a reviewer decision to a suspended session.
func (e *Engine) Resume(ctx context.Context, sessionID string, decision domain.Decision) (*TurnResult, error) {
	var res *TurnResult
	err := e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		state, err := e.store.Load(ctx, sessionID)
		if err != nil {
			return err
		}

		sr, err := e.runtime.Resume(ctx, state, decision)
		if err != nil {
			return err
		}
		if err := e.store.Save(ctx, sessionID, sr.State); err != nil {
			return err
		}
		res = e.turnResult(ctx, "", sr, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// State returns the current checkpoint of a session.
func (e *Engine) State(ctx context.Context, sessionID string) (*domain.WorkflowState, error) {
	return e.sessions.Load(ctx, sessionID)
}

// Delete removes a session and its checkpoint.
func (e *Engine) Delete(ctx context.Context, sessionID string) error {
	return e.sessions.Delete(ctx, sessionID)
}

// Sessions lists active session IDs.
func (e *Engine) Sessions(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Pending returns the outstanding interrupt requests across all sessions,
// oldest first. Reviewer frontends poll this to build their work queue.
func (e *Engine) Pending(ctx context.Context) ([]*domain.InterruptRequest, error) {
	ids, err := e.sessions.List(ctx)
	if err != nil {
		return nil, err
	}

	var pending []*domain.InterruptRequest
	for _, id := range ids {
		state, err := e.sessions.Load(ctx, id)
		if err != nil {
			if err == domain.ErrSessionNotFound {
				continue
			}
			return nil, err
		}
		if state.Pending != nil {
			pending = append(pending, state.Pending)
		}
	}

	sortByCreation(pending)
	return pending, nil
}

// Ask answers a natural-language question against the campus directory.
// Requires a query agent configured via WithQueryAgent.
func (e *Engine) Ask(ctx context.Context, question string) (*queryguard.Answer, error) {
	if e.agent == nil {
		return nil, fmt.Errorf("no query agent configured")
	}
	return e.agent.Ask(ctx, question)
}

// Close releases background resources such as the blocklist file watcher.
func (e *Engine) Close() {
	e.chain.Close()
}

// loadOrStart reads the checkpoint straight from the store, creating and
// persisting a fresh one when the session is unknown. Callers must hold the
// session lock.
func (e *Engine) loadOrStart(ctx context.Context, sessionID string) (*domain.WorkflowState, error) {
	state, err := e.store.Load(ctx, sessionID)
	if err == nil {
		return state, nil
	}
	if err != domain.ErrSessionNotFound {
		return nil, fmt.Errorf("failed to check session existence: %w", err)
	}

	state = domain.NewState(sessionID, e.start)
	if err := e.store.Save(ctx, sessionID, state); err != nil {
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}
	return state, nil
}

// turnResult converts a runtime result into the caller-facing shape,
// sanitizing outbound messages through the chain. A message the chain
// refuses on the way out is withheld rather than delivered unsanitized.
func (e *Engine) turnResult(ctx context.Context, userID string, sr *domain.StepResult, annotations map[string]any) *TurnResult {
	res := &TurnResult{
		SessionID:   sr.State.SessionID,
		Step:        sr.State.CurrentStep,
		Terminal:    sr.Kind == domain.ResultTerminal,
		Suspended:   sr.Kind == domain.ResultSuspended,
		Interrupt:   sr.Interrupt,
		Annotations: annotations,
	}

	for _, msg := range sr.Messages {
		out := e.chain.Sanitize(ctx, security.Request{
			UserID:    userID,
			SessionID: sr.State.SessionID,
			Message:   msg,
		})
		if !out.Allowed {
			e.logger.Warn("outbound message withheld",
				"session_id", sr.State.SessionID,
				"layer", out.Layer,
				"reason", out.Reason,
			)
			continue
		}
		res.Messages = append(res.Messages, out.Message)
	}
	return res
}

func sortByCreation(reqs []*domain.InterruptRequest) {
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
}
