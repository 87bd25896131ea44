package security

import (
	"context"
	"log/slog"

	"github.com/enrollkit/enrollkit/internal/logging"
)

// Request is one inbound message plus the identifiers the layers key on.
type Request struct {
	UserID    string
	SessionID string
	Message   string
}

// Verdict is a single layer's output: a possibly transformed message, an
// allow/reject decision, and audit annotations.
type Verdict struct {
	Allowed     bool
	Message     string
	Reason      string
	Annotations map[string]any
}

// Allow passes the (possibly transformed) message to the next layer.
func Allow(message string) Verdict {
	return Verdict{Allowed: true, Message: message}
}

// Reject stops the chain with the given reason.
func Reject(message, reason string) Verdict {
	return Verdict{Allowed: false, Message: message, Reason: reason}
}

// Layer is one link in the chain. Each layer receives the previous layer's
// message and may transform it, annotate it, or short-circuit the chain.
type Layer interface {
	Name() string
	Check(ctx context.Context, req Request) Verdict
}

// Decision is the aggregate result of running the chain: the final message,
// the final allowed flag, and the union of all layers' annotations.
// Immutable once produced.
type Decision struct {
	Allowed     bool           `json:"allowed"`
	Message     string         `json:"message"`
	Reason      string         `json:"reason,omitempty"`
	Layer       string         `json:"layer,omitempty"`
	Annotations map[string]any `json:"annotations,omitempty"`
}

// Chain applies an ordered, short-circuiting sequence of layers to every
// inbound message, and the transform-only layers to outbound content.
type Chain struct {
	inbound  []Layer
	outbound []Layer
	logger   *slog.Logger
	stop     context.CancelFunc
}

// Option configures the Chain.
type Option func(*Chain)

// WithLogger sets a structured logger for the chain.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chain) { c.logger = logger }
}

// NewChain builds the standard four-layer pipeline: budget, truncation,
// blocklist, PII. The budget layer is input-only; outbound sanitization
// reapplies the remaining layers, since generated content can itself carry
// sensitive data.
func NewChain(cfg Config, opts ...Option) (*Chain, error) {
	c := &Chain{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}

	budget := NewBudget(cfg.Budget)
	truncate := NewTruncation(cfg.Truncation)
	blocklist, err := NewBlocklist(cfg.Blocklist)
	if err != nil {
		return nil, err
	}
	if cfg.Blocklist.Watch && cfg.Blocklist.Path != "" {
		watchCtx, cancel := context.WithCancel(context.Background())
		if err := blocklist.Watch(watchCtx, c.logger); err != nil {
			cancel()
			c.logger.Warn("blocklist watch disabled", "err", err)
		} else {
			c.stop = cancel
		}
	}
	pii := NewPIIMasker(cfg.PII)

	c.inbound = []Layer{budget, truncate, blocklist, pii}
	c.outbound = []Layer{truncate, blocklist, pii}
	return c, nil
}

// NewChainFromLayers assembles a chain with explicit layers; every layer is
// applied both inbound and outbound. Used by tests and custom deployments.
func NewChainFromLayers(layers ...Layer) *Chain {
	return &Chain{inbound: layers, outbound: layers, logger: logging.NewNop()}
}

// Close stops the blocklist file watcher, if one was started. Safe to call
// more than once and on chains without a watcher.
func (c *Chain) Close() {
	if c.stop != nil {
		c.stop()
	}
}

// Process runs the inbound chain over the message.
func (c *Chain) Process(ctx context.Context, req Request) Decision {
	return c.apply(ctx, req, c.inbound)
}

// Sanitize runs the outbound (transform-only) chain over generated content
// before it is returned to the caller.
func (c *Chain) Sanitize(ctx context.Context, req Request) Decision {
	return c.apply(ctx, req, c.outbound)
}

func (c *Chain) apply(ctx context.Context, req Request, layers []Layer) Decision {
	annotations := make(map[string]any)
	message := req.Message

	for _, layer := range layers {
		verdict := layer.Check(ctx, Request{
			UserID:    req.UserID,
			SessionID: req.SessionID,
			Message:   message,
		})
		for k, v := range verdict.Annotations {
			annotations[k] = v
		}
		if !verdict.Allowed {
			c.logger.Info("message rejected",
				"layer", layer.Name(),
				"user_id", req.UserID,
				"reason", verdict.Reason,
			)
			return Decision{
				Allowed:     false,
				Message:     message,
				Reason:      verdict.Reason,
				Layer:       layer.Name(),
				Annotations: annotations,
			}
		}
		message = verdict.Message
	}

	return Decision{Allowed: true, Message: message, Annotations: annotations}
}
