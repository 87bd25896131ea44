package security

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"
)

// Budget is the first, input-only layer. It rejects a message whose token
// cost alone exceeds the per-request ceiling, or whose cost would push the
// user's rolling daily spend over the budget. Rejection short-circuits the
// chain; no later layer runs.
type Budget struct {
	maxInputTokens int
	dailyCeiling   float64
	costPerKilo    float64
	usage          *UsageTracker
}

// NewBudget creates the budget layer with its own usage tracker.
func NewBudget(cfg BudgetConfig) *Budget {
	if cfg.MaxInputTokens <= 0 {
		cfg.MaxInputTokens = DefaultMaxInputTokens
	}
	if cfg.DailyCeiling <= 0 {
		cfg.DailyCeiling = DefaultDailyCeiling
	}
	if cfg.CostPerKiloTokens <= 0 {
		cfg.CostPerKiloTokens = DefaultCostPerKiloTokens
	}
	return &Budget{
		maxInputTokens: cfg.MaxInputTokens,
		dailyCeiling:   cfg.DailyCeiling,
		costPerKilo:    cfg.CostPerKiloTokens,
		usage:          NewUsageTracker(),
	}
}

func (b *Budget) Name() string { return "budget" }

// Check estimates the message cost and charges it against the user's
// rolling window atomically, so simultaneous requests cannot slip past the
// ceiling together.
func (b *Budget) Check(ctx context.Context, req Request) Verdict {
	tokens := EstimateTokens(req.Message)
	if tokens > b.maxInputTokens {
		return Reject(req.Message, fmt.Sprintf("input too long (%d tokens, limit %d)", tokens, b.maxInputTokens))
	}

	cost := float64(tokens) / 1000 * b.costPerKilo
	spent, ok := b.usage.Charge(req.UserID, cost, b.dailyCeiling)
	if !ok {
		return Reject(req.Message, fmt.Sprintf("daily budget exceeded (spent %.4f, ceiling %.2f)", spent, b.dailyCeiling))
	}

	v := Allow(req.Message)
	v.Annotations = map[string]any{
		"input_tokens":   tokens,
		"estimated_cost": cost,
	}
	return v
}

// EstimateTokens approximates the tokenizer's output from rune count.
// Good enough for budgeting; the generation service meters precisely.
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return n/4 + 1
}

// UsageTracker keeps per-user spend over a rolling day. It is the one piece
// of state shared across sessions, so all mutation happens under its lock.
type UsageTracker struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	users  map[string]*userUsage
}

type userUsage struct {
	windowStart time.Time
	spent       float64
}

// NewUsageTracker creates a tracker with the default 24h window.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{
		window: DefaultUsageWindow,
		now:    time.Now,
		users:  make(map[string]*userUsage),
	}
}

// Charge adds cost to the user's window if it fits under the ceiling.
// Returns the spend after the call and whether the charge was accepted.
func (t *UsageTracker) Charge(userID string, cost, ceiling float64) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	u := t.users[userID]
	if u == nil || now.Sub(u.windowStart) > t.window {
		u = &userUsage{windowStart: now}
		t.users[userID] = u
	}

	if u.spent+cost > ceiling {
		return u.spent, false
	}
	u.spent += cost
	return u.spent, true
}

// Spent reports the user's current window spend.
func (t *UsageTracker) Spent(userID string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	u := t.users[userID]
	if u == nil || t.now().Sub(u.windowStart) > t.window {
		return 0
	}
	return u.spent
}
