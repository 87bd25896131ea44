package security

import "context"

// Truncation bounds message length to protect the context window. When a
// message exceeds the ceiling it keeps the most recent content (the tail),
// flags the cut in annotations, and never rejects.
type Truncation struct {
	maxChars int
}

// NewTruncation creates the truncation layer.
func NewTruncation(cfg TruncationConfig) *Truncation {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	return &Truncation{maxChars: cfg.MaxChars}
}

func (t *Truncation) Name() string { return "truncation" }

func (t *Truncation) Check(ctx context.Context, req Request) Verdict {
	runes := []rune(req.Message)
	if len(runes) <= t.maxChars {
		return Allow(req.Message)
	}

	truncated := string(runes[len(runes)-t.maxChars:])
	v := Allow(truncated)
	v.Annotations = map[string]any{
		"truncated":       true,
		"original_length": len(runes),
	}
	return v
}
