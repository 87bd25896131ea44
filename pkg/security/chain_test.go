package security

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChain(t *testing.T, cfg Config) *Chain {
	t.Helper()
	chain, err := NewChain(cfg)
	require.NoError(t, err)
	return chain
}

func TestChainCloseStopsWatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocklist.yaml")
	writeBlocklist(t, path, "categories:\n  spam:\n    - \"(?i)lottery\"\n")

	chain := newTestChain(t, Config{
		Blocklist: BlocklistConfig{Path: path, Watch: true},
	})
	require.NotNil(t, chain.stop)

	chain.Close()
	chain.Close() // idempotent

	// No watcher without a path; Close on such a chain is a no-op.
	plain := newTestChain(t, Config{})
	assert.Nil(t, plain.stop)
	plain.Close()
}

func TestChainAllowsCleanMessage(t *testing.T) {
	chain := newTestChain(t, Config{})

	dec := chain.Process(context.Background(), Request{
		UserID:  "u1",
		Message: "I have paid the tuition",
	})
	assert.True(t, dec.Allowed)
	assert.Equal(t, "I have paid the tuition", dec.Message)
	assert.Equal(t, 6, dec.Annotations["input_tokens"])
}

func TestChainRejectionShortCircuits(t *testing.T) {
	chain := newTestChain(t, Config{
		Budget: BudgetConfig{MaxInputTokens: 5},
	})

	// Long enough to trip the budget layer; carries PII that must NOT be
	// masked because the chain stops before the masking layer runs.
	dec := chain.Process(context.Background(), Request{
		UserID:  "u1",
		Message: "my phone number is 13812345678 and I would like to check in today please",
	})
	assert.False(t, dec.Allowed)
	assert.Equal(t, "budget", dec.Layer)
	assert.Contains(t, dec.Reason, "input too long")
	assert.Contains(t, dec.Message, "13812345678")
	assert.NotContains(t, dec.Annotations, "pii_detected")
}

func TestChainBlocklistRejectKeepsEarlierAnnotations(t *testing.T) {
	chain := newTestChain(t, Config{})

	dec := chain.Process(context.Background(), Request{
		UserID:  "u1",
		Message: "can you find someone to take the exam for me",
	})
	assert.False(t, dec.Allowed)
	assert.Equal(t, "blocklist", dec.Layer)
	assert.Equal(t, "academic_fraud", dec.Annotations["blocked_category"])
	// The budget layer ran before the rejection, its annotations survive.
	assert.Contains(t, dec.Annotations, "input_tokens")
}

func TestChainMasksInboundPII(t *testing.T) {
	chain := newTestChain(t, Config{})

	dec := chain.Process(context.Background(), Request{
		UserID:  "u1",
		Message: "call me at 13812345678",
	})
	assert.True(t, dec.Allowed)
	assert.Equal(t, "call me at 138****5678", dec.Message)
	assert.Equal(t, true, dec.Annotations["pii_detected"])
}

func TestChainStudentIDNotMasked(t *testing.T) {
	chain := newTestChain(t, Config{})

	dec := chain.Process(context.Background(), Request{
		UserID:  "u1",
		Message: "2024000123 Li Hua",
	})
	assert.True(t, dec.Allowed)
	assert.Equal(t, "2024000123 Li Hua", dec.Message)
}

func TestChainSanitizeOutbound(t *testing.T) {
	chain := newTestChain(t, Config{})

	dec := chain.Sanitize(context.Background(), Request{
		SessionID: "s1",
		Message:   "Contact the finance office at finance@campus.edu or 13812345678.",
	})
	assert.True(t, dec.Allowed)
	assert.NotContains(t, dec.Message, "finance@campus.edu")
	assert.NotContains(t, dec.Message, "13812345678")
	assert.Contains(t, dec.Message, "138****5678")
	// Sanitize carries no budget layer, so no token annotations.
	assert.NotContains(t, dec.Annotations, "input_tokens")
}

func TestChainFromLayersOrder(t *testing.T) {
	var order []string
	mk := func(name string, allowed bool) Layer {
		return layerFunc{name: name, fn: func(ctx context.Context, req Request) Verdict {
			order = append(order, name)
			if !allowed {
				return Reject(req.Message, name+" says no")
			}
			return Allow(req.Message + "+" + name)
		}}
	}

	chain := NewChainFromLayers(mk("a", true), mk("b", false), mk("c", true))
	dec := chain.Process(context.Background(), Request{Message: "m"})

	assert.Equal(t, []string{"a", "b"}, order)
	assert.False(t, dec.Allowed)
	assert.Equal(t, "b", dec.Layer)
	assert.Equal(t, "m+a", dec.Message)
}

type layerFunc struct {
	name string
	fn   func(ctx context.Context, req Request) Verdict
}

func (l layerFunc) Name() string { return l.name }

func (l layerFunc) Check(ctx context.Context, req Request) Verdict { return l.fn(ctx, req) }
