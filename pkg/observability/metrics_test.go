package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/enrollkit/enrollkit/pkg/domain"
)

func TestHooksFeedCollectors(t *testing.T) {
	m := NewMetrics()
	hooks := m.Hooks()
	ctx := context.Background()

	step := &domain.StepEvent{
		SessionID: "s1",
		Step:      domain.StepVerification,
		Outcome:   domain.OutcomeFailure,
		Timestamp: time.Now(),
	}
	hooks.OnStepEnter(ctx, step)
	hooks.OnStepLeave(ctx, step)

	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.turnsTotal.WithLabelValues("verification", "failure")))
	// one enter/leave pair yields exactly one duration sample for the step
	assert.Equal(t, 1, testutil.CollectAndCount(m.stepDuration))
	m.mu.Lock()
	assert.Empty(t, m.entered)
	m.mu.Unlock()

	interrupt := &domain.InterruptEvent{
		SessionID: "s1",
		RequestID: "req-1",
		Kind:      domain.KindPaymentConfirmation,
	}
	hooks.OnSuspend(ctx, interrupt)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.suspensionsActive))

	interrupt.Choice = domain.DecisionApprove
	hooks.OnResume(ctx, interrupt)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.suspensionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.interruptsTotal.WithLabelValues("payment_confirmation", "approve")))

	hooks.OnEscalate(ctx, step)
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.escalationsTotal.WithLabelValues("verification")))
}

func TestRecordHelpers(t *testing.T) {
	m := NewMetrics()

	m.RecordRejection("blocklist")
	m.RecordRejection("blocklist")
	m.RecordQueryAttempt("refused")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rejectionsTotal.WithLabelValues("blocklist")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queryAttemptsTotal.WithLabelValues("refused")))
}
