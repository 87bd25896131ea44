package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/enrollkit/enrollkit/pkg/domain"
)

// Metrics holds the Prometheus collectors for the check-in engine.
type Metrics struct {
	turnsTotal         *prometheus.CounterVec
	stepDuration       *prometheus.HistogramVec
	escalationsTotal   *prometheus.CounterVec
	suspensionsActive  prometheus.Gauge
	interruptsTotal    *prometheus.CounterVec
	rejectionsTotal    *prometheus.CounterVec
	queryAttemptsTotal *prometheus.CounterVec

	// invocation start times keyed by session, for duration observation
	mu      sync.Mutex
	entered map[string]time.Time

	registry *prometheus.Registry
}

// NewMetrics creates a metrics instance with its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		turnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrollkit_turns_total",
				Help: "Total turns processed by step and outcome",
			},
			[]string{"step", "outcome"},
		),

		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "enrollkit_step_duration_seconds",
				Help:    "Processing time of a single engine invocation, by step",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"step"},
		),

		escalationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrollkit_escalations_total",
				Help: "Total escalations to manual review by originating step",
			},
			[]string{"from_step"},
		),

		suspensionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "enrollkit_suspensions_active",
				Help: "Number of sessions currently suspended on a pending interrupt",
			},
		),

		interruptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrollkit_interrupts_total",
				Help: "Total interrupt resolutions by kind and choice",
			},
			[]string{"kind", "choice"},
		),

		rejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrollkit_security_rejections_total",
				Help: "Total messages rejected by the security chain, by layer",
			},
			[]string{"layer"},
		),

		queryAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrollkit_query_attempts_total",
				Help: "Total query translation attempts by validation status",
			},
			[]string{"status"},
		),

		entered:  make(map[string]time.Time),
		registry: registry,
	}

	registry.MustRegister(
		m.turnsTotal,
		m.stepDuration,
		m.escalationsTotal,
		m.suspensionsActive,
		m.interruptsTotal,
		m.rejectionsTotal,
		m.queryAttemptsTotal,
	)

	return m
}

// Hooks returns lifecycle hooks that feed these collectors. Pass them to the
// engine via WithHooks.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, ev *domain.StepEvent) {
			m.mu.Lock()
			m.entered[ev.SessionID] = time.Now()
			m.mu.Unlock()
		},
		OnStepLeave: func(ctx context.Context, ev *domain.StepEvent) {
			m.turnsTotal.WithLabelValues(string(ev.Step), string(ev.Outcome)).Inc()

			m.mu.Lock()
			start, ok := m.entered[ev.SessionID]
			delete(m.entered, ev.SessionID)
			m.mu.Unlock()
			if ok {
				m.stepDuration.WithLabelValues(string(ev.Step)).Observe(time.Since(start).Seconds())
			}
		},
		OnSuspend: func(ctx context.Context, ev *domain.InterruptEvent) {
			m.suspensionsActive.Inc()
		},
		OnResume: func(ctx context.Context, ev *domain.InterruptEvent) {
			m.suspensionsActive.Dec()
			m.interruptsTotal.WithLabelValues(string(ev.Kind), ev.Choice).Inc()
		},
		OnEscalate: func(ctx context.Context, ev *domain.StepEvent) {
			m.escalationsTotal.WithLabelValues(string(ev.Step)).Inc()
		},
	}
}

// RecordRejection records a security-chain rejection attributed to a layer.
func (m *Metrics) RecordRejection(layer string) {
	m.rejectionsTotal.WithLabelValues(layer).Inc()
}

// RecordQueryAttempt records a query outcome ("ok" or "refused").
func (m *Metrics) RecordQueryAttempt(status string) {
	m.queryAttemptsTotal.WithLabelValues(status).Inc()
}

// Handler returns the Prometheus scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
