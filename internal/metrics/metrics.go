package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var durationBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

// Metrics holds the collectors for saga outcomes, optimistic-concurrency
// retries and invite resolutions.
type Metrics struct {
	sagaRuns             *prometheus.CounterVec
	sagaDuration         *prometheus.HistogramVec
	compensationFailures *prometheus.CounterVec
	contentionRetries    *prometheus.CounterVec
	inviteResolutions    *prometheus.CounterVec
	categoryCorrections  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sagaRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamforge",
			Subsystem: "saga",
			Name:      "runs_total",
			Help:      "Count of saga runs by outcome",
		}, []string{"saga", "outcome"}),

		sagaDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "teamforge",
			Subsystem: "saga",
			Name:      "duration_seconds",
			Help:      "Latency distribution of saga runs",
			Buckets:   durationBuckets,
		}, []string{"saga"}),

		compensationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamforge",
			Subsystem: "saga",
			Name:      "compensation_failures_total",
			Help:      "Compensations that failed and left a degraded outcome",
		}, []string{"saga", "step"}),

		contentionRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamforge",
			Subsystem: "store",
			Name:      "contention_retries_total",
			Help:      "Conditional writes retried after losing a race",
		}, []string{"operation"}),

		inviteResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamforge",
			Subsystem: "invites",
			Name:      "resolutions_total",
			Help:      "Invite resolutions by outcome",
		}, []string{"outcome"}),

		categoryCorrections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "teamforge",
			Subsystem: "categories",
			Name:      "count_corrections_total",
			Help:      "Category team counts rewritten by reconciliation",
		}),
	}

	if reg == nil {
		return m
	}

	m.sagaRuns = register(reg, m.sagaRuns)
	m.sagaDuration = register(reg, m.sagaDuration)
	m.compensationFailures = register(reg, m.compensationFailures)
	m.contentionRetries = register(reg, m.contentionRetries)
	m.inviteResolutions = register(reg, m.inviteResolutions)
	m.categoryCorrections = register(reg, m.categoryCorrections)
	return m
}

// register adopts an already registered collector of the same shape so
// several instances can share one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *Metrics) SagaFinished(saga, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.sagaRuns.WithLabelValues(saga, outcome).Inc()
	m.sagaDuration.WithLabelValues(saga).Observe(seconds)
}

func (m *Metrics) CompensationFailed(saga, step string) {
	if m == nil {
		return
	}
	m.compensationFailures.WithLabelValues(saga, step).Inc()
}

func (m *Metrics) ContentionRetry(operation string) {
	if m == nil {
		return
	}
	m.contentionRetries.WithLabelValues(operation).Inc()
}

func (m *Metrics) InviteResolved(outcome string) {
	if m == nil {
		return
	}
	m.inviteResolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CategoryCorrected(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.categoryCorrections.Add(float64(n))
}
