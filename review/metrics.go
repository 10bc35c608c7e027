package review

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus metrics for review orchestration.
//
// Metrics exposed (namespaced "scijudge_"):
//
//   - active_runs (gauge): debate runs currently executing
//   - phase_latency_ms (histogram): phase execution duration,
//     labels: phase, status (success/degraded)
//   - fallbacks_total (counter): interpreter/gateway fallbacks, label: phase
//   - runs_total (counter): finished runs, label: outcome (completed/error)
//   - jobs_total (counter): finished jobs, label: outcome (completed/error/cancelled)
//   - finalizations_total (counter): papers whose verdict flipped to final
//   - advance_conflicts_total (counter): optimistic-concurrency retries on
//     the job record
//   - provider_errors_total (counter): backend call failures,
//     labels: provider, kind
//   - violations_total (counter): review-principle violations flagged
//     during deliberation
//
// Expose via promhttp against the registry passed to NewMetrics.
type Metrics struct {
	activeRuns       prometheus.Gauge
	phaseLatency     *prometheus.HistogramVec
	fallbacks        *prometheus.CounterVec
	runs             *prometheus.CounterVec
	jobs             *prometheus.CounterVec
	finalizations    prometheus.Counter
	advanceConflicts prometheus.Counter
	providerErrors   *prometheus.CounterVec
	violations       prometheus.Counter
}

// NewMetrics creates and registers review metrics with the given
// registry. Pass prometheus.DefaultRegisterer for the global registry,
// or a private prometheus.NewRegistry() for isolation (recommended in
// tests).
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		activeRuns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "scijudge",
			Name:      "active_runs",
			Help:      "Debate runs currently executing",
		}),
		phaseLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scijudge",
			Name:      "phase_latency_ms",
			Help:      "Phase execution duration in milliseconds",
			Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000, 30000, 60000},
		}, []string{"phase", "status"}),
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scijudge",
			Name:      "fallbacks_total",
			Help:      "Fallback values substituted for unusable participant output",
		}, []string{"phase"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scijudge",
			Name:      "runs_total",
			Help:      "Debate runs finished, by outcome",
		}, []string{"outcome"}),
		jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scijudge",
			Name:      "jobs_total",
			Help:      "Review jobs finished, by outcome",
		}, []string{"outcome"}),
		finalizations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "scijudge",
			Name:      "finalizations_total",
			Help:      "Papers whose verdict flipped to final",
		}),
		advanceConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "scijudge",
			Name:      "advance_conflicts_total",
			Help:      "Optimistic-concurrency conflicts while committing job progress",
		}),
		providerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scijudge",
			Name:      "provider_errors_total",
			Help:      "Reasoning backend call failures, by provider and error kind",
		}, []string{"provider", "kind"}),
		violations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "scijudge",
			Name:      "violations_total",
			Help:      "Review-principle violations flagged during deliberation",
		}),
	}
}

// RecordPhaseLatency records one phase execution duration.
// Status is "success" or "degraded".
func (m *Metrics) RecordPhaseLatency(phase string, latency time.Duration, status string) {
	m.phaseLatency.WithLabelValues(phase, status).Observe(float64(latency.Milliseconds()))
}

// IncrementFallbacks counts a fallback substitution in phase.
func (m *Metrics) IncrementFallbacks(phase string) {
	m.fallbacks.WithLabelValues(phase).Inc()
}

// RunStarted and RunFinished maintain the active_runs gauge; outcome is
// "completed" or "error".
func (m *Metrics) RunStarted() {
	m.activeRuns.Inc()
}

// RunFinished decrements the active-run gauge and counts the outcome.
func (m *Metrics) RunFinished(outcome string) {
	m.activeRuns.Dec()
	m.runs.WithLabelValues(outcome).Inc()
}

// JobFinished counts a finished job; outcome is "completed", "error",
// or "cancelled".
func (m *Metrics) JobFinished(outcome string) {
	m.jobs.WithLabelValues(outcome).Inc()
}

// IncrementFinalizations counts a paper flipping to final.
func (m *Metrics) IncrementFinalizations() {
	m.finalizations.Inc()
}

// IncrementAdvanceConflicts counts an optimistic-concurrency retry.
func (m *Metrics) IncrementAdvanceConflicts() {
	m.advanceConflicts.Inc()
}

// RecordProviderError counts a backend call failure by provider and
// error kind.
func (m *Metrics) RecordProviderError(provider, kind string) {
	m.providerErrors.WithLabelValues(provider, kind).Inc()
}

// IncrementViolations counts a flagged review-principle violation.
func (m *Metrics) IncrementViolations() {
	m.violations.Inc()
}
