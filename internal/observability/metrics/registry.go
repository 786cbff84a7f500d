// Package metrics provides centralized Prometheus metrics for the failover layer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Attempt outcomes recorded by the retry controller.
const (
	OutcomeSuccess        = "success"
	OutcomeRetryable      = "retryable"
	OutcomeRecoverable    = "recoverable"
	OutcomeNonRecoverable = "non-recoverable"
	OutcomeRejected       = "rejected"
)

// Request results recorded by the failover chain.
const (
	ResultSuccess   = "success"
	ResultAborted   = "aborted"
	ResultExhausted = "exhausted"
)

// Circuit metrics track per-backend breaker state
var (
	// CircuitState tracks breaker state.
	// 0 = closed, 1 = half-open, 2 = open
	CircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "failover_circuit_state",
			Help: "Backend circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"backend"},
	)

	// CircuitTransitionsTotal counts breaker state transitions
	CircuitTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "failover_circuit_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"backend", "from", "to"},
	)
)

// Chain metrics track retry and fallback behaviour
var (
	// AttemptsTotal counts backend call attempts by outcome
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "failover_attempts_total",
			Help: "Total number of backend call attempts",
		},
		[]string{"backend", "outcome"},
	)

	// BackendSkippedTotal counts backends skipped because their circuit was open
	BackendSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "failover_backend_skipped_total",
			Help: "Total number of times a backend was skipped by its circuit breaker",
		},
		[]string{"backend"},
	)

	// RequestsTotal counts failover chain executions by result
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "failover_requests_total",
			Help: "Total number of requests through the failover chain",
		},
		[]string{"result"},
	)

	// RequestDuration measures end-to-end chain duration
	RequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "failover_request_duration_seconds",
			Help:    "Failover chain request duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)
)

// Backend metrics track adapter latency
var (
	// BackendRequestDuration measures a single backend call.
	// Buckets are tuned for LLM response times.
	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM backend request duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"backend"},
	)
)

// RecordAttempt records the outcome of one backend attempt
func RecordAttempt(backend, outcome string) {
	AttemptsTotal.WithLabelValues(backend, outcome).Inc()
}

// RecordSkipped records a backend skipped by its open circuit
func RecordSkipped(backend string) {
	BackendSkippedTotal.WithLabelValues(backend).Inc()
}

// RecordRequest records the result and duration of a chain execution
func RecordRequest(result string, duration time.Duration) {
	RequestsTotal.WithLabelValues(result).Inc()
	RequestDuration.Observe(duration.Seconds())
}

// RecordBackendDuration records the latency of a single backend call
func RecordBackendDuration(backend string, duration time.Duration) {
	BackendRequestDuration.WithLabelValues(backend).Observe(duration.Seconds())
}
