package metrics

import (
	"github.com/sony/gobreaker"
)

// CircuitMetrics exports circuit breaker state changes to Prometheus.
type CircuitMetrics struct{}

// NewCircuitMetrics creates a new Prometheus-backed circuit recorder.
func NewCircuitMetrics() CircuitMetrics {
	return CircuitMetrics{}
}

// RecordCircuitState sets the state gauge of a backend.
func (CircuitMetrics) RecordCircuitState(name string, state gobreaker.State) {
	CircuitState.WithLabelValues(name).Set(float64(state))
}

// RecordTransition counts a state transition of a backend.
func (CircuitMetrics) RecordTransition(name string, from, to gobreaker.State) {
	CircuitTransitionsTotal.WithLabelValues(name, from.String(), to.String()).Inc()
}
