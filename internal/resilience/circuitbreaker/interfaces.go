package circuitbreaker

import (
	"time"

	"github.com/sony/gobreaker"
)

// Clock provides an abstraction for time operations to enable testing.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// SystemClock is a Clock implementation that uses the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Metrics records circuit breaker state for monitoring.
// Implementations must be safe for concurrent use.
type Metrics interface {
	// RecordCircuitState records the current state of a backend's circuit.
	RecordCircuitState(name string, state gobreaker.State)

	// RecordTransition counts a state transition.
	RecordTransition(name string, from, to gobreaker.State)
}

// NoOpMetrics implements Metrics with no-op implementations.
type NoOpMetrics struct{}

// RecordCircuitState is a no-op implementation.
func (NoOpMetrics) RecordCircuitState(string, gobreaker.State) {}

// RecordTransition is a no-op implementation.
func (NoOpMetrics) RecordTransition(string, gobreaker.State, gobreaker.State) {}
