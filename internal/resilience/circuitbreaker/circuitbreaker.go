// Package circuitbreaker provides the per-backend circuit breaker used by the failover chain.
// States and counters reuse the github.com/sony/gobreaker vocabulary, but the state machine is
// driven by consecutive outcomes and split into Allow / RecordSuccess / RecordFailure so that the
// retry loop can gate every attempt individually.
package circuitbreaker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name is the backend name for logging and metrics
	Name string

	// Enabled controls whether an open circuit blocks calls.
	// When false, Allow always returns true but state is still tracked.
	Enabled bool

	// FailureThreshold is the number of consecutive failures that opens a closed circuit
	FailureThreshold int

	// SuccessThreshold is the number of consecutive successes that closes a half-open circuit
	SuccessThreshold int

	// OpenTimeout is how long to wait in open state before letting a probe through
	OpenTimeout time.Duration

	// Clock provides time abstraction for testing. Default: SystemClock
	Clock Clock

	// Metrics receives state changes. Default: NoOpMetrics
	Metrics Metrics

	// Logger receives one record per transition. Default: slog.Default()
	Logger *slog.Logger

	// OnStateChange is called once per actual transition, while the breaker lock is held.
	// It must not call back into the breaker.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultConfig returns a default configuration for circuit breakers.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		Enabled:          false,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      60 * time.Second,
	}
}

// Validate checks configuration correctness.
func (c Config) Validate() error {
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("failure threshold must be positive, got %d", c.FailureThreshold)
	}
	if c.SuccessThreshold <= 0 {
		return fmt.Errorf("success threshold must be positive, got %d", c.SuccessThreshold)
	}
	if c.OpenTimeout <= 0 {
		return fmt.Errorf("open timeout must be positive, got %v", c.OpenTimeout)
	}
	return nil
}

// Snapshot is a point-in-time copy of a breaker's state.
type Snapshot struct {
	Name string
	// Enabled is false when an open circuit does not block calls.
	Enabled  bool
	State    gobreaker.State
	Counts   gobreaker.Counts
	OpenedAt time.Time
}

// Breaker is the circuit state of a single backend.
//
//   - Closed: calls pass; FailureThreshold consecutive failures open the circuit
//   - Open: calls are rejected until OpenTimeout has elapsed since the circuit opened
//   - Half-Open: calls pass as probes; SuccessThreshold consecutive successes close
//     the circuit, any failure reopens it
//
// The Open to Half-Open move is evaluated lazily by Allow; there is no timer.
type Breaker struct {
	config Config

	mu       sync.Mutex
	state    gobreaker.State
	counts   gobreaker.Counts
	openedAt time.Time
}

// New creates a closed circuit breaker. It panics on an invalid configuration;
// callers are expected to validate configuration first.
func New(cfg Config) *Breaker {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("circuitbreaker: %v", err))
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NoOpMetrics{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	cb := &Breaker{
		config: cfg,
		state:  gobreaker.StateClosed,
	}
	cfg.Metrics.RecordCircuitState(cfg.Name, gobreaker.StateClosed)

	return cb
}

// Name returns the backend name of the circuit breaker.
func (cb *Breaker) Name() string {
	return cb.config.Name
}

// Enabled reports whether an open circuit blocks calls.
func (cb *Breaker) Enabled() bool {
	return cb.config.Enabled
}

// Allow reports whether a call may reach the backend.
// An open circuit whose timeout has elapsed moves to half-open and admits the call as a probe.
func (cb *Breaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == gobreaker.StateOpen &&
		cb.config.Clock.Now().Sub(cb.openedAt) >= cb.config.OpenTimeout {
		cb.setState(gobreaker.StateHalfOpen)
	}

	if !cb.config.Enabled {
		return true
	}
	return cb.state != gobreaker.StateOpen
}

// RecordSuccess records a successful call.
func (cb *Breaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.counts.Requests++
	cb.counts.TotalSuccesses++
	cb.counts.ConsecutiveSuccesses++
	cb.counts.ConsecutiveFailures = 0

	if cb.state == gobreaker.StateHalfOpen &&
		int(cb.counts.ConsecutiveSuccesses) >= cb.config.SuccessThreshold {
		cb.setState(gobreaker.StateClosed)
	}
}

// RecordFailure records a failed call.
func (cb *Breaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.counts.Requests++
	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0

	switch cb.state {
	case gobreaker.StateClosed:
		if int(cb.counts.ConsecutiveFailures) >= cb.config.FailureThreshold {
			cb.setState(gobreaker.StateOpen)
		}
	case gobreaker.StateHalfOpen:
		cb.setState(gobreaker.StateOpen)
	}
}

// State returns the stored state without evaluating the open timeout.
func (cb *Breaker) State() gobreaker.State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Counts returns a copy of the outcome counters.
func (cb *Breaker) Counts() gobreaker.Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Snapshot returns the current state, counters and the time the circuit last opened.
func (cb *Breaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Snapshot{
		Name:     cb.config.Name,
		Enabled:  cb.Enabled(),
		State:    cb.state,
		Counts:   cb.counts,
		OpenedAt: cb.openedAt,
	}
}

// Reset returns the breaker to the closed state with cleared counters.
//
// This is useful for testing or manual intervention.
func (cb *Breaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.counts = gobreaker.Counts{}
	cb.openedAt = time.Time{}
	if cb.state != gobreaker.StateClosed {
		cb.setState(gobreaker.StateClosed)
	}
}

// setState must be called with cb.mu held.
func (cb *Breaker) setState(to gobreaker.State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to

	switch to {
	case gobreaker.StateOpen:
		cb.openedAt = cb.config.Clock.Now()
	case gobreaker.StateHalfOpen:
		// The probe is the first observation of the new state.
		cb.counts.ConsecutiveSuccesses = 0
	case gobreaker.StateClosed:
		cb.counts.ConsecutiveSuccesses = 0
		cb.counts.ConsecutiveFailures = 0
	}

	cb.config.Metrics.RecordCircuitState(cb.config.Name, to)
	cb.config.Metrics.RecordTransition(cb.config.Name, from, to)

	cb.config.Logger.Warn("circuit breaker state changed",
		slog.String("circuit", cb.config.Name),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.Int("consecutive_failures", int(cb.counts.ConsecutiveFailures)),
		slog.Duration("open_timeout", cb.config.OpenTimeout),
	)

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}
