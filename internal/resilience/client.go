package resilience

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/trace"

	"ai-failover/internal/observability/logging"
	"ai-failover/internal/observability/metrics"
	"ai-failover/internal/resilience/circuitbreaker"
	"ai-failover/internal/resilience/failover"
	"ai-failover/internal/resilience/retry"
)

// ClientOption configures the collaborators of a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	logger        *slog.Logger
	metrics       circuitbreaker.Metrics
	clock         circuitbreaker.Clock
	tracer        trace.Tracer
	onStateChange func(name string, from, to gobreaker.State)
}

// WithLogger sets the logger for circuit transitions. Default: slog.Default()
func WithLogger(l *slog.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = l }
}

// WithCircuitMetrics sets the circuit metrics sink. Default: Prometheus collectors
func WithCircuitMetrics(m circuitbreaker.Metrics) ClientOption {
	return func(o *clientOptions) { o.metrics = m }
}

// WithClock replaces the breaker clock, mainly for tests.
func WithClock(c circuitbreaker.Clock) ClientOption {
	return func(o *clientOptions) { o.clock = c }
}

// WithTracer sets the tracer for failover spans. Default: the global tracer
func WithTracer(t trace.Tracer) ClientOption {
	return func(o *clientOptions) { o.tracer = t }
}

// OnStateChange registers a callback for circuit transitions.
// It runs under the breaker lock and must not call back into the client.
func OnStateChange(fn func(name string, from, to gobreaker.State)) ClientOption {
	return func(o *clientOptions) { o.onStateChange = fn }
}

// Client sends requests through the failover chain.
// It has the same calling convention as a single Adapter and is safe for concurrent use.
type Client[In, Out any] struct {
	chain    *failover.Chain[In, Out]
	circuits *circuitbreaker.Registry
	names    []string
}

// New validates cfg and builds a client. Nothing is created when validation fails;
// the error then wraps ErrInvalidConfig.
func New[In, Out any](cfg Config[In, Out], opts ...ClientOption) (*Client[In, Out], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	o := clientOptions{metrics: metrics.NewCircuitMetrics()}
	for _, opt := range opts {
		opt(&o)
	}

	backends := cfg.backends()
	names := make([]string, len(backends))
	for i, b := range backends {
		names[i] = b.Name
	}

	circuits, err := circuitbreaker.NewRegistry(circuitbreaker.Config{
		Enabled:          cfg.Options.CircuitBreakerEnabled,
		FailureThreshold: cfg.Options.FailureThreshold,
		SuccessThreshold: cfg.Options.SuccessThreshold,
		OpenTimeout:      cfg.Options.OpenTimeout,
		Clock:            o.clock,
		Metrics:          o.metrics,
		Logger:           o.logger,
		OnStateChange:    o.onStateChange,
	}, names...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	handles := make([]failover.Handle[In, Out], len(backends))
	for i, b := range backends {
		handles[i] = failover.Handle[In, Out]{
			Name:    b.Name,
			Breaker: circuits.Get(b.Name),
			Send:    b.Adapter.Send,
		}
	}

	chain, err := failover.NewChain(handles, retry.Config{
		MaxRetries: cfg.Options.MaxRetries,
		Delay:      cfg.Options.RetryDelay,
	}, failover.WithTracer(o.tracer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return &Client[In, Out]{
		chain:    chain,
		circuits: circuits,
		names:    names,
	}, nil
}

// Send delivers in to the first backend able to answer.
// The error is either the original NonRecoverable failure or failover.ErrAllProvidersFailed
// (the backend's own failure when only one backend is configured).
func (c *Client[In, Out]) Send(ctx context.Context, in In) (Out, error) {
	if logging.RequestIDFromContext(ctx) == "" {
		ctx = logging.ContextWithRequestID(ctx, logging.NewRequestID())
	}
	ctx = logging.WithLogger(ctx, logging.WithRequestID(ctx, logging.FromContext(ctx)))

	return c.chain.Execute(ctx, in)
}

// Circuits returns a snapshot of every backend's circuit, in failover order.
func (c *Client[In, Out]) Circuits() []circuitbreaker.Snapshot {
	return c.circuits.Snapshots()
}

// Backends returns backend names in failover order.
func (c *Client[In, Out]) Backends() []string {
	return append([]string(nil), c.names...)
}

// ResetCircuits closes every circuit.
func (c *Client[In, Out]) ResetCircuits() {
	c.circuits.Reset()
}
