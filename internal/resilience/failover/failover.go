// Package failover walks an ordered list of backends until one of them answers.
//
// For every backend the chain consults its circuit breaker, runs the call through the
// retry controller and acts on the classified outcome: success stops the chain, a
// NonRecoverable failure aborts it, anything else advances to the next backend.
package failover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ai-failover/internal/observability/logging"
	"ai-failover/internal/observability/metrics"
	"ai-failover/internal/observability/tracing"
	"ai-failover/internal/resilience/circuitbreaker"
	"ai-failover/internal/resilience/classify"
	"ai-failover/internal/resilience/retry"
)

// ErrAllProvidersFailed is returned when every backend was skipped or exhausted
// without a NonRecoverable failure.
var ErrAllProvidersFailed = errors.New("all providers failed")

// Handle binds one backend call to its circuit breaker.
type Handle[In, Out any] struct {
	Name    string
	Breaker *circuitbreaker.Breaker
	Send    func(ctx context.Context, in In) (Out, error)
}

// Option configures a Chain.
type Option func(*options)

type options struct {
	tracer trace.Tracer
}

// WithTracer sets the tracer used for chain spans. Default: the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// Chain is an ordered, immutable list of backends.
// It is safe for concurrent use; the only shared state lives in the breakers.
type Chain[In, Out any] struct {
	handles []Handle[In, Out]
	retry   retry.Config
	tracer  trace.Tracer
}

// NewChain creates a chain that tries handles in the given order.
func NewChain[In, Out any](handles []Handle[In, Out], cfg retry.Config, opts ...Option) (*Chain[In, Out], error) {
	if len(handles) == 0 {
		return nil, errors.New("failover chain needs at least one backend")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for i, h := range handles {
		if h.Breaker == nil || h.Send == nil {
			return nil, fmt.Errorf("backend %d (%q) is missing its breaker or send function", i, h.Name)
		}
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	return &Chain[In, Out]{
		handles: append([]Handle[In, Out](nil), handles...),
		retry:   cfg,
		tracer:  o.tracer,
	}, nil
}

// Len returns the number of backends in the chain.
func (c *Chain[In, Out]) Len() int {
	return len(c.handles)
}

// Execute sends in to the first backend able to answer.
//
// The returned error is one of:
//   - the original failure of the backend that failed NonRecoverably
//   - ErrAllProvidersFailed when two or more backends were all skipped or exhausted
//   - the original failure of the only backend (gobreaker.ErrOpenState if it was skipped)
func (c *Chain[In, Out]) Execute(ctx context.Context, in In) (Out, error) {
	var zero Out
	start := time.Now()

	ctx, span := tracing.StartSpan(ctx, c.tracer, "failover.execute",
		attribute.Int("failover.backends", c.Len()),
	)
	defer span.End()

	logger := logging.FromContext(ctx)

	var lastErr error
	for i, h := range c.handles {
		if !h.Breaker.Allow() {
			metrics.RecordSkipped(h.Name)
			span.AddEvent("backend skipped", trace.WithAttributes(
				attribute.String("backend.name", h.Name),
				attribute.Int("backend.index", i),
			))
			logger.Debug("skipping backend with open circuit",
				slog.String("backend", h.Name),
				slog.Int("index", i))
			lastErr = gobreaker.ErrOpenState
			continue
		}

		out, err := c.try(ctx, i, h, in)
		if err == nil {
			span.SetAttributes(attribute.String("failover.backend", h.Name))
			metrics.RecordRequest(metrics.ResultSuccess, time.Since(start))
			return out, nil
		}

		ce := classify.Wrap(err)
		if ce.AbortsChain() {
			span.RecordError(ce.Err)
			span.SetStatus(codes.Error, "aborted")
			metrics.RecordRequest(metrics.ResultAborted, time.Since(start))
			logger.Error("backend failed, aborting failover chain",
				slog.String("backend", h.Name),
				slog.Any("error", ce.Err))
			return zero, ce.Err
		}

		lastErr = ce.Err
		if i < c.Len()-1 {
			logger.Warn("backend failed, trying next backend",
				slog.String("backend", h.Name),
				slog.String("category", ce.Category.String()),
				slog.String("next", c.handles[i+1].Name),
				slog.Any("error", ce.Err))
		}
	}

	metrics.RecordRequest(metrics.ResultExhausted, time.Since(start))
	span.SetStatus(codes.Error, ErrAllProvidersFailed.Error())
	logger.Error("all backends failed", slog.Int("backends", c.Len()))

	if c.Len() == 1 {
		return zero, lastErr
	}
	return zero, ErrAllProvidersFailed
}

// try runs one backend through the retry controller inside its own span.
func (c *Chain[In, Out]) try(ctx context.Context, index int, h Handle[In, Out], in In) (Out, error) {
	ctx, span := tracing.StartSpan(ctx, c.tracer, "failover.backend",
		attribute.String("backend.name", h.Name),
		attribute.Int("backend.index", index),
	)
	defer span.End()

	out, err := retry.Do(ctx, h.Breaker, c.retry, func(ctx context.Context) (Out, error) {
		return h.Send(ctx, in)
	})
	if err != nil {
		cat := classify.Classify(err)
		span.SetAttributes(attribute.String("backend.outcome", cat.String()))
		span.RecordError(err)
		span.SetStatus(codes.Error, cat.String())
		return out, err
	}

	span.SetAttributes(attribute.String("backend.outcome", "success"))
	return out, nil
}
