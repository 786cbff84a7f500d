// Package retry runs a single backend call with bounded, fixed-delay retries.
// Every failure is classified; only Retryable failures are attempted again.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"ai-failover/internal/observability/logging"
	"ai-failover/internal/observability/metrics"
	"ai-failover/internal/resilience/classify"
)

// Config holds the configuration for retry logic.
type Config struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int

	// Delay is the fixed wait between attempts
	Delay time.Duration
}

// DefaultConfig returns a default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 2,
		Delay:      1 * time.Second,
	}
}

// Validate checks configuration correctness.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries)
	}
	if c.Delay <= 0 {
		return fmt.Errorf("retry delay must be positive, got %v", c.Delay)
	}
	return nil
}

// Gate is the circuit breaker view the retry loop needs.
// *circuitbreaker.Breaker satisfies it.
type Gate interface {
	Name() string
	Allow() bool
	RecordSuccess()
	RecordFailure()
}

// Do calls fn until it succeeds, fails with a non-retryable category, or the retry budget
// is spent. Each attempt must first be admitted by the gate.
//
// The gate hears one outcome per call: a success, or a single failure once the call
// has finally failed. Failures are returned as *classify.ClassifiedError:
//   - Retryable: retries exhausted, or the gate stopped admitting attempts
//   - Recoverable: returned after the first attempt, without retrying
//   - NonRecoverable: the whole chain must stop
//
// A denial before the first attempt reports nothing to the gate and wraps
// gobreaker.ErrOpenState. Cancelling ctx ends the loop with a NonRecoverable error.
func Do[T any](ctx context.Context, gate Gate, cfg Config, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	name := gate.Name()
	logger := logging.FromContext(ctx).With(slog.String("backend", name))
	maxAttempts := cfg.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if !gate.Allow() {
			metrics.RecordAttempt(name, metrics.OutcomeRejected)
			if lastErr == nil {
				return zero, &classify.ClassifiedError{Category: classify.Retryable, Err: gobreaker.ErrOpenState}
			}
			logger.Warn("circuit opened during retries, giving up",
				slog.Int("attempt", attempt),
				slog.Any("error", lastErr))
			break
		}

		out, err := fn(ctx)
		if err == nil {
			gate.RecordSuccess()
			metrics.RecordAttempt(name, metrics.OutcomeSuccess)
			if attempt > 1 {
				logger.Info("backend call succeeded after retry", slog.Int("attempt", attempt))
			}
			return out, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.RecordAttempt(name, metrics.OutcomeNonRecoverable)
			return zero, &classify.ClassifiedError{Category: classify.NonRecoverable, Err: ctxErr}
		}

		ce := classify.Wrap(err)
		metrics.RecordAttempt(name, outcome(ce.Category))
		lastErr = err

		if ce.Category != classify.Retryable {
			gate.RecordFailure()
			logger.Warn("backend call failed",
				slog.String("category", ce.Category.String()),
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			return zero, ce
		}

		// Don't wait after last attempt
		if attempt == maxAttempts {
			break
		}

		logger.Warn("backend call failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Duration("delay", cfg.Delay),
			slog.Any("error", err))

		if err := sleep(ctx, cfg.Delay); err != nil {
			return zero, &classify.ClassifiedError{Category: classify.NonRecoverable, Err: err}
		}
	}

	gate.RecordFailure()
	logger.Warn("retries exhausted",
		slog.Int("max_attempts", maxAttempts),
		slog.Any("error", lastErr))
	return zero, &classify.ClassifiedError{Category: classify.Retryable, Err: lastErr}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func outcome(c classify.Category) string {
	switch c {
	case classify.Retryable:
		return metrics.OutcomeRetryable
	case classify.Recoverable:
		return metrics.OutcomeRecoverable
	default:
		return metrics.OutcomeNonRecoverable
	}
}
