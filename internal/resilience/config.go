package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ErrInvalidConfig is returned by New when the configuration is rejected.
var ErrInvalidConfig = errors.New("invalid resilience config")

// Adapter sends one request to one backend.
// Adapters must not retry, fall back or track circuit state themselves.
type Adapter[In, Out any] interface {
	Send(ctx context.Context, in In) (Out, error)
}

// AdapterFunc lets an ordinary function act as an Adapter.
type AdapterFunc[In, Out any] func(ctx context.Context, in In) (Out, error)

// Send calls f(ctx, in).
func (f AdapterFunc[In, Out]) Send(ctx context.Context, in In) (Out, error) {
	return f(ctx, in)
}

// Backend is one configured provider. Name is used for logs, metrics and spans only.
type Backend[In, Out any] struct {
	Name    string
	Adapter Adapter[In, Out]
}

// Validate implements validation.Validatable.
func (b Backend[In, Out]) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Name, validation.Required),
		validation.Field(&b.Adapter, validation.NotNil),
	)
}

// Options tunes retry and circuit breaking. All backends share the same values.
type Options struct {
	// MaxRetries is the number of extra attempts for a Retryable failure
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// RetryDelay is the fixed wait between attempts
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`

	// CircuitBreakerEnabled makes open circuits skip their backend.
	// When false, state is still tracked but never blocks a call.
	CircuitBreakerEnabled bool `yaml:"circuit_breaker_enabled" json:"circuit_breaker_enabled"`

	// FailureThreshold is the number of consecutive failures that opens a circuit
	FailureThreshold int `yaml:"failure_threshold" json:"failure_threshold"`

	// SuccessThreshold is the number of consecutive half-open successes that closes it
	SuccessThreshold int `yaml:"success_threshold" json:"success_threshold"`

	// OpenTimeout is how long an open circuit waits before admitting a probe
	OpenTimeout time.Duration `yaml:"open_timeout" json:"open_timeout"`
}

// DefaultOptions returns the default resilience options.
func DefaultOptions() Options {
	return Options{
		MaxRetries:            2,
		RetryDelay:            1 * time.Second,
		CircuitBreakerEnabled: false,
		FailureThreshold:      5,
		SuccessThreshold:      2,
		OpenTimeout:           60 * time.Second,
	}
}

// Validate implements validation.Validatable.
func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.MaxRetries, validation.Min(0)),
		validation.Field(&o.RetryDelay, validation.Required, validation.Min(time.Duration(1))),
		validation.Field(&o.FailureThreshold, validation.Required, validation.Min(1)),
		validation.Field(&o.SuccessThreshold, validation.Required, validation.Min(1)),
		validation.Field(&o.OpenTimeout, validation.Required, validation.Min(time.Duration(1))),
	)
}

// Config describes a resilient client: one primary backend, optional fallbacks in
// the order they are tried, and shared options.
type Config[In, Out any] struct {
	Primary   *Backend[In, Out]
	Fallbacks []Backend[In, Out]
	Options   Options
}

// Validate implements validation.Validatable.
func (c Config[In, Out]) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Primary, validation.NotNil),
		validation.Field(&c.Fallbacks),
		validation.Field(&c.Options),
	)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(c.Fallbacks)+1)
	for _, b := range c.backends() {
		if _, dup := seen[b.Name]; dup {
			return fmt.Errorf("duplicate backend name %q", b.Name)
		}
		seen[b.Name] = struct{}{}
	}
	return nil
}

// backends returns primary first, then fallbacks in order.
func (c Config[In, Out]) backends() []Backend[In, Out] {
	out := make([]Backend[In, Out], 0, len(c.Fallbacks)+1)
	if c.Primary != nil {
		out = append(out, *c.Primary)
	}
	return append(out, c.Fallbacks...)
}
