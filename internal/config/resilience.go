// Package config loads the failover settings and the provider list used by the CLI.
package config

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"ai-failover/internal/resilience"
	pkgconfig "ai-failover/pkg/config"
)

// ResilienceConfig holds the retry, circuit breaker and provider order settings.
// All values are configurable via environment variables.
type ResilienceConfig struct {
	// MaxRetries is the number of retries for a Retryable failure. Default: 2
	MaxRetries int

	// RetryDelay is the fixed wait between retries. Default: 1s
	RetryDelay time.Duration

	// CircuitBreakerEnabled makes open circuits skip their backend. Default: false
	CircuitBreakerEnabled bool

	// FailureThreshold opens a circuit after this many consecutive failures. Default: 5
	FailureThreshold int

	// SuccessThreshold closes a half-open circuit after this many successes. Default: 2
	SuccessThreshold int

	// OpenTimeout is how long a circuit stays open before a probe. Default: 60s
	OpenTimeout time.Duration

	// Providers lists backend names, primary first. Default: ["claude"]
	Providers []string

	// ProvidersFile optionally points to a YAML provider list. Default: ""
	ProvidersFile string
}

// LoadResilienceConfig loads the configuration from environment variables.
// Unset variables fall back to their defaults; the result is validated.
func LoadResilienceConfig() (*ResilienceConfig, error) {
	defaults := resilience.DefaultOptions()

	cfg := &ResilienceConfig{
		MaxRetries:            pkgconfig.GetEnvInt("FAILOVER_MAX_RETRIES", defaults.MaxRetries),
		RetryDelay:            pkgconfig.GetEnvDuration("FAILOVER_RETRY_DELAY", defaults.RetryDelay),
		CircuitBreakerEnabled: pkgconfig.GetEnvBool("FAILOVER_CB_ENABLED", defaults.CircuitBreakerEnabled),
		FailureThreshold:      pkgconfig.GetEnvInt("FAILOVER_CB_FAILURE_THRESHOLD", defaults.FailureThreshold),
		SuccessThreshold:      pkgconfig.GetEnvInt("FAILOVER_CB_SUCCESS_THRESHOLD", defaults.SuccessThreshold),
		OpenTimeout:           pkgconfig.GetEnvDuration("FAILOVER_CB_OPEN_TIMEOUT", defaults.OpenTimeout),
		Providers:             pkgconfig.GetEnvStringList("FAILOVER_PROVIDERS", []string{"claude"}),
		ProvidersFile:         pkgconfig.GetEnvString("FAILOVER_PROVIDERS_FILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid failover configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration correctness.
func (c *ResilienceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxRetries, validation.Min(0)),
		validation.Field(&c.RetryDelay, pkgconfig.PositiveDuration),
		validation.Field(&c.FailureThreshold, validation.Required, validation.Min(1)),
		validation.Field(&c.SuccessThreshold, validation.Required, validation.Min(1)),
		validation.Field(&c.OpenTimeout, pkgconfig.PositiveDuration),
		validation.Field(&c.Providers, validation.Required, validation.Each(validation.Required)),
	)
}

// Options converts the configuration into client options.
func (c *ResilienceConfig) Options() resilience.Options {
	return resilience.Options{
		MaxRetries:            c.MaxRetries,
		RetryDelay:            c.RetryDelay,
		CircuitBreakerEnabled: c.CircuitBreakerEnabled,
		FailureThreshold:      c.FailureThreshold,
		SuccessThreshold:      c.SuccessThreshold,
		OpenTimeout:           c.OpenTimeout,
	}
}
