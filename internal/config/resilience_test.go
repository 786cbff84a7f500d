package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-failover/internal/resilience"
)

func TestLoadResilienceConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"FAILOVER_MAX_RETRIES", "FAILOVER_RETRY_DELAY", "FAILOVER_CB_ENABLED",
		"FAILOVER_CB_FAILURE_THRESHOLD", "FAILOVER_CB_SUCCESS_THRESHOLD",
		"FAILOVER_CB_OPEN_TIMEOUT", "FAILOVER_PROVIDERS", "FAILOVER_PROVIDERS_FILE",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadResilienceConfig()
	require.NoError(t, err)

	assert.Equal(t, resilience.DefaultOptions(), cfg.Options())
	assert.Equal(t, []string{"claude"}, cfg.Providers)
	assert.Empty(t, cfg.ProvidersFile)
}

func TestLoadResilienceConfig_CustomValues(t *testing.T) {
	t.Setenv("FAILOVER_MAX_RETRIES", "0")
	t.Setenv("FAILOVER_RETRY_DELAY", "250ms")
	t.Setenv("FAILOVER_CB_ENABLED", "true")
	t.Setenv("FAILOVER_CB_FAILURE_THRESHOLD", "3")
	t.Setenv("FAILOVER_CB_SUCCESS_THRESHOLD", "1")
	t.Setenv("FAILOVER_CB_OPEN_TIMEOUT", "2m")
	t.Setenv("FAILOVER_PROVIDERS", "openai, claude")

	cfg, err := LoadResilienceConfig()
	require.NoError(t, err)

	assert.Equal(t, resilience.Options{
		MaxRetries:            0,
		RetryDelay:            250 * time.Millisecond,
		CircuitBreakerEnabled: true,
		FailureThreshold:      3,
		SuccessThreshold:      1,
		OpenTimeout:           2 * time.Minute,
	}, cfg.Options())
	assert.Equal(t, []string{"openai", "claude"}, cfg.Providers)
}

func TestLoadResilienceConfig_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"negative retries", "FAILOVER_MAX_RETRIES", "-1"},
		{"negative delay", "FAILOVER_RETRY_DELAY", "-1s"},
		{"zero failure threshold", "FAILOVER_CB_FAILURE_THRESHOLD", "0"},
		{"negative success threshold", "FAILOVER_CB_SUCCESS_THRESHOLD", "-3"},
		{"zero open timeout", "FAILOVER_CB_OPEN_TIMEOUT", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadResilienceConfig()
			assert.Error(t, err)
		})
	}
}

func TestResilienceConfig_OptionsPassClientValidation(t *testing.T) {
	cfg := &ResilienceConfig{
		MaxRetries:       1,
		RetryDelay:       time.Second,
		FailureThreshold: 1,
		SuccessThreshold: 1,
		OpenTimeout:      time.Second,
		Providers:        []string{"echo"},
	}
	require.NoError(t, cfg.Validate())
	assert.NoError(t, cfg.Options().Validate())
}
