package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	pkgconfig "ai-failover/pkg/config"
)

// ProviderKind selects the adapter implementation of a provider.
type ProviderKind string

const (
	KindClaude ProviderKind = "claude"
	KindOpenAI ProviderKind = "openai"
	KindEcho   ProviderKind = "echo"
	KindGRPC   ProviderKind = "grpc"
)

// ProviderConfig describes one backend.
type ProviderConfig struct {
	// Name identifies the backend in logs and metrics. Must be unique.
	Name string `yaml:"name"`

	// Kind is one of claude, openai, grpc or echo.
	Kind ProviderKind `yaml:"kind"`

	// Model overrides the adapter's default model.
	Model string `yaml:"model"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`

	// BaseURL overrides the API endpoint, e.g. for a proxy or a compatible server.
	// For grpc providers it is the dial target, e.g. localhost:50051.
	BaseURL string `yaml:"base_url"`

	// Method is the full gRPC method name of a grpc provider.
	// Default: /ai.v1.Completion/Complete
	Method string `yaml:"method"`

	// MaxTokens bounds the response length. Default: 1024
	MaxTokens int `yaml:"max_tokens"`

	// Timeout bounds a single call. Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// MaxPromptRunes truncates longer prompts. Default: 10000
	MaxPromptRunes int `yaml:"max_prompt_runes"`
}

// Provider defaults.
const (
	DefaultMaxTokens      = 1024
	DefaultTimeout        = 60 * time.Second
	DefaultMaxPromptRunes = 10000
	DefaultGRPCMethod     = "/ai.v1.Completion/Complete"
)

// APIKey returns the key from the configured environment variable.
func (p ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// Validate implements validation.Validatable.
func (p ProviderConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required),
		validation.Field(&p.Kind, validation.Required, validation.In(KindClaude, KindOpenAI, KindGRPC, KindEcho)),
		validation.Field(&p.APIKeyEnv, validation.When(p.Kind == KindClaude || p.Kind == KindOpenAI, validation.Required)),
		validation.Field(&p.BaseURL, validation.When(p.Kind == KindGRPC, validation.Required)),
		validation.Field(&p.MaxTokens, validation.Min(1)),
		validation.Field(&p.Timeout, pkgconfig.DurationRange(time.Second, 10*time.Minute)),
		validation.Field(&p.MaxPromptRunes, validation.Min(1)),
	)
}

func (p ProviderConfig) withDefaults() ProviderConfig {
	if p.MaxTokens == 0 {
		p.MaxTokens = DefaultMaxTokens
	}
	if p.Timeout == 0 {
		p.Timeout = DefaultTimeout
	}
	if p.MaxPromptRunes == 0 {
		p.MaxPromptRunes = DefaultMaxPromptRunes
	}
	if p.Kind == KindGRPC && p.Method == "" {
		p.Method = DefaultGRPCMethod
	}
	return p
}

// BuiltinProvider returns the default configuration for a well-known provider name.
func BuiltinProvider(name string) (ProviderConfig, bool) {
	var p ProviderConfig
	switch ProviderKind(name) {
	case KindClaude:
		p = ProviderConfig{Name: name, Kind: KindClaude, APIKeyEnv: "ANTHROPIC_API_KEY"}
	case KindOpenAI:
		p = ProviderConfig{Name: name, Kind: KindOpenAI, APIKeyEnv: "OPENAI_API_KEY"}
	case KindEcho:
		p = ProviderConfig{Name: name, Kind: KindEcho}
	default:
		return ProviderConfig{}, false
	}
	return p.withDefaults(), true
}

type providersFile struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// LoadProvidersFile loads and validates a YAML provider list:
//
//	providers:
//	  - name: claude
//	    kind: claude
//	    api_key_env: ANTHROPIC_API_KEY
//	    timeout: 30s
//	  - name: openai
//	    kind: openai
//	    model: gpt-4o-mini
//	    api_key_env: OPENAI_API_KEY
//	  - name: local
//	    kind: grpc
//	    base_url: localhost:50051
func LoadProvidersFile(path string) ([]ProviderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}

	var file providersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse providers file: %w", err)
	}

	providers := make([]ProviderConfig, len(file.Providers))
	for i, p := range file.Providers {
		providers[i] = p.withDefaults()
	}
	if err := validateProviders(providers); err != nil {
		return nil, fmt.Errorf("invalid providers file %s: %w", path, err)
	}

	return providers, nil
}

// ResolveProviders picks the providers named by c.Providers, in that order.
// Names are looked up in the providers file when one is configured, otherwise
// among the built-in providers.
func (c *ResilienceConfig) ResolveProviders() ([]ProviderConfig, error) {
	known := map[string]ProviderConfig{}
	if c.ProvidersFile != "" {
		fromFile, err := LoadProvidersFile(c.ProvidersFile)
		if err != nil {
			return nil, err
		}
		for _, p := range fromFile {
			known[p.Name] = p
		}
	}

	out := make([]ProviderConfig, 0, len(c.Providers))
	for _, name := range c.Providers {
		p, ok := known[name]
		if !ok {
			p, ok = BuiltinProvider(name)
		}
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", name)
		}
		out = append(out, p)
	}

	if err := validateProviders(out); err != nil {
		return nil, err
	}
	return out, nil
}

func validateProviders(providers []ProviderConfig) error {
	if len(providers) == 0 {
		return errors.New("at least one provider is required")
	}
	seen := make(map[string]struct{}, len(providers))
	for i, p := range providers {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("provider %d: %w", i, err)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}
