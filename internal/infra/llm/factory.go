package llm

import (
	"fmt"
	"io"
	"log/slog"

	"ai-failover/internal/config"
	"ai-failover/internal/resilience"
)

// NewFromProvider resolves the adapter for p once, at configuration time.
func NewFromProvider(p config.ProviderConfig) (resilience.Adapter[Request, Response], error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("provider %q: %w", p.Name, err)
	}
	if (p.Kind == config.KindClaude || p.Kind == config.KindOpenAI) && p.APIKey() == "" {
		slog.Warn("provider has no API key, calls will fall over to the next backend",
			slog.String("provider", p.Name),
			slog.String("api_key_env", p.APIKeyEnv))
	}

	switch p.Kind {
	case config.KindClaude:
		return NewClaude(p), nil
	case config.KindOpenAI:
		return NewOpenAI(p), nil
	case config.KindGRPC:
		g, err := NewGRPC(p)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", p.Name, err)
		}
		return g, nil
	case config.KindEcho:
		return NewEcho(p), nil
	default:
		return nil, fmt.Errorf("provider %q: unsupported kind %q", p.Name, p.Kind)
	}
}

// newAdapter is replaced in tests.
var newAdapter = NewFromProvider

// NewBackends builds one backend per provider, keeping their order.
// When a provider fails, the adapters built so far are closed.
func NewBackends(providers []config.ProviderConfig) ([]resilience.Backend[Request, Response], error) {
	backends := make([]resilience.Backend[Request, Response], 0, len(providers))
	for _, p := range providers {
		adapter, err := newAdapter(p)
		if err != nil {
			CloseBackends(backends)
			return nil, err
		}
		backends = append(backends, resilience.Backend[Request, Response]{Name: p.Name, Adapter: adapter})
	}
	return backends, nil
}

// CloseBackends closes every adapter holding a connection.
// Adapters log their own close failures.
func CloseBackends(backends []resilience.Backend[Request, Response]) {
	for _, b := range backends {
		if c, ok := b.Adapter.(io.Closer); ok {
			_ = c.Close()
		}
	}
}
