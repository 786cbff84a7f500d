package llm

import (
	"context"
	"strings"

	"ai-failover/internal/config"
)

// Echo answers every prompt locally. It is useful as a last-resort fallback
// and for trying out failover without network access.
type Echo struct {
	call call
}

// NewEcho creates an offline adapter.
func NewEcho(p config.ProviderConfig) *Echo {
	model := p.Model
	if model == "" {
		model = "echo"
	}
	return &Echo{call: call{
		backend:        p.Name,
		model:          model,
		timeout:        p.Timeout,
		maxPromptRunes: p.MaxPromptRunes,
	}}
}

// Send implements resilience.Adapter.
func (e *Echo) Send(ctx context.Context, req Request) (Response, error) {
	return e.call.run(ctx, req, func(ctx context.Context, req Request) (Response, error) {
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}
		return Response{Text: strings.TrimSpace(req.Prompt)}, nil
	})
}
