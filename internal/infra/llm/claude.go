package llm

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"ai-failover/internal/config"
)

// DefaultClaudeModel is used when the provider does not name a model.
const DefaultClaudeModel = string(anthropic.ModelClaudeSonnet4_5_20250929)

// Claude sends prompts to Anthropic's Messages API.
type Claude struct {
	client    anthropic.Client
	call      call
	maxTokens int
	hasKey    bool
}

// NewClaude creates a Claude adapter. Extra request options are appended after the
// defaults, which disable the SDK's own retries.
func NewClaude(p config.ProviderConfig, opts ...option.RequestOption) *Claude {
	model := p.Model
	if model == "" {
		model = DefaultClaudeModel
	}

	base := []option.RequestOption{
		option.WithAPIKey(p.APIKey()),
		option.WithMaxRetries(0),
	}
	if p.BaseURL != "" {
		base = append(base, option.WithBaseURL(p.BaseURL))
	}

	return &Claude{
		client: anthropic.NewClient(append(base, opts...)...),
		call: call{
			backend:        p.Name,
			model:          model,
			timeout:        p.Timeout,
			maxPromptRunes: p.MaxPromptRunes,
		},
		maxTokens: p.MaxTokens,
		hasKey:    p.APIKey() != "",
	}
}

// Send implements resilience.Adapter.
func (c *Claude) Send(ctx context.Context, req Request) (Response, error) {
	if !c.hasKey {
		return Response{}, ErrMissingAPIKey
	}
	return c.call.run(ctx, req, c.send)
}

func (c *Claude) send(ctx context.Context, req Request) (Response, error) {
	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.call.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, err
	}

	var out string
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			out += tb.Text
		}
	}

	return Response{Text: out, Model: string(message.Model)}, nil
}
