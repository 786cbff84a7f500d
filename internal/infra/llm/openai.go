package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"ai-failover/internal/config"
)

// DefaultOpenAIModel is used when the provider does not name a model.
const DefaultOpenAIModel = openai.GPT4oMini

// OpenAI sends prompts to the Chat Completions API.
type OpenAI struct {
	client    *openai.Client
	call      call
	maxTokens int
	hasKey    bool
}

// NewOpenAI creates an OpenAI adapter. A BaseURL must include the API version
// path, e.g. "http://localhost:8080/v1".
func NewOpenAI(p config.ProviderConfig) *OpenAI {
	model := p.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	clientCfg := openai.DefaultConfig(p.APIKey())
	if p.BaseURL != "" {
		clientCfg.BaseURL = p.BaseURL
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
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
func (o *OpenAI) Send(ctx context.Context, req Request) (Response, error) {
	if !o.hasKey {
		return Response{}, ErrMissingAPIKey
	}
	return o.call.run(ctx, req, o.send)
}

func (o *OpenAI) send(ctx context.Context, req Request) (Response, error) {
	maxTokens := o.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.call.model,
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return Response{}, err
	}

	// Safety check to prevent panic on array access
	if len(resp.Choices) == 0 {
		return Response{}, nil
	}

	return Response{Text: resp.Choices[0].Message.Content, Model: resp.Model}, nil
}
