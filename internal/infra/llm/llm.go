// Package llm provides backend adapters for large language model APIs.
//
// Each adapter performs exactly one API call per Send. Retries, fallback and circuit
// breaking are the job of the resilience package; the SDK clients are configured
// with their own retries turned off.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ai-failover/internal/observability/logging"
	"ai-failover/internal/observability/metrics"
	"ai-failover/internal/resilience/classify"
	"ai-failover/internal/utils/text"
)

// Request is a single-turn prompt.
type Request struct {
	// System is an optional system prompt
	System string `json:"system,omitempty"`

	// Prompt is the user message
	Prompt string `json:"prompt"`

	// MaxTokens overrides the adapter's default response length when positive
	MaxTokens int `json:"max_tokens,omitempty"`
}

// Response is the text answer of a backend.
type Response struct {
	Text    string `json:"text"`
	Backend string `json:"backend"`
	Model   string `json:"model"`
}

var (
	// ErrEmptyResponse is returned when a backend answers without any text.
	// It wraps classify.ErrServiceUnavailable so that the call is retried.
	ErrEmptyResponse = fmt.Errorf("backend returned an empty response: %w", classify.ErrServiceUnavailable)

	// ErrMissingAPIKey is returned when no API key is configured.
	// It wraps classify.ErrUnauthorized so that the chain moves to the next backend.
	ErrMissingAPIKey = fmt.Errorf("api key is not configured: %w", classify.ErrUnauthorized)

	// ErrEmptyPrompt rejects requests without a prompt.
	ErrEmptyPrompt = fmt.Errorf("prompt is empty: %w", classify.ErrMalformedRequest)
)

// call holds what every adapter does around its API request:
// prompt checks, per-call timeout, logging and latency metrics.
type call struct {
	backend        string
	model          string
	timeout        time.Duration
	maxPromptRunes int
}

// prepare validates and truncates the prompt.
func (c call) prepare(ctx context.Context, req Request) (Request, error) {
	if req.Prompt == "" {
		return req, ErrEmptyPrompt
	}

	truncated, cut := text.TruncateRunes(req.Prompt, c.maxPromptRunes)
	if cut {
		logging.FromContext(ctx).Warn("prompt truncated",
			slog.String("backend", c.backend),
			slog.Int("original_length", text.CountRunes(req.Prompt)),
			slog.Int("truncated_length", c.maxPromptRunes))
		req.Prompt = truncated
	}
	return req, nil
}

// run executes fn under the per-call timeout and records its outcome.
func (c call) run(ctx context.Context, req Request, fn func(ctx context.Context, req Request) (Response, error)) (Response, error) {
	req, err := c.prepare(ctx, req)
	if err != nil {
		return Response{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	logger := logging.FromContext(ctx).With(
		slog.String("backend", c.backend),
		slog.String("model", c.model))
	logger.DebugContext(ctx, "sending request",
		slog.Int("prompt_length", text.CountRunes(req.Prompt)))

	start := time.Now()
	resp, err := fn(ctx, req)
	duration := time.Since(start)
	metrics.RecordBackendDuration(c.backend, duration)

	if err != nil {
		logger.WarnContext(ctx, "request failed",
			slog.Duration("duration", duration),
			slog.Any("error", err))
		return Response{}, fmt.Errorf("%s: %w", c.backend, err)
	}
	if resp.Text == "" {
		return Response{}, fmt.Errorf("%s: %w", c.backend, ErrEmptyResponse)
	}

	resp.Backend = c.backend
	if resp.Model == "" {
		resp.Model = c.model
	}

	logger.InfoContext(ctx, "request completed",
		slog.Int("response_length", text.CountRunes(resp.Text)),
		slog.Duration("duration", duration))
	return resp, nil
}
