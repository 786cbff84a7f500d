package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/connectivity"

	"ai-failover/internal/config"
	"ai-failover/internal/resilience"
	"ai-failover/internal/resilience/classify"
	"ai-failover/internal/resilience/failover"
)

func provider(t *testing.T, kind config.ProviderKind, baseURL string) config.ProviderConfig {
	t.Helper()
	p := config.ProviderConfig{
		Name:           string(kind) + "-test",
		Kind:           kind,
		BaseURL:        baseURL,
		MaxTokens:      64,
		Timeout:        5 * time.Second,
		MaxPromptRunes: 100,
	}
	if kind != config.KindEcho {
		p.APIKeyEnv = "LLM_TEST_API_KEY"
		t.Setenv("LLM_TEST_API_KEY", "test-key")
	}
	return p
}

func claudeServer(t *testing.T, status int, body string, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), "unexpected path %s", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

const claudeOK = `{
  "id": "msg_01",
  "type": "message",
  "role": "assistant",
  "model": "claude-test",
  "content": [{"type": "text", "text": "Hello from Claude"}],
  "stop_reason": "end_turn",
  "stop_sequence": null,
  "usage": {"input_tokens": 3, "output_tokens": 4}
}`

func TestClaude_Send(t *testing.T) {
	var requests atomic.Int32
	server := claudeServer(t, http.StatusOK, claudeOK, &requests)

	c := NewClaude(provider(t, config.KindClaude, server.URL+"/"))
	resp, err := c.Send(context.Background(), Request{System: "be brief", Prompt: "hi"})
	require.NoError(t, err)

	assert.Equal(t, Response{Text: "Hello from Claude", Backend: "claude-test", Model: "claude-test"}, resp)
	assert.EqualValues(t, 1, requests.Load())
}

func TestClaude_ErrorsAreClassified(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   classify.Category
	}{
		{"overloaded", 529, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`, classify.Retryable},
		{"rate limited", 429, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`, classify.Retryable},
		{"bad key", 401, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, classify.Recoverable},
		{"bad request", 400, `{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens too large"}}`, classify.NonRecoverable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests atomic.Int32
			server := claudeServer(t, tt.status, tt.body, &requests)

			c := NewClaude(provider(t, config.KindClaude, server.URL+"/"))
			_, err := c.Send(context.Background(), Request{Prompt: "hi"})
			require.Error(t, err)
			assert.Equal(t, tt.want, classify.Classify(err))
			assert.EqualValues(t, 1, requests.Load(), "the SDK must not retry on its own")
		})
	}
}

func TestClaude_MissingAPIKey(t *testing.T) {
	p := provider(t, config.KindClaude, "")
	t.Setenv("LLM_TEST_API_KEY", "")

	_, err := NewClaude(p).Send(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Equal(t, classify.Recoverable, classify.Classify(err))
}

func openAIServer(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestOpenAI_Send(t *testing.T) {
	var seen map[string]any
	server := openAIServer(t, http.StatusOK, `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "Hello from OpenAI"}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 3, "completion_tokens": 4, "total_tokens": 7}
}`, &seen)

	o := NewOpenAI(provider(t, config.KindOpenAI, server.URL+"/v1"))
	resp, err := o.Send(context.Background(), Request{System: "be brief", Prompt: "hi", MaxTokens: 12})
	require.NoError(t, err)

	assert.Equal(t, Response{Text: "Hello from OpenAI", Backend: "openai-test", Model: "gpt-4o-mini"}, resp)
	assert.Equal(t, DefaultOpenAIModel, seen["model"])
	assert.EqualValues(t, 12, seen["max_tokens"])
	messages, ok := seen["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestOpenAI_ErrorsAreClassified(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   classify.Category
	}{
		{"rate limited", 429, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`, classify.Retryable},
		{"quota", 429, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`, classify.NonRecoverable},
		{"unavailable", 503, `{"error":{"message":"The server is overloaded","type":"server_error","code":null}}`, classify.Retryable},
		{"bad key", 401, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`, classify.Recoverable},
		{"unknown model", 404, `{"error":{"message":"The model does not exist","type":"invalid_request_error","code":"model_not_found"}}`, classify.Recoverable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := openAIServer(t, tt.status, tt.body, nil)
			o := NewOpenAI(provider(t, config.KindOpenAI, server.URL+"/v1"))

			_, err := o.Send(context.Background(), Request{Prompt: "hi"})
			require.Error(t, err)
			assert.Equal(t, tt.want, classify.Classify(err))
		})
	}
}

func TestOpenAI_EmptyChoicesIsRetryable(t *testing.T) {
	server := openAIServer(t, http.StatusOK, `{"id":"x","object":"chat.completion","model":"gpt-4o-mini","choices":[]}`, nil)
	o := NewOpenAI(provider(t, config.KindOpenAI, server.URL+"/v1"))

	_, err := o.Send(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.Equal(t, classify.Retryable, classify.Classify(err))
}

func TestEcho_Send(t *testing.T) {
	e := NewEcho(provider(t, config.KindEcho, ""))

	resp, err := e.Send(context.Background(), Request{Prompt: "  ping  "})
	require.NoError(t, err)
	assert.Equal(t, Response{Text: "ping", Backend: "echo-test", Model: "echo"}, resp)

	_, err = e.Send(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrEmptyPrompt)
	assert.Equal(t, classify.NonRecoverable, classify.Classify(err))
}

func TestEcho_TruncatesPrompt(t *testing.T) {
	p := provider(t, config.KindEcho, "")
	p.MaxPromptRunes = 3

	resp, err := NewEcho(p).Send(context.Background(), Request{Prompt: "日本語のテキスト"})
	require.NoError(t, err)
	assert.Equal(t, "日本語", resp.Text)
}

func TestNewFromProvider(t *testing.T) {
	for _, kind := range []config.ProviderKind{config.KindClaude, config.KindOpenAI, config.KindEcho} {
		adapter, err := NewFromProvider(provider(t, kind, ""))
		require.NoError(t, err, kind)
		assert.NotNil(t, adapter)
	}

	bad := provider(t, config.KindEcho, "")
	bad.Kind = "gemini"
	_, err := NewFromProvider(bad)
	assert.Error(t, err)
}

// A failing Claude primary falls over to an offline echo fallback.
func TestBackends_FailoverToEcho(t *testing.T) {
	var requests atomic.Int32
	server := claudeServer(t, 529, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`, &requests)

	claude := provider(t, config.KindClaude, server.URL+"/")
	echo := provider(t, config.KindEcho, "")
	backends, err := NewBackends([]config.ProviderConfig{claude, echo})
	require.NoError(t, err)

	opts := resilience.DefaultOptions()
	opts.RetryDelay = time.Millisecond
	client, err := resilience.New(resilience.Config[Request, Response]{
		Primary:   &backends[0],
		Fallbacks: backends[1:],
		Options:   opts,
	})
	require.NoError(t, err)

	resp, err := client.Send(context.Background(), Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "echo-test", resp.Backend)
	assert.EqualValues(t, 3, requests.Load(), "two retries on the primary")

	// Only a non-recoverable primary failure stops the chain.
	_, err = client.Send(context.Background(), Request{})
	assert.True(t, errors.Is(err, ErrEmptyPrompt))
	assert.False(t, errors.Is(err, failover.ErrAllProvidersFailed))
}

type closingAdapter struct {
	*Echo
	closed atomic.Int32
}

func (c *closingAdapter) Close() error {
	c.closed.Add(1)
	return nil
}

func TestNewBackends_ClosesBuiltAdaptersOnError(t *testing.T) {
	built := &closingAdapter{Echo: NewEcho(provider(t, config.KindEcho, ""))}
	orig := newAdapter
	t.Cleanup(func() { newAdapter = orig })
	newAdapter = func(p config.ProviderConfig) (resilience.Adapter[Request, Response], error) {
		if p.Name == "local" {
			return built, nil
		}
		return nil, errors.New("boom")
	}

	_, err := NewBackends([]config.ProviderConfig{{Name: "local"}, {Name: "broken"}})
	require.Error(t, err)
	assert.EqualValues(t, 1, built.closed.Load())
}

func TestNewBackends_GRPCClosedWhenLaterProviderInvalid(t *testing.T) {
	g := provider(t, config.KindGRPC, "localhost:50051")
	g.Method = config.DefaultGRPCMethod
	bad := provider(t, config.KindEcho, "")
	bad.Kind = "gemini"

	var grpcAdapter *GRPC
	orig := newAdapter
	t.Cleanup(func() { newAdapter = orig })
	newAdapter = func(p config.ProviderConfig) (resilience.Adapter[Request, Response], error) {
		a, err := orig(p)
		if ga, ok := a.(*GRPC); ok {
			grpcAdapter = ga
		}
		return a, err
	}

	_, err := NewBackends([]config.ProviderConfig{g, bad})
	require.Error(t, err)
	require.NotNil(t, grpcAdapter)
	assert.Equal(t, connectivity.Shutdown, grpcAdapter.conn.GetState())
}
