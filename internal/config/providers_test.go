package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadProvidersFile(t *testing.T) {
	path := writeFile(t, `
providers:
  - name: claude
    kind: claude
    api_key_env: ANTHROPIC_API_KEY
    timeout: 30s
  - name: openai-mini
    kind: openai
    model: gpt-4o-mini
    api_key_env: OPENAI_API_KEY
    max_tokens: 256
  - name: offline
    kind: echo
  - name: local
    kind: grpc
    base_url: localhost:50051
`)

	providers, err := LoadProvidersFile(path)
	require.NoError(t, err)
	require.Len(t, providers, 4)

	assert.Equal(t, ProviderConfig{
		Name:           "claude",
		Kind:           KindClaude,
		APIKeyEnv:      "ANTHROPIC_API_KEY",
		MaxTokens:      DefaultMaxTokens,
		Timeout:        30 * time.Second,
		MaxPromptRunes: DefaultMaxPromptRunes,
	}, providers[0])
	assert.Equal(t, "gpt-4o-mini", providers[1].Model)
	assert.Equal(t, 256, providers[1].MaxTokens)
	assert.Equal(t, DefaultTimeout, providers[1].Timeout)
	assert.Equal(t, KindEcho, providers[2].Kind)
	assert.Empty(t, providers[2].Method)
	assert.Equal(t, KindGRPC, providers[3].Kind)
	assert.Equal(t, DefaultGRPCMethod, providers[3].Method)
	assert.Empty(t, providers[3].APIKeyEnv)
}

func TestLoadProvidersFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty list", "providers: []\n"},
		{"unknown kind", "providers:\n  - name: x\n    kind: gemini\n    api_key_env: K\n"},
		{"missing key env", "providers:\n  - name: c\n    kind: claude\n"},
		{"grpc without target", "providers:\n  - name: g\n    kind: grpc\n"},
		{"duplicate names", "providers:\n  - name: e\n    kind: echo\n  - name: e\n    kind: echo\n"},
		{"timeout too short", "providers:\n  - name: e\n    kind: echo\n    timeout: 10ms\n"},
		{"malformed yaml", "providers: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadProvidersFile(writeFile(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := LoadProvidersFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestResolveProviders(t *testing.T) {
	path := writeFile(t, "providers:\n  - name: local\n    kind: echo\n")

	cfg := &ResilienceConfig{Providers: []string{"local", "openai"}, ProvidersFile: path}
	providers, err := cfg.ResolveProviders()
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, "local", providers[0].Name)
	assert.Equal(t, KindOpenAI, providers[1].Kind)
	assert.Equal(t, "OPENAI_API_KEY", providers[1].APIKeyEnv)

	cfg = &ResilienceConfig{Providers: []string{"mystery"}}
	_, err = cfg.ResolveProviders()
	assert.ErrorContains(t, err, `unknown provider "mystery"`)
}

func TestProviderConfig_APIKey(t *testing.T) {
	t.Setenv("TEST_PROVIDER_KEY", "sk-test")
	assert.Equal(t, "sk-test", ProviderConfig{APIKeyEnv: "TEST_PROVIDER_KEY"}.APIKey())
	assert.Empty(t, ProviderConfig{}.APIKey())
}
