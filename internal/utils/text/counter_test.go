package text_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ai-failover/internal/utils/text"
)

func TestCountRunes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"ascii", "hello world", 11},
		{"japanese", "こんにちは世界", 7},
		{"mixed", "test123テスト", 10},
		{"emoji", "Hello👋", 6},
		{"flag is two regional indicators", "🇯🇵", 2},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, text.CountRunes(tt.input))
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		max     int
		want    string
		wantCut bool
	}{
		{"shorter than limit", "hello", 10, "hello", false},
		{"exact limit", "hello", 5, "hello", false},
		{"ascii cut", "hello world", 5, "hello", true},
		{"multi-byte cut", "日本語のテキスト", 3, "日本語", true},
		{"multi-byte fits by runes", "日本語", 3, "日本語", false},
		{"emoji boundary", "ab👋cd", 3, "ab👋", true},
		{"zero limit", "abc", 0, "", true},
		{"empty input", "", 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, cut := text.TruncateRunes(tt.input, tt.max)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantCut, cut)
		})
	}
}
