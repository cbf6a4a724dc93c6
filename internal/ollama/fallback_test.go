package ollama

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackText_KeywordSelection(t *testing.T) {
	tests := []struct {
		name    string
		prompt  string
		keyword string
	}{
		{"hello greeting", "Hello there!", "hello"},
		{"what question", "What is the capital of France?", "what"},
		{"how question", "How does photosynthesis work?", "how"},
		{"why question", "Why is the sky blue?", "why"},
		{"explain request", "Please explain quantum computing", "explain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FallbackText(tt.prompt)
			assert.NotEqual(t, fallbackDefault, got)

			for _, r := range fallbackReplies {
				if r.keyword == tt.keyword {
					assert.Equal(t, r.reply, got)
				}
			}
		})
	}
}

func TestFallbackText_CaseInsensitive(t *testing.T) {
	assert.Equal(t, FallbackText("hello"), FallbackText("HELLO WORLD"))
}

func TestFallbackText_OrderedMatching(t *testing.T) {
	// "what" precedes "explain" in the table, so a prompt containing
	// both picks the "what" reply.
	got := FallbackText("What should I explain first?")
	assert.Equal(t, fallbackReplies[1].reply, got)
}

func TestFallbackText_Default(t *testing.T) {
	assert.Equal(t, fallbackDefault, FallbackText("generate a poem about autumn"))
}

func TestFallbackText_Deterministic(t *testing.T) {
	prompts := []string{"Hello!", "tell me about go", "why why why"}
	for _, p := range prompts {
		assert.Equal(t, FallbackText(p), FallbackText(p))
	}
}
