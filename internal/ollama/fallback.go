package ollama

import "strings"

// fallbackReplies is an ordered keyword table; the first keyword found
// in the prompt selects the canned reply, so the order is part of the
// contract and must not change.
var fallbackReplies = []struct {
	keyword string
	reply   string
}{
	{"hello", "Hello! I'm a fallback response since the LLM service is currently unavailable."},
	{"what", "I'm sorry, I cannot provide a detailed answer right now as the LLM service is unavailable. This is a fallback response."},
	{"how", "I'd love to help explain that, but the LLM service is currently unavailable. This is a fallback response."},
	{"why", "That's an interesting question! Unfortunately, the LLM service is unavailable right now, so this is a fallback response."},
	{"explain", "I'd be happy to explain that topic, but the LLM service is currently unavailable. This is a fallback response."},
}

const fallbackDefault = "I apologize, but the LLM service is currently unavailable. This is a fallback response to your prompt."

// FallbackText selects a canned reply for a prompt when the backend
// cannot serve it. Deterministic: identical prompts always yield
// identical text.
func FallbackText(prompt string) string {
	lower := strings.ToLower(prompt)
	for _, r := range fallbackReplies {
		if strings.Contains(lower, r.keyword) {
			return r.reply
		}
	}
	return fallbackDefault
}
