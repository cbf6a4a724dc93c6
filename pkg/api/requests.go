package api

// GenerateRequest is the body accepted by POST /generate.
type GenerateRequest struct {
	// Prompt is the text to generate a completion for.
	Prompt string `json:"prompt" binding:"required,min=1,max=10000"`

	// Model overrides the configured default model.
	Model string `json:"model,omitempty"`

	// Stream switches the response to token-by-token server-sent events.
	Stream bool `json:"stream,omitempty"`
}
