package api

import "time"

// GenerateResponse is returned by POST /generate in complete mode.
type GenerateResponse struct {
	Response  string    `json:"response"`
	Model     string    `json:"model"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse reports API liveness and the state of the Ollama backend.
type HealthResponse struct {
	Status          string    `json:"status"`
	OllamaStatus    string    `json:"ollama_status"` // "connected" or "disconnected"
	Timestamp       time.Time `json:"timestamp"`
	AvailableModels []string  `json:"available_models,omitempty"`
}
