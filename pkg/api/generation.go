package api

import "time"

// GenerationResult is the outcome of one complete-mode backend call.
// The backend client never fails outright: a backend-facing error is
// folded into a Success=false result carrying ErrorReason.
type GenerationResult struct {
	Response    string    `json:"response"`
	Model       string    `json:"model"`
	Timestamp   time.Time `json:"timestamp"`
	DurationMS  int64     `json:"duration_ms"`
	Success     bool      `json:"success"`
	ErrorReason string    `json:"error_reason,omitempty"`
}

// StreamChunk is one unit of a token-streamed generation. The terminal
// chunk has Done=true and carries the accumulated response plus the
// total duration of the stream.
type StreamChunk struct {
	Token        string    `json:"token"`
	Model        string    `json:"model"`
	Timestamp    time.Time `json:"timestamp"`
	Done         bool      `json:"done"`
	Success      bool      `json:"success"`
	ErrorReason  string    `json:"error_reason,omitempty"`
	DurationMS   int64     `json:"duration_ms,omitempty"`
	FullResponse string    `json:"full_response,omitempty"`
}
