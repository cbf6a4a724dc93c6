package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nulzo/minivault/internal/interaction"
	"github.com/nulzo/minivault/pkg/api"
)

// Backend abstracts the model server client.
type Backend interface {
	IsAvailable(ctx context.Context) bool
	ListModels(ctx context.Context) []string
	Generate(ctx context.Context, prompt, model string) *api.GenerationResult
	GenerateStream(ctx context.Context, prompt, model string) <-chan api.StreamChunk
}

// Recorder persists one entry per completed interaction.
type Recorder interface {
	Append(e interaction.Entry)
}

// Service orchestrates generation requests: it invokes the backend,
// relays output to the caller and appends exactly one interaction
// entry per accepted request, whatever the outcome.
type Service struct {
	backend Backend
	records Recorder
	logger  *zap.Logger
}

func NewService(backend Backend, records Recorder, logger *zap.Logger) *Service {
	return &Service{
		backend: backend,
		records: records,
		logger:  logger,
	}
}

// Generate handles complete mode. The returned error is non-nil only
// for an unexpected orchestration failure; backend failures come back
// as a well-formed Success=false result. Both paths log exactly once.
func (s *Service) Generate(ctx context.Context, req *api.GenerateRequest) (result *api.GenerationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			reason := fmt.Sprint(r)
			s.logger.Error("unexpected failure during generation", zap.String("reason", reason))
			s.records.Append(interaction.Entry{
				Timestamp:   time.Now(),
				Prompt:      req.Prompt,
				Response:    "Internal server error: " + reason,
				Model:       "error",
				Success:     false,
				ErrorReason: reason,
			})
			result, err = nil, fmt.Errorf("failed to generate response: %s", reason)
		}
	}()

	result = s.backend.Generate(ctx, req.Prompt, req.Model)

	s.records.Append(interaction.Entry{
		Timestamp:   result.Timestamp,
		Prompt:      req.Prompt,
		Response:    result.Response,
		Model:       result.Model,
		DurationMS:  result.DurationMS,
		Success:     result.Success,
		ErrorReason: result.ErrorReason,
	})

	return result, nil
}

// GenerateStream handles streaming mode. Chunks are relayed in order as
// they arrive from the backend; the interaction entry is appended after
// the terminal chunk is known. When the caller disconnects mid-stream
// the relay stops but the backend stream is still drained so the entry
// gets written. A relay failure emits one synthetic terminal error
// chunk and still logs.
func (s *Service) GenerateStream(ctx context.Context, req *api.GenerateRequest) <-chan api.StreamChunk {
	in := s.backend.GenerateStream(ctx, req.Prompt, req.Model)
	out := make(chan api.StreamChunk)

	go func() {
		defer close(out)

		var full strings.Builder
		model := ""
		logged := false
		relaying := true
		start := time.Now()

		defer func() {
			if r := recover(); r != nil {
				reason := fmt.Sprint(r)
				s.logger.Error("unexpected failure during stream relay", zap.String("reason", reason))

				errModel := model
				if errModel == "" {
					errModel = "error"
				}
				if relaying {
					select {
					case out <- api.StreamChunk{
						Model:       errModel,
						Timestamp:   time.Now(),
						Done:        true,
						Success:     false,
						ErrorReason: reason,
					}:
					case <-ctx.Done():
					}
				}
				if !logged {
					s.records.Append(interaction.Entry{
						Timestamp:   time.Now(),
						Prompt:      req.Prompt,
						Response:    full.String(),
						Model:       errModel,
						DurationMS:  time.Since(start).Milliseconds(),
						Success:     false,
						ErrorReason: reason,
					})
				}
			}
		}()

		for chunk := range in {
			if chunk.Model != "" {
				model = chunk.Model
			}
			if chunk.Token != "" && !chunk.Done {
				full.WriteString(chunk.Token)
			}

			if relaying {
				select {
				case out <- chunk:
				case <-ctx.Done():
					// Caller disconnected: keep draining so the
					// interaction still gets logged.
					relaying = false
				}
			}

			if chunk.Done && !logged {
				logged = true
				response := chunk.FullResponse
				if response == "" {
					response = full.String()
				}
				s.records.Append(interaction.Entry{
					Timestamp:   chunk.Timestamp,
					Prompt:      req.Prompt,
					Response:    response,
					Model:       chunk.Model,
					DurationMS:  chunk.DurationMS,
					Success:     chunk.Success,
					ErrorReason: chunk.ErrorReason,
				})
			}
		}

		// The backend guarantees a terminal chunk, but a cancelled
		// stream can end before one arrives; log the partial outcome.
		if !logged {
			logged = true
			reason := "stream ended before completion"
			if ctx.Err() != nil {
				reason = "client disconnected"
			}
			if model == "" {
				model = "error"
			}
			s.records.Append(interaction.Entry{
				Timestamp:   time.Now(),
				Prompt:      req.Prompt,
				Response:    full.String(),
				Model:       model,
				DurationMS:  time.Since(start).Milliseconds(),
				Success:     false,
				ErrorReason: reason,
			})
		}
	}()

	return out
}
