package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nulzo/minivault/internal/server/validator"
	"github.com/nulzo/minivault/pkg/api"
)

// Generator is the orchestration surface the handler depends on.
type Generator interface {
	Generate(ctx context.Context, req *api.GenerateRequest) (*api.GenerationResult, error)
	GenerateStream(ctx context.Context, req *api.GenerateRequest) <-chan api.StreamChunk
}

type GenerateHandler struct {
	service Generator
	logger  *zap.Logger
}

func NewGenerateHandler(service Generator, logger *zap.Logger) *GenerateHandler {
	return &GenerateHandler{service: service, logger: logger}
}

// Generate handles POST /generate in both complete and streaming mode.
func (h *GenerateHandler) Generate(c *gin.Context) {
	var req api.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(api.ValidationProblem(validator.ParseValidationError(err)))
		return
	}

	h.logger.Info("generating response",
		zap.Bool("stream", req.Stream),
		zap.Int("prompt_len", len(req.Prompt)))

	if req.Stream {
		h.stream(c, &req)
		return
	}

	result, err := h.service.Generate(c.Request.Context(), &req)
	if err != nil {
		c.Error(api.InternalProblem("Failed to generate response", err))
		return
	}

	c.JSON(http.StatusOK, api.GenerateResponse{
		Response:  result.Response,
		Model:     result.Model,
		Timestamp: result.Timestamp,
	})
}

// stream relays chunks as server-sent events over a plain-text body,
// terminated by a literal [DONE] sentinel.
func (h *GenerateHandler) stream(c *gin.Context, req *api.GenerateRequest) {
	chunks := h.service.GenerateStream(c.Request.Context(), req)

	c.Writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		chunk, ok := <-chunks
		if !ok {
			io.WriteString(w, "data: [DONE]\n\n")
			return false
		}

		data, err := json.Marshal(chunk)
		if err != nil {
			h.logger.Error("failed to encode stream chunk", zap.Error(err))
			return true
		}

		fmt.Fprintf(w, "data: %s\n\n", data)
		return true
	})
}
