package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/minivault/pkg/api"
)

// BackendProbe is the slice of the backend client the health check needs.
type BackendProbe interface {
	IsAvailable(ctx context.Context) bool
	ListModels(ctx context.Context) []string
}

type HealthHandler struct {
	backend BackendProbe
}

func NewHealthHandler(backend BackendProbe) *HealthHandler {
	return &HealthHandler{backend: backend}
}

// Health reports API liveness and probes the Ollama backend.
//
// The API itself is always "healthy" here; a dead backend shows up as
// ollama_status "disconnected" because generation still works through
// fallback responses.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()

	resp := api.HealthResponse{
		Status:       "healthy",
		OllamaStatus: "disconnected",
		Timestamp:    time.Now().UTC(),
	}

	if h.backend.IsAvailable(ctx) {
		resp.OllamaStatus = "connected"
		resp.AvailableModels = h.backend.ListModels(ctx)
	}

	c.JSON(http.StatusOK, resp)
}
