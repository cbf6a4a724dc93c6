package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/minivault/internal/interaction"
	"github.com/nulzo/minivault/pkg/api"
)

const (
	defaultLogLimit = 10
	maxLogLimit     = 100
)

// LogReader is the read-only surface of the interaction log.
type LogReader interface {
	Recent(limit int) []interaction.Entry
	Stats() interaction.Stats
}

type LogsHandler struct {
	records LogReader
}

func NewLogsHandler(records LogReader) *LogsHandler {
	return &LogsHandler{records: records}
}

// Recent returns up to ?limit recent interaction entries, oldest first.
func (h *LogsHandler) Recent(c *gin.Context) {
	limit := defaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.Error(api.BadRequestProblem("limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	entries := h.records.Recent(limit)
	c.JSON(http.StatusOK, gin.H{
		"logs":  entries,
		"count": len(entries),
	})
}

// Stats returns aggregate statistics over the whole interaction log.
func (h *LogsHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.records.Stats())
}
