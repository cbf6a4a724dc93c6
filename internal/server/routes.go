package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/minivault/internal/server/middleware"
	v1 "github.com/nulzo/minivault/internal/server/v1"
)

func (s *Server) SetupRoutes() {
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.ErrorHandler(s.logger))

	if s.config.Tracing.Enabled {
		s.router.Use(middleware.Tracing("minivault"))
	}

	if s.config.RateLimit.RequestsPerSecond > 0 {
		limiter := middleware.NewRateLimiter(
			s.config.RateLimit.RequestsPerSecond,
			s.config.RateLimit.Burst,
			s.logger,
		)
		s.router.Use(limiter.Middleware())
	}

	s.router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Welcome to MiniVault API",
			"version": "1.0.0",
			"health":  "/health",
		})
	})

	healthHandler := v1.NewHealthHandler(s.backend)
	s.router.GET("/health", healthHandler.Health)

	generateHandler := v1.NewGenerateHandler(s.service, s.logger)
	s.router.POST("/generate", generateHandler.Generate)

	logsHandler := v1.NewLogsHandler(s.records)
	s.router.GET("/logs/recent", logsHandler.Recent)
	s.router.GET("/logs/stats", logsHandler.Stats)
}
