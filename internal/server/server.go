package server

import (
	"net/http"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nulzo/minivault/internal/config"
	"github.com/nulzo/minivault/internal/gateway"
	"github.com/nulzo/minivault/internal/server/middleware"
	v1 "github.com/nulzo/minivault/internal/server/v1"
)

// Server wires the gin engine, middleware chain and route handlers.
type Server struct {
	router  *gin.Engine
	config  *config.Config
	logger  *zap.Logger
	service *gateway.Service
	backend v1.BackendProbe
	records v1.LogReader
}

func New(cfg *config.Config, logger *zap.Logger, service *gateway.Service, backend v1.BackendProbe, records v1.LogReader) *Server {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	engine.Use(ginzap.RecoveryWithZap(logger, true))
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Logger(logger))

	s := &Server{
		router:  engine,
		config:  cfg,
		logger:  logger,
		service: service,
		backend: backend,
		records: records,
	}

	s.SetupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}
