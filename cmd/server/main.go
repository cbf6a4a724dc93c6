package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nulzo/minivault/internal/cache"
	"github.com/nulzo/minivault/internal/config"
	"github.com/nulzo/minivault/internal/gateway"
	"github.com/nulzo/minivault/internal/interaction"
	"github.com/nulzo/minivault/internal/ollama"
	"github.com/nulzo/minivault/internal/platform/logger"
	"github.com/nulzo/minivault/internal/platform/otel"
	"github.com/nulzo/minivault/internal/server"
	"github.com/nulzo/minivault/internal/server/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.Initialize(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	defer logger.Sync()
	zlog := logger.Get()

	validator.Init()

	if cfg.Tracing.Enabled {
		shutdown, err := otel.InitTracer("minivault", zlog, os.Stdout)
		if err != nil {
			zlog.Fatal("failed to initialize tracing", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
	}

	store := newCacheStore(cfg, zlog)

	client := ollama.NewClient(cfg.Ollama, store, cfg.Cache.TTL, zlog)
	records := interaction.NewLog(cfg.Log.File, zlog)
	service := gateway.NewService(client, records, zlog)

	announceBackend(client, cfg, zlog)

	srv := server.New(cfg, zlog, service, client, records)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: srv.Handler(),
	}

	go func() {
		zlog.Info("starting MiniVault API", zap.String("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newCacheStore(cfg *config.Config, zlog *zap.Logger) cache.Store {
	switch cfg.Cache.Backend {
	case "memory":
		return cache.NewMemory()
	case "redis":
		zlog.Info("using redis model-list cache", zap.String("addr", cfg.Cache.Redis.Addr))
		return cache.NewRedis(cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB)
	default:
		return nil
	}
}

// announceBackend logs the backend state at boot so an operator can
// tell immediately whether generation will be live or fallback-only.
func announceBackend(client *ollama.Client, cfg *config.Config, zlog *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	zlog.Info("ollama backend configured",
		zap.String("url", cfg.Ollama.BaseURL),
		zap.String("default_model", cfg.Ollama.DefaultModel))

	if client.IsAvailable(ctx) {
		zlog.Info("ollama is available", zap.Strings("models", client.ListModels(ctx)))
		client.VerifyVersion(ctx, cfg.Ollama.MinVersion)
	} else {
		zlog.Warn("ollama is not available - fallback responses will be served")
	}
}
