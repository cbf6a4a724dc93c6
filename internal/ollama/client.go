package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"
	"unicode"

	goversion "github.com/hashicorp/go-version"
	"go.uber.org/zap"

	"github.com/nulzo/minivault/internal/cache"
	"github.com/nulzo/minivault/internal/config"
	"github.com/nulzo/minivault/internal/httpclient"
	"github.com/nulzo/minivault/pkg/api"
)

const modelsCacheKey = "ollama:models"

type generatePayload struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateReply struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type tagsReply struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Client wraps the Ollama HTTP API. Backend-facing failures never
// escape Generate or GenerateStream: they are folded into fallback
// results so the serving layer always has a well-formed answer.
type Client struct {
	baseURL      string
	defaultModel string
	timeout      time.Duration
	idleTimeout  time.Duration
	http         *http.Client
	probe        *http.Client
	store        cache.Store // nil when caching is off
	storeTTL     time.Duration
	logger       *zap.Logger
}

func NewClient(cfg config.OllamaConfig, store cache.Store, storeTTL time.Duration, logger *zap.Logger) *Client {
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		defaultModel: cfg.DefaultModel,
		timeout:      timeout,
		idleTimeout:  cfg.StreamIdleTimeout,
		http:         &http.Client{},
		probe:        &http.Client{Timeout: probeTimeout},
		store:        store,
		storeTTL:     storeTTL,
		logger:       logger,
	}
}

// IsAvailable probes the tags endpoint with a short timeout. Any
// network, timeout or non-200 failure reports unavailable.
func (c *Client) IsAvailable(ctx context.Context) bool {
	err := httpclient.SendRequest(ctx, c.probe, http.MethodGet, c.baseURL+"/api/tags", nil, nil, nil)
	if err != nil {
		c.logger.Debug("ollama availability probe failed", zap.Error(err))
		return false
	}
	return true
}

// ListModels returns the model names known to the backend, or an empty
// slice on any failure.
func (c *Client) ListModels(ctx context.Context) []string {
	if c.store != nil {
		var cached []string
		if err := c.store.Get(ctx, modelsCacheKey, &cached); err == nil {
			return cached
		}
	}

	var reply tagsReply
	if err := httpclient.SendRequest(ctx, c.probe, http.MethodGet, c.baseURL+"/api/tags", nil, nil, &reply); err != nil {
		c.logger.Warn("failed to list ollama models", zap.Error(err))
		return []string{}
	}

	models := make([]string, 0, len(reply.Models))
	for _, m := range reply.Models {
		models = append(models, m.Name)
	}

	if c.store != nil {
		if err := c.store.Set(ctx, modelsCacheKey, models, c.storeTTL); err != nil {
			c.logger.Debug("failed to cache model list", zap.Error(err))
		}
	}

	return models
}

// Version reports the backend's version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var reply struct {
		Version string `json:"version"`
	}
	if err := httpclient.SendRequest(ctx, c.probe, http.MethodGet, c.baseURL+"/api/version", nil, nil, &reply); err != nil {
		return "", err
	}
	return reply.Version, nil
}

// VerifyVersion warns when the backend reports a version older than
// min. The check is advisory: it never fails the caller.
func (c *Client) VerifyVersion(ctx context.Context, min string) {
	if min == "" {
		return
	}

	raw, err := c.Version(ctx)
	if err != nil {
		c.logger.Debug("could not read ollama version", zap.Error(err))
		return
	}

	current, err := goversion.NewVersion(raw)
	if err != nil {
		c.logger.Debug("unparseable ollama version", zap.String("version", raw))
		return
	}
	floor, err := goversion.NewVersion(min)
	if err != nil {
		c.logger.Debug("unparseable minimum version", zap.String("version", min))
		return
	}

	if current.LessThan(floor) {
		c.logger.Warn("ollama is older than the supported minimum",
			zap.String("version", raw),
			zap.String("minimum", min))
	}
}

// resolveModel applies the availability and model-list checks shared by
// Generate and GenerateStream. It returns the model to use and, when the
// request cannot proceed, a non-empty fallback reason.
func (c *Client) resolveModel(ctx context.Context, requested string) (string, string) {
	name := requested
	if name == "" {
		name = c.defaultModel
	}

	if !c.IsAvailable(ctx) {
		return name, "Ollama service unavailable"
	}

	models := c.ListModels(ctx)
	if len(models) == 0 {
		return name, "No models available"
	}

	if !slices.Contains(models, name) {
		c.logger.Warn("requested model not available, substituting",
			zap.String("requested", name),
			zap.String("substitute", models[0]))
		name = models[0]
	}

	return name, ""
}

// Generate issues one blocking, non-streaming generation call.
func (c *Client) Generate(ctx context.Context, prompt, model string) *api.GenerationResult {
	name, reason := c.resolveModel(ctx, model)
	if reason != "" {
		return c.fallbackResult(prompt, name, reason)
	}

	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reply generateReply
	err := httpclient.SendRequest(reqCtx, c.http, http.MethodPost, c.baseURL+"/api/generate", nil,
		generatePayload{Model: name, Prompt: prompt, Stream: false}, &reply)
	if err != nil {
		c.logger.Error("ollama generation failed", zap.String("model", name), zap.Error(err))
		return c.fallbackResult(prompt, name, describeFailure(err))
	}

	now := time.Now()
	return &api.GenerationResult{
		Response:   strings.TrimRightFunc(reply.Response, unicode.IsSpace),
		Model:      name,
		Timestamp:  now,
		DurationMS: now.Sub(start).Milliseconds(),
		Success:    true,
	}
}

// GenerateStream produces one StreamChunk per token as tokens arrive,
// followed by exactly one terminal chunk with Done=true carrying the
// accumulated response and total duration. The returned channel is
// finite and closed by the producer; consume it exactly once.
func (c *Client) GenerateStream(ctx context.Context, prompt, model string) <-chan api.StreamChunk {
	out := make(chan api.StreamChunk)

	go func() {
		defer close(out)

		name, reason := c.resolveModel(ctx, model)
		if reason != "" {
			c.send(ctx, out, c.fallbackChunk(prompt, name, reason))
			return
		}

		start := time.Now()
		var full strings.Builder

		// An idle timer guards against a backend that holds the stream
		// open without sending anything; cancelling the request context
		// aborts the stalled read.
		streamCtx := ctx
		var idle *time.Timer
		if c.idleTimeout > 0 {
			var cancel context.CancelFunc
			streamCtx, cancel = context.WithCancel(ctx)
			defer cancel()

			idle = time.AfterFunc(c.idleTimeout, cancel)
			defer idle.Stop()
		}

		finished := false
		err := httpclient.StreamRequest(streamCtx, c.http, http.MethodPost, c.baseURL+"/api/generate", nil,
			generatePayload{Model: name, Prompt: prompt, Stream: true},
			func(line string) error {
				if idle != nil {
					idle.Reset(c.idleTimeout)
				}

				var reply generateReply
				if err := json.Unmarshal([]byte(line), &reply); err != nil {
					c.logger.Warn("skipping malformed stream line", zap.Error(err))
					return nil
				}

				if reply.Response != "" {
					full.WriteString(reply.Response)
					if !c.send(ctx, out, api.StreamChunk{
						Token:     reply.Response,
						Model:     name,
						Timestamp: time.Now(),
						Success:   true,
					}) {
						return ctx.Err()
					}
				}

				if reply.Done {
					finished = true
					now := time.Now()
					c.send(ctx, out, api.StreamChunk{
						Model:        name,
						Timestamp:    now,
						Done:         true,
						Success:      true,
						DurationMS:   now.Sub(start).Milliseconds(),
						FullResponse: strings.TrimRightFunc(full.String(), unicode.IsSpace),
					})
					return httpclient.ErrStopStream
				}

				return nil
			})

		if err != nil && !finished && ctx.Err() == nil {
			c.logger.Error("ollama streaming failed", zap.String("model", name), zap.Error(err))
			c.send(ctx, out, c.fallbackChunk(prompt, name, describeFailure(err)))
		}
	}()

	return out
}

// send relays a chunk unless the consumer has gone away.
func (c *Client) send(ctx context.Context, out chan<- api.StreamChunk, chunk api.StreamChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) fallbackResult(prompt, model, reason string) *api.GenerationResult {
	c.logger.Info("serving fallback response", zap.String("reason", reason))
	return &api.GenerationResult{
		Response:    FallbackText(prompt),
		Model:       model + " (fallback)",
		Timestamp:   time.Now(),
		DurationMS:  0,
		Success:     false,
		ErrorReason: reason,
	}
}

func (c *Client) fallbackChunk(prompt, model, reason string) api.StreamChunk {
	c.logger.Info("serving fallback stream response", zap.String("reason", reason))
	text := FallbackText(prompt)
	return api.StreamChunk{
		Token:        text,
		Model:        model + " (fallback)",
		Timestamp:    time.Now(),
		Done:         true,
		Success:      false,
		ErrorReason:  reason,
		FullResponse: text,
	}
}

// describeFailure maps a transport error to the human-readable reason
// embedded in fallback results.
func describeFailure(err error) string {
	var upstream *httpclient.UpstreamError
	switch {
	case errors.As(err, &upstream):
		return fmt.Sprintf("API error: %d", upstream.StatusCode)
	case errors.Is(err, context.DeadlineExceeded):
		return "Request timeout"
	default:
		return err.Error()
	}
}
