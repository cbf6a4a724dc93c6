package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nulzo/minivault/internal/cache"
	"github.com/nulzo/minivault/internal/config"
	"github.com/nulzo/minivault/pkg/api"
)

type mockOllama struct {
	models        []string
	response      string
	generateCode  int
	streamLines   []string
	generateCalls int
}

func (m *mockOllama) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		type tag struct {
			Name string `json:"name"`
		}
		tags := make([]tag, 0, len(m.models))
		for _, name := range m.models {
			tags = append(tags, tag{Name: name})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"models": tags})
	})

	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"version": "0.5.0"})
	})

	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		m.generateCalls++

		if m.generateCode != 0 && m.generateCode != http.StatusOK {
			w.WriteHeader(m.generateCode)
			return
		}

		var req struct {
			Stream bool `json:"stream"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		if req.Stream {
			flusher := w.(http.Flusher)
			for _, line := range m.streamLines {
				fmt.Fprintln(w, line)
				flusher.Flush()
			}
			return
		}

		json.NewEncoder(w).Encode(map[string]interface{}{"response": m.response, "done": true})
	})

	return mux
}

func newTestClient(t *testing.T, baseURL string, store cache.Store) *Client {
	t.Helper()
	return NewClient(config.OllamaConfig{
		BaseURL:      baseURL,
		DefaultModel: "llama2",
		Timeout:      5 * time.Second,
		ProbeTimeout: 2 * time.Second,
	}, store, time.Second, zap.NewNop())
}

// deadBackendURL returns a URL that refuses connections.
func deadBackendURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func TestIsAvailable(t *testing.T) {
	mock := &mockOllama{models: []string{"llama2"}}
	srv := httptest.NewServer(mock.handler())
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	assert.True(t, client.IsAvailable(context.Background()))

	dead := newTestClient(t, deadBackendURL(t), nil)
	assert.False(t, dead.IsAvailable(context.Background()))
}

func TestListModels(t *testing.T) {
	mock := &mockOllama{models: []string{"llama2", "codellama"}}
	srv := httptest.NewServer(mock.handler())
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	assert.Equal(t, []string{"llama2", "codellama"}, client.ListModels(context.Background()))
}

func TestListModels_FailureYieldsEmpty(t *testing.T) {
	client := newTestClient(t, deadBackendURL(t), nil)
	assert.Empty(t, client.ListModels(context.Background()))
}

func TestListModels_CachedWithinTTL(t *testing.T) {
	mock := &mockOllama{models: []string{"llama2"}}
	srv := httptest.NewServer(mock.handler())
	defer srv.Close()

	client := newTestClient(t, srv.URL, cache.NewMemory())

	first := client.ListModels(context.Background())
	second := client.ListModels(context.Background())
	assert.Equal(t, first, second)
}

func TestGenerate_Success(t *testing.T) {
	mock := &mockOllama{models: []string{"llama2"}, response: "The capital of France is Paris.  \n"}
	srv := httptest.NewServer(mock.handler())
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	result := client.Generate(context.Background(), "What is the capital of France?", "")

	require.True(t, result.Success)
	assert.Equal(t, "The capital of France is Paris.", result.Response)
	assert.Equal(t, "llama2", result.Model)
	assert.GreaterOrEqual(t, result.DurationMS, int64(0))
	assert.Empty(t, result.ErrorReason)
}

func TestGenerate_BackendUnavailable(t *testing.T) {
	client := newTestClient(t, deadBackendURL(t), nil)
	result := client.Generate(context.Background(), "Hello there", "")

	require.False(t, result.Success)
	assert.Equal(t, "Ollama service unavailable", result.ErrorReason)
	assert.Equal(t, "llama2 (fallback)", result.Model)
	assert.Equal(t, FallbackText("Hello there"), result.Response)
	assert.Equal(t, int64(0), result.DurationMS)
}

func TestGenerate_ModelSubstitution(t *testing.T) {
	mock := &mockOllama{models: []string{"mistral", "llama2"}, response: "ok"}
	srv := httptest.NewServer(mock.handler())
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	result := client.Generate(context.Background(), "hi there", "no-such-model")

	require.True(t, result.Success)
	assert.Equal(t, "mistral", result.Model)
}

func TestGenerate_NoModelsAvailable(t *testing.T) {
	mock := &mockOllama{models: []string{}}
	srv := httptest.NewServer(mock.handler())
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	result := client.Generate(context.Background(), "anything", "")

	require.False(t, result.Success)
	assert.Equal(t, "No models available", result.ErrorReason)
	assert.Zero(t, mock.generateCalls)
}

func TestGenerate_UpstreamError(t *testing.T) {
	mock := &mockOllama{models: []string{"llama2"}, generateCode: http.StatusInternalServerError}
	srv := httptest.NewServer(mock.handler())
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	result := client.Generate(context.Background(), "anything", "")

	require.False(t, result.Success)
	assert.Equal(t, "API error: 500", result.ErrorReason)
	assert.Equal(t, "llama2 (fallback)", result.Model)
}

func collectChunks(t *testing.T, ch <-chan api.StreamChunk) []api.StreamChunk {
	t.Helper()
	var chunks []api.StreamChunk
	timeout := time.After(5 * time.Second)
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				return chunks
			}
			chunks = append(chunks, chunk)
		case <-timeout:
			t.Fatal("timed out draining stream")
		}
	}
}

func TestGenerateStream_Success(t *testing.T) {
	mock := &mockOllama{
		models: []string{"llama2"},
		streamLines: []string{
			`{"response": "Hel", "done": false}`,
			`{"response": "lo", "done": false}`,
			`{"response": "", "done": true}`,
		},
	}
	srv := httptest.NewServer(mock.handler())
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	chunks := collectChunks(t, client.GenerateStream(context.Background(), "say hello", ""))

	require.Len(t, chunks, 3)

	assert.Equal(t, "Hel", chunks[0].Token)
	assert.False(t, chunks[0].Done)
	assert.Equal(t, "lo", chunks[1].Token)

	terminal := chunks[2]
	assert.True(t, terminal.Done)
	assert.True(t, terminal.Success)
	assert.Equal(t, "Hello", terminal.FullResponse)
	assert.Equal(t, "llama2", terminal.Model)
	assert.GreaterOrEqual(t, terminal.DurationMS, int64(0))
}

func TestGenerateStream_SkipsMalformedLines(t *testing.T) {
	mock := &mockOllama{
		models: []string{"llama2"},
		streamLines: []string{
			`{"response": "Hi", "done": false}`,
			`{not json at all`,
			`{"response": "!", "done": false}`,
			`{"response": "", "done": true}`,
		},
	}
	srv := httptest.NewServer(mock.handler())
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	chunks := collectChunks(t, client.GenerateStream(context.Background(), "hi", ""))

	require.Len(t, chunks, 3)
	assert.Equal(t, "Hi!", chunks[2].FullResponse)
}

func TestGenerateStream_BackendUnavailable(t *testing.T) {
	client := newTestClient(t, deadBackendURL(t), nil)
	chunks := collectChunks(t, client.GenerateStream(context.Background(), "Hello", ""))

	require.Len(t, chunks, 1)
	chunk := chunks[0]
	assert.True(t, chunk.Done)
	assert.False(t, chunk.Success)
	assert.Equal(t, "Ollama service unavailable", chunk.ErrorReason)
	assert.Equal(t, FallbackText("Hello"), chunk.Token)
	assert.Equal(t, "llama2 (fallback)", chunk.Model)
}

func TestGenerateStream_UpstreamError(t *testing.T) {
	mock := &mockOllama{models: []string{"llama2"}, generateCode: http.StatusBadGateway}
	srv := httptest.NewServer(mock.handler())
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	chunks := collectChunks(t, client.GenerateStream(context.Background(), "hi", ""))

	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].Done)
	assert.False(t, chunks[0].Success)
	assert.Equal(t, "API error: 502", chunks[0].ErrorReason)
}

func TestVersion(t *testing.T) {
	mock := &mockOllama{models: []string{"llama2"}}
	srv := httptest.NewServer(mock.handler())
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	version, err := client.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.5.0", version)
}
