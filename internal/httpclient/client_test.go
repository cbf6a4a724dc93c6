package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRequest_DecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "value", r.Header.Get("X-Custom"))
		fmt.Fprint(w, `{"version": "0.5.0"}`)
	}))
	defer srv.Close()

	var resp struct {
		Version string `json:"version"`
	}
	err := SendRequest(context.Background(), srv.Client(), http.MethodGet, srv.URL,
		map[string]string{"X-Custom": "value"}, nil, &resp)
	require.NoError(t, err)
	assert.Equal(t, "0.5.0", resp.Version)
}

func TestSendRequest_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	err := SendRequest(context.Background(), srv.Client(), http.MethodGet, srv.URL, nil, nil, nil)
	require.Error(t, err)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusNotFound, upstream.StatusCode)
	assert.Contains(t, string(upstream.Body), "model not found")
}

func TestStreamRequest_ProcessesEachLine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/x-ndjson", r.Header.Get("Accept"))
		fmt.Fprintln(w, `{"n": 1}`)
		fmt.Fprintln(w)
		fmt.Fprintln(w, `{"n": 2}`)
	}))
	defer srv.Close()

	var lines []string
	err := StreamRequest(context.Background(), srv.Client(), http.MethodPost, srv.URL, nil,
		map[string]string{"prompt": "hi"},
		func(line string) error {
			lines = append(lines, line)
			return nil
		})
	require.NoError(t, err)

	// blank lines are skipped
	assert.Equal(t, []string{`{"n": 1}`, `{"n": 2}`}, lines)
}

func TestStreamRequest_StopSentinelEndsCleanly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "first")
		fmt.Fprintln(w, "second")
		fmt.Fprintln(w, "never seen")
	}))
	defer srv.Close()

	var lines []string
	err := StreamRequest(context.Background(), srv.Client(), http.MethodPost, srv.URL, nil, nil,
		func(line string) error {
			lines = append(lines, line)
			if line == "second" {
				return ErrStopStream
			}
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, lines)
}

func TestStreamRequest_ProcessorErrorAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "line")
	}))
	defer srv.Close()

	boom := errors.New("boom")
	err := StreamRequest(context.Background(), srv.Client(), http.MethodPost, srv.URL, nil, nil,
		func(line string) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestStreamRequest_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := StreamRequest(context.Background(), srv.Client(), http.MethodPost, srv.URL, nil, nil,
		func(line string) error { return nil })

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusBadGateway, upstream.StatusCode)
}
