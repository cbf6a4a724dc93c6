package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// vaultctl is a smoke-test harness for a running MiniVault instance:
// it exercises every endpoint and reports pass/fail per check.

type client struct {
	baseURL string
	http    *http.Client
}

func main() {
	baseURL := flag.String("url", "http://localhost:8000", "Base URL of the MiniVault API")
	prompt := flag.String("prompt", "Hello, how are you?", "Prompt used for generation checks")
	model := flag.String("model", "", "Optional model override")
	limit := flag.Int("limit", 5, "Number of recent logs to fetch")
	flag.Parse()

	action := flag.Arg(0)
	if action == "" {
		action = "all"
	}

	c := &client{
		baseURL: strings.TrimRight(*baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}

	ok := true
	switch action {
	case "health":
		ok = c.checkHealth()
	case "generate":
		ok = c.checkGenerate(*prompt, *model)
	case "stream":
		ok = c.checkStream(*prompt, *model)
	case "logs":
		ok = c.checkRecentLogs(*limit)
	case "stats":
		ok = c.checkStats()
	case "all":
		for _, check := range []func() bool{
			c.checkHealth,
			func() bool { return c.checkGenerate(*prompt, *model) },
			func() bool { return c.checkStream(*prompt, *model) },
			func() bool { return c.checkRecentLogs(*limit) },
			c.checkStats,
		} {
			if !check() {
				ok = false
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown action %q (want health|generate|stream|logs|stats|all)\n", action)
		os.Exit(2)
	}

	if !ok {
		os.Exit(1)
	}
}

func (c *client) checkHealth() bool {
	fmt.Println("checking health endpoint...")

	var resp struct {
		Status          string   `json:"status"`
		OllamaStatus    string   `json:"ollama_status"`
		AvailableModels []string `json:"available_models"`
	}
	if err := c.getJSON("/health", &resp); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}

	fmt.Printf("  OK: status=%s ollama=%s", resp.Status, resp.OllamaStatus)
	if len(resp.AvailableModels) > 0 {
		fmt.Printf(" models=%s", strings.Join(resp.AvailableModels, ","))
	}
	fmt.Println()
	return true
}

func (c *client) checkGenerate(prompt, model string) bool {
	fmt.Printf("generating response for %q...\n", truncate(prompt, 50))

	payload := map[string]interface{}{"prompt": prompt}
	if model != "" {
		payload["model"] = model
	}

	start := time.Now()
	var resp struct {
		Response string `json:"response"`
		Model    string `json:"model"`
	}
	if err := c.postJSON("/generate", payload, &resp); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}

	fmt.Printf("  OK: model=%s duration=%s\n", resp.Model, time.Since(start).Round(time.Millisecond))
	fmt.Printf("  response: %s\n", truncate(resp.Response, 200))
	return true
}

func (c *client) checkStream(prompt, model string) bool {
	fmt.Printf("streaming response for %q...\n", truncate(prompt, 50))

	payload := map[string]interface{}{"prompt": prompt, "stream": true}
	if model != "" {
		payload["model"] = model
	}
	body, _ := json.Marshal(payload)

	resp, err := c.http.Post(c.baseURL+"/generate", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Printf("  FAIL: status %d\n", resp.StatusCode)
		return false
	}

	tokens := 0
	sawDone := false
	sawSentinel := false
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			sawSentinel = true
			break
		}

		var chunk struct {
			Token string `json:"token"`
			Done  bool   `json:"done"`
		}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if chunk.Token != "" {
			tokens++
		}
		if chunk.Done {
			sawDone = true
		}
	}

	if !sawDone || !sawSentinel {
		fmt.Printf("  FAIL: incomplete stream (done=%v sentinel=%v)\n", sawDone, sawSentinel)
		return false
	}
	fmt.Printf("  OK: %d token chunks, terminal chunk and sentinel received\n", tokens)
	return true
}

func (c *client) checkRecentLogs(limit int) bool {
	fmt.Printf("fetching %d recent logs...\n", limit)

	var resp struct {
		Count int `json:"count"`
		Logs  []struct {
			Timestamp  string `json:"timestamp"`
			Model      string `json:"model"`
			DurationMS int64  `json:"duration_ms"`
			Success    bool   `json:"success"`
		} `json:"logs"`
	}
	if err := c.getJSON(fmt.Sprintf("/logs/recent?limit=%d", limit), &resp); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}

	fmt.Printf("  OK: %d entries\n", resp.Count)
	for i, entry := range resp.Logs {
		status := "ok"
		if !entry.Success {
			status = "failed"
		}
		fmt.Printf("  %d. [%s] %s model=%s duration=%dms\n", i+1, entry.Timestamp, status, entry.Model, entry.DurationMS)
	}
	return true
}

func (c *client) checkStats() bool {
	fmt.Println("fetching interaction stats...")

	var resp struct {
		Total             int     `json:"total_interactions"`
		Successful        int     `json:"successful_interactions"`
		Failed            int     `json:"failed_interactions"`
		AverageDurationMS float64 `json:"average_duration_ms"`
	}
	if err := c.getJSON("/logs/stats", &resp); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}

	fmt.Printf("  OK: total=%d successful=%d failed=%d avg=%.2fms\n",
		resp.Total, resp.Successful, resp.Failed, resp.AverageDurationMS)
	return true
}

func (c *client) getJSON(path string, target interface{}) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

func (c *client) postJSON(path string, payload, target interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
