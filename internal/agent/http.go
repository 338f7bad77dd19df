package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPEngine posts the prompt to a JSON endpoint.
type HTTPEngine struct {
	url    string
	client *http.Client
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

// NewHTTPEngine builds an engine; a zero timeout means 30s.
func NewHTTPEngine(url string, timeout time.Duration) *HTTPEngine {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPEngine{url: url, client: &http.Client{Timeout: timeout}}
}

// Run sends the prompt and decodes the JSON object reply.
func (e *HTTPEngine) Run(ctx context.Context, prompt string) (Response, error) {
	body, err := json.Marshal(promptRequest{Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("marshal prompt: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("agent status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode agent response: %w", err)
	}
	return unwrap(raw), nil
}
