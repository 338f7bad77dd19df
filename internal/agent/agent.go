// Package agent talks to an external reasoning engine that turns a market prompt into a trade call.
package agent

import (
	"context"
	"strings"
	"time"
)

const (
	TransportHTTP      = "http"
	TransportWebSocket = "websocket"
)

// Response is the engine's loosely typed reply; callers must tolerate missing fields.
type Response map[string]any

// Engine runs a single prompt against the reasoning backend.
type Engine interface {
	Run(ctx context.Context, prompt string) (Response, error)
}

// New returns the engine for transport, or nil when url is empty so callers fall back to heuristics.
func New(transport, url string, timeout time.Duration) Engine {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	if strings.EqualFold(transport, TransportWebSocket) {
		return NewWebSocketEngine(url, timeout)
	}
	return NewHTTPEngine(url, timeout)
}

// unwrap accepts either the fields at top level or nested under "signal".
func unwrap(raw map[string]any) Response {
	if nested, ok := raw["signal"].(map[string]any); ok {
		return Response(nested)
	}
	return Response(raw)
}
