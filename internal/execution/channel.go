package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/TerexitariusStomp/HummdingerAI/internal/signal"
)

const gatewayTimeout = 5 * time.Second

// BotChannel delivers a signal to the external bot controller. Send reports whether the
// signal actually left the process.
type BotChannel interface {
	Name() string
	Send(ctx context.Context, symbol string, sig signal.Signal) (bool, error)
}

// NewChannel prefers the gateway, then a local bot process; with neither it returns nil.
func NewChannel(gatewayURL, botPath, strategy string, log zerolog.Logger) BotChannel {
	if strings.TrimSpace(gatewayURL) != "" {
		return NewGatewayChannel(gatewayURL, strategy, log)
	}
	if strings.TrimSpace(botPath) != "" {
		return NewProcessChannel(botPath, log)
	}
	return nil
}

// GatewayChannel posts signals to the bot gateway's REST API.
type GatewayChannel struct {
	baseURL  string
	strategy string
	client   *http.Client
	log      zerolog.Logger
}

type gatewayPayload struct {
	Strategy string        `json:"strategy"`
	Symbol   string        `json:"symbol"`
	Signal   signal.Signal `json:"signal"`
}

// NewGatewayChannel builds a channel with the 5s gateway timeout.
func NewGatewayChannel(baseURL, strategy string, log zerolog.Logger) *GatewayChannel {
	return &GatewayChannel{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		strategy: strategy,
		client:   &http.Client{Timeout: gatewayTimeout},
		log:      log,
	}
}

// Name returns the identifier for logging.
func (g *GatewayChannel) Name() string { return "gateway" }

// Send posts {strategy, symbol, signal} to {gateway}/signals; any non-2xx status is a failure.
func (g *GatewayChannel) Send(ctx context.Context, symbol string, sig signal.Signal) (bool, error) {
	payload := gatewayPayload{Strategy: g.strategy, Symbol: symbol, Signal: sig}
	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("marshal signal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/signals", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("gateway status %d", resp.StatusCode)
	}

	g.log.Info().
		Str("strategy", g.strategy).
		Str("symbol", symbol).
		Str("action", string(sig.Action)).
		Float64("confidence", sig.Confidence).
		Msg("signal pushed to bot gateway")
	return true, nil
}

// ProcessChannel stands in for a bot running as a local process. No scripting interface
// exists for it, so Send only logs.
type ProcessChannel struct {
	path string
	log  zerolog.Logger
}

// NewProcessChannel records the local bot path.
func NewProcessChannel(path string, log zerolog.Logger) *ProcessChannel {
	return &ProcessChannel{path: path, log: log}
}

// Name returns the identifier for logging.
func (p *ProcessChannel) Name() string { return "process" }

// Send is a no-op passthrough.
func (p *ProcessChannel) Send(_ context.Context, symbol string, sig signal.Signal) (bool, error) {
	p.log.Info().Str("path", p.path).Str("symbol", symbol).Str("action", string(sig.Action)).Msg("bot runs locally; signal not forwarded")
	return false, nil
}
