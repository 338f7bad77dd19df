package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/TerexitariusStomp/HummdingerAI/internal/agent"
	"github.com/TerexitariusStomp/HummdingerAI/internal/signal"
)

const (
	defaultConfidence = 0.5
	defaultReason     = "model response"
)

// Delegated asks an external reasoning engine for the trade call.
type Delegated struct {
	engine  agent.Engine
	prompt  string
	timeout time.Duration
	log     zerolog.Logger
}

// NewDelegated wraps engine; timeout bounds each call when positive.
func NewDelegated(engine agent.Engine, prompt string, timeout time.Duration, log zerolog.Logger) *Delegated {
	return &Delegated{engine: engine, prompt: prompt, timeout: timeout, log: log}
}

// Name returns the identifier for logging.
func (d *Delegated) Name() string { return "delegated" }

// Generate renders the snapshot into a prompt and maps the engine reply onto a Signal.
func (d *Delegated) Generate(ctx context.Context, snap signal.MarketSnapshot) (sig signal.Signal) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Str("symbol", snap.Symbol).Msg("reasoning engine panicked")
			sig = signal.New(signal.Hold, 0, fmt.Sprint(r)).From(d.Name())
		}
	}()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	resp, err := d.engine.Run(ctx, RenderPrompt(d.prompt, snap))
	if err != nil {
		d.log.Error().Err(err).Str("symbol", snap.Symbol).Msg("reasoning engine failed")
		return signal.New(signal.Hold, 0, err.Error()).From(d.Name())
	}
	return fromResponse(resp).From(d.Name())
}

// RenderPrompt appends the serialized snapshot to the system prompt.
func RenderPrompt(system string, snap signal.MarketSnapshot) string {
	ctxJSON, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		ctxJSON = []byte(fmt.Sprintf("%+v", snap))
	}
	return fmt.Sprintf("%s\nContext:\n%s", system, ctxJSON)
}

func fromResponse(resp agent.Response) signal.Signal {
	action := signal.Hold
	if raw, ok := resp["action"].(string); ok {
		action = signal.ParseAction(raw)
	}
	confidence := defaultConfidence
	if v, ok := number(resp["confidence"]); ok {
		confidence = v
	}
	reason := defaultReason
	if raw, ok := resp["reason"].(string); ok && strings.TrimSpace(raw) != "" {
		reason = raw
	}
	return signal.New(action, confidence, reason)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
