// Package strategy turns market snapshots into normalized trading signals.
package strategy

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/TerexitariusStomp/HummdingerAI/internal/agent"
	"github.com/TerexitariusStomp/HummdingerAI/internal/signal"
)

// Generator defines behaviour shared by signal backends. Generate never fails: backend
// errors surface as zero-confidence hold signals.
type Generator interface {
	Generate(ctx context.Context, snap signal.MarketSnapshot) signal.Signal
	Name() string
}

// Params expresses tunable knobs required by the delegated backend.
type Params struct {
	Prompt  string
	Timeout time.Duration
}

// Build picks the backend once: a configured engine gets the delegated backend, otherwise the heuristic.
func Build(engine agent.Engine, params Params, log zerolog.Logger) Generator {
	if engine == nil {
		log.Warn().Msg("no reasoning engine configured, falling back to heuristic signals")
		return NewHeuristic()
	}
	return NewDelegated(engine, params.Prompt, params.Timeout, log)
}
