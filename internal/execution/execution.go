// Package execution decides what a signal turns into: a bot notification, staged bundle parameters, or nothing.
package execution

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/TerexitariusStomp/HummdingerAI/internal/metrics"
	"github.com/TerexitariusStomp/HummdingerAI/internal/risk"
	"github.com/TerexitariusStomp/HummdingerAI/internal/signal"
)

// Policy carries the caller's explicit opt-ins.
type Policy struct {
	ForwardToBot bool
	StageBundles bool
}

// Intent is the routing decision for one signal within one cycle.
type Intent struct {
	Symbol       string
	Signal       signal.Signal
	ForwardToBot bool
	StageBundle  bool
}

// Outcome reports what Execute did. ForwardErr is informational; it is never returned as an error.
type Outcome struct {
	Target     string
	Forwarded  bool
	Staged     bool
	ForwardErr error
}

// Stager prepares bundle parameters for a non-hold intent. It must not submit anything.
type Stager interface {
	Stage(ctx context.Context, in Intent)
}

// Router turns signals into intents and carries them out.
type Router struct {
	channel BotChannel
	stager  Stager
	limits  risk.Limits
	log     zerolog.Logger
}

// NewRouter wires the bot channel and stager; either may be nil.
func NewRouter(channel BotChannel, stager Stager, limits risk.Limits, log zerolog.Logger) *Router {
	return &Router{channel: channel, stager: stager, limits: limits, log: log}
}

// Route derives the intent. Forwarding follows the policy flag alone; staging also requires a
// non-hold action that passes the risk limits.
func (r *Router) Route(sig signal.Signal, symbol string, policy Policy) Intent {
	return Intent{
		Symbol:       symbol,
		Signal:       sig,
		ForwardToBot: policy.ForwardToBot,
		StageBundle:  policy.StageBundles && r.limits.AllowStage(sig),
	}
}

// Execute performs the intent. Failures are logged and reported in the Outcome.
func (r *Router) Execute(ctx context.Context, in Intent) Outcome {
	var out Outcome
	if in.ForwardToBot {
		out = r.forward(ctx, in)
	}

	stage := in.StageBundle && in.Signal.Action != signal.Hold
	switch {
	case stage && r.stager != nil:
		r.stager.Stage(ctx, in)
		out.Staged = true
	case stage:
		r.log.Debug().Str("symbol", in.Symbol).Msg("bundle staging requested but no stager wired")
	case in.Signal.Action != signal.Hold:
		r.log.Info().Str("symbol", in.Symbol).Str("action", string(in.Signal.Action)).Msg("bundle staging not enabled for this signal")
	}
	return out
}

func (r *Router) forward(ctx context.Context, in Intent) Outcome {
	if r.channel == nil {
		metrics.RoutesTotal.WithLabelValues("none", "skipped").Inc()
		r.log.Warn().Str("symbol", in.Symbol).Msg("no bot target configured for signals")
		return Outcome{Target: "none"}
	}

	target := r.channel.Name()
	delivered, err := r.channel.Send(ctx, in.Symbol, in.Signal)
	if err != nil {
		metrics.RoutesTotal.WithLabelValues(target, "error").Inc()
		r.log.Error().Err(err).Str("target", target).Str("symbol", in.Symbol).Msg("failed to push signal to bot")
		return Outcome{Target: target, ForwardErr: err}
	}
	result := "noop"
	if delivered {
		result = "ok"
	}
	metrics.RoutesTotal.WithLabelValues(target, result).Inc()
	return Outcome{Target: target, Forwarded: delivered}
}
