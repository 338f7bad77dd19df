// Package pipeline runs the fetch, generate, route and execute stages of one trading cycle.
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/TerexitariusStomp/HummdingerAI/internal/exchange"
	"github.com/TerexitariusStomp/HummdingerAI/internal/execution"
	"github.com/TerexitariusStomp/HummdingerAI/internal/journal"
	"github.com/TerexitariusStomp/HummdingerAI/internal/metrics"
	"github.com/TerexitariusStomp/HummdingerAI/internal/signal"
	"github.com/TerexitariusStomp/HummdingerAI/internal/strategy"
)

// Market selects what each cycle fetches.
type Market struct {
	Symbol      string
	Timeframe   string
	CandleLimit int
	BookDepth   int
}

// Result is everything one cycle produced.
type Result struct {
	Snapshot signal.MarketSnapshot
	Signal   signal.Signal
	Intent   execution.Intent
	Outcome  execution.Outcome
}

// Pipeline wires the stages together. It holds no state between cycles.
type Pipeline struct {
	fetcher   *exchange.Fetcher
	generator strategy.Generator
	router    *execution.Router
	market    Market
	policy    execution.Policy
	journal   journal.Recorder
	log       zerolog.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithJournal records a summary of every completed cycle.
func WithJournal(r journal.Recorder) Option {
	return func(p *Pipeline) { p.journal = r }
}

// New assembles a pipeline from its stages.
func New(fetcher *exchange.Fetcher, generator strategy.Generator, router *execution.Router, market Market, policy execution.Policy, log zerolog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:   fetcher,
		generator: generator,
		router:    router,
		market:    market,
		policy:    policy,
		log:       log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunOnce executes one cycle. The only error is a snapshot that could not be fetched; every
// later stage reports trouble inside the Result.
func (p *Pipeline) RunOnce(ctx context.Context) (Result, error) {
	snap, err := p.fetcher.Fetch(ctx, p.market.Symbol, p.market.Timeframe, p.market.CandleLimit, p.market.BookDepth)
	if err != nil {
		p.log.Error().Err(err).Str("symbol", p.market.Symbol).Msg("cycle aborted: market data unavailable")
		return Result{}, err
	}

	sig := p.generator.Generate(ctx, snap)
	if sig.Source == "" {
		sig = sig.From(p.generator.Name())
	}
	metrics.SignalsTotal.WithLabelValues(sig.Source, string(sig.Action)).Inc()
	p.log.Info().
		Str("symbol", snap.Symbol).
		Str("source", sig.Source).
		Str("action", string(sig.Action)).
		Float64("confidence", sig.Confidence).
		Str("reason", sig.Reason).
		Msg("signal generated")

	intent := p.router.Route(sig, snap.Symbol, p.policy)
	outcome := p.router.Execute(ctx, intent)

	res := Result{Snapshot: snap, Signal: sig, Intent: intent, Outcome: outcome}
	if p.journal != nil {
		p.journal.Record(entryFor(res))
	}
	return res, nil
}

// Run executes cycles back to back every interval until ctx is cancelled. A failed cycle is
// logged and the next one proceeds on schedule.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := p.RunOnce(ctx); err != nil && ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func entryFor(res Result) journal.Entry {
	e := journal.Entry{
		Time:       res.Snapshot.FetchedAt,
		Symbol:     res.Snapshot.Symbol,
		Source:     res.Signal.Source,
		Action:     string(res.Signal.Action),
		Confidence: res.Signal.Confidence,
		Reason:     res.Signal.Reason,
		LastPrice:  res.Snapshot.Ticker.Last,
		Target:     res.Outcome.Target,
		Forwarded:  res.Outcome.Forwarded,
		Staged:     res.Outcome.Staged,
	}
	if res.Outcome.ForwardErr != nil {
		e.ForwardErr = res.Outcome.ForwardErr.Error()
	}
	return e
}
