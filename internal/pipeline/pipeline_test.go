package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/TerexitariusStomp/HummdingerAI/internal/exchange"
	"github.com/TerexitariusStomp/HummdingerAI/internal/execution"
	"github.com/TerexitariusStomp/HummdingerAI/internal/journal"
	"github.com/TerexitariusStomp/HummdingerAI/internal/risk"
	"github.com/TerexitariusStomp/HummdingerAI/internal/signal"
	"github.com/TerexitariusStomp/HummdingerAI/internal/strategy"
)

var market = Market{Symbol: "ETH/USDT", Timeframe: "5m", CandleLimit: 60, BookDepth: 10}

type downConnector struct{ *exchange.StubConnector }

func (downConnector) Ticker(context.Context, string) (signal.Ticker, error) {
	return signal.Ticker{}, errors.New("exchange unreachable")
}

type countingChannel struct{ sent int }

func (c *countingChannel) Name() string { return "counting" }

func (c *countingChannel) Send(context.Context, string, signal.Signal) (bool, error) {
	c.sent++
	return true, nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func newPipeline(conn exchange.Connector, ch execution.BotChannel, opts ...Option) *Pipeline {
	fetcher := exchange.NewFetcher(conn, zerolog.Nop(), exchange.WithSleep(noSleep))
	router := execution.NewRouter(ch, nil, risk.Limits{}, zerolog.Nop())
	policy := execution.Policy{ForwardToBot: true, StageBundles: true}
	return New(fetcher, strategy.NewHeuristic(), router, market, policy, zerolog.Nop(), opts...)
}

func TestRunOnceProducesResult(t *testing.T) {
	ch := &countingChannel{}
	mem := journal.NewMemory(1)
	p := newPipeline(exchange.NewStubConnector(), ch, WithJournal(mem))

	res, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if res.Signal.Action != signal.Buy || res.Signal.Confidence != 0.58 {
		t.Fatalf("expected heuristic buy on rising stub, got %+v", res.Signal)
	}
	if res.Signal.Source != "heuristic" {
		t.Fatalf("expected heuristic source, got %q", res.Signal.Source)
	}
	if len(res.Snapshot.Candles) != 60 || len(res.Snapshot.Book.Bids) != 10 {
		t.Fatalf("unexpected snapshot shape: %d candles, %d bids", len(res.Snapshot.Candles), len(res.Snapshot.Book.Bids))
	}
	if !res.Intent.ForwardToBot || !res.Intent.StageBundle {
		t.Fatalf("unexpected intent %+v", res.Intent)
	}
	if !res.Outcome.Forwarded || ch.sent != 1 {
		t.Fatalf("expected one forwarded signal, got %+v", res.Outcome)
	}
	entries := mem.Snapshot()
	if len(entries) != 1 || entries[0].Action != "buy" || entries[0].Target != "counting" {
		t.Fatalf("unexpected journal %+v", entries)
	}
}

func TestRunOnceDataUnavailable(t *testing.T) {
	ch := &countingChannel{}
	mem := journal.NewMemory(1)
	p := newPipeline(downConnector{exchange.NewStubConnector()}, ch, WithJournal(mem))

	_, err := p.RunOnce(context.Background())
	if !errors.Is(err, exchange.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
	if ch.sent != 0 || len(mem.Snapshot()) != 0 {
		t.Fatalf("aborted cycle must not route or journal")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ch := &countingChannel{}
	p := newPipeline(exchange.NewStubConnector(), ch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, 10*time.Millisecond) }()

	time.Sleep(35 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
	if ch.sent < 1 {
		t.Fatalf("expected at least one cycle, got %d", ch.sent)
	}
}
