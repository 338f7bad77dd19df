// Package exchange hosts upstream market data connectors and the snapshot fetcher built on them.
package exchange

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/TerexitariusStomp/HummdingerAI/internal/signal"
)

const (
	// ProviderStub serves deterministic synthetic data (useful for tests/offline work).
	ProviderStub = "stub"
	// ProviderBinance queries the Binance spot REST API.
	ProviderBinance = "binance"
)

// Connector is the upstream market data source. Implementations are not required to be
// safe for concurrent use; callers run one cycle at a time.
type Connector interface {
	Ticker(ctx context.Context, symbol string) (signal.Ticker, error)
	Candles(ctx context.Context, symbol, timeframe string, limit int) ([]signal.Candle, error)
	OrderBook(ctx context.Context, symbol string, depth int) (signal.OrderBook, error)
}

// ConnectorConfig carries the credentials and endpoint for NewConnector.
type ConnectorConfig struct {
	Provider  string
	APIKey    string
	APISecret string
	BaseURL   string
}

// NewConnector constructs a connector backed by the requested provider.
func NewConnector(cfg ConnectorConfig) (Connector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderBinance:
		return NewBinanceConnector(cfg.APIKey, cfg.APISecret, cfg.BaseURL), nil
	case "", ProviderStub:
		return NewStubConnector(), nil
	default:
		return nil, fmt.Errorf("unsupported exchange provider %q", cfg.Provider)
	}
}

// NormalizeSymbol turns "eth/usdt" style pairs into the concatenated venue form "ETHUSDT".
func NormalizeSymbol(symbol string) string {
	r := strings.NewReplacer("/", "", "-", "", "_", "", " ", "")
	return strings.ToUpper(r.Replace(symbol))
}

const stubBars = 60

// StubConnector emits a deterministic upward drifting series.
type StubConnector struct {
	Base  float64
	Step  float64
	Start time.Time
}

// NewStubConnector returns a stub starting at 100 and rising 0.1 per bar.
func NewStubConnector() *StubConnector {
	return &StubConnector{Base: 100, Step: 0.1, Start: time.Unix(1_700_000_000, 0).UTC()}
}

func (s *StubConnector) Ticker(ctx context.Context, symbol string) (signal.Ticker, error) {
	if err := ctx.Err(); err != nil {
		return signal.Ticker{}, err
	}
	last := s.Base + s.Step*stubBars
	return signal.Ticker{Last: last, ChangePct: (last - s.Base) / s.Base * 100, BaseVolume: 1000}, nil
}

func (s *StubConnector) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]signal.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	step, err := time.ParseDuration(timeframe)
	if err != nil || step <= 0 {
		step = time.Minute
	}
	if limit < 0 {
		limit = 0
	}
	out := make([]signal.Candle, limit)
	px := s.Base
	for i := range out {
		out[i] = signal.Candle{
			Time:   s.Start.Add(time.Duration(i) * step),
			Open:   px,
			High:   px + s.Step,
			Low:    px - s.Step,
			Close:  px + s.Step,
			Volume: 1,
		}
		px += s.Step
	}
	return out, nil
}

func (s *StubConnector) OrderBook(ctx context.Context, symbol string, depth int) (signal.OrderBook, error) {
	if err := ctx.Err(); err != nil {
		return signal.OrderBook{}, err
	}
	mid := s.Base + s.Step*stubBars
	book := signal.OrderBook{Bids: make([]signal.BookLevel, depth), Asks: make([]signal.BookLevel, depth)}
	for i := 0; i < depth; i++ {
		off := float64(i+1) * 0.01
		book.Bids[i] = signal.BookLevel{Price: mid - off, Size: 1}
		book.Asks[i] = signal.BookLevel{Price: mid + off, Size: 1}
	}
	return book, nil
}
