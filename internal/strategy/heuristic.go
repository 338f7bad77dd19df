package strategy

import (
	"context"

	"github.com/markcheno/go-talib"

	"github.com/TerexitariusStomp/HummdingerAI/internal/signal"
)

// Decision boundary of the moving-average heuristic.
const (
	shortWindow     = 5
	longWindow      = 20
	upperBand       = 1.002
	lowerBand       = 0.998
	trendConfidence = 0.58
	flatConfidence  = 0.42
)

// Heuristic compares a 5-close moving average with the average of up to the last 20 closes.
type Heuristic struct{}

// NewHeuristic returns the deterministic fallback backend.
func NewHeuristic() *Heuristic { return &Heuristic{} }

// Name returns the identifier for logging.
func (h *Heuristic) Name() string { return "heuristic" }

// Generate evaluates the short/long moving-average spread of the snapshot's closes.
func (h *Heuristic) Generate(_ context.Context, snap signal.MarketSnapshot) signal.Signal {
	closes := snap.Closes()
	if len(closes) > longWindow {
		closes = closes[len(closes)-longWindow:]
	}
	if len(closes) < shortWindow {
		return signal.New(signal.Hold, 0, "insufficient data").From(h.Name())
	}

	shortMA := lastSMA(closes[len(closes)-shortWindow:])
	longMA := lastSMA(closes)
	switch {
	case shortMA > upperBand*longMA:
		return signal.New(signal.Buy, trendConfidence, "short MA above long MA").From(h.Name())
	case shortMA < lowerBand*longMA:
		return signal.New(signal.Sell, trendConfidence, "short MA below long MA").From(h.Name())
	default:
		return signal.New(signal.Hold, flatConfidence, "flat trend").From(h.Name())
	}
}

// lastSMA is the simple average over the whole series.
func lastSMA(series []float64) float64 {
	out := talib.Sma(series, len(series))
	return out[len(out)-1]
}
