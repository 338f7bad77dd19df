// Package signal standardizes payloads shared between data ingestion, strategy, and execution layers.
package signal

import (
	"strings"
	"time"
)

// Action enumerates the recommendations a strategy may emit.
type Action string

const (
	Buy  Action = "buy"
	Sell Action = "sell"
	Hold Action = "hold"
)

// ParseAction maps free-form text onto an Action; anything unrecognized is Hold.
func ParseAction(s string) Action {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case Buy:
		return Buy
	case Sell:
		return Sell
	default:
		return Hold
	}
}

// Signal expresses a normalized trading recommendation produced once per cycle.
type Signal struct {
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
	Source     string  `json:"-"`
}

// New builds a Signal with confidence clamped to [0,1].
func New(action Action, confidence float64, reason string) Signal {
	return Signal{Action: ParseAction(string(action)), Confidence: Clamp(confidence), Reason: reason}
}

// From tags the signal with the backend that produced it.
func (s Signal) From(source string) Signal {
	s.Source = source
	return s
}

// Clamp bounds a confidence value to [0,1]; NaN collapses to 0.
func Clamp(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Candle is one OHLCV bar.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Ticker carries the 24h summary fields consumed downstream.
type Ticker struct {
	Last       float64 `json:"last"`
	ChangePct  float64 `json:"change_pct"`
	BaseVolume float64 `json:"base_volume"`
}

// BookLevel is a single price/size pair of an order book side.
type BookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBook holds top-N depth; bids descend by price, asks ascend.
type OrderBook struct {
	Bids []BookLevel `json:"bids"`
	Asks []BookLevel `json:"asks"`
}

// EmptyBook is the degraded order book substituted when depth is unavailable.
func EmptyBook() OrderBook {
	return OrderBook{Bids: []BookLevel{}, Asks: []BookLevel{}}
}

// MarketSnapshot is a point-in-time read of ticker, candles, and depth for one symbol.
type MarketSnapshot struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Candles   []Candle  `json:"candles"`
	Ticker    Ticker    `json:"ticker"`
	Book      OrderBook `json:"order_book"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Closes returns close prices in chronological order.
func (m MarketSnapshot) Closes() []float64 {
	out := make([]float64, len(m.Candles))
	for i, c := range m.Candles {
		out[i] = c.Close
	}
	return out
}
