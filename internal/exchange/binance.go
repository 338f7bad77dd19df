package exchange

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"github.com/TerexitariusStomp/HummdingerAI/internal/signal"
)

// BinanceConnector reads spot market data through the Binance REST API.
type BinanceConnector struct {
	client *binance.Client
}

// NewBinanceConnector builds a connector; baseURL overrides the production endpoint when set.
func NewBinanceConnector(apiKey, apiSecret, baseURL string) *BinanceConnector {
	client := binance.NewClient(apiKey, apiSecret)
	client.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	if baseURL != "" {
		client.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	return &BinanceConnector{client: client}
}

// Ticker returns the 24h rolling statistics for symbol.
func (c *BinanceConnector) Ticker(ctx context.Context, symbol string) (signal.Ticker, error) {
	stats, err := c.client.NewListPriceChangeStatsService().
		Symbol(NormalizeSymbol(symbol)).
		Do(ctx)
	if err != nil {
		return signal.Ticker{}, fmt.Errorf("binance ticker: %w", err)
	}
	if len(stats) == 0 {
		return signal.Ticker{}, fmt.Errorf("binance ticker: no stats for %s", symbol)
	}
	s := stats[0]
	var t signal.Ticker
	if t.Last, err = parseNumber(s.LastPrice); err != nil {
		return signal.Ticker{}, fmt.Errorf("binance ticker last price: %w", err)
	}
	if t.ChangePct, err = parseNumber(s.PriceChangePercent); err != nil {
		return signal.Ticker{}, fmt.Errorf("binance ticker change: %w", err)
	}
	if t.BaseVolume, err = parseNumber(s.Volume); err != nil {
		return signal.Ticker{}, fmt.Errorf("binance ticker volume: %w", err)
	}
	return t, nil
}

// Candles returns up to limit klines in chronological order.
func (c *BinanceConnector) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]signal.Candle, error) {
	klines, err := c.client.NewKlinesService().
		Symbol(NormalizeSymbol(symbol)).
		Interval(timeframe).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines: %w", err)
	}

	candles := make([]signal.Candle, 0, len(klines))
	for _, k := range klines {
		fields := [5]string{k.Open, k.High, k.Low, k.Close, k.Volume}
		var values [5]float64
		for i, raw := range fields {
			if values[i], err = parseNumber(raw); err != nil {
				return nil, fmt.Errorf("binance kline %d: %w", k.OpenTime, err)
			}
		}
		candles = append(candles, signal.Candle{
			Time:   time.UnixMilli(k.OpenTime).UTC(),
			Open:   values[0],
			High:   values[1],
			Low:    values[2],
			Close:  values[3],
			Volume: values[4],
		})
	}
	return candles, nil
}

// OrderBook returns the top depth levels per side.
func (c *BinanceConnector) OrderBook(ctx context.Context, symbol string, depth int) (signal.OrderBook, error) {
	res, err := c.client.NewDepthService().
		Symbol(NormalizeSymbol(symbol)).
		Limit(depth).
		Do(ctx)
	if err != nil {
		return signal.OrderBook{}, fmt.Errorf("binance depth: %w", err)
	}

	book := signal.OrderBook{
		Bids: make([]signal.BookLevel, 0, len(res.Bids)),
		Asks: make([]signal.BookLevel, 0, len(res.Asks)),
	}
	for _, b := range res.Bids {
		lvl, err := parseLevel(b.Price, b.Quantity)
		if err != nil {
			return signal.OrderBook{}, fmt.Errorf("binance bid: %w", err)
		}
		book.Bids = append(book.Bids, lvl)
	}
	for _, a := range res.Asks {
		lvl, err := parseLevel(a.Price, a.Quantity)
		if err != nil {
			return signal.OrderBook{}, fmt.Errorf("binance ask: %w", err)
		}
		book.Asks = append(book.Asks, lvl)
	}
	return book, nil
}

func parseLevel(price, qty string) (signal.BookLevel, error) {
	p, err := parseNumber(price)
	if err != nil {
		return signal.BookLevel{}, err
	}
	q, err := parseNumber(qty)
	if err != nil {
		return signal.BookLevel{}, err
	}
	return signal.BookLevel{Price: p, Size: q}, nil
}

func parseNumber(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}
