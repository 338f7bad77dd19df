package exchange

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"

	"github.com/TerexitariusStomp/HummdingerAI/internal/metrics"
	"github.com/TerexitariusStomp/HummdingerAI/internal/signal"
)

// ErrDataUnavailable is returned when ticker or candle retrieval exhausts its retries.
var ErrDataUnavailable = errors.New("market data unavailable")

const (
	defaultAttempts = 3
	defaultMinWait  = time.Second
	defaultMaxWait  = 5 * time.Second
)

// Fetcher assembles MarketSnapshots from a Connector. Every call re-fetches live state;
// concurrent callers each hit the upstream independently.
type Fetcher struct {
	conn     Connector
	log      zerolog.Logger
	attempts int
	minWait  time.Duration
	maxWait  time.Duration
	sleep    func(context.Context, time.Duration) error
	now      func() time.Time
}

// Option configures Fetcher construction parameters.
type Option func(*Fetcher)

// WithRetry overrides the attempt budget and backoff bounds used for ticker and candles.
func WithRetry(attempts int, minWait, maxWait time.Duration) Option {
	return func(f *Fetcher) {
		if attempts > 0 {
			f.attempts = attempts
		}
		if minWait > 0 {
			f.minWait = minWait
		}
		if maxWait > 0 {
			f.maxWait = maxWait
		}
	}
}

// WithSleep replaces the wait between attempts (tests use it to avoid real delays).
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(f *Fetcher) {
		if fn != nil {
			f.sleep = fn
		}
	}
}

// WithClock sets the timestamp source for FetchedAt.
func WithClock(fn func() time.Time) Option {
	return func(f *Fetcher) {
		if fn != nil {
			f.now = fn
		}
	}
}

// NewFetcher wraps conn with retry and degradation rules.
func NewFetcher(conn Connector, log zerolog.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		conn:     conn,
		log:      log,
		attempts: defaultAttempts,
		minWait:  defaultMinWait,
		maxWait:  defaultMaxWait,
		sleep:    sleepContext,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.maxWait < f.minWait {
		f.maxWait = f.minWait
	}
	return f
}

// Fetch reads ticker, candles, and depth for symbol. Only ticker/candle exhaustion fails the call.
func (f *Fetcher) Fetch(ctx context.Context, symbol, timeframe string, candleLimit, bookDepth int) (signal.MarketSnapshot, error) {
	ticker, err := retry(ctx, f, "ticker", symbol, func(ctx context.Context) (signal.Ticker, error) {
		return f.conn.Ticker(ctx, symbol)
	})
	if err != nil {
		return signal.MarketSnapshot{}, err
	}

	candles, err := retry(ctx, f, "candles", symbol, func(ctx context.Context) ([]signal.Candle, error) {
		return f.conn.Candles(ctx, symbol, timeframe, candleLimit)
	})
	if err != nil {
		return signal.MarketSnapshot{}, err
	}
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })

	return signal.MarketSnapshot{
		Symbol:    symbol,
		Timeframe: timeframe,
		Candles:   candles,
		Ticker:    ticker,
		Book:      f.orderBook(ctx, symbol, bookDepth),
		FetchedAt: f.now(),
	}, nil
}

// orderBook makes a single attempt and degrades to an empty book on failure.
func (f *Fetcher) orderBook(ctx context.Context, symbol string, depth int) signal.OrderBook {
	if depth <= 0 {
		return signal.EmptyBook()
	}
	metrics.FetchAttemptsTotal.WithLabelValues("order_book").Inc()
	book, err := f.conn.OrderBook(ctx, symbol, depth)
	if err != nil {
		metrics.DegradedTotal.WithLabelValues("order_book").Inc()
		f.log.Warn().Err(err).Str("symbol", symbol).Msg("order book fetch failed, using empty depth")
		return signal.EmptyBook()
	}
	return normalizeBook(book, depth)
}

func normalizeBook(book signal.OrderBook, depth int) signal.OrderBook {
	bids := append([]signal.BookLevel{}, book.Bids...)
	asks := append([]signal.BookLevel{}, book.Asks...)
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.SliceStable(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })
	if len(bids) > depth {
		bids = bids[:depth]
	}
	if len(asks) > depth {
		asks = asks[:depth]
	}
	return signal.OrderBook{Bids: bids, Asks: asks}
}

func retry[T any](ctx context.Context, f *Fetcher, call, symbol string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	b := &backoff.Backoff{Min: f.minWait, Max: f.maxWait, Factor: 2}

	var lastErr error
	attempt := 0
	for attempt < f.attempts {
		attempt++
		metrics.FetchAttemptsTotal.WithLabelValues(call).Inc()
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if attempt == f.attempts || ctx.Err() != nil {
			break
		}
		wait := b.Duration()
		f.log.Warn().Err(err).Str("call", call).Str("symbol", symbol).Int("attempt", attempt).Dur("wait", wait).Msg("upstream call failed, retrying")
		if err := f.sleep(ctx, wait); err != nil {
			lastErr = err
			break
		}
	}
	return zero, fmt.Errorf("%w: %s for %s after %d attempts: %w", ErrDataUnavailable, call, symbol, attempt, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
