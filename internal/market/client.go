package market

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/rs/zerolog"
)

// Client fetches futures candles from Binance with an in-memory cache in
// front of the REST call.
type Client struct {
	futures *futures.Client
	cache   *CandleCache
	logger  zerolog.Logger
}

// NewClient creates a market data client. API credentials may be empty since
// kline endpoints are public.
func NewClient(apiKey, secretKey string, testnet bool, logger zerolog.Logger) *Client {
	if testnet {
		futures.UseTestnet = true
	}
	fc := futures.NewClient(apiKey, secretKey)
	return &Client{
		futures: fc,
		cache:   NewCandleCache(),
		logger:  logger.With().Str("component", "market").Logger(),
	}
}

// GetCandles fetches candles for a symbol/interval, serving from cache while
// the entry is fresh.
func (c *Client) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	cacheKey := fmt.Sprintf("%s:%s:%d", symbol, interval, limit)

	if cached := c.cache.Get(cacheKey); cached != nil {
		return cached, nil
	}

	klines, err := c.futures.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s %s: %w", symbol, interval, err)
	}

	candles := make([]Candle, len(klines))
	for i, k := range klines {
		candles[i] = Candle{
			OpenTime:  time.UnixMilli(k.OpenTime),
			Open:      parseFloat(k.Open),
			High:      parseFloat(k.High),
			Low:       parseFloat(k.Low),
			Close:     parseFloat(k.Close),
			Volume:    parseFloat(k.Volume),
			CloseTime: time.UnixMilli(k.CloseTime),
		}
	}

	c.cache.Set(cacheKey, candles, cacheTTL(interval))
	c.logger.Debug().Str("symbol", symbol).Str("interval", interval).Int("count", len(candles)).Msg("fetched candles")

	return candles, nil
}

// cacheTTL returns the cache lifetime for an interval. Shorter timeframes go
// stale faster.
func cacheTTL(interval string) time.Duration {
	switch interval {
	case TF1m:
		return 30 * time.Second
	case TF5m:
		return 2 * time.Minute
	case TF15m:
		return 5 * time.Minute
	case TF1h:
		return 30 * time.Minute
	case TF4h:
		return 2 * time.Hour
	case TF1d:
		return 12 * time.Hour
	default:
		return time.Minute
	}
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
