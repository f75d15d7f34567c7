package market

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Timeframe identifiers understood by the feed and the signal engine.
const (
	TF1m  = "1m"
	TF5m  = "5m"
	TF15m = "15m"
	TF1h  = "1h"
	TF4h  = "4h"
	TF1d  = "1d"
)

// TimeframeDuration returns the candle duration for a timeframe identifier.
// Unknown identifiers map to one minute.
func TimeframeDuration(tf string) time.Duration {
	switch tf {
	case TF1m:
		return time.Minute
	case TF5m:
		return 5 * time.Minute
	case TF15m:
		return 15 * time.Minute
	case TF1h:
		return time.Hour
	case TF4h:
		return 4 * time.Hour
	case TF1d:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

// Feed provides OHLCV candles for a symbol/timeframe pair.
type Feed interface {
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}

// TimeframeResult holds the outcome of one timeframe fetch in a
// multi-timeframe request.
type TimeframeResult struct {
	Timeframe string
	Candles   []Candle
	Err       error
}

// MultiTimeframeData holds candles fetched across several timeframes for one
// symbol. Timeframes that failed or timed out appear in Failed instead of
// Data so a degraded fetch never blocks the whole request.
type MultiTimeframeData struct {
	Symbol    string
	Timestamp time.Time
	Data      map[string][]Candle
	Failed    map[string]error
}

// GetMultiTimeframe fetches candles for every requested timeframe in
// parallel. Each timeframe gets its own timeout budget; a timeframe that
// misses it is recorded as failed rather than delaying the join.
func GetMultiTimeframe(ctx context.Context, feed Feed, symbol string, timeframes []string, limit int, perTimeframeTimeout time.Duration) *MultiTimeframeData {
	result := &MultiTimeframeData{
		Symbol:    symbol,
		Timestamp: time.Now(),
		Data:      make(map[string][]Candle, len(timeframes)),
		Failed:    make(map[string]error),
	}

	results := make(chan TimeframeResult, len(timeframes))
	var wg sync.WaitGroup

	for _, tf := range timeframes {
		wg.Add(1)
		go func(timeframe string) {
			defer wg.Done()

			tfCtx, cancel := context.WithTimeout(ctx, perTimeframeTimeout)
			defer cancel()

			candles, err := feed.GetCandles(tfCtx, symbol, timeframe, limit)
			if err != nil {
				results <- TimeframeResult{Timeframe: timeframe, Err: fmt.Errorf("fetch %s %s: %w", symbol, timeframe, err)}
				return
			}
			results <- TimeframeResult{Timeframe: timeframe, Candles: candles}
		}(tf)
	}

	wg.Wait()
	close(results)

	for r := range results {
		if r.Err != nil {
			result.Failed[r.Timeframe] = r.Err
			continue
		}
		result.Data[r.Timeframe] = r.Candles
	}

	return result
}
