package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"vault-trading-bot/internal/analysis"
	"vault-trading-bot/internal/market"
)

// CandleLimit is how much history each timeframe fetch requests. Enough for
// the slowest indicator plus trend structure.
const CandleLimit = 200

// Cache stores marshalled signals so the HTTP API and broadcaster share one
// computation. Implementations degrade gracefully: a cache error means
// recompute, never fail.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// Service ties the candle feed, per-timeframe analyzer and aggregation engine
// together for one deployment.
type Service struct {
	feed     market.Feed
	analyzer *analysis.Analyzer
	engine   *Engine
	cfg      Config
	cache    Cache // optional
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewService creates a signal service. cache may be nil; perTimeframeTimeout
// bounds how long one timeframe fetch may block the fan-in.
func NewService(feed market.Feed, cfg Config, cache Cache, perTimeframeTimeout time.Duration, logger zerolog.Logger) *Service {
	if perTimeframeTimeout <= 0 {
		perTimeframeTimeout = 10 * time.Second
	}
	return &Service{
		feed:     feed,
		analyzer: analysis.NewAnalyzer(),
		engine:   NewEngine(cfg),
		cfg:      cfg,
		cache:    cache,
		timeout:  perTimeframeTimeout,
		logger:   logger.With().Str("component", "signal").Logger(),
	}
}

// GetSignal computes the unified signal for a symbol over the requested
// timeframes (the configured set when empty). Timeframes that fail to
// respond within their budget appear as degraded HOLD analyses with a
// warning instead of blocking or being dropped.
func (s *Service) GetSignal(ctx context.Context, symbol string, timeframes []string) (*UnifiedSignal, error) {
	if len(timeframes) == 0 {
		timeframes = s.cfg.Timeframes
	}
	for _, tf := range timeframes {
		if _, ok := s.cfg.TrendWeights[tf]; !ok {
			return nil, fmt.Errorf("unknown timeframe %q", tf)
		}
	}

	cacheKey := signalCacheKey(symbol, timeframes)
	if cached := s.cachedSignal(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	mtf := market.GetMultiTimeframe(ctx, s.feed, symbol, timeframes, CandleLimit, s.timeout)

	analyses := make([]analysis.TimeframeAnalysis, 0, len(timeframes))
	for _, tf := range timeframes {
		if candles, ok := mtf.Data[tf]; ok {
			analyses = append(analyses, *s.analyzer.Analyze(symbol, tf, candles))
			continue
		}
		// Feed failure or timeout degrades to a neutral entry
		err := mtf.Failed[tf]
		s.logger.Warn().Str("symbol", symbol).Str("timeframe", tf).Err(err).Msg("timeframe degraded")
		analyses = append(analyses, analysis.TimeframeAnalysis{
			Symbol:     symbol,
			Timeframe:  tf,
			Direction:  analysis.DirectionHold,
			Trend:      analysis.TrendSideways,
			RSI:        50,
			MACDSignal: analysis.MACDNeutral,
			Warnings:   []string{"timeframe data unavailable"},
		})
	}

	sig, err := s.engine.Aggregate(symbol, analyses)
	if err != nil {
		return nil, err
	}

	s.storeSignal(ctx, cacheKey, sig, timeframes)
	return sig, nil
}

// AnalyzeTimeframe runs a single-timeframe analysis, for the per-timeframe
// API endpoint.
func (s *Service) AnalyzeTimeframe(ctx context.Context, symbol, timeframe string) (*analysis.TimeframeAnalysis, error) {
	candles, err := s.feed.GetCandles(ctx, symbol, timeframe, CandleLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", symbol, timeframe, err)
	}
	return s.analyzer.Analyze(symbol, timeframe, candles), nil
}

func (s *Service) cachedSignal(ctx context.Context, key string) *UnifiedSignal {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil || data == nil {
		return nil
	}
	var sig UnifiedSignal
	if err := json.Unmarshal(data, &sig); err != nil {
		return nil
	}
	return &sig
}

func (s *Service) storeSignal(ctx context.Context, key string, sig *UnifiedSignal, timeframes []string) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(sig)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, signalTTL(timeframes)); err != nil {
		s.logger.Debug().Err(err).Msg("signal cache write failed")
	}
}

// signalTTL keeps a cached signal for half the shortest requested timeframe,
// floored at 30 seconds.
func signalTTL(timeframes []string) time.Duration {
	shortest := time.Duration(0)
	for _, tf := range timeframes {
		d := market.TimeframeDuration(tf)
		if shortest == 0 || d < shortest {
			shortest = d
		}
	}
	ttl := shortest / 2
	if ttl < 30*time.Second {
		ttl = 30 * time.Second
	}
	return ttl
}

func signalCacheKey(symbol string, timeframes []string) string {
	key := "signal:" + symbol
	for _, tf := range timeframes {
		key += ":" + tf
	}
	return key
}
