package signal

import (
	"fmt"
	"math"
	"sort"
	"time"

	"vault-trading-bot/internal/analysis"
	"vault-trading-bot/internal/market"
	"vault-trading-bot/internal/patterns"
)

// Config holds the tunable parameters of the unified signal engine. The
// stated defaults are a starting configuration, not frozen constants.
type Config struct {
	Timeframes          []string           `json:"timeframes"`
	TrendWeights        map[string]float64 `json:"trend_weights"`
	EntryWeights        map[string]float64 `json:"entry_weights"`
	ConfidenceThreshold float64            `json:"confidence_threshold"`
	TakeProfitPct       float64            `json:"take_profit_pct"`
	StopLossPct         float64            `json:"stop_loss_pct"`
}

// DefaultConfig returns the engine defaults: four timeframes with longer
// horizons weighing more on trend and shorter ones on entry timing.
func DefaultConfig() Config {
	return Config{
		Timeframes: []string{market.TF15m, market.TF1h, market.TF4h, market.TF1d},
		TrendWeights: map[string]float64{
			market.TF15m: 0.10,
			market.TF1h:  0.20,
			market.TF4h:  0.30,
			market.TF1d:  0.40,
		},
		EntryWeights: map[string]float64{
			market.TF15m: 0.40,
			market.TF1h:  0.30,
			market.TF4h:  0.20,
			market.TF1d:  0.10,
		},
		ConfidenceThreshold: 40,
		TakeProfitPct:       3.0,
		StopLossPct:         1.5,
	}
}

// Validate checks the configuration. Weight sets must each sum to 1.0 across
// the configured timeframes; a violation is a startup error, never a
// per-request one.
func (c Config) Validate() error {
	if len(c.Timeframes) == 0 {
		return fmt.Errorf("signal config: no timeframes configured")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 100 {
		return fmt.Errorf("signal config: confidence threshold %.1f outside [0,100]", c.ConfidenceThreshold)
	}

	trendSum, entrySum := 0.0, 0.0
	for _, tf := range c.Timeframes {
		tw, ok := c.TrendWeights[tf]
		if !ok {
			return fmt.Errorf("signal config: missing trend weight for timeframe %s", tf)
		}
		ew, ok := c.EntryWeights[tf]
		if !ok {
			return fmt.Errorf("signal config: missing entry weight for timeframe %s", tf)
		}
		trendSum += tw
		entrySum += ew
	}
	if math.Abs(trendSum-1.0) > 0.001 {
		return fmt.Errorf("signal config: trend weights sum to %.3f, want 1.0", trendSum)
	}
	if math.Abs(entrySum-1.0) > 0.001 {
		return fmt.Errorf("signal config: entry weights sum to %.3f, want 1.0", entrySum)
	}
	return nil
}

// UnifiedSignal is the engine's single directional decision for a symbol,
// combining every analyzed timeframe.
type UnifiedSignal struct {
	Symbol          string                       `json:"symbol"`
	Direction       analysis.Direction           `json:"direction"`
	Confidence      float64                      `json:"confidence"`
	Timeframes      []analysis.TimeframeAnalysis `json:"timeframes"`
	TrendAlignment  float64                      `json:"trend_alignment"`
	PatternStrength float64                      `json:"pattern_strength"`
	Patterns        []patterns.DetectedPattern   `json:"patterns"`
	SuggestedEntry  float64                      `json:"suggested_entry"`
	SuggestedTP     float64                      `json:"suggested_tp"`
	SuggestedSL     float64                      `json:"suggested_sl"`
	Reasons         []string                     `json:"reasons"`
	Warnings        []string                     `json:"warnings"`
	Timestamp       time.Time                    `json:"timestamp"`
}

// IsStrong reports whether the signal clears the caller's confidence bar.
// True iff confidence >= minConfidence, direction is not HOLD and at least
// half the timeframes agree.
func (s *UnifiedSignal) IsStrong(minConfidence float64) bool {
	return s.Confidence >= minConfidence &&
		s.Direction != analysis.DirectionHold &&
		s.TrendAlignment >= 50
}

// Engine combines per-timeframe analyses into one unified signal.
type Engine struct {
	cfg Config
}

// NewEngine creates a signal engine. The configuration must already be
// validated; NewEngine does not re-check it.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Aggregate combines the supplied timeframe analyses into a UnifiedSignal.
// Every supplied analysis appears in the result, degraded ones included.
// The only error is an empty analysis set.
func (e *Engine) Aggregate(symbol string, analyses []analysis.TimeframeAnalysis) (*UnifiedSignal, error) {
	if len(analyses) == 0 {
		return nil, fmt.Errorf("aggregate %s: no timeframe analyses supplied", symbol)
	}

	sig := &UnifiedSignal{
		Symbol:     symbol,
		Direction:  analysis.DirectionHold,
		Timeframes: analyses,
		Timestamp:  time.Now().UTC(),
		Reasons:    []string{},
		Warnings:   []string{},
	}

	// 1. Weighted trend score in [-1, 1]
	trendScore := 0.0
	for _, a := range analyses {
		trendScore += e.cfg.TrendWeights[a.Timeframe] * trendLean(a.Trend)
	}

	// 2. Majority direction and trend alignment
	majority, agreeing := majorityTrend(analyses)
	sig.TrendAlignment = 100 * float64(agreeing) / float64(len(analyses))

	// 3. Pattern strength, normalized and capped
	sig.Patterns = rankedPatterns(analyses)
	patternSum := 0.0
	for _, p := range sig.Patterns {
		patternSum += p.Strength * 0.25
	}
	sig.PatternStrength = math.Min(patternSum, 100)

	// 4. Blended confidence, monotonic in trend score magnitude, alignment
	// and pattern strength
	sig.Confidence = 0.5*math.Abs(trendScore)*100 + 0.3*sig.TrendAlignment + 0.2*sig.PatternStrength

	// 5. Direction gate
	if majority != analysis.DirectionHold &&
		sig.Confidence >= e.cfg.ConfidenceThreshold &&
		sig.TrendAlignment >= 50 {
		sig.Direction = majority
	}

	// 6. Entry from the highest-entry-weight timeframe, TP/SL around it
	entryTF := e.entryTimeframe(analyses)
	if entryTF != nil {
		sig.SuggestedEntry = entryTF.CurrentPrice
		sig.SuggestedTP, sig.SuggestedSL = e.targets(sig.Direction, sig.SuggestedEntry)
	}

	// 7. Reasons and warnings
	e.explain(sig, majority, trendScore)

	return sig, nil
}

// targets derives direction-aware take-profit and stop-loss levels. A HOLD
// signal keeps the long orientation so the levels are still indicative.
func (e *Engine) targets(dir analysis.Direction, entry float64) (tp, sl float64) {
	if entry == 0 {
		return 0, 0
	}
	if dir == analysis.DirectionShort {
		tp = entry * (1 - e.cfg.TakeProfitPct/100)
		sl = entry * (1 + e.cfg.StopLossPct/100)
		return tp, sl
	}
	tp = entry * (1 + e.cfg.TakeProfitPct/100)
	sl = entry * (1 - e.cfg.StopLossPct/100)
	return tp, sl
}

// entryTimeframe returns the supplied analysis with the highest entry weight.
func (e *Engine) entryTimeframe(analyses []analysis.TimeframeAnalysis) *analysis.TimeframeAnalysis {
	var best *analysis.TimeframeAnalysis
	bestWeight := -1.0
	for i := range analyses {
		if w := e.cfg.EntryWeights[analyses[i].Timeframe]; w > bestWeight {
			bestWeight = w
			best = &analyses[i]
		}
	}
	return best
}

// primaryTimeframe returns the analysis with the highest trend weight.
func (e *Engine) primaryTimeframe(analyses []analysis.TimeframeAnalysis) *analysis.TimeframeAnalysis {
	var best *analysis.TimeframeAnalysis
	bestWeight := -1.0
	for i := range analyses {
		if w := e.cfg.TrendWeights[analyses[i].Timeframe]; w > bestWeight {
			bestWeight = w
			best = &analyses[i]
		}
	}
	return best
}

func (e *Engine) explain(sig *UnifiedSignal, majority analysis.Direction, trendScore float64) {
	agreeing := 0
	for _, a := range sig.Timeframes {
		if directionFromTrend(a.Trend) == majority && majority != analysis.DirectionHold {
			agreeing++
		}
	}

	if majority != analysis.DirectionHold {
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("%d/%d timeframes lean %s (weighted trend score %.2f)",
			agreeing, len(sig.Timeframes), majority, trendScore))
	} else {
		sig.Reasons = append(sig.Reasons, "no majority trend direction across timeframes")
	}
	if len(sig.Patterns) > 0 {
		top := sig.Patterns[0]
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("%d candlestick patterns detected, strongest %s (%s, %.0f)",
			len(sig.Patterns), top.Type, top.Direction, top.Strength))
	}
	if sig.Direction == analysis.DirectionHold && majority != analysis.DirectionHold {
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("held back: confidence %.1f below threshold %.1f or alignment %.0f%% below 50%%",
			sig.Confidence, e.cfg.ConfidenceThreshold, sig.TrendAlignment))
	}

	// Sharp disagreement between any timeframe and the majority
	for _, a := range sig.Timeframes {
		d := directionFromTrend(a.Trend)
		if majority != analysis.DirectionHold && d != analysis.DirectionHold && d != majority {
			sig.Warnings = append(sig.Warnings, fmt.Sprintf("conflicting signal: %s timeframe trends %s against majority %s",
				a.Timeframe, a.Trend, majority))
		}
	}

	// Extreme RSI on the primary timeframe
	if primary := e.primaryTimeframe(sig.Timeframes); primary != nil {
		if primary.RSI >= 70 {
			sig.Warnings = append(sig.Warnings, fmt.Sprintf("RSI overbought (%.1f) on %s", primary.RSI, primary.Timeframe))
		} else if primary.RSI <= 30 {
			sig.Warnings = append(sig.Warnings, fmt.Sprintf("RSI oversold (%.1f) on %s", primary.RSI, primary.Timeframe))
		}
	}

	// Degraded timeframes
	for _, a := range sig.Timeframes {
		for _, w := range a.Warnings {
			sig.Warnings = append(sig.Warnings, fmt.Sprintf("%s: %s", a.Timeframe, w))
		}
	}
}

// trendLean maps a timeframe trend to a signed lean.
func trendLean(t analysis.TrendDirection) float64 {
	switch t {
	case analysis.TrendUp:
		return 1
	case analysis.TrendDown:
		return -1
	default:
		return 0
	}
}

func directionFromTrend(t analysis.TrendDirection) analysis.Direction {
	switch t {
	case analysis.TrendUp:
		return analysis.DirectionLong
	case analysis.TrendDown:
		return analysis.DirectionShort
	default:
		return analysis.DirectionHold
	}
}

// majorityTrend returns the direction most timeframes trend toward and how
// many agree with it. All-sideways input yields HOLD with zero agreement.
func majorityTrend(analyses []analysis.TimeframeAnalysis) (analysis.Direction, int) {
	up, down := 0, 0
	for _, a := range analyses {
		switch a.Trend {
		case analysis.TrendUp:
			up++
		case analysis.TrendDown:
			down++
		}
	}
	switch {
	case up > down:
		return analysis.DirectionLong, up
	case down > up:
		return analysis.DirectionShort, down
	default:
		return analysis.DirectionHold, 0
	}
}

// rankedPatterns unions patterns from every timeframe, strongest first.
func rankedPatterns(analyses []analysis.TimeframeAnalysis) []patterns.DetectedPattern {
	var all []patterns.DetectedPattern
	for _, a := range analyses {
		all = append(all, a.Patterns...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Strength > all[j].Strength
	})
	return all
}
