package patterns

import (
	"time"

	"vault-trading-bot/internal/market"
)

// PatternType identifies a named candlestick pattern.
type PatternType string

const (
	// Reversal patterns
	MorningStar      PatternType = "morning_star"
	EveningStar      PatternType = "evening_star"
	ShootingStar     PatternType = "shooting_star"
	Hammer           PatternType = "hammer"
	BullishEngulfing PatternType = "bullish_engulfing"
	BearishEngulfing PatternType = "bearish_engulfing"
	Doji             PatternType = "doji"
	BullishHarami    PatternType = "bullish_harami"
	BearishHarami    PatternType = "bearish_harami"

	// Continuation patterns
	ThreeWhiteSoldiers PatternType = "three_white_soldiers"
	ThreeBlackCrows    PatternType = "three_black_crows"
)

// Direction values for detected patterns.
const (
	DirectionBullish = "bullish"
	DirectionBearish = "bearish"
	DirectionNeutral = "neutral"
)

// DetectedPattern represents one pattern found in a candle sequence.
// CandleIndex is the index of the candle on which the pattern completes.
type DetectedPattern struct {
	Type        PatternType `json:"type"`
	Direction   string      `json:"direction"`
	Strength    float64     `json:"strength"` // 0-100
	CandleIndex int         `json:"candle_index"`
	CompletedAt time.Time   `json:"completed_at"`
}

// Detector scans candlestick sequences for named patterns.
type Detector struct {
	minBodySize float64 // minimum body size as % of price
	lookback    int     // trailing candles to scan
}

// NewDetector creates a pattern detector. Zero or negative arguments fall
// back to defaults (0.5% body, 20-candle lookback).
func NewDetector(minBodySize float64, lookback int) *Detector {
	if minBodySize <= 0 {
		minBodySize = 0.5
	}
	if lookback <= 0 {
		lookback = 20
	}
	return &Detector{
		minBodySize: minBodySize,
		lookback:    lookback,
	}
}

// Detect scans the trailing lookback window and returns every pattern found,
// ordered by candle index.
func (d *Detector) Detect(candles []market.Candle) []DetectedPattern {
	var detected []DetectedPattern
	if len(candles) < 3 {
		return detected
	}

	start := len(candles) - d.lookback
	if start < 0 {
		start = 0
	}

	// Three-candle patterns
	for i := start + 2; i < len(candles); i++ {
		c1, c2, c3 := candles[i-2], candles[i-1], candles[i]

		if d.isMorningStar(c1, c2, c3) {
			detected = append(detected, d.multiCandle(MorningStar, DirectionBullish, c1, c3, i))
		}
		if d.isEveningStar(c1, c2, c3) {
			detected = append(detected, d.multiCandle(EveningStar, DirectionBearish, c1, c3, i))
		}
		if d.isThreeWhiteSoldiers(c1, c2, c3) {
			detected = append(detected, d.multiCandle(ThreeWhiteSoldiers, DirectionBullish, c1, c3, i))
		}
		if d.isThreeBlackCrows(c1, c2, c3) {
			detected = append(detected, d.multiCandle(ThreeBlackCrows, DirectionBearish, c1, c3, i))
		}
	}

	// Two-candle patterns
	for i := start + 1; i < len(candles); i++ {
		c1, c2 := candles[i-1], candles[i]

		if d.isBullishEngulfing(c1, c2) {
			detected = append(detected, d.multiCandle(BullishEngulfing, DirectionBullish, c1, c2, i))
		}
		if d.isBearishEngulfing(c1, c2) {
			detected = append(detected, d.multiCandle(BearishEngulfing, DirectionBearish, c1, c2, i))
		}
		if d.isBullishHarami(c1, c2) {
			detected = append(detected, d.multiCandle(BullishHarami, DirectionBullish, c1, c2, i))
		}
		if d.isBearishHarami(c1, c2) {
			detected = append(detected, d.multiCandle(BearishHarami, DirectionBearish, c1, c2, i))
		}
	}

	// Single-candle patterns
	for i := start; i < len(candles); i++ {
		c := candles[i]
		var prev *market.Candle
		if i > 0 {
			prev = &candles[i-1]
		}

		if d.isShootingStar(c, prev) {
			detected = append(detected, DetectedPattern{
				Type:        ShootingStar,
				Direction:   DirectionBearish,
				Strength:    d.singleCandleStrength(c),
				CandleIndex: i,
				CompletedAt: c.CloseTime,
			})
		}
		if d.isHammer(c, prev) {
			detected = append(detected, DetectedPattern{
				Type:        Hammer,
				Direction:   DirectionBullish,
				Strength:    d.singleCandleStrength(c),
				CandleIndex: i,
				CompletedAt: c.CloseTime,
			})
		}
		if d.isDoji(c) {
			// Indecision carries no side and scores weaker than a
			// directional candle.
			detected = append(detected, DetectedPattern{
				Type:        Doji,
				Direction:   DirectionNeutral,
				Strength:    40,
				CandleIndex: i,
				CompletedAt: c.CloseTime,
			})
		}
	}

	sortByIndex(detected)
	return detected
}

func (d *Detector) multiCandle(pt PatternType, dir string, first, last market.Candle, idx int) DetectedPattern {
	return DetectedPattern{
		Type:        pt,
		Direction:   dir,
		Strength:    d.multiCandleStrength(first, last),
		CandleIndex: idx,
		CompletedAt: last.CloseTime,
	}
}

// multiCandleStrength scores a multi-candle pattern. A decisive final candle
// relative to the setup candle raises the score.
func (d *Detector) multiCandleStrength(first, last market.Candle) float64 {
	strength := 70.0
	if last.Body() > first.Body()*1.2 {
		strength += 10
	}
	if strength > 100 {
		strength = 100
	}
	return strength
}

func (d *Detector) singleCandleStrength(c market.Candle) float64 {
	return 65.0
}

func sortByIndex(patterns []DetectedPattern) {
	for i := 1; i < len(patterns); i++ {
		for j := i; j > 0 && patterns[j-1].CandleIndex > patterns[j].CandleIndex; j-- {
			patterns[j-1], patterns[j] = patterns[j], patterns[j-1]
		}
	}
}
