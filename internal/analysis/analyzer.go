package analysis

import (
	"vault-trading-bot/internal/market"
	"vault-trading-bot/internal/patterns"
)

// Direction is the directional lean of one timeframe.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
	DirectionHold  Direction = "HOLD"
)

// MACD signal classifications.
const (
	MACDBullish = "bullish"
	MACDBearish = "bearish"
	MACDNeutral = "neutral"
)

// TimeframeAnalysis is the full technical read of one symbol+timeframe.
// It is recomputed from candles on every cycle and never persisted.
type TimeframeAnalysis struct {
	Symbol       string                     `json:"symbol"`
	Timeframe    string                     `json:"timeframe"`
	Direction    Direction                  `json:"direction"`
	Confidence   float64                    `json:"confidence"` // 0-100
	Trend        TrendDirection             `json:"trend"`
	RSI          float64                    `json:"rsi"`
	MACDSignal   string                     `json:"macd_signal"`
	Patterns     []patterns.DetectedPattern `json:"patterns"`
	Volume       *VolumeProfile             `json:"volume,omitempty"`
	Bollinger    *BollingerBands            `json:"bollinger,omitempty"`
	Support      float64                    `json:"support"`
	Resistance   float64                    `json:"resistance"`
	CurrentPrice float64                    `json:"current_price"`
	Warnings     []string                   `json:"warnings,omitempty"`
}

// Degraded reports whether the analysis was produced from insufficient data.
func (a *TimeframeAnalysis) Degraded() bool {
	return len(a.Warnings) > 0 && a.Direction == DirectionHold && a.Confidence == 0
}

// Analyzer computes a TimeframeAnalysis from raw candles. It is a pure
// function of its input: no clock, no I/O, identical candles produce
// identical output.
type Analyzer struct {
	trend    *TrendAnalyzer
	detector *patterns.Detector
	volume   *VolumeAnalyzer
}

// NewAnalyzer creates a timeframe analyzer with default swing, pattern and
// volume windows.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		trend:    NewTrendAnalyzer(5),
		detector: patterns.NewDetector(0.5, 20),
		volume:   NewVolumeAnalyzer(20),
	}
}

// Analyze computes indicators, trend structure and patterns for one
// symbol+timeframe. With fewer than MinCandles candles it returns a neutral
// HOLD analysis carrying a warning rather than an error.
func (a *Analyzer) Analyze(symbol, timeframe string, candles []market.Candle) *TimeframeAnalysis {
	result := &TimeframeAnalysis{
		Symbol:     symbol,
		Timeframe:  timeframe,
		Direction:  DirectionHold,
		Trend:      TrendSideways,
		RSI:        50,
		MACDSignal: MACDNeutral,
	}
	if len(candles) > 0 {
		result.CurrentPrice = candles[len(candles)-1].Close
	}

	if len(candles) < MinCandles {
		result.Warnings = append(result.Warnings, "insufficient candle history")
		return result
	}

	result.RSI = RSI(candles, RSIPeriod)

	macd := MACD(candles, MACDFastPeriod, MACDSlowPeriod, MACDSignalPeriod)
	switch {
	case macd.Histogram > 0:
		result.MACDSignal = MACDBullish
	case macd.Histogram < 0:
		result.MACDSignal = MACDBearish
	}

	structure := a.trend.AnalyzeStructure(candles)
	if structure != nil {
		result.Trend = structure.Trend
		result.Support = structure.Support
		result.Resistance = structure.Resistance
	}

	result.Patterns = a.detector.Detect(candles)
	result.Volume = a.volume.Profile(candles)
	result.Bollinger = Bollinger(candles, BollingerPeriod, BollingerK)

	score := a.score(result, structure)
	switch {
	case score >= 20:
		result.Direction = DirectionLong
	case score <= -20:
		result.Direction = DirectionShort
	}
	result.Confidence = clamp(abs(score), 0, 100)

	return result
}

// score blends trend structure, MACD, RSI/band extremes and recent patterns
// into one signed lean: positive long, negative short.
func (a *Analyzer) score(r *TimeframeAnalysis, structure *MarketStructure) float64 {
	score := 0.0

	// Trend structure dominates
	if structure != nil {
		switch structure.Trend {
		case TrendUp:
			score += 50 * structure.TrendStrength
		case TrendDown:
			score -= 50 * structure.TrendStrength
		}
	}

	// MACD momentum
	switch r.MACDSignal {
	case MACDBullish:
		score += 20
	case MACDBearish:
		score -= 20
	}

	// RSI extremes lean toward the reversal side
	if r.RSI <= 30 {
		score += 15
	} else if r.RSI >= 70 {
		score -= 15
	}

	// Closes outside the bands lean the same way
	if r.Bollinger != nil && r.CurrentPrice > 0 {
		if r.CurrentPrice < r.Bollinger.Lower {
			score += 10
		} else if r.CurrentPrice > r.Bollinger.Upper {
			score -= 10
		}
	}

	// Recent patterns, strength-weighted
	patternScore := 0.0
	recentFrom := 0
	if n := len(r.Patterns); n > 5 {
		recentFrom = n - 5
	}
	for _, p := range r.Patterns[recentFrom:] {
		weight := p.Strength / 100 * 8
		switch p.Direction {
		case patterns.DirectionBullish:
			patternScore += weight
		case patterns.DirectionBearish:
			patternScore -= weight
		}
	}
	score += clamp(patternScore, -25, 25)

	// High volume confirms the side it pressed on
	if r.Volume != nil && r.Volume.HighVolume {
		switch r.Volume.Pressure {
		case VolumeBuying:
			score += 5
		case VolumeSelling:
			score -= 5
		}
	}

	return clamp(score, -100, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
