package analysis

import "vault-trading-bot/internal/market"

// TrendDirection classifies the market trend on one timeframe.
type TrendDirection string

const (
	TrendUp       TrendDirection = "UP"
	TrendDown     TrendDirection = "DOWN"
	TrendSideways TrendDirection = "SIDEWAYS"
)

// SwingPoint represents a local price extreme.
type SwingPoint struct {
	Price       float64
	CandleIndex int
	Type        string // "high" or "low"
}

// MarketStructure summarizes the pivot structure of a candle sequence.
type MarketStructure struct {
	Trend         TrendDirection
	TrendStrength float64 // 0.0 to 1.0
	HigherHighs   int
	HigherLows    int
	LowerHighs    int
	LowerLows     int
	SwingHighs    []SwingPoint
	SwingLows     []SwingPoint
	Support       float64
	Resistance    float64
}

// TrendAnalyzer classifies trend from swing-point structure.
type TrendAnalyzer struct {
	swingLookback int
}

// NewTrendAnalyzer creates a trend analyzer. Non-positive lookback falls back
// to a 5-candle swing window.
func NewTrendAnalyzer(swingLookback int) *TrendAnalyzer {
	if swingLookback <= 0 {
		swingLookback = 5
	}
	return &TrendAnalyzer{swingLookback: swingLookback}
}

// AnalyzeStructure performs market structure analysis. Returns nil when the
// sequence is too short to hold a single confirmed swing.
func (ta *TrendAnalyzer) AnalyzeStructure(candles []market.Candle) *MarketStructure {
	if len(candles) < ta.swingLookback*2+1 {
		return nil
	}

	s := &MarketStructure{
		SwingHighs: ta.findSwingHighs(candles),
		SwingLows:  ta.findSwingLows(candles),
	}

	s.HigherHighs, s.LowerHighs = countProgressions(s.SwingHighs)
	s.HigherLows, s.LowerLows = countProgressions(s.SwingLows)
	s.Trend = ta.determineTrend(s)
	s.TrendStrength = ta.trendStrength(s)
	s.Support, s.Resistance = nearestLevels(candles[len(candles)-1].Close, s.SwingLows, s.SwingHighs)

	return s
}

// findSwingHighs identifies candles whose high dominates the surrounding
// lookback window on both sides.
func (ta *TrendAnalyzer) findSwingHighs(candles []market.Candle) []SwingPoint {
	var swings []SwingPoint
	for i := ta.swingLookback; i < len(candles)-ta.swingLookback; i++ {
		isSwing := true
		for j := i - ta.swingLookback; j <= i+ta.swingLookback; j++ {
			if j != i && candles[j].High >= candles[i].High {
				isSwing = false
				break
			}
		}
		if isSwing {
			swings = append(swings, SwingPoint{Price: candles[i].High, CandleIndex: i, Type: "high"})
		}
	}
	return swings
}

func (ta *TrendAnalyzer) findSwingLows(candles []market.Candle) []SwingPoint {
	var swings []SwingPoint
	for i := ta.swingLookback; i < len(candles)-ta.swingLookback; i++ {
		isSwing := true
		for j := i - ta.swingLookback; j <= i+ta.swingLookback; j++ {
			if j != i && candles[j].Low <= candles[i].Low {
				isSwing = false
				break
			}
		}
		if isSwing {
			swings = append(swings, SwingPoint{Price: candles[i].Low, CandleIndex: i, Type: "low"})
		}
	}
	return swings
}

// countProgressions counts rising and falling steps between consecutive
// swings of the same kind.
func countProgressions(swings []SwingPoint) (rising, falling int) {
	for i := 1; i < len(swings); i++ {
		if swings[i].Price > swings[i-1].Price {
			rising++
		} else if swings[i].Price < swings[i-1].Price {
			falling++
		}
	}
	return rising, falling
}

// determineTrend classifies the trend from pivot progression counts.
func (ta *TrendAnalyzer) determineTrend(s *MarketStructure) TrendDirection {
	bullish := s.HigherHighs + s.HigherLows
	bearish := s.LowerHighs + s.LowerLows

	if bullish > bearish && bullish >= 2 {
		return TrendUp
	}
	if bearish > bullish && bearish >= 2 {
		return TrendDown
	}
	return TrendSideways
}

// trendStrength measures how one-sided the pivot structure is.
func (ta *TrendAnalyzer) trendStrength(s *MarketStructure) float64 {
	total := s.HigherHighs + s.HigherLows + s.LowerHighs + s.LowerLows
	if total == 0 {
		return 0
	}
	bullish := float64(s.HigherHighs + s.HigherLows)
	bearish := float64(s.LowerHighs + s.LowerLows)
	dominant := bullish
	if bearish > dominant {
		dominant = bearish
	}
	return dominant / float64(total)
}

// nearestLevels picks the closest swing low below and swing high above the
// current price as support and resistance.
func nearestLevels(price float64, lows, highs []SwingPoint) (support, resistance float64) {
	for _, sp := range lows {
		if sp.Price < price && sp.Price > support {
			support = sp.Price
		}
	}
	for _, sp := range highs {
		if sp.Price > price && (resistance == 0 || sp.Price < resistance) {
			resistance = sp.Price
		}
	}
	return support, resistance
}
