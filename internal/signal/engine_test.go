package signal

import (
	"strings"
	"testing"

	"vault-trading-bot/internal/analysis"
	"vault-trading-bot/internal/market"
)

func tfAnalysis(tf string, trend analysis.TrendDirection, price float64) analysis.TimeframeAnalysis {
	dir := analysis.DirectionHold
	switch trend {
	case analysis.TrendUp:
		dir = analysis.DirectionLong
	case analysis.TrendDown:
		dir = analysis.DirectionShort
	}
	return analysis.TimeframeAnalysis{
		Symbol:       "ETHUSDT",
		Timeframe:    tf,
		Direction:    dir,
		Confidence:   60,
		Trend:        trend,
		RSI:          55,
		MACDSignal:   analysis.MACDNeutral,
		CurrentPrice: price,
	}
}

func TestAggregateKeepsAllTimeframes(t *testing.T) {
	e := NewEngine(DefaultConfig())

	analyses := []analysis.TimeframeAnalysis{
		tfAnalysis(market.TF15m, analysis.TrendUp, 2000),
		tfAnalysis(market.TF1h, analysis.TrendUp, 2001),
		tfAnalysis(market.TF4h, analysis.TrendSideways, 2002),
		{Symbol: "ETHUSDT", Timeframe: market.TF1d, Direction: analysis.DirectionHold,
			Trend: analysis.TrendSideways, Warnings: []string{"insufficient candle history"}},
	}

	sig, err := e.Aggregate("ETHUSDT", analyses)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(sig.Timeframes) != 4 {
		t.Errorf("expected 4 timeframes in signal, got %d", len(sig.Timeframes))
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	e := NewEngine(DefaultConfig())
	if _, err := e.Aggregate("ETHUSDT", nil); err == nil {
		t.Error("expected error for empty analysis set")
	}
}

func TestTrendAlignmentFullAgreement(t *testing.T) {
	e := NewEngine(DefaultConfig())

	analyses := []analysis.TimeframeAnalysis{
		tfAnalysis(market.TF15m, analysis.TrendUp, 2000),
		tfAnalysis(market.TF1h, analysis.TrendUp, 2000),
		tfAnalysis(market.TF4h, analysis.TrendUp, 2000),
		tfAnalysis(market.TF1d, analysis.TrendUp, 2000),
	}

	sig, err := e.Aggregate("ETHUSDT", analyses)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if sig.TrendAlignment != 100 {
		t.Errorf("expected 100%% alignment, got %f", sig.TrendAlignment)
	}
	if sig.Direction != analysis.DirectionLong {
		t.Errorf("expected LONG with full agreement, got %s", sig.Direction)
	}
}

func TestTrendAlignmentBounds(t *testing.T) {
	e := NewEngine(DefaultConfig())

	cases := [][]analysis.TimeframeAnalysis{
		{tfAnalysis(market.TF15m, analysis.TrendUp, 2000), tfAnalysis(market.TF1h, analysis.TrendDown, 2000)},
		{tfAnalysis(market.TF15m, analysis.TrendSideways, 2000)},
		{tfAnalysis(market.TF15m, analysis.TrendUp, 2000), tfAnalysis(market.TF1h, analysis.TrendUp, 2000),
			tfAnalysis(market.TF4h, analysis.TrendDown, 2000)},
	}
	for _, analyses := range cases {
		sig, err := e.Aggregate("ETHUSDT", analyses)
		if err != nil {
			t.Fatalf("aggregate: %v", err)
		}
		if sig.TrendAlignment < 0 || sig.TrendAlignment > 100 {
			t.Errorf("alignment %f outside [0,100]", sig.TrendAlignment)
		}
	}
}

func TestHoldWhenAlignmentBelowHalf(t *testing.T) {
	e := NewEngine(DefaultConfig())

	// One of four timeframes trends up, the rest sideways: 25% alignment
	analyses := []analysis.TimeframeAnalysis{
		tfAnalysis(market.TF15m, analysis.TrendUp, 2000),
		tfAnalysis(market.TF1h, analysis.TrendSideways, 2000),
		tfAnalysis(market.TF4h, analysis.TrendSideways, 2000),
		tfAnalysis(market.TF1d, analysis.TrendSideways, 2000),
	}

	sig, err := e.Aggregate("ETHUSDT", analyses)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if sig.Direction != analysis.DirectionHold {
		t.Errorf("expected HOLD at 25%% alignment, got %s", sig.Direction)
	}
}

func TestIsStrongFalseOnHold(t *testing.T) {
	sig := &UnifiedSignal{
		Direction:      analysis.DirectionHold,
		Confidence:     95,
		TrendAlignment: 100,
	}
	if sig.IsStrong(40) {
		t.Error("IsStrong must be false for HOLD regardless of confidence")
	}

	strong := &UnifiedSignal{
		Direction:      analysis.DirectionLong,
		Confidence:     55,
		TrendAlignment: 75,
	}
	if !strong.IsStrong(40) {
		t.Error("expected strong signal at confidence 55, alignment 75")
	}
	if strong.IsStrong(60) {
		t.Error("expected weak signal below minConfidence 60")
	}
}

func TestSuggestedLevelsDirectionAware(t *testing.T) {
	e := NewEngine(DefaultConfig())

	long := []analysis.TimeframeAnalysis{
		tfAnalysis(market.TF15m, analysis.TrendUp, 2000),
		tfAnalysis(market.TF1h, analysis.TrendUp, 2000),
		tfAnalysis(market.TF4h, analysis.TrendUp, 2000),
		tfAnalysis(market.TF1d, analysis.TrendUp, 2000),
	}
	sig, err := e.Aggregate("ETHUSDT", long)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if sig.SuggestedEntry != 2000 {
		t.Errorf("expected entry 2000 from highest entry-weight timeframe, got %f", sig.SuggestedEntry)
	}
	if sig.SuggestedTP <= sig.SuggestedEntry {
		t.Errorf("LONG take-profit %f must be above entry %f", sig.SuggestedTP, sig.SuggestedEntry)
	}
	if sig.SuggestedSL >= sig.SuggestedEntry {
		t.Errorf("LONG stop-loss %f must be below entry %f", sig.SuggestedSL, sig.SuggestedEntry)
	}

	short := []analysis.TimeframeAnalysis{
		tfAnalysis(market.TF15m, analysis.TrendDown, 2000),
		tfAnalysis(market.TF1h, analysis.TrendDown, 2000),
		tfAnalysis(market.TF4h, analysis.TrendDown, 2000),
		tfAnalysis(market.TF1d, analysis.TrendDown, 2000),
	}
	sig, err = e.Aggregate("ETHUSDT", short)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if sig.SuggestedTP >= sig.SuggestedEntry {
		t.Errorf("SHORT take-profit %f must be below entry %f", sig.SuggestedTP, sig.SuggestedEntry)
	}
	if sig.SuggestedSL <= sig.SuggestedEntry {
		t.Errorf("SHORT stop-loss %f must be above entry %f", sig.SuggestedSL, sig.SuggestedEntry)
	}
}

func TestConflictWarning(t *testing.T) {
	e := NewEngine(DefaultConfig())

	analyses := []analysis.TimeframeAnalysis{
		tfAnalysis(market.TF15m, analysis.TrendDown, 2000),
		tfAnalysis(market.TF1h, analysis.TrendUp, 2000),
		tfAnalysis(market.TF4h, analysis.TrendUp, 2000),
		tfAnalysis(market.TF1d, analysis.TrendUp, 2000),
	}

	sig, err := e.Aggregate("ETHUSDT", analyses)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	found := false
	for _, w := range sig.Warnings {
		if strings.Contains(w, "conflicting signal") {
			found = true
		}
	}
	if !found {
		t.Error("expected a conflicting-signal warning for the disagreeing timeframe")
	}
}

func TestConfigValidate(t *testing.T) {
	good := DefaultConfig()
	if err := good.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}

	bad := DefaultConfig()
	bad.TrendWeights[market.TF1d] = 0.9 // sum now 1.5
	if err := bad.Validate(); err == nil {
		t.Error("expected validation error for trend weights not summing to 1.0")
	}

	empty := DefaultConfig()
	empty.Timeframes = nil
	if err := empty.Validate(); err == nil {
		t.Error("expected validation error for empty timeframes")
	}

	threshold := DefaultConfig()
	threshold.ConfidenceThreshold = 150
	if err := threshold.Validate(); err == nil {
		t.Error("expected validation error for out-of-range threshold")
	}
}
