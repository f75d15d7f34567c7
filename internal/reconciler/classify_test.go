package reconciler

import (
	"math"
	"math/big"
	"testing"
	"time"

	"vault-trading-bot/internal/chain"
)

func activePosition(isLong bool, openedAt time.Time) *chain.OnChainPosition {
	return &chain.OnChainPosition{
		IsActive:   true,
		IsLong:     isLong,
		Collateral: chain.FloatToUsd(100),
		Size:       chain.FloatToUsd(1000),
		Leverage:   big.NewInt(10),
		EntryPrice: chain.FloatToUsd(2000),
		Timestamp:  openedAt,
	}
}

func openExchangePosition() *chain.ExchangePosition {
	return &chain.ExchangePosition{
		Size:         chain.FloatToUsd(1000),
		Collateral:   chain.FloatToUsd(100),
		AveragePrice: chain.FloatToUsd(2000),
	}
}

func emptyExchangePosition() *chain.ExchangePosition {
	return &chain.ExchangePosition{Size: big.NewInt(0), Collateral: big.NewInt(0)}
}

func TestClassifyClosed(t *testing.T) {
	now := time.Now()
	c := Classify(nil, emptyExchangePosition(), emptyExchangePosition(), big.NewInt(1), now, 2*time.Hour)
	if c.State != StateClosed {
		t.Fatalf("nil position: state = %s, want %s", c.State, StateClosed)
	}

	inactive := activePosition(true, now)
	inactive.IsActive = false
	c = Classify(inactive, openExchangePosition(), emptyExchangePosition(), big.NewInt(1), now, 2*time.Hour)
	if c.State != StateClosed {
		t.Fatalf("inactive position: state = %s, want %s", c.State, StateClosed)
	}
}

func TestClassifyHealthy(t *testing.T) {
	now := time.Now()
	pos := activePosition(true, now.Add(-time.Hour))

	c := Classify(pos, openExchangePosition(), emptyExchangePosition(), big.NewInt(1), now, 2*time.Hour)
	if c.State != StateActiveHealthy {
		t.Fatalf("state = %s, want %s", c.State, StateActiveHealthy)
	}
	if c.Ghost {
		t.Error("healthy position flagged as ghost")
	}
	if c.RecommendedAction != ActionNone {
		t.Errorf("unexpected action %q", c.RecommendedAction)
	}
}

func TestClassifyGhostShortSideOnly(t *testing.T) {
	// A short position backed by an open short exchange leg is healthy even
	// though the long leg is empty.
	now := time.Now()
	pos := activePosition(false, now.Add(-time.Hour))

	c := Classify(pos, emptyExchangePosition(), openExchangePosition(), big.NewInt(1), now, 2*time.Hour)
	if c.State != StateActiveHealthy {
		t.Fatalf("state = %s, want %s", c.State, StateActiveHealthy)
	}
}

func TestClassifyGhost(t *testing.T) {
	now := time.Now()
	pos := activePosition(true, now.Add(-time.Hour))

	c := Classify(pos, emptyExchangePosition(), emptyExchangePosition(), big.NewInt(1), now, 2*time.Hour)
	if c.State != StateActiveGhost {
		t.Fatalf("state = %s, want %s", c.State, StateActiveGhost)
	}
	if !c.Ghost {
		t.Error("ghost flag not set")
	}
	if c.Recoverable {
		t.Error("ghost under timeout must not be recoverable")
	}
}

func TestClassifyGhostTimeoutBoundary(t *testing.T) {
	now := time.Now()
	timeout := 2 * time.Hour

	under := activePosition(true, now.Add(-(timeout - time.Second)))
	c := Classify(under, emptyExchangePosition(), emptyExchangePosition(), big.NewInt(1), now, timeout)
	if c.Recoverable {
		t.Error("ghost 1s under timeout marked recoverable")
	}
	if c.RecommendedAction != ActionNone {
		t.Errorf("ghost under timeout recommended %q", c.RecommendedAction)
	}

	over := activePosition(true, now.Add(-(timeout + time.Second)))
	c = Classify(over, emptyExchangePosition(), emptyExchangePosition(), big.NewInt(1), now, timeout)
	if !c.Recoverable {
		t.Error("ghost 1s past timeout not marked recoverable")
	}
	if c.RecommendedAction != ActionUserInstantClose {
		t.Errorf("action = %q, want %q", c.RecommendedAction, ActionUserInstantClose)
	}
}

func TestClassifyStuckOverridesGhost(t *testing.T) {
	now := time.Now()
	pos := activePosition(true, now.Add(-time.Hour))

	c := Classify(pos, emptyExchangePosition(), emptyExchangePosition(), big.NewInt(0), now, 2*time.Hour)
	if c.State != StateStuck {
		t.Fatalf("state = %s, want %s", c.State, StateStuck)
	}
	if !c.Ghost {
		t.Error("stuck position with no exchange leg should still carry the ghost flag")
	}
	if c.RecommendedAction != ActionUserClosePosition {
		t.Errorf("action = %q, want %q", c.RecommendedAction, ActionUserClosePosition)
	}
}

func TestClassifyStuckWithAutoFeatures(t *testing.T) {
	now := time.Now()
	pos := activePosition(true, now.Add(-time.Hour))
	pos.AutoFeaturesEnabled = true

	c := Classify(pos, openExchangePosition(), emptyExchangePosition(), big.NewInt(0), now, 2*time.Hour)
	if c.State != StateStuck {
		t.Fatalf("state = %s, want %s", c.State, StateStuck)
	}
	if c.RecommendedAction != ActionCancelAutoFeatures {
		t.Errorf("action = %q, want %q", c.RecommendedAction, ActionCancelAutoFeatures)
	}
}

func TestPnL(t *testing.T) {
	got := PnL(2000, 2100, 1000, true)
	if math.Abs(got-50) > 1e-9 {
		t.Errorf("long PnL = %v, want 50", got)
	}

	got = PnL(2000, 2100, 1000, false)
	if math.Abs(got+50) > 1e-9 {
		t.Errorf("short PnL = %v, want -50", got)
	}

	if got := PnL(0, 2100, 1000, true); got != 0 {
		t.Errorf("zero entry price: PnL = %v, want 0", got)
	}
	if got := PnL(2000, 0, 1000, true); got != 0 {
		t.Errorf("zero current price: PnL = %v, want 0", got)
	}
}

func TestPnLPercent(t *testing.T) {
	if got := PnLPercent(50, 100); math.Abs(got-50) > 1e-9 {
		t.Errorf("PnLPercent = %v, want 50", got)
	}
	if got := PnLPercent(50, 0); got != 0 {
		t.Errorf("zero collateral: PnLPercent = %v, want 0", got)
	}
}

func TestEffectiveStop(t *testing.T) {
	pos := activePosition(true, time.Now())
	if got := EffectiveStop(pos); got != 0 {
		t.Errorf("trailing inactive: stop = %v, want 0", got)
	}

	pos.TrailingActivated = true
	pos.TrailingSlBps = big.NewInt(100) // 1%
	pos.HighestPrice = chain.FloatToUsd(2200)
	if got := EffectiveStop(pos); math.Abs(got-2178) > 1e-6 {
		t.Errorf("long trailing stop = %v, want 2178", got)
	}

	short := activePosition(false, time.Now())
	short.TrailingActivated = true
	short.TrailingSlBps = big.NewInt(100)
	short.LowestPrice = chain.FloatToUsd(1800)
	if got := EffectiveStop(short); math.Abs(got-1818) > 1e-6 {
		t.Errorf("short trailing stop = %v, want 1818", got)
	}
}
