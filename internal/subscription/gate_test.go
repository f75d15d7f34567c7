package subscription

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const testWallet = "0xabc0000000000000000000000000000000000001"

func newTestGate(store Store) *Gate {
	return NewGate(store, Limits{}, zerolog.Nop())
}

func activeSub(tier PlanTier) *Subscription {
	return &Subscription{
		UserID:             "user-1",
		WalletAddress:      testWallet,
		PlanTier:           tier,
		Status:             StatusActive,
		DailyTradesResetAt: time.Now().Add(12 * time.Hour),
		EndDate:            time.Now().Add(30 * 24 * time.Hour),
		Timezone:           "UTC",
	}
}

func TestCanTradeNoSubscription(t *testing.T) {
	gate := newTestGate(NewMemoryStore())

	d := gate.CanTrade(context.Background(), testWallet)
	if d.Allowed {
		t.Fatal("wallet without subscription allowed to trade")
	}
	if d.PlanTier != TierNone {
		t.Errorf("plan tier = %s, want %s", d.PlanTier, TierNone)
	}
}

func TestCanTradeInactiveStatus(t *testing.T) {
	store := NewMemoryStore()
	sub := activeSub(TierPro)
	sub.Status = StatusCancelled
	store.Put(sub)

	d := newTestGate(store).CanTrade(context.Background(), testWallet)
	if d.Allowed {
		t.Fatal("cancelled subscription allowed to trade")
	}
	if d.Reason != "cancelled" {
		t.Errorf("reason = %q, want %q", d.Reason, "cancelled")
	}
}

func TestCanTradeExpired(t *testing.T) {
	store := NewMemoryStore()
	sub := activeSub(TierPro)
	sub.EndDate = time.Now().Add(-time.Hour)
	store.Put(sub)

	d := newTestGate(store).CanTrade(context.Background(), testWallet)
	if d.Allowed {
		t.Fatal("expired subscription allowed to trade")
	}
	if d.Reason != "expired" {
		t.Errorf("reason = %q, want %q", d.Reason, "expired")
	}
}

func TestCanTradeFreeLifetimeCap(t *testing.T) {
	store := NewMemoryStore()
	sub := activeSub(TierFree)
	sub.TotalTradesUsed = 1
	store.Put(sub)
	gate := newTestGate(store)

	d := gate.CanTrade(context.Background(), testWallet)
	if !d.Allowed {
		t.Fatalf("free wallet with 1 of %d trades used denied: %s", FreeLifetimeLimit, d.Reason)
	}
	if d.DailyTradesRemaining != 1 {
		t.Errorf("remaining = %d, want 1", d.DailyTradesRemaining)
	}

	sub.TotalTradesUsed = FreeLifetimeLimit
	store.Put(sub)
	d = gate.CanTrade(context.Background(), testWallet)
	if d.Allowed {
		t.Fatal("free wallet at lifetime cap allowed to trade")
	}
	if d.DailyTradesRemaining != 0 {
		t.Errorf("remaining = %d, want 0", d.DailyTradesRemaining)
	}
}

func TestCanTradeDailyLimit(t *testing.T) {
	store := NewMemoryStore()
	sub := activeSub(TierStarter) // daily limit 5
	sub.DailyTradesUsed = 5
	store.Put(sub)
	gate := newTestGate(store)

	d := gate.CanTrade(context.Background(), testWallet)
	if d.Allowed {
		t.Fatal("wallet at daily limit allowed to trade")
	}
	if d.Reason != "Daily trade limit reached" {
		t.Errorf("reason = %q", d.Reason)
	}
}

func TestCanTradeDailyReset(t *testing.T) {
	store := NewMemoryStore()
	sub := activeSub(TierStarter)
	sub.DailyTradesUsed = 5
	sub.DailyTradesResetAt = time.Now().Add(-time.Minute) // boundary passed
	store.Put(sub)
	gate := newTestGate(store)

	d := gate.CanTrade(context.Background(), testWallet)
	if !d.Allowed {
		t.Fatalf("wallet past reset boundary denied: %s", d.Reason)
	}
	if d.DailyTradesRemaining != 5 {
		t.Errorf("remaining after reset = %d, want 5", d.DailyTradesRemaining)
	}

	stored, _ := store.GetByWallet(context.Background(), testWallet)
	if stored.DailyTradesUsed != 0 {
		t.Errorf("stored daily counter = %d, want 0", stored.DailyTradesUsed)
	}
	if !stored.DailyTradesResetAt.After(time.Now()) {
		t.Error("new reset boundary is not in the future")
	}
}

func TestCanTradeUnlimitedTier(t *testing.T) {
	store := NewMemoryStore()
	sub := activeSub(TierElite)
	sub.DailyTradesUsed = 100000
	store.Put(sub)

	d := newTestGate(store).CanTrade(context.Background(), testWallet)
	if !d.Allowed {
		t.Fatalf("unlimited tier denied: %s", d.Reason)
	}
	if d.DailyTradesRemaining != -1 {
		t.Errorf("remaining = %d, want -1", d.DailyTradesRemaining)
	}
}

func TestCanTradeUnknownTier(t *testing.T) {
	store := NewMemoryStore()
	sub := activeSub(PlanTier("platinum"))
	store.Put(sub)

	d := newTestGate(store).CanTrade(context.Background(), testWallet)
	if d.Allowed {
		t.Fatal("unknown tier allowed to trade")
	}
	if d.Reason != "unknown plan tier" {
		t.Errorf("reason = %q", d.Reason)
	}
}

func TestCanTradeConfiguredLimits(t *testing.T) {
	store := NewMemoryStore()
	limits := Limits{
		FreeLifetime: 4,
		DailyByTier:  map[PlanTier]int{TierStarter: 1},
	}
	gate := NewGate(store, limits, zerolog.Nop())

	free := activeSub(TierFree)
	free.TotalTradesUsed = 3
	store.Put(free)
	d := gate.CanTrade(context.Background(), testWallet)
	if !d.Allowed {
		t.Fatalf("free wallet under raised lifetime cap denied: %s", d.Reason)
	}
	if d.DailyTradesRemaining != 1 {
		t.Errorf("remaining = %d, want 1", d.DailyTradesRemaining)
	}

	starter := activeSub(TierStarter)
	starter.DailyTradesUsed = 1
	store.Put(starter)
	d = gate.CanTrade(context.Background(), testWallet)
	if d.Allowed {
		t.Fatal("starter wallet at lowered daily cap allowed to trade")
	}
	if d.Reason != "Daily trade limit reached" {
		t.Errorf("reason = %q", d.Reason)
	}
}

func TestRecordTradeIncrementsBothCounters(t *testing.T) {
	store := NewMemoryStore()
	sub := activeSub(TierPro)
	sub.DailyTradesUsed = 2
	sub.TotalTradesUsed = 7
	store.Put(sub)
	gate := newTestGate(store)

	if err := gate.RecordTrade(context.Background(), testWallet); err != nil {
		t.Fatalf("RecordTrade: %v", err)
	}

	stored, _ := store.GetByWallet(context.Background(), testWallet)
	if stored.DailyTradesUsed != 3 {
		t.Errorf("daily = %d, want 3", stored.DailyTradesUsed)
	}
	if stored.TotalTradesUsed != 8 {
		t.Errorf("total = %d, want 8", stored.TotalTradesUsed)
	}
}

func TestRecordTradeConcurrent(t *testing.T) {
	store := NewMemoryStore()
	store.Put(activeSub(TierElite))
	gate := newTestGate(store)

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_ = gate.RecordTrade(context.Background(), testWallet)
		}()
	}
	wg.Wait()

	stored, _ := store.GetByWallet(context.Background(), testWallet)
	if stored.TotalTradesUsed != n {
		t.Errorf("total after %d concurrent trades = %d", n, stored.TotalTradesUsed)
	}
	if stored.DailyTradesUsed != n {
		t.Errorf("daily after %d concurrent trades = %d", n, stored.DailyTradesUsed)
	}
}

func TestNextLocalMidnightNearBoundary(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("timezone database unavailable: %v", err)
	}
	now := time.Date(2026, 3, 10, 23, 55, 0, 0, loc)

	reset := NextLocalMidnight(now, "America/New_York")
	until := reset.Sub(now)
	if until <= 0 || until > 5*time.Minute {
		t.Errorf("reset %v away, want within 5 minutes", until)
	}
}

func TestNextLocalMidnightUnknownTimezoneFallsBackToUTC(t *testing.T) {
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	reset := NextLocalMidnight(now, "Mars/Olympus_Mons")
	want := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	if !reset.Equal(want) {
		t.Errorf("reset = %v, want %v", reset, want)
	}
}

func TestNextLocalMidnightIsNotNowPlus24h(t *testing.T) {
	now := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)

	reset := NextLocalMidnight(now, "UTC")
	if reset.Sub(now) >= 24*time.Hour {
		t.Errorf("reset %v after now, want the coming calendar midnight", reset.Sub(now))
	}
	want := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	if !reset.Equal(want) {
		t.Errorf("reset = %v, want %v", reset, want)
	}
}
