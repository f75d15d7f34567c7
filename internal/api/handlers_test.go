package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vault-trading-bot/internal/market"
	"vault-trading-bot/internal/signal"
	"vault-trading-bot/internal/subscription"
)

type erroringFeed struct{}

func (erroringFeed) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	return nil, errors.New("feed offline")
}

func newTestServer(t *testing.T) (*Server, *subscription.MemoryStore) {
	t.Helper()
	cfg := signal.DefaultConfig()
	signals := signal.NewService(erroringFeed{}, cfg, nil, 100*time.Millisecond, zerolog.Nop())

	store := subscription.NewMemoryStore()
	gate := subscription.NewGate(store, subscription.Limits{}, zerolog.Nop())

	srv := NewServer(ServerConfig{ProductionMode: true}, signals, nil, gate, nil, zerolog.Nop())
	return srv, store
}

func doRequest(srv *Server, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	srv.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(srv, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestSignalRequiresSymbol(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(srv, "/api/signal")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSignalDegradesToHold(t *testing.T) {
	// Every timeframe fails, so the endpoint still answers with a neutral
	// HOLD signal rather than an error.
	srv, _ := newTestServer(t)

	w := doRequest(srv, "/api/signal?symbol=ethusdt")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool                 `json:"success"`
		Signal  signal.UnifiedSignal `json:"signal"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Fatal("success = false")
	}
	if resp.Signal.Symbol != "ETHUSDT" {
		t.Errorf("symbol = %q, want ETHUSDT", resp.Signal.Symbol)
	}
	if resp.Signal.Direction != "HOLD" {
		t.Errorf("direction = %s, want HOLD on fully degraded data", resp.Signal.Direction)
	}
	if len(resp.Signal.Timeframes) != len(signal.DefaultConfig().Timeframes) {
		t.Errorf("timeframes = %d, want %d", len(resp.Signal.Timeframes), len(signal.DefaultConfig().Timeframes))
	}
}

func TestSignalUnknownTimeframe(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(srv, "/api/signal?symbol=ETHUSDT&timeframes=7m")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestPermissionEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	wallet := "0xabc0000000000000000000000000000000000009"
	store.Put(&subscription.Subscription{
		WalletAddress:      wallet,
		PlanTier:           subscription.TierFree,
		Status:             subscription.StatusActive,
		TotalTradesUsed:    1,
		DailyTradesResetAt: time.Now().Add(time.Hour),
	})

	w := doRequest(srv, "/api/permission?wallet="+wallet)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Success  bool                  `json:"success"`
		Decision subscription.Decision `json:"decision"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Decision.Allowed {
		t.Errorf("allowed = false, reason %q", resp.Decision.Reason)
	}
	if resp.Decision.DailyTradesRemaining != 1 {
		t.Errorf("remaining = %d, want 1", resp.Decision.DailyTradesRemaining)
	}
}

func TestPermissionDeniedWithoutSubscription(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(srv, "/api/permission?wallet=0xdead000000000000000000000000000000000001")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; quota denial is a result, not an error", w.Code)
	}

	var resp struct {
		Decision subscription.Decision `json:"decision"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Decision.Allowed {
		t.Error("wallet without subscription allowed")
	}
	if resp.Decision.PlanTier != subscription.TierNone {
		t.Errorf("plan tier = %s, want %s", resp.Decision.PlanTier, subscription.TierNone)
	}
}

func TestPositionRequiresHexAddresses(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(srv, "/api/position?wallet=bogus&token=alsobogus")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestPositionWithoutReconciler(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(srv, "/api/position?wallet=0xabc0000000000000000000000000000000000001&token=0xabc0000000000000000000000000000000000002")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !rl.Allow("/api/signal") {
			t.Fatalf("request %d denied under the limit", i+1)
		}
	}
	if rl.Allow("/api/signal") {
		t.Error("request over the limit allowed")
	}
	if !rl.Allow("/api/timeframe") {
		t.Error("separate endpoint shares the limit bucket")
	}
}
