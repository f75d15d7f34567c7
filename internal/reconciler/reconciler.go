package reconciler

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"vault-trading-bot/internal/chain"
)

// Key identifies one reconciliation stream: a wallet trading one index token
// with one collateral token.
type Key struct {
	Wallet          common.Address `json:"wallet"`
	IndexToken      common.Address `json:"index_token"`
	CollateralToken common.Address `json:"collateral_token"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Wallet.Hex(), k.IndexToken.Hex())
}

// PositionReport is the advisory output of one reconciliation poll. The
// reconciler never submits transactions; the recommended action names the
// remedial vault call for whoever is authorized to make it.
type PositionReport struct {
	Key               Key                     `json:"key"`
	State             State                   `json:"state"`
	Position          *chain.OnChainPosition  `json:"position,omitempty"`
	ExchangePosition  *chain.ExchangePosition `json:"exchange_position,omitempty"`
	MarkPrice         float64                 `json:"mark_price"`
	PnL               float64                 `json:"pnl"`
	PnLPercent        float64                 `json:"pnl_percent"`
	EffectiveStop     float64                 `json:"effective_stop,omitempty"`
	Recoverable       bool                    `json:"recoverable"`
	RecommendedAction string                  `json:"recommended_action,omitempty"`
	ExecutionFee      *big.Int                `json:"execution_fee,omitempty"`
	Warnings          []string                `json:"warnings,omitempty"`
	CheckedAt         time.Time               `json:"checked_at"`
	Stale             bool                    `json:"stale"`
}

// Config holds reconciler tuning.
type Config struct {
	PollInterval time.Duration
	GhostTimeout time.Duration
	VaultAccount common.Address // the vault contract, as exchange account
}

// Reconciler polls vault and exchange state per registered key, classifies
// drift and broadcasts advisory reports.
type Reconciler struct {
	vault    chain.VaultReader
	exchange chain.ExchangeReader
	oracle   chain.PriceOracle
	cfg      Config
	logger   zerolog.Logger

	mu     sync.Mutex
	keys   map[Key]context.CancelFunc
	latest map[Key]*PositionReport

	subMu sync.Mutex
	subs  map[chan *PositionReport]struct{}
}

// New creates a reconciler. Poll interval and ghost timeout fall back to
// 30s and 2h when unset.
func New(vault chain.VaultReader, exchange chain.ExchangeReader, oracle chain.PriceOracle, cfg Config, logger zerolog.Logger) *Reconciler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.GhostTimeout <= 0 {
		cfg.GhostTimeout = 2 * time.Hour
	}
	return &Reconciler{
		vault:    vault,
		exchange: exchange,
		oracle:   oracle,
		cfg:      cfg,
		logger:   logger.With().Str("component", "reconciler").Logger(),
		keys:   make(map[Key]context.CancelFunc),
		latest: make(map[Key]*PositionReport),
		subs:   make(map[chan *PositionReport]struct{}),
	}
}

// Register starts a poll loop for the key. Registering an already-tracked
// key is a no-op.
func (r *Reconciler) Register(ctx context.Context, key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.keys[key]; exists {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.keys[key] = cancel
	go r.pollLoop(loopCtx, key)
	r.logger.Info().Str("key", key.String()).Msg("position registered")
}

// Deregister stops the key's poll loop. In-flight reads finish but their
// results are discarded.
func (r *Reconciler) Deregister(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, exists := r.keys[key]; exists {
		cancel()
		delete(r.keys, key)
		delete(r.latest, key)
		r.logger.Info().Str("key", key.String()).Msg("position deregistered")
	}
}

// Latest returns the most recent report for a key, nil when none exists yet.
func (r *Reconciler) Latest(key Key) *PositionReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest[key]
}

// Reports returns the latest report for every registered key.
func (r *Reconciler) Reports() []*PositionReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*PositionReport, 0, len(r.latest))
	for _, rep := range r.latest {
		out = append(out, rep)
	}
	return out
}

// Subscribe returns a channel receiving every new report. Slow subscribers
// drop reports rather than block the poll loop.
func (r *Reconciler) Subscribe() chan *PositionReport {
	ch := make(chan *PositionReport, 16)
	r.subMu.Lock()
	r.subs[ch] = struct{}{}
	r.subMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (r *Reconciler) Unsubscribe(ch chan *PositionReport) {
	r.subMu.Lock()
	if _, ok := r.subs[ch]; ok {
		delete(r.subs, ch)
		close(ch)
	}
	r.subMu.Unlock()
}

func (r *Reconciler) broadcast(report *PositionReport) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for ch := range r.subs {
		select {
		case ch <- report:
		default:
		}
	}
}

// pollLoop runs one poll per tick for a single key. Polls run synchronously
// in the loop, so a slow poll drops ticker ticks instead of queueing a
// backlog. Later polls always supersede earlier ones for the same key.
func (r *Reconciler) pollLoop(ctx context.Context, key Key) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	r.pollOnce(ctx, key)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pollOnce(ctx, key)
		}
	}
}

// pollOnce reads both position views and the mark price, classifies, and
// publishes the report. A read failure skips the cycle: the previous
// classification is retained and flagged stale, never silently replaced by
// "closed".
func (r *Reconciler) pollOnce(ctx context.Context, key Key) {
	report, err := r.Check(ctx, key)
	if err != nil {
		if ctx.Err() != nil {
			return // cancelled, discard
		}
		r.logger.Error().Str("key", key.String()).Err(err).Msg("reconciliation poll failed")
		r.mu.Lock()
		if prev, ok := r.latest[key]; ok {
			// Published reports are read without the lock by API handlers
			// and websocket subscribers, so replace rather than mutate.
			stale := *prev
			stale.Stale = true
			r.latest[key] = &stale
		}
		r.mu.Unlock()
		return
	}

	if ctx.Err() != nil {
		return // cancelled while reading, discard
	}

	r.mu.Lock()
	r.latest[key] = report
	r.mu.Unlock()

	r.broadcast(report)

	if report.State == StateActiveGhost || report.State == StateStuck {
		r.logger.Warn().
			Str("key", key.String()).
			Str("state", string(report.State)).
			Bool("recoverable", report.Recoverable).
			Msg("position drift detected")
	}
}

// Check performs one reconciliation read for a key and returns the report.
func (r *Reconciler) Check(ctx context.Context, key Key) (*PositionReport, error) {
	onchain, err := r.vault.GetPosition(ctx, key.Wallet, key.IndexToken)
	if err != nil {
		return nil, fmt.Errorf("read vault position: %w", err)
	}

	now := time.Now().UTC()
	report := &PositionReport{Key: key, CheckedAt: now}

	if !onchain.IsActive {
		report.State = StateClosed
		return report, nil
	}
	report.Position = onchain

	balance, err := r.vault.GetBalance(ctx, key.Wallet)
	if err != nil {
		return nil, fmt.Errorf("read vault balance: %w", err)
	}

	exchangeLong, err := r.exchange.GetExchangePosition(ctx, r.cfg.VaultAccount, key.CollateralToken, key.IndexToken, true)
	if err != nil {
		return nil, fmt.Errorf("read exchange long: %w", err)
	}
	exchangeShort, err := r.exchange.GetExchangePosition(ctx, r.cfg.VaultAccount, key.CollateralToken, key.IndexToken, false)
	if err != nil {
		return nil, fmt.Errorf("read exchange short: %w", err)
	}
	if onchain.IsLong {
		report.ExchangePosition = exchangeLong
	} else {
		report.ExchangePosition = exchangeShort
	}

	markPrice, err := r.markPrice(ctx, key.IndexToken, onchain.IsLong)
	if err != nil {
		return nil, fmt.Errorf("read mark price: %w", err)
	}
	report.MarkPrice = markPrice

	c := Classify(onchain, exchangeLong, exchangeShort, balance, now, r.cfg.GhostTimeout)
	report.State = c.State
	report.Recoverable = c.Recoverable
	report.RecommendedAction = c.RecommendedAction

	report.PnL = PnL(chain.UsdToFloat(onchain.EntryPrice), markPrice, chain.UsdToFloat(onchain.Size), onchain.IsLong)
	report.PnLPercent = PnLPercent(report.PnL, chain.UsdToFloat(onchain.Collateral))
	report.EffectiveStop = EffectiveStop(onchain)

	switch {
	case c.State == StateActiveGhost && !c.Recoverable:
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("ghost position detected %s ago, not yet recoverable (timeout %s)", c.Age.Round(time.Second), r.cfg.GhostTimeout))
	case c.State == StateActiveGhost:
		report.Warnings = append(report.Warnings, "ghost position past timeout, forced close available")
	case c.State == StateStuck:
		report.Warnings = append(report.Warnings, "vault balance exhausted, explicit recovery call required")
	}

	// A recommended action is only useful together with the fee the vault
	// will demand for it.
	if report.RecommendedAction != ActionNone {
		fee, err := r.vault.GetExecutionFee(ctx)
		if err != nil {
			report.Warnings = append(report.Warnings, "execution fee unavailable")
		} else {
			report.ExecutionFee = fee
		}
	}

	return report, nil
}

// markPrice picks the conservative oracle side: the lower price for longs,
// the higher for shorts.
func (r *Reconciler) markPrice(ctx context.Context, token common.Address, isLong bool) (float64, error) {
	if isLong {
		p, err := r.oracle.GetMinPrice(ctx, token)
		if err != nil {
			return 0, err
		}
		return chain.UsdToFloat(p), nil
	}
	p, err := r.oracle.GetMaxPrice(ctx, token)
	if err != nil {
		return 0, err
	}
	return chain.UsdToFloat(p), nil
}
