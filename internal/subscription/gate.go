package subscription

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Store persists subscriptions and applies counter mutations atomically at
// the storage layer so that two concurrent trades for the same wallet can
// never both read a stale counter.
type Store interface {
	// GetByWallet returns nil with no error when the wallet has no record.
	GetByWallet(ctx context.Context, wallet string) (*Subscription, error)
	// ResetDaily zeroes the daily counter and sets the next reset boundary,
	// only if the stored boundary is still in the past.
	ResetDaily(ctx context.Context, wallet string, resetAt time.Time) error
	// IncrementTrades bumps the daily and lifetime counters in one write.
	IncrementTrades(ctx context.Context, wallet string) error
}

// Decision is the gate's answer for one trade attempt.
type Decision struct {
	Allowed              bool     `json:"allowed"`
	Reason               string   `json:"reason,omitempty"`
	DailyTradesRemaining int      `json:"daily_trades_remaining"`
	PlanTier             PlanTier `json:"plan_tier"`
}

func denied(tier PlanTier, reason string) Decision {
	return Decision{Reason: reason, PlanTier: tier}
}

// Gate decides whether a wallet may submit a new trade. Both the automated
// path and manual trades consult it before submission.
type Gate struct {
	store  Store
	limits Limits
	logger zerolog.Logger
	now    func() time.Time
}

// NewGate creates a permission gate over a subscription store. Pass Limits{}
// for the built-in tier table.
func NewGate(store Store, limits Limits, logger zerolog.Logger) *Gate {
	return &Gate{
		store:  store,
		limits: limits,
		logger: logger.With().Str("component", "permission_gate").Logger(),
		now:    time.Now,
	}
}

// CanTrade evaluates the decision rules in order; the first matching rule
// wins. It never returns an error: lookup failures become a denial with a
// reason, so a storage hiccup fails closed rather than minting free trades.
func (g *Gate) CanTrade(ctx context.Context, wallet string) Decision {
	sub, err := g.store.GetByWallet(ctx, wallet)
	if err != nil {
		g.logger.Error().Str("wallet", wallet).Err(err).Msg("subscription lookup failed")
		return denied(TierNone, "subscription lookup failed")
	}
	if sub == nil {
		return denied(TierNone, "no subscription found")
	}

	if sub.Status != StatusActive {
		return denied(sub.PlanTier, string(sub.Status))
	}

	now := g.now()
	if !sub.EndDate.IsZero() && now.After(sub.EndDate) {
		return denied(sub.PlanTier, "expired")
	}

	// Free tier is a lifetime allowance, not a daily one.
	if sub.PlanTier == TierFree {
		remaining := g.limits.freeLifetime() - sub.TotalTradesUsed
		if remaining <= 0 {
			return Decision{Reason: "free trade limit reached", PlanTier: TierFree}
		}
		return Decision{Allowed: true, DailyTradesRemaining: remaining, PlanTier: TierFree}
	}

	limits, ok := GetTierLimits(sub.PlanTier)
	if !ok {
		return denied(sub.PlanTier, "unknown plan tier")
	}
	maxDaily := g.limits.dailyFor(sub.PlanTier, limits.MaxDailyTrades)

	dailyUsed := sub.DailyTradesUsed
	if now.After(sub.DailyTradesResetAt) {
		resetAt := NextLocalMidnight(now, sub.Timezone)
		if err := g.store.ResetDaily(ctx, wallet, resetAt); err != nil {
			g.logger.Error().Str("wallet", wallet).Err(err).Msg("daily counter reset failed")
			return denied(sub.PlanTier, "subscription update failed")
		}
		dailyUsed = 0
	}

	if maxDaily == -1 {
		return Decision{Allowed: true, DailyTradesRemaining: -1, PlanTier: sub.PlanTier}
	}

	remaining := maxDaily - dailyUsed
	if remaining <= 0 {
		return Decision{Reason: "Daily trade limit reached", PlanTier: sub.PlanTier}
	}
	return Decision{Allowed: true, DailyTradesRemaining: remaining, PlanTier: sub.PlanTier}
}

// RecordTrade increments the wallet's daily and lifetime trade counters in
// one atomic write. Call it only after a trade has actually been submitted;
// recording speculatively would burn quota on failed submissions.
func (g *Gate) RecordTrade(ctx context.Context, wallet string) error {
	if err := g.store.IncrementTrades(ctx, wallet); err != nil {
		g.logger.Error().Str("wallet", wallet).Err(err).Msg("trade count update failed")
		return err
	}
	return nil
}
