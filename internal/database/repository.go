package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"vault-trading-bot/internal/reconciler"
	"vault-trading-bot/internal/signal"
	"vault-trading-bot/internal/subscription"
)

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// ============================================================================
// SUBSCRIPTIONS
// ============================================================================

// GetByWallet returns the subscription for a wallet, nil when none exists.
// Matching is case-insensitive since wallet addresses arrive in mixed case.
func (r *Repository) GetByWallet(ctx context.Context, wallet string) (*subscription.Subscription, error) {
	query := `
		SELECT user_id, wallet_address, plan_tier, status,
		       daily_trades_used, daily_trades_reset_at, total_trades_used,
		       COALESCE(end_date, 'epoch'::timestamptz), timezone, created_at, updated_at
		FROM subscriptions
		WHERE LOWER(wallet_address) = LOWER($1)
	`
	var sub subscription.Subscription
	var endDate time.Time
	err := r.db.Pool.QueryRow(ctx, query, wallet).Scan(
		&sub.UserID, &sub.WalletAddress, &sub.PlanTier, &sub.Status,
		&sub.DailyTradesUsed, &sub.DailyTradesResetAt, &sub.TotalTradesUsed,
		&endDate, &sub.Timezone, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query subscription: %w", err)
	}
	if endDate.Unix() > 0 {
		sub.EndDate = endDate
	}
	return &sub, nil
}

// UpsertSubscription inserts or replaces the subscription for a wallet.
func (r *Repository) UpsertSubscription(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (user_id, wallet_address, plan_tier, status,
			daily_trades_used, daily_trades_reset_at, total_trades_used, end_date, timezone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, 'epoch'::timestamptz), $9)
		ON CONFLICT (wallet_address) DO UPDATE SET
			plan_tier = EXCLUDED.plan_tier,
			status = EXCLUDED.status,
			end_date = EXCLUDED.end_date,
			timezone = EXCLUDED.timezone,
			updated_at = NOW()
	`
	endDate := sub.EndDate
	if endDate.IsZero() {
		endDate = time.Unix(0, 0).UTC()
	}
	_, err := r.db.Pool.Exec(ctx, query,
		sub.UserID, sub.WalletAddress, sub.PlanTier, sub.Status,
		sub.DailyTradesUsed, sub.DailyTradesResetAt, sub.TotalTradesUsed,
		endDate, sub.Timezone,
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// ResetDaily zeroes the daily counter and advances the reset boundary. The
// WHERE guard makes the reset a single conditional write: of two concurrent
// checks, only the first one past the old boundary applies.
func (r *Repository) ResetDaily(ctx context.Context, wallet string, resetAt time.Time) error {
	query := `
		UPDATE subscriptions
		SET daily_trades_used = 0, daily_trades_reset_at = $2, updated_at = NOW()
		WHERE LOWER(wallet_address) = LOWER($1) AND daily_trades_reset_at < $2
	`
	_, err := r.db.Pool.Exec(ctx, query, wallet, resetAt)
	if err != nil {
		return fmt.Errorf("reset daily trades: %w", err)
	}
	return nil
}

// IncrementTrades bumps the daily and lifetime counters in one atomic write.
func (r *Repository) IncrementTrades(ctx context.Context, wallet string) error {
	query := `
		UPDATE subscriptions
		SET daily_trades_used = daily_trades_used + 1,
		    total_trades_used = total_trades_used + 1,
		    updated_at = NOW()
		WHERE LOWER(wallet_address) = LOWER($1)
	`
	tag, err := r.db.Pool.Exec(ctx, query, wallet)
	if err != nil {
		return fmt.Errorf("increment trade counts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no subscription for wallet %s", wallet)
	}
	return nil
}

// ============================================================================
// SIGNAL HISTORY
// ============================================================================

// SaveSignal records an emitted signal for later review.
func (r *Repository) SaveSignal(ctx context.Context, sig *signal.UnifiedSignal) error {
	query := `
		INSERT INTO signal_history (symbol, direction, confidence, trend_alignment,
			pattern_strength, entry_price, take_profit, stop_loss)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		sig.Symbol, string(sig.Direction), sig.Confidence, sig.TrendAlignment,
		sig.PatternStrength, sig.SuggestedEntry, sig.SuggestedTP, sig.SuggestedSL,
	)
	if err != nil {
		return fmt.Errorf("save signal: %w", err)
	}
	return nil
}

// ============================================================================
// POSITION EVENTS
// ============================================================================

// SavePositionEvent records a reconciliation report that found drift.
func (r *Repository) SavePositionEvent(ctx context.Context, report *reconciler.PositionReport) error {
	query := `
		INSERT INTO position_events (wallet_address, index_token, state,
			recoverable, recommended_action, pnl, mark_price, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		report.Key.Wallet.Hex(), report.Key.IndexToken.Hex(), string(report.State),
		report.Recoverable, report.RecommendedAction, report.PnL, report.MarkPrice,
		report.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("save position event: %w", err)
	}
	return nil
}
