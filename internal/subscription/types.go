package subscription

import "time"

// PlanTier represents the user's subscription level.
type PlanTier string

const (
	TierNone    PlanTier = "none"
	TierFree    PlanTier = "free"
	TierStarter PlanTier = "starter"
	TierPro     PlanTier = "pro"
	TierElite   PlanTier = "elite"
	TierDesktop PlanTier = "desktop"
)

// Status represents the lifecycle state of a subscription.
type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// FreeLifetimeLimit is the total number of trades a free wallet ever gets.
// Free tier does not reset daily.
const FreeLifetimeLimit = 2

// Subscription is the persisted record for one wallet. Counters are owned
// by the permission gate and mutated only through its store.
type Subscription struct {
	UserID             string    `json:"user_id"`
	WalletAddress      string    `json:"wallet_address"`
	PlanTier           PlanTier  `json:"plan_tier"`
	Status             Status    `json:"status"`
	DailyTradesUsed    int       `json:"daily_trades_used"`
	DailyTradesResetAt time.Time `json:"daily_trades_reset_at"`
	TotalTradesUsed    int       `json:"total_trades_used"`
	EndDate            time.Time `json:"end_date"`
	Timezone           string    `json:"timezone"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// TierLimits defines the trading limits for a subscription tier.
type TierLimits struct {
	MaxDailyTrades int // -1 means unlimited
	MaxLeverage    int
	AutoTrading    bool
}

// GetTierLimits returns the limits for a given tier. Free tier limits are
// lifetime, not daily; see FreeLifetimeLimit.
func GetTierLimits(tier PlanTier) (TierLimits, bool) {
	switch tier {
	case TierFree:
		return TierLimits{
			MaxDailyTrades: FreeLifetimeLimit,
			MaxLeverage:    2,
		}, true
	case TierStarter:
		return TierLimits{
			MaxDailyTrades: 5,
			MaxLeverage:    10,
			AutoTrading:    true,
		}, true
	case TierPro:
		return TierLimits{
			MaxDailyTrades: 20,
			MaxLeverage:    25,
			AutoTrading:    true,
		}, true
	case TierElite:
		return TierLimits{
			MaxDailyTrades: -1, // Unlimited
			MaxLeverage:    50,
			AutoTrading:    true,
		}, true
	case TierDesktop:
		return TierLimits{
			MaxDailyTrades: -1, // Unlimited
			MaxLeverage:    50,
			AutoTrading:    true,
		}, true
	default:
		return TierLimits{}, false
	}
}

// Limits carries deployment overrides for the built-in tier table. Zero
// values fall back to the built-ins, so Limits{} means defaults everywhere.
type Limits struct {
	FreeLifetime int              // lifetime trade cap for free wallets
	DailyByTier  map[PlanTier]int // per-tier daily cap, -1 = unlimited
}

func (l Limits) freeLifetime() int {
	if l.FreeLifetime > 0 {
		return l.FreeLifetime
	}
	return FreeLifetimeLimit
}

func (l Limits) dailyFor(tier PlanTier, builtin int) int {
	if v, ok := l.DailyByTier[tier]; ok {
		return v
	}
	return builtin
}

// NextLocalMidnight returns the next midnight at or after now in the given
// IANA timezone, as an absolute instant. An unrecognized timezone falls
// back to UTC. This is a calendar boundary, never "now + 24h": at 23:55
// local the reset is five minutes away.
func NextLocalMidnight(now time.Time, timezone string) time.Time {
	loc, err := time.LoadLocation(timezone)
	if err != nil || timezone == "" {
		loc = time.UTC
	}
	local := now.In(loc)
	y, m, d := local.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if !midnight.After(local) {
		midnight = midnight.AddDate(0, 0, 1)
	}
	return midnight
}
