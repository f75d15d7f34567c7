package reconciler

import (
	"math/big"
	"time"

	"vault-trading-bot/internal/chain"
)

// State is the reconciliation state of one wallet × token position.
type State string

const (
	// StateClosed: no active vault position.
	StateClosed State = "CLOSED"
	// StateActiveHealthy: vault position active and the exchange holds
	// matching size.
	StateActiveHealthy State = "ACTIVE_HEALTHY"
	// StateActiveGhost: vault still marks the position active but the
	// exchange no longer holds size on either side.
	StateActiveGhost State = "ACTIVE_GHOST"
	// StateStuck: active vault position with a zero vault balance; only an
	// explicit recovery call can exit this state.
	StateStuck State = "STUCK"
)

// Remedial call signatures on the vault. The order-execution collaborator is
// the only party that submits them; the reconciler just names the right one.
const (
	ActionNone               = ""
	ActionUserClosePosition  = "userClosePosition"
	ActionCancelAutoFeatures = "cancelAutoFeatures"
	ActionUserInstantClose   = "userInstantClose"
)

// Classification is the pure outcome of comparing both position views.
type Classification struct {
	State             State
	Ghost             bool
	Recoverable       bool
	Age               time.Duration
	RecommendedAction string
}

// Classify compares the vault's bookkeeping against the exchange's ledger
// and the wallet's vault balance. exchangeLong and exchangeShort are the
// exchange positions for each side of this token; either may be nil.
//
// A ghost younger than ghostTimeout is reported but not recoverable, so a
// legitimately pending settlement is never raced. Past the timeout the
// forced close becomes available. A zero vault balance overrides everything
// except Closed.
func Classify(onchain *chain.OnChainPosition, exchangeLong, exchangeShort *chain.ExchangePosition, balance *big.Int, now time.Time, ghostTimeout time.Duration) Classification {
	if onchain == nil || !onchain.IsActive {
		return Classification{State: StateClosed}
	}

	c := Classification{
		Ghost: !exchangeLong.IsOpen() && !exchangeShort.IsOpen(),
		Age:   now.Sub(onchain.Timestamp),
	}

	if balance != nil && balance.Sign() == 0 {
		c.State = StateStuck
		c.RecommendedAction = ActionUserClosePosition
		if onchain.AutoFeaturesEnabled {
			c.RecommendedAction = ActionCancelAutoFeatures
		}
		return c
	}

	if c.Ghost {
		c.State = StateActiveGhost
		if c.Age > ghostTimeout {
			c.Recoverable = true
			c.RecommendedAction = ActionUserInstantClose
		}
		return c
	}

	c.State = StateActiveHealthy
	return c
}

// PnL computes the live profit of a position in collateral denomination:
// direction-signed (current − entry) × size / entry. A zero entry price
// (freshly opened) or zero current price (feed not warmed up) yields a
// defined neutral 0.
func PnL(entryPrice, currentPrice, size float64, isLong bool) float64 {
	if entryPrice == 0 || currentPrice == 0 {
		return 0
	}
	pnl := (currentPrice - entryPrice) * size / entryPrice
	if !isLong {
		pnl = -pnl
	}
	return pnl
}

// PnLPercent expresses PnL relative to collateral.
func PnLPercent(pnl, collateral float64) float64 {
	if collateral == 0 {
		return 0
	}
	return pnl / collateral * 100
}

// EffectiveStop returns the trailing stop level for a position, or 0 when
// trailing has not activated. Longs ratchet off the highest observed price,
// shorts off the lowest, offset by trailingSlBps basis points.
func EffectiveStop(pos *chain.OnChainPosition) float64 {
	if pos == nil || !pos.TrailingActivated {
		return 0
	}
	bps := float64(0)
	if pos.TrailingSlBps != nil {
		bps = float64(pos.TrailingSlBps.Int64())
	}
	if pos.IsLong {
		return chain.UsdToFloat(pos.HighestPrice) * (1 - bps/10000)
	}
	return chain.UsdToFloat(pos.LowestPrice) * (1 + bps/10000)
}
