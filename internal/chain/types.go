package chain

import (
	"math/big"
	"time"
)

// USD amounts and prices on the vault and exchange carry 30 decimals.
const usdDecimals = 30

// OnChainPosition is the vault contract's bookkeeping record for one
// wallet × index token. The vault owns it; this package only reads.
type OnChainPosition struct {
	IsActive            bool      `json:"is_active"`
	IsLong              bool      `json:"is_long"`
	Collateral          *big.Int  `json:"collateral"`
	Size                *big.Int  `json:"size"`
	Leverage            *big.Int  `json:"leverage"`
	EntryPrice          *big.Int  `json:"entry_price"`
	StopLoss            *big.Int  `json:"stop_loss"`
	TakeProfit          *big.Int  `json:"take_profit"`
	Timestamp           time.Time `json:"timestamp"`
	RequestKey          [32]byte  `json:"request_key"`
	HighestPrice        *big.Int  `json:"highest_price"`
	LowestPrice         *big.Int  `json:"lowest_price"`
	TrailingSlBps       *big.Int  `json:"trailing_sl_bps"`
	TrailingActivated   bool      `json:"trailing_activated"`
	AutoFeaturesEnabled bool      `json:"auto_features_enabled"`
}

// ExchangePosition is the underlying exchange's view of a position, keyed by
// the vault address as account. An independent source of truth that may
// diverge from OnChainPosition after a liquidation or keeper close.
type ExchangePosition struct {
	Size              *big.Int  `json:"size"`
	Collateral        *big.Int  `json:"collateral"`
	AveragePrice      *big.Int  `json:"average_price"`
	EntryFundingRate  *big.Int  `json:"entry_funding_rate"`
	ReserveAmount     *big.Int  `json:"reserve_amount"`
	RealisedPnl       *big.Int  `json:"realised_pnl"`
	HasProfit         bool      `json:"has_profit"`
	LastIncreasedTime time.Time `json:"last_increased_time"`
}

// IsOpen reports whether the exchange still holds size for this position.
func (p *ExchangePosition) IsOpen() bool {
	return p != nil && p.Size != nil && p.Size.Sign() > 0
}

// UsdToFloat converts a 30-decimals USD amount to a float64. Nil maps to 0.
func UsdToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f := new(big.Float).SetInt(v)
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(usdDecimals), nil))
	out, _ := new(big.Float).Quo(f, scale).Float64()
	return out
}

// FloatToUsd converts a float64 USD amount to 30-decimals fixed point.
func FloatToUsd(v float64) *big.Int {
	f := new(big.Float).SetFloat64(v)
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(usdDecimals), nil))
	out, _ := new(big.Float).Mul(f, scale).Int(nil)
	return out
}
