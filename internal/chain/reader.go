package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// VaultReader reads vault-side position state and fee parameters.
type VaultReader interface {
	// GetPosition returns the vault's bookkeeping for user × indexToken.
	GetPosition(ctx context.Context, user, indexToken common.Address) (*OnChainPosition, error)
	// GetBalance returns the wallet's free collateral balance in the vault.
	GetBalance(ctx context.Context, user common.Address) (*big.Int, error)
	// GetExecutionFee returns the network fee the vault currently demands
	// alongside close/cancel submissions.
	GetExecutionFee(ctx context.Context) (*big.Int, error)
}

// ExchangeReader reads the underlying exchange's position ledger. The vault
// contract address is the account key on the exchange side.
type ExchangeReader interface {
	GetExchangePosition(ctx context.Context, account, collateralToken, indexToken common.Address, isLong bool) (*ExchangePosition, error)
}

// PriceOracle exposes the exchange's mark prices.
type PriceOracle interface {
	GetMaxPrice(ctx context.Context, token common.Address) (*big.Int, error)
	GetMinPrice(ctx context.Context, token common.Address) (*big.Int, error)
}
