package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

// Minimal ABI fragments for the read surface this service consumes. Write
// methods (userClosePosition, cancelAutoFeatures, userInstantClose) belong to
// the external execution collaborator and are deliberately absent.
const vaultABIJSON = `[
  {"name":"getPosition","type":"function","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"},{"name":"indexToken","type":"address"}],
   "outputs":[
     {"name":"isActive","type":"bool"},
     {"name":"isLong","type":"bool"},
     {"name":"collateral","type":"uint256"},
     {"name":"size","type":"uint256"},
     {"name":"leverage","type":"uint256"},
     {"name":"entryPrice","type":"uint256"},
     {"name":"stopLoss","type":"uint256"},
     {"name":"takeProfit","type":"uint256"},
     {"name":"timestamp","type":"uint256"},
     {"name":"requestKey","type":"bytes32"},
     {"name":"highestPrice","type":"uint256"},
     {"name":"lowestPrice","type":"uint256"},
     {"name":"trailingSlBps","type":"uint256"},
     {"name":"trailingActivated","type":"bool"},
     {"name":"autoFeaturesEnabled","type":"bool"}]},
  {"name":"userBalances","type":"function","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"name":"getExecutionFee","type":"function","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"uint256"}]}
]`

const exchangeABIJSON = `[
  {"name":"getPosition","type":"function","stateMutability":"view",
   "inputs":[
     {"name":"account","type":"address"},
     {"name":"collateralToken","type":"address"},
     {"name":"indexToken","type":"address"},
     {"name":"isLong","type":"bool"}],
   "outputs":[
     {"name":"size","type":"uint256"},
     {"name":"collateral","type":"uint256"},
     {"name":"averagePrice","type":"uint256"},
     {"name":"entryFundingRate","type":"uint256"},
     {"name":"reserveAmount","type":"uint256"},
     {"name":"realisedPnl","type":"uint256"},
     {"name":"hasProfit","type":"bool"},
     {"name":"lastIncreasedTime","type":"uint256"}]},
  {"name":"getMaxPrice","type":"function","stateMutability":"view",
   "inputs":[{"name":"token","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"name":"getMinPrice","type":"function","stateMutability":"view",
   "inputs":[{"name":"token","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]}
]`

// Config identifies the RPC endpoint and contract addresses.
type Config struct {
	RPCURL          string `json:"rpc_url"`
	VaultAddress    string `json:"vault_address"`
	ExchangeAddress string `json:"exchange_address"`
	CallTimeout     int    `json:"call_timeout_seconds"`
}

// Client reads vault and exchange state over JSON-RPC. It implements
// VaultReader, ExchangeReader and PriceOracle.
type Client struct {
	eth         *ethclient.Client
	vaultAddr   common.Address
	exchAddr    common.Address
	vaultABI    abi.ABI
	exchangeABI abi.ABI
	callTimeout time.Duration
	logger      zerolog.Logger
}

// NewClient dials the RPC endpoint and prepares the contract bindings.
func NewClient(ctx context.Context, cfg Config, logger zerolog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc %s: %w", cfg.RPCURL, err)
	}

	vaultABI, err := abi.JSON(strings.NewReader(vaultABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse vault abi: %w", err)
	}
	exchangeABI, err := abi.JSON(strings.NewReader(exchangeABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse exchange abi: %w", err)
	}

	timeout := time.Duration(cfg.CallTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		eth:         eth,
		vaultAddr:   common.HexToAddress(cfg.VaultAddress),
		exchAddr:    common.HexToAddress(cfg.ExchangeAddress),
		vaultABI:    vaultABI,
		exchangeABI: exchangeABI,
		callTimeout: timeout,
		logger:      logger.With().Str("component", "chain").Logger(),
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// call packs a view call, executes it and returns the unpacked outputs.
func (c *Client) call(ctx context.Context, contract common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	raw, err := c.eth.CallContract(callCtx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	out, err := contractABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

// GetPosition reads the vault's position record for user × indexToken.
func (c *Client) GetPosition(ctx context.Context, user, indexToken common.Address) (*OnChainPosition, error) {
	out, err := c.call(ctx, c.vaultAddr, c.vaultABI, "getPosition", user, indexToken)
	if err != nil {
		return nil, err
	}
	if len(out) != 15 {
		return nil, fmt.Errorf("vault getPosition: unexpected output arity %d", len(out))
	}

	ts := out[8].(*big.Int)
	return &OnChainPosition{
		IsActive:            out[0].(bool),
		IsLong:              out[1].(bool),
		Collateral:          out[2].(*big.Int),
		Size:                out[3].(*big.Int),
		Leverage:            out[4].(*big.Int),
		EntryPrice:          out[5].(*big.Int),
		StopLoss:            out[6].(*big.Int),
		TakeProfit:          out[7].(*big.Int),
		Timestamp:           time.Unix(ts.Int64(), 0).UTC(),
		RequestKey:          out[9].([32]byte),
		HighestPrice:        out[10].(*big.Int),
		LowestPrice:         out[11].(*big.Int),
		TrailingSlBps:       out[12].(*big.Int),
		TrailingActivated:   out[13].(bool),
		AutoFeaturesEnabled: out[14].(bool),
	}, nil
}

// GetBalance reads the wallet's free collateral in the vault.
func (c *Client) GetBalance(ctx context.Context, user common.Address) (*big.Int, error) {
	out, err := c.call(ctx, c.vaultAddr, c.vaultABI, "userBalances", user)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// GetExecutionFee reads the fee the vault requires with write submissions.
func (c *Client) GetExecutionFee(ctx context.Context) (*big.Int, error) {
	out, err := c.call(ctx, c.vaultAddr, c.vaultABI, "getExecutionFee")
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// GetExchangePosition reads the exchange-side position for the given key.
// The vault contract is the account from the exchange's point of view.
func (c *Client) GetExchangePosition(ctx context.Context, account, collateralToken, indexToken common.Address, isLong bool) (*ExchangePosition, error) {
	out, err := c.call(ctx, c.exchAddr, c.exchangeABI, "getPosition", account, collateralToken, indexToken, isLong)
	if err != nil {
		return nil, err
	}
	if len(out) != 8 {
		return nil, fmt.Errorf("exchange getPosition: unexpected output arity %d", len(out))
	}

	lastIncreased := out[7].(*big.Int)
	return &ExchangePosition{
		Size:              out[0].(*big.Int),
		Collateral:        out[1].(*big.Int),
		AveragePrice:      out[2].(*big.Int),
		EntryFundingRate:  out[3].(*big.Int),
		ReserveAmount:     out[4].(*big.Int),
		RealisedPnl:       out[5].(*big.Int),
		HasProfit:         out[6].(bool),
		LastIncreasedTime: time.Unix(lastIncreased.Int64(), 0).UTC(),
	}, nil
}

// GetMaxPrice reads the oracle's upper mark price for a token.
func (c *Client) GetMaxPrice(ctx context.Context, token common.Address) (*big.Int, error) {
	out, err := c.call(ctx, c.exchAddr, c.exchangeABI, "getMaxPrice", token)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// GetMinPrice reads the oracle's lower mark price for a token.
func (c *Client) GetMinPrice(ctx context.Context, token common.Address) (*big.Int, error) {
	out, err := c.call(ctx, c.exchAddr, c.exchangeABI, "getMinPrice", token)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}
