// Package uniswapv3 quotes concentrated-liquidity pools through the V3
// quoter contract, one simulation call per configured fee tier.
package uniswapv3

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/lumafi/flasharb/chain"
	"github.com/lumafi/flasharb/dex"
	"github.com/lumafi/flasharb/types"
)

const quoterABIJson = `[
	{"name":"quoteExactInputSingle","type":"function","stateMutability":"nonpayable","inputs":[{"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},{"name":"fee","type":"uint24"},{"name":"amountIn","type":"uint256"},{"name":"sqrtPriceLimitX96","type":"uint160"}],"outputs":[{"name":"amountOut","type":"uint256"}]}
]`

// Quoter implements dex.Quoter for V3-style pools.
type Quoter struct {
	client chain.LedgerClient
	cfg    dex.Config
	abi    abi.ABI
	logger *zap.Logger
}

// NewQuoter creates a concentrated-liquidity quote connector.
func NewQuoter(client chain.LedgerClient, cfg dex.Config, logger *zap.Logger) (*Quoter, error) {
	if client == nil {
		return nil, fmt.Errorf("ledger client cannot be nil")
	}
	if len(cfg.FeeTiers) == 0 {
		return nil, fmt.Errorf("at least one fee tier must be configured")
	}

	parsedABI, err := abi.JSON(strings.NewReader(quoterABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse quoter ABI: %w", err)
	}

	return &Quoter{
		client: client,
		cfg:    cfg,
		abi:    parsedABI,
		logger: logger,
	}, nil
}

func (q *Quoter) ID() types.DexID    { return q.cfg.ID }
func (q *Quoter) Name() string       { return q.cfg.Name }
func (q *Quoter) FeeTiers() []uint32 { return q.cfg.FeeTiers }

// FeeBps converts a V3 fee tier (hundredths of a bps, e.g. 3000) to bps.
func (q *Quoter) FeeBps(feeTier uint32) int64 { return int64(feeTier) / 100 }

func (q *Quoter) SupportsForwardQuote() bool { return true }

// Quote simulates quoteExactInputSingle for one fee tier. A missing or
// reverting tier is dex.ErrUnavailable; the remaining tiers are unaffected.
func (q *Quoter) Quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, feeTier uint32) (*big.Int, error) {
	data, err := q.abi.Pack("quoteExactInputSingle",
		tokenIn,
		tokenOut,
		big.NewInt(int64(feeTier)),
		amountIn,
		big.NewInt(0),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: pack quoteExactInputSingle: %v", dex.ErrUnavailable, err)
	}

	quoter := q.cfg.Quoter
	out, err := q.client.CallContract(ctx, ethereum.CallMsg{To: &quoter, Data: data})
	if err != nil {
		q.logger.Debug("quoteExactInputSingle reverted",
			zap.String("dex", q.cfg.Name),
			zap.Uint32("fee_tier", feeTier),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", dex.ErrUnavailable, err)
	}

	amountOut, err := chain.UnpackBigInt(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dex.ErrUnavailable, err)
	}
	if amountOut.Sign() <= 0 {
		return nil, fmt.Errorf("%w: zero output", dex.ErrUnavailable)
	}

	return amountOut, nil
}

func (q *Quoter) Instruction(tokenIn, tokenOut common.Address, amountIn, minAmountOut *big.Int, feeTier uint32) types.SwapInstruction {
	return &types.ConcentratedLiquiditySwap{
		SwapParams: types.SwapParams{
			Router:       q.cfg.Router,
			TokenIn:      tokenIn,
			TokenOut:     tokenOut,
			AmountIn:     amountIn,
			MinAmountOut: minAmountOut,
		},
		FeeTier: feeTier,
	}
}
