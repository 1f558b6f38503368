// Package dodo quotes proactive-market-maker pools. Only the sell-base
// direction has a direct query; the reverse direction reports unavailable
// and is covered by the evaluator's rate inversion.
package dodo

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

const poolABIJson = `[
	{"name":"querySellBaseToken","type":"function","stateMutability":"view","inputs":[{"name":"amount","type":"uint256"}],"outputs":[{"name":"receiveQuote","type":"uint256"}]},
	{"name":"_BASE_TOKEN_","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

// Quoter implements dex.Quoter for DODO-style PMM pools.
type Quoter struct {
	client    chain.LedgerClient
	cfg       dex.Config
	abi       abi.ABI
	baseToken common.Address
	logger    *zap.Logger
}

// NewQuoter creates a PMM quote connector. baseToken is the pool's base
// side; only swaps selling it can be quoted directly.
func NewQuoter(client chain.LedgerClient, cfg dex.Config, baseToken common.Address, logger *zap.Logger) (*Quoter, error) {
	if client == nil {
		return nil, fmt.Errorf("ledger client cannot be nil")
	}

	parsedABI, err := abi.JSON(strings.NewReader(poolABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool ABI: %w", err)
	}

	return &Quoter{
		client:    client,
		cfg:       cfg,
		abi:       parsedABI,
		baseToken: baseToken,
		logger:    logger,
	}, nil
}

func (q *Quoter) ID() types.DexID    { return q.cfg.ID }
func (q *Quoter) Name() string       { return q.cfg.Name }
func (q *Quoter) FeeTiers() []uint32 { return nil }

func (q *Quoter) FeeBps(uint32) int64 { return q.cfg.FeeBps }

func (q *Quoter) SupportsForwardQuote() bool { return false }

func (q *Quoter) Quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, _ uint32) (*big.Int, error) {
	if tokenIn != q.baseToken {
		return nil, fmt.Errorf("%w: pool only quotes the sell-base direction", dex.ErrUnavailable)
	}

	data, err := q.abi.Pack("querySellBaseToken", amountIn)
	if err != nil {
		return nil, fmt.Errorf("%w: pack querySellBaseToken: %v", dex.ErrUnavailable, err)
	}

	pool := q.cfg.Router
	out, err := q.client.CallContract(ctx, ethereum.CallMsg{To: &pool, Data: data})
	if err != nil {
		q.logger.Debug("querySellBaseToken reverted",
			zap.String("dex", q.cfg.Name),
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

func (q *Quoter) Instruction(tokenIn, tokenOut common.Address, amountIn, minAmountOut *big.Int, _ uint32) types.SwapInstruction {
	return &types.ProactiveMarketMakerSwap{
		SwapParams: types.SwapParams{
			Router:       q.cfg.Router,
			TokenIn:      tokenIn,
			TokenOut:     tokenOut,
			AmountIn:     amountIn,
			MinAmountOut: minAmountOut,
		},
		ExtraData: q.cfg.ExtraData,
	}
}
