// Package uniswapv2 quotes constant-product pools through the V2 router.
// Sushiswap shares the router interface and is served by the same connector
// with a different Config.
package uniswapv2

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

const routerABIJson = `[
	{"name":"getAmountsOut","type":"function","stateMutability":"view","inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],"outputs":[{"name":"amounts","type":"uint256[]"}]}
]`

// Quoter implements dex.Quoter for V2-style routers.
type Quoter struct {
	client chain.LedgerClient
	cfg    dex.Config
	abi    abi.ABI
	logger *zap.Logger
}

// NewQuoter creates a constant-product quote connector.
func NewQuoter(client chain.LedgerClient, cfg dex.Config, logger *zap.Logger) (*Quoter, error) {
	if client == nil {
		return nil, fmt.Errorf("ledger client cannot be nil")
	}

	parsedABI, err := abi.JSON(strings.NewReader(routerABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse router ABI: %w", err)
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
func (q *Quoter) FeeTiers() []uint32 { return nil }

func (q *Quoter) FeeBps(uint32) int64 { return q.cfg.FeeBps }

func (q *Quoter) SupportsForwardQuote() bool { return false }

// Quote asks the router for the two-hop path output. Any failure, including
// a missing pair, is reported as dex.ErrUnavailable.
func (q *Quoter) Quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, _ uint32) (*big.Int, error) {
	data, err := q.abi.Pack("getAmountsOut", amountIn, []common.Address{tokenIn, tokenOut})
	if err != nil {
		return nil, fmt.Errorf("%w: pack getAmountsOut: %v", dex.ErrUnavailable, err)
	}

	router := q.cfg.Router
	out, err := q.client.CallContract(ctx, ethereum.CallMsg{To: &router, Data: data})
	if err != nil {
		q.logger.Debug("getAmountsOut reverted",
			zap.String("dex", q.cfg.Name),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", dex.ErrUnavailable, err)
	}

	values, err := q.abi.Unpack("getAmountsOut", out)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack getAmountsOut: %v", dex.ErrUnavailable, err)
	}

	amounts, ok := values[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		return nil, fmt.Errorf("%w: malformed getAmountsOut result", dex.ErrUnavailable)
	}

	amountOut := amounts[len(amounts)-1]
	if amountOut.Sign() <= 0 {
		return nil, fmt.Errorf("%w: zero output", dex.ErrUnavailable)
	}

	return amountOut, nil
}

func (q *Quoter) Instruction(tokenIn, tokenOut common.Address, amountIn, minAmountOut *big.Int, _ uint32) types.SwapInstruction {
	return &types.ConstantProductSwap{
		SwapParams: types.SwapParams{
			Router:       q.cfg.Router,
			TokenIn:      tokenIn,
			TokenOut:     tokenOut,
			AmountIn:     amountIn,
			MinAmountOut: minAmountOut,
		},
		Path: []common.Address{tokenIn, tokenOut},
	}
}
