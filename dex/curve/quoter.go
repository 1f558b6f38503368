// Package curve quotes stable-swap pools via get_dy using configured token
// indices.
package curve

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
	{"name":"get_dy","type":"function","stateMutability":"view","inputs":[{"name":"i","type":"int128"},{"name":"j","type":"int128"},{"name":"dx","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]}
]`

// Quoter implements dex.Quoter for Curve-style stable-swap pools.
type Quoter struct {
	client chain.LedgerClient
	cfg    dex.Config
	abi    abi.ABI
	logger *zap.Logger
}

// NewQuoter creates a stable-swap quote connector.
func NewQuoter(client chain.LedgerClient, cfg dex.Config, logger *zap.Logger) (*Quoter, error) {
	if client == nil {
		return nil, fmt.Errorf("ledger client cannot be nil")
	}
	if len(cfg.TokenIndices) == 0 {
		return nil, fmt.Errorf("token indices must be configured")
	}

	parsedABI, err := abi.JSON(strings.NewReader(poolABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool ABI: %w", err)
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

func (q *Quoter) indices(tokenIn, tokenOut common.Address) (int64, int64, bool) {
	i, okIn := q.cfg.TokenIndices[tokenIn]
	j, okOut := q.cfg.TokenIndices[tokenOut]
	return i, j, okIn && okOut
}

// Quote simulates get_dy(i, j, dx). Tokens outside the configured index set
// are dex.ErrUnavailable.
func (q *Quoter) Quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, _ uint32) (*big.Int, error) {
	i, j, ok := q.indices(tokenIn, tokenOut)
	if !ok {
		return nil, fmt.Errorf("%w: token not in pool", dex.ErrUnavailable)
	}

	data, err := q.abi.Pack("get_dy", big.NewInt(i), big.NewInt(j), amountIn)
	if err != nil {
		return nil, fmt.Errorf("%w: pack get_dy: %v", dex.ErrUnavailable, err)
	}

	pool := q.cfg.Router
	out, err := q.client.CallContract(ctx, ethereum.CallMsg{To: &pool, Data: data})
	if err != nil {
		q.logger.Debug("get_dy reverted",
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
	i, j, _ := q.indices(tokenIn, tokenOut)
	return &types.StableSwapExchange{
		SwapParams: types.SwapParams{
			Router:       q.cfg.Router,
			TokenIn:      tokenIn,
			TokenOut:     tokenOut,
			AmountIn:     amountIn,
			MinAmountOut: minAmountOut,
		},
		TokenIndexIn:  i,
		TokenIndexOut: j,
	}
}
