// Package balancer quotes weighted pools by simulating queryBatchSwap on
// the vault.
package balancer

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

const vaultABIJson = `[
	{"name":"queryBatchSwap","type":"function","stateMutability":"nonpayable","inputs":[
		{"name":"kind","type":"uint8"},
		{"name":"swaps","type":"tuple[]","components":[
			{"name":"poolId","type":"bytes32"},
			{"name":"assetInIndex","type":"uint256"},
			{"name":"assetOutIndex","type":"uint256"},
			{"name":"amount","type":"uint256"},
			{"name":"userData","type":"bytes"}
		]},
		{"name":"assets","type":"address[]"},
		{"name":"funds","type":"tuple","components":[
			{"name":"sender","type":"address"},
			{"name":"fromInternalBalance","type":"bool"},
			{"name":"recipient","type":"address"},
			{"name":"toInternalBalance","type":"bool"}
		]}
	],"outputs":[{"name":"assetDeltas","type":"int256[]"}]}
]`

// swapKindGivenIn is the vault's GIVEN_IN enum value.
const swapKindGivenIn = 0

type batchSwapStep struct {
	PoolId        [32]byte
	AssetInIndex  *big.Int
	AssetOutIndex *big.Int
	Amount        *big.Int
	UserData      []byte
}

type fundManagement struct {
	Sender              common.Address
	FromInternalBalance bool
	Recipient           common.Address
	ToInternalBalance   bool
}

// Quoter implements dex.Quoter for Balancer-style weighted pools.
type Quoter struct {
	client chain.LedgerClient
	cfg    dex.Config
	abi    abi.ABI
	logger *zap.Logger
}

// NewQuoter creates a weighted-pool quote connector.
func NewQuoter(client chain.LedgerClient, cfg dex.Config, logger *zap.Logger) (*Quoter, error) {
	if client == nil {
		return nil, fmt.Errorf("ledger client cannot be nil")
	}
	if cfg.PoolID == (common.Hash{}) {
		return nil, fmt.Errorf("pool id must be configured")
	}

	parsedABI, err := abi.JSON(strings.NewReader(vaultABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse vault ABI: %w", err)
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

// Quote simulates a single-step GIVEN_IN batch swap through the configured
// pool. The vault reports deltas from its own perspective; the asset-out
// delta is negative for tokens leaving it.
func (q *Quoter) Quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, _ uint32) (*big.Int, error) {
	steps := []batchSwapStep{{
		PoolId:        [32]byte(q.cfg.PoolID),
		AssetInIndex:  big.NewInt(0),
		AssetOutIndex: big.NewInt(1),
		Amount:        amountIn,
		UserData:      []byte{},
	}}
	funds := fundManagement{}

	data, err := q.abi.Pack("queryBatchSwap",
		uint8(swapKindGivenIn),
		steps,
		[]common.Address{tokenIn, tokenOut},
		funds,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: pack queryBatchSwap: %v", dex.ErrUnavailable, err)
	}

	vault := q.cfg.Router
	out, err := q.client.CallContract(ctx, ethereum.CallMsg{To: &vault, Data: data})
	if err != nil {
		q.logger.Debug("queryBatchSwap reverted",
			zap.String("dex", q.cfg.Name),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", dex.ErrUnavailable, err)
	}

	values, err := q.abi.Unpack("queryBatchSwap", out)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack queryBatchSwap: %v", dex.ErrUnavailable, err)
	}

	deltas, ok := values[0].([]*big.Int)
	if !ok || len(deltas) < 2 {
		return nil, fmt.Errorf("%w: malformed queryBatchSwap result", dex.ErrUnavailable)
	}

	amountOut := new(big.Int).Neg(deltas[1])
	if amountOut.Sign() <= 0 {
		return nil, fmt.Errorf("%w: zero output", dex.ErrUnavailable)
	}

	return amountOut, nil
}

func (q *Quoter) Instruction(tokenIn, tokenOut common.Address, amountIn, minAmountOut *big.Int, _ uint32) types.SwapInstruction {
	return &types.WeightedPoolSwap{
		SwapParams: types.SwapParams{
			Router:       q.cfg.Router,
			TokenIn:      tokenIn,
			TokenOut:     tokenOut,
			AmountIn:     amountIn,
			MinAmountOut: minAmountOut,
		},
		PoolID: q.cfg.PoolID,
	}
}
