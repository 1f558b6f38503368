package flashloan

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/lumafi/flasharb/types"
)

// executorABIJson is the on-chain arbitrage executor entrypoint. Each leg
// carries its variant tag plus opaque variant-specific extra data.
const executorABIJson = `[
	{"name":"executeArbitrage","type":"function","stateMutability":"nonpayable","inputs":[
		{"name":"asset","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"legs","type":"tuple[]","components":[
			{"name":"kind","type":"uint8"},
			{"name":"router","type":"address"},
			{"name":"tokenIn","type":"address"},
			{"name":"tokenOut","type":"address"},
			{"name":"amountIn","type":"uint256"},
			{"name":"minAmountOut","type":"uint256"},
			{"name":"extra","type":"bytes"}
		]}
	],"outputs":[]}
]`

type swapLeg struct {
	Kind         uint8
	Router       common.Address
	TokenIn      common.Address
	TokenOut     common.Address
	AmountIn     *big.Int
	MinAmountOut *big.Int
	Extra        []byte
}

var (
	executorABI     abi.ABI
	executorABIOnce sync.Once
	executorABIErr  error
)

func loadExecutorABI() (abi.ABI, error) {
	executorABIOnce.Do(func() {
		executorABI, executorABIErr = abi.JSON(strings.NewReader(executorABIJson))
	})
	return executorABI, executorABIErr
}

// BuildExecuteCalldata packs the executeArbitrage call for the given legs.
func BuildExecuteCalldata(asset common.Address, amount *big.Int, instructions ...types.SwapInstruction) ([]byte, error) {
	parsed, err := loadExecutorABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse executor ABI: %w", err)
	}

	legs := make([]swapLeg, 0, len(instructions))
	for _, instr := range instructions {
		extra, err := encodeExtra(instr)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s leg: %w", instr.Kind(), err)
		}

		params := instr.Params()
		legs = append(legs, swapLeg{
			Kind:         uint8(instr.Kind()),
			Router:       params.Router,
			TokenIn:      params.TokenIn,
			TokenOut:     params.TokenOut,
			AmountIn:     params.AmountIn,
			MinAmountOut: params.MinAmountOut,
			Extra:        extra,
		})
	}

	return parsed.Pack("executeArbitrage", asset, amount, legs)
}

// encodeExtra serializes the variant-specific fields each protocol's
// on-chain executor destructures.
func encodeExtra(instr types.SwapInstruction) ([]byte, error) {
	switch swap := instr.(type) {
	case *types.ConstantProductSwap:
		pathType, err := abi.NewType("address[]", "", nil)
		if err != nil {
			return nil, err
		}
		return abi.Arguments{{Type: pathType}}.Pack(swap.Path)

	case *types.ConcentratedLiquiditySwap:
		feeType, err := abi.NewType("uint24", "", nil)
		if err != nil {
			return nil, err
		}
		return abi.Arguments{{Type: feeType}}.Pack(big.NewInt(int64(swap.FeeTier)))

	case *types.WeightedPoolSwap:
		poolType, err := abi.NewType("bytes32", "", nil)
		if err != nil {
			return nil, err
		}
		return abi.Arguments{{Type: poolType}}.Pack([32]byte(swap.PoolID))

	case *types.StableSwapExchange:
		indexType, err := abi.NewType("int128", "", nil)
		if err != nil {
			return nil, err
		}
		return abi.Arguments{{Type: indexType}, {Type: indexType}}.Pack(
			big.NewInt(swap.TokenIndexIn), big.NewInt(swap.TokenIndexOut))

	case *types.ProactiveMarketMakerSwap:
		return swap.ExtraData, nil

	default:
		return nil, fmt.Errorf("unsupported swap variant %T", instr)
	}
}
