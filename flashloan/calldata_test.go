package flashloan

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumafi/flasharb/types"
)

func swapParams(amountIn int64) types.SwapParams {
	return types.SwapParams{
		Router:       common.HexToAddress("0x0000000000000000000000000000000000000011"),
		TokenIn:      weth,
		TokenOut:     usdc,
		AmountIn:     big.NewInt(amountIn),
		MinAmountOut: big.NewInt(1),
	}
}

func TestBuildExecuteCalldataAllVariants(t *testing.T) {
	legs := []types.SwapInstruction{
		&types.ConstantProductSwap{SwapParams: swapParams(1), Path: []common.Address{weth, usdc}},
		&types.ConcentratedLiquiditySwap{SwapParams: swapParams(2), FeeTier: 3000},
		&types.WeightedPoolSwap{SwapParams: swapParams(3), PoolID: common.HexToHash("0x01")},
		&types.StableSwapExchange{SwapParams: swapParams(4), TokenIndexIn: 0, TokenIndexOut: 1},
		&types.ProactiveMarketMakerSwap{SwapParams: swapParams(5), ExtraData: []byte{0xde, 0xad}},
	}

	calldata, err := BuildExecuteCalldata(weth, oneEth, legs...)
	require.NoError(t, err)

	parsed, err := loadExecutorABI()
	require.NoError(t, err)

	method := parsed.Methods["executeArbitrage"]
	require.Greater(t, len(calldata), 4)
	assert.Equal(t, method.ID, calldata[:4], "selector must match executeArbitrage")

	// The packed arguments round-trip through the ABI definition.
	args, err := method.Inputs.Unpack(calldata[4:])
	require.NoError(t, err)
	require.Len(t, args, 3)
	assert.Equal(t, weth, args[0].(common.Address))
	assert.Equal(t, oneEth.String(), args[1].(*big.Int).String())
}

func TestBuildExecuteCalldataEncodesVariantExtras(t *testing.T) {
	cl := &types.ConcentratedLiquiditySwap{SwapParams: swapParams(1), FeeTier: 500}
	extra, err := encodeExtra(cl)
	require.NoError(t, err)
	require.Len(t, extra, 32)
	assert.Equal(t, big.NewInt(500), new(big.Int).SetBytes(extra))

	pmm := &types.ProactiveMarketMakerSwap{SwapParams: swapParams(1), ExtraData: []byte{0x01, 0x02}}
	extra, err = encodeExtra(pmm)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, extra, "PMM extra data passes through untouched")

	ss := &types.StableSwapExchange{SwapParams: swapParams(1), TokenIndexIn: 2, TokenIndexOut: 0}
	extra, err = encodeExtra(ss)
	require.NoError(t, err)
	require.Len(t, extra, 64)
	assert.Equal(t, big.NewInt(2), new(big.Int).SetBytes(extra[:32]))
	assert.Equal(t, big.NewInt(0).String(), new(big.Int).SetBytes(extra[32:]).String())
}
