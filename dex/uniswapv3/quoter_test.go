package uniswapv3

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lumafi/flasharb/dex"
	"github.com/lumafi/flasharb/types"
)

var (
	weth          = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdc          = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	quoterAddress = common.HexToAddress("0xb27308f9F90D607463bb33eA1BeBb41C27CE5AB6")
)

type mockClient struct {
	out     []byte
	err     error
	lastMsg ethereum.CallMsg
}

func (m *mockClient) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	m.lastMsg = msg
	return m.out, m.err
}

func (m *mockClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 0, nil
}
func (m *mockClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) { return nil, nil }
func (m *mockClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 0, nil
}
func (m *mockClient) SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error {
	return nil
}
func (m *mockClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	return nil, nil
}
func (m *mockClient) BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	return nil, nil
}
func (m *mockClient) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return nil, nil
}
func (m *mockClient) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	return 18, nil
}

func packAmountOut(t *testing.T, amount int64) []byte {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(quoterABIJson))
	require.NoError(t, err)

	out, err := parsed.Methods["quoteExactInputSingle"].Outputs.Pack(big.NewInt(amount))
	require.NoError(t, err)
	return out
}

func testConfig() dex.Config {
	return dex.Config{
		ID:       types.DexUniswapV3,
		Name:     "UniswapV3",
		Router:   common.HexToAddress("0xE592427A0AEce92De3Edee1F18E0157C05861564"),
		Quoter:   quoterAddress,
		FeeTiers: []uint32{500, 3000, 10000},
	}
}

func TestNewQuoterRequiresFeeTiers(t *testing.T) {
	cfg := testConfig()
	cfg.FeeTiers = nil
	_, err := NewQuoter(&mockClient{}, cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fee tier")
}

func TestQuoteTargetsQuoterContract(t *testing.T) {
	client := &mockClient{out: packAmountOut(t, 1_846_000_000)}
	q, err := NewQuoter(client, testConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	out, err := q.Quote(context.Background(), weth, usdc, big.NewInt(1), 3000)
	require.NoError(t, err)
	assert.Equal(t, "1846000000", out.String())

	// The simulation goes to the quoter contract, never the router.
	assert.Equal(t, quoterAddress, *client.lastMsg.To)
}

func TestQuoteTierRevertIsUnavailable(t *testing.T) {
	client := &mockClient{err: errors.New("execution reverted: SPL")}
	q, err := NewQuoter(client, testConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = q.Quote(context.Background(), weth, usdc, big.NewInt(1), 10000)
	assert.ErrorIs(t, err, dex.ErrUnavailable)
}

func TestFeeBpsDerivesFromTier(t *testing.T) {
	q, err := NewQuoter(&mockClient{}, testConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, int64(5), q.FeeBps(500))
	assert.Equal(t, int64(30), q.FeeBps(3000))
	assert.Equal(t, int64(100), q.FeeBps(10000))
	assert.Equal(t, []uint32{500, 3000, 10000}, q.FeeTiers())
	assert.True(t, q.SupportsForwardQuote())
}

func TestInstructionCarriesFeeTier(t *testing.T) {
	q, err := NewQuoter(&mockClient{}, testConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	instr := q.Instruction(weth, usdc, big.NewInt(10), big.NewInt(9), 500)
	swap, ok := instr.(*types.ConcentratedLiquiditySwap)
	require.True(t, ok)
	assert.Equal(t, types.SwapConcentratedLiquidity, instr.Kind())
	assert.Equal(t, uint32(500), swap.FeeTier)
}
