package dodo

import (
	"context"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lumafi/flasharb/dex"
	"github.com/lumafi/flasharb/types"
)

var (
	weth = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdc = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	pool = common.HexToAddress("0x75c23271661d9d143DCb617222BC4BEc783eff34")
)

type mockClient struct {
	out   []byte
	err   error
	calls int
}

func (m *mockClient) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	m.calls++
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

func testConfig() dex.Config {
	return dex.Config{
		ID:        types.DexDODO,
		Name:      "DODO",
		Router:    pool,
		FeeBps:    10,
		ExtraData: []byte{0xde, 0xad},
	}
}

func TestQuoteSellBaseDirection(t *testing.T) {
	// uint256 1_840_000_000
	out := make([]byte, 32)
	big.NewInt(1_840_000_000).FillBytes(out)

	client := &mockClient{out: out}
	q, err := NewQuoter(client, testConfig(), weth, zaptest.NewLogger(t))
	require.NoError(t, err)

	amount, err := q.Quote(context.Background(), weth, usdc, big.NewInt(1), 0)
	require.NoError(t, err)
	assert.Equal(t, "1840000000", amount.String())
}

func TestQuoteReverseDirectionUnavailable(t *testing.T) {
	client := &mockClient{}
	q, err := NewQuoter(client, testConfig(), weth, zaptest.NewLogger(t))
	require.NoError(t, err)

	// Selling the quote token has no direct query; the pool is simply
	// absent from that direction, without any chain call.
	_, err = q.Quote(context.Background(), usdc, weth, big.NewInt(1), 0)
	assert.ErrorIs(t, err, dex.ErrUnavailable)
	assert.Zero(t, client.calls)
}

func TestInstructionCarriesExtraData(t *testing.T) {
	q, err := NewQuoter(&mockClient{}, testConfig(), weth, zaptest.NewLogger(t))
	require.NoError(t, err)

	instr := q.Instruction(weth, usdc, big.NewInt(10), big.NewInt(9), 0)
	swap, ok := instr.(*types.ProactiveMarketMakerSwap)
	require.True(t, ok)
	assert.Equal(t, types.SwapProactiveMarketMaker, instr.Kind())
	assert.Equal(t, []byte{0xde, 0xad}, swap.ExtraData)
}
