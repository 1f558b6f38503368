package arbitrage

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lumafi/flasharb/dex"
	"github.com/lumafi/flasharb/types"
)

// stubQuoter satisfies dex.Quoter; the evaluator only consults its fee.
type stubQuoter struct {
	id     types.DexID
	feeBps int64
}

func (s *stubQuoter) ID() types.DexID            { return s.id }
func (s *stubQuoter) Name() string               { return s.id.String() }
func (s *stubQuoter) FeeTiers() []uint32         { return nil }
func (s *stubQuoter) FeeBps(uint32) int64        { return s.feeBps }
func (s *stubQuoter) SupportsForwardQuote() bool { return false }

func (s *stubQuoter) Quote(context.Context, common.Address, common.Address, *big.Int, uint32) (*big.Int, error) {
	return nil, dex.ErrUnavailable
}

func (s *stubQuoter) Instruction(tokenIn, tokenOut common.Address, amountIn, minAmountOut *big.Int, _ uint32) types.SwapInstruction {
	return &types.ConstantProductSwap{
		SwapParams: types.SwapParams{TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: amountIn, MinAmountOut: minAmountOut},
		Path:       []common.Address{tokenIn, tokenOut},
	}
}

var (
	weth   = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdc   = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	oneEth = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

func testEvaluator(t *testing.T, premiumBps int64) *Evaluator {
	t.Helper()
	return NewEvaluator([]dex.Quoter{
		&stubQuoter{id: types.DexUniswapV2, feeBps: 30},
		&stubQuoter{id: types.DexSushiswap, feeBps: 30},
		&stubQuoter{id: types.DexCurve, feeBps: 4},
	}, premiumBps, zaptest.NewLogger(t))
}

func wethUSDCPair() types.TokenPair {
	return types.TokenPair{
		Name:          "WETH/USDC",
		BaseToken:     weth,
		QuoteToken:    usdc,
		BaseDecimals:  18,
		QuoteDecimals: 6,
		AmountIn:      new(big.Int).Set(oneEth),
	}
}

func usdcQuote(id types.DexID, usdOut int64) *types.Quote {
	return &types.Quote{
		Dex:       id,
		AmountIn:  new(big.Int).Set(oneEth),
		AmountOut: new(big.Int).Mul(big.NewInt(usdOut), big.NewInt(1_000_000)),
		Timestamp: time.Now(),
	}
}

func TestBestOpportunityNeedsTwoQuotes(t *testing.T) {
	e := testEvaluator(t, 9)
	pair := wethUSDCPair()

	assert.Nil(t, e.BestOpportunity(pair, nil))
	assert.Nil(t, e.BestOpportunity(pair, []*types.Quote{usdcQuote(types.DexUniswapV2, 1850)}))
}

// Fixture computed by hand for amountIn = 1e18, f1 = f2 = 30 bps, p = 9 bps:
//
//	amountB = 1850e6 * 0.997                    = 1_844_450_000
//	Y       = amountB * 1e18 / 1800e6 (floor)   = 1_024_694_444_444_444_444
//	final   = Y * 0.997 (floor)                 = 1_021_620_361_111_111_110
//	profit  = final - 1e18 - 9e14               =    20_720_361_111_111_110
func TestProfitComputationFixture(t *testing.T) {
	e := testEvaluator(t, 9)
	pair := wethUSDCPair()

	quotes := []*types.Quote{
		usdcQuote(types.DexUniswapV2, 1850), // source: better rate selling base
		usdcQuote(types.DexSushiswap, 1800), // target: cheaper base on the way back
	}

	opp := e.BestOpportunity(pair, quotes)
	require.NotNil(t, opp)

	assert.Equal(t, types.DexUniswapV2, opp.SourceDex)
	assert.Equal(t, types.DexSushiswap, opp.TargetDex)
	assert.Equal(t, "20720361111111110", opp.Profit.String())
	assert.Equal(t, int64(207), opp.ProfitBps)
}

func TestBestOpportunitySelectsMaxProfit(t *testing.T) {
	e := testEvaluator(t, 9)
	pair := wethUSDCPair()

	quotes := []*types.Quote{
		usdcQuote(types.DexUniswapV2, 1800),
		usdcQuote(types.DexSushiswap, 1830),
		usdcQuote(types.DexCurve, 1870),
	}

	opp := e.BestOpportunity(pair, quotes)
	require.NotNil(t, opp)

	// Widest spread wins: sell high on curve, buy back cheap on uniswap.
	assert.Equal(t, types.DexCurve, opp.SourceDex)
	assert.Equal(t, types.DexUniswapV2, opp.TargetDex)

	// Max-selection: no other directed route beats the chosen one.
	for i, src := range quotes {
		for j, tgt := range quotes {
			if i == j {
				continue
			}
			other := e.BestOpportunity(pair, []*types.Quote{src, tgt})
			if other != nil {
				assert.True(t, opp.Profit.Cmp(other.Profit) >= 0,
					"route %s->%s beats selected best", src.Dex, tgt.Dex)
			}
		}
	}
}

func TestBestOpportunityIgnoresUnprofitableRoutes(t *testing.T) {
	e := testEvaluator(t, 9)
	pair := wethUSDCPair()

	// Identical rates: every round trip loses the fees plus premium.
	quotes := []*types.Quote{
		usdcQuote(types.DexUniswapV2, 1800),
		usdcQuote(types.DexSushiswap, 1800),
	}

	assert.Nil(t, e.BestOpportunity(pair, quotes))
}

func TestBestOpportunityTieBreaksFirstSeen(t *testing.T) {
	// With zero fees and premium, route profit depends only on the ratio of
	// the two quotes' outputs. Two DEXes quoting 2000 against one quoting
	// 1000 produce two routes with identical maximal profit; the route seen
	// first must win.
	e := NewEvaluator([]dex.Quoter{
		&stubQuoter{id: types.DexUniswapV2, feeBps: 0},
		&stubQuoter{id: types.DexSushiswap, feeBps: 0},
		&stubQuoter{id: types.DexCurve, feeBps: 0},
	}, 0, zaptest.NewLogger(t))
	pair := wethUSDCPair()

	quotes := []*types.Quote{
		usdcQuote(types.DexUniswapV2, 2000),
		usdcQuote(types.DexSushiswap, 1000),
		usdcQuote(types.DexCurve, 2000),
	}

	opp := e.BestOpportunity(pair, quotes)
	require.NotNil(t, opp)
	assert.Equal(t, types.DexUniswapV2, opp.SourceDex)
	assert.Equal(t, types.DexSushiswap, opp.TargetDex)
	assert.Equal(t, oneEth.String(), opp.Profit.String())
}
