package scanner

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lumafi/flasharb/dex"
	"github.com/lumafi/flasharb/pricing"
	"github.com/lumafi/flasharb/strategies/arbitrage"
	"github.com/lumafi/flasharb/types"
	"github.com/lumafi/flasharb/utils/metrics"
)

var (
	weth = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdc = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")

	oneEth = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

type stubQuoter struct {
	id   types.DexID
	out  *big.Int
	err  error
	asks int
}

func (q *stubQuoter) ID() types.DexID            { return q.id }
func (q *stubQuoter) Name() string               { return q.id.String() }
func (q *stubQuoter) FeeTiers() []uint32         { return nil }
func (q *stubQuoter) FeeBps(uint32) int64        { return 0 }
func (q *stubQuoter) SupportsForwardQuote() bool { return false }

func (q *stubQuoter) Quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, feeTier uint32) (*big.Int, error) {
	q.asks++
	if q.err != nil {
		return nil, q.err
	}
	return new(big.Int).Set(q.out), nil
}

func (q *stubQuoter) Instruction(tokenIn, tokenOut common.Address, amountIn, minAmountOut *big.Int, feeTier uint32) types.SwapInstruction {
	return &types.ConstantProductSwap{
		SwapParams: types.SwapParams{
			TokenIn:      tokenIn,
			TokenOut:     tokenOut,
			AmountIn:     amountIn,
			MinAmountOut: minAmountOut,
		},
		Path: []common.Address{tokenIn, tokenOut},
	}
}

type stubExecutor struct {
	executed []*types.Opportunity
	result   *types.ExecutionResult
	err      error
	notify   chan time.Time
}

func (e *stubExecutor) Execute(ctx context.Context, opp *types.Opportunity) (*types.ExecutionResult, error) {
	e.executed = append(e.executed, opp)
	if e.notify != nil {
		e.notify <- time.Now()
	}
	return e.result, e.err
}

func testPair() types.TokenPair {
	return types.TokenPair{
		Name:          "WETH/USDC",
		BaseToken:     weth,
		QuoteToken:    usdc,
		BaseDecimals:  18,
		QuoteDecimals: 6,
		AmountIn:      new(big.Int).Set(oneEth),
	}
}

func newTestScanner(t *testing.T, quoters []dex.Quoter, pairs []types.TokenPair, bounds map[string]pricing.Bounds, exec OpportunityExecutor, minProfitBps int64) *Scanner {
	t.Helper()
	logger := zaptest.NewLogger(t)
	return New(
		quoters, pairs,
		pricing.NewSanityFilter(bounds, logger),
		arbitrage.NewEvaluator(quoters, 9, logger),
		exec,
		minProfitBps,
		10*time.Millisecond, 20*time.Millisecond,
		metrics.NewNopMetrics(), logger)
}

// Two zero-fee quotes at 1008.9 and 1000 form a round trip clearing
// exactly 80 bps net of the 9 bps premium.
func spreadQuoters(srcOut int64) []dex.Quoter {
	return []dex.Quoter{
		&stubQuoter{id: types.DexUniswapV2, out: big.NewInt(srcOut)},
		&stubQuoter{id: types.DexSushiswap, out: big.NewInt(1_000_000_000)},
	}
}

func TestScanPairExecutesAboveThreshold(t *testing.T) {
	exec := &stubExecutor{result: &types.ExecutionResult{Status: types.ExecutionSuccess, RealizedProfit: big.NewInt(1)}}
	s := newTestScanner(t, spreadQuoters(1_008_900_000), []types.TokenPair{testPair()}, nil, exec, 80)

	require.NoError(t, s.scanCycle(context.Background()))
	require.Len(t, exec.executed, 1)

	opp := exec.executed[0]
	assert.Equal(t, types.DexUniswapV2, opp.SourceDex)
	assert.Equal(t, types.DexSushiswap, opp.TargetDex)
	assert.Equal(t, int64(80), opp.ProfitBps)
}

func TestScanPairSkipsBelowThreshold(t *testing.T) {
	exec := &stubExecutor{}
	// 79 bps net: one basis point short.
	s := newTestScanner(t, spreadQuoters(1_008_800_000), []types.TokenPair{testPair()}, nil, exec, 80)

	require.NoError(t, s.scanCycle(context.Background()))
	assert.Empty(t, exec.executed)
}

func TestScanPairNeedsTwoQuotes(t *testing.T) {
	quoters := []dex.Quoter{
		&stubQuoter{id: types.DexUniswapV2, out: big.NewInt(1_008_900_000)},
		&stubQuoter{id: types.DexSushiswap, err: dex.ErrUnavailable},
	}
	exec := &stubExecutor{}
	s := newTestScanner(t, quoters, []types.TokenPair{testPair()}, nil, exec, 80)

	require.NoError(t, s.scanCycle(context.Background()))
	assert.Empty(t, exec.executed, "one quote cannot form a round trip")
}

func TestScanPairDropsInsaneQuotes(t *testing.T) {
	// The source quote implies 100890 USDC per WETH, far outside the
	// configured range, so only the sane quote survives.
	quoters := []dex.Quoter{
		&stubQuoter{id: types.DexUniswapV2, out: big.NewInt(100_890_000_000)},
		&stubQuoter{id: types.DexSushiswap, out: big.NewInt(1_000_000_000)},
	}
	bounds := map[string]pricing.Bounds{
		"WETH/USDC": {Min: decimal.NewFromInt(100), Max: decimal.NewFromInt(5000)},
	}
	exec := &stubExecutor{}
	s := newTestScanner(t, quoters, []types.TokenPair{testPair()}, bounds, exec, 80)

	require.NoError(t, s.scanCycle(context.Background()))
	assert.Empty(t, exec.executed, "a filtered quote must not feed the evaluator")
}

func TestScanCycleIsolatesPairFailures(t *testing.T) {
	pairBad := testPair()
	pairBad.Name = "WBTC/WETH"

	exec := &stubExecutor{err: errors.New("rpc connection lost")}
	s := newTestScanner(t, spreadQuoters(1_008_900_000), []types.TokenPair{pairBad, testPair()}, nil, exec, 80)

	// Both pairs trip the executor error, so the whole cycle reports
	// failure and Run would back off.
	err := s.scanCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 pairs failed")
	assert.Len(t, exec.executed, 2, "the second pair is still scanned after the first fails")
}

func TestScanPairReportsExecutionSkip(t *testing.T) {
	// A nil result is the executor declining after its own re-checks;
	// the cycle carries on without error.
	exec := &stubExecutor{result: nil}
	s := newTestScanner(t, spreadQuoters(1_008_900_000), []types.TokenPair{testPair()}, nil, exec, 80)

	require.NoError(t, s.scanCycle(context.Background()))
	assert.Len(t, exec.executed, 1)
}

func TestRunBacksOffAfterFailedCycle(t *testing.T) {
	const (
		pollInterval    = 5 * time.Millisecond
		backoffInterval = 120 * time.Millisecond
	)

	// Every cycle fails at the executor, so Run must wait the backoff
	// interval between cycles instead of the poll interval, and keep
	// going rather than exit.
	exec := &stubExecutor{err: errors.New("rpc connection lost"), notify: make(chan time.Time, 8)}
	logger := zaptest.NewLogger(t)
	quoters := spreadQuoters(1_008_900_000)
	s := New(
		quoters, []types.TokenPair{testPair()},
		pricing.NewSanityFilter(nil, logger),
		arbitrage.NewEvaluator(quoters, 9, logger),
		exec,
		80,
		pollInterval, backoffInterval,
		metrics.NewNopMetrics(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	var stamps []time.Time
	for len(stamps) < 3 {
		select {
		case stamp := <-exec.notify:
			stamps = append(stamps, stamp)
		case <-time.After(2 * time.Second):
			t.Fatalf("scanner stalled after %d failed cycles", len(stamps))
		}
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scanner did not stop after cancellation")
	}

	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		assert.GreaterOrEqual(t, gap, backoffInterval,
			"cycle %d started after only %s", i, gap)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	exec := &stubExecutor{}
	s := newTestScanner(t, spreadQuoters(1_000_000_000), []types.TokenPair{testPair()}, nil, exec, 80)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scanner did not stop after cancellation")
	}
}
