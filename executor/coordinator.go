// Package executor turns detected opportunities into on-chain executions.
//
// Detection-time numbers are never trusted at execution time: every
// opportunity is re-quoted against live state, protected with slippage
// minimums, and gated on the flash loan repayment before any capital moves.
package executor

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/lumafi/flasharb/chain"
	"github.com/lumafi/flasharb/dex"
	"github.com/lumafi/flasharb/flashloan"
	"github.com/lumafi/flasharb/gas"
	"github.com/lumafi/flasharb/types"
	mathutil "github.com/lumafi/flasharb/utils/math"
	"github.com/lumafi/flasharb/utils/metrics"
)

const (
	receiptPollInterval = 2 * time.Second
	receiptWaitTimeout  = 3 * time.Minute

	// leg2InputRatioBps discounts leg 1's slippage minimum when sizing
	// leg 2's input, leaving headroom for a fill between the minimum and
	// the re-quoted amount.
	leg2InputRatioBps = 9950
)

// maxApproval is the unlimited ERC-20 allowance granted to the executor
// contract once per token.
var maxApproval = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Coordinator owns the execution path. At most one execution is in flight
// at a time; the signing key's nonce sequence cannot tolerate more.
type Coordinator struct {
	mu sync.Mutex

	client   chain.LedgerClient
	signer   chain.Signer
	quoters  map[types.DexID]dex.Quoter
	gas      *gas.Estimator
	executor common.Address

	minProfitBps int64
	slippageBps  int64
	premiumBps   int64

	metrics *metrics.BotMetrics
	logger  *zap.Logger
}

// NewCoordinator creates the execution coordinator. executor is the
// deployed arbitrage executor contract.
func NewCoordinator(
	client chain.LedgerClient,
	signer chain.Signer,
	quoters []dex.Quoter,
	estimator *gas.Estimator,
	executor common.Address,
	minProfitBps, slippageBps, premiumBps int64,
	botMetrics *metrics.BotMetrics,
	logger *zap.Logger,
) *Coordinator {
	byID := make(map[types.DexID]dex.Quoter, len(quoters))
	for _, q := range quoters {
		byID[q.ID()] = q
	}

	return &Coordinator{
		client:       client,
		signer:       signer,
		quoters:      byID,
		gas:          estimator,
		executor:     executor,
		minProfitBps: minProfitBps,
		slippageBps:  slippageBps,
		premiumBps:   premiumBps,
		metrics:      botMetrics,
		logger:       logger,
	}
}

// Execute re-validates opportunity against live state and, if it still
// clears every gate, submits the atomic flash loan execution.
//
// A (nil, nil) return means the opportunity no longer clears the gates:
// that is a reported outcome, not a failure. A non-nil result carries the
// on-chain outcome, including reverts and submission failures.
func (c *Coordinator) Execute(ctx context.Context, opp *types.Opportunity) (*types.ExecutionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pair := opp.Pair
	amountIn := opp.AmountIn

	srcQuoter, ok := c.quoters[opp.SourceDex]
	if !ok {
		return nil, fmt.Errorf("no quoter for source dex %s", opp.SourceDex)
	}
	tgtQuoter, ok := c.quoters[opp.TargetDex]
	if !ok {
		return nil, fmt.Errorf("no quoter for target dex %s", opp.TargetDex)
	}

	// Leg 1 is re-quoted live; the detection-time figure may already be
	// stale by one or more blocks.
	liveOut1, err := srcQuoter.Quote(ctx, pair.BaseToken, pair.QuoteToken, amountIn, opp.SourceFeeTier)
	if err != nil {
		return nil, fmt.Errorf("leg 1 re-quote on %s failed: %w", opp.SourceDex, err)
	}

	minOut1 := mathutil.AfterFee(liveOut1, c.slippageBps)
	leg2In := mathutil.ApplyBps(minOut1, leg2InputRatioBps)

	expectedOut2, err := c.quoteReturnLeg(ctx, tgtQuoter, pair, opp, leg2In)
	if err != nil {
		return nil, fmt.Errorf("leg 2 estimate on %s failed: %w", opp.TargetDex, err)
	}
	minOut2 := mathutil.AfterFee(expectedOut2, c.slippageBps)

	// Repayment gate: even the worst acceptable fill must cover principal
	// plus premium, or the on-chain sequence would only ever revert.
	owed := flashloan.MinRepayment(amountIn, c.premiumBps)
	if minOut2.Cmp(owed) <= 0 {
		c.logger.Info("skipping execution, repayment not covered at slippage floor",
			zap.String("pair", pair.Name),
			zap.String("route", opp.Route()),
			zap.String("min_out2", minOut2.String()),
			zap.String("owed", owed.String()))
		return nil, nil
	}

	expectedProfit := new(big.Int).Sub(expectedOut2, owed)
	expectedBps := mathutil.Bps(expectedProfit, amountIn)
	if expectedBps < c.minProfitBps {
		c.logger.Info("skipping execution, live profit below threshold",
			zap.String("pair", pair.Name),
			zap.String("route", opp.Route()),
			zap.Int64("live_profit_bps", expectedBps),
			zap.Int64("min_profit_bps", c.minProfitBps))
		return nil, nil
	}

	if err := c.ensureApproval(ctx, pair.BaseToken, amountIn); err != nil {
		return nil, fmt.Errorf("approval for %s failed: %w", pair.BaseToken.Hex(), err)
	}

	leg1 := srcQuoter.Instruction(pair.BaseToken, pair.QuoteToken, amountIn, minOut1, opp.SourceFeeTier)
	leg2 := tgtQuoter.Instruction(pair.QuoteToken, pair.BaseToken, leg2In, minOut2, opp.TargetFeeTier)

	calldata, err := flashloan.BuildExecuteCalldata(pair.BaseToken, amountIn, leg1, leg2)
	if err != nil {
		return nil, fmt.Errorf("failed to build execution calldata: %w", err)
	}

	preBalance, err := c.client.BalanceOf(ctx, pair.BaseToken, c.signer.Address())
	if err != nil {
		return nil, fmt.Errorf("pre-execution balance read failed: %w", err)
	}

	msg := ethereum.CallMsg{
		From: c.signer.Address(),
		To:   &c.executor,
		Data: calldata,
	}

	estimate, err := c.gas.EstimateExecution(ctx, msg)
	if err != nil {
		c.logger.Warn("live gas estimation failed, retrying with fallback ceiling",
			zap.String("pair", pair.Name),
			zap.Error(err))
		estimate, err = c.gas.FallbackEstimate(ctx)
		if err != nil {
			return c.finish(opp, &types.ExecutionResult{
				Status:         types.ExecutionSubmissionFailed,
				ExpectedProfit: expectedProfit,
				Reason:         fmt.Sprintf("gas estimation failed: %v", err),
			}, time.Now()), nil
		}
	}

	// The execution only makes sense if the expected profit survives the
	// gas bill. Gas is paid in the native token; comparing it against a
	// base-token profit is only meaningful when the base token is the
	// wrapped native token, which is the configuration this strategy runs.
	if expectedProfit.Cmp(estimate.Cost) <= 0 {
		c.logger.Info("skipping execution, gas cost exceeds expected profit",
			zap.String("pair", pair.Name),
			zap.String("expected_profit", expectedProfit.String()),
			zap.String("gas_cost", estimate.Cost.String()))
		return nil, nil
	}

	start := time.Now()

	nonce, err := c.client.PendingNonceAt(ctx, c.signer.Address())
	if err != nil {
		return c.finish(opp, &types.ExecutionResult{
			Status:         types.ExecutionSubmissionFailed,
			ExpectedProfit: expectedProfit,
			Reason:         fmt.Sprintf("nonce query failed: %v", err),
		}, start), nil
	}

	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &c.executor,
		Gas:      estimate.GasLimit,
		GasPrice: estimate.GasPrice,
		Data:     calldata,
	})

	txHash, err := c.signer.SignAndSend(ctx, tx)
	if err != nil {
		return c.finish(opp, &types.ExecutionResult{
			Status:         types.ExecutionSubmissionFailed,
			ExpectedProfit: expectedProfit,
			Reason:         fmt.Sprintf("submission failed: %v", err),
		}, start), nil
	}

	c.logger.Info("execution submitted",
		zap.String("pair", pair.Name),
		zap.String("route", opp.Route()),
		zap.Uint64("fingerprint", opp.Fingerprint()),
		zap.String("tx", txHash.Hex()),
		zap.Uint64("gas_limit", estimate.GasLimit),
		zap.Bool("fallback_gas", estimate.Fallback))

	receipt, err := c.waitMined(ctx, txHash)
	if err != nil {
		return c.finish(opp, &types.ExecutionResult{
			Status:         types.ExecutionSubmissionFailed,
			ExpectedProfit: expectedProfit,
			Reason:         fmt.Sprintf("confirmation failed: %v", err),
			TxHash:         txHash,
		}, start), nil
	}

	if receipt.Status == gethtypes.ReceiptStatusFailed {
		return c.finish(opp, &types.ExecutionResult{
			Status:         types.ExecutionReverted,
			ExpectedProfit: expectedProfit,
			Reason:         c.revertReason(ctx, msg),
			GasUsed:        receipt.GasUsed,
			BlockNumber:    receipt.BlockNumber.Uint64(),
			TxHash:         txHash,
		}, start), nil
	}

	// Reconcile: the realized figure is the balance delta, not the quote
	// arithmetic. The two routinely diverge.
	postBalance, err := c.client.BalanceOf(ctx, pair.BaseToken, c.signer.Address())
	realized := new(big.Int)
	if err != nil {
		c.logger.Warn("post-execution balance read failed", zap.Error(err))
	} else {
		realized.Sub(postBalance, preBalance)
	}

	result := c.finish(opp, &types.ExecutionResult{
		Status:         types.ExecutionSuccess,
		ExpectedProfit: expectedProfit,
		RealizedProfit: realized,
		GasUsed:        receipt.GasUsed,
		BlockNumber:    receipt.BlockNumber.Uint64(),
		TxHash:         txHash,
	}, start)

	c.logger.Info("execution confirmed",
		zap.String("pair", pair.Name),
		zap.String("route", opp.Route()),
		zap.String("expected_profit", expectedProfit.String()),
		zap.String("realized_profit", realized.String()),
		zap.Uint64("gas_used", receipt.GasUsed),
		zap.Uint64("block", receipt.BlockNumber.Uint64()))

	return result, nil
}

// quoteReturnLeg estimates leg 2's output. Connectors that can quote the
// reverse direction directly are asked live; the rest fall back to the
// algebraic inverse of the target's detection-time forward rate.
func (c *Coordinator) quoteReturnLeg(ctx context.Context, tgtQuoter dex.Quoter, pair types.TokenPair, opp *types.Opportunity, leg2In *big.Int) (*big.Int, error) {
	if tgtQuoter.SupportsForwardQuote() {
		return tgtQuoter.Quote(ctx, pair.QuoteToken, pair.BaseToken, leg2In, opp.TargetFeeTier)
	}

	inverse := mathutil.MulDiv(leg2In, opp.AmountIn, opp.TargetQuote.AmountOut)
	return mathutil.AfterFee(inverse, tgtQuoter.FeeBps(opp.TargetFeeTier)), nil
}

// ensureApproval grants the executor contract an unlimited allowance on
// token the first time it is needed.
func (c *Coordinator) ensureApproval(ctx context.Context, token common.Address, required *big.Int) error {
	allowance, err := c.client.Allowance(ctx, token, c.signer.Address(), c.executor)
	if err != nil {
		return err
	}
	if allowance.Cmp(required) >= 0 {
		return nil
	}

	calldata, err := chain.PackApprove(c.executor, maxApproval)
	if err != nil {
		return err
	}

	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return err
	}
	nonce, err := c.client.PendingNonceAt(ctx, c.signer.Address())
	if err != nil {
		return err
	}

	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &token,
		Gas:      60_000,
		GasPrice: gasPrice,
		Data:     calldata,
	})

	txHash, err := c.signer.SignAndSend(ctx, tx)
	if err != nil {
		return err
	}

	c.logger.Info("approval submitted",
		zap.String("token", token.Hex()),
		zap.String("tx", txHash.Hex()))

	receipt, err := c.waitMined(ctx, txHash)
	if err != nil {
		return err
	}
	if receipt.Status == gethtypes.ReceiptStatusFailed {
		return fmt.Errorf("approval transaction reverted: %s", txHash.Hex())
	}
	return nil
}

// waitMined polls for the transaction receipt until it appears or the
// wait budget runs out.
func (c *Coordinator) waitMined(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, receiptWaitTimeout)
	defer cancel()

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.client.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("transaction %s not mined: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// revertReason replays the failed call as a simulation; the node's error
// string carries the revert reason when one was encoded.
func (c *Coordinator) revertReason(ctx context.Context, msg ethereum.CallMsg) string {
	if _, err := c.client.CallContract(ctx, msg); err != nil {
		return err.Error()
	}
	return "execution reverted"
}

// finish records metrics for a completed attempt and returns the result.
func (c *Coordinator) finish(opp *types.Opportunity, result *types.ExecutionResult, start time.Time) *types.ExecutionResult {
	c.metrics.Executions.WithLabelValues(result.Status.String()).Inc()
	c.metrics.ExecutionLatency.Observe(time.Since(start).Seconds())
	c.metrics.UpdateExecutionSuccessRate(
		types.ExecutionSuccess.String(),
		types.ExecutionReverted.String(),
		types.ExecutionSubmissionFailed.String())

	if result.Status == types.ExecutionSuccess {
		principal, _ := new(big.Float).SetInt(opp.AmountIn).Float64()
		premium, _ := new(big.Float).SetInt(flashloan.Premium(opp.AmountIn, c.premiumBps)).Float64()
		c.metrics.BorrowedVolume.Add(principal)
		c.metrics.PremiumPaid.Add(premium)

		if result.RealizedProfit != nil {
			realized, _ := new(big.Float).SetInt(result.RealizedProfit).Float64()
			c.metrics.RealizedProfit.Set(realized)
		}
	}

	return result
}
