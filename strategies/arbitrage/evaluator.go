// Package arbitrage evaluates round-trip profitability across DEX quotes
// for a single token pair.
package arbitrage

import (
	"math/big"

	"go.uber.org/zap"

	"github.com/lumafi/flasharb/dex"
	"github.com/lumafi/flasharb/types"
	mathutil "github.com/lumafi/flasharb/utils/math"
)

// Evaluator enumerates directed (source, target) DEX pairs over the valid
// quotes of one scan and selects the most profitable round trip net of
// fees and the flash loan premium.
type Evaluator struct {
	quoters    map[types.DexID]dex.Quoter
	premiumBps int64
	logger     *zap.Logger
}

// NewEvaluator creates an evaluator over the given quote connectors.
func NewEvaluator(quoters []dex.Quoter, premiumBps int64, logger *zap.Logger) *Evaluator {
	byID := make(map[types.DexID]dex.Quoter, len(quoters))
	for _, q := range quoters {
		byID[q.ID()] = q
	}

	return &Evaluator{
		quoters:    byID,
		premiumBps: premiumBps,
		logger:     logger,
	}
}

// BestOpportunity returns the best positive-profit route for the pair, or
// nil. Quotes must all be for pair.AmountIn of the base token and are
// iterated in their given order, so ties resolve to the first route seen.
// Fewer than two quotes cannot form a round trip.
func (e *Evaluator) BestOpportunity(pair types.TokenPair, quotes []*types.Quote) *types.Opportunity {
	if len(quotes) < 2 {
		return nil
	}

	amountIn := pair.AmountIn
	var best *types.Opportunity

	for i, src := range quotes {
		for j, tgt := range quotes {
			if i == j {
				continue
			}

			srcQuoter, ok := e.quoters[src.Dex]
			if !ok {
				continue
			}
			tgtQuoter, ok := e.quoters[tgt.Dex]
			if !ok {
				continue
			}

			profit := e.roundTripProfit(amountIn, src, tgt,
				srcQuoter.FeeBps(src.FeeTier), tgtQuoter.FeeBps(tgt.FeeTier))

			if profit.Sign() <= 0 {
				e.logger.Debug("route not profitable",
					zap.String("pair", pair.Name),
					zap.String("source", src.Dex.String()),
					zap.String("target", tgt.Dex.String()),
					zap.String("profit", profit.String()))
				continue
			}

			if best == nil || profit.Cmp(best.Profit) > 0 {
				best = &types.Opportunity{
					Pair:          pair,
					SourceDex:     src.Dex,
					SourceFeeTier: src.FeeTier,
					TargetDex:     tgt.Dex,
					TargetFeeTier: tgt.FeeTier,
					AmountIn:      amountIn,
					SourceQuote:   src,
					TargetQuote:   tgt,
					Profit:        profit,
					ProfitBps:     mathutil.Bps(profit, amountIn),
				}
			}
		}
	}

	return best
}

// roundTripProfit simulates base -> quote on the source DEX and quote ->
// base on the target DEX. The return leg has no independent quote; it is
// the algebraic inverse of the target's forward rate. That estimate is
// cheap and call-free, and the coordinator re-verifies it with live data
// before committing capital.
func (e *Evaluator) roundTripProfit(amountIn *big.Int, src, tgt *types.Quote, srcFeeBps, tgtFeeBps int64) *big.Int {
	// Leg 1: sell amountIn of base on the source DEX.
	amountB := mathutil.AfterFee(src.AmountOut, srcFeeBps)

	// Leg 2: convert back through the inverse of the target's base->quote
	// rate: amountB / (tgt.AmountOut / amountIn).
	back := mathutil.MulDiv(amountB, amountIn, tgt.AmountOut)
	final := mathutil.AfterFee(back, tgtFeeBps)

	premium := mathutil.ApplyBps(amountIn, e.premiumBps)

	profit := new(big.Int).Sub(final, amountIn)
	return profit.Sub(profit, premium)
}
