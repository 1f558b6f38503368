// Package pricing validates quotes against per-pair plausibility bounds.
//
// Concentrated-liquidity pools with empty or extreme ticks can return
// technically valid but economically nonsensical outputs, especially on low
// fee tiers. Admitting those quotes would manufacture false arbitrage, so
// each configured pair carries an expected range for the implied exchange
// rate.
package pricing

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lumafi/flasharb/types"
)

// Bounds is the accepted implied-rate range for a pair, expressed in quote
// token per base token. Both ends are inclusive.
type Bounds struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// SanityFilter rejects quotes whose implied rate falls outside the
// configured range. Pairs without bounds pass unchecked; closing that gap
// is part of onboarding a new pair.
type SanityFilter struct {
	bounds map[string]Bounds
	logger *zap.Logger
}

// NewSanityFilter creates a filter keyed by pair name.
func NewSanityFilter(bounds map[string]Bounds, logger *zap.Logger) *SanityFilter {
	if bounds == nil {
		bounds = map[string]Bounds{}
	}
	return &SanityFilter{
		bounds: bounds,
		logger: logger,
	}
}

// ImpliedRate converts a quote into quote-token-per-base-token terms,
// adjusting both sides for their decimal precision.
func ImpliedRate(pair types.TokenPair, quote *types.Quote) decimal.Decimal {
	amountIn := decimal.NewFromBigInt(quote.AmountIn, -int32(pair.BaseDecimals))
	if amountIn.IsZero() {
		return decimal.Zero
	}
	amountOut := decimal.NewFromBigInt(quote.AmountOut, -int32(pair.QuoteDecimals))
	return amountOut.Div(amountIn)
}

// IsValid reports whether the quote's implied rate is within the pair's
// configured range.
func (f *SanityFilter) IsValid(pair types.TokenPair, quote *types.Quote) bool {
	bounds, ok := f.bounds[pair.Name]
	if !ok {
		return true
	}

	rate := ImpliedRate(pair, quote)
	if rate.GreaterThanOrEqual(bounds.Min) && rate.LessThanOrEqual(bounds.Max) {
		return true
	}

	f.logger.Warn("quote outside sanity bounds",
		zap.String("pair", pair.Name),
		zap.String("dex", quote.Dex.String()),
		zap.Uint32("fee_tier", quote.FeeTier),
		zap.String("implied_rate", rate.String()),
		zap.String("min", bounds.Min.String()),
		zap.String("max", bounds.Max.String()))
	return false
}
