// Package scanner drives the detection loop: quote every configured pair
// across every DEX, filter, evaluate, and hand profitable routes to the
// executor.
package scanner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lumafi/flasharb/dex"
	"github.com/lumafi/flasharb/pricing"
	"github.com/lumafi/flasharb/strategies/arbitrage"
	"github.com/lumafi/flasharb/types"
	"github.com/lumafi/flasharb/utils/metrics"
)

// OpportunityExecutor receives opportunities that clear the detection
// threshold. A (nil, nil) return means the opportunity was re-checked and
// skipped.
type OpportunityExecutor interface {
	Execute(ctx context.Context, opp *types.Opportunity) (*types.ExecutionResult, error)
}

// Scanner runs scan cycles over the configured pairs. Cycles are strictly
// sequential: a new cycle never starts while the previous one, including
// any execution it triggered, is still running.
type Scanner struct {
	quoters   []dex.Quoter
	pairs     []types.TokenPair
	filter    *pricing.SanityFilter
	evaluator *arbitrage.Evaluator
	executor  OpportunityExecutor

	minProfitBps    int64
	pollInterval    time.Duration
	backoffInterval time.Duration

	metrics *metrics.BotMetrics
	logger  *zap.Logger
}

// New creates a scanner. Quoters are scanned in the given order every
// cycle, which keeps evaluator tie-breaking deterministic.
func New(
	quoters []dex.Quoter,
	pairs []types.TokenPair,
	filter *pricing.SanityFilter,
	evaluator *arbitrage.Evaluator,
	opportunityExecutor OpportunityExecutor,
	minProfitBps int64,
	pollInterval, backoffInterval time.Duration,
	botMetrics *metrics.BotMetrics,
	logger *zap.Logger,
) *Scanner {
	return &Scanner{
		quoters:         quoters,
		pairs:           pairs,
		filter:          filter,
		evaluator:       evaluator,
		executor:        opportunityExecutor,
		minProfitBps:    minProfitBps,
		pollInterval:    pollInterval,
		backoffInterval: backoffInterval,
		metrics:         botMetrics,
		logger:          logger,
	}
}

// Run scans until ctx is cancelled. A cycle in which every pair failed is
// treated as an infrastructure problem and waits the backoff interval
// instead of the poll interval.
func (s *Scanner) Run(ctx context.Context) error {
	s.logger.Info("scanner started",
		zap.Int("pairs", len(s.pairs)),
		zap.Int("dexes", len(s.quoters)),
		zap.Duration("poll_interval", s.pollInterval))

	for {
		wait := s.pollInterval
		if err := s.scanCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.metrics.ScanCycleErrors.Inc()
			s.logger.Error("scan cycle failed", zap.Error(err))
			wait = s.backoffInterval
		}

		select {
		case <-ctx.Done():
			s.logger.Info("scanner stopped")
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// scanCycle scans every pair once. Pair failures are isolated: one bad
// pair never stops the rest of the cycle.
func (s *Scanner) scanCycle(ctx context.Context) error {
	failed := 0
	for _, pair := range s.pairs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := s.scanPair(ctx, pair); err != nil {
			failed++
			s.metrics.PairScanErrors.WithLabelValues(pair.Name).Inc()
			s.logger.Warn("pair scan failed",
				zap.String("pair", pair.Name),
				zap.Error(err))
		}
	}

	s.metrics.ScanCycles.Inc()
	if len(s.pairs) > 0 && failed == len(s.pairs) {
		return fmt.Errorf("all %d pairs failed to scan", failed)
	}
	return nil
}

// scanPair gathers quotes for one pair, evaluates them and executes the
// best route if it clears the profit threshold.
func (s *Scanner) scanPair(ctx context.Context, pair types.TokenPair) error {
	quotes := s.collectQuotes(ctx, pair)
	if len(quotes) < 2 {
		s.logger.Debug("not enough quotes for a round trip",
			zap.String("pair", pair.Name),
			zap.Int("quotes", len(quotes)))
		return nil
	}

	opp := s.evaluator.BestOpportunity(pair, quotes)
	if opp == nil {
		return nil
	}

	s.metrics.Opportunities.WithLabelValues(pair.Name).Inc()
	s.metrics.OpportunityBps.Observe(float64(opp.ProfitBps))

	if opp.ProfitBps < s.minProfitBps {
		s.logger.Debug("opportunity below profit threshold",
			zap.String("pair", pair.Name),
			zap.String("route", opp.Route()),
			zap.Int64("profit_bps", opp.ProfitBps),
			zap.Int64("min_profit_bps", s.minProfitBps))
		return nil
	}

	s.logger.Info("opportunity detected",
		zap.String("pair", pair.Name),
		zap.String("route", opp.Route()),
		zap.Uint64("fingerprint", opp.Fingerprint()),
		zap.String("profit", opp.Profit.String()),
		zap.Int64("profit_bps", opp.ProfitBps))

	result, err := s.executor.Execute(ctx, opp)
	if err != nil {
		return fmt.Errorf("execution of %s failed: %w", opp.Route(), err)
	}
	if result == nil {
		s.logger.Info("opportunity skipped at execution gates",
			zap.String("pair", pair.Name),
			zap.String("route", opp.Route()))
		return nil
	}

	s.logger.Info("execution finished",
		zap.String("pair", pair.Name),
		zap.String("route", opp.Route()),
		zap.String("status", result.Status.String()),
		zap.String("reason", result.Reason))
	return nil
}

// collectQuotes asks every DEX, and every configured fee tier of tiered
// DEXes, for a fresh quote. Unavailable liquidity is an absence, not an
// error; the route simply has fewer participants this cycle.
func (s *Scanner) collectQuotes(ctx context.Context, pair types.TokenPair) []*types.Quote {
	var quotes []*types.Quote

	for _, quoter := range s.quoters {
		tiers := quoter.FeeTiers()
		if len(tiers) == 0 {
			tiers = []uint32{0}
		}

		for _, tier := range tiers {
			start := time.Now()
			out, err := quoter.Quote(ctx, pair.BaseToken, pair.QuoteToken, pair.AmountIn, tier)
			s.metrics.QuoteLatency.Observe(time.Since(start).Seconds())

			if err != nil {
				s.metrics.QuotesUnavailable.WithLabelValues(quoter.Name()).Inc()
				s.logger.Debug("no quote",
					zap.String("pair", pair.Name),
					zap.String("dex", quoter.Name()),
					zap.Uint32("fee_tier", tier),
					zap.Error(err))
				continue
			}

			quote := &types.Quote{
				Dex:       quoter.ID(),
				FeeTier:   tier,
				AmountIn:  pair.AmountIn,
				AmountOut: out,
				Timestamp: start,
			}

			if !s.filter.IsValid(pair, quote) {
				s.metrics.QuotesRejected.WithLabelValues(pair.Name, quoter.Name()).Inc()
				continue
			}

			s.metrics.QuotesObtained.WithLabelValues(quoter.Name()).Inc()
			quotes = append(quotes, quote)
		}
	}

	return quotes
}
