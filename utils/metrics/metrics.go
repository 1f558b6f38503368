package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// BotMetrics is the metric surface for the arbitrage bot.
type BotMetrics struct {
	ScanCycles           prometheus.Counter
	ScanCycleErrors      prometheus.Counter
	PairScanErrors       *prometheus.CounterVec
	QuotesObtained       *prometheus.CounterVec
	QuotesUnavailable    *prometheus.CounterVec
	QuotesRejected       *prometheus.CounterVec
	QuoteLatency         prometheus.Histogram
	Opportunities        *prometheus.CounterVec
	OpportunityBps       prometheus.Histogram
	Executions           *prometheus.CounterVec
	ExecutionSuccessRate prometheus.Gauge
	ExecutionLatency     prometheus.Histogram
	BorrowedVolume       prometheus.Counter
	PremiumPaid          prometheus.Counter
	RealizedProfit       prometheus.Gauge
}

// NewBotMetrics registers and returns the bot metric set under namespace.
func NewBotMetrics(namespace string, reg prometheus.Registerer) *BotMetrics {
	factory := promauto.With(reg)

	return &BotMetrics{
		ScanCycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_cycles_total",
			Help:      "Total number of completed scan cycles",
		}),
		ScanCycleErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_cycle_errors_total",
			Help:      "Total number of scan cycles that ended in error",
		}),
		PairScanErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pair_scan_errors_total",
			Help:      "Scan errors isolated to a single pair",
		}, []string{"pair"}),
		QuotesObtained: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_obtained_total",
			Help:      "Valid quotes obtained per DEX",
		}, []string{"dex"}),
		QuotesUnavailable: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_unavailable_total",
			Help:      "Quote requests answered with no liquidity per DEX",
		}, []string{"dex"}),
		QuotesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_rejected_total",
			Help:      "Quotes discarded by the price sanity filter",
		}, []string{"pair", "dex"}),
		QuoteLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_latency_seconds",
			Help:      "Latency of quote simulation calls",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		Opportunities: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "opportunities_total",
			Help:      "Detected opportunities per pair",
		}, []string{"pair"}),
		OpportunityBps: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "opportunity_profit_bps",
			Help:      "Expected profit of detected opportunities in basis points",
			Buckets:   prometheus.LinearBuckets(0, 20, 15),
		}),
		Executions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Execution attempts by outcome",
		}, []string{"status"}),
		ExecutionSuccessRate: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "execution_success_rate",
			Help:      "Fraction of execution attempts that confirmed successfully",
		}),
		ExecutionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_latency_seconds",
			Help:      "Latency from submission to confirmation",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		BorrowedVolume: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "borrowed_volume_wei",
			Help:      "Cumulative flash loan principal in base token units",
		}),
		PremiumPaid: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "premium_paid_wei",
			Help:      "Cumulative flash loan premium paid in base token units",
		}),
		RealizedProfit: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realized_profit_wei",
			Help:      "Realized profit of the most recent successful execution",
		}),
	}
}

// UpdateExecutionSuccessRate recomputes the success-rate gauge by reading
// the execution counters back. Called after every execution attempt.
func (m *BotMetrics) UpdateExecutionSuccessRate(statuses ...string) {
	var total, successes float64
	for _, status := range statuses {
		metric := &dto.Metric{}
		if err := m.Executions.WithLabelValues(status).Write(metric); err != nil {
			continue
		}
		value := metric.GetCounter().GetValue()
		total += value
		if status == "success" {
			successes = value
		}
	}

	if total > 0 {
		m.ExecutionSuccessRate.Set(successes / total)
	}
}

// NewNopMetrics returns a metric set on a throwaway registry, for tests and
// components constructed without an external registry.
func NewNopMetrics() *BotMetrics {
	return NewBotMetrics("flasharb", prometheus.NewRegistry())
}
