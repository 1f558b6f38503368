package cmd

import (
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lumafi/flasharb/chain"
	"github.com/lumafi/flasharb/config"
	"github.com/lumafi/flasharb/dex"
	"github.com/lumafi/flasharb/dex/balancer"
	"github.com/lumafi/flasharb/dex/curve"
	"github.com/lumafi/flasharb/dex/dodo"
	"github.com/lumafi/flasharb/dex/uniswapv2"
	"github.com/lumafi/flasharb/dex/uniswapv3"
	"github.com/lumafi/flasharb/executor"
	"github.com/lumafi/flasharb/gas"
	"github.com/lumafi/flasharb/pricing"
	"github.com/lumafi/flasharb/scanner"
	"github.com/lumafi/flasharb/strategies/arbitrage"
	"github.com/lumafi/flasharb/types"
	"github.com/lumafi/flasharb/utils"
	"github.com/lumafi/flasharb/utils/metrics"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the arbitrage bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := utils.GetLogger()

		if err := config.LoadEnv(); err != nil {
			log.Debug("no .env file loaded", zap.Error(err))
		}

		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg.Logger = log
		cfg.RPCEndpoint = config.GetEnvWithDefault(config.EnvRPCEndpoint, cfg.RPCEndpoint)

		secure, err := config.LoadSecureConfig()
		if err != nil {
			return fmt.Errorf("failed to load credentials: %w", err)
		}

		markets, err := config.LoadMarkets(cfg.MarketsFile)
		if err != nil {
			return fmt.Errorf("failed to load markets table: %w", err)
		}

		client, err := chain.NewClient(cfg.RPCEndpoint, cfg.RPCRateLimit.RequestsPerSecond, cfg.RPCRateLimit.BurstSize, log)
		if err != nil {
			return fmt.Errorf("failed to connect to node: %w", err)
		}

		signer, err := chain.NewLocalSigner(secure.PrivateKey, cfg.ChainID, client)
		if err != nil {
			return fmt.Errorf("failed to initialize signer: %w", err)
		}
		log.Info("signer ready", zap.String("address", signer.Address().Hex()))

		quoters, err := buildQuoters(client, markets, log)
		if err != nil {
			return fmt.Errorf("failed to build DEX connectors: %w", err)
		}

		registry := prometheus.NewRegistry()
		botMetrics := metrics.NewBotMetrics("flasharb", registry)
		if cfg.PrometheusEnabled {
			serveMetrics(cfg.PrometheusEndpoint, registry, log)
		}

		estimator := gas.NewEstimator(client, cfg.GasMarginBps, log)
		coordinator := executor.NewCoordinator(
			client, signer, quoters, estimator,
			common.HexToAddress(cfg.ExecutorContract),
			cfg.MinProfitBps, cfg.SlippageBps, cfg.FlashLoanPremiumBps,
			botMetrics, log)

		scan := scanner.New(
			quoters, markets.Pairs,
			pricing.NewSanityFilter(markets.Bounds, log),
			arbitrage.NewEvaluator(quoters, cfg.FlashLoanPremiumBps, log),
			coordinator,
			cfg.MinProfitBps,
			cfg.PollInterval, cfg.BackoffInterval,
			botMetrics, log)

		return scan.Run(cmd.Context())
	},
}

// buildQuoters instantiates one connector per configured DEX, in the
// markets-table order.
func buildQuoters(client chain.LedgerClient, markets *config.Markets, log *zap.Logger) ([]dex.Quoter, error) {
	quoters := make([]dex.Quoter, 0, len(markets.Dexes))
	for _, dexCfg := range markets.Dexes {
		var (
			quoter dex.Quoter
			err    error
		)

		switch dexCfg.ID {
		case types.DexUniswapV2, types.DexSushiswap:
			quoter, err = uniswapv2.NewQuoter(client, dexCfg, log)
		case types.DexUniswapV3:
			quoter, err = uniswapv3.NewQuoter(client, dexCfg, log)
		case types.DexBalancer:
			quoter, err = balancer.NewQuoter(client, dexCfg, log)
		case types.DexCurve:
			quoter, err = curve.NewQuoter(client, dexCfg, log)
		case types.DexDODO:
			// DODO pools only quote their own base token for sale; the
			// scan universe shares the first pair's base.
			quoter, err = dodo.NewQuoter(client, dexCfg, markets.Pairs[0].BaseToken, log)
		default:
			err = fmt.Errorf("no connector for dex %s", dexCfg.ID)
		}
		if err != nil {
			return nil, fmt.Errorf("dex %s: %w", dexCfg.Name, err)
		}

		quoters = append(quoters, quoter)
	}
	return quoters, nil
}

func serveMetrics(endpoint string, registry *prometheus.Registry, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	go func() {
		log.Info("serving metrics", zap.String("endpoint", endpoint))
		if err := http.ListenAndServe(endpoint, mux); err != nil {
			log.Error("metrics server stopped", zap.Error(err))
		}
	}()
}

func init() {
	rootCmd.AddCommand(startCmd)
}
