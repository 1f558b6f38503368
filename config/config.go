package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type Config struct {
	// Chain and network settings
	ChainID          uint64 `json:"chain_id"`
	RPCEndpoint      string `json:"rpc_endpoint"`
	ExecutorContract string `json:"executor_contract"`

	// Trading thresholds
	MinProfitBps        int64 `json:"min_profit_bps"`
	SlippageBps         int64 `json:"slippage_bps"`
	FlashLoanPremiumBps int64 `json:"flash_loan_premium_bps"`
	GasMarginBps        int64 `json:"gas_margin_bps"`

	// Monitoring intervals
	PollInterval    time.Duration `json:"poll_interval"`
	BackoffInterval time.Duration `json:"backoff_interval"`

	// RPC budget
	RPCRateLimit RateLimitConfig `json:"rpc_rate_limit"`

	// Markets table (DEXes, pairs, sanity bounds)
	MarketsFile string `json:"markets_file"`

	// Feature flags
	PrometheusEnabled  bool   `json:"prometheus_enabled"`
	PrometheusEndpoint string `json:"prometheus_endpoint"`

	// Internal components
	Logger *zap.Logger `json:"-"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64       `json:"requests_per_second"`
	BurstSize         int           `json:"burst_size"`
	WaitTimeout       time.Duration `json:"wait_timeout"`
}

type SecureConfig struct {
	PrivateKey string
}

func (c *Config) ValidateConfig() error {
	var errors []string

	if c.ChainID == 0 {
		errors = append(errors, "chain_id must be specified")
	}
	if c.RPCEndpoint == "" {
		errors = append(errors, "rpc_endpoint must be specified")
	}
	if c.ExecutorContract == "" || !common.IsHexAddress(c.ExecutorContract) {
		errors = append(errors, "executor_contract must be a valid address")
	}
	if c.MinProfitBps <= 0 {
		errors = append(errors, "min_profit_bps must be positive")
	}
	if c.SlippageBps <= 0 || c.SlippageBps >= 10000 {
		errors = append(errors, "slippage_bps must be in (0, 10000)")
	}
	if c.FlashLoanPremiumBps < 0 {
		errors = append(errors, "flash_loan_premium_bps must not be negative")
	}
	if c.PollInterval <= 0 {
		errors = append(errors, "poll_interval must be positive")
	}
	if c.BackoffInterval < c.PollInterval {
		errors = append(errors, "backoff_interval must not be shorter than poll_interval")
	}
	if c.MarketsFile == "" {
		errors = append(errors, "markets_file must be specified")
	}
	if err := c.RPCRateLimit.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("RPC rate limit error: %v", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (r *RateLimitConfig) Validate() error {
	if r.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}
	if r.BurstSize <= 0 {
		return fmt.Errorf("burst size must be positive")
	}
	if r.WaitTimeout <= 0 {
		return fmt.Errorf("wait timeout must be positive")
	}

	return nil
}

func LoadConfig(cfgFile string) (*Config, error) {
	if cfgFile == "" {
		cfgFile = "flasharb.json"
	}

	file, err := os.Open(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	config := DefaultConfig()
	if err := json.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	config.Logger = logger

	if err := config.ValidateConfig(); err != nil {
		return nil, err
	}

	return config, nil
}

func LoadSecureConfig() (*SecureConfig, error) {
	privateKey, err := GetRequiredEnv(EnvPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("private key not found: %w", err)
	}

	return &SecureConfig{
		PrivateKey: privateKey,
	}, nil
}

func DefaultConfig() *Config {
	return &Config{
		Logger:              zap.NewNop(),
		ChainID:             1,
		MinProfitBps:        80,
		SlippageBps:         300,
		FlashLoanPremiumBps: 9,
		GasMarginBps:        2000, // +20%
		PollInterval:        5 * time.Second,
		BackoffInterval:     10 * time.Second,
		MarketsFile:         "markets.yaml",
		RPCRateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			BurstSize:         100,
			WaitTimeout:       time.Second,
		},
		PrometheusEnabled:  false,
		PrometheusEndpoint: "",
	}
}
