// Package gas estimates the cost of submitting an arbitrage execution.
package gas

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"go.uber.org/zap"

	"github.com/lumafi/flasharb/chain"
	mathutil "github.com/lumafi/flasharb/utils/math"
)

// FallbackGasLimit is the conservative ceiling used when live estimation
// fails: base transaction cost plus two swap legs plus flash loan overhead.
const FallbackGasLimit = uint64(1_200_000)

// Estimate is a gas plan for one submission.
type Estimate struct {
	GasLimit uint64
	GasPrice *big.Int
	Cost     *big.Int
	// Fallback marks an estimate produced with the fixed ceiling after a
	// failed live estimation.
	Fallback bool
}

// Estimator derives gas plans from live estimation with a safety margin.
type Estimator struct {
	client    chain.LedgerClient
	marginBps int64
	logger    *zap.Logger
}

// NewEstimator creates a gas estimator. marginBps grows the estimated gas
// limit (2000 = +20%).
func NewEstimator(client chain.LedgerClient, marginBps int64, logger *zap.Logger) *Estimator {
	return &Estimator{
		client:    client,
		marginBps: marginBps,
		logger:    logger,
	}
}

// EstimateExecution simulates msg to derive the gas limit, applies the
// safety margin and prices the total cost.
func (e *Estimator) EstimateExecution(ctx context.Context, msg ethereum.CallMsg) (*Estimate, error) {
	gasLimit, err := e.client.EstimateGas(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("gas estimation failed: %w", err)
	}

	withMargin := mathutil.WithMargin(new(big.Int).SetUint64(gasLimit), e.marginBps).Uint64()

	gasPrice, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price suggestion failed: %w", err)
	}

	return &Estimate{
		GasLimit: withMargin,
		GasPrice: gasPrice,
		Cost:     new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(withMargin)),
	}, nil
}

// FallbackEstimate prices the fixed gas ceiling. Used once per opportunity
// after a failed live estimation.
func (e *Estimator) FallbackEstimate(ctx context.Context) (*Estimate, error) {
	gasPrice, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price suggestion failed: %w", err)
	}

	e.logger.Warn("using fallback gas ceiling",
		zap.Uint64("gas_limit", FallbackGasLimit))

	return &Estimate{
		GasLimit: FallbackGasLimit,
		GasPrice: gasPrice,
		Cost:     new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(FallbackGasLimit)),
		Fallback: true,
	}, nil
}
