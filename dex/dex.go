package dex

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lumafi/flasharb/types"
)

// ErrUnavailable means a DEX could not price the requested swap: no pool,
// missing liquidity, or a reverting simulation call. It is an absence, not
// a failure; scanning continues with the remaining DEXes.
var ErrUnavailable = errors.New("quote unavailable")

// Config describes one DEX deployment. Loaded at startup, read-only after.
type Config struct {
	ID     types.DexID
	Name   string
	Router common.Address
	// Quoter is the simulation contract for protocols that separate
	// quoting from routing (concentrated liquidity).
	Quoter common.Address
	// FeeBps is the base fee rate. Tiered protocols derive the rate from
	// the fee tier instead.
	FeeBps int64
	// FeeTiers lists the configured fee tiers in protocol-native units
	// (hundredths of a bps). Empty for non-tiered protocols.
	FeeTiers []uint32
	// PoolID identifies a Balancer-style pool.
	PoolID common.Hash
	// TokenIndices maps token addresses to Curve-style pool indices.
	TokenIndices map[common.Address]int64
	// ExtraData is opaque helper data for PMM-style pools.
	ExtraData []byte
}

// Quoter is the uniform quote contract every DEX connector implements.
// Implementations are read-only simulations and must not share mutable
// state across calls.
type Quoter interface {
	ID() types.DexID
	Name() string

	// FeeTiers returns the configured fee tiers, or nil for protocols
	// with a single base fee.
	FeeTiers() []uint32

	// FeeBps returns the fee rate in basis points for the given tier
	// (tier is ignored by non-tiered protocols).
	FeeBps(feeTier uint32) int64

	// SupportsForwardQuote reports whether the connector can quote an
	// arbitrary tokenIn -> tokenOut direction, letting the executor
	// re-quote the return leg directly instead of inverting the
	// detection-time rate.
	SupportsForwardQuote() bool

	// Quote returns the amount of tokenOut received for amountIn of
	// tokenIn, or ErrUnavailable.
	Quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, feeTier uint32) (*big.Int, error)

	// Instruction builds the swap instruction variant this protocol's
	// executor destructures.
	Instruction(tokenIn, tokenOut common.Address, amountIn, minAmountOut *big.Int, feeTier uint32) types.SwapInstruction
}
