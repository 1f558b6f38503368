package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SwapKind tags the protocol variant a SwapInstruction targets.
type SwapKind uint8

const (
	SwapConstantProduct SwapKind = iota
	SwapConcentratedLiquidity
	SwapWeightedPool
	SwapStableSwap
	SwapProactiveMarketMaker
)

func (k SwapKind) String() string {
	switch k {
	case SwapConstantProduct:
		return "constant_product"
	case SwapConcentratedLiquidity:
		return "concentrated_liquidity"
	case SwapWeightedPool:
		return "weighted_pool"
	case SwapStableSwap:
		return "stable_swap"
	case SwapProactiveMarketMaker:
		return "pmm"
	default:
		return "unknown"
	}
}

// SwapParams holds the fields every swap variant carries.
type SwapParams struct {
	Router       common.Address
	TokenIn      common.Address
	TokenOut     common.Address
	AmountIn     *big.Int
	MinAmountOut *big.Int
}

// SwapInstruction is one leg of an atomic arbitrage. Each protocol variant
// carries only the fields its executor destructures.
type SwapInstruction interface {
	Kind() SwapKind
	Params() SwapParams
}

// ConstantProductSwap routes through a V2-style router along Path.
type ConstantProductSwap struct {
	SwapParams
	Path []common.Address
}

func (s *ConstantProductSwap) Kind() SwapKind     { return SwapConstantProduct }
func (s *ConstantProductSwap) Params() SwapParams { return s.SwapParams }

// ConcentratedLiquiditySwap targets a single V3-style pool at FeeTier.
type ConcentratedLiquiditySwap struct {
	SwapParams
	FeeTier uint32
}

func (s *ConcentratedLiquiditySwap) Kind() SwapKind     { return SwapConcentratedLiquidity }
func (s *ConcentratedLiquiditySwap) Params() SwapParams { return s.SwapParams }

// WeightedPoolSwap targets a Balancer-style pool identified by PoolID.
type WeightedPoolSwap struct {
	SwapParams
	PoolID common.Hash
}

func (s *WeightedPoolSwap) Kind() SwapKind     { return SwapWeightedPool }
func (s *WeightedPoolSwap) Params() SwapParams { return s.SwapParams }

// StableSwapExchange targets a Curve-style pool using token indices.
type StableSwapExchange struct {
	SwapParams
	TokenIndexIn  int64
	TokenIndexOut int64
}

func (s *StableSwapExchange) Kind() SwapKind     { return SwapStableSwap }
func (s *StableSwapExchange) Params() SwapParams { return s.SwapParams }

// ProactiveMarketMakerSwap targets a DODO-style pool with opaque helper data.
type ProactiveMarketMakerSwap struct {
	SwapParams
	ExtraData []byte
}

func (s *ProactiveMarketMakerSwap) Kind() SwapKind     { return SwapProactiveMarketMaker }
func (s *ProactiveMarketMakerSwap) Params() SwapParams { return s.SwapParams }
