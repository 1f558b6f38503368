package types

import (
	"fmt"
	"math/big"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/ethereum/go-ethereum/common"
)

// DexID identifies a supported DEX protocol deployment.
type DexID int

const (
	DexUnknown DexID = iota
	DexUniswapV2
	DexSushiswap
	DexUniswapV3
	DexBalancer
	DexCurve
	DexDODO
)

func (id DexID) String() string {
	switch id {
	case DexUniswapV2:
		return "uniswap_v2"
	case DexSushiswap:
		return "sushiswap"
	case DexUniswapV3:
		return "uniswap_v3"
	case DexBalancer:
		return "balancer"
	case DexCurve:
		return "curve"
	case DexDODO:
		return "dodo"
	default:
		return "unknown"
	}
}

// ParseDexID maps a configuration tag to a DexID.
func ParseDexID(s string) (DexID, error) {
	switch s {
	case "uniswap_v2":
		return DexUniswapV2, nil
	case "sushiswap":
		return DexSushiswap, nil
	case "uniswap_v3":
		return DexUniswapV3, nil
	case "balancer":
		return DexBalancer, nil
	case "curve":
		return DexCurve, nil
	case "dodo":
		return DexDODO, nil
	default:
		return DexUnknown, fmt.Errorf("unknown dex id %q", s)
	}
}

// TokenPair is a monitored token pair. The base token is the asset that is
// borrowed and repaid; the quote token is the intermediate leg.
type TokenPair struct {
	Name          string
	BaseToken     common.Address
	QuoteToken    common.Address
	BaseDecimals  uint8
	QuoteDecimals uint8
	AmountIn      *big.Int
}

// Quote is one DEX's answer to "how much quote token for AmountIn of base
// token". Quotes live for a single scan cycle and are never cached.
type Quote struct {
	Dex       DexID
	FeeTier   uint32
	AmountIn  *big.Int
	AmountOut *big.Int
	Timestamp time.Time
}

// Opportunity is a detected round trip: buy the quote token on the source
// DEX, sell it back on the target DEX.
type Opportunity struct {
	Pair          TokenPair
	SourceDex     DexID
	SourceFeeTier uint32
	TargetDex     DexID
	TargetFeeTier uint32
	AmountIn      *big.Int
	SourceQuote   *Quote
	TargetQuote   *Quote
	Profit        *big.Int
	ProfitBps     int64
}

// Fingerprint returns a stable hash of the directed route, used to dedup
// repeated sightings of the same route in logs and metrics.
func (o *Opportunity) Fingerprint() uint64 {
	h := xxhash.New()
	h.Write(o.Pair.BaseToken.Bytes())
	h.Write(o.Pair.QuoteToken.Bytes())
	h.Write([]byte{byte(o.SourceDex), byte(o.TargetDex)})
	h.Write([]byte{
		byte(o.SourceFeeTier >> 16), byte(o.SourceFeeTier >> 8), byte(o.SourceFeeTier),
		byte(o.TargetFeeTier >> 16), byte(o.TargetFeeTier >> 8), byte(o.TargetFeeTier),
	})
	return h.Sum64()
}

// Route returns a human-readable description of the directed route.
func (o *Opportunity) Route() string {
	return fmt.Sprintf("%s(%d) -> %s(%d)", o.SourceDex, o.SourceFeeTier, o.TargetDex, o.TargetFeeTier)
}

// ExecutionStatus is the outcome class of an execution attempt.
type ExecutionStatus int

const (
	ExecutionSuccess ExecutionStatus = iota
	ExecutionReverted
	ExecutionSubmissionFailed
)

func (s ExecutionStatus) String() string {
	switch s {
	case ExecutionSuccess:
		return "success"
	case ExecutionReverted:
		return "reverted"
	case ExecutionSubmissionFailed:
		return "submission_failed"
	default:
		return "unknown"
	}
}

// ExecutionResult reports what actually happened on chain. ExpectedProfit is
// the detection-time figure, RealizedProfit the reconciled balance delta;
// the two routinely diverge and both are surfaced.
type ExecutionResult struct {
	Status         ExecutionStatus
	ExpectedProfit *big.Int
	RealizedProfit *big.Int
	Reason         string
	GasUsed        uint64
	BlockNumber    uint64
	TxHash         common.Hash
}
