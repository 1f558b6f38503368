// Package math provides big.Int helpers for basis-point arithmetic.
//
// All DEX fees, the flash loan premium and the slippage tolerance are
// expressed in basis points (1 bps = 0.01%). Amounts are raw token units,
// so every operation here is integer math with explicit rounding down.
package math

import "math/big"

const bpsDenominator = 10000

// ApplyBps returns amount * bps / 10000.
func ApplyBps(amount *big.Int, bps int64) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(bps))
	return out.Div(out, big.NewInt(bpsDenominator))
}

// AfterFee returns amount with feeBps removed: amount * (10000 - feeBps) / 10000.
func AfterFee(amount *big.Int, feeBps int64) *big.Int {
	return ApplyBps(amount, bpsDenominator-feeBps)
}

// WithMargin returns amount grown by marginBps: amount * (10000 + marginBps) / 10000.
func WithMargin(amount *big.Int, marginBps int64) *big.Int {
	return ApplyBps(amount, bpsDenominator+marginBps)
}

// Bps returns part expressed in basis points of whole, rounded toward zero.
// A zero whole yields zero.
func Bps(part, whole *big.Int) int64 {
	if whole.Sign() == 0 {
		return 0
	}
	out := new(big.Int).Mul(part, big.NewInt(bpsDenominator))
	out.Quo(out, whole)
	return out.Int64()
}

// MulDiv returns a * b / c without intermediate overflow.
func MulDiv(a, b, c *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Div(out, c)
}
