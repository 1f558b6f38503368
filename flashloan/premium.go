// Package flashloan holds the borrow/repay economics and the settlement
// sequence of an atomic two-leg arbitrage.
package flashloan

import (
	"math/big"

	mathutil "github.com/lumafi/flasharb/utils/math"
)

// Premium returns the flash loan premium on principal at premiumBps
// (9 bps on most pools).
func Premium(principal *big.Int, premiumBps int64) *big.Int {
	return mathutil.ApplyBps(principal, premiumBps)
}

// MinRepayment returns principal plus premium, the amount the settlement
// must hold after leg 2 or the whole sequence reverts.
func MinRepayment(principal *big.Int, premiumBps int64) *big.Int {
	return new(big.Int).Add(principal, Premium(principal, premiumBps))
}
