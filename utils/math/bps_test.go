package math

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyBps(t *testing.T) {
	amount := big.NewInt(1_000_000)

	assert.Equal(t, int64(900), ApplyBps(amount, 9).Int64()) // 9 bps premium
	assert.Equal(t, int64(1_000_000), ApplyBps(amount, 10000).Int64())
	assert.Equal(t, int64(0), ApplyBps(big.NewInt(0), 30).Int64())
}

func TestAfterFee(t *testing.T) {
	amount := big.NewInt(1_000_000)

	assert.Equal(t, int64(997_000), AfterFee(amount, 30).Int64())
	assert.Equal(t, int64(999_500), AfterFee(amount, 5).Int64())
	assert.Equal(t, int64(1_000_000), AfterFee(amount, 0).Int64())
}

func TestWithMargin(t *testing.T) {
	// +20% gas safety margin
	assert.Equal(t, int64(120_000), WithMargin(big.NewInt(100_000), 2000).Int64())
}

func TestBps(t *testing.T) {
	assert.Equal(t, int64(80), Bps(big.NewInt(8), big.NewInt(1000)))
	assert.Equal(t, int64(-80), Bps(big.NewInt(-8), big.NewInt(1000)))
	assert.Equal(t, int64(0), Bps(big.NewInt(1), big.NewInt(0)))
}

func TestMulDivLargeValues(t *testing.T) {
	// 1e18 * 1e18 overflows int64/uint64 but not big.Int
	wad := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	out := MulDiv(wad, wad, wad)
	require.Equal(t, 0, out.Cmp(wad))
}
