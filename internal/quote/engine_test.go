package quote_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"volume_maker/internal/core"
	"volume_maker/internal/quote"
)

func curveFixture() *core.LiquidityState {
	return &core.LiquidityState{
		VirtualBase:  1_073_000_000_000_000,
		VirtualQuote: 30_000_000_000,
		RealBase:     793_100_000_000_000,
		RealQuote:    0,
	}
}

func TestQuoteBuy_ZeroInput(t *testing.T) {
	assert.Zero(t, quote.QuoteBuy(curveFixture(), 0))
}

func TestQuoteBuy_DegenerateReserves(t *testing.T) {
	tests := []struct {
		name string
		liq  *core.LiquidityState
	}{
		{"nil state", nil},
		{"zero virtual base", &core.LiquidityState{VirtualQuote: 1_000_000, RealBase: 500}},
		{"zero virtual quote", &core.LiquidityState{VirtualBase: 1_000_000, RealBase: 500}},
		{"all zero", &core.LiquidityState{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Zero(t, quote.QuoteBuy(tt.liq, 1_000_000))
		})
	}
}

func TestQuoteBuy_Deterministic(t *testing.T) {
	liq := &core.LiquidityState{
		VirtualBase:  1_000_000,
		VirtualQuote: 1_000_000_000,
		RealBase:     900_000,
	}

	first := quote.QuoteBuy(liq, 10_000_000)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, quote.QuoteBuy(liq, 10_000_000))
	}
	assert.NotZero(t, first)
}

func TestQuoteBuy_ConstantProductInvariant(t *testing.T) {
	// (vQuote + in) * (vBase - out + 1) >= vBase * vQuote, checked at a size
	// where uint64 products stay exact in float-free math via big-friendly
	// values.
	liq := &core.LiquidityState{
		VirtualBase:  1_000_000,
		VirtualQuote: 1_000_000_000,
		RealBase:     1_000_000,
	}

	for _, in := range []uint64{1, 999, 10_000, 10_000_000, 500_000_000} {
		out := quote.QuoteBuy(liq, in)
		left := (liq.VirtualQuote + in)
		right := liq.VirtualBase - out + 1
		k := uint64(liq.VirtualBase) * uint64(liq.VirtualQuote)
		assert.GreaterOrEqual(t, left*right, k, "invariant violated for in=%d", in)
	}
}

func TestQuoteBuy_MonotoneInInput(t *testing.T) {
	liq := curveFixture()

	var prev uint64
	for in := uint64(0); in <= 5_000_000_000; in += 50_000_000 {
		out := quote.QuoteBuy(liq, in)
		assert.GreaterOrEqual(t, out, prev, "output decreased at in=%d", in)
		assert.LessOrEqual(t, out, liq.RealBase)
		prev = out
	}
}

func TestQuoteBuy_ClampsToRealBase(t *testing.T) {
	liq := &core.LiquidityState{
		VirtualBase:  1_000_000,
		VirtualQuote: 1_000,
		RealBase:     10,
	}

	// A huge input would drain far more than the real reserve holds.
	out := quote.QuoteBuy(liq, 1_000_000_000)
	assert.Equal(t, uint64(10), out)
}

func TestQuoteSell_MirrorsBuy(t *testing.T) {
	liq := &core.LiquidityState{
		VirtualBase:  1_000_000,
		VirtualQuote: 1_000_000_000,
		RealBase:     900_000,
		RealQuote:    500_000_000,
	}

	assert.Zero(t, quote.QuoteSell(liq, 0))
	assert.Zero(t, quote.QuoteSell(nil, 100))

	// Selling the output of a buy returns no more quote than went in: the
	// ceil on the buy side and floor on the sell side both favor the pool.
	in := uint64(10_000_000)
	bought := quote.QuoteBuy(liq, in)
	proceeds := quote.QuoteSell(liq, bought)
	assert.LessOrEqual(t, proceeds, in)
	assert.NotZero(t, proceeds)
}

func TestQuoteSell_ClampsToRealQuote(t *testing.T) {
	liq := &core.LiquidityState{
		VirtualBase:  1_000,
		VirtualQuote: 1_000_000,
		RealQuote:    50,
	}
	assert.Equal(t, uint64(50), quote.QuoteSell(liq, 1_000_000_000))
}
