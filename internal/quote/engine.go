// Package quote prices trades against a constant-product bonding curve.
//
// All arithmetic is done on arbitrary-precision integers in atomic units.
// Floating point is deliberately absent: rounding drift compounds across
// thousands of trades and misprices the curve at scale.
package quote

import (
	"math/big"

	"volume_maker/internal/core"
)

// QuoteBuy returns the base-token output for spending quoteIn atomic quote
// units against the given reserves.
//
// The output preserves the invariant
//
//	(virtualQuote + in) * (virtualBase - out + 1) >= virtualBase * virtualQuote
//
// i.e. out = virtualBase - ceil(virtualBase*virtualQuote / (virtualQuote+in)),
// clamped so it never exceeds the real tradable base reserve. Degenerate
// inputs (zero in, nil or empty reserves) quote zero; this function never
// fails.
func QuoteBuy(liq *core.LiquidityState, quoteIn uint64) uint64 {
	if liq == nil || quoteIn == 0 || liq.VirtualBase == 0 || liq.VirtualQuote == 0 {
		return 0
	}

	vBase := new(big.Int).SetUint64(liq.VirtualBase)
	vQuote := new(big.Int).SetUint64(liq.VirtualQuote)
	in := new(big.Int).SetUint64(quoteIn)

	// k = virtualBase * virtualQuote
	k := new(big.Int).Mul(vBase, vQuote)

	// newBase = ceil(k / (virtualQuote + in))
	denom := new(big.Int).Add(vQuote, in)
	newBase, rem := new(big.Int).QuoRem(k, denom, new(big.Int))
	if rem.Sign() != 0 {
		newBase.Add(newBase, big.NewInt(1))
	}

	out := new(big.Int).Sub(vBase, newBase)
	if out.Sign() <= 0 {
		return 0
	}

	if real := new(big.Int).SetUint64(liq.RealBase); out.Cmp(real) > 0 {
		out.Set(real)
	}
	return out.Uint64()
}

// QuoteSell returns the quote-unit proceeds for selling baseIn atomic base
// tokens back into the curve. The mirror of QuoteBuy: proceeds round down and
// are clamped to the real quote reserve. Used for logging expected proceeds;
// sells always move the wallet's whole holding regardless of the quote.
func QuoteSell(liq *core.LiquidityState, baseIn uint64) uint64 {
	if liq == nil || baseIn == 0 || liq.VirtualBase == 0 || liq.VirtualQuote == 0 {
		return 0
	}

	vBase := new(big.Int).SetUint64(liq.VirtualBase)
	vQuote := new(big.Int).SetUint64(liq.VirtualQuote)
	in := new(big.Int).SetUint64(baseIn)

	// out = virtualQuote - k / (virtualBase + in), rounded down
	k := new(big.Int).Mul(vBase, vQuote)
	denom := new(big.Int).Add(vBase, in)
	newQuote := new(big.Int).Quo(k, denom)

	out := new(big.Int).Sub(vQuote, newQuote)
	if out.Sign() <= 0 {
		return 0
	}

	if real := new(big.Int).SetUint64(liq.RealQuote); out.Cmp(real) > 0 {
		out.Set(real)
	}
	return out.Uint64()
}
