package sizing

import (
	"math/big"
	"math/rand"
	"sync"

	"volume_maker/internal/config"
	"volume_maker/internal/core"
	"volume_maker/internal/quote"
	apperrors "volume_maker/pkg/errors"
)

type tier struct {
	// maxBalance is the exclusive upper bound in atomic quote units;
	// zero means unbounded.
	maxBalance uint64
	minPercent int
	maxPercent int
}

// DynamicPolicy derives buy amounts from the wallet's spendable balance.
//
// The balance minus a fixed fee reserve is scaled by a percentage drawn from
// a band keyed to the balance tier: bigger balances use smaller percentages,
// so whale and minnow wallets converge toward comparable absolute risk. The
// result is further capped so the expected base output, per the quote
// engine, stays under the configured supply exposure; when reserves are
// unreadable the percentage rule alone applies.
type DynamicPolicy struct {
	tiers       []tier
	feeReserve  uint64
	minTrade    uint64
	maxExposure uint64
	logger      core.ILogger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewDynamicPolicy creates a dynamic sizing policy.
func NewDynamicPolicy(cfg *config.Config, rng *rand.Rand, logger core.ILogger) *DynamicPolicy {
	tiers := make([]tier, 0, len(cfg.Sizing.Tiers))
	for _, t := range cfg.Sizing.Tiers {
		tiers = append(tiers, tier{
			maxBalance: config.ToAtomic(t.MaxBalance, cfg.Pool.QuoteDecimals),
			minPercent: t.MinPercent,
			maxPercent: t.MaxPercent,
		})
	}
	return &DynamicPolicy{
		tiers:       tiers,
		feeReserve:  config.ToAtomic(cfg.Sizing.FeeReserve, cfg.Pool.QuoteDecimals),
		minTrade:    config.ToAtomic(cfg.Sizing.MinTradeAmount, cfg.Pool.QuoteDecimals),
		maxExposure: config.ToAtomic(cfg.Sizing.MaxSupplyExposure, cfg.Pool.BaseDecimals),
		logger:      logger.WithField("component", "sizing_dynamic"),
		rng:         rng,
	}
}

// SizeBuy computes the amount of quote to spend for this wallet this tick.
func (p *DynamicPolicy) SizeBuy(wallet core.WalletID, balance uint64, liquidity *core.LiquidityState) (uint64, error) {
	if balance <= p.feeReserve {
		return 0, apperrors.ErrWalletExhausted
	}
	spendable := balance - p.feeReserve

	pct := p.drawPercent(balance)
	amount := mulDiv(spendable, uint64(pct), 100)

	if liquidity != nil && p.maxExposure > 0 {
		// Reduce proportionally until the expected output is under the cap.
		// Slippage shrinks with size, so one pass can land slightly over;
		// the loop converges in two or three iterations.
		for i := 0; i < 8; i++ {
			expected := quote.QuoteBuy(liquidity, amount)
			if expected <= p.maxExposure {
				break
			}
			reduced := mulDiv(amount, p.maxExposure, expected)
			if reduced >= amount {
				reduced = amount - 1
			}
			p.logger.Debug("Buy capped by supply exposure",
				"wallet", wallet, "expected", expected, "capped_amount", reduced)
			amount = reduced
		}
	}

	if amount < p.minTrade {
		return 0, apperrors.ErrBelowMinimumTrade
	}
	return amount, nil
}

// drawPercent picks a percentage uniformly from the band of the tier the
// balance falls into. The last tier catches everything above the bounded
// ones.
func (p *DynamicPolicy) drawPercent(balance uint64) int {
	var band tier
	for _, t := range p.tiers {
		band = t
		if t.maxBalance == 0 || balance < t.maxBalance {
			break
		}
	}
	if band.maxPercent <= band.minPercent {
		return band.minPercent
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return band.minPercent + p.rng.Intn(band.maxPercent-band.minPercent+1)
}

// mulDiv computes a*b/c without intermediate overflow.
func mulDiv(a, b, c uint64) uint64 {
	if c == 0 {
		return 0
	}
	r := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	r.Quo(r, new(big.Int).SetUint64(c))
	return r.Uint64()
}
