// Package trigger decides when sell sequences fire and how they are shaped.
//
// Thresholds and run lengths are drawn from a configured empirical mixture,
// not a uniform integer: most draws cluster tightly around the configured
// mean, a minority spread over the whole band, and a small remainder hit the
// configured extremes exactly. Long-run aggregates match the mean while
// individual draws still vary.
package trigger

import (
	"math/rand"
	"sync"
	"time"

	"volume_maker/internal/config"
	"volume_maker/internal/core"
)

// Mixture weights. The core band receives roughly two thirds of all draws,
// the spread band most of the rest, and the extremes the remainder.
const (
	coreBandWeight   = 0.675
	spreadBandWeight = 0.275
	// extremes take the remaining 0.05

	coreBandHalfWidth = 2
)

var _ core.SellTriggerPolicy = (*Policy)(nil)

// Policy implements core.SellTriggerPolicy from configured distributions.
type Policy struct {
	threshold config.Distribution
	runLength config.Distribution
	delayMin  int
	delayMax  int

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a sell trigger policy. rng is the single source of randomness
// so runs are reproducible under a fixed seed.
func New(cfg *config.Config, rng *rand.Rand) *Policy {
	return &Policy{
		threshold: cfg.SellTrigger.Threshold,
		runLength: cfg.SellTrigger.RunLength,
		delayMin:  cfg.SellTrigger.InterSellDelayMinMs,
		delayMax:  cfg.SellTrigger.InterSellDelayMaxMs,
		rng:       rng,
	}
}

// NextSellThreshold draws the number of buys before the next sell sequence.
func (p *Policy) NextSellThreshold() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drawMixture(p.threshold)
}

// ConsecutiveSells draws the sell run length, hard-capped by the number of
// currently eligible sell wallets.
func (p *Policy) ConsecutiveSells(eligibleWallets int) int {
	if eligibleWallets <= 0 {
		return 0
	}
	p.mu.Lock()
	n := p.drawMixture(p.runLength)
	p.mu.Unlock()
	if n > eligibleWallets {
		return eligibleWallets
	}
	return n
}

// InterSellDelay draws the pause between consecutive sells, uniform over the
// configured millisecond band.
func (p *Policy) InterSellDelay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	ms := p.delayMin
	if p.delayMax > p.delayMin {
		ms += p.rng.Intn(p.delayMax - p.delayMin + 1)
	}
	return time.Duration(ms) * time.Millisecond
}

// drawMixture draws one value from the three-part mixture. Callers hold the
// rng lock.
func (p *Policy) drawMixture(d config.Distribution) int {
	if d.Min >= d.Max {
		return d.Min
	}

	var v int
	switch r := p.rng.Float64(); {
	case r < coreBandWeight:
		// Tight band around the mean.
		v = d.Mean + p.rng.Intn(2*coreBandHalfWidth+1) - coreBandHalfWidth
	case r < coreBandWeight+spreadBandWeight:
		// Anywhere in the configured range.
		v = d.Min + p.rng.Intn(d.Max-d.Min+1)
	default:
		// Exact extremes.
		if p.rng.Intn(2) == 0 {
			v = d.Min
		} else {
			v = d.Max
		}
	}

	if v < d.Min {
		v = d.Min
	}
	if v > d.Max {
		v = d.Max
	}
	return v
}
