package trigger_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"volume_maker/internal/config"
	"volume_maker/internal/trigger"
)

func newPolicy(seed int64) *trigger.Policy {
	return trigger.New(config.DefaultConfig(), rand.New(rand.NewSource(seed)))
}

func TestNextSellThreshold_BoundsAndMeanConvergence(t *testing.T) {
	p := newPolicy(1)
	cfg := config.DefaultConfig().SellTrigger.Threshold

	const draws = 10_000
	sum := 0
	for i := 0; i < draws; i++ {
		v := p.NextSellThreshold()
		assert.GreaterOrEqual(t, v, cfg.Min)
		assert.LessOrEqual(t, v, cfg.Max)
		sum += v
	}

	mean := float64(sum) / draws
	assert.InDelta(t, float64(cfg.Mean), mean, 0.35,
		"empirical mean %f should converge to configured mean %d", mean, cfg.Mean)
}

func TestNextSellThreshold_IsAMixtureNotUniform(t *testing.T) {
	p := newPolicy(2)
	cfg := config.DefaultConfig().SellTrigger.Threshold

	const draws = 10_000
	nearMean := 0
	for i := 0; i < draws; i++ {
		v := p.NextSellThreshold()
		if v >= cfg.Mean-2 && v <= cfg.Mean+2 {
			nearMean++
		}
	}

	// A uniform draw over [3,11] puts ~55% of mass within mean±2; the
	// mixture concentrates well over two thirds there.
	frac := float64(nearMean) / draws
	assert.Greater(t, frac, 0.70)
	assert.Less(t, frac, 0.95, "extremes and spread band must still occur")
}

func TestNextSellThreshold_ExtremesOccur(t *testing.T) {
	p := newPolicy(3)
	cfg := config.DefaultConfig().SellTrigger.Threshold

	sawMin, sawMax := false, false
	for i := 0; i < 5_000 && !(sawMin && sawMax); i++ {
		switch p.NextSellThreshold() {
		case cfg.Min:
			sawMin = true
		case cfg.Max:
			sawMax = true
		}
	}
	assert.True(t, sawMin, "configured minimum never drawn")
	assert.True(t, sawMax, "configured maximum never drawn")
}

func TestConsecutiveSells_CappedByEligibleWallets(t *testing.T) {
	p := newPolicy(4)

	for i := 0; i < 1_000; i++ {
		assert.LessOrEqual(t, p.ConsecutiveSells(2), 2)
	}
	assert.Zero(t, p.ConsecutiveSells(0))
	assert.Zero(t, p.ConsecutiveSells(-1))
}

func TestConsecutiveSells_AtLeastOneWhenEligible(t *testing.T) {
	p := newPolicy(5)
	for i := 0; i < 1_000; i++ {
		assert.GreaterOrEqual(t, p.ConsecutiveSells(10), 1)
	}
}

func TestInterSellDelay_UniformBand(t *testing.T) {
	p := newPolicy(6)
	cfg := config.DefaultConfig().SellTrigger

	lo := time.Duration(cfg.InterSellDelayMinMs) * time.Millisecond
	hi := time.Duration(cfg.InterSellDelayMaxMs) * time.Millisecond
	for i := 0; i < 1_000; i++ {
		d := p.InterSellDelay()
		assert.GreaterOrEqual(t, d, lo)
		assert.LessOrEqual(t, d, hi)
	}
}

func TestDrawDegenerateRange(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SellTrigger.Threshold = config.Distribution{Min: 4, Max: 4, Mean: 4}
	p := trigger.New(cfg, rand.New(rand.NewSource(7)))

	for i := 0; i < 100; i++ {
		assert.Equal(t, 4, p.NextSellThreshold())
	}
}
