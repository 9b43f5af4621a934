package sizing_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volume_maker/internal/config"
	"volume_maker/internal/core"
	"volume_maker/internal/mock"
	"volume_maker/internal/quote"
	"volume_maker/internal/sizing"
	apperrors "volume_maker/pkg/errors"
)

const lamports = 1_000_000_000 // one quote unit in atomic units

func testLogger() core.ILogger {
	return mock.NewNopLogger()
}

func dynamicPolicy(t *testing.T, seed int64) *sizing.DynamicPolicy {
	t.Helper()
	cfg := config.DefaultConfig()
	return sizing.NewDynamicPolicy(cfg, rand.New(rand.NewSource(seed)), testLogger())
}

func TestDynamic_ExhaustedBelowFeeReserve(t *testing.T) {
	p := dynamicPolicy(t, 1)

	// Fee reserve in the default config is 0.01 quote units.
	_, err := p.SizeBuy("walletA", 5_000_000, nil)
	assert.ErrorIs(t, err, apperrors.ErrWalletExhausted)

	_, err = p.SizeBuy("walletA", 0, nil)
	assert.ErrorIs(t, err, apperrors.ErrWalletExhausted)
}

func TestDynamic_PercentBandsByTier(t *testing.T) {
	tests := []struct {
		name    string
		balance uint64
		minPct  uint64
		maxPct  uint64
	}{
		{"minnow under 1", lamports / 2, 60, 80},
		{"mid tier 1-5", 3 * lamports, 50, 70},
		{"whale above 5", 20 * lamports, 40, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := dynamicPolicy(t, 42)
			feeReserve := uint64(10_000_000)
			spendable := tt.balance - feeReserve

			for i := 0; i < 200; i++ {
				amount, err := p.SizeBuy("walletA", tt.balance, nil)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, amount, spendable*tt.minPct/100)
				assert.LessOrEqual(t, amount, spendable*tt.maxPct/100)
			}
		})
	}
}

func TestDynamic_SupplyExposureCap(t *testing.T) {
	cfg := config.DefaultConfig()
	// Cap expected output at 1000 tokens (base_decimals 6) and drop the
	// trade floor so the heavily capped amount still goes through.
	cfg.Sizing.MaxSupplyExposure = decimal.NewFromInt(1000)
	cfg.Sizing.MinTradeAmount = decimal.Zero
	p := sizing.NewDynamicPolicy(cfg, rand.New(rand.NewSource(7)), testLogger())

	liq := &core.LiquidityState{
		VirtualBase:  1_073_000_000_000_000,
		VirtualQuote: 30 * lamports,
		RealBase:     793_100_000_000_000,
	}

	amount, err := p.SizeBuy("walletA", 10*lamports, liq)
	require.NoError(t, err)

	expected := quote.QuoteBuy(liq, amount)
	assert.LessOrEqual(t, expected, uint64(1_000_000_000))
	assert.NotZero(t, amount)
	// And the cap actually bit: the uncapped draw would be at least 40% of
	// the spendable balance.
	assert.Less(t, amount, uint64(10*lamports-10_000_000)*40/100)
}

func TestDynamic_UnreadableReservesFallBackToPercentRule(t *testing.T) {
	p := dynamicPolicy(t, 9)

	amount, err := p.SizeBuy("walletA", 10*lamports, nil)
	require.NoError(t, err)
	assert.NotZero(t, amount)
}

func TestDynamic_BelowMinimumTrade(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Sizing.MinTradeAmount = decimal.NewFromInt(1) // 1 quote unit
	p := sizing.NewDynamicPolicy(cfg, rand.New(rand.NewSource(3)), testLogger())

	// Balance just above the reserve: computed amount is far below 1 unit.
	_, err := p.SizeBuy("walletA", 20_000_000, nil)
	assert.ErrorIs(t, err, apperrors.ErrBelowMinimumTrade)
}

func TestDeterministic_UsesAllocationAsIs(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.App.SizingMode = sizing.ModeDeterministic
	table := mock.NewAllocationTable(map[core.WalletID]uint64{
		"walletA": 250_000_000,
	})
	p := sizing.NewDeterministicPolicy(cfg, table, testLogger())

	amount, err := p.SizeBuy("walletA", lamports, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(250_000_000), amount)
}

func TestDeterministic_MissingAllocationIsHardSkip(t *testing.T) {
	cfg := config.DefaultConfig()
	p := sizing.NewDeterministicPolicy(cfg, mock.NewAllocationTable(nil), testLogger())

	_, err := p.SizeBuy("walletB", lamports, nil)
	assert.ErrorIs(t, err, apperrors.ErrNoAllocation)
}

func TestDeterministic_InsufficientBalance(t *testing.T) {
	cfg := config.DefaultConfig()
	table := mock.NewAllocationTable(map[core.WalletID]uint64{
		"walletA": lamports,
	})
	p := sizing.NewDeterministicPolicy(cfg, table, testLogger())

	// Balance covers the allocation but not the fee reserve on top.
	_, err := p.SizeBuy("walletA", lamports, nil)
	assert.ErrorIs(t, err, apperrors.ErrWalletExhausted)
}

func TestNewPolicy_SelectsVariantByConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	rng := rand.New(rand.NewSource(1))

	p, err := sizing.NewPolicy(cfg, nil, rng, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &sizing.DynamicPolicy{}, p)

	cfg.App.SizingMode = sizing.ModeDeterministic
	_, err = sizing.NewPolicy(cfg, nil, rng, testLogger())
	assert.Error(t, err, "deterministic mode without a table must fail")

	p, err = sizing.NewPolicy(cfg, mock.NewAllocationTable(nil), rng, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &sizing.DeterministicPolicy{}, p)

	cfg.App.SizingMode = "unknown"
	_, err = sizing.NewPolicy(cfg, nil, rng, testLogger())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrNoAllocation))
}
