package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volume_maker/internal/core"
	"volume_maker/internal/ledger"
)

func testPool() []core.WalletID {
	return []core.WalletID{"walletA", "walletB", "walletC"}
}

func TestLedger_InitialState(t *testing.T) {
	l := ledger.New(testPool(), 2)

	assert.Equal(t, 3, l.Size())
	assert.Len(t, l.Available(), 3)
	assert.Empty(t, l.Holding())
	assert.Empty(t, l.RebuyEligible())
	assert.Equal(t, core.StatusAvailable, l.Status("walletA"))
}

func TestLedger_DeduplicatesPool(t *testing.T) {
	l := ledger.New([]core.WalletID{"walletA", "walletA", "walletB"}, 1)
	assert.Equal(t, 2, l.Size())
}

func TestLedger_BuySellCycle(t *testing.T) {
	l := ledger.New(testPool(), 2)

	l.MarkHolding("walletA", 5_000_000, 100_000_000)
	assert.Equal(t, core.StatusHolding, l.Status("walletA"))
	assert.Len(t, l.Holding(), 1)

	bal, ok := l.LastTokenBalance("walletA")
	require.True(t, ok)
	assert.Equal(t, uint64(5_000_000), bal)

	l.MarkUsedForSell("walletA")
	assert.Equal(t, core.StatusUsedForSell, l.Status("walletA"))
	assert.Empty(t, l.Holding())
}

func TestLedger_UsedForSellNeverSellEligible(t *testing.T) {
	l := ledger.New(testPool(), 2)

	l.MarkHolding("walletA", 100, 10)
	l.MarkHolding("walletB", 100, 10)
	l.MarkUsedForSell("walletA")

	eligible := l.EligibleForSell("")
	assert.NotContains(t, eligible, core.WalletID("walletA"))
	assert.Contains(t, eligible, core.WalletID("walletB"))

	// Re-entering Holding via a new buy restores eligibility exactly then.
	require.True(t, l.ClaimRebuy("walletA"))
	assert.NotContains(t, l.EligibleForSell(""), core.WalletID("walletA"))
	l.MarkHolding("walletA", 50, 10)
	assert.Contains(t, l.EligibleForSell(""), core.WalletID("walletA"))
}

func TestLedger_SellSelectionExcludesLastBuyer(t *testing.T) {
	l := ledger.New(testPool(), 2)

	l.MarkHolding("walletA", 100, 10)
	l.MarkHolding("walletB", 100, 10)

	eligible := l.EligibleForSell("walletB")
	assert.Equal(t, []core.WalletID{"walletA"}, eligible)
}

func TestLedger_SellSelectionFallbackToOnlyHolder(t *testing.T) {
	l := ledger.New(testPool(), 2)

	l.MarkHolding("walletB", 100, 10)

	// walletB just bought, but it is the only holder left: fallback.
	eligible := l.EligibleForSell("walletB")
	assert.Equal(t, []core.WalletID{"walletB"}, eligible)
}

func TestLedger_ClaimRebuy(t *testing.T) {
	l := ledger.New(testPool(), 2)

	l.MarkHolding("walletA", 100, 10)
	l.MarkUsedForSell("walletA")
	assert.Contains(t, l.RebuyEligible(), core.WalletID("walletA"))

	require.True(t, l.ClaimRebuy("walletA"))
	assert.Equal(t, core.StatusAvailable, l.Status("walletA"))
	assert.Equal(t, 1, l.RebuyCount("walletA"))

	// Claims only apply to UsedForSell wallets.
	assert.False(t, l.ClaimRebuy("walletA"))
	assert.Equal(t, 1, l.RebuyCount("walletA"))
}

func TestLedger_RebuyCountMonotoneUntilCeiling(t *testing.T) {
	l := ledger.New(testPool(), 2)

	prev := 0
	for i := 0; i < 2; i++ {
		l.MarkHolding("walletA", 100, 10)
		l.MarkUsedForSell("walletA")
		require.True(t, l.ClaimRebuy("walletA"))
		count := l.RebuyCount("walletA")
		assert.Greater(t, count, prev)
		prev = count
	}

	// Ceiling spent: next claim blacklists permanently.
	l.MarkHolding("walletA", 100, 10)
	l.MarkUsedForSell("walletA")
	assert.NotContains(t, l.RebuyEligible(), core.WalletID("walletA"))
	assert.Contains(t, l.ExhaustedRebuys(), core.WalletID("walletA"))

	assert.False(t, l.ClaimRebuy("walletA"))
	assert.Equal(t, core.StatusBlacklisted, l.Status("walletA"))

	// Blacklisting is one-way: no marker resurrects the wallet.
	l.MarkHolding("walletA", 100, 10)
	assert.Equal(t, core.StatusBlacklisted, l.Status("walletA"))
	assert.False(t, l.ClaimRebuy("walletA"))
	assert.NotContains(t, l.EligibleForSell(""), core.WalletID("walletA"))
	assert.Equal(t, 2, l.RebuyCount("walletA"))
}

func TestLedger_RecordsNeverDeleted(t *testing.T) {
	l := ledger.New(testPool(), 1)

	l.MarkBlacklisted("walletA")
	l.MarkBlacklisted("walletB")
	l.MarkBlacklisted("walletC")

	snap := l.Snapshot()
	require.Len(t, snap, 3)
	for _, rec := range snap {
		assert.Equal(t, core.StatusBlacklisted, rec.Status)
	}
}

func TestLedger_Counts(t *testing.T) {
	l := ledger.New(testPool(), 2)
	l.MarkHolding("walletA", 100, 10)
	l.MarkHolding("walletB", 100, 10)
	l.MarkUsedForSell("walletB")
	l.MarkBlacklisted("walletC")

	available, holding, used, blacklisted := l.Counts()
	assert.Equal(t, 0, available)
	assert.Equal(t, 1, holding)
	assert.Equal(t, 1, used)
	assert.Equal(t, 1, blacklisted)
}

func TestLedger_UnknownWalletIsInert(t *testing.T) {
	l := ledger.New(testPool(), 2)

	assert.Equal(t, core.StatusBlacklisted, l.Status("stranger"))
	l.MarkHolding("stranger", 100, 10)
	assert.Equal(t, 3, l.Size())
	_, ok := l.LastTokenBalance("stranger")
	assert.False(t, ok)
}
