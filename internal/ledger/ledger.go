// Package ledger tracks per-wallet lifecycle state for one orchestration run.
//
// The ledger is the single source of truth for which wallet may act next.
// Records are never deleted: blacklisted and exhausted wallets stay visible so
// the end-of-run summary can account for every wallet in the pool.
package ledger

import (
	"sort"
	"sync"

	"volume_maker/internal/core"
)

type record struct {
	status            core.WalletStatus
	rebuyCount        int
	lastTokenBalance  uint64
	hasTokenBalance   bool
	originalBuyAmount uint64
	buys              int
	sells             int
	skips             int
}

// Ledger holds the wallet pool state. All mutations happen on the scheduler's
// control loop; the mutex exists for read-only observers (status broadcast,
// summary reporting) that snapshot concurrently.
type Ledger struct {
	mu           sync.RWMutex
	order        []core.WalletID
	records      map[core.WalletID]*record
	rebuyCeiling int
}

// New creates a ledger over the given wallet pool. rebuyCeiling is the number
// of rebuy cycles a wallet may claim before it is permanently blacklisted.
func New(wallets []core.WalletID, rebuyCeiling int) *Ledger {
	l := &Ledger{
		records:      make(map[core.WalletID]*record, len(wallets)),
		rebuyCeiling: rebuyCeiling,
	}
	for _, w := range wallets {
		if _, dup := l.records[w]; dup {
			continue
		}
		l.order = append(l.order, w)
		l.records[w] = &record{status: core.StatusAvailable}
	}
	return l
}

// Register adds a wallet discovered after construction. Existing records are
// left untouched.
func (l *Ledger) Register(wallet core.WalletID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.records[wallet]; ok {
		return
	}
	l.order = append(l.order, wallet)
	l.records[wallet] = &record{status: core.StatusAvailable}
}

// Status returns the wallet's current status. Unknown wallets report
// StatusBlacklisted so they can never be acted on.
func (l *Ledger) Status(wallet core.WalletID) core.WalletStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.records[wallet]
	if !ok {
		return core.StatusBlacklisted
	}
	return r.status
}

// RebuyCount returns how many rebuy cycles the wallet has claimed.
func (l *Ledger) RebuyCount(wallet core.WalletID) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if r, ok := l.records[wallet]; ok {
		return r.rebuyCount
	}
	return 0
}

// MarkHolding records a confirmed buy: the wallet now holds tokenBalance base
// units and becomes eligible for sell selection. The first buy also pins the
// original buy amount for reporting.
func (l *Ledger) MarkHolding(wallet core.WalletID, tokenBalance, buyAmount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[wallet]
	if !ok || r.status == core.StatusBlacklisted {
		return
	}
	r.status = core.StatusHolding
	r.lastTokenBalance = tokenBalance
	r.hasTokenBalance = true
	r.buys++
	if r.originalBuyAmount == 0 {
		r.originalBuyAmount = buyAmount
	}
}

// MarkUsedForSell records a confirmed sell. The wallet must re-enter Holding
// via a fresh buy before it can sell again.
func (l *Ledger) MarkUsedForSell(wallet core.WalletID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[wallet]
	if !ok || r.status == core.StatusBlacklisted {
		return
	}
	r.status = core.StatusUsedForSell
	r.lastTokenBalance = 0
	r.sells++
}

// MarkBlacklisted removes the wallet from all future selection. The
// transition is one-way for the session.
func (l *Ledger) MarkBlacklisted(wallet core.WalletID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.records[wallet]; ok {
		r.status = core.StatusBlacklisted
	}
}

// MarkSkipped bumps the wallet's skip counter without changing status.
func (l *Ledger) MarkSkipped(wallet core.WalletID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.records[wallet]; ok {
		r.skips++
	}
}

// ClaimRebuy re-admits a UsedForSell wallet into the buy cycle, consuming one
// rebuy. When the wallet has already spent its ceiling the claim fails and
// the wallet transitions irreversibly to Blacklisted.
func (l *Ledger) ClaimRebuy(wallet core.WalletID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[wallet]
	if !ok || r.status != core.StatusUsedForSell {
		return false
	}
	if r.rebuyCount >= l.rebuyCeiling {
		r.status = core.StatusBlacklisted
		return false
	}
	r.rebuyCount++
	r.status = core.StatusAvailable
	return true
}

// Available returns wallets that may take a fresh buy, in registration order.
func (l *Ledger) Available() []core.WalletID {
	return l.filter(func(r *record) bool { return r.status == core.StatusAvailable })
}

// Holding returns wallets currently holding tokens, in registration order.
func (l *Ledger) Holding() []core.WalletID {
	return l.filter(func(r *record) bool { return r.status == core.StatusHolding })
}

// RebuyEligible returns UsedForSell wallets that still have rebuys left.
func (l *Ledger) RebuyEligible() []core.WalletID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []core.WalletID
	for _, w := range l.order {
		r := l.records[w]
		if r.status == core.StatusUsedForSell && r.rebuyCount < l.rebuyCeiling {
			out = append(out, w)
		}
	}
	return out
}

// ExhaustedRebuys returns UsedForSell wallets whose rebuy count has reached
// the ceiling. The scheduler blacklists these on its next replenish pass.
func (l *Ledger) ExhaustedRebuys() []core.WalletID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []core.WalletID
	for _, w := range l.order {
		r := l.records[w]
		if r.status == core.StatusUsedForSell && r.rebuyCount >= l.rebuyCeiling {
			out = append(out, w)
		}
	}
	return out
}

// EligibleForSell returns Holding wallets ordered by registration, excluding
// the most recent buyer so sells do not trivially mirror the last buy. When
// the excluded wallet is the only holder left it is used as the fallback.
func (l *Ledger) EligibleForSell(excluding core.WalletID) []core.WalletID {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []core.WalletID
	var excluded bool
	for _, w := range l.order {
		if l.records[w].status != core.StatusHolding {
			continue
		}
		if w == excluding {
			excluded = true
			continue
		}
		out = append(out, w)
	}
	if len(out) == 0 && excluded {
		out = append(out, excluding)
	}
	return out
}

// LastTokenBalance returns the balance recorded at the wallet's last buy
// confirmation, if any.
func (l *Ledger) LastTokenBalance(wallet core.WalletID) (uint64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if r, ok := l.records[wallet]; ok && r.hasTokenBalance {
		return r.lastTokenBalance, true
	}
	return 0, false
}

// Counts returns the number of wallets per status.
func (l *Ledger) Counts() (available, holding, usedForSell, blacklisted int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, r := range l.records {
		switch r.status {
		case core.StatusAvailable:
			available++
		case core.StatusHolding:
			holding++
		case core.StatusUsedForSell:
			usedForSell++
		case core.StatusBlacklisted:
			blacklisted++
		}
	}
	return
}

// Snapshot returns a copy of every wallet record, sorted by wallet for stable
// reporting output.
func (l *Ledger) Snapshot() []core.WalletRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]core.WalletRecord, 0, len(l.order))
	for _, w := range l.order {
		r := l.records[w]
		out = append(out, core.WalletRecord{
			Wallet:            w,
			Status:            r.status,
			RebuyCount:        r.rebuyCount,
			LastTokenBalance:  r.lastTokenBalance,
			OriginalBuyAmount: r.originalBuyAmount,
			Buys:              r.buys,
			Sells:             r.sells,
			Skips:             r.skips,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Wallet < out[j].Wallet })
	return out
}

// Size returns the total number of wallets ever registered.
func (l *Ledger) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

func (l *Ledger) filter(keep func(*record) bool) []core.WalletID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []core.WalletID
	for _, w := range l.order {
		if keep(l.records[w]) {
			out = append(out, w)
		}
	}
	return out
}
