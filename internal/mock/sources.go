package mock

import (
	"context"
	"sync"

	"volume_maker/internal/core"
)

// BalanceSource implements core.BalanceSource over in-memory maps.
type BalanceSource struct {
	mu        sync.Mutex
	spendable map[core.WalletID]uint64
	queued    map[core.WalletID][]uint64
	held      map[core.WalletID]uint64
	err       map[core.WalletID]error
}

// NewBalanceSource creates a balance source with the given spendable
// balances.
func NewBalanceSource(spendable map[core.WalletID]uint64) *BalanceSource {
	if spendable == nil {
		spendable = make(map[core.WalletID]uint64)
	}
	return &BalanceSource{
		spendable: spendable,
		queued:    make(map[core.WalletID][]uint64),
		held:      make(map[core.WalletID]uint64),
		err:       make(map[core.WalletID]error),
	}
}

// QueueSpendable scripts a sequence of spendable balances for the wallet, one
// per lookup; the last value sticks once the queue drains.
func (b *BalanceSource) QueueSpendable(wallet core.WalletID, amounts ...uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queued[wallet] = append(b.queued[wallet], amounts...)
}

// SetSpendable sets a wallet's quote balance.
func (b *BalanceSource) SetSpendable(wallet core.WalletID, amount uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.spendable[wallet] = amount
}

// SetHeld sets a wallet's base-token balance.
func (b *BalanceSource) SetHeld(wallet core.WalletID, amount uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.held[wallet] = amount
}

// SetError makes lookups for the wallet fail.
func (b *BalanceSource) SetError(wallet core.WalletID, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err[wallet] = err
}

// SpendableBalance implements core.BalanceSource.
func (b *BalanceSource) SpendableBalance(_ context.Context, wallet core.WalletID) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.err[wallet]; err != nil {
		return 0, err
	}
	if q := b.queued[wallet]; len(q) > 0 {
		v := q[0]
		if len(q) > 1 {
			b.queued[wallet] = q[1:]
		}
		b.spendable[wallet] = v
		return v, nil
	}
	return b.spendable[wallet], nil
}

// HeldAmount implements core.BalanceSource.
func (b *BalanceSource) HeldAmount(_ context.Context, wallet core.WalletID) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.err[wallet]; err != nil {
		return 0, err
	}
	return b.held[wallet], nil
}

// LiquiditySource implements core.LiquiditySource over a fixed snapshot.
type LiquiditySource struct {
	mu    sync.Mutex
	state core.LiquidityState
	err   error
	reads int
}

// NewLiquiditySource creates a liquidity source returning state.
func NewLiquiditySource(state core.LiquidityState) *LiquiditySource {
	return &LiquiditySource{state: state}
}

// SetState replaces the snapshot.
func (l *LiquiditySource) SetState(state core.LiquidityState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = state
}

// SetError makes reads fail.
func (l *LiquiditySource) SetError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

// Reads returns how many snapshots were requested.
func (l *LiquiditySource) Reads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads
}

// LiquidityState implements core.LiquiditySource. Each call returns a fresh
// copy so callers cannot share a snapshot across sizing decisions.
func (l *LiquiditySource) LiquidityState(_ context.Context) (*core.LiquidityState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	if l.err != nil {
		return nil, l.err
	}
	state := l.state
	return &state, nil
}

// AllocationTable implements core.AllocationTable over a map.
type AllocationTable struct {
	entries map[core.WalletID]uint64
}

// NewAllocationTable creates a table from the given entries; nil is an empty
// table.
func NewAllocationTable(entries map[core.WalletID]uint64) *AllocationTable {
	if entries == nil {
		entries = make(map[core.WalletID]uint64)
	}
	return &AllocationTable{entries: entries}
}

// AllocationFor implements core.AllocationTable.
func (t *AllocationTable) AllocationFor(wallet core.WalletID) (uint64, bool) {
	amount, ok := t.entries[wallet]
	return amount, ok
}

// NopLogger is a core.ILogger that discards everything.
type NopLogger struct{}

// NewNopLogger creates a no-op logger.
func NewNopLogger() *NopLogger { return &NopLogger{} }

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}

// WithField implements core.ILogger.
func (n NopLogger) WithField(string, interface{}) core.ILogger { return n }

// WithFields implements core.ILogger.
func (n NopLogger) WithFields(map[string]interface{}) core.ILogger { return n }
