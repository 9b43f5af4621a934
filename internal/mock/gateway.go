// Package mock provides in-memory test doubles for the external interfaces
// the orchestration core consumes.
package mock

import (
	"context"
	"sync"
	"time"

	"volume_maker/internal/core"
	apperrors "volume_maker/pkg/errors"
)

// SubmittedTrade records one Submit call for assertions.
type SubmittedTrade struct {
	Intent core.TradeIntent
	Time   time.Time
}

// Gateway implements core.ExecutionGateway with scriptable outcomes.
type Gateway struct {
	mu sync.Mutex

	submitted []SubmittedTrade
	// failures maps wallet -> remaining consecutive failures before
	// submits succeed again.
	failures map[core.WalletID]int
	// directionFailures maps direction -> remaining failures.
	directionFailures map[core.Direction]int
	failErr           error
	// holdings maps wallet -> base-token balance reported on a confirmed
	// buy receipt.
	holdings       map[core.WalletID]uint64
	reportNone     bool
	submitDelay    time.Duration
	failEverything bool
}

// NewGateway creates a gateway that confirms every submit.
func NewGateway() *Gateway {
	return &Gateway{
		failures:          make(map[core.WalletID]int),
		directionFailures: make(map[core.Direction]int),
		holdings:          make(map[core.WalletID]uint64),
		failErr:           apperrors.ErrNetwork,
	}
}

// FailDirection makes the next n submits on one side fail with err.
func (g *Gateway) FailDirection(direction core.Direction, n int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.directionFailures[direction] = n
	if err != nil {
		g.failErr = err
	}
}

// FailNext makes the next n submits for the wallet fail with err.
func (g *Gateway) FailNext(wallet core.WalletID, n int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[wallet] = n
	if err != nil {
		g.failErr = err
	}
}

// FailAll makes every submit fail until cleared.
func (g *Gateway) FailAll(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failEverything = true
	if err != nil {
		g.failErr = err
	}
}

// ConfirmAll clears any scripted failures.
func (g *Gateway) ConfirmAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failEverything = false
	g.failures = make(map[core.WalletID]int)
}

// SetHolding sets the token balance reported on the wallet's buy receipts.
func (g *Gateway) SetHolding(wallet core.WalletID, amount uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.holdings[wallet] = amount
}

// WithoutHoldingReports makes receipts omit the resulting holding amount.
func (g *Gateway) WithoutHoldingReports() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reportNone = true
}

// SetSubmitDelay makes every submit block for d before resolving.
func (g *Gateway) SetSubmitDelay(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submitDelay = d
}

// Submit implements core.ExecutionGateway.
func (g *Gateway) Submit(ctx context.Context, intent *core.TradeIntent) (*core.TradeReceipt, error) {
	g.mu.Lock()
	delay := g.submitDelay
	g.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.submitted = append(g.submitted, SubmittedTrade{Intent: *intent, Time: time.Now()})

	if g.failEverything {
		return nil, g.failErr
	}
	if n := g.failures[intent.Wallet]; n > 0 {
		g.failures[intent.Wallet] = n - 1
		return nil, g.failErr
	}
	if n := g.directionFailures[intent.Direction]; n > 0 {
		g.directionFailures[intent.Direction] = n - 1
		return nil, g.failErr
	}

	receipt := &core.TradeReceipt{
		Signature:  "sig-" + intent.ID,
		SubmitTime: time.Now(),
	}
	if intent.Direction == core.DirectionBuy && !g.reportNone {
		receipt.Holding = g.holdings[intent.Wallet]
		receipt.HasHolding = true
	}
	return receipt, nil
}

// Submitted returns a copy of all recorded submits.
func (g *Gateway) Submitted() []SubmittedTrade {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]SubmittedTrade, len(g.submitted))
	copy(out, g.submitted)
	return out
}

// SubmitCount returns the number of submits, optionally filtered by direction.
func (g *Gateway) SubmitCount(direction core.Direction) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, s := range g.submitted {
		if s.Intent.Direction == direction {
			n++
		}
	}
	return n
}
