// Package core defines the shared types and interfaces of the volume maker.
// Everything the orchestration loop consumes from the outside world crosses
// one of these boundaries, and every implementation is treated as fallible.
package core

import (
	"context"
	"time"
)

// BalanceSource reads wallet balances from the network. Results are only
// trusted for the tick that requested them.
type BalanceSource interface {
	// SpendableBalance returns the wallet's quote-asset balance in atomic
	// units (lamports).
	SpendableBalance(ctx context.Context, wallet WalletID) (uint64, error)
	// HeldAmount returns the wallet's base-token balance in atomic units.
	// A wallet with no token account reports zero, not an error.
	HeldAmount(ctx context.Context, wallet WalletID) (uint64, error)
}

// LiquiditySource reads the pool reserve state. Snapshots must never be cached
// across sizing decisions.
type LiquiditySource interface {
	LiquidityState(ctx context.Context) (*LiquidityState, error)
}

// ExecutionGateway signs, builds and submits a trade on behalf of a wallet.
// Submit blocks until the trade is confirmed, fails, or the context deadline
// fires; a deadline is treated by callers as a plain failed attempt.
type ExecutionGateway interface {
	Submit(ctx context.Context, intent *TradeIntent) (*TradeReceipt, error)
}

// AllocationTable maps wallets to pre-assigned buy amounts for deterministic
// sizing. A missing entry is a valid, expected state.
type AllocationTable interface {
	AllocationFor(wallet WalletID) (uint64, bool)
}

// SizingPolicy computes how much quote a wallet should spend on its next buy.
// balance is the wallet's spendable quote balance read this tick; liquidity
// may be nil when the reserve read failed and the policy has a fallback path.
type SizingPolicy interface {
	SizeBuy(wallet WalletID, balance uint64, liquidity *LiquidityState) (uint64, error)
}

// SellTriggerPolicy decides when sell sequences fire and how they are shaped.
type SellTriggerPolicy interface {
	// NextSellThreshold draws the number of buys that must complete before
	// the next sell sequence.
	NextSellThreshold() int
	// ConsecutiveSells draws the run length for a sell sequence, capped by
	// the number of currently eligible sell wallets.
	ConsecutiveSells(eligibleWallets int) int
	// InterSellDelay draws the pause between sells inside one sequence,
	// uniform over a configured millisecond band.
	InterSellDelay() time.Duration
}

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}
