package apperrors

import "errors"

// Standardized orchestration errors. The scheduler classifies every failure
// into one of these buckets; nothing outside this taxonomy aborts a run.
var (
	// Transient: retried by continuing the loop, never in a tight loop.
	ErrNetwork       = errors.New("network error")
	ErrSubmitTimeout = errors.New("trade submission timed out")
	ErrThinLiquidity = errors.New("temporarily insufficient liquidity")

	// Per-wallet, per-tick skips.
	ErrWalletExhausted   = errors.New("insufficient spendable balance")
	ErrNoHoldings        = errors.New("wallet holds no tokens")
	ErrNoAllocation      = errors.New("no allocation for wallet")
	ErrBelowMinimumTrade = errors.New("computed amount below minimum trade")

	// Permanent, session-scoped.
	ErrRebuyCeilingReached = errors.New("rebuy ceiling reached")
	ErrWalletBlacklisted   = errors.New("wallet is blacklisted")

	// Aborts the current tick's sizing only, never the run.
	ErrLiquidityUnreadable = errors.New("liquidity state unreadable")
)

// IsTransient reports whether an error should be absorbed as a skip and
// retried on a later scheduled attempt.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetwork) ||
		errors.Is(err, ErrSubmitTimeout) ||
		errors.Is(err, ErrThinLiquidity)
}

// IsSkip reports whether an error affects only the current wallet for the
// current tick.
func IsSkip(err error) bool {
	return errors.Is(err, ErrWalletExhausted) ||
		errors.Is(err, ErrNoHoldings) ||
		errors.Is(err, ErrNoAllocation) ||
		errors.Is(err, ErrBelowMinimumTrade)
}
