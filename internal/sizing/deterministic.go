package sizing

import (
	"volume_maker/internal/config"
	"volume_maker/internal/core"
	apperrors "volume_maker/pkg/errors"
)

// DeterministicPolicy sizes buys from a pre-assigned per-wallet allocation
// table. A wallet without an entry is a hard skip; there is no fallback
// guess.
type DeterministicPolicy struct {
	table      core.AllocationTable
	feeReserve uint64
	minTrade   uint64
	logger     core.ILogger
}

// NewDeterministicPolicy creates a deterministic sizing policy.
func NewDeterministicPolicy(cfg *config.Config, table core.AllocationTable, logger core.ILogger) *DeterministicPolicy {
	return &DeterministicPolicy{
		table:      table,
		feeReserve: config.ToAtomic(cfg.Sizing.FeeReserve, cfg.Pool.QuoteDecimals),
		minTrade:   config.ToAtomic(cfg.Sizing.MinTradeAmount, cfg.Pool.QuoteDecimals),
		logger:     logger.WithField("component", "sizing_deterministic"),
	}
}

// SizeBuy returns the wallet's pre-assigned amount as-is. The liquidity
// snapshot is unused: allocations are fixed upstream.
func (p *DeterministicPolicy) SizeBuy(wallet core.WalletID, balance uint64, _ *core.LiquidityState) (uint64, error) {
	amount, ok := p.table.AllocationFor(wallet)
	if !ok {
		return 0, apperrors.ErrNoAllocation
	}
	if amount < p.minTrade {
		return 0, apperrors.ErrBelowMinimumTrade
	}
	if balance < amount+p.feeReserve {
		p.logger.Debug("Wallet cannot cover allocation plus fee reserve",
			"wallet", wallet, "balance", balance, "allocation", amount)
		return 0, apperrors.ErrWalletExhausted
	}
	return amount, nil
}
