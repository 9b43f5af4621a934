// Package safety provides pre-flight checks run before a session starts
// trading.
package safety

import (
	"context"
	"fmt"

	"volume_maker/internal/config"
	"volume_maker/internal/core"
	"volume_maker/internal/quote"
)

// Checker validates that the pool and the wallet roster can actually sustain
// a session before the first trade is attempted.
type Checker struct {
	logger     core.ILogger
	minTrade   uint64
	feeReserve uint64
}

// NewChecker creates a session safety checker.
func NewChecker(cfg *config.Config, logger core.ILogger) *Checker {
	return &Checker{
		logger:     logger.WithField("component", "safety_checker"),
		minTrade:   config.ToAtomic(cfg.Sizing.MinTradeAmount, cfg.Pool.QuoteDecimals),
		feeReserve: config.ToAtomic(cfg.Sizing.FeeReserve, cfg.Pool.QuoteDecimals),
	}
}

// CheckSessionSafety verifies the pool reserves are live and tradeable and
// that at least one wallet can fund the configured minimum trade. A failed
// check aborts startup; nothing here mutates state.
func (c *Checker) CheckSessionSafety(
	ctx context.Context,
	wallets []core.WalletID,
	balances core.BalanceSource,
	liquidity core.LiquiditySource,
) error {
	c.logger.Info("Starting session safety check", "wallets", len(wallets))

	if len(wallets) == 0 {
		return fmt.Errorf("wallet roster is empty")
	}

	liq, err := liquidity.LiquidityState(ctx)
	if err != nil {
		return fmt.Errorf("failed to read pool reserves: %w", err)
	}
	if liq.VirtualBase == 0 || liq.VirtualQuote == 0 {
		return fmt.Errorf("pool reserves are degenerate (virtual_base=%d virtual_quote=%d)",
			liq.VirtualBase, liq.VirtualQuote)
	}
	if liq.RealBase == 0 {
		return fmt.Errorf("pool has no real base reserve left to buy")
	}

	// A minimum-sized buy must still move tokens at current depth.
	if quote.QuoteBuy(liq, c.minTrade) == 0 {
		return fmt.Errorf("minimum trade of %d quotes zero base output at current reserves", c.minTrade)
	}

	funded := 0
	required := c.minTrade + c.feeReserve
	for _, w := range wallets {
		balance, err := balances.SpendableBalance(ctx, w)
		if err != nil {
			c.logger.Warn("Balance read failed during safety check", "wallet", w, "error", err.Error())
			continue
		}
		if balance >= required {
			funded++
		}
	}
	if funded == 0 {
		return fmt.Errorf("no wallet can fund the minimum trade (%d quote units plus %d fee reserve)",
			c.minTrade, c.feeReserve)
	}

	c.logger.Info("Session safety check passed",
		"funded_wallets", funded,
		"real_base", liq.RealBase,
		"real_quote", liq.RealQuote)
	return nil
}
