// Package paper provides an in-process execution gateway that simulates the
// pool with the same constant-product math the sizing path quotes against.
// It backs the "paper" gateway type so full runs work without touching a
// network.
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"volume_maker/internal/config"
	"volume_maker/internal/core"
	"volume_maker/internal/quote"
	apperrors "volume_maker/pkg/errors"
)

// Gateway simulates trade execution against an internal pool. It implements
// core.ExecutionGateway, core.BalanceSource and core.LiquiditySource so one
// instance can back the whole run.
type Gateway struct {
	mu       sync.Mutex
	state    core.LiquidityState
	balances map[core.WalletID]uint64
	holdings map[core.WalletID]uint64
	fee      uint64
	logger   core.ILogger
}

// New creates a paper gateway seeded from config: every wallet starts with
// the configured funding and the pool with the configured reserves.
func New(cfg *config.Config, wallets []core.WalletID, logger core.ILogger) *Gateway {
	funding := config.ToAtomic(cfg.Paper.WalletFunding, cfg.Pool.QuoteDecimals)
	g := &Gateway{
		state: core.LiquidityState{
			VirtualBase:  cfg.Paper.VirtualBase,
			VirtualQuote: cfg.Paper.VirtualQuote,
			RealBase:     cfg.Paper.RealBase,
			RealQuote:    cfg.Paper.RealQuote,
		},
		balances: make(map[core.WalletID]uint64, len(wallets)),
		holdings: make(map[core.WalletID]uint64, len(wallets)),
		fee:      config.ToAtomic(cfg.Paper.Fee, cfg.Pool.QuoteDecimals),
		logger:   logger.WithField("component", "paper_gateway"),
	}
	for _, w := range wallets {
		g.balances[w] = funding
	}
	return g
}

// SpendableBalance implements core.BalanceSource.
func (g *Gateway) SpendableBalance(_ context.Context, wallet core.WalletID) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balances[wallet], nil
}

// HeldAmount implements core.BalanceSource.
func (g *Gateway) HeldAmount(_ context.Context, wallet core.WalletID) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holdings[wallet], nil
}

// LiquidityState implements core.LiquiditySource.
func (g *Gateway) LiquidityState(_ context.Context) (*core.LiquidityState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	state := g.state
	return &state, nil
}

// Submit implements core.ExecutionGateway. Buys and sells move the simulated
// reserves so the next quote reflects this trade's price impact.
func (g *Gateway) Submit(ctx context.Context, intent *core.TradeIntent) (*core.TradeReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	switch intent.Direction {
	case core.DirectionBuy:
		return g.executeBuy(intent)
	case core.DirectionSell:
		return g.executeSell(intent)
	default:
		return nil, fmt.Errorf("unknown trade direction %q", intent.Direction)
	}
}

func (g *Gateway) executeBuy(intent *core.TradeIntent) (*core.TradeReceipt, error) {
	cost := intent.Amount + g.fee
	if g.balances[intent.Wallet] < cost {
		return nil, apperrors.ErrWalletExhausted
	}

	out := quote.QuoteBuy(&g.state, intent.Amount)
	if out == 0 {
		return nil, apperrors.ErrThinLiquidity
	}

	g.balances[intent.Wallet] -= cost
	g.holdings[intent.Wallet] += out
	g.state.VirtualQuote += intent.Amount
	g.state.VirtualBase -= out
	g.state.RealBase -= out
	g.state.RealQuote += intent.Amount

	g.logger.Debug("Paper buy filled",
		"wallet", intent.Wallet,
		"quote_in", intent.Amount,
		"base_out", out)

	return &core.TradeReceipt{
		Signature:  "paper-" + intent.ID,
		Holding:    g.holdings[intent.Wallet],
		HasHolding: true,
		SubmitTime: time.Now(),
	}, nil
}

func (g *Gateway) executeSell(intent *core.TradeIntent) (*core.TradeReceipt, error) {
	if g.holdings[intent.Wallet] < intent.Amount || intent.Amount == 0 {
		return nil, apperrors.ErrNoHoldings
	}

	proceeds := quote.QuoteSell(&g.state, intent.Amount)
	if proceeds == 0 {
		return nil, apperrors.ErrThinLiquidity
	}

	g.holdings[intent.Wallet] -= intent.Amount
	credit := proceeds
	if credit > g.fee {
		credit -= g.fee
	} else {
		credit = 0
	}
	g.balances[intent.Wallet] += credit
	g.state.VirtualBase += intent.Amount
	g.state.VirtualQuote -= proceeds
	g.state.RealBase += intent.Amount
	if g.state.RealQuote >= proceeds {
		g.state.RealQuote -= proceeds
	} else {
		g.state.RealQuote = 0
	}

	g.logger.Debug("Paper sell filled",
		"wallet", intent.Wallet,
		"base_in", intent.Amount,
		"quote_out", proceeds)

	return &core.TradeReceipt{
		Signature:  "paper-" + intent.ID,
		SubmitTime: time.Now(),
	}, nil
}
