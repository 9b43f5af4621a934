// Package discovery scans the configured wallet pool at startup and seeds
// the ledger with what each wallet actually holds.
package discovery

import (
	"context"
	"sync"

	"volume_maker/internal/config"
	"volume_maker/internal/core"
	"volume_maker/internal/ledger"
	"volume_maker/pkg/concurrency"
	apperrors "volume_maker/pkg/errors"
	"volume_maker/pkg/retry"
)

// ScanResult is one wallet's startup snapshot.
type ScanResult struct {
	Wallet    core.WalletID
	Spendable uint64
	Held      uint64
	Err       error
}

// Scanner reads wallet balances concurrently and merges them into the ledger
// on the caller's goroutine. Trading never overlaps the scan, so this is the
// only place balance reads fan out.
type Scanner struct {
	balances       core.BalanceSource
	logger         core.ILogger
	poolSize       int
	poolBuffer     int
	minScanBalance uint64
}

// NewScanner creates a startup scanner.
func NewScanner(balances core.BalanceSource, cfg *config.Config, logger core.ILogger) *Scanner {
	return &Scanner{
		balances:       balances,
		logger:         logger.WithField("component", "wallet_scanner"),
		poolSize:       cfg.Concurrency.ScanPoolSize,
		poolBuffer:     cfg.Concurrency.ScanPoolBuffer,
		minScanBalance: config.ToAtomic(cfg.Wallets.MinScanBalance, cfg.Pool.QuoteDecimals),
	}
}

// Scan reads spendable and held balances for every wallet through a worker
// pool and returns results in the input order. A per-wallet read error lands
// in that wallet's result instead of failing the scan.
func (s *Scanner) Scan(ctx context.Context, wallets []core.WalletID) []ScanResult {
	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "wallet_scan",
		MaxWorkers:  s.poolSize,
		MaxCapacity: s.poolBuffer,
	}, s.logger)

	results := make([]ScanResult, len(wallets))
	var wg sync.WaitGroup
	for i, wallet := range wallets {
		i, wallet := i, wallet
		wg.Add(1)
		_ = pool.Submit(func() {
			defer wg.Done()
			results[i] = s.scanOne(ctx, wallet)
		})
	}
	wg.Wait()
	pool.Stop()

	return results
}

// Seed scans the wallets and registers them in the ledger. Wallets already
// holding tokens start in the holding state so the first sell sequence can
// use them; wallets below the scan floor are registered but logged.
func (s *Scanner) Seed(ctx context.Context, wallets []core.WalletID, book *ledger.Ledger) []ScanResult {
	results := s.Scan(ctx, wallets)

	for _, r := range results {
		book.Register(r.Wallet)
		switch {
		case r.Err != nil:
			s.logger.Warn("Wallet scan failed, assuming empty",
				"wallet", r.Wallet,
				"error", r.Err.Error())
		case r.Held > 0:
			book.MarkHolding(r.Wallet, r.Held, 0)
			s.logger.Info("Wallet holds tokens from a previous session",
				"wallet", r.Wallet,
				"held", r.Held)
		case r.Spendable < s.minScanBalance:
			s.logger.Warn("Wallet below scan floor",
				"wallet", r.Wallet,
				"spendable", r.Spendable,
				"floor", s.minScanBalance)
		}
	}
	return results
}

// scanOne reads both balances for a wallet, retrying transient read failures
// so one flaky RPC response does not misclassify a funded wallet.
func (s *Scanner) scanOne(ctx context.Context, wallet core.WalletID) ScanResult {
	r := ScanResult{Wallet: wallet}

	r.Err = retry.Do(ctx, retry.DefaultPolicy, apperrors.IsTransient, func() error {
		var err error
		r.Spendable, err = s.balances.SpendableBalance(ctx, wallet)
		return err
	})
	if r.Err != nil {
		return r
	}
	r.Err = retry.Do(ctx, retry.DefaultPolicy, apperrors.IsTransient, func() error {
		var err error
		r.Held, err = s.balances.HeldAmount(ctx, wallet)
		return err
	})
	return r
}
