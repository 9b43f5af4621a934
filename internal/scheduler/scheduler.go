// Package scheduler runs the orchestration control loop: one trade attempt in
// flight at a time, ledger mutated only on the loop goroutine, every external
// failure degraded to a logged skip.
package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"time"

	"volume_maker/internal/config"
	"volume_maker/internal/core"
	"volume_maker/internal/ledger"
	"volume_maker/internal/quote"
	apperrors "volume_maker/pkg/errors"
	"volume_maker/pkg/telemetry"
)

// Scheduler drives the buy/sell cycle over the wallet pool.
type Scheduler struct {
	book      *ledger.Ledger
	sizer     core.SizingPolicy
	trigger   core.SellTriggerPolicy
	balances  core.BalanceSource
	liquidity core.LiquiditySource
	gateway   core.ExecutionGateway
	logger    core.ILogger
	rng       *rand.Rand

	buyDelayMin time.Duration
	buyDelayMax time.Duration
	pausePoll   time.Duration

	retryAfterBuys uint64
	sellRemainder  bool

	paused atomic.Bool
	state  atomic.Int32

	// Counters are read concurrently by snapshot observers; everything else
	// below is owned by the loop goroutine.
	buyCounter  atomic.Uint64
	sellCounter atomic.Uint64
	skipCounter atomic.Uint64
	nextSellAt  atomic.Uint64

	cycle     []core.WalletID
	lastBuyer core.WalletID
	sequence  uint64

	onSnapshot func(core.SessionSnapshot)

	metrics *telemetry.MetricsHolder
}

// New creates a scheduler over an already seeded ledger.
func New(
	cfg *config.Config,
	book *ledger.Ledger,
	sizer core.SizingPolicy,
	trigger core.SellTriggerPolicy,
	balances core.BalanceSource,
	liquidity core.LiquiditySource,
	gateway core.ExecutionGateway,
	rng *rand.Rand,
	logger core.ILogger,
) *Scheduler {
	s := &Scheduler{
		book:           book,
		sizer:          sizer,
		trigger:        trigger,
		balances:       balances,
		liquidity:      liquidity,
		gateway:        gateway,
		logger:         logger.WithField("component", "scheduler"),
		rng:            rng,
		buyDelayMin:    time.Duration(cfg.Timing.BuyDelayMinMs) * time.Millisecond,
		buyDelayMax:    time.Duration(cfg.Timing.BuyDelayMaxMs) * time.Millisecond,
		pausePoll:      time.Duration(cfg.Timing.PausePollMs) * time.Millisecond,
		retryAfterBuys: uint64(cfg.SellTrigger.RetryAfterBuys),
		sellRemainder:  cfg.System.SellRemainderOnDrain,
		metrics:        telemetry.GetGlobalMetrics(),
	}
	s.state.Store(int32(StateStopped))
	return s
}

// OnSnapshot registers a callback invoked with a session snapshot after every
// tick and state change. Must be set before Run.
func (s *Scheduler) OnSnapshot(fn func(core.SessionSnapshot)) {
	s.onSnapshot = fn
}

// Pause stops new trade attempts after the current one completes.
func (s *Scheduler) Pause() {
	s.paused.Store(true)
	s.logger.Info("Pause requested")
}

// Resume lifts a pause.
func (s *Scheduler) Resume() {
	s.paused.Store(false)
	s.logger.Info("Resume requested")
}

// IsPaused reports whether the pause flag is set.
func (s *Scheduler) IsPaused() bool {
	return s.paused.Load()
}

// State returns the current run state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Run executes the control loop until the wallet pool drains or ctx is
// cancelled. A drained pool is a normal end of run, not an error.
func (s *Scheduler) Run(ctx context.Context) error {
	s.setState(StateRunning)
	s.nextSellAt.Store(s.buyCounter.Load() + uint64(s.trigger.NextSellThreshold()))
	s.logger.Info("Run started",
		"wallets", s.book.Size(),
		"next_sell_at", s.nextSellAt.Load())

	for {
		if ctx.Err() != nil {
			s.setState(StateStopped)
			s.logSummary("cancelled")
			return ctx.Err()
		}

		if s.paused.Load() {
			s.setState(StatePaused)
			if err := s.sleep(ctx, s.pausePoll); err != nil {
				s.setState(StateStopped)
				s.logSummary("cancelled")
				return err
			}
			continue
		}
		s.setState(StateRunning)

		wallet, ok := s.nextWallet()
		if !ok {
			// No wallet can buy, but holders can still sell and re-enter
			// the cycle as rebuys. Drain only when a forced sell run moves
			// nothing either.
			if len(s.book.Holding()) > 0 && s.runSellSequence(ctx) > 0 {
				s.broadcast()
				continue
			}
			s.drain(ctx)
			s.setState(StateStopped)
			s.logSummary("drained")
			return nil
		}

		if err := s.sleepRandom(ctx, s.buyDelayMin, s.buyDelayMax); err != nil {
			s.setState(StateStopped)
			s.logSummary("cancelled")
			return err
		}

		// The delay is a suspension point; a pause raised during it must
		// gate this attempt too.
		if s.paused.Load() {
			s.cycle = append([]core.WalletID{wallet}, s.cycle...)
			continue
		}

		if s.attemptBuy(ctx, wallet) && s.buyCounter.Load() >= s.nextSellAt.Load() {
			s.runSellSequence(ctx)
		}
		s.broadcast()
	}
}

// nextWallet pops the next wallet from the current cycle, replenishing the
// cycle from available and rebuy-eligible wallets when it runs dry. Exhausted
// rebuys are blacklisted on the replenish pass. Returns false when the pool
// can no longer produce a buyer.
func (s *Scheduler) nextWallet() (core.WalletID, bool) {
	if len(s.cycle) == 0 {
		for _, w := range s.book.ExhaustedRebuys() {
			s.book.MarkBlacklisted(w)
			s.logger.Info("Wallet exhausted its rebuys, blacklisting", "wallet", w)
		}
		for _, w := range s.book.RebuyEligible() {
			s.book.ClaimRebuy(w)
		}

		s.cycle = s.book.Available()
		s.rng.Shuffle(len(s.cycle), func(i, j int) {
			s.cycle[i], s.cycle[j] = s.cycle[j], s.cycle[i]
		})

		if len(s.cycle) > 0 {
			s.logger.Debug("Buy cycle replenished", "wallets", len(s.cycle))
		}
	}

	if len(s.cycle) == 0 {
		return "", false
	}
	wallet := s.cycle[0]
	s.cycle = s.cycle[1:]
	return wallet, true
}

// attemptBuy sizes and submits one buy. Every failure is a skip for this
// wallet on this tick; only a below-minimum rebuy blacklists.
func (s *Scheduler) attemptBuy(ctx context.Context, wallet core.WalletID) bool {
	balance, err := s.balances.SpendableBalance(ctx, wallet)
	if err != nil {
		s.skip(ctx, wallet, "balance lookup failed", err)
		return false
	}

	liq := s.readLiquidity(ctx)

	amount, err := s.sizer.SizeBuy(wallet, balance, liq)
	if err != nil {
		isRebuy := s.book.RebuyCount(wallet) > 0
		if isRebuy && errors.Is(err, apperrors.ErrBelowMinimumTrade) {
			// Economically exhausted: the wallet cannot fund another
			// meaningful cycle.
			s.book.MarkBlacklisted(wallet)
			s.logger.Info("Rebuy below minimum, blacklisting",
				"wallet", wallet,
				"balance", balance)
			return false
		}
		s.skip(ctx, wallet, "sizing declined", err)
		return false
	}

	s.sequence++
	intent := &core.TradeIntent{
		Wallet:    wallet,
		Direction: core.DirectionBuy,
		Amount:    amount,
		Sequence:  s.sequence,
	}

	receipt, err := s.gateway.Submit(ctx, intent)
	if err != nil {
		s.skip(ctx, wallet, "buy submit failed", err)
		return false
	}

	holding := s.confirmedHolding(ctx, wallet, receipt, liq, amount)
	s.book.MarkHolding(wallet, holding, amount)
	s.lastBuyer = wallet
	s.buyCounter.Add(1)

	s.metrics.RecordBuy(ctx, string(wallet), float64(amount))
	s.updateGauges()

	s.logger.Info("Buy confirmed",
		"wallet", wallet,
		"amount", amount,
		"holding", holding,
		"buy_counter", s.buyCounter.Load(),
		"next_sell_at", s.nextSellAt.Load())
	return true
}

// runSellSequence executes one sell run: a bounded walk over the eligible set,
// pause checked before each individual sell. A fully failed sequence is
// rescheduled after a short fixed buy count so it cannot stall the run.
// Returns the number of completed sells.
func (s *Scheduler) runSellSequence(ctx context.Context) int {
	eligible := s.book.EligibleForSell(s.lastBuyer)
	want := s.trigger.ConsecutiveSells(len(eligible))
	if want == 0 {
		s.nextSellAt.Store(s.buyCounter.Load() + s.retryAfterBuys)
		s.logger.Debug("No eligible sell wallets, rescheduling",
			"next_sell_at", s.nextSellAt.Load())
		return 0
	}

	s.logger.Info("Sell sequence starting",
		"eligible", len(eligible),
		"planned", want)

	successes := 0
	for i := 0; i < len(eligible) && successes < want; i++ {
		if ctx.Err() != nil {
			break
		}
		if err := s.waitWhilePaused(ctx); err != nil {
			break
		}

		wallet := eligible[i]
		if s.book.Status(wallet) != core.StatusHolding {
			continue
		}
		if s.attemptSell(ctx, wallet) {
			successes++
			if successes < want {
				if err := s.sleep(ctx, s.trigger.InterSellDelay()); err != nil {
					break
				}
			}
		}
	}

	if successes == 0 {
		s.nextSellAt.Store(s.buyCounter.Load() + s.retryAfterBuys)
	} else {
		s.nextSellAt.Store(s.buyCounter.Load() + uint64(s.trigger.NextSellThreshold()))
	}
	s.logger.Info("Sell sequence finished",
		"sold", successes,
		"planned", want,
		"next_sell_at", s.nextSellAt.Load())
	return successes
}

// attemptSell sells the wallet's whole holding.
func (s *Scheduler) attemptSell(ctx context.Context, wallet core.WalletID) bool {
	amount, ok := s.book.LastTokenBalance(wallet)
	if !ok || amount == 0 {
		// Re-derive from the external source rather than trusting a stale
		// local record.
		held, err := s.balances.HeldAmount(ctx, wallet)
		if err != nil || held == 0 {
			s.skip(ctx, wallet, "no holdings to sell", apperrors.ErrNoHoldings)
			return false
		}
		amount = held
	}

	if liq := s.readLiquidity(ctx); liq != nil {
		s.logger.Debug("Expected sell proceeds",
			"wallet", wallet,
			"amount", amount,
			"expected_quote_out", quote.QuoteSell(liq, amount))
	}

	s.sequence++
	intent := &core.TradeIntent{
		Wallet:    wallet,
		Direction: core.DirectionSell,
		Amount:    amount,
		Sequence:  s.sequence,
	}

	if _, err := s.gateway.Submit(ctx, intent); err != nil {
		s.skip(ctx, wallet, "sell submit failed", err)
		return false
	}

	s.book.MarkUsedForSell(wallet)
	s.sellCounter.Add(1)
	s.metrics.RecordSell(ctx, string(wallet))
	s.updateGauges()

	s.logger.Info("Sell confirmed",
		"wallet", wallet,
		"amount", amount,
		"sell_counter", s.sellCounter.Load())
	return true
}

// drain runs the end-of-pool wind down: optionally sell whatever the pool
// still holds, then report.
func (s *Scheduler) drain(ctx context.Context) {
	s.setState(StateDraining)
	s.logger.Info("Wallet pool drained, winding down",
		"sell_remainder", s.sellRemainder)

	if !s.sellRemainder {
		return
	}
	for _, wallet := range s.book.Holding() {
		if ctx.Err() != nil {
			return
		}
		if s.waitWhilePaused(ctx) != nil {
			return
		}
		if s.attemptSell(ctx, wallet) {
			if s.sleep(ctx, s.trigger.InterSellDelay()) != nil {
				return
			}
		}
	}
}

func (s *Scheduler) skip(ctx context.Context, wallet core.WalletID, reason string, err error) {
	s.book.MarkSkipped(wallet)
	s.skipCounter.Add(1)
	s.metrics.RecordSkip(ctx, reason)
	s.updateGauges()
	s.logger.Warn("Skipping wallet",
		"wallet", wallet,
		"reason", reason,
		"error", err.Error(),
		"transient", apperrors.IsTransient(err))
}

// confirmedHolding resolves the post-buy token balance: the receipt when it
// carries one, otherwise a fresh holding lookup, otherwise the quoted estimate.
func (s *Scheduler) confirmedHolding(ctx context.Context, wallet core.WalletID, receipt *core.TradeReceipt, liq *core.LiquidityState, amount uint64) uint64 {
	if receipt.HasHolding {
		return receipt.Holding
	}
	if held, err := s.balances.HeldAmount(ctx, wallet); err == nil && held > 0 {
		return held
	}
	return quote.QuoteBuy(liq, amount)
}

func (s *Scheduler) readLiquidity(ctx context.Context) *core.LiquidityState {
	liq, err := s.liquidity.LiquidityState(ctx)
	if err != nil {
		s.logger.Warn("Liquidity state unreadable", "error", err.Error())
		return nil
	}
	return liq
}

// waitWhilePaused blocks until the pause flag clears or ctx ends, restoring
// the caller's state afterwards.
func (s *Scheduler) waitWhilePaused(ctx context.Context) error {
	prior := s.State()
	for s.paused.Load() {
		s.setState(StatePaused)
		if err := s.sleep(ctx, s.pausePoll); err != nil {
			return err
		}
	}
	s.setState(prior)
	return nil
}

func (s *Scheduler) sleepRandom(ctx context.Context, min, max time.Duration) error {
	d := min
	if max > min {
		d += time.Duration(s.rng.Int63n(int64(max - min + 1)))
	}
	return s.sleep(ctx, d)
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Scheduler) setState(state State) {
	if State(s.state.Swap(int32(state))) != state {
		s.metrics.SetSessionState(int64(state))
		s.broadcast()
	}
}

func (s *Scheduler) updateGauges() {
	available, holding, usedForSell, blacklisted := s.book.Counts()
	s.metrics.SetWalletCount(core.StatusAvailable.String(), int64(available))
	s.metrics.SetWalletCount(core.StatusHolding.String(), int64(holding))
	s.metrics.SetWalletCount(core.StatusUsedForSell.String(), int64(usedForSell))
	s.metrics.SetWalletCount(core.StatusBlacklisted.String(), int64(blacklisted))
}

func (s *Scheduler) broadcast() {
	if s.onSnapshot == nil {
		return
	}
	s.onSnapshot(s.Snapshot(false))
}

// Snapshot returns a point-in-time summary of the run. withWallets includes
// the full per-wallet breakdown.
func (s *Scheduler) Snapshot(withWallets bool) core.SessionSnapshot {
	available, holding, usedForSell, blacklisted := s.book.Counts()
	snap := core.SessionSnapshot{
		State:          s.State().String(),
		BuyCounter:     s.buyCounter.Load(),
		SellCounter:    s.sellCounter.Load(),
		SkipCounter:    s.skipCounter.Load(),
		NextSellAt:     s.nextSellAt.Load(),
		Available:      available,
		Holding:        holding,
		UsedForSell:    usedForSell,
		Blacklisted:    blacklisted,
		SnapshotTimeMs: time.Now().UnixMilli(),
	}
	if withWallets {
		snap.Wallets = s.book.Snapshot()
	}
	return snap
}

// logSummary emits the end-of-run report: totals plus one line per wallet.
func (s *Scheduler) logSummary(outcome string) {
	s.broadcast()
	s.logger.Info("Run finished",
		"outcome", outcome,
		"buys", s.buyCounter.Load(),
		"sells", s.sellCounter.Load(),
		"skips", s.skipCounter.Load())
	for _, r := range s.book.Snapshot() {
		s.logger.Info("Wallet summary",
			"wallet", r.Wallet,
			"status", r.Status.String(),
			"rebuys", r.RebuyCount,
			"buys", r.Buys,
			"sells", r.Sells,
			"skips", r.Skips)
	}
}
