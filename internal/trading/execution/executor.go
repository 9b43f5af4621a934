// Package execution submits trade intents through a resilience pipeline with
// rate limiting and retry logic.
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"volume_maker/internal/config"
	"volume_maker/internal/core"
	apperrors "volume_maker/pkg/errors"
	"volume_maker/pkg/telemetry"
)

// Executor wraps an ExecutionGateway with rate limiting, per-attempt
// timeouts, transient-error retries and a circuit breaker. Skip and
// permanent errors pass through untouched so callers can classify them.
type Executor struct {
	gateway core.ExecutionGateway
	logger  core.ILogger

	rateLimiter   *rate.Limiter
	pipeline      failsafe.Executor[*core.TradeReceipt]
	submitTimeout time.Duration

	metrics *telemetry.MetricsHolder
}

// NewExecutor creates a trade executor around the gateway.
func NewExecutor(gateway core.ExecutionGateway, cfg *config.Config, logger core.ILogger) *Executor {
	metrics := telemetry.GetGlobalMetrics()
	log := logger.WithField("component", "trade_executor")

	retryPolicy := retrypolicy.NewBuilder[*core.TradeReceipt]().
		HandleIf(func(receipt *core.TradeReceipt, err error) bool {
			return err != nil && apperrors.IsTransient(err)
		}).
		OnRetry(func(e failsafe.ExecutionEvent[*core.TradeReceipt]) {
			metrics.RecordSubmitRetry(context.Background())
			log.Warn("Retrying trade submit",
				"attempt", e.Attempts(),
				"error", e.LastError().Error())
		}).
		WithBackoff(500*time.Millisecond, 5*time.Second).
		WithMaxRetries(3).
		Build()

	breaker := circuitbreaker.NewBuilder[*core.TradeReceipt]().
		HandleIf(func(receipt *core.TradeReceipt, err error) bool {
			return err != nil && apperrors.IsTransient(err)
		}).
		WithFailureThresholdRatio(5, 10). // 5 failures out of 10
		WithDelay(10 * time.Second).
		Build()

	return &Executor{
		gateway:       gateway,
		logger:        log,
		rateLimiter:   rate.NewLimiter(rate.Limit(cfg.Timing.SubmitRateLimit), cfg.Timing.SubmitBurst),
		pipeline:      failsafe.With[*core.TradeReceipt](retryPolicy, breaker),
		submitTimeout: time.Duration(cfg.Timing.SubmitTimeoutMs) * time.Millisecond,
		metrics:       metrics,
	}
}

// Submit sends one trade intent to the gateway. Each attempt runs under its
// own timeout; a deadline hit is reported as a transient submit timeout so
// the retry policy picks it up.
func (e *Executor) Submit(ctx context.Context, intent *core.TradeIntent) (*core.TradeReceipt, error) {
	if intent.ID == "" {
		intent.ID = uuid.NewString()
	}

	if err := e.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	start := time.Now()
	e.metrics.RecordSubmit(ctx, string(intent.Wallet), string(intent.Direction))

	receipt, err := e.pipeline.GetWithExecution(func(exec failsafe.Execution[*core.TradeReceipt]) (*core.TradeReceipt, error) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		attemptCtx, cancel := context.WithTimeout(ctx, e.submitTimeout)
		defer cancel()

		receipt, err := e.gateway.Submit(attemptCtx, intent)
		if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: no confirmation within %s", apperrors.ErrSubmitTimeout, e.submitTimeout)
		}
		return receipt, err
	})

	e.metrics.RecordSubmitLatency(ctx, string(intent.Direction), float64(time.Since(start))/float64(time.Millisecond))

	if err != nil {
		e.metrics.RecordSubmitFailure(ctx, string(intent.Wallet), string(intent.Direction))
		e.logger.Warn("Trade submit failed",
			"intent_id", intent.ID,
			"wallet", intent.Wallet,
			"direction", intent.Direction,
			"error", err.Error())
		return nil, err
	}

	e.logger.Debug("Trade submit confirmed",
		"intent_id", intent.ID,
		"wallet", intent.Wallet,
		"direction", intent.Direction,
		"signature", receipt.Signature)
	return receipt, nil
}
