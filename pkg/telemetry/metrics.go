package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricBuysTotal          = "volume_maker_buys_total"
	MetricSellsTotal         = "volume_maker_sells_total"
	MetricSkipsTotal         = "volume_maker_skips_total"
	MetricSubmitsTotal       = "volume_maker_submits_total"
	MetricSubmitRetriesTotal = "volume_maker_submit_retries_total"
	MetricSubmitFailsTotal   = "volume_maker_submit_failures_total"
	MetricQuoteVolumeTotal   = "volume_maker_quote_volume_total"
	MetricSubmitLatency      = "volume_maker_submit_latency_ms"
	MetricWalletsByStatus    = "volume_maker_wallets"
	MetricSessionState       = "volume_maker_session_state"
)

// MetricsHolder holds initialized instruments
type MetricsHolder struct {
	BuysTotal          metric.Int64Counter
	SellsTotal         metric.Int64Counter
	SkipsTotal         metric.Int64Counter
	SubmitsTotal       metric.Int64Counter
	SubmitRetriesTotal metric.Int64Counter
	SubmitFailsTotal   metric.Int64Counter
	QuoteVolumeTotal   metric.Float64Counter
	SubmitLatency      metric.Float64Histogram
	WalletsByStatus    metric.Int64ObservableGauge
	SessionState       metric.Int64ObservableGauge

	// State for observable gauges
	mu           sync.RWMutex
	walletCounts map[string]int64
	sessionState int64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			walletCounts: make(map[string]int64),
		}
		// Initialization of instruments happens in InitMetrics
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.BuysTotal, err = meter.Int64Counter(MetricBuysTotal, metric.WithDescription("Total confirmed buys"))
	if err != nil {
		return err
	}

	m.SellsTotal, err = meter.Int64Counter(MetricSellsTotal, metric.WithDescription("Total confirmed sells"))
	if err != nil {
		return err
	}

	m.SkipsTotal, err = meter.Int64Counter(MetricSkipsTotal, metric.WithDescription("Total skipped trade attempts"))
	if err != nil {
		return err
	}

	m.SubmitsTotal, err = meter.Int64Counter(MetricSubmitsTotal, metric.WithDescription("Total trade submits"))
	if err != nil {
		return err
	}

	m.SubmitRetriesTotal, err = meter.Int64Counter(MetricSubmitRetriesTotal, metric.WithDescription("Total trade submit retries"))
	if err != nil {
		return err
	}

	m.SubmitFailsTotal, err = meter.Int64Counter(MetricSubmitFailsTotal, metric.WithDescription("Total trade submit failures"))
	if err != nil {
		return err
	}

	m.QuoteVolumeTotal, err = meter.Float64Counter(MetricQuoteVolumeTotal, metric.WithDescription("Total traded volume in quote units"))
	if err != nil {
		return err
	}

	m.SubmitLatency, err = meter.Float64Histogram(MetricSubmitLatency, metric.WithDescription("Latency of trade submits"), metric.WithUnit("ms"))
	if err != nil {
		return err
	}

	// Observables
	m.WalletsByStatus, err = meter.Int64ObservableGauge(MetricWalletsByStatus, metric.WithDescription("Wallets in the ledger by status"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for status, count := range m.walletCounts {
				obs.Observe(count, metric.WithAttributes(attribute.String("status", status)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.SessionState, err = meter.Int64ObservableGauge(MetricSessionState, metric.WithDescription("Scheduler state (0=running, 1=paused, 2=draining, 3=stopped)"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.sessionState)
			return nil
		}))
	if err != nil {
		return err
	}

	return nil
}

// Recording helpers. Instruments are nil until InitMetrics runs, and every
// helper treats a nil instrument as a no-op so metrics-disabled runs and
// tests record nothing instead of panicking.

func (m *MetricsHolder) RecordBuy(ctx context.Context, wallet string, quoteAmount float64) {
	if m.BuysTotal != nil {
		m.BuysTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("wallet", wallet)))
	}
	if m.QuoteVolumeTotal != nil {
		m.QuoteVolumeTotal.Add(ctx, quoteAmount)
	}
}

func (m *MetricsHolder) RecordSell(ctx context.Context, wallet string) {
	if m.SellsTotal != nil {
		m.SellsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("wallet", wallet)))
	}
}

func (m *MetricsHolder) RecordSkip(ctx context.Context, reason string) {
	if m.SkipsTotal != nil {
		m.SkipsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}

func (m *MetricsHolder) RecordSubmit(ctx context.Context, wallet, direction string) {
	if m.SubmitsTotal != nil {
		m.SubmitsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("wallet", wallet),
			attribute.String("direction", direction)))
	}
}

func (m *MetricsHolder) RecordSubmitRetry(ctx context.Context) {
	if m.SubmitRetriesTotal != nil {
		m.SubmitRetriesTotal.Add(ctx, 1)
	}
}

func (m *MetricsHolder) RecordSubmitFailure(ctx context.Context, wallet, direction string) {
	if m.SubmitFailsTotal != nil {
		m.SubmitFailsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("wallet", wallet),
			attribute.String("direction", direction)))
	}
}

func (m *MetricsHolder) RecordSubmitLatency(ctx context.Context, direction string, ms float64) {
	if m.SubmitLatency != nil {
		m.SubmitLatency.Record(ctx, ms, metric.WithAttributes(attribute.String("direction", direction)))
	}
}

// Helpers to update observable state

func (m *MetricsHolder) SetWalletCount(status string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.walletCounts[status] = count
}

func (m *MetricsHolder) SetSessionState(state int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionState = state
}

func (m *MetricsHolder) GetWalletCounts() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make(map[string]int64)
	for k, v := range m.walletCounts {
		res[k] = v
	}
	return res
}
