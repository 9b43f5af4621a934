package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"volume_maker/pkg/telemetry"
)

// Recording before InitMetrics must be a no-op, not a panic: the scheduler
// and executor record unconditionally and only the entrypoint wires a meter.
func TestRecordHelpers_NoopBeforeInit(t *testing.T) {
	h := telemetry.GetGlobalMetrics()
	ctx := context.Background()

	assert.NotPanics(t, func() {
		h.RecordBuy(ctx, "w1", 100)
		h.RecordSell(ctx, "w1")
		h.RecordSkip(ctx, "balance lookup failed")
		h.RecordSubmit(ctx, "w1", "buy")
		h.RecordSubmitRetry(ctx)
		h.RecordSubmitFailure(ctx, "w1", "sell")
		h.RecordSubmitLatency(ctx, "buy", 12.5)
	})
}

func TestRecordHelpers_FeedNamedInstruments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	h := telemetry.GetGlobalMetrics()
	require.NoError(t, h.InitMetrics(provider.Meter("test")))

	ctx := context.Background()
	h.RecordBuy(ctx, "w1", 250)
	h.RecordSell(ctx, "w1")
	h.RecordSkip(ctx, "sell submit failed")
	h.RecordSubmit(ctx, "w1", "buy")
	h.RecordSubmitRetry(ctx)
	h.RecordSubmitFailure(ctx, "w1", "sell")
	h.RecordSubmitLatency(ctx, "buy", 42)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	names := make(map[string]bool)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			names[m.Name] = true
		}
	}
	for _, want := range []string{
		telemetry.MetricBuysTotal,
		telemetry.MetricSellsTotal,
		telemetry.MetricSkipsTotal,
		telemetry.MetricSubmitsTotal,
		telemetry.MetricSubmitRetriesTotal,
		telemetry.MetricSubmitFailsTotal,
		telemetry.MetricQuoteVolumeTotal,
		telemetry.MetricSubmitLatency,
	} {
		assert.True(t, names[want], "expected datapoints under %s", want)
	}
}
