package gate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/bpolania/DeltaNEAR-sub001/pkg/events"
)

func TestGateCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	clock := newTestClock()
	g, err := New(testConfig(t),
		WithClock(clock.Now),
		WithSink(events.NewCollectorSink()),
		WithMeterProvider(provider),
	)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = g.StoreSimulation(ctx, rawIntent("n-1", "1.5"), defaultResult(), Metadata{})
	require.NoError(t, err)
	_, err = g.StoreSimulation(ctx, rawIntent("n-1", "2.5"), defaultResult(), Metadata{})
	require.Error(t, err)
	_, err = g.CheckExecutionAllowed(ctx, rawIntent("n-1", "1.5"), Metadata{})
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	names := map[string]bool{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["gate.simulations"])
	assert.True(t, names["gate.replay_prevented"])
	assert.True(t, names["gate.execution_decisions"])
}
