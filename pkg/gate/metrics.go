package gate

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "deltanear.gate"

// gateMetrics counts gate decisions by outcome. Counters only: the gate's
// own operations are synchronous and fast, so latency histograms add
// nothing.
type gateMetrics struct {
	simulations     metric.Int64Counter
	replayPrevented metric.Int64Counter
	decisions       metric.Int64Counter
}

func newGateMetrics(provider metric.MeterProvider) (*gateMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	simulations, err := meter.Int64Counter("gate.simulations",
		metric.WithDescription("Simulation attempts by result"))
	if err != nil {
		return nil, err
	}
	replay, err := meter.Int64Counter("gate.replay_prevented",
		metric.WithDescription("Replay-prevention rejections by reason"))
	if err != nil {
		return nil, err
	}
	decisions, err := meter.Int64Counter("gate.execution_decisions",
		metric.WithDescription("Execution gate decisions by outcome"))
	if err != nil {
		return nil, err
	}
	return &gateMetrics{simulations: simulations, replayPrevented: replay, decisions: decisions}, nil
}

func (m *gateMetrics) recordSimulation(ctx context.Context, result string) {
	m.simulations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *gateMetrics) recordReplayPrevented(ctx context.Context, reason string) {
	m.replayPrevented.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *gateMetrics) recordDecision(ctx context.Context, allowed bool, reason string) {
	attrs := []attribute.KeyValue{attribute.Bool("allowed", allowed)}
	if reason != "" {
		attrs = append(attrs, attribute.String("reason", reason))
	}
	m.decisions.Add(ctx, 1, metric.WithAttributes(attrs...))
}
