package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names.
const (
	MetricTicks          = "consist.ticks"
	MetricMessages       = "consist.messages"
	MetricCouplingEvents = "consist.coupling_events"
)

// Instruments are the counters updated by the simulation loop.
type Instruments struct {
	Ticks          metric.Int64Counter
	Messages       metric.Int64Counter
	CouplingEvents metric.Int64Counter
}

// NewInstruments registers the counters on meter.
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	ticks, err := meter.Int64Counter(MetricTicks, metric.WithDescription("simulation ticks executed"))
	if err != nil {
		return nil, err
	}
	messages, err := meter.Int64Counter(MetricMessages, metric.WithDescription("coupler messages sent, by outcome"))
	if err != nil {
		return nil, err
	}
	events, err := meter.Int64Counter(MetricCouplingEvents, metric.WithDescription("link changes and state transitions"))
	if err != nil {
		return nil, err
	}
	return &Instruments{Ticks: ticks, Messages: messages, CouplingEvents: events}, nil
}

func (in *Instruments) Tick(ctx context.Context) {
	in.Ticks.Add(ctx, 1)
}

// Message counts one send; an empty reason means it was delivered.
func (in *Instruments) Message(ctx context.Context, schema, dropped string) {
	if dropped == "" {
		dropped = "none"
	}
	in.Messages.Add(ctx, 1, metric.WithAttributes(
		attribute.String("schema", schema),
		attribute.String("dropped", dropped),
	))
}

func (in *Instruments) CouplingEvent(ctx context.Context, kind string) {
	in.CouplingEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
