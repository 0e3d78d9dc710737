package observability

import (
	"context"

	"pool-escrow/internal/domain"
)

// eventSink matches the ledger event sink contract.
type eventSink interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// InstrumentedSink wraps another sink and counts its publish failures under
// the given sink name. The error is passed through unchanged.
type InstrumentedSink struct {
	name    string
	inner   eventSink
	metrics *Metrics
}

// InstrumentSink wraps a sink with failure counting.
func InstrumentSink(name string, inner eventSink, metrics *Metrics) *InstrumentedSink {
	return &InstrumentedSink{name: name, inner: inner, metrics: metrics}
}

// Publish delegates to the wrapped sink.
func (s *InstrumentedSink) Publish(ctx context.Context, ev domain.Event) error {
	err := s.inner.Publish(ctx, ev)
	if err != nil {
		s.metrics.SinkErrors.WithLabelValues(s.name).Inc()
	}
	return err
}

// MetricsSink counts emitted ledger events. It satisfies the ledger event
// sink contract and never returns an error.
type MetricsSink struct {
	metrics *Metrics
}

// NewMetricsSink creates a sink updating the given metrics.
func NewMetricsSink(metrics *Metrics) *MetricsSink {
	return &MetricsSink{metrics: metrics}
}

// Publish updates counters for the event.
func (s *MetricsSink) Publish(_ context.Context, ev domain.Event) error {
	s.metrics.EventsPublished.WithLabelValues(string(ev.EventType())).Inc()

	switch e := ev.(type) {
	case domain.PoolCreated:
		s.metrics.PoolsCreated.Inc()
	case domain.ParticipantEntered:
		s.metrics.Admissions.Inc()
	case domain.PoolFundsWithdrawn:
		s.metrics.Withdrawals.Inc()
		s.metrics.DistributedTotal.Add(float64(e.Total - e.Remainder))
	}
	return nil
}
