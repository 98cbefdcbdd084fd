package telemetry

import (
	"context"
	"sync"

	apimetric "go.opentelemetry.io/otel/metric"

	"github.com/coachpo/blockpool/observability"
)

const meterName = "github.com/coachpo/blockpool"

// NewMetrics adapts a MeterProvider to the observability.Metrics
// interface. Instruments are created lazily and cached per metric name.
func NewMetrics(provider apimetric.MeterProvider) observability.Metrics {
	m := new(otelMetrics)
	m.meter = provider.Meter(meterName)
	m.counters = make(map[string]apimetric.Float64Counter)
	m.gauges = make(map[string]apimetric.Float64Gauge)
	m.histograms = make(map[string]apimetric.Float64Histogram)
	return m
}

type otelMetrics struct {
	meter      apimetric.Meter
	mu         sync.Mutex
	counters   map[string]apimetric.Float64Counter
	gauges     map[string]apimetric.Float64Gauge
	histograms map[string]apimetric.Float64Histogram
}

func (m *otelMetrics) IncCounter(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	inst, ok := m.counters[name]
	if !ok {
		created, err := m.meter.Float64Counter(name)
		if err != nil {
			m.mu.Unlock()
			return
		}
		m.counters[name] = created
		inst = created
	}
	m.mu.Unlock()
	inst.Add(context.Background(), value, apimetric.WithAttributes(attributesFromLabels(labels)...))
}

func (m *otelMetrics) SetGauge(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	inst, ok := m.gauges[name]
	if !ok {
		created, err := m.meter.Float64Gauge(name)
		if err != nil {
			m.mu.Unlock()
			return
		}
		m.gauges[name] = created
		inst = created
	}
	m.mu.Unlock()
	inst.Record(context.Background(), value, apimetric.WithAttributes(attributesFromLabels(labels)...))
}

func (m *otelMetrics) ObserveHistogram(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	inst, ok := m.histograms[name]
	if !ok {
		created, err := m.meter.Float64Histogram(name)
		if err != nil {
			m.mu.Unlock()
			return
		}
		m.histograms[name] = created
		inst = created
	}
	m.mu.Unlock()
	inst.Record(context.Background(), value, apimetric.WithAttributes(attributesFromLabels(labels)...))
}
