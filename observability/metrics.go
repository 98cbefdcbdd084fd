package observability

import (
	"sort"
	"strings"
	"sync"
)

// Metrics provides counters, gauges, and histogram recording primitives.
type Metrics interface {
	IncCounter(name string, value float64, labels map[string]string)
	ObserveHistogram(name string, value float64, labels map[string]string)
	SetGauge(name string, value float64, labels map[string]string)
}

var defaultMetrics Metrics = noopMetrics{}

// SetMetrics overrides the global metrics implementation used by the system.
func SetMetrics(metrics Metrics) {
	if metrics == nil {
		defaultMetrics = noopMetrics{}
		return
	}
	defaultMetrics = metrics
}

// Telemetry returns the current global metrics collector.
func Telemetry() Metrics {
	return defaultMetrics
}

type noopMetrics struct{}

func (noopMetrics) IncCounter(string, float64, map[string]string)       {}
func (noopMetrics) ObserveHistogram(string, float64, map[string]string) {}
func (noopMetrics) SetGauge(string, float64, map[string]string)         {}

// MetricsSnapshot captures accumulated in-memory metrics for export.
// Series keys render as name{k=v,...} with label keys sorted.
type MetricsSnapshot struct {
	Counters map[string]float64 `json:"counters"`
	Gauges   map[string]float64 `json:"gauges"`
}

// RuntimeMetrics accumulates metrics in-memory for periodic export. It
// satisfies Metrics and is the default sink for tools that run without
// an OTLP endpoint.
type RuntimeMetrics struct {
	mu       sync.Mutex
	counters map[string]float64
	gauges   map[string]float64
}

// NewRuntimeMetrics constructs a metrics accumulator with empty series.
func NewRuntimeMetrics() *RuntimeMetrics {
	metrics := new(RuntimeMetrics)
	metrics.counters = make(map[string]float64)
	metrics.gauges = make(map[string]float64)
	return metrics
}

// IncCounter adds value to the named counter series.
func (m *RuntimeMetrics) IncCounter(name string, value float64, labels map[string]string) {
	key := seriesKey(name, labels)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key] += value
}

// ObserveHistogram folds observations into _count and _sum counter series.
func (m *RuntimeMetrics) ObserveHistogram(name string, value float64, labels map[string]string) {
	countKey := seriesKey(name+"_count", labels)
	sumKey := seriesKey(name+"_sum", labels)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[countKey]++
	m.counters[sumKey] += value
}

// SetGauge records the latest value for the named gauge series.
func (m *RuntimeMetrics) SetGauge(name string, value float64, labels map[string]string) {
	key := seriesKey(name, labels)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[key] = value
}

// Snapshot copies the current accumulated state for reporting.
func (m *RuntimeMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := MetricsSnapshot{
		Counters: make(map[string]float64, len(m.counters)),
		Gauges:   make(map[string]float64, len(m.gauges)),
	}
	for k, v := range m.counters {
		snapshot.Counters[k] = v
	}
	for k, v := range m.gauges {
		snapshot.Gauges[k] = v
	}
	return snapshot
}

func seriesKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')
	return b.String()
}
