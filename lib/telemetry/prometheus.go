package telemetry

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/coachpo/blockpool/observability"
)

const promNamespace = "blockpool"

// NewPrometheusMetrics adapts a prometheus registerer to the
// observability.Metrics interface. Collectors are created on first use
// of a metric name; the label set seen first fixes the collector's
// label names, and later calls missing a label report it empty.
func NewPrometheusMetrics(reg prometheus.Registerer) observability.Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := new(promMetrics)
	m.reg = reg
	m.counters = make(map[string]*labelledCollector[*prometheus.CounterVec])
	m.gauges = make(map[string]*labelledCollector[*prometheus.GaugeVec])
	m.histograms = make(map[string]*labelledCollector[*prometheus.HistogramVec])
	return m
}

type labelledCollector[C prometheus.Collector] struct {
	vec        C
	labelNames []string
}

type promMetrics struct {
	reg        prometheus.Registerer
	mu         sync.Mutex
	counters   map[string]*labelledCollector[*prometheus.CounterVec]
	gauges     map[string]*labelledCollector[*prometheus.GaugeVec]
	histograms map[string]*labelledCollector[*prometheus.HistogramVec]
}

func (m *promMetrics) IncCounter(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	entry, ok := m.counters[name]
	if !ok {
		names := labelNames(labels)
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      name,
			Help:      name,
		}, names)
		if err := m.reg.Register(vec); err != nil {
			m.mu.Unlock()
			return
		}
		entry = &labelledCollector[*prometheus.CounterVec]{vec: vec, labelNames: names}
		m.counters[name] = entry
	}
	m.mu.Unlock()
	entry.vec.WithLabelValues(labelValues(entry.labelNames, labels)...).Add(value)
}

func (m *promMetrics) SetGauge(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	entry, ok := m.gauges[name]
	if !ok {
		names := labelNames(labels)
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: promNamespace,
			Name:      name,
			Help:      name,
		}, names)
		if err := m.reg.Register(vec); err != nil {
			m.mu.Unlock()
			return
		}
		entry = &labelledCollector[*prometheus.GaugeVec]{vec: vec, labelNames: names}
		m.gauges[name] = entry
	}
	m.mu.Unlock()
	entry.vec.WithLabelValues(labelValues(entry.labelNames, labels)...).Set(value)
}

func (m *promMetrics) ObserveHistogram(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	entry, ok := m.histograms[name]
	if !ok {
		names := labelNames(labels)
		vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: promNamespace,
			Name:      name,
			Help:      name,
			Buckets:   prometheus.DefBuckets,
		}, names)
		if err := m.reg.Register(vec); err != nil {
			m.mu.Unlock()
			return
		}
		entry = &labelledCollector[*prometheus.HistogramVec]{vec: vec, labelNames: names}
		m.histograms[name] = entry
	}
	m.mu.Unlock()
	entry.vec.WithLabelValues(labelValues(entry.labelNames, labels)...).Observe(value)
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func labelValues(names []string, labels map[string]string) []string {
	values := make([]string, len(names))
	for i, name := range names {
		values[i] = labels[name]
	}
	return values
}
