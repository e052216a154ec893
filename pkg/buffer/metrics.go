package buffer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/openDAQ/openDAQ-sub014/metric"
)

// bufferMetrics holds Prometheus metrics for buffer operations.
type bufferMetrics struct {
	registry *metric.MetricsRegistry
	prefix   string

	writes    prometheus.Counter
	reads     prometheus.Counter
	peeks     prometheus.Counter
	overflows prometheus.Counter
	drops     prometheus.Counter
	grows     prometheus.Counter

	size        prometheus.Gauge
	capacity    prometheus.Gauge
	utilization prometheus.Gauge
}

func newCounter(prefix, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   metric.Namespace,
		Subsystem:   "buffer",
		Name:        name,
		ConstLabels: prometheus.Labels{"component": prefix},
		Help:        help,
	})
}

func newGauge(prefix, name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   metric.Namespace,
		Subsystem:   "buffer",
		Name:        name,
		ConstLabels: prometheus.Labels{"component": prefix},
		Help:        help,
	})
}

// newBufferMetrics creates and registers buffer metrics with the provided registry.
func newBufferMetrics(registry *metric.MetricsRegistry, prefix string) (*bufferMetrics, error) {
	m := &bufferMetrics{
		registry:    registry,
		prefix:      prefix,
		writes:      newCounter(prefix, "writes_total", "Total number of buffer write operations"),
		reads:       newCounter(prefix, "reads_total", "Total number of buffer read operations"),
		peeks:       newCounter(prefix, "peeks_total", "Total number of buffer peek operations"),
		overflows:   newCounter(prefix, "overflows_total", "Total number of buffer overflow events"),
		drops:       newCounter(prefix, "drops_total", "Total number of items dropped due to overflow"),
		grows:       newCounter(prefix, "grows_total", "Total number of times the buffer grew"),
		size:        newGauge(prefix, "size", "Current number of items in buffer"),
		capacity:    newGauge(prefix, "capacity", "Current buffer capacity"),
		utilization: newGauge(prefix, "utilization", "Buffer utilization as a fraction (0.0 to 1.0)"),
	}

	var registered []string
	rollback := func() {
		for _, name := range registered {
			registry.Unregister(prefix, name)
		}
	}

	counters := map[string]prometheus.Counter{
		"buffer_writes":    m.writes,
		"buffer_reads":     m.reads,
		"buffer_peeks":     m.peeks,
		"buffer_overflows": m.overflows,
		"buffer_drops":     m.drops,
		"buffer_grows":     m.grows,
	}
	for name, c := range counters {
		if err := registry.RegisterCounter(prefix, name, c); err != nil {
			rollback()
			return nil, err
		}
		registered = append(registered, name)
	}
	gauges := map[string]prometheus.Gauge{
		"buffer_size":        m.size,
		"buffer_capacity":    m.capacity,
		"buffer_utilization": m.utilization,
	}
	for name, g := range gauges {
		if err := registry.RegisterGauge(prefix, name, g); err != nil {
			rollback()
			return nil, err
		}
		registered = append(registered, name)
	}

	return m, nil
}

func (m *bufferMetrics) recordWrite()    { m.writes.Inc() }
func (m *bufferMetrics) recordRead()     { m.reads.Inc() }
func (m *bufferMetrics) recordPeek()     { m.peeks.Inc() }
func (m *bufferMetrics) recordOverflow() { m.overflows.Inc() }
func (m *bufferMetrics) recordDrop()     { m.drops.Inc() }

func (m *bufferMetrics) recordGrow(capacity int) {
	m.grows.Inc()
	m.capacity.Set(float64(capacity))
}

// updateSize sets the current buffer size and utilization.
func (m *bufferMetrics) updateSize(size, capacity int) {
	m.size.Set(float64(size))
	m.capacity.Set(float64(capacity))
	m.utilization.Set(float64(size) / float64(capacity))
}

func (m *bufferMetrics) unregister() {
	m.registry.UnregisterComponent(m.prefix)
}
