package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric exported by the SDK.
const Namespace = "opendaq"

// Metrics contains the core data path metrics shared by signals, ports and readers.
// All Record methods are safe on a nil receiver so components can treat metrics as optional.
type Metrics struct {
	// Producer side
	PacketsSent       *prometheus.CounterVec
	PacketsEnqueued   *prometheus.CounterVec
	QueueDepth        *prometheus.GaugeVec
	ActiveConnections prometheus.Gauge

	// Reader side
	SamplesRead          *prometheus.CounterVec
	ReaderEvents         *prometheus.CounterVec
	ReadTimeouts         *prometheus.CounterVec
	ReaderInvalidations  *prometheus.CounterVec
	ReadDuration         *prometheus.HistogramVec
	NotificationFailures *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all core metrics
func NewMetrics() *Metrics {
	return &Metrics{
		PacketsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "signal",
				Name:      "packets_sent_total",
				Help:      "Total number of packets sent by a signal",
			},
			[]string{"signal", "type"},
		),

		PacketsEnqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "connection",
				Name:      "packets_enqueued_total",
				Help:      "Total number of packets enqueued on a connection",
			},
			[]string{"port"},
		),

		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "connection",
				Name:      "queue_depth",
				Help:      "Current number of packets waiting on a connection",
			},
			[]string{"port"},
		),

		ActiveConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "connection",
				Name:      "active",
				Help:      "Number of live signal to input port connections",
			},
		),

		SamplesRead: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "reader",
				Name:      "samples_read_total",
				Help:      "Total number of samples returned by readers",
			},
			[]string{"reader"},
		),

		ReaderEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "reader",
				Name:      "events_total",
				Help:      "Total number of event packets surfaced by readers",
			},
			[]string{"reader", "event"},
		),

		ReadTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "reader",
				Name:      "timeouts_total",
				Help:      "Total number of reads that returned fewer samples than requested",
			},
			[]string{"reader"},
		),

		ReaderInvalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "reader",
				Name:      "invalidations_total",
				Help:      "Total number of readers that became invalid",
			},
			[]string{"reader", "reason"},
		),

		ReadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "reader",
				Name:      "read_duration_seconds",
				Help:      "Wall time spent inside blocking read calls",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"reader"},
		),

		NotificationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "port",
				Name:      "notification_failures_total",
				Help:      "Total number of packet notifications that could not be scheduled",
			},
			[]string{"port"},
		),
	}
}

func (c *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.PacketsSent,
		c.PacketsEnqueued,
		c.QueueDepth,
		c.ActiveConnections,
		c.SamplesRead,
		c.ReaderEvents,
		c.ReadTimeouts,
		c.ReaderInvalidations,
		c.ReadDuration,
		c.NotificationFailures,
	}
}

// RecordPacketSent increments the sent counter for a signal
func (c *Metrics) RecordPacketSent(signal, packetType string, count int) {
	if c == nil {
		return
	}
	c.PacketsSent.WithLabelValues(signal, packetType).Add(float64(count))
}

// RecordEnqueued increments the enqueued counter and updates queue depth
func (c *Metrics) RecordEnqueued(port string, count, depth int) {
	if c == nil {
		return
	}
	c.PacketsEnqueued.WithLabelValues(port).Add(float64(count))
	c.QueueDepth.WithLabelValues(port).Set(float64(depth))
}

// RecordQueueDepth updates queue depth after a dequeue
func (c *Metrics) RecordQueueDepth(port string, depth int) {
	if c == nil {
		return
	}
	c.QueueDepth.WithLabelValues(port).Set(float64(depth))
}

// RecordConnection adjusts the active connection gauge by delta
func (c *Metrics) RecordConnection(delta int) {
	if c == nil {
		return
	}
	c.ActiveConnections.Add(float64(delta))
}

// RecordSamplesRead increments the samples read counter
func (c *Metrics) RecordSamplesRead(reader string, count int) {
	if c == nil || count == 0 {
		return
	}
	c.SamplesRead.WithLabelValues(reader).Add(float64(count))
}

// RecordReaderEvent increments the reader event counter
func (c *Metrics) RecordReaderEvent(reader, eventID string) {
	if c == nil {
		return
	}
	c.ReaderEvents.WithLabelValues(reader, eventID).Inc()
}

// RecordReadTimeout increments the read timeout counter
func (c *Metrics) RecordReadTimeout(reader string) {
	if c == nil {
		return
	}
	c.ReadTimeouts.WithLabelValues(reader).Inc()
}

// RecordInvalidation increments the invalidation counter
func (c *Metrics) RecordInvalidation(reader, reason string) {
	if c == nil {
		return
	}
	c.ReaderInvalidations.WithLabelValues(reader, reason).Inc()
}

// RecordReadDuration records time spent in a read call
func (c *Metrics) RecordReadDuration(reader string, duration time.Duration) {
	if c == nil {
		return
	}
	c.ReadDuration.WithLabelValues(reader).Observe(duration.Seconds())
}

// RecordNotificationFailure increments the notification failure counter
func (c *Metrics) RecordNotificationFailure(port string) {
	if c == nil {
		return
	}
	c.NotificationFailures.WithLabelValues(port).Inc()
}
