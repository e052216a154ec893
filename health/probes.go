package health

import (
	"fmt"

	"github.com/openDAQ/openDAQ-sub014/pkg/worker"
	"github.com/openDAQ/openDAQ-sub014/signal"
)

// Probe reports the current health of one component.
type Probe func() Status

// Validity is implemented by every reader.
type Validity interface {
	IsValid() bool
}

// ReaderProbe is unhealthy once the reader has been invalidated.
func ReaderProbe(name string, r Validity) Probe {
	return func() Status {
		if r.IsValid() {
			return NewHealthy(name, "reader valid")
		}
		return NewUnhealthy(name, "reader invalidated")
	}
}

// PortProbe is unhealthy while the port has no signal, degraded once its queue has
// dropped packets.
func PortProbe(name string, port *signal.InputPort) Probe {
	return func() Status {
		conn := port.Connection()
		if conn == nil {
			return NewUnhealthy(name, "input port not connected")
		}
		stats := conn.Stats()
		m := &Metrics{Uptime: stats.Uptime, QueueDepth: stats.CurrentSize, Drops: stats.Drops}
		if stats.Drops > 0 {
			return NewDegraded(name, fmt.Sprintf("%d packets dropped", stats.Drops)).WithMetrics(m)
		}
		return NewHealthy(name, "connected to "+conn.Signal().LocalID()).WithMetrics(m)
	}
}

// SchedulerProbe is degraded when the scheduler has rejected or failed work, and
// unhealthy once its queue is full.
func SchedulerProbe(name string, s *worker.Scheduler) Probe {
	return func() Status {
		stats := s.Stats()
		m := &Metrics{
			QueueDepth: int64(stats.QueueDepth),
			Drops:      stats.Dropped,
			Processed:  stats.Processed,
			Failed:     stats.Failed + stats.Panics,
		}
		switch {
		case stats.QueueSize > 0 && stats.QueueDepth >= stats.QueueSize:
			return NewUnhealthy(name, "notification queue full").WithMetrics(m)
		case stats.Dropped > 0 || stats.Failed > 0 || stats.Panics > 0:
			return NewDegraded(name, fmt.Sprintf("%d dropped, %d failed callbacks",
				stats.Dropped, stats.Failed+stats.Panics)).WithMetrics(m)
		default:
			return NewHealthy(name, "scheduler running").WithMetrics(m)
		}
	}
}
