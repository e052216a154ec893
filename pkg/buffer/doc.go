// Package buffer provides thread-safe ring buffers with configurable overflow policies,
// built-in statistics tracking, and optional Prometheus metrics integration.
//
// # Quick Start
//
//	buf, err := buffer.NewCircularBuffer[int](1000)
//	if err != nil {
//		return err
//	}
//
//	err = buf.Write(42)
//	value, ok := buf.Read()
//
// # Overflow Policies
//
//   - DropOldest: Remove oldest item to make room (default)
//   - DropNewest: Reject new items when full
//   - Grow: Double the capacity, optionally capped by WithMaxCapacity
//
// A connection keeps its packets in a Grow buffer so the producer never blocks and
// no packet is lost:
//
//	queue, _ := buffer.NewCircularBuffer[packet.Packet](16,
//		buffer.WithOverflowPolicy[packet.Packet](buffer.Grow),
//	)
//
// A tail reader keeps its history in a DropOldest buffer sized to the history
// length and copies the newest values with Tail:
//
//	history, _ := buffer.NewCircularBuffer[float64](historySize)
//	last10 := history.Tail(10)
//
// # Observability
//
// Statistics are always on and use atomic counters. Prometheus metrics are optional:
//
//	buf, err := buffer.NewCircularBuffer[packet.Packet](16,
//		buffer.WithMetrics[packet.Packet](registry, "port_ai0"),
//	)
//
// Metric names are opendaq_buffer_* with a component const label set to the prefix.
// Close unregisters them, so a prefix can be reused after the buffer is closed.
//
// # Thread Safety
//
// All operations are safe for concurrent use. Drop callbacks run after the buffer
// lock is released and may call back into the buffer.
package buffer
