// Package opendaq is the signal data path and reader SDK of an openDAQ-style
// acquisition stack. Producers publish sample packets on signals; consumers
// connect input ports to those signals and read typed samples through readers.
//
// # Architecture
//
//	┌──────────────────────────────┐
//	│   Signal (value + domain)    │  descriptors, SendPacket fan-out
//	└──────────────┬───────────────┘
//	               ↓ one Connection (FIFO) per port
//	┌──────────────────────────────┐
//	│          InputPort           │  listener callbacks, scheduler
//	└──────────────┬───────────────┘
//	               ↓ notifies
//	┌──────────────────────────────┐
//	│            Reader            │  Packet / Stream / Tail / Multi
//	└──────────────────────────────┘
//
// A value signal usually has a domain signal carrying time. Each data packet of a
// value signal references the domain packet for the same samples, so readers can
// return domain values alongside values without a second queue.
//
// Descriptor changes travel in-band as event packets. Connecting a port enqueues
// the current descriptors first, and every SetDescriptor enqueues an event before
// any later data. Readers stop on these events so callers see exactly where the
// sample format changed.
//
// # Packages
//
// Data path:
//   - packet: data descriptors, sample types, data and event packets
//   - signal: signals, input ports, connections and listener notifications
//   - reader: PacketReader, StreamReader, TailReader and MultiReader
//
// Infrastructure:
//   - config: JSON and YAML runtime configuration
//   - errors: error classification and wrapping
//   - health: reader, port and scheduler health probes
//   - metric: Prometheus metrics registry and HTTP endpoint
//   - pkg/buffer: generic circular buffers backing connection queues and tail history
//   - pkg/worker: worker pool and the notification scheduler
//   - pkg/retry: backoff for transient failures
//   - pkg/timestamp: tick and wall-clock conversions
//   - testutil: producers and recording listeners for tests
//
// # Usage
//
//	timeSig, _ := signal.NewSignal("time", timeDesc)
//	sig, _ := signal.NewSignal("ai0", valueDesc, signal.WithDomainSignal(timeSig))
//
//	r, _ := reader.NewStreamReader[float64, int64](sig)
//	defer r.Close()
//
//	values := make([]float64, 100)
//	domain := make([]int64, 100)
//	n, status, err := r.ReadWithDomain(values, domain, 50*time.Millisecond)
//
// # Binary
//
// cmd/daqreader generates synthetic signals and reads them with any of the
// readers, exposing metrics when configured:
//
//	go run ./cmd/daqreader --reader=multi --signals=3 --config=daq.yaml
package opendaq
