// Package metric provides Prometheus-based metrics collection and an HTTP server
// for monitoring the signal data path and its readers.
//
// The package offers a registry managing both the core data path metrics
// (packets sent and enqueued, queue depth, samples read, reader events, timeouts
// and invalidations) and component-specific metrics such as buffer and worker
// pool statistics. Every metric lives in a private Prometheus registry, never the
// global default one, so several SDK instances can coexist in one process.
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        slog.Error("metrics server stopped", "error", err)
//	    }
//	}()
//
//	sig, _ := signal.NewSignal("ai0", desc, signal.WithMetrics(registry.CoreMetrics()))
//
// The server exposes Prometheus-formatted metrics at http://localhost:9090/metrics
// and a health check at http://localhost:9090/health.
//
// # Component Metrics
//
// Components register their own collectors through MetricsRegistrar. Registration
// is keyed by component and metric name; registering the same key twice returns an
// invalid-class error, and a Prometheus name clash returns one as well:
//
//	err := registry.RegisterCounter("tail-history", "buffer_writes", counter)
//
// UnregisterComponent removes everything registered under one component name, which
// is what buffers and pools do when they are closed.
//
// # Nil Metrics
//
// The Record methods on *Metrics are no-ops on a nil receiver. Components hold a
// *Metrics that stays nil unless the caller opts in.
package metric
