// Package health reports the health of the data path: readers, input port queues
// and the notification scheduler.
//
// A Status is one of three states. Healthy means the component works normally.
// Degraded means data flows but packets were dropped or callbacks failed.
// Unhealthy means no data can flow, for example an invalidated reader or an
// input port without a signal.
//
// Components are tracked by a Monitor. Values can be pushed with Update, or a
// Probe can be registered and polled by Check:
//
//	monitor := health.NewMonitor()
//	monitor.Register("reader", health.ReaderProbe("reader", r))
//	monitor.Register("port", health.PortProbe("port", port))
//	monitor.Register("scheduler", health.SchedulerProbe("scheduler", sched))
//
//	status := monitor.Check("daqreader")
//	server.SetHealthy(!status.IsUnhealthy())
//
// Aggregation follows the usual rules. Any unhealthy component makes the
// aggregate unhealthy, and otherwise any degraded component makes it degraded.
//
// Error text published through FromError is sanitized: URLs, file paths and IP
// addresses are replaced by placeholders.
package health
