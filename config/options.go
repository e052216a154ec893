package config

import (
	"log/slog"

	"github.com/openDAQ/openDAQ-sub014/metric"
	"github.com/openDAQ/openDAQ-sub014/pkg/worker"
	"github.com/openDAQ/openDAQ-sub014/reader"
	"github.com/openDAQ/openDAQ-sub014/signal"
)

// ReaderOptions converts the reader section into reader options. extra is appended,
// so it overrides the configured defaults. The config must be valid.
func (c *Config) ReaderOptions(extra ...reader.Option) []reader.Option {
	mode, _ := reader.ParseReadMode(c.Reader.ReadMode)
	timeoutType, _ := reader.ParseReadTimeoutType(c.Reader.TimeoutType)
	method, _ := signal.ParseNotificationMethod(c.Reader.NotificationMethod)

	opts := []reader.Option{
		reader.WithReadMode(mode),
		reader.WithReadTimeoutType(timeoutType),
		reader.WithSkipEvents(c.Reader.SkipEvents),
		reader.WithNotificationMethod(method),
	}
	if c.Reader.QueueCapacity > 0 || c.Reader.QueueLimit > 0 {
		opts = append(opts, reader.WithPortOptions(
			signal.WithQueueCapacity(c.Reader.QueueCapacity, c.Reader.QueueLimit)))
	}
	return append(opts, extra...)
}

// PortOptions converts the reader section into options for ports created outside
// a reader.
func (c *Config) PortOptions(extra ...signal.PortOption) []signal.PortOption {
	method, _ := signal.ParseNotificationMethod(c.Reader.NotificationMethod)
	opts := []signal.PortOption{signal.WithNotificationMethod(method)}
	if c.Reader.QueueCapacity > 0 || c.Reader.QueueLimit > 0 {
		opts = append(opts, signal.WithQueueCapacity(c.Reader.QueueCapacity, c.Reader.QueueLimit))
	}
	return append(opts, extra...)
}

// NewScheduler builds the notification scheduler described by the scheduler
// section. registry may be nil. The caller starts and stops it.
func (c *Config) NewScheduler(logger *slog.Logger, registry *metric.MetricsRegistry) (*worker.Scheduler, error) {
	opts := []worker.SchedulerOption{worker.WithSchedulerLogger(logger)}
	if registry != nil {
		opts = append(opts, worker.WithSchedulerMetrics(registry, "scheduler"))
	}
	return worker.NewScheduler(c.Scheduler.Workers, c.Scheduler.QueueSize, opts...)
}

// SlogLevel returns the configured log level, info when unknown.
func (c *Config) SlogLevel() slog.Level {
	switch c.Logging.Level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
