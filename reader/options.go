package reader

import (
	"log/slog"

	"github.com/openDAQ/openDAQ-sub014/metric"
	"github.com/openDAQ/openDAQ-sub014/signal"
)

// Option configures a reader.
type Option func(*options)

type options struct {
	name        string
	mode        ReadMode
	timeoutType ReadTimeoutType
	skipEvents  bool
	logger      *slog.Logger
	metrics     *metric.Metrics
	external    signal.InputPortNotifications
	method      signal.NotificationMethod
	scheduler   signal.Scheduler
	portOpts    []signal.PortOption
}

func defaultOptions() options {
	return options{
		mode:        Scaled,
		timeoutType: All,
		logger:      slog.Default(),
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithName sets the reader name used in logs and metric labels.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithReadMode sets the read mode. Default is Scaled.
func WithReadMode(mode ReadMode) Option {
	return func(o *options) { o.mode = mode }
}

// WithReadTimeoutType sets when blocking reads return early. Default is All.
func WithReadTimeoutType(t ReadTimeoutType) Option {
	return func(o *options) { o.timeoutType = t }
}

// WithSkipEvents makes reads continue past event packets instead of stopping on them.
// Descriptor changes are still applied.
func WithSkipEvents(skip bool) Option {
	return func(o *options) { o.skipEvents = skip }
}

// WithLogger sets the reader logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics enables reader metrics.
func WithMetrics(m *metric.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithExternalListener chains a listener that receives every port callback after
// the reader handled it. Its AcceptsSignal can veto connections.
func WithExternalListener(l signal.InputPortNotifications) Option {
	return func(o *options) { o.external = l }
}

// WithNotificationMethod sets the notification method of ports the reader creates.
func WithNotificationMethod(m signal.NotificationMethod) Option {
	return func(o *options) { o.method = m }
}

// WithScheduler sets the scheduler of ports the reader creates.
func WithScheduler(s signal.Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

// WithPortOptions passes extra options to ports the reader creates.
func WithPortOptions(opts ...signal.PortOption) Option {
	return func(o *options) { o.portOpts = append(o.portOpts, opts...) }
}
