package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/openDAQ/openDAQ-sub014/errors"
	"github.com/openDAQ/openDAQ-sub014/metric"
)

// Scheduler runs short callbacks on a fixed set of worker goroutines. Input ports in
// Scheduler notification mode hand their packet-received callbacks to it so the
// producer's SendPacket returns without running listener code.
//
// Callbacks for the same port may run concurrently on different workers; listeners
// must be safe for concurrent use.
type Scheduler struct {
	pool   *Pool[func()]
	logger *slog.Logger
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*schedulerConfig)

type schedulerConfig struct {
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	prefix   string
}

// WithSchedulerLogger sets the logger used for callback failures.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(c *schedulerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSchedulerMetrics exports the underlying pool metrics under prefix.
func WithSchedulerMetrics(registry *metric.MetricsRegistry, prefix string) SchedulerOption {
	return func(c *schedulerConfig) {
		c.registry = registry
		c.prefix = prefix
	}
}

// NewScheduler creates a scheduler with the given worker count and queue size.
// Zero values use the pool defaults.
func NewScheduler(workers, queueSize int, opts ...SchedulerOption) (*Scheduler, error) {
	cfg := schedulerConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Scheduler{logger: cfg.logger.With("component", "scheduler")}

	poolOpts := []Option[func()]{
		WithErrorHandler(func(_ func(), err error) {
			s.logger.Error("scheduled callback failed", "error", err)
		}),
	}
	if cfg.registry != nil && cfg.prefix != "" {
		poolOpts = append(poolOpts, WithMetricsRegistry[func()](cfg.registry, cfg.prefix))
	}

	pool, err := NewPool(workers, queueSize, func(_ context.Context, fn func()) error {
		fn()
		return nil
	}, poolOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "Scheduler", "NewScheduler", "pool creation")
	}
	s.pool = pool
	return s, nil
}

// Start launches the workers. They stop when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.pool.Start(ctx); err != nil {
		return errors.WrapInvalid(err, "Scheduler", "Start", "pool start")
	}
	s.logger.Debug("scheduler started", "workers", s.pool.workers, "queue_size", s.pool.queueSize)
	return nil
}

// ScheduleWork queues fn without blocking. A full queue returns a transient error;
// a stopped scheduler returns a fatal one wrapping ErrSchedulerStopped.
func (s *Scheduler) ScheduleWork(fn func()) error {
	if fn == nil {
		return errors.WrapInvalid(errors.ErrArgumentNull, "Scheduler", "ScheduleWork", "callback check")
	}
	err := s.pool.Submit(fn)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrQueueFull):
		return errors.WrapTransient(err, "Scheduler", "ScheduleWork", "submit")
	case errors.Is(err, ErrPoolStopped):
		return errors.WrapFatal(err, "Scheduler", "ScheduleWork", "submit")
	default:
		return errors.WrapInvalid(err, "Scheduler", "ScheduleWork", "submit")
	}
}

// Stop drains queued callbacks, waiting at most timeout.
func (s *Scheduler) Stop(timeout time.Duration) error {
	if err := s.pool.Stop(timeout); err != nil {
		return errors.WrapTransient(err, "Scheduler", "Stop", "drain")
	}
	s.logger.Debug("scheduler stopped", "processed", s.pool.processed.Load())
	return nil
}

// Stats returns the underlying pool statistics.
func (s *Scheduler) Stats() PoolStats {
	return s.pool.Stats()
}
