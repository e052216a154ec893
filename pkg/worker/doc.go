// Package worker provides a generic, thread-safe worker pool and a callback
// Scheduler built on top of it.
//
// # Pool
//
// The pool manages a fixed number of goroutines that process work items from a
// bounded channel:
//   - Non-blocking Submit: a full queue returns ErrQueueFull instead of blocking
//   - Context-aware cancellation and Stop with a drain timeout
//   - Panics in a processor are recovered and counted; the worker keeps running
//   - Always-on statistics plus optional Prometheus metrics
//
//	pool, err := worker.NewPool[Job](4, 256,
//	    func(ctx context.Context, job Job) error {
//	        return job.Run(ctx)
//	    },
//	    worker.WithMetricsRegistry[Job](registry, "jobs"),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//	defer pool.Stop(5 * time.Second)
//
// # Scheduler
//
// Scheduler wraps a Pool[func()] and satisfies the signal package's Scheduler
// interface. Input ports in Scheduler notification mode post their packet-received
// callbacks to it:
//
//	sched, _ := worker.NewScheduler(2, 1024, worker.WithSchedulerLogger(logger))
//	_ = sched.Start(ctx)
//	port, _ := signal.NewInputPort("in",
//	    signal.WithScheduler(sched),
//	    signal.WithNotificationMethod(signal.NotifyScheduler))
//
// ScheduleWork errors are classified: a full queue is transient, a stopped
// scheduler is fatal. The input port falls back to running the callback on the
// producer goroutine when scheduling fails, so notifications are never lost.
//
// # Sentinel Errors
//
// Pool sentinels wrap the SDK's errors package sentinels, so
// errors.Is(worker.ErrQueueFull, errors.ErrResourceExhausted) holds.
package worker
