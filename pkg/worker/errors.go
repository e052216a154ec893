package worker

import (
	"fmt"

	"github.com/openDAQ/openDAQ-sub014/errors"
)

// Sentinel errors for worker pool operations. Each wraps the SDK error it
// corresponds to so callers can classify them with the errors package.
var (
	// ErrPoolNotStarted indicates the pool hasn't been started yet
	ErrPoolNotStarted = fmt.Errorf("worker pool not started: %w", errors.ErrInvalidState)

	// ErrPoolStopped indicates the pool has been stopped
	ErrPoolStopped = fmt.Errorf("worker pool stopped: %w", errors.ErrSchedulerStopped)

	// ErrPoolAlreadyStarted indicates Start() was called on an already-started pool
	ErrPoolAlreadyStarted = fmt.Errorf("worker pool already started: %w", errors.ErrInvalidState)

	// ErrQueueFull indicates the work queue is at capacity
	ErrQueueFull = fmt.Errorf("worker pool queue full: %w", errors.ErrResourceExhausted)

	// ErrNilProcessor indicates a nil processor function was provided
	ErrNilProcessor = fmt.Errorf("processor function cannot be nil: %w", errors.ErrArgumentNull)

	// ErrStopTimeout indicates the pool didn't stop within the timeout
	ErrStopTimeout = fmt.Errorf("timeout waiting for workers to stop: %w", errors.ErrTimeout)
)

// PanicError is returned for a work item whose processor panicked.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("worker panicked: %v", e.Value)
}
