package buffer

import (
	"github.com/openDAQ/openDAQ-sub014/metric"
)

// Option configures buffer behavior using the functional options pattern.
type Option[T any] func(*bufferOptions[T])

// bufferOptions holds internal configuration for buffer instances.
// Stats are ALWAYS collected - they are not optional.
type bufferOptions[T any] struct {
	overflowPolicy OverflowPolicy
	maxCapacity    int
	dropCallback   DropCallback[T]
	retain         func(T) bool

	// metricsReg is optional - if provided, buffer stats are also exposed as Prometheus metrics
	metricsReg *metric.MetricsRegistry

	// metricsPrefix is used as the component label for Prometheus metrics
	metricsPrefix string
}

// WithOverflowPolicy sets the overflow behavior for the buffer.
// Defaults to DropOldest if not specified.
func WithOverflowPolicy[T any](policy OverflowPolicy) Option[T] {
	return func(opts *bufferOptions[T]) {
		opts.overflowPolicy = policy
	}
}

// WithMaxCapacity caps growth for the Grow policy. Once the cap is reached the
// buffer behaves like DropNewest. Zero means unbounded.
func WithMaxCapacity[T any](max int) Option[T] {
	return func(opts *bufferOptions[T]) {
		if max > 0 {
			opts.maxCapacity = max
		}
	}
}

// WithMetrics enables Prometheus metrics export for buffer statistics.
// If registry is nil or prefix is empty, this option is ignored.
func WithMetrics[T any](registry *metric.MetricsRegistry, prefix string) Option[T] {
	return func(opts *bufferOptions[T]) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

// WithDropCallback sets a callback function that is called when items are dropped.
func WithDropCallback[T any](callback DropCallback[T]) Option[T] {
	return func(opts *bufferOptions[T]) {
		opts.dropCallback = callback
	}
}

// WithRetain marks items that must never be dropped by a capped Grow buffer.
// Retained items are stored past the cap; other items are still dropped once
// the buffer holds maxCapacity items.
func WithRetain[T any](retain func(item T) bool) Option[T] {
	return func(opts *bufferOptions[T]) {
		opts.retain = retain
	}
}

func applyOptions[T any](options ...Option[T]) *bufferOptions[T] {
	opts := &bufferOptions[T]{
		overflowPolicy: DropOldest,
	}

	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}

	return opts
}
