// Package buffer provides generic, thread-safe ring buffers with various overflow policies.
//
// This package offers:
//   - CircularBuffer: ring buffer with configurable overflow policies
//   - Support for DropOldest, DropNewest and Grow overflow policies
//   - Statistics always enabled for observability
//   - Optional Prometheus metrics integration via functional options
//
// Connections use a Grow buffer as their packet FIFO; tail readers use a
// DropOldest buffer as their sample history.
package buffer

// Buffer represents a generic buffer interface that all buffer implementations must satisfy.
// The buffer is parameterized by item type T for type safety.
type Buffer[T any] interface {
	// Write adds an item to the buffer. Behavior depends on the overflow policy when
	// the buffer is full.
	Write(item T) error

	// WriteBatch adds items in order under a single lock acquisition.
	WriteBatch(items []T) error

	// Read retrieves and removes one item from the buffer.
	// Returns the item and true if successful, zero value and false if buffer is empty.
	Read() (T, bool)

	// ReadBatch retrieves and removes up to max items from the buffer.
	ReadBatch(max int) []T

	// ReadAll retrieves and removes every item.
	ReadAll() []T

	// Peek retrieves the oldest item without removing it.
	Peek() (T, bool)

	// PeekAt retrieves the item at position i (0 is the oldest) without removing it.
	PeekAt(i int) (T, bool)

	// Tail copies the newest n items, oldest first, without removing them.
	Tail(n int) []T

	// Range calls fn for each item from oldest to newest until fn returns false.
	// fn must not call back into the buffer.
	Range(fn func(i int, item T) bool)

	// Size returns the current number of items in the buffer.
	Size() int

	// Capacity returns the number of items the buffer can hold before its overflow
	// policy applies.
	Capacity() int

	// IsFull returns true if the buffer is at capacity.
	IsFull() bool

	// IsEmpty returns true if the buffer contains no items.
	IsEmpty() bool

	// Clear removes all items from the buffer.
	Clear()

	// Stats returns buffer statistics (always available for observability).
	Stats() *Statistics

	// Close shuts down the buffer and unregisters its metrics.
	Close() error
}

// OverflowPolicy defines how the buffer behaves when it reaches capacity.
type OverflowPolicy int

const (
	// DropOldest removes the oldest item to make room for new items.
	DropOldest OverflowPolicy = iota

	// DropNewest drops new items when the buffer is full.
	DropNewest

	// Grow doubles the capacity when the buffer is full, up to an optional limit.
	Grow
)

// String returns a human-readable representation of the overflow policy.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	case Grow:
		return "Grow"
	default:
		return "Unknown"
	}
}

// ParseOverflowPolicy converts a config string into a policy.
func ParseOverflowPolicy(s string) (OverflowPolicy, bool) {
	switch s {
	case "drop_oldest", "DropOldest":
		return DropOldest, true
	case "drop_newest", "DropNewest":
		return DropNewest, true
	case "grow", "Grow", "":
		return Grow, true
	default:
		return Grow, false
	}
}

// DropCallback is called when an item is dropped due to overflow policy.
// It receives the item that was dropped.
type DropCallback[T any] func(item T)

// NewCircularBuffer creates a new circular buffer with the specified capacity and options.
// Stats are ALWAYS collected for observability. Metrics are optional via WithMetrics().
// Returns an error if metrics registration fails when metrics are requested.
func NewCircularBuffer[T any](capacity int, options ...Option[T]) (Buffer[T], error) {
	opts := applyOptions(options...)
	return newCircularBuffer(capacity, opts)
}
