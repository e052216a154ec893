package buffer

import (
	"sync"

	"github.com/openDAQ/openDAQ-sub014/errors"
)

// circularBuffer is a thread-safe ring buffer with configurable overflow policies.
type circularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	capacity int
	size     int
	head     int            // Points to the next write position
	tail     int            // Points to the next read position
	stats    *Statistics    // ALWAYS initialized for observability
	metrics  *bufferMetrics // Optional Prometheus metrics
	opts     *bufferOptions[T]
	closed   bool
}

// newCircularBuffer creates a new circular buffer instance.
// Returns an error if metrics registration fails when requested.
func newCircularBuffer[T any](capacity int, opts *bufferOptions[T]) (*circularBuffer[T], error) {
	if capacity <= 0 {
		capacity = 1 // Minimum capacity
	}
	if opts.maxCapacity > 0 && capacity > opts.maxCapacity {
		capacity = opts.maxCapacity
	}

	var metrics *bufferMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newBufferMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "buffer", "newCircularBuffer", "metrics registration")
		}
	}

	return &circularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		stats:    NewStatistics(),
		metrics:  metrics,
		opts:     opts,
	}, nil
}

// Write adds an item to the buffer according to the overflow policy.
func (cb *circularBuffer[T]) Write(item T) error {
	cb.mu.Lock()
	if cb.closed {
		cb.mu.Unlock()
		return errors.WrapInvalid(errors.ErrInvalidState, "Buffer", "Write", "buffer closed")
	}
	dropped, droppedOK := cb.put(item)
	cb.recordSize()
	cb.mu.Unlock()

	if droppedOK && cb.opts.dropCallback != nil {
		cb.opts.dropCallback(dropped)
	}
	return nil
}

// WriteBatch adds items in order. Drop callbacks run after the lock is released.
func (cb *circularBuffer[T]) WriteBatch(items []T) error {
	if len(items) == 0 {
		return nil
	}

	cb.mu.Lock()
	if cb.closed {
		cb.mu.Unlock()
		return errors.WrapInvalid(errors.ErrInvalidState, "Buffer", "WriteBatch", "buffer closed")
	}
	var droppedItems []T
	for _, item := range items {
		if dropped, ok := cb.put(item); ok && cb.opts.dropCallback != nil {
			droppedItems = append(droppedItems, dropped)
		}
	}
	cb.recordSize()
	cb.mu.Unlock()

	for _, item := range droppedItems {
		cb.opts.dropCallback(item)
	}
	return nil
}

// put stores one item and returns the item dropped to make room, if any.
// Caller holds the write lock.
func (cb *circularBuffer[T]) put(item T) (T, bool) {
	var zero T

	policy := cb.opts.overflowPolicy
	if policy == Grow && cb.opts.maxCapacity > 0 && cb.size >= cb.opts.maxCapacity {
		if cb.opts.retain == nil || !cb.opts.retain(item) {
			cb.recordDrop()
			return item, true
		}
		// Retained items go past the cap.
		if cb.size == cb.capacity {
			cb.resize(cb.capacity + 1)
		}
		cb.insert(item)
		return zero, false
	}

	if cb.size == cb.capacity {
		switch policy {
		case Grow:
			cb.grow()

		case DropOldest:
			droppedItem := cb.items[cb.tail]
			cb.items[cb.tail] = zero
			cb.tail = (cb.tail + 1) % cb.capacity
			cb.size--
			cb.recordDrop()
			cb.insert(item)
			return droppedItem, true

		case DropNewest:
			cb.recordDrop()
			return item, true
		}
	}

	cb.insert(item)
	return zero, false
}

func (cb *circularBuffer[T]) insert(item T) {
	cb.items[cb.head] = item
	cb.head = (cb.head + 1) % cb.capacity
	cb.size++

	cb.stats.Write()
	if cb.metrics != nil {
		cb.metrics.recordWrite()
	}
}

// grow doubles the backing array up to the growth cap.
func (cb *circularBuffer[T]) grow() {
	newCapacity := cb.capacity * 2
	if cb.opts.maxCapacity > 0 && newCapacity > cb.opts.maxCapacity {
		newCapacity = cb.opts.maxCapacity
	}
	cb.resize(newCapacity)
}

// resize moves the items into a new backing array, unrolling the ring so tail is
// at index 0.
func (cb *circularBuffer[T]) resize(newCapacity int) {
	items := make([]T, newCapacity)
	n := copy(items, cb.items[cb.tail:])
	copy(items[n:], cb.items[:cb.tail])

	cb.items = items
	cb.tail = 0
	cb.head = cb.size % newCapacity
	cb.capacity = newCapacity

	cb.stats.Grow()
	if cb.metrics != nil {
		cb.metrics.recordGrow(newCapacity)
	}
}

func (cb *circularBuffer[T]) recordDrop() {
	cb.stats.Overflow()
	cb.stats.Drop()
	if cb.metrics != nil {
		cb.metrics.recordOverflow()
		cb.metrics.recordDrop()
	}
}

func (cb *circularBuffer[T]) recordSize() {
	cb.stats.UpdateSize(int64(cb.size))
	if cb.metrics != nil {
		cb.metrics.updateSize(cb.size, cb.capacity)
	}
}

// Read retrieves and removes one item from the buffer.
func (cb *circularBuffer[T]) Read() (T, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	var zero T
	if cb.size == 0 {
		return zero, false
	}

	item := cb.take()
	cb.recordSize()
	return item, true
}

// take removes the oldest item. Caller holds the write lock and checked size.
func (cb *circularBuffer[T]) take() T {
	var zero T
	item := cb.items[cb.tail]
	cb.items[cb.tail] = zero // Clear for GC
	cb.tail = (cb.tail + 1) % cb.capacity
	cb.size--

	cb.stats.Read()
	if cb.metrics != nil {
		cb.metrics.recordRead()
	}
	return item
}

// ReadBatch retrieves and removes up to max items from the buffer.
func (cb *circularBuffer[T]) ReadBatch(max int) []T {
	if max <= 0 {
		return nil
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.size == 0 {
		return nil
	}

	readCount := min(max, cb.size)
	result := make([]T, readCount)
	for i := range result {
		result[i] = cb.take()
	}
	cb.recordSize()
	return result
}

// ReadAll retrieves and removes every item.
func (cb *circularBuffer[T]) ReadAll() []T {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.size == 0 {
		return nil
	}

	result := make([]T, cb.size)
	for i := range result {
		result[i] = cb.take()
	}
	cb.recordSize()
	return result
}

// Peek retrieves the oldest item without removing it from the buffer.
func (cb *circularBuffer[T]) Peek() (T, bool) {
	return cb.PeekAt(0)
}

// PeekAt retrieves the item at position i, counted from the oldest.
func (cb *circularBuffer[T]) PeekAt(i int) (T, bool) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	var zero T
	if i < 0 || i >= cb.size {
		return zero, false
	}

	cb.stats.Peek()
	if cb.metrics != nil {
		cb.metrics.recordPeek()
	}
	return cb.items[(cb.tail+i)%cb.capacity], true
}

// Tail copies the newest n items, oldest first.
func (cb *circularBuffer[T]) Tail(n int) []T {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	n = min(n, cb.size)
	if n <= 0 {
		return nil
	}

	result := make([]T, n)
	start := cb.tail + cb.size - n
	for i := range result {
		result[i] = cb.items[(start+i)%cb.capacity]
	}
	return result
}

// Range calls fn for each item from oldest to newest until fn returns false.
func (cb *circularBuffer[T]) Range(fn func(i int, item T) bool) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	for i := 0; i < cb.size; i++ {
		if !fn(i, cb.items[(cb.tail+i)%cb.capacity]) {
			return
		}
	}
}

// Size returns the current number of items in the buffer.
func (cb *circularBuffer[T]) Size() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.size
}

// Capacity returns the current capacity; it changes only under the Grow policy.
func (cb *circularBuffer[T]) Capacity() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.capacity
}

// IsFull returns true if the buffer is at capacity.
func (cb *circularBuffer[T]) IsFull() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.size == cb.capacity
}

// IsEmpty returns true if the buffer contains no items.
func (cb *circularBuffer[T]) IsEmpty() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.size == 0
}

// Clear removes all items from the buffer. Drop callbacks fire for each removed item.
func (cb *circularBuffer[T]) Clear() {
	cb.mu.Lock()

	var itemsToDrop []T
	if cb.opts.dropCallback != nil {
		itemsToDrop = make([]T, cb.size)
		for i := range itemsToDrop {
			itemsToDrop[i] = cb.items[(cb.tail+i)%cb.capacity]
		}
	}

	clear(cb.items)
	cb.head = 0
	cb.tail = 0
	cb.size = 0
	cb.recordSize()
	cb.mu.Unlock()

	for _, item := range itemsToDrop {
		cb.opts.dropCallback(item)
	}
}

// Stats returns buffer statistics (always available for observability).
func (cb *circularBuffer[T]) Stats() *Statistics {
	return cb.stats
}

// Close marks the buffer closed and unregisters its metrics. Items already
// buffered remain readable.
func (cb *circularBuffer[T]) Close() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.closed {
		return nil
	}
	cb.closed = true

	if cb.metrics != nil {
		cb.metrics.unregister()
	}
	return nil
}
