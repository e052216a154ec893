package reader

import (
	"log/slog"
	"sync"
	"time"

	"github.com/openDAQ/openDAQ-sub014/errors"
	"github.com/openDAQ/openDAQ-sub014/metric"
	"github.com/openDAQ/openDAQ-sub014/signal"
)

// Invalidation reasons used in logs and the reader_invalidations metric.
const (
	reasonDisconnected     = "disconnected"
	reasonMarkedInvalid    = "marked_invalid"
	reasonConversionFailed = "conversion_failed"
	reasonIncompatible     = "incompatible_domain"
	reasonHandoff          = "handoff"
	reasonClosed           = "closed"
)

// binding is the port substrate under every reader. It is the listener of the
// reader's ports, wakes blocked reads on new packets and closes done when the reader
// becomes invalid.
type binding struct {
	name    string
	logger  *slog.Logger
	metrics *metric.Metrics

	ports []*signal.InputPort
	owned bool

	// wake holds at most one pending wake-up; a stale token only causes a re-check.
	wake chan struct{}
	done chan struct{}

	mu        sync.RWMutex
	invalid   bool
	reason    string
	handedOff bool
	external  signal.InputPortNotifications
	onData    func()
}

func newBinding(kind string, o options) *binding {
	name := o.name
	if name == "" {
		name = kind
	}
	return &binding{
		name:     name,
		logger:   o.logger.With("component", kind, "reader", name),
		metrics:  o.metrics,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		external: o.external,
	}
}

// ownPort creates a port listening to this binding and connects it to sig.
func (b *binding) ownPort(sig *signal.Signal, o options) (*signal.InputPort, error) {
	portOpts := append([]signal.PortOption{
		signal.WithListener(b),
		signal.WithNotificationMethod(o.method),
		signal.WithScheduler(o.scheduler),
		signal.WithPortLogger(o.logger),
		signal.WithPortMetrics(o.metrics),
	}, o.portOpts...)

	port := signal.NewInputPort(b.name+"/"+sig.LocalID(), portOpts...)
	if err := port.Connect(sig); err != nil {
		return nil, err
	}
	b.ports = append(b.ports, port)
	b.owned = true
	return port, nil
}

// adopt makes this binding the listener of ports created elsewhere.
func (b *binding) adopt(owned bool, ports ...*signal.InputPort) {
	b.ports = append(b.ports, ports...)
	b.owned = owned
	for _, p := range ports {
		p.SetListener(b)
	}
}

func (b *binding) valid() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.invalid
}

// invalidate marks the reader invalid and wakes blocked reads. It reports whether
// this call made the transition.
func (b *binding) invalidate(reason string) bool {
	b.mu.Lock()
	if b.invalid {
		b.mu.Unlock()
		return false
	}
	b.invalid = true
	b.reason = reason
	b.mu.Unlock()

	close(b.done)
	b.metrics.RecordInvalidation(b.name, reason)
	b.logger.Debug("reader invalidated", "reason", reason)
	return true
}

// release invalidates the binding after its ports moved to another reader.
func (b *binding) release() {
	b.mu.Lock()
	b.handedOff = true
	b.mu.Unlock()
	b.invalidate(reasonHandoff)
}

// close invalidates the reader and disconnects the ports it created.
func (b *binding) close() error {
	b.invalidate(reasonClosed)

	b.mu.RLock()
	handedOff := b.handedOff
	b.mu.RUnlock()
	if !b.owned || handedOff {
		return nil
	}

	var firstErr error
	for _, p := range b.ports {
		if err := p.Disconnect(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "Reader", "Close", "port disconnect")
		}
	}
	return firstErr
}

func (b *binding) setOnData(fn func()) {
	b.mu.Lock()
	b.onData = fn
	b.mu.Unlock()
}

func (b *binding) callbacks() (signal.InputPortNotifications, func()) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.external, b.onData
}

// wait blocks until a packet arrives, the binding is invalidated or the deadline
// passes. It returns false unless it was woken by a packet.
func (b *binding) wait(deadline time.Time) bool {
	d := time.Until(deadline)
	if d <= 0 {
		return false
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-b.wake:
		return true
	case <-b.done:
		return false
	case <-timer.C:
		return false
	}
}

func (b *binding) AcceptsSignal(port *signal.InputPort, sig *signal.Signal) bool {
	if !b.valid() {
		return false
	}
	if ext, _ := b.callbacks(); ext != nil {
		return ext.AcceptsSignal(port, sig)
	}
	return true
}

func (b *binding) Connected(port *signal.InputPort) {
	if ext, _ := b.callbacks(); ext != nil {
		ext.Connected(port)
	}
}

func (b *binding) Disconnected(port *signal.InputPort) {
	b.invalidate(reasonDisconnected)
	if ext, _ := b.callbacks(); ext != nil {
		ext.Disconnected(port)
	}
}

func (b *binding) PacketReceived(port *signal.InputPort) {
	select {
	case b.wake <- struct{}{}:
	default:
	}

	ext, onData := b.callbacks()
	if onData != nil {
		onData()
	}
	if ext != nil {
		ext.PacketReceived(port)
	}
}
