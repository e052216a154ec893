package signal

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/openDAQ/openDAQ-sub014/errors"
	"github.com/openDAQ/openDAQ-sub014/metric"
	"github.com/openDAQ/openDAQ-sub014/packet"
)

const (
	defaultQueueCapacity = 16
)

// InputPort is the consumer end of a connection. It holds at most one connection
// and forwards life-cycle callbacks to a single listener.
type InputPort struct {
	localID  string
	globalID string

	// connectMu serializes Connect, Disconnect and Remove. Listener callbacks for
	// those transitions run while it is held.
	connectMu sync.Mutex

	mu         sync.RWMutex
	connection *Connection
	listener   InputPortNotifications
	method     NotificationMethod
	removed    bool

	scheduler      Scheduler
	requiresSignal bool
	queueCapacity  int
	queueLimit     int
	bufferRegistry *metric.MetricsRegistry

	logger      *slog.Logger
	metrics     *metric.Metrics
	fallbackLog rate.Sometimes
	dropLog     rate.Sometimes
}

// PortOption configures an InputPort.
type PortOption func(*InputPort)

// WithListener sets the port's listener.
func WithListener(l InputPortNotifications) PortOption {
	return func(p *InputPort) { p.listener = l }
}

// WithScheduler sets the scheduler used in NotifyScheduler mode.
func WithScheduler(s Scheduler) PortOption {
	return func(p *InputPort) { p.scheduler = s }
}

// WithNotificationMethod sets where PacketReceived callbacks run.
func WithNotificationMethod(m NotificationMethod) PortOption {
	return func(p *InputPort) { p.method = m }
}

// WithPortLogger sets the port logger.
func WithPortLogger(logger *slog.Logger) PortOption {
	return func(p *InputPort) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPortMetrics enables core data path metrics for the port's connections.
func WithPortMetrics(m *metric.Metrics) PortOption {
	return func(p *InputPort) { p.metrics = m }
}

// WithQueueMetrics exports per-connection queue statistics to registry.
func WithQueueMetrics(registry *metric.MetricsRegistry) PortOption {
	return func(p *InputPort) { p.bufferRegistry = registry }
}

// WithQueueCapacity sets the initial queue capacity and an optional packet limit.
// With a limit, data packets sent to a full queue are dropped and logged; event
// packets are always queued. Zero limit means unbounded.
func WithQueueCapacity(initial, limit int) PortOption {
	return func(p *InputPort) {
		if initial > 0 {
			p.queueCapacity = initial
		}
		if limit > 0 {
			p.queueLimit = limit
		}
	}
}

// WithRequiresSignal marks the port as one that must be connected for its owner
// to operate. It is informational.
func WithRequiresSignal(required bool) PortOption {
	return func(p *InputPort) { p.requiresSignal = required }
}

// NewInputPort creates an unconnected port.
func NewInputPort(localID string, opts ...PortOption) *InputPort {
	p := &InputPort{
		localID:       localID,
		globalID:      uuid.NewString(),
		queueCapacity: defaultQueueCapacity,
		logger:        slog.Default(),
		fallbackLog:   rate.Sometimes{First: 1, Interval: 30 * time.Second},
		dropLog:       rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "input_port", "port", localID)
	return p
}

func (p *InputPort) LocalID() string      { return p.localID }
func (p *InputPort) GlobalID() string     { return p.globalID }
func (p *InputPort) RequiresSignal() bool { return p.requiresSignal }

// Connection returns the current connection, nil when disconnected.
func (p *InputPort) Connection() *Connection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connection
}

// Signal returns the connected signal, nil when disconnected.
func (p *InputPort) Signal() *Signal {
	if c := p.Connection(); c != nil {
		return c.signal
	}
	return nil
}

// IsConnected reports whether the port has a connection.
func (p *InputPort) IsConnected() bool {
	return p.Connection() != nil
}

// IsRemoved reports whether Remove was called.
func (p *InputPort) IsRemoved() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.removed
}

// Listener returns the current listener.
func (p *InputPort) Listener() InputPortNotifications {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.listener
}

// SetListener replaces the listener. Used to hand a port from one reader to another.
func (p *InputPort) SetListener(l InputPortNotifications) {
	p.mu.Lock()
	p.listener = l
	p.mu.Unlock()
}

// NotificationMethod returns the current notification method.
func (p *InputPort) NotificationMethod() NotificationMethod {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.method
}

// SetNotificationMethod changes where PacketReceived callbacks run.
func (p *InputPort) SetNotificationMethod(m NotificationMethod) {
	p.mu.Lock()
	p.method = m
	p.mu.Unlock()
}

// SetScheduler replaces the scheduler used in NotifyScheduler mode.
func (p *InputPort) SetScheduler(s Scheduler) {
	p.mu.Lock()
	p.scheduler = s
	p.mu.Unlock()
}

// Connect attaches the port to sig. Connecting the already connected signal is a
// no-op; connecting a different signal replaces the current connection without a
// Disconnected callback.
func (p *InputPort) Connect(sig *Signal) error {
	if sig == nil {
		return errors.WrapInvalid(errors.ErrArgumentNull, "InputPort", "Connect", "signal check")
	}

	p.connectMu.Lock()
	defer p.connectMu.Unlock()

	p.mu.RLock()
	removed, current, listener := p.removed, p.connection, p.listener
	p.mu.RUnlock()

	if removed {
		return errors.WrapInvalid(errors.ErrPortRemoved, "InputPort", "Connect", "port state check")
	}
	if current != nil && current.signal == sig {
		return nil
	}
	if sig.IsRemoved() {
		return errors.Invalidf(errors.ErrInvalidState, "InputPort", "Connect",
			"signal %s: %w", sig.LocalID(), errors.ErrSignalRemoved)
	}
	if listener != nil && !listener.AcceptsSignal(p, sig) {
		p.logger.Debug("signal rejected by listener", "signal", sig.LocalID())
		return errors.Invalidf(errors.ErrInvalidState, "InputPort", "Connect",
			"signal %s: %w", sig.LocalID(), errors.ErrSignalNotAccepted)
	}

	conn, err := newConnection(sig, p)
	if err != nil {
		return errors.WrapTransient(err, "InputPort", "Connect", "connection setup")
	}

	if current != nil {
		current.signal.removeConnection(current)
		current.close()
		p.metrics.RecordConnection(-1)
	}

	p.mu.Lock()
	p.connection = conn
	p.mu.Unlock()

	if err := sig.addConnection(conn); err != nil {
		p.mu.Lock()
		p.connection = nil
		p.mu.Unlock()
		conn.close()
		return err
	}
	p.metrics.RecordConnection(1)
	p.logger.Debug("connected", "signal", sig.LocalID())

	if listener != nil {
		listener.Connected(p)
	}
	return nil
}

// Disconnect tears down the current connection. Disconnecting an unconnected port
// is a no-op.
func (p *InputPort) Disconnect() error {
	p.connectMu.Lock()
	defer p.connectMu.Unlock()

	conn := p.detach(nil)
	if conn == nil {
		return nil
	}
	if err := conn.signal.removeConnection(conn); err != nil {
		p.logger.Debug("signal already dropped connection", "error", err)
	}
	p.logger.Debug("disconnected", "signal", conn.signal.LocalID())
	p.fireDisconnected()
	return nil
}

// Remove disconnects the port and marks it removed. A removed port cannot connect.
func (p *InputPort) Remove() {
	_ = p.Disconnect()
	p.mu.Lock()
	p.removed = true
	p.mu.Unlock()
}

// signalRemoved is called by a removed signal for each of its connections.
func (p *InputPort) signalRemoved(conn *Connection) {
	p.connectMu.Lock()
	defer p.connectMu.Unlock()

	if p.detach(conn) == nil {
		return
	}
	p.logger.Debug("signal removed", "signal", conn.signal.LocalID())
	p.fireDisconnected()
}

// detach clears the connection if it matches want (any connection when want is nil).
// Caller holds connectMu.
func (p *InputPort) detach(want *Connection) *Connection {
	p.mu.Lock()
	conn := p.connection
	if conn == nil || (want != nil && conn != want) {
		p.mu.Unlock()
		return nil
	}
	p.connection = nil
	p.mu.Unlock()

	conn.close()
	p.metrics.RecordConnection(-1)
	return conn
}

func (p *InputPort) fireDisconnected() {
	if l := p.Listener(); l != nil {
		l.Disconnected(p)
	}
}

// notifyPacketReceived delivers PacketReceived according to the notification method.
func (p *InputPort) notifyPacketReceived() {
	p.mu.RLock()
	listener, method, sched := p.listener, p.method, p.scheduler
	p.mu.RUnlock()

	if listener == nil {
		return
	}

	if method == NotifyScheduler {
		if sched != nil {
			err := sched.ScheduleWork(func() { listener.PacketReceived(p) })
			if err == nil {
				return
			}
			p.metrics.RecordNotificationFailure(p.localID)
			p.fallbackLog.Do(func() {
				p.logger.Warn("scheduling packet notification failed, delivering on producer goroutine",
					"error", err)
			})
		} else {
			p.fallbackLog.Do(func() {
				p.logger.Warn("scheduler notification requested without a scheduler, delivering on producer goroutine")
			})
		}
	}

	listener.PacketReceived(p)
}

func (p *InputPort) onPacketDropped(pk packet.Packet) {
	p.dropLog.Do(func() {
		p.logger.Warn("connection queue full, dropping packets",
			"limit", p.queueLimit, "packet_type", pk.Type().String())
	})
}
