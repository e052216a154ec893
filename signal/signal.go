package signal

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/openDAQ/openDAQ-sub014/errors"
	"github.com/openDAQ/openDAQ-sub014/metric"
	"github.com/openDAQ/openDAQ-sub014/packet"
)

// Signal owns a data descriptor and fans its packets out to every connected port.
type Signal struct {
	localID  string
	globalID string

	// sendMu orders queue writes: packets, descriptor events and the initial event of
	// a new connection land in every queue in one global order. Listener callbacks
	// never run while it is held.
	sendMu sync.Mutex

	mu           sync.RWMutex
	descriptor   *packet.DataDescriptor
	domainSignal *Signal
	dependents   []*Signal
	connections  []*Connection
	lastPacket   *packet.DataPacket
	removed      bool

	typeManager TypeManager
	logger      *slog.Logger
	metrics     *metric.Metrics
}

// SignalOption configures a Signal.
type SignalOption func(*Signal)

// WithDomainSignal links the signal to the signal carrying its domain (time) values.
func WithDomainSignal(domain *Signal) SignalOption {
	return func(s *Signal) { s.domainSignal = domain }
}

// WithLogger sets the signal logger.
func WithLogger(logger *slog.Logger) SignalOption {
	return func(s *Signal) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics enables core data path metrics.
func WithMetrics(m *metric.Metrics) SignalOption {
	return func(s *Signal) { s.metrics = m }
}

// WithTypeManager sets the type manager consulted for struct descriptors.
func WithTypeManager(tm TypeManager) SignalOption {
	return func(s *Signal) { s.typeManager = tm }
}

// NewSignal creates a signal with an initial descriptor. A nil descriptor is allowed
// for signals whose layout is set later.
func NewSignal(localID string, descriptor *packet.DataDescriptor, opts ...SignalOption) (*Signal, error) {
	s := &Signal{
		localID:  localID,
		globalID: uuid.NewString(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "signal", "signal", localID)

	if descriptor != nil {
		if err := s.validateDescriptor(descriptor); err != nil {
			return nil, errors.Wrap(err, "Signal", "NewSignal", "descriptor validation")
		}
		s.descriptor = descriptor
	}
	if s.domainSignal != nil {
		s.domainSignal.addDependent(s)
	}
	return s, nil
}

func (s *Signal) LocalID() string { return s.localID }

func (s *Signal) GlobalID() string { return s.globalID }

// Descriptor returns the current value descriptor.
func (s *Signal) Descriptor() *packet.DataDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.descriptor
}

// DomainSignal returns the linked domain signal, nil if none.
func (s *Signal) DomainSignal() *Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.domainSignal
}

// DomainDescriptor returns the domain signal's descriptor, nil if there is no domain signal.
func (s *Signal) DomainDescriptor() *packet.DataDescriptor {
	if d := s.DomainSignal(); d != nil {
		return d.Descriptor()
	}
	return nil
}

// IsRemoved reports whether Remove was called.
func (s *Signal) IsRemoved() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.removed
}

// Connections returns a snapshot of the current connections.
func (s *Signal) Connections() []*Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.connections)
}

func (s *Signal) validateDescriptor(d *packet.DataDescriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.SampleType() == packet.SampleTypeStruct && s.typeManager != nil && !s.typeManager.HasType(d.StructName()) {
		return errors.Invalidf(errors.ErrInvalidDescriptor, "Signal", "validateDescriptor",
			"struct type %q is not registered", d.StructName())
	}
	return nil
}

// SetDescriptor replaces the value descriptor and enqueues a descriptor-changed event
// on every connection. Signals using this one as their domain forward the change as a
// domain descriptor change.
func (s *Signal) SetDescriptor(d *packet.DataDescriptor) error {
	if d == nil {
		return errors.WrapInvalid(errors.ErrArgumentNull, "Signal", "SetDescriptor", "descriptor check")
	}
	if err := s.validateDescriptor(d); err != nil {
		return errors.Wrap(err, "Signal", "SetDescriptor", "descriptor validation")
	}

	s.sendMu.Lock()
	s.mu.Lock()
	if s.removed {
		s.mu.Unlock()
		s.sendMu.Unlock()
		return errors.WrapInvalid(errors.ErrSignalRemoved, "Signal", "SetDescriptor", "signal state check")
	}
	s.descriptor = d
	conns := slices.Clone(s.connections)
	dependents := slices.Clone(s.dependents)
	s.mu.Unlock()

	event := packet.NewDataDescriptorChangedEvent(d, nil)
	notify := s.pushAll(conns, event)
	s.sendMu.Unlock()

	s.metrics.RecordPacketSent(s.localID, "event", 1)
	s.logger.Debug("descriptor changed", "descriptor", d.String(), "connections", len(conns))
	notifyAll(notify)

	for _, dep := range dependents {
		dep.domainDescriptorChanged(d)
	}
	return nil
}

// domainDescriptorChanged forwards a domain descriptor change to this value signal's
// connections.
func (s *Signal) domainDescriptorChanged(domain *packet.DataDescriptor) {
	s.sendMu.Lock()
	s.mu.RLock()
	if s.removed {
		s.mu.RUnlock()
		s.sendMu.Unlock()
		return
	}
	conns := slices.Clone(s.connections)
	s.mu.RUnlock()

	notify := s.pushAll(conns, packet.NewDataDescriptorChangedEvent(nil, domain))
	s.sendMu.Unlock()
	notifyAll(notify)
}

// SetDomainSignal links a new domain signal and announces its descriptor.
func (s *Signal) SetDomainSignal(domain *Signal) error {
	if domain == s {
		return errors.Invalidf(errors.ErrInvalidParameter, "Signal", "SetDomainSignal",
			"signal %s cannot be its own domain", s.localID)
	}

	s.mu.Lock()
	if s.removed {
		s.mu.Unlock()
		return errors.WrapInvalid(errors.ErrSignalRemoved, "Signal", "SetDomainSignal", "signal state check")
	}
	old := s.domainSignal
	s.domainSignal = domain
	s.mu.Unlock()

	if old == domain {
		return nil
	}
	if old != nil {
		old.removeDependent(s)
	}
	if domain != nil {
		domain.addDependent(s)
		s.domainDescriptorChanged(domain.Descriptor())
	}
	return nil
}

func (s *Signal) addDependent(dep *Signal) {
	s.mu.Lock()
	s.dependents = append(s.dependents, dep)
	s.mu.Unlock()
}

func (s *Signal) removeDependent(dep *Signal) {
	s.mu.Lock()
	s.dependents = slices.DeleteFunc(s.dependents, func(x *Signal) bool { return x == dep })
	s.mu.Unlock()
}

// SendPacket enqueues p on every connection.
func (s *Signal) SendPacket(p packet.Packet) error {
	return s.SendPackets(p)
}

// SendPackets enqueues ps on every connection in order, with one notification per
// connection.
func (s *Signal) SendPackets(ps ...packet.Packet) error {
	if len(ps) == 0 {
		return nil
	}
	for _, p := range ps {
		if p == nil {
			return errors.WrapInvalid(errors.ErrArgumentNull, "Signal", "SendPacket", "packet check")
		}
	}

	s.sendMu.Lock()
	s.mu.Lock()
	if s.removed {
		s.mu.Unlock()
		s.sendMu.Unlock()
		return errors.Invalidf(errors.ErrInvalidState, "Signal", "SendPacket",
			"signal %s: %w", s.localID, errors.ErrSignalRemoved)
	}
	for i := len(ps) - 1; i >= 0; i-- {
		if dp, ok := ps[i].(*packet.DataPacket); ok {
			s.lastPacket = dp
			break
		}
	}
	conns := slices.Clone(s.connections)
	s.mu.Unlock()

	var notify []*Connection
	for _, c := range conns {
		var err error
		if len(ps) == 1 {
			err = c.push(ps[0])
		} else {
			err = c.pushBatch(ps)
		}
		if err != nil {
			// A port disconnecting concurrently closes its queue first
			s.logger.Debug("skipping closed connection", "port", c.port.localID, "error", err)
			continue
		}
		notify = append(notify, c)
	}
	s.sendMu.Unlock()

	for _, p := range ps {
		s.metrics.RecordPacketSent(s.localID, p.Type().String(), 1)
	}
	notifyAll(notify)
	return nil
}

func (s *Signal) pushAll(conns []*Connection, p packet.Packet) []*Connection {
	notify := make([]*Connection, 0, len(conns))
	for _, c := range conns {
		if err := c.push(p); err != nil {
			s.logger.Debug("skipping closed connection", "port", c.port.localID, "error", err)
			continue
		}
		notify = append(notify, c)
	}
	return notify
}

func notifyAll(conns []*Connection) {
	for _, c := range conns {
		c.port.notifyPacketReceived()
	}
}

// NewDataPacket allocates a packet for the current descriptor.
func (s *Signal) NewDataPacket(sampleCount int, offset int64) (*packet.DataPacket, error) {
	d := s.Descriptor()
	if d == nil {
		return nil, errors.Invalidf(errors.ErrInvalidState, "Signal", "NewDataPacket",
			"signal %s has no descriptor", s.localID)
	}
	return packet.NewDataPacket(d, sampleCount, offset)
}

// LastValue returns the last sample of the most recently sent data packet.
func (s *Signal) LastValue() (float64, bool) {
	s.mu.RLock()
	p := s.lastPacket
	s.mu.RUnlock()
	if p == nil {
		return 0, false
	}
	return p.LastFloat64()
}

// addConnection registers conn and enqueues the current descriptors as its first packet.
func (s *Signal) addConnection(conn *Connection) error {
	s.sendMu.Lock()
	s.mu.Lock()
	if s.removed {
		s.mu.Unlock()
		s.sendMu.Unlock()
		return errors.Invalidf(errors.ErrInvalidState, "Signal", "addConnection",
			"signal %s: %w", s.localID, errors.ErrSignalRemoved)
	}
	s.connections = append(s.connections, conn)
	value := s.descriptor
	domainSig := s.domainSignal
	s.mu.Unlock()

	var domain *packet.DataDescriptor
	if domainSig != nil {
		domain = domainSig.Descriptor()
	}
	err := conn.push(packet.NewDataDescriptorChangedEvent(value, domain))
	s.sendMu.Unlock()
	if err != nil {
		return errors.Wrap(err, "Signal", "addConnection", "initial event")
	}

	conn.port.notifyPacketReceived()
	return nil
}

// removeConnection drops conn from the fan-out list.
func (s *Signal) removeConnection(conn *Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.Index(s.connections, conn)
	if i < 0 {
		return errors.Invalidf(errors.ErrNotFound, "Signal", "removeConnection",
			"port %s is not connected to %s", conn.port.localID, s.localID)
	}
	s.connections = slices.Delete(s.connections, i, i+1)
	return nil
}

// Remove marks the signal removed and disconnects every port. Readers on those
// ports become invalid.
func (s *Signal) Remove() {
	s.mu.Lock()
	if s.removed {
		s.mu.Unlock()
		return
	}
	s.removed = true
	conns := s.connections
	s.connections = nil
	domain := s.domainSignal
	s.mu.Unlock()

	if domain != nil {
		domain.removeDependent(s)
	}
	s.logger.Debug("signal removed", "connections", len(conns))

	for _, c := range conns {
		c.port.signalRemoved(c)
	}
}
