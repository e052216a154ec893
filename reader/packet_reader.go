package reader

import (
	"sync"
	"time"

	"github.com/openDAQ/openDAQ-sub014/errors"
	"github.com/openDAQ/openDAQ-sub014/packet"
	"github.com/openDAQ/openDAQ-sub014/signal"
)

// PacketReader dequeues packets from one port without interpreting their payload.
// The typed readers do not wrap a PacketReader; they dequeue from their port
// directly and share the port binding with it.
type PacketReader struct {
	mu   sync.Mutex
	b    *binding
	port *signal.InputPort
	opts options

	valueDesc  *packet.DataDescriptor
	domainDesc *packet.DataDescriptor
}

// NewPacketReader creates a port owned by the reader and connects it to sig.
func NewPacketReader(sig *signal.Signal, opts ...Option) (*PacketReader, error) {
	if sig == nil {
		return nil, errors.WrapInvalid(errors.ErrArgumentNull, "PacketReader", "NewPacketReader", "signal check")
	}
	o := buildOptions(opts)
	r := &PacketReader{b: newBinding("packet_reader", o), opts: o}

	port, err := r.b.ownPort(sig, o)
	if err != nil {
		return nil, errors.Wrap(err, "PacketReader", "NewPacketReader", "port connect")
	}
	r.port = port
	return r, nil
}

// NewPacketReaderFromPort reads from an existing port. The reader becomes the port's
// listener; the port stays owned by the caller.
func NewPacketReaderFromPort(port *signal.InputPort, opts ...Option) (*PacketReader, error) {
	if port == nil {
		return nil, errors.WrapInvalid(errors.ErrArgumentNull, "PacketReader", "NewPacketReaderFromPort", "port check")
	}
	o := buildOptions(opts)
	r := &PacketReader{b: newBinding("packet_reader", o), port: port, opts: o}
	r.b.adopt(false, port)
	return r, nil
}

// Read dequeues the next packet. It returns nil when the queue is empty or the
// reader is invalid.
func (r *PacketReader) Read() packet.Packet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readLocked()
}

func (r *PacketReader) readLocked() packet.Packet {
	if !r.b.valid() {
		return nil
	}
	conn := r.port.Connection()
	if conn == nil {
		return nil
	}
	p, ok := conn.Dequeue()
	if !ok {
		return nil
	}
	r.track(p)
	return p
}

// ReadAll dequeues every queued packet.
func (r *PacketReader) ReadAll() []packet.Packet {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.b.valid() {
		return nil
	}
	conn := r.port.Connection()
	if conn == nil {
		return nil
	}
	ps := conn.DequeueAll()
	for _, p := range ps {
		r.track(p)
	}
	return ps
}

// ReadWithTimeout waits up to timeout for a packet. It returns nil on timeout or
// when the reader becomes invalid while waiting.
func (r *PacketReader) ReadWithTimeout(timeout time.Duration) packet.Packet {
	deadline := time.Now().Add(timeout)

	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		if p := r.readLocked(); p != nil || !r.b.valid() {
			return p
		}
		r.mu.Unlock()
		woke := r.b.wait(deadline)
		r.mu.Lock()
		if !woke {
			return r.readLocked()
		}
	}
}

// track follows descriptor changes so a typed reader can take over the port.
func (r *PacketReader) track(p packet.Packet) {
	if p.Type() == packet.TypeEvent {
		if ev, ok := p.(*packet.EventPacket); ok {
			r.b.metrics.RecordReaderEvent(r.b.name, ev.ID())
		}
	}
	value, domain, ok := packet.DescriptorChange(p)
	if !ok {
		return
	}
	if value != nil {
		r.valueDesc = value
	}
	if domain != nil {
		r.domainDesc = domain
	}
}

// AvailableCount returns the number of queued packets.
func (r *PacketReader) AvailableCount() int {
	if conn := r.port.Connection(); conn != nil && r.b.valid() {
		return conn.PacketCount()
	}
	return 0
}

// SetOnDataAvailable sets a callback run on every packet notification. It runs on
// the notifying goroutine and must not block.
func (r *PacketReader) SetOnDataAvailable(fn func()) { r.b.setOnData(fn) }

// MarkAsInvalid permanently invalidates the reader.
func (r *PacketReader) MarkAsInvalid() { r.b.invalidate(reasonMarkedInvalid) }

func (r *PacketReader) IsValid() bool { return r.b.valid() }

func (r *PacketReader) InputPort() *signal.InputPort { return r.port }

func (r *PacketReader) InputPorts() []*signal.InputPort { return []*signal.InputPort{r.port} }

// Close invalidates the reader and disconnects a port it created.
func (r *PacketReader) Close() error { return r.b.close() }

func (r *PacketReader) handoff(adopt func(*handoffState) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.b.valid() {
		return errors.WrapInvalid(errors.ErrReaderInvalid, "PacketReader", "handoff", "reader state check")
	}
	st := r.b.snapshot(r.opts)
	st.valueDesc, st.domainDesc = r.valueDesc, r.domainDesc
	if err := adopt(st); err != nil {
		return err
	}
	r.b.release()
	return nil
}
