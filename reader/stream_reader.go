package reader

import (
	"sync"
	"time"

	"github.com/openDAQ/openDAQ-sub014/errors"
	"github.com/openDAQ/openDAQ-sub014/packet"
	"github.com/openDAQ/openDAQ-sub014/signal"
)

// StreamReader reads samples of one signal in send order, converting them to V and
// their domain values to D. Every sample is returned exactly once.
type StreamReader[V, D Number] struct {
	mu   sync.Mutex
	b    *binding
	port *signal.InputPort
	opts options
	dec  sampleDecoder[V, D]

	pending    *packet.DataPacket
	pendingPos int
}

func newStreamReader[V, D Number](o options) *StreamReader[V, D] {
	return &StreamReader[V, D]{
		b:    newBinding("stream_reader", o),
		opts: o,
		dec:  sampleDecoder[V, D]{mode: o.mode},
	}
}

// NewStreamReader creates a port owned by the reader and connects it to sig.
func NewStreamReader[V, D Number](sig *signal.Signal, opts ...Option) (*StreamReader[V, D], error) {
	if sig == nil {
		return nil, errors.WrapInvalid(errors.ErrArgumentNull, "StreamReader", "NewStreamReader", "signal check")
	}
	r := newStreamReader[V, D](buildOptions(opts))

	port, err := r.b.ownPort(sig, r.opts)
	if err != nil {
		return nil, errors.Wrap(err, "StreamReader", "NewStreamReader", "port connect")
	}
	r.port = port
	if err := r.bind(); err != nil {
		_ = r.b.close()
		return nil, errors.Wrap(err, "StreamReader", "NewStreamReader", "descriptor binding")
	}
	return r, nil
}

// NewStreamReaderFromPort reads from an existing port. The port may be unconnected;
// the reader then starts without a descriptor and reports the first connection's
// descriptor as an event.
func NewStreamReaderFromPort[V, D Number](port *signal.InputPort, opts ...Option) (*StreamReader[V, D], error) {
	if port == nil {
		return nil, errors.WrapInvalid(errors.ErrArgumentNull, "StreamReader", "NewStreamReaderFromPort", "port check")
	}
	r := newStreamReader[V, D](buildOptions(opts))
	r.port = port
	if err := r.bind(); err != nil {
		return nil, errors.Wrap(err, "StreamReader", "NewStreamReaderFromPort", "descriptor binding")
	}
	r.b.adopt(false, port)
	return r, nil
}

// StreamReaderFromExisting creates a reader with new sample types on the ports of
// old, continuing at old's read position. old is invalidated.
func StreamReaderFromExisting[V, D Number](old ReaderConfig, opts ...Option) (*StreamReader[V, D], error) {
	if old == nil {
		return nil, errors.WrapInvalid(errors.ErrArgumentNull, "StreamReader", "StreamReaderFromExisting", "reader check")
	}

	var r *StreamReader[V, D]
	err := old.handoff(func(st *handoffState) error {
		if len(st.ports) != 1 {
			return errors.Invalidf(errors.ErrInvalidParameter, "StreamReader", "StreamReaderFromExisting",
				"source reader has %d ports", len(st.ports))
		}
		o := st.opts
		for _, opt := range opts {
			opt(&o)
		}
		nr := &StreamReader[V, D]{
			opts:       o,
			port:       st.ports[0],
			dec:        sampleDecoder[V, D]{mode: o.mode},
			pending:    st.pending,
			pendingPos: st.pendingPos,
		}
		if err := nr.dec.apply(st.valueDesc, st.domainDesc); err != nil {
			return err
		}
		nr.b = takeOver("stream_reader", st)
		r = nr
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "StreamReader", "StreamReaderFromExisting", "reader handoff")
	}
	return r, nil
}

// bind consumes the descriptor event queued at the head of a fresh connection so the
// first read returns data.
func (r *StreamReader[V, D]) bind() error {
	conn := r.port.Connection()
	if conn == nil {
		return nil
	}
	p, ok := conn.Peek()
	if !ok || !packet.IsDescriptorChanged(p) {
		return nil
	}
	value, domain, _ := packet.DescriptorChange(p)
	if err := r.dec.apply(value, domain); err != nil {
		return err
	}
	conn.Dequeue()
	return nil
}

// Read fills values with up to len(values) samples, waiting at most timeout.
// Samples not read remain queued for the next call.
func (r *StreamReader[V, D]) Read(values []V, timeout time.Duration) (int, ReaderStatus, error) {
	if values == nil {
		return 0, invalidStatus(), errors.WrapInvalid(errors.ErrArgumentNull, "StreamReader", "Read", "buffer check")
	}
	return r.read("Read", values, nil, len(values), timeout)
}

// ReadWithDomain is Read that also fills domain with the domain value of every
// returned sample. domain must be at least as long as values.
func (r *StreamReader[V, D]) ReadWithDomain(values []V, domain []D, timeout time.Duration) (int, ReaderStatus, error) {
	if values == nil || domain == nil {
		return 0, invalidStatus(), errors.WrapInvalid(errors.ErrArgumentNull, "StreamReader", "ReadWithDomain", "buffer check")
	}
	if len(domain) < len(values) {
		return 0, invalidStatus(), errors.Invalidf(errors.ErrInvalidParameter, "StreamReader", "ReadWithDomain",
			"domain buffer holds %d samples, need %d", len(domain), len(values))
	}
	return r.read("ReadWithDomain", values, domain[:len(values)], len(values), timeout)
}

// SkipSamples discards up to count samples with the same draining rules as Read.
func (r *StreamReader[V, D]) SkipSamples(count int, timeout time.Duration) (int, ReaderStatus, error) {
	if count < 0 {
		return 0, invalidStatus(), errors.Invalidf(errors.ErrInvalidParameter, "StreamReader", "SkipSamples",
			"negative count %d", count)
	}
	return r.read("SkipSamples", nil, nil, count, timeout)
}

func (r *StreamReader[V, D]) read(method string, values []V, domain []D, count int, timeout time.Duration) (int, ReaderStatus, error) {
	start := time.Now()
	deadline := start.Add(timeout)

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.b.valid() {
		return 0, invalidStatus(), nil
	}

	status := validStatus()
	n := 0
	expired := false
	for {
		stop, err := r.drain(values, domain, count, &n, &status)
		if err != nil {
			r.b.invalidate(reasonConversionFailed)
			r.b.logger.Warn("sample conversion failed, reader invalidated", "error", err)
			return n, invalidStatus(), errors.Wrap(err, "StreamReader", method, "sample conversion")
		}
		if stop || n == count || timeout <= 0 || expired || (r.opts.timeoutType == Any && n > 0) {
			break
		}

		r.mu.Unlock()
		woke := r.b.wait(deadline)
		r.mu.Lock()

		if !r.b.valid() {
			return n, invalidStatus(), nil
		}
		expired = !woke
	}

	if expired && n < count {
		r.b.metrics.RecordReadTimeout(r.b.name)
	}
	if values != nil {
		r.b.metrics.RecordSamplesRead(r.b.name, n)
	}
	r.b.metrics.RecordReadDuration(r.b.name, time.Since(start))
	return n, status, nil
}

// drain consumes queued packets until count samples were read, the queue is empty
// or an event stops the read. values nil means skip. Caller holds mu.
func (r *StreamReader[V, D]) drain(values []V, domain []D, count int, n *int, status *ReaderStatus) (bool, error) {
	conn := r.port.Connection()
	for *n < count {
		if r.pending == nil {
			if conn == nil {
				return false, nil
			}
			p, ok := conn.Dequeue()
			if !ok {
				return false, nil
			}
			switch pk := p.(type) {
			case *packet.EventPacket:
				stop, err := r.handleEvent(pk, status)
				if err != nil || stop {
					return stop, err
				}
				continue
			case *packet.DataPacket:
				if pk.SampleCount() == 0 {
					continue
				}
				r.pending, r.pendingPos = pk, 0
			default:
				continue
			}
		}

		p, pos := r.pending, r.pendingPos
		take := min(count-*n, p.SampleCount()-pos)
		if values != nil {
			if err := r.dec.values(p, pos, values[*n:*n+take]); err != nil {
				return false, err
			}
		}
		if domain != nil {
			if _, err := r.dec.domains(p, pos, domain[*n:*n+take]); err != nil {
				return false, err
			}
		}
		if !status.HasOffset {
			status.Offset, status.HasOffset = offsetOf(p, pos)
		}

		*n += take
		r.pendingPos += take
		if r.pendingPos == p.SampleCount() {
			r.pending, r.pendingPos = nil, 0
		}
	}
	return false, nil
}

func (r *StreamReader[V, D]) handleEvent(ev *packet.EventPacket, status *ReaderStatus) (bool, error) {
	r.b.metrics.RecordReaderEvent(r.b.name, ev.ID())
	if value, domain, ok := packet.DescriptorChange(ev); ok {
		if err := r.dec.apply(value, domain); err != nil {
			return false, err
		}
		r.b.logger.Debug("descriptor changed", "value", value, "domain", domain)
	}
	if r.opts.skipEvents {
		return false, nil
	}
	status.ReadStatus = Event
	status.EventPacket = ev
	return true, nil
}

// AvailableCount returns the number of samples readable before the next event.
func (r *StreamReader[V, D]) AvailableCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.b.valid() {
		return 0
	}
	count := 0
	if r.pending != nil {
		count = r.pending.SampleCount() - r.pendingPos
	}
	if conn := r.port.Connection(); conn != nil {
		count += conn.AvailableSamples()
	}
	return count
}

// Empty reports whether no packet of any kind is waiting.
func (r *StreamReader[V, D]) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending != nil {
		return false
	}
	conn := r.port.Connection()
	return conn == nil || conn.PacketCount() == 0
}

// ValueDescriptor returns the active value descriptor, nil before the first one.
func (r *StreamReader[V, D]) ValueDescriptor() *packet.DataDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dec.valueDesc
}

// DomainDescriptor returns the active domain descriptor.
func (r *StreamReader[V, D]) DomainDescriptor() *packet.DataDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dec.domainDesc
}

// SetValueTransform sets a function applied to values after conversion and scaling.
func (r *StreamReader[V, D]) SetValueTransform(fn Transform[V]) {
	r.mu.Lock()
	r.dec.valueTransform = fn
	r.mu.Unlock()
}

// SetDomainTransform sets a function applied to domain values after conversion.
func (r *StreamReader[V, D]) SetDomainTransform(fn Transform[D]) {
	r.mu.Lock()
	r.dec.domainTransform = fn
	r.mu.Unlock()
}

// SetOnDataAvailable sets a callback run on every packet notification. It runs on
// the notifying goroutine and must not block.
func (r *StreamReader[V, D]) SetOnDataAvailable(fn func()) { r.b.setOnData(fn) }

// MarkAsInvalid permanently invalidates the reader and wakes blocked reads.
func (r *StreamReader[V, D]) MarkAsInvalid() { r.b.invalidate(reasonMarkedInvalid) }

func (r *StreamReader[V, D]) IsValid() bool { return r.b.valid() }

func (r *StreamReader[V, D]) InputPort() *signal.InputPort { return r.port }

func (r *StreamReader[V, D]) InputPorts() []*signal.InputPort { return []*signal.InputPort{r.port} }

func (r *StreamReader[V, D]) ReadMode() ReadMode { return r.opts.mode }

func (r *StreamReader[V, D]) ReadTimeoutType() ReadTimeoutType { return r.opts.timeoutType }

// Close invalidates the reader and disconnects a port it created.
func (r *StreamReader[V, D]) Close() error { return r.b.close() }

func (r *StreamReader[V, D]) handoff(adopt func(*handoffState) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.b.valid() {
		return errors.WrapInvalid(errors.ErrReaderInvalid, "StreamReader", "handoff", "reader state check")
	}
	st := r.b.snapshot(r.opts)
	st.valueDesc, st.domainDesc = r.dec.valueDesc, r.dec.domainDesc
	st.pending, st.pendingPos = r.pending, r.pendingPos
	if err := adopt(st); err != nil {
		return err
	}
	r.pending, r.pendingPos = nil, 0
	r.b.release()
	return nil
}

// StreamReaderBuilder assembles a StreamReader from exactly one source: a signal, an
// input port or an existing reader.
type StreamReaderBuilder[V, D Number] struct {
	sig  *signal.Signal
	port *signal.InputPort
	old  ReaderConfig
	opts []Option
}

func NewStreamReaderBuilder[V, D Number]() *StreamReaderBuilder[V, D] {
	return &StreamReaderBuilder[V, D]{}
}

func (b *StreamReaderBuilder[V, D]) SetSignal(sig *signal.Signal) *StreamReaderBuilder[V, D] {
	b.sig = sig
	return b
}

func (b *StreamReaderBuilder[V, D]) SetInputPort(port *signal.InputPort) *StreamReaderBuilder[V, D] {
	b.port = port
	return b
}

func (b *StreamReaderBuilder[V, D]) SetOldStreamReader(old ReaderConfig) *StreamReaderBuilder[V, D] {
	b.old = old
	return b
}

func (b *StreamReaderBuilder[V, D]) SetReadMode(mode ReadMode) *StreamReaderBuilder[V, D] {
	b.opts = append(b.opts, WithReadMode(mode))
	return b
}

func (b *StreamReaderBuilder[V, D]) SetReadTimeoutType(t ReadTimeoutType) *StreamReaderBuilder[V, D] {
	b.opts = append(b.opts, WithReadTimeoutType(t))
	return b
}

func (b *StreamReaderBuilder[V, D]) SetSkipEvents(skip bool) *StreamReaderBuilder[V, D] {
	b.opts = append(b.opts, WithSkipEvents(skip))
	return b
}

// AddOptions appends any other reader options.
func (b *StreamReaderBuilder[V, D]) AddOptions(opts ...Option) *StreamReaderBuilder[V, D] {
	b.opts = append(b.opts, opts...)
	return b
}

// Build creates the reader.
func (b *StreamReaderBuilder[V, D]) Build() (*StreamReader[V, D], error) {
	sources := 0
	for _, set := range []bool{b.sig != nil, b.port != nil, b.old != nil} {
		if set {
			sources++
		}
	}
	switch {
	case sources == 0:
		return nil, errors.Invalidf(errors.ErrInvalidParameter, "StreamReaderBuilder", "Build",
			"neither signal nor input port set")
	case sources > 1:
		return nil, errors.Invalidf(errors.ErrInvalidParameter, "StreamReaderBuilder", "Build",
			"only one of signal, input port or old reader may be set")
	case b.sig != nil:
		return NewStreamReader[V, D](b.sig, b.opts...)
	case b.port != nil:
		return NewStreamReaderFromPort[V, D](b.port, b.opts...)
	default:
		return StreamReaderFromExisting[V, D](b.old, b.opts...)
	}
}
