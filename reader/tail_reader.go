package reader

import (
	"sync"
	"time"

	"github.com/openDAQ/openDAQ-sub014/errors"
	"github.com/openDAQ/openDAQ-sub014/packet"
	"github.com/openDAQ/openDAQ-sub014/pkg/buffer"
	"github.com/openDAQ/openDAQ-sub014/signal"
)

type tailSample[V, D Number] struct {
	value     V
	domain    D
	hasDomain bool
}

// TailReader keeps the last historySize samples of one signal. Reads return the
// newest samples without consuming them, so consecutive reads may overlap.
type TailReader[V, D Number] struct {
	mu          sync.Mutex
	b           *binding
	port        *signal.InputPort
	opts        options
	dec         sampleDecoder[V, D]
	historySize int
	history     buffer.Buffer[tailSample[V, D]]

	// scratch buffers reused while filling history
	values  []V
	domains []D
}

func newTailReader[V, D Number](historySize int, o options) (*TailReader[V, D], error) {
	if historySize <= 0 {
		return nil, errors.Invalidf(errors.ErrInvalidParameter, "TailReader", "NewTailReader",
			"history size must be positive, got %d", historySize)
	}
	history, err := buffer.NewCircularBuffer[tailSample[V, D]](historySize,
		buffer.WithOverflowPolicy[tailSample[V, D]](buffer.DropOldest))
	if err != nil {
		return nil, errors.Wrap(err, "TailReader", "NewTailReader", "history creation")
	}
	return &TailReader[V, D]{
		b:           newBinding("tail_reader", o),
		opts:        o,
		dec:         sampleDecoder[V, D]{mode: o.mode},
		historySize: historySize,
		history:     history,
	}, nil
}

// NewTailReader creates a port owned by the reader and connects it to sig.
func NewTailReader[V, D Number](sig *signal.Signal, historySize int, opts ...Option) (*TailReader[V, D], error) {
	if sig == nil {
		return nil, errors.WrapInvalid(errors.ErrArgumentNull, "TailReader", "NewTailReader", "signal check")
	}
	r, err := newTailReader[V, D](historySize, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	port, err := r.b.ownPort(sig, r.opts)
	if err != nil {
		return nil, errors.Wrap(err, "TailReader", "NewTailReader", "port connect")
	}
	r.port = port
	if err := r.bind(); err != nil {
		_ = r.b.close()
		return nil, errors.Wrap(err, "TailReader", "NewTailReader", "descriptor binding")
	}
	return r, nil
}

// NewTailReaderFromPort keeps the history of an existing port.
func NewTailReaderFromPort[V, D Number](port *signal.InputPort, historySize int, opts ...Option) (*TailReader[V, D], error) {
	if port == nil {
		return nil, errors.WrapInvalid(errors.ErrArgumentNull, "TailReader", "NewTailReaderFromPort", "port check")
	}
	r, err := newTailReader[V, D](historySize, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	r.port = port
	if err := r.bind(); err != nil {
		return nil, errors.Wrap(err, "TailReader", "NewTailReaderFromPort", "descriptor binding")
	}
	r.b.adopt(false, port)
	return r, nil
}

// TailReaderFromExisting takes over the port of old. The samples old had started
// but not finished reading seed the history.
func TailReaderFromExisting[V, D Number](old ReaderConfig, historySize int, opts ...Option) (*TailReader[V, D], error) {
	if old == nil {
		return nil, errors.WrapInvalid(errors.ErrArgumentNull, "TailReader", "TailReaderFromExisting", "reader check")
	}

	var r *TailReader[V, D]
	err := old.handoff(func(st *handoffState) error {
		if len(st.ports) != 1 {
			return errors.Invalidf(errors.ErrInvalidParameter, "TailReader", "TailReaderFromExisting",
				"source reader has %d ports", len(st.ports))
		}
		o := st.opts
		for _, opt := range opts {
			opt(&o)
		}
		nr, err := newTailReader[V, D](historySize, o)
		if err != nil {
			return err
		}
		nr.port = st.ports[0]
		if err := nr.dec.apply(st.valueDesc, st.domainDesc); err != nil {
			return err
		}
		if st.pending != nil {
			if err := nr.record(st.pending, st.pendingPos); err != nil {
				return err
			}
		}
		nr.b = takeOver("tail_reader", st)
		r = nr
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "TailReader", "TailReaderFromExisting", "reader handoff")
	}
	return r, nil
}

func (r *TailReader[V, D]) bind() error {
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

// Read copies the newest min(len(values), available) samples into values, oldest
// first. It waits up to timeout for the history to hold len(values) samples (All)
// or any sample (Any). len(values) may not exceed the history size.
func (r *TailReader[V, D]) Read(values []V, timeout time.Duration) (int, ReaderStatus, error) {
	if values == nil {
		return 0, invalidStatus(), errors.WrapInvalid(errors.ErrArgumentNull, "TailReader", "Read", "buffer check")
	}
	return r.read("Read", values, nil, timeout)
}

// ReadWithDomain is Read that also copies the matching domain values.
func (r *TailReader[V, D]) ReadWithDomain(values []V, domain []D, timeout time.Duration) (int, ReaderStatus, error) {
	if values == nil || domain == nil {
		return 0, invalidStatus(), errors.WrapInvalid(errors.ErrArgumentNull, "TailReader", "ReadWithDomain", "buffer check")
	}
	if len(domain) < len(values) {
		return 0, invalidStatus(), errors.Invalidf(errors.ErrInvalidParameter, "TailReader", "ReadWithDomain",
			"domain buffer holds %d samples, need %d", len(domain), len(values))
	}
	return r.read("ReadWithDomain", values, domain[:len(values)], timeout)
}

func (r *TailReader[V, D]) read(method string, values []V, domain []D, timeout time.Duration) (int, ReaderStatus, error) {
	count := len(values)
	if count > r.historySize {
		return 0, invalidStatus(), errors.Invalidf(errors.ErrSizeTooLarge, "TailReader", method,
			"requested %d samples, history holds %d", count, r.historySize)
	}
	start := time.Now()
	deadline := start.Add(timeout)

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.b.valid() {
		return 0, invalidStatus(), nil
	}

	status := validStatus()
	expired := false
	var event *packet.EventPacket
	for {
		ev, err := r.fill()
		if err != nil {
			r.b.invalidate(reasonConversionFailed)
			r.b.logger.Warn("sample conversion failed, reader invalidated", "error", err)
			return 0, invalidStatus(), errors.Wrap(err, "TailReader", method, "sample conversion")
		}
		size := r.history.Size()
		if ev != nil {
			event = ev
			break
		}
		if size >= count || timeout <= 0 || expired || (r.opts.timeoutType == Any && size > 0) {
			break
		}

		r.mu.Unlock()
		woke := r.b.wait(deadline)
		r.mu.Lock()

		if !r.b.valid() {
			return 0, invalidStatus(), nil
		}
		expired = !woke
	}

	samples := r.history.Tail(count)
	for i, s := range samples {
		values[i] = s.value
		if domain != nil {
			domain[i] = s.domain
		}
	}
	if len(samples) > 0 && samples[0].hasDomain {
		status.Offset, status.HasOffset = int64(samples[0].domain), true
	}

	if event != nil {
		status.ReadStatus = Event
		status.EventPacket = event
		if value, _, ok := packet.DescriptorChange(event); ok && value != nil {
			r.history.Clear()
		}
	}
	if expired && len(samples) < count {
		r.b.metrics.RecordReadTimeout(r.b.name)
	}
	r.b.metrics.RecordSamplesRead(r.b.name, len(samples))
	r.b.metrics.RecordReadDuration(r.b.name, time.Since(start))
	return len(samples), status, nil
}

// fill moves every queued data packet into history until an event that stops the
// read. Caller holds mu.
func (r *TailReader[V, D]) fill() (*packet.EventPacket, error) {
	conn := r.port.Connection()
	if conn == nil {
		return nil, nil
	}
	for {
		p, ok := conn.Dequeue()
		if !ok {
			return nil, nil
		}
		switch pk := p.(type) {
		case *packet.DataPacket:
			if err := r.record(pk, 0); err != nil {
				return nil, err
			}
		case *packet.EventPacket:
			r.b.metrics.RecordReaderEvent(r.b.name, pk.ID())
			if value, domain, ok := packet.DescriptorChange(pk); ok {
				if err := r.dec.apply(value, domain); err != nil {
					return nil, err
				}
				// Samples of the old value type must not mix with the new ones.
				if value != nil && r.opts.skipEvents {
					r.history.Clear()
				}
			}
			if !r.opts.skipEvents {
				return pk, nil
			}
		}
	}
}

// record appends samples [from, count) of p to history. Only the newest historySize
// samples are converted.
func (r *TailReader[V, D]) record(p *packet.DataPacket, from int) error {
	from = max(from, p.SampleCount()-r.historySize)
	n := p.SampleCount() - from
	if n <= 0 {
		return nil
	}
	if cap(r.values) < n {
		r.values = make([]V, n)
		r.domains = make([]D, n)
	}
	values, domains := r.values[:n], r.domains[:n]

	if err := r.dec.values(p, from, values); err != nil {
		return err
	}
	hasDomain, err := r.dec.domains(p, from, domains)
	if err != nil {
		return err
	}

	samples := make([]tailSample[V, D], n)
	for i := range samples {
		samples[i] = tailSample[V, D]{value: values[i], domain: domains[i], hasDomain: hasDomain}
	}
	return r.history.WriteBatch(samples)
}

// AvailableCount returns the number of samples a read would return, up to the
// history size.
func (r *TailReader[V, D]) AvailableCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.b.valid() {
		return 0
	}
	count := r.history.Size()
	if conn := r.port.Connection(); conn != nil {
		count += conn.AvailableSamples()
	}
	return min(count, r.historySize)
}

func (r *TailReader[V, D]) HistorySize() int { return r.historySize }

// ValueDescriptor returns the active value descriptor.
func (r *TailReader[V, D]) ValueDescriptor() *packet.DataDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dec.valueDesc
}

// DomainDescriptor returns the active domain descriptor.
func (r *TailReader[V, D]) DomainDescriptor() *packet.DataDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dec.domainDesc
}

// SetValueTransform sets a function applied to values as they enter the history.
func (r *TailReader[V, D]) SetValueTransform(fn Transform[V]) {
	r.mu.Lock()
	r.dec.valueTransform = fn
	r.mu.Unlock()
}

// SetDomainTransform sets a function applied to domain values as they enter the history.
func (r *TailReader[V, D]) SetDomainTransform(fn Transform[D]) {
	r.mu.Lock()
	r.dec.domainTransform = fn
	r.mu.Unlock()
}

func (r *TailReader[V, D]) SetOnDataAvailable(fn func()) { r.b.setOnData(fn) }

func (r *TailReader[V, D]) MarkAsInvalid() { r.b.invalidate(reasonMarkedInvalid) }

func (r *TailReader[V, D]) IsValid() bool { return r.b.valid() }

func (r *TailReader[V, D]) InputPort() *signal.InputPort { return r.port }

func (r *TailReader[V, D]) InputPorts() []*signal.InputPort { return []*signal.InputPort{r.port} }

// Close invalidates the reader, releases the history and disconnects a port it created.
func (r *TailReader[V, D]) Close() error {
	err := r.b.close()
	r.mu.Lock()
	_ = r.history.Close()
	r.mu.Unlock()
	return err
}

// handoff passes the port on. History is not transferred; a successor reader
// continues with the packets still queued.
func (r *TailReader[V, D]) handoff(adopt func(*handoffState) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.b.valid() {
		return errors.WrapInvalid(errors.ErrReaderInvalid, "TailReader", "handoff", "reader state check")
	}
	st := r.b.snapshot(r.opts)
	st.valueDesc, st.domainDesc = r.dec.valueDesc, r.dec.domainDesc
	if err := adopt(st); err != nil {
		return err
	}
	r.b.release()
	return nil
}
