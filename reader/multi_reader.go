package reader

import (
	"sync"
	"time"

	"github.com/openDAQ/openDAQ-sub014/errors"
	"github.com/openDAQ/openDAQ-sub014/packet"
	"github.com/openDAQ/openDAQ-sub014/signal"
)

type multiPort[V, D Number] struct {
	port    *signal.InputPort
	dec     sampleDecoder[V, D]
	pending *packet.DataPacket
	pos     int

	// delta is the domain tick step of one sample; divider is delta over the common step.
	delta   int64
	divider int64
}

func (mp *multiPort[V, D]) remaining() int {
	if mp.pending == nil {
		return 0
	}
	return mp.pending.SampleCount() - mp.pos
}

func (mp *multiPort[V, D]) available() int {
	n := mp.remaining()
	if conn := mp.port.Connection(); conn != nil {
		n += conn.AvailableSamples()
	}
	return n
}

// load makes the next data packet pending. It returns false when the queue is empty
// or an event is next.
func (mp *multiPort[V, D]) load() bool {
	for mp.pending == nil {
		conn := mp.port.Connection()
		if conn == nil {
			return false
		}
		p, ok := conn.Peek()
		if !ok {
			return false
		}
		dp, isData := p.(*packet.DataPacket)
		if !isData {
			return false
		}
		conn.Dequeue()
		if dp.SampleCount() > 0 {
			mp.pending, mp.pos = dp, 0
		}
	}
	return true
}

func (mp *multiPort[V, D]) advance(k int) {
	mp.pos += k
	if mp.pos >= mp.pending.SampleCount() {
		mp.pending, mp.pos = nil, 0
	}
}

// MultiReader reads several signals sharing a time base in domain-aligned blocks.
// Counts are in samples of the common rate; a port whose signal runs at 1/k of the
// common rate receives count/k samples.
//
// All domain signals must use linear rules with the same tick resolution, origin
// and unit.
type MultiReader[V, D Number] struct {
	mu    sync.Mutex
	b     *binding
	opts  options
	ports []*multiPort[V, D]

	configured bool
	resolution packet.Ratio
	commonStep int64
	// block is the smallest common count every port can serve with whole samples.
	block  int64
	synced bool
}

// NewMultiReader creates and connects one owned port per signal.
func NewMultiReader[V, D Number](signals []*signal.Signal, opts ...Option) (*MultiReader[V, D], error) {
	return newMultiReader[V, D](signals, nil, buildOptions(opts))
}

// NewMultiReaderFromPorts reads from existing ports.
func NewMultiReaderFromPorts[V, D Number](ports []*signal.InputPort, opts ...Option) (*MultiReader[V, D], error) {
	return newMultiReader[V, D](nil, ports, buildOptions(opts))
}

func newMultiReader[V, D Number](signals []*signal.Signal, ports []*signal.InputPort, o options) (*MultiReader[V, D], error) {
	if len(signals) > 0 && len(ports) > 0 {
		return nil, errors.Invalidf(errors.ErrInvalidParameter, "MultiReader", "NewMultiReader",
			"signals and ports cannot be mixed")
	}
	if len(signals)+len(ports) == 0 {
		return nil, errors.Invalidf(errors.ErrInvalidParameter, "MultiReader", "NewMultiReader",
			"at least one signal or port is required")
	}

	r := &MultiReader[V, D]{b: newBinding("multi_reader", o), opts: o}
	for _, sig := range signals {
		if sig == nil {
			_ = r.b.close()
			return nil, errors.WrapInvalid(errors.ErrArgumentNull, "MultiReader", "NewMultiReader", "signal check")
		}
		port, err := r.b.ownPort(sig, o)
		if err != nil {
			_ = r.b.close()
			return nil, errors.Wrap(err, "MultiReader", "NewMultiReader", "port connect")
		}
		r.ports = append(r.ports, &multiPort[V, D]{port: port, dec: sampleDecoder[V, D]{mode: o.mode}})
	}
	for _, port := range ports {
		if port == nil {
			return nil, errors.WrapInvalid(errors.ErrArgumentNull, "MultiReader", "NewMultiReaderFromPorts", "port check")
		}
		r.ports = append(r.ports, &multiPort[V, D]{port: port, dec: sampleDecoder[V, D]{mode: o.mode}})
	}

	for i, mp := range r.ports {
		if err := bindMultiPort(mp); err != nil {
			_ = r.b.close()
			return nil, errors.Wrap(err, "MultiReader", "NewMultiReader", "descriptor binding")
		}
		if mp.dec.valueDesc != nil && mp.dec.domainDesc == nil {
			_ = r.b.close()
			return nil, errors.Invalidf(errors.ErrInvalidParameter, "MultiReader", "NewMultiReader",
				"port %d signal has no domain signal", i)
		}
	}
	if err := r.configure(); err != nil {
		_ = r.b.close()
		return nil, errors.Wrap(err, "MultiReader", "NewMultiReader", "domain check")
	}
	if len(ports) > 0 {
		r.b.adopt(false, ports...)
	}
	return r, nil
}

func bindMultiPort[V, D Number](mp *multiPort[V, D]) error {
	conn := mp.port.Connection()
	if conn == nil {
		return nil
	}
	p, ok := conn.Peek()
	if !ok || !packet.IsDescriptorChanged(p) {
		return nil
	}
	value, domain, _ := packet.DescriptorChange(p)
	if err := mp.dec.apply(value, domain); err != nil {
		return err
	}
	conn.Dequeue()
	return nil
}

// configure derives the common rate from the domain descriptors. It leaves the reader
// unconfigured without error while some port has no domain descriptor yet.
func (r *MultiReader[V, D]) configure() error {
	r.configured, r.synced = false, false

	var first *packet.DataDescriptor
	step := int64(0)
	for i, mp := range r.ports {
		d := mp.dec.domainDesc
		if d == nil {
			return nil
		}
		rule := d.Rule()
		if rule.Type != packet.RuleLinear || rule.Delta <= 0 {
			return errors.Invalidf(errors.ErrInvalidParameter, "MultiReader", "configure",
				"port %d domain %q is not linear", i, d.Name())
		}
		if first == nil {
			first = d
		} else if !first.TickResolution().Equal(d.TickResolution()) ||
			first.Origin() != d.Origin() || first.Unit() != d.Unit() {
			return errors.Invalidf(errors.ErrInvalidParameter, "MultiReader", "configure",
				"port %d domain %q does not share the time base of %q", i, d.Name(), first.Name())
		}
		mp.delta = rule.Delta
		step = packet.GCD(step, rule.Delta)
	}

	block := int64(1)
	for _, mp := range r.ports {
		mp.divider = mp.delta / step
		block = block / packet.GCD(block, mp.divider) * mp.divider
	}
	r.resolution = first.TickResolution()
	r.commonStep = step
	r.block = block
	r.configured = true
	return nil
}

// Read fills values[i] with count/divider_i samples of port i. count is rounded down
// to a multiple of the block size; n is in common-rate samples.
func (r *MultiReader[V, D]) Read(values [][]V, count int, timeout time.Duration) (int, MultiReaderStatus, error) {
	if values == nil {
		return 0, r.status(invalidStatus()), errors.WrapInvalid(errors.ErrArgumentNull, "MultiReader", "Read", "buffer check")
	}
	return r.read("Read", values, nil, count, timeout)
}

// ReadWithDomain is Read that also fills the domain values of each port.
func (r *MultiReader[V, D]) ReadWithDomain(values [][]V, domain [][]D, count int, timeout time.Duration) (int, MultiReaderStatus, error) {
	if values == nil || domain == nil {
		return 0, r.status(invalidStatus()), errors.WrapInvalid(errors.ErrArgumentNull, "MultiReader", "ReadWithDomain", "buffer check")
	}
	return r.read("ReadWithDomain", values, domain, count, timeout)
}

// SkipSamples discards count common-rate samples on every port.
func (r *MultiReader[V, D]) SkipSamples(count int, timeout time.Duration) (int, MultiReaderStatus, error) {
	return r.read("SkipSamples", nil, nil, count, timeout)
}

func (r *MultiReader[V, D]) status(s ReaderStatus) MultiReaderStatus {
	return MultiReaderStatus{ReaderStatus: s, EventPackets: make([]*packet.EventPacket, len(r.ports))}
}

func (r *MultiReader[V, D]) checkBuffers(method string, values [][]V, domain [][]D, count int) error {
	if count < 0 {
		return errors.Invalidf(errors.ErrInvalidParameter, "MultiReader", method, "negative count %d", count)
	}
	if values != nil && len(values) != len(r.ports) {
		return errors.Invalidf(errors.ErrInvalidParameter, "MultiReader", method,
			"got %d value buffers for %d ports", len(values), len(r.ports))
	}
	if domain != nil && len(domain) != len(r.ports) {
		return errors.Invalidf(errors.ErrInvalidParameter, "MultiReader", method,
			"got %d domain buffers for %d ports", len(domain), len(r.ports))
	}
	if !r.configured {
		return nil
	}
	for i, mp := range r.ports {
		need := count / int(mp.divider)
		if values != nil && len(values[i]) < need {
			return errors.Invalidf(errors.ErrInvalidParameter, "MultiReader", method,
				"value buffer %d holds %d samples, need %d", i, len(values[i]), need)
		}
		if domain != nil && len(domain[i]) < need {
			return errors.Invalidf(errors.ErrInvalidParameter, "MultiReader", method,
				"domain buffer %d holds %d samples, need %d", i, len(domain[i]), need)
		}
	}
	return nil
}

func (r *MultiReader[V, D]) read(method string, values [][]V, domain [][]D, count int, timeout time.Duration) (int, MultiReaderStatus, error) {
	start := time.Now()
	deadline := start.Add(timeout)

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.b.valid() {
		return 0, r.status(invalidStatus()), nil
	}
	if err := r.checkBuffers(method, values, domain, count); err != nil {
		return 0, r.status(invalidStatus()), err
	}

	status := r.status(validStatus())
	n := 0
	expired := false
	for {
		stopped, err := r.takeEvents(&status)
		if err != nil {
			return r.fail(method, n, err)
		}
		if stopped {
			break
		}
		if !r.configured {
			if err := r.configure(); err != nil {
				return r.fail(method, n, err)
			}
			if r.configured {
				if err := r.checkBuffers(method, values, domain, count); err != nil {
					return n, status, err
				}
			}
		}

		if r.configured {
			want := count - count%int(r.block)
			ready, err := r.sync()
			if err != nil {
				return r.fail(method, n, err)
			}
			if ready && n < want {
				if k := min(want-n, r.commonAvailable()); k > 0 {
					if err := r.copyBlock(values, domain, n, k, &status.ReaderStatus); err != nil {
						return r.fail(method, n, err)
					}
					n += k
					if n >= want {
						break
					}
					// an event may now be at the head of a port
					continue
				}
			}
			if n >= want {
				break
			}
		}
		if timeout <= 0 || expired || (r.opts.timeoutType == Any && n > 0) {
			break
		}

		r.mu.Unlock()
		woke := r.b.wait(deadline)
		r.mu.Lock()

		if !r.b.valid() {
			return n, r.status(invalidStatus()), nil
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

func (r *MultiReader[V, D]) fail(method string, n int, err error) (int, MultiReaderStatus, error) {
	reason := reasonConversionFailed
	if errors.Is(err, errors.ErrInvalidParameter) {
		reason = reasonIncompatible
	}
	r.b.invalidate(reason)
	r.b.logger.Warn("multi reader invalidated", "reason", reason, "error", err)
	return n, r.status(invalidStatus()), errors.Wrap(err, "MultiReader", method, reason)
}

// takeEvents consumes the events at the head of every port. Samples queued before an
// event that are too few to form an aligned block are discarded. It reports whether
// the read must stop with an Event status.
func (r *MultiReader[V, D]) takeEvents(status *MultiReaderStatus) (bool, error) {
	seen := false
	for i, mp := range r.ports {
		conn := mp.port.Connection()
		if conn == nil || !conn.HasEventPacket() {
			continue
		}
		if mp.load() {
			perBlock := 1
			if r.configured {
				perBlock = int(r.block / mp.divider)
			}
			if mp.available() >= perBlock {
				continue
			}
			mp.pending, mp.pos = nil, 0
			for mp.load() {
				mp.pending, mp.pos = nil, 0
			}
		}

		for {
			p, ok := conn.Peek()
			if !ok || p.Type() != packet.TypeEvent {
				break
			}
			conn.Dequeue()
			ev, _ := p.(*packet.EventPacket)
			r.b.metrics.RecordReaderEvent(r.b.name, ev.ID())
			if value, domain, ok := packet.DescriptorChange(ev); ok {
				if err := mp.dec.apply(value, domain); err != nil {
					return false, err
				}
				r.configured = false
			}
			r.synced = false
			if !r.opts.skipEvents {
				status.EventPackets[i] = ev
				if status.EventPacket == nil {
					status.EventPacket = ev
				}
				seen = true
			}
		}
	}
	if seen {
		status.ReadStatus = Event
	}
	return seen, nil
}

// sync discards samples until every port starts on the same tick: the first tick at
// or after the latest first tick that lies on every port's sample grid. It returns
// false while some port has no data yet.
func (r *MultiReader[V, D]) sync() (bool, error) {
	if r.synced {
		return true, nil
	}

	firsts := make([]int64, len(r.ports))
	for {
		for i, mp := range r.ports {
			if !mp.load() {
				return false, nil
			}
			tick, ok := offsetOf(mp.pending, mp.pos)
			if !ok {
				return false, errors.Invalidf(errors.ErrInvalidParameter, "MultiReader", "sync",
					"port %d data carries no domain packet", i)
			}
			firsts[i] = tick
		}

		start, ok := r.commonTick(firsts)
		if !ok {
			return false, errors.Invalidf(errors.ErrInvalidParameter, "MultiReader", "sync",
				"port sample ticks %v never coincide", firsts)
		}

		aligned := true
		for _, mp := range r.ports {
			for {
				if !mp.load() {
					return false, nil
				}
				tick, _ := offsetOf(mp.pending, mp.pos)
				if tick >= start {
					// a gap in a port's data moves the start; search again
					aligned = aligned && tick == start
					break
				}
				skip := int((start - tick + mp.delta - 1) / mp.delta)
				mp.advance(min(skip, mp.remaining()))
			}
		}
		if aligned {
			r.synced = true
			r.b.logger.Debug("ports synchronized", "start_tick", start)
			return true, nil
		}
	}
}

// commonTick returns the first tick at or after max(firsts) sampled by every port,
// where port i samples firsts[i] + k*delta_i. Such a tick repeats every LCM of the
// deltas, so the search stops one period past the latest first tick.
func (r *MultiReader[V, D]) commonTick(firsts []int64) (int64, bool) {
	start := firsts[0]
	for _, t := range firsts[1:] {
		start = max(start, t)
	}
	limit := start + r.block*r.commonStep

	for start <= limit {
		next := start
		for i, mp := range r.ports {
			t := firsts[i]
			if t < start {
				t += (start - t + mp.delta - 1) / mp.delta * mp.delta
			}
			next = max(next, t)
		}
		if next == start {
			return start, true
		}
		start = next
	}
	return 0, false
}

// commonAvailable returns the number of common-rate samples every port can serve,
// rounded down to whole blocks.
func (r *MultiReader[V, D]) commonAvailable() int {
	common := -1
	for _, mp := range r.ports {
		c := mp.available() * int(mp.divider)
		if common < 0 || c < common {
			common = c
		}
	}
	return common - common%int(r.block)
}

// copyBlock reads k common-rate samples from every port into the buffers at common
// position at.
func (r *MultiReader[V, D]) copyBlock(values [][]V, domain [][]D, at, k int, status *ReaderStatus) error {
	for i, mp := range r.ports {
		div := int(mp.divider)
		dst, todo := at/div, k/div
		for todo > 0 {
			if !mp.load() {
				return errors.Invalidf(errors.ErrInvalidState, "MultiReader", "copyBlock",
					"port %d ran out of samples", i)
			}
			take := min(todo, mp.remaining())
			if values != nil {
				if err := mp.dec.values(mp.pending, mp.pos, values[i][dst:dst+take]); err != nil {
					return err
				}
			}
			if domain != nil {
				if _, err := mp.dec.domains(mp.pending, mp.pos, domain[i][dst:dst+take]); err != nil {
					return err
				}
			}
			if i == 0 && !status.HasOffset {
				status.Offset, status.HasOffset = offsetOf(mp.pending, mp.pos)
			}
			mp.advance(take)
			dst += take
			todo -= take
		}
	}
	return nil
}

// AvailableCount returns the number of common-rate samples readable without waiting.
func (r *MultiReader[V, D]) AvailableCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.b.valid() || !r.configured {
		return 0
	}
	return r.commonAvailable()
}

// CommonSampleRate returns the rate of the common time base in samples per second,
// 0 before every port has a domain descriptor.
func (r *MultiReader[V, D]) CommonSampleRate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.configured || r.resolution.Num == 0 {
		return 0
	}
	return float64(r.resolution.Den) / float64(r.resolution.Num*r.commonStep)
}

// TickResolution returns the shared domain tick resolution.
func (r *MultiReader[V, D]) TickResolution() packet.Ratio {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolution
}

// Dividers returns, per port, how many common-rate samples make up one port sample.
func (r *MultiReader[V, D]) Dividers() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]int64, len(r.ports))
	for i, mp := range r.ports {
		out[i] = mp.divider
	}
	return out
}

// ValueDescriptors returns the active value descriptor of every port.
func (r *MultiReader[V, D]) ValueDescriptors() []*packet.DataDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*packet.DataDescriptor, len(r.ports))
	for i, mp := range r.ports {
		out[i] = mp.dec.valueDesc
	}
	return out
}

func (r *MultiReader[V, D]) SetOnDataAvailable(fn func()) { r.b.setOnData(fn) }

func (r *MultiReader[V, D]) MarkAsInvalid() { r.b.invalidate(reasonMarkedInvalid) }

func (r *MultiReader[V, D]) IsValid() bool { return r.b.valid() }

func (r *MultiReader[V, D]) InputPorts() []*signal.InputPort {
	out := make([]*signal.InputPort, len(r.ports))
	for i, mp := range r.ports {
		out[i] = mp.port
	}
	return out
}

// Close invalidates the reader and disconnects the ports it created.
func (r *MultiReader[V, D]) Close() error { return r.b.close() }

// MultiReaderBuilder assembles a MultiReader from signals or ports.
type MultiReaderBuilder[V, D Number] struct {
	signals []*signal.Signal
	ports   []*signal.InputPort
	opts    []Option
}

func NewMultiReaderBuilder[V, D Number]() *MultiReaderBuilder[V, D] {
	return &MultiReaderBuilder[V, D]{}
}

func (b *MultiReaderBuilder[V, D]) AddSignal(sig *signal.Signal) *MultiReaderBuilder[V, D] {
	b.signals = append(b.signals, sig)
	return b
}

func (b *MultiReaderBuilder[V, D]) AddInputPort(port *signal.InputPort) *MultiReaderBuilder[V, D] {
	b.ports = append(b.ports, port)
	return b
}

func (b *MultiReaderBuilder[V, D]) SetReadMode(mode ReadMode) *MultiReaderBuilder[V, D] {
	b.opts = append(b.opts, WithReadMode(mode))
	return b
}

func (b *MultiReaderBuilder[V, D]) SetReadTimeoutType(t ReadTimeoutType) *MultiReaderBuilder[V, D] {
	b.opts = append(b.opts, WithReadTimeoutType(t))
	return b
}

func (b *MultiReaderBuilder[V, D]) SetSkipEvents(skip bool) *MultiReaderBuilder[V, D] {
	b.opts = append(b.opts, WithSkipEvents(skip))
	return b
}

func (b *MultiReaderBuilder[V, D]) AddOptions(opts ...Option) *MultiReaderBuilder[V, D] {
	b.opts = append(b.opts, opts...)
	return b
}

func (b *MultiReaderBuilder[V, D]) Build() (*MultiReader[V, D], error) {
	return newMultiReader[V, D](b.signals, b.ports, buildOptions(b.opts))
}
