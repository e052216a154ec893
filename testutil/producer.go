package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openDAQ/openDAQ-sub014/packet"
	"github.com/openDAQ/openDAQ-sub014/signal"
)

// RampProducer drives a value signal and its linear domain signal. Sample i carries
// value i and domain tick i*delta.
type RampProducer struct {
	Value  *signal.Signal
	Domain *signal.Signal

	mu    sync.Mutex
	delta int64
	next  int64
}

// NewRampProducer creates a float64 value signal named name with a domain signal
// advancing delta ticks per sample.
func NewRampProducer(t testing.TB, name string, delta int64, opts ...signal.SignalOption) *RampProducer {
	t.Helper()
	domain, err := signal.NewSignal(name+"_time", TimeDescriptor(t, name+"_time", delta), opts...)
	require.NoError(t, err)

	valueOpts := append([]signal.SignalOption{signal.WithDomainSignal(domain)}, opts...)
	value, err := signal.NewSignal(name, Float64Descriptor(t, name), valueOpts...)
	require.NoError(t, err)

	return &RampProducer{Value: value, Domain: domain, delta: delta}
}

// Send continues the ramp by n samples.
func (p *RampProducer) Send(t testing.TB, n int) {
	t.Helper()
	p.mu.Lock()
	start := p.next
	p.next += int64(n)
	p.mu.Unlock()

	p.SendValues(t, start, Ramp(float64(start), n))
}

// SendValues sends values as samples starting at sample index start.
func (p *RampProducer) SendValues(t testing.TB, start int64, values []float64) {
	t.Helper()
	dom, err := p.Domain.NewDataPacket(len(values), start*p.delta)
	require.NoError(t, err)
	val, err := packet.NewFloat64Packet(p.Value.Descriptor(), values)
	require.NoError(t, err)
	val.SetDomain(dom)

	require.NoError(t, p.Domain.SendPacket(dom))
	require.NoError(t, p.Value.SendPacket(val))
}

// Skip advances the ramp by n samples without sending them.
func (p *RampProducer) Skip(n int) {
	p.mu.Lock()
	p.next += int64(n)
	p.mu.Unlock()
}

// Next returns the index of the next sample Send will produce.
func (p *RampProducer) Next() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next
}
