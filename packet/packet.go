package packet

import (
	"sync"
	"sync/atomic"

	"github.com/openDAQ/openDAQ-sub014/errors"
)

// Type distinguishes data and event packets.
type Type int

const (
	TypeData Type = iota
	TypeEvent
)

func (t Type) String() string {
	if t == TypeEvent {
		return "Event"
	}
	return "Data"
}

// Packet is the unit carried from a signal to its connected input ports.
// Packets are immutable after they are sent and are shared by every queue holding them.
type Packet interface {
	Type() Type
}

var packetIDs atomic.Int64

func nextPacketID() int64 {
	return packetIDs.Add(1)
}

// DataPacket carries a block of samples laid out per its descriptor.
type DataPacket struct {
	id          int64
	descriptor  *DataDescriptor
	domain      *DataPacket
	sampleCount int
	offset      int64
	raw         []byte
	constant    *float64

	scaledOnce sync.Once
	scaled     []byte
}

// NewDataPacket allocates a zeroed packet of sampleCount samples. Packets using an
// implicit rule carry no buffer.
func NewDataPacket(descriptor *DataDescriptor, sampleCount int, offset int64) (*DataPacket, error) {
	if descriptor == nil {
		return nil, errors.WrapInvalid(errors.ErrArgumentNull, "DataPacket", "NewDataPacket", "descriptor check")
	}
	if sampleCount < 0 {
		return nil, errors.Invalidf(errors.ErrInvalidParameter, "DataPacket", "NewDataPacket",
			"negative sample count %d", sampleCount)
	}
	p := &DataPacket{
		id:          nextPacketID(),
		descriptor:  descriptor,
		sampleCount: sampleCount,
		offset:      offset,
	}
	if !descriptor.Rule().IsImplicit() {
		p.raw = make([]byte, sampleCount*descriptor.RawSampleSize())
	}
	return p, nil
}

// NewDataPacketWithData wraps an existing raw buffer. The buffer length must match
// sampleCount times the descriptor's raw sample size.
func NewDataPacketWithData(descriptor *DataDescriptor, sampleCount int, offset int64, raw []byte) (*DataPacket, error) {
	p, err := NewDataPacket(descriptor, 0, offset)
	if err != nil {
		return nil, err
	}
	if descriptor.Rule().IsImplicit() {
		return nil, errors.Invalidf(errors.ErrInvalidParameter, "DataPacket", "NewDataPacketWithData",
			"%s rule packets carry no buffer", descriptor.Rule().Type)
	}
	if want := sampleCount * descriptor.RawSampleSize(); len(raw) != want {
		return nil, errors.Invalidf(errors.ErrInvalidParameter, "DataPacket", "NewDataPacketWithData",
			"buffer has %d bytes, expected %d", len(raw), want)
	}
	p.sampleCount = sampleCount
	p.raw = raw
	return p, nil
}

// NewConstantDataPacket creates a packet for a constant-rule descriptor carrying
// its own value.
func NewConstantDataPacket(descriptor *DataDescriptor, sampleCount int, value float64) (*DataPacket, error) {
	if descriptor != nil && descriptor.Rule().Type != RuleConstant {
		return nil, errors.Invalidf(errors.ErrInvalidParameter, "DataPacket", "NewConstantDataPacket",
			"descriptor rule is %s", descriptor.Rule().Type)
	}
	p, err := NewDataPacket(descriptor, sampleCount, 0)
	if err != nil {
		return nil, err
	}
	p.constant = &value
	return p, nil
}

// NewFloat64Packet is a convenience for explicit descriptors that encodes values in
// the descriptor's raw sample type.
func NewFloat64Packet(descriptor *DataDescriptor, values []float64) (*DataPacket, error) {
	if descriptor == nil {
		return nil, errors.WrapInvalid(errors.ErrArgumentNull, "DataPacket", "NewFloat64Packet", "descriptor check")
	}
	st := descriptor.RawSampleType()
	if !st.IsNumeric() || descriptor.ElementCount() != 1 {
		return nil, errors.Invalidf(errors.ErrInvalidParameter, "DataPacket", "NewFloat64Packet",
			"cannot encode scalar values as %s", st)
	}
	return NewDataPacketWithData(descriptor, len(values), 0, EncodeFloat64s(st, values))
}

// SetDomain links the packet to the packet carrying its domain (time) values.
// It must be called before the packet is sent.
func (p *DataPacket) SetDomain(domain *DataPacket) *DataPacket {
	p.domain = domain
	return p
}

func (p *DataPacket) Type() Type                  { return TypeData }
func (p *DataPacket) PacketID() int64             { return p.id }
func (p *DataPacket) Descriptor() *DataDescriptor { return p.descriptor }
func (p *DataPacket) Domain() *DataPacket         { return p.domain }
func (p *DataPacket) SampleCount() int            { return p.sampleCount }
func (p *DataPacket) Offset() int64               { return p.offset }

// RawData returns the buffer in the raw sample type. It is nil for implicit rules.
// Callers must not modify it once the packet is sent.
func (p *DataPacket) RawData() []byte { return p.raw }

// ConstantValue returns the packet's own constant and whether one was set.
func (p *DataPacket) ConstantValue() (float64, bool) {
	if p.constant == nil {
		return 0, false
	}
	return *p.constant, true
}

// Data returns the sample values after rule evaluation and post-scaling, encoded in
// the descriptor's sample type. Computed once on first call.
func (p *DataPacket) Data() []byte {
	p.scaledOnce.Do(func() {
		p.scaled = p.computeData()
	})
	return p.scaled
}

func (p *DataPacket) computeData() []byte {
	d := p.descriptor
	st := d.SampleType()
	rule := d.Rule()
	switch rule.Type {
	case RuleLinear:
		buf := make([]byte, p.sampleCount*st.Size())
		base := p.offset + rule.Start
		for i := 0; i < p.sampleCount; i++ {
			WriteInt64(buf, st, i, base+rule.Delta*int64(i))
		}
		return buf
	case RuleConstant:
		v := rule.Constant
		if p.constant != nil {
			v = *p.constant
		}
		if s, ok := d.PostScaling(); ok {
			v = s.Apply(v)
		}
		buf := make([]byte, p.sampleCount*st.Size())
		for i := 0; i < p.sampleCount; i++ {
			WriteFloat64(buf, st, i, v)
		}
		return buf
	}
	s, ok := d.PostScaling()
	if !ok {
		return p.raw
	}
	n := p.sampleCount * d.ElementCount()
	buf := make([]byte, n*st.Size())
	for i := 0; i < n; i++ {
		WriteFloat64(buf, st, i, s.Apply(ReadFloat64(p.raw, s.InputType, i)))
	}
	return buf
}

// Float64At decodes sample i (first element) from Data().
func (p *DataPacket) Float64At(i int) float64 {
	return ReadFloat64(p.Data(), p.descriptor.SampleType(), i*p.descriptor.ElementCount())
}

// Int64At decodes sample i (first element) from Data().
func (p *DataPacket) Int64At(i int) int64 {
	return ReadInt64(p.Data(), p.descriptor.SampleType(), i*p.descriptor.ElementCount())
}

// LastFloat64 returns the last sample value, false for an empty packet.
func (p *DataPacket) LastFloat64() (float64, bool) {
	if p.sampleCount == 0 || !p.descriptor.SampleType().IsNumeric() {
		return 0, false
	}
	return p.Float64At(p.sampleCount - 1), true
}

// EventPacket carries a control event through the data path.
type EventPacket struct {
	id     string
	params map[string]any
}

// NewEventPacket creates an event packet with the given ID and parameters.
func NewEventPacket(id string, params map[string]any) *EventPacket {
	cp := make(map[string]any, len(params))
	for k, v := range params {
		cp[k] = v
	}
	return &EventPacket{id: id, params: cp}
}

func (e *EventPacket) Type() Type { return TypeEvent }
func (e *EventPacket) ID() string { return e.id }

// Parameters returns a copy of the event parameters.
func (e *EventPacket) Parameters() map[string]any {
	cp := make(map[string]any, len(e.params))
	for k, v := range e.params {
		cp[k] = v
	}
	return cp
}

// Parameter returns a single parameter.
func (e *EventPacket) Parameter(name string) (any, bool) {
	v, ok := e.params[name]
	return v, ok
}
