package reader

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/openDAQ/openDAQ-sub014/errors"
	"github.com/openDAQ/openDAQ-sub014/packet"
)

// Transform post-processes converted samples in place. It runs after built-in scaling.
type Transform[T Number] func(samples []T, descriptor *packet.DataDescriptor)

// converter copies samples of one descriptor into typed slices. It is built once per
// descriptor change so the per-sample loop carries no type dispatch.
type converter[V Number] struct {
	desc   *packet.DataDescriptor
	source func(p *packet.DataPacket) []byte
	decode func(dst []V, buf []byte, from int)
}

func (c *converter[V]) convert(p *packet.DataPacket, from int, dst []V) {
	c.decode(dst, c.source(p), from)
}

func rawSource(p *packet.DataPacket) []byte    { return p.RawData() }
func scaledSource(p *packet.DataPacket) []byte { return p.Data() }

// newConverter selects the decoding strategy for reading desc as V in mode.
func newConverter[V Number](desc *packet.DataDescriptor, mode ReadMode) (*converter[V], error) {
	if desc == nil {
		return nil, errors.Invalidf(errors.ErrConversionFailed, "Reader", "newConverter", "no descriptor")
	}
	if n := desc.ElementCount(); n != 1 {
		return nil, errors.Invalidf(errors.ErrConversionFailed, "Reader", "newConverter",
			"descriptor %q has %d elements per sample", desc.Name(), n)
	}

	st, source := desc.SampleType(), scaledSource
	if mode != Scaled && !desc.Rule().IsImplicit() {
		st, source = desc.RawSampleType(), rawSource
	}
	if !st.IsNumeric() {
		return nil, errors.Invalidf(errors.ErrConversionFailed, "Reader", "newConverter",
			"cannot read %s samples as %s", st, sampleTypeOf[V]())
	}
	if mode == Raw && sampleTypeOf[V]() != st {
		return nil, errors.Invalidf(errors.ErrConversionFailed, "Reader", "newConverter",
			"raw mode requires %s, reader type is %s", st, sampleTypeOf[V]())
	}

	return &converter[V]{desc: desc, source: source, decode: decoderFor[V](st)}, nil
}

// sampleTypeOf returns the sample type with the same layout as V.
func sampleTypeOf[V Number]() packet.SampleType {
	var zero V
	switch any(zero).(type) {
	case float32:
		return packet.SampleTypeFloat32
	case float64:
		return packet.SampleTypeFloat64
	case int8:
		return packet.SampleTypeInt8
	case uint8:
		return packet.SampleTypeUInt8
	case int16:
		return packet.SampleTypeInt16
	case uint16:
		return packet.SampleTypeUInt16
	case int32:
		return packet.SampleTypeInt32
	case uint32:
		return packet.SampleTypeUInt32
	case int64:
		return packet.SampleTypeInt64
	case uint64:
		return packet.SampleTypeUInt64
	case int:
		if strconv.IntSize == 32 {
			return packet.SampleTypeInt32
		}
		return packet.SampleTypeInt64
	case uint:
		if strconv.IntSize == 32 {
			return packet.SampleTypeUInt32
		}
		return packet.SampleTypeUInt64
	default:
		return packet.SampleTypeUndefined
	}
}

func decoderFor[V Number](st packet.SampleType) func(dst []V, buf []byte, from int) {
	le := binary.LittleEndian
	switch st {
	case packet.SampleTypeFloat32:
		return func(dst []V, buf []byte, from int) {
			for i := range dst {
				dst[i] = V(math.Float32frombits(le.Uint32(buf[(from+i)*4:])))
			}
		}
	case packet.SampleTypeFloat64:
		return func(dst []V, buf []byte, from int) {
			for i := range dst {
				dst[i] = V(math.Float64frombits(le.Uint64(buf[(from+i)*8:])))
			}
		}
	case packet.SampleTypeInt8:
		return func(dst []V, buf []byte, from int) {
			for i := range dst {
				dst[i] = V(int8(buf[from+i]))
			}
		}
	case packet.SampleTypeUInt8:
		return func(dst []V, buf []byte, from int) {
			for i := range dst {
				dst[i] = V(buf[from+i])
			}
		}
	case packet.SampleTypeInt16:
		return func(dst []V, buf []byte, from int) {
			for i := range dst {
				dst[i] = V(int16(le.Uint16(buf[(from+i)*2:])))
			}
		}
	case packet.SampleTypeUInt16:
		return func(dst []V, buf []byte, from int) {
			for i := range dst {
				dst[i] = V(le.Uint16(buf[(from+i)*2:]))
			}
		}
	case packet.SampleTypeInt32:
		return func(dst []V, buf []byte, from int) {
			for i := range dst {
				dst[i] = V(int32(le.Uint32(buf[(from+i)*4:])))
			}
		}
	case packet.SampleTypeUInt32:
		return func(dst []V, buf []byte, from int) {
			for i := range dst {
				dst[i] = V(le.Uint32(buf[(from+i)*4:]))
			}
		}
	case packet.SampleTypeInt64:
		return func(dst []V, buf []byte, from int) {
			for i := range dst {
				dst[i] = V(int64(le.Uint64(buf[(from+i)*8:])))
			}
		}
	default:
		return func(dst []V, buf []byte, from int) {
			for i := range dst {
				dst[i] = V(le.Uint64(buf[(from+i)*8:]))
			}
		}
	}
}
