package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openDAQ/openDAQ-sub014/packet"
)

// DefaultResolution is the tick resolution of test domain signals: 1 µs.
var DefaultResolution = packet.Ratio{Num: 1, Den: 1_000_000}

// ValueDescriptor returns an explicit descriptor of the given numeric sample type.
func ValueDescriptor(t testing.TB, name string, st packet.SampleType) *packet.DataDescriptor {
	t.Helper()
	d, err := packet.NewDataDescriptorBuilder().
		SetName(name).
		SetSampleType(st).
		SetUnit(packet.Unit{Symbol: "V", Name: "volt", Quantity: "voltage"}).
		Build()
	require.NoError(t, err)
	return d
}

// Float64Descriptor returns an explicit float64 descriptor.
func Float64Descriptor(t testing.TB, name string) *packet.DataDescriptor {
	t.Helper()
	return ValueDescriptor(t, name, packet.SampleTypeFloat64)
}

// ScaledDescriptor returns a descriptor whose raw samples of type raw are scaled
// into float64 as raw*scale + offset.
func ScaledDescriptor(t testing.TB, name string, raw packet.SampleType, scale, offset float64) *packet.DataDescriptor {
	t.Helper()
	d, err := packet.NewDataDescriptorBuilder().
		SetName(name).
		SetPostScaling(packet.Scaling{
			InputType:  raw,
			OutputType: packet.SampleTypeFloat64,
			Scale:      scale,
			Offset:     offset,
		}).
		Build()
	require.NoError(t, err)
	return d
}

// TimeDescriptor returns a linear int64 domain descriptor advancing delta ticks per
// sample at DefaultResolution.
func TimeDescriptor(t testing.TB, name string, delta int64) *packet.DataDescriptor {
	t.Helper()
	d, err := packet.NewDataDescriptorBuilder().
		SetName(name).
		SetSampleType(packet.SampleTypeInt64).
		SetRule(packet.LinearRule(delta, 0)).
		SetTickResolution(DefaultResolution).
		SetOrigin("1970-01-01T00:00:00Z").
		SetUnit(packet.Unit{Symbol: "s", Name: "second", Quantity: "time"}).
		Build()
	require.NoError(t, err)
	return d
}

// StructDescriptor returns a struct descriptor with one float64 field per name.
func StructDescriptor(t testing.TB, structName string, fields ...string) *packet.DataDescriptor {
	t.Helper()
	sf := make([]packet.StructField, len(fields))
	for i, f := range fields {
		sf[i] = packet.StructField{Name: f, Descriptor: Float64Descriptor(t, f)}
	}
	d, err := packet.NewDataDescriptorBuilder().
		SetName(structName).
		SetStructFields(structName, sf...).
		Build()
	require.NoError(t, err)
	return d
}

// Ramp returns n consecutive values starting at start.
func Ramp(start float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)
	}
	return out
}
