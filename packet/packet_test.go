package packet

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openDAQ/openDAQ-sub014/errors"
)

func float64Descriptor(t *testing.T) *DataDescriptor {
	t.Helper()
	d, err := NewDataDescriptorBuilder().SetName("value").SetSampleType(SampleTypeFloat64).Build()
	require.NoError(t, err)
	return d
}

func TestDescriptorBuilderDefaults(t *testing.T) {
	d, err := NewDataDescriptorBuilder().Build()
	require.NoError(t, err)

	assert.Equal(t, SampleTypeFloat64, d.SampleType())
	assert.Equal(t, RuleExplicit, d.Rule().Type)
	assert.Equal(t, 8, d.SampleSize())
	assert.Equal(t, 8, d.RawSampleSize())
	assert.False(t, d.IsDomain())
}

func TestDescriptorValidate(t *testing.T) {
	field := NewDataDescriptorBuilder().SetName("x").SetSampleType(SampleTypeInt32).MustBuild()

	tests := []struct {
		name    string
		builder *DataDescriptorBuilder
		wantErr bool
	}{
		{name: "explicit float", builder: NewDataDescriptorBuilder()},
		{name: "undefined type", builder: NewDataDescriptorBuilder().SetSampleType(SampleTypeUndefined), wantErr: true},
		{name: "zero dimension", builder: NewDataDescriptorBuilder().SetDimensions(Dimension{Name: "bins", Size: 0}), wantErr: true},
		{name: "linear int64", builder: NewDataDescriptorBuilder().SetSampleType(SampleTypeInt64).SetRule(LinearRule(10, 0))},
		{name: "linear on string", builder: NewDataDescriptorBuilder().SetSampleType(SampleTypeString).SetRule(LinearRule(1, 0)), wantErr: true},
		{name: "struct with fields", builder: NewDataDescriptorBuilder().SetStructFields("Point", StructField{Name: "x", Descriptor: field})},
		{name: "struct without fields", builder: NewDataDescriptorBuilder().SetSampleType(SampleTypeStruct), wantErr: true},
		{name: "struct field nil descriptor", builder: NewDataDescriptorBuilder().SetStructFields("Point", StructField{Name: "x"}), wantErr: true},
		{name: "bad tick resolution", builder: NewDataDescriptorBuilder().SetTickResolution(Ratio{Num: 1, Den: 0}), wantErr: true},
		{
			name: "scaling with non-numeric input",
			builder: NewDataDescriptorBuilder().SetPostScaling(Scaling{
				InputType: SampleTypeString, OutputType: SampleTypeFloat64, Scale: 1,
			}),
			wantErr: true,
		},
		{
			name: "scaling with linear rule",
			builder: NewDataDescriptorBuilder().SetRule(LinearRule(1, 0)).SetPostScaling(Scaling{
				InputType: SampleTypeInt16, OutputType: SampleTypeFloat64, Scale: 1,
			}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsInvalid(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDescriptorEqualAndBuilderFrom(t *testing.T) {
	a := NewDataDescriptorBuilder().
		SetName("time").
		SetSampleType(SampleTypeInt64).
		SetRule(LinearRule(1000, 0)).
		SetTickResolution(Ratio{Num: 1, Den: 1_000_000}).
		SetUnit(Unit{Symbol: "s", Quantity: "time"}).
		SetMetadata("source", "test").
		MustBuild()

	b := DataDescriptorBuilderFrom(a).MustBuild()
	assert.True(t, a.Equal(b))
	assert.NotSame(t, a, b)

	c := DataDescriptorBuilderFrom(a).SetRule(LinearRule(500, 0)).MustBuild()
	assert.False(t, a.Equal(c))
	assert.Equal(t, int64(1000), a.Rule().Delta, "source must not change")

	var nilDesc *DataDescriptor
	assert.True(t, nilDesc.Equal(nil))
	assert.False(t, a.Equal(nil))
}

func TestDescriptorSampleRateAndTime(t *testing.T) {
	d := NewDataDescriptorBuilder().
		SetSampleType(SampleTypeInt64).
		SetRule(LinearRule(1000, 0)).
		SetTickResolution(Ratio{Num: 1, Den: 1_000_000}).
		MustBuild()

	assert.InDelta(t, 1000.0, d.SampleRate(), 1e-9)

	ts, err := d.TickToTime(2_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ts.Unix())
}

func TestRatio(t *testing.T) {
	assert.True(t, Ratio{Num: 1, Den: 1000}.Equal(Ratio{Num: 2, Den: 2000}))
	assert.Equal(t, Ratio{Num: 1, Den: 4}, Ratio{Num: 25, Den: 100}.Simplify())
	assert.InDelta(t, 0.25, Ratio{Num: 1, Den: 4}.Float(), 1e-12)
	assert.Equal(t, int64(6), GCD(-12, 18))
	assert.Equal(t, int64(5), GCD(5, 0))
}

func TestDataPacketExplicit(t *testing.T) {
	d := float64Descriptor(t)
	p, err := NewFloat64Packet(d, []float64{1.5, 2.5, 3.5})
	require.NoError(t, err)

	assert.Equal(t, TypeData, p.Type())
	assert.Equal(t, 3, p.SampleCount())
	assert.Len(t, p.RawData(), 24)
	assert.Equal(t, p.RawData(), p.Data(), "explicit unscaled data is the raw buffer")
	assert.Equal(t, 2.5, p.Float64At(1))

	last, ok := p.LastFloat64()
	require.True(t, ok)
	assert.Equal(t, 3.5, last)
}

func TestDataPacketIDsAreUnique(t *testing.T) {
	d := float64Descriptor(t)
	a, err := NewDataPacket(d, 1, 0)
	require.NoError(t, err)
	b, err := NewDataPacket(d, 1, 0)
	require.NoError(t, err)
	assert.NotEqual(t, a.PacketID(), b.PacketID())
}

func TestDataPacketWithDataSizeMismatch(t *testing.T) {
	d := float64Descriptor(t)
	_, err := NewDataPacketWithData(d, 2, 0, make([]byte, 15))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidParameter))

	_, err = NewDataPacket(nil, 1, 0)
	assert.True(t, errors.Is(err, errors.ErrArgumentNull))
}

func TestDataPacketLinearRule(t *testing.T) {
	d := NewDataDescriptorBuilder().
		SetSampleType(SampleTypeInt64).
		SetRule(LinearRule(10, 5)).
		MustBuild()

	p, err := NewDataPacket(d, 4, 100)
	require.NoError(t, err)
	assert.Nil(t, p.RawData())

	got := make([]int64, 4)
	for i := range got {
		got[i] = p.Int64At(i)
	}
	assert.Equal(t, []int64{105, 115, 125, 135}, got)
}

func TestDataPacketConstantRule(t *testing.T) {
	d := NewDataDescriptorBuilder().
		SetSampleType(SampleTypeFloat32).
		SetRule(ConstantRule(7)).
		MustBuild()

	p, err := NewDataPacket(d, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, float64(7), p.Float64At(2))

	q, err := NewConstantDataPacket(d, 2, 42)
	require.NoError(t, err)
	v, ok := q.ConstantValue()
	require.True(t, ok)
	assert.Equal(t, float64(42), v)
	assert.Equal(t, float64(42), q.Float64At(1))
}

func TestDataPacketPostScaling(t *testing.T) {
	d := NewDataDescriptorBuilder().
		SetPostScaling(Scaling{
			InputType:  SampleTypeInt16,
			OutputType: SampleTypeFloat64,
			Scale:      0.5,
			Offset:     1,
		}).
		MustBuild()

	assert.Equal(t, SampleTypeFloat64, d.SampleType())
	assert.Equal(t, SampleTypeInt16, d.RawSampleType())
	assert.Equal(t, 2, d.RawSampleSize())

	p, err := NewFloat64Packet(d, []float64{-4, 0, 10})
	require.NoError(t, err)
	assert.Len(t, p.RawData(), 6)
	assert.Equal(t, int64(-4), ReadInt64(p.RawData(), SampleTypeInt16, 0))
	assert.Equal(t, []float64{-1, 1, 6}, []float64{p.Float64At(0), p.Float64At(1), p.Float64At(2)})
}

func TestDataPacketDataComputedOnce(t *testing.T) {
	d := NewDataDescriptorBuilder().SetSampleType(SampleTypeInt32).SetRule(LinearRule(1, 0)).MustBuild()
	p, err := NewDataPacket(d, 1000, 0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]byte, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.Data()
		}(i)
	}
	wg.Wait()

	for _, r := range results[1:] {
		assert.Same(t, &results[0][0], &r[0])
	}
}

func TestDescriptorChangedEvent(t *testing.T) {
	value := float64Descriptor(t)
	e := NewDataDescriptorChangedEvent(value, nil)

	assert.Equal(t, TypeEvent, e.Type())
	assert.Equal(t, EventDataDescriptorChanged, e.ID())
	assert.True(t, IsDescriptorChanged(e))

	v, dom, ok := DescriptorChange(e)
	require.True(t, ok)
	assert.Same(t, value, v)
	assert.Nil(t, dom)

	other := NewEventPacket("PROPERTY_CHANGED", map[string]any{"Name": "x"})
	assert.False(t, IsDescriptorChanged(other))
	_, _, ok = DescriptorChange(other)
	assert.False(t, ok)

	params := other.Parameters()
	params["Name"] = "y"
	name, _ := other.Parameter("Name")
	assert.Equal(t, "x", name, "parameters are copied")
}

func TestSampleTypeCodecs(t *testing.T) {
	tests := []struct {
		st    SampleType
		value int64
	}{
		{SampleTypeInt8, -5},
		{SampleTypeUInt8, 250},
		{SampleTypeInt16, -30000},
		{SampleTypeUInt16, 60000},
		{SampleTypeInt32, -2_000_000_000},
		{SampleTypeUInt32, 4_000_000_000},
		{SampleTypeInt64, -9_000_000_000_000},
		{SampleTypeFloat32, 1024},
		{SampleTypeFloat64, -77},
	}

	for _, tt := range tests {
		t.Run(tt.st.String(), func(t *testing.T) {
			buf := EncodeInt64s(tt.st, []int64{0, tt.value})
			assert.Len(t, buf, 2*tt.st.Size())
			assert.Equal(t, tt.value, ReadInt64(buf, tt.st, 1))
			assert.Equal(t, float64(tt.value), ReadFloat64(buf, tt.st, 1))
		})
	}

	assert.False(t, SampleTypeString.IsNumeric())
	assert.False(t, SampleTypeFloat32.IsInteger())
	assert.True(t, SampleTypeUInt16.IsInteger())
	assert.Equal(t, "Unknown", SampleType(99).String())
}
