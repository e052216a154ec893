package reader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openDAQ/openDAQ-sub014/errors"
	"github.com/openDAQ/openDAQ-sub014/packet"
	"github.com/openDAQ/openDAQ-sub014/testutil"
)

func newTestTailReader(t *testing.T, p *testutil.RampProducer, historySize int, opts ...Option) *TailReader[float64, int64] {
	t.Helper()
	r, err := NewTailReader[float64, int64](p.Value, historySize, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestTailReader_RepeatedReadsReturnLastValues(t *testing.T) {
	p := testutil.NewRampProducer(t, "ai0", domainDelta)
	r := newTestTailReader(t, p, 10)
	p.Send(t, 100)

	for i := 0; i < 3; i++ {
		buf := make([]float64, 10)
		n, status, err := r.Read(buf, 0)
		require.NoError(t, err)
		assert.Equal(t, 10, n)
		assert.True(t, status.Valid)
		assert.Equal(t, testutil.Ramp(90, 10), buf)
	}
	assert.Equal(t, 10, r.AvailableCount())
	assert.Equal(t, 10, r.HistorySize())
}

func TestTailReader_FewerSamplesThanRequested(t *testing.T) {
	p := testutil.NewRampProducer(t, "ai0", domainDelta)
	r := newTestTailReader(t, p, 10)
	p.Send(t, 4)

	buf := make([]float64, 8)
	n, _, err := r.Read(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, testutil.Ramp(0, 4), buf[:n])

	p.Send(t, 6)
	n, _, err = r.Read(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, testutil.Ramp(2, 8), buf)
}

func TestTailReader_SizeTooLarge(t *testing.T) {
	p := testutil.NewRampProducer(t, "ai0", domainDelta)
	r := newTestTailReader(t, p, 10)

	_, _, err := r.Read(make([]float64, 11), 0)
	assert.True(t, errors.Is(err, errors.ErrSizeTooLarge))

	_, err = NewTailReader[float64, int64](p.Value, 0)
	assert.True(t, errors.Is(err, errors.ErrInvalidParameter))
}

func TestTailReader_DescriptorChangeResetsHistory(t *testing.T) {
	p := testutil.NewRampProducer(t, "ai0", domainDelta)
	r := newTestTailReader(t, p, 10)

	p.Send(t, 5)
	require.NoError(t, p.Value.SetDescriptor(testutil.ValueDescriptor(t, "ai0", packet.SampleTypeInt32)))
	p.Send(t, 3)

	buf := make([]float64, 10)
	n, status, err := r.Read(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, Event, status.ReadStatus)
	assert.Equal(t, 5, n)
	assert.Equal(t, testutil.Ramp(0, 5), buf[:n])

	n, status, err = r.Read(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, Ok, status.ReadStatus)
	assert.Equal(t, 3, n)
	assert.Equal(t, testutil.Ramp(5, 3), buf[:n])
}

func TestTailReader_SkippedDescriptorChangeResetsHistory(t *testing.T) {
	p := testutil.NewRampProducer(t, "ai0", domainDelta)
	r := newTestTailReader(t, p, 10, WithSkipEvents(true))

	p.Send(t, 5)
	require.NoError(t, p.Value.SetDescriptor(testutil.ValueDescriptor(t, "ai0", packet.SampleTypeInt32)))
	p.Send(t, 3)

	buf := make([]float64, 10)
	n, status, err := r.Read(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, Ok, status.ReadStatus)
	assert.Equal(t, 3, n)
	assert.Equal(t, testutil.Ramp(5, 3), buf[:n])
	assert.Equal(t, 3, r.AvailableCount())
}

func TestTailReader_ReadWithDomain(t *testing.T) {
	p := testutil.NewRampProducer(t, "ai0", domainDelta)
	r := newTestTailReader(t, p, 10)
	p.Send(t, 20)

	values := make([]float64, 5)
	domain := make([]int64, 5)
	n, status, err := r.ReadWithDomain(values, domain, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, testutil.Ramp(15, 5), values)
	assert.Equal(t, []int64{150, 160, 170, 180, 190}, domain)
	assert.True(t, status.HasOffset)
	assert.Equal(t, int64(150), status.Offset)
}

func TestTailReader_AnyWaitsForFirstSample(t *testing.T) {
	p := testutil.NewRampProducer(t, "ai0", domainDelta)
	r := newTestTailReader(t, p, 10, WithReadTimeoutType(Any))

	go func() {
		time.Sleep(20 * time.Millisecond)
		p.Send(t, 3)
	}()

	start := time.Now()
	n, _, err := r.Read(make([]float64, 10), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestTailReader_InvalidAfterSignalRemoved(t *testing.T) {
	p := testutil.NewRampProducer(t, "ai0", domainDelta)
	r := newTestTailReader(t, p, 10)
	p.Send(t, 5)
	p.Value.Remove()

	n, status, err := r.Read(make([]float64, 5), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.False(t, status.Valid)
	assert.Equal(t, 0, r.AvailableCount())
}

func TestTailReader_FromExisting(t *testing.T) {
	p := testutil.NewRampProducer(t, "ai0", domainDelta)
	sr := newTestStreamReader(t, p)
	p.Send(t, 10)

	_, _, err := sr.Read(make([]float64, 3), 0)
	require.NoError(t, err)

	tr, err := TailReaderFromExisting[float64, int64](sr, 5)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	assert.False(t, sr.IsValid())

	buf := make([]float64, 5)
	n, _, err := tr.Read(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, testutil.Ramp(5, 5), buf)

	p.Send(t, 2)
	n, _, err = tr.Read(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, testutil.Ramp(7, 5), buf)
}

func TestTailReader_ValueTransform(t *testing.T) {
	p := testutil.NewRampProducer(t, "ai0", domainDelta)
	r := newTestTailReader(t, p, 4)
	r.SetValueTransform(func(samples []float64, _ *packet.DataDescriptor) {
		for i := range samples {
			samples[i] *= -1
		}
	})
	p.Send(t, 4)

	buf := make([]float64, 2)
	_, _, err := r.Read(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{-2, -3}, buf)
}
