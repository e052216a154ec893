package signal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openDAQ/openDAQ-sub014/errors"
	"github.com/openDAQ/openDAQ-sub014/metric"
	"github.com/openDAQ/openDAQ-sub014/packet"
	"github.com/openDAQ/openDAQ-sub014/pkg/worker"
)

type recordingListener struct {
	mu           sync.Mutex
	reject       bool
	connected    int
	disconnected int
	received     int
	receivedCh   chan struct{}
}

func newRecordingListener() *recordingListener {
	return &recordingListener{receivedCh: make(chan struct{}, 64)}
}

func (l *recordingListener) AcceptsSignal(*InputPort, *Signal) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.reject
}

func (l *recordingListener) Connected(*InputPort) {
	l.mu.Lock()
	l.connected++
	l.mu.Unlock()
}

func (l *recordingListener) Disconnected(*InputPort) {
	l.mu.Lock()
	l.disconnected++
	l.mu.Unlock()
}

func (l *recordingListener) PacketReceived(*InputPort) {
	l.mu.Lock()
	l.received++
	l.mu.Unlock()
	select {
	case l.receivedCh <- struct{}{}:
	default:
	}
}

func (l *recordingListener) counts() (connected, disconnected, received int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected, l.disconnected, l.received
}

func valueDescriptor(t *testing.T) *packet.DataDescriptor {
	t.Helper()
	d, err := packet.NewDataDescriptorBuilder().
		SetName("value").
		SetSampleType(packet.SampleTypeFloat64).
		Build()
	require.NoError(t, err)
	return d
}

func domainDescriptor(t *testing.T) *packet.DataDescriptor {
	t.Helper()
	d, err := packet.NewDataDescriptorBuilder().
		SetName("time").
		SetSampleType(packet.SampleTypeInt64).
		SetRule(packet.LinearRule(1, 0)).
		SetTickResolution(packet.Ratio{Num: 1, Den: 1000}).
		Build()
	require.NoError(t, err)
	return d
}

func newTestSignal(t *testing.T, opts ...SignalOption) *Signal {
	t.Helper()
	sig, err := NewSignal("sig", valueDescriptor(t), opts...)
	require.NoError(t, err)
	return sig
}

func requireDescriptorEvent(t *testing.T, p packet.Packet) (value, domain *packet.DataDescriptor) {
	t.Helper()
	value, domain, ok := packet.DescriptorChange(p)
	require.True(t, ok, "expected descriptor changed event, got %v", p.Type())
	return value, domain
}

func TestConnect_EnqueuesDescriptorEventFirst(t *testing.T) {
	timeSig, err := NewSignal("time", domainDescriptor(t))
	require.NoError(t, err)
	sig := newTestSignal(t, WithDomainSignal(timeSig))

	listener := newRecordingListener()
	port := NewInputPort("in", WithListener(listener))
	require.NoError(t, port.Connect(sig))

	conn := port.Connection()
	require.NotNil(t, conn)
	assert.Same(t, sig, conn.Signal())
	assert.Same(t, port, conn.InputPort())
	assert.Equal(t, 1, conn.PacketCount())

	p, ok := conn.Dequeue()
	require.True(t, ok)
	value, domain := requireDescriptorEvent(t, p)
	assert.True(t, value.Equal(sig.Descriptor()))
	assert.True(t, domain.Equal(timeSig.Descriptor()))

	connected, _, received := listener.counts()
	assert.Equal(t, 1, connected)
	assert.Equal(t, 1, received)
	assert.Len(t, sig.Connections(), 1)
}

func TestConnect_SameSignalIsNoop(t *testing.T) {
	sig := newTestSignal(t)
	listener := newRecordingListener()
	port := NewInputPort("in", WithListener(listener))

	require.NoError(t, port.Connect(sig))
	conn := port.Connection()
	require.NoError(t, port.Connect(sig))

	assert.Same(t, conn, port.Connection())
	assert.Equal(t, 1, conn.PacketCount())
	connected, _, _ := listener.counts()
	assert.Equal(t, 1, connected)
	assert.Len(t, sig.Connections(), 1)
}

func TestConnect_ReplacesConnection(t *testing.T) {
	first := newTestSignal(t)
	second, err := NewSignal("second", valueDescriptor(t))
	require.NoError(t, err)

	listener := newRecordingListener()
	port := NewInputPort("in", WithListener(listener))
	require.NoError(t, port.Connect(first))
	require.NoError(t, port.Connect(second))

	assert.Same(t, second, port.Signal())
	assert.Empty(t, first.Connections())
	assert.Len(t, second.Connections(), 1)

	connected, disconnected, _ := listener.counts()
	assert.Equal(t, 2, connected)
	assert.Equal(t, 0, disconnected)
}

func TestConnect_Errors(t *testing.T) {
	t.Run("nil signal", func(t *testing.T) {
		port := NewInputPort("in")
		err := port.Connect(nil)
		assert.True(t, errors.Is(err, errors.ErrArgumentNull))
	})

	t.Run("rejected by listener", func(t *testing.T) {
		listener := newRecordingListener()
		listener.reject = true
		port := NewInputPort("in", WithListener(listener))

		err := port.Connect(newTestSignal(t))
		assert.True(t, errors.Is(err, errors.ErrInvalidState))
		assert.True(t, errors.Is(err, errors.ErrSignalNotAccepted))
		assert.False(t, port.IsConnected())
	})

	t.Run("removed signal", func(t *testing.T) {
		sig := newTestSignal(t)
		sig.Remove()
		port := NewInputPort("in")

		err := port.Connect(sig)
		assert.True(t, errors.Is(err, errors.ErrInvalidState))
		assert.True(t, errors.Is(err, errors.ErrSignalRemoved))
	})

	t.Run("removed port", func(t *testing.T) {
		port := NewInputPort("in")
		port.Remove()
		assert.True(t, port.IsRemoved())

		err := port.Connect(newTestSignal(t))
		assert.True(t, errors.Is(err, errors.ErrPortRemoved))
	})
}

func TestDisconnect(t *testing.T) {
	sig := newTestSignal(t)
	listener := newRecordingListener()
	port := NewInputPort("in", WithListener(listener))

	require.NoError(t, port.Disconnect(), "unconnected port")

	require.NoError(t, port.Connect(sig))
	require.NoError(t, port.Disconnect())
	require.NoError(t, port.Disconnect())

	assert.False(t, port.IsConnected())
	assert.Nil(t, port.Signal())
	assert.Empty(t, sig.Connections())
	_, disconnected, _ := listener.counts()
	assert.Equal(t, 1, disconnected)

	// Sending after the port left must not reach it
	require.NoError(t, sig.SendPacket(mustFloatPacket(t, sig, 1, 2)))
	_, _, received := listener.counts()
	assert.Equal(t, 1, received)
}

func TestSignalRemove_DisconnectsPorts(t *testing.T) {
	sig := newTestSignal(t)
	listeners := []*recordingListener{newRecordingListener(), newRecordingListener()}
	ports := []*InputPort{
		NewInputPort("a", WithListener(listeners[0])),
		NewInputPort("b", WithListener(listeners[1])),
	}
	for _, p := range ports {
		require.NoError(t, p.Connect(sig))
	}

	sig.Remove()
	sig.Remove()

	assert.True(t, sig.IsRemoved())
	assert.Empty(t, sig.Connections())
	for i, p := range ports {
		assert.False(t, p.IsConnected())
		_, disconnected, _ := listeners[i].counts()
		assert.Equal(t, 1, disconnected)
	}

	err := sig.SendPacket(mustFloatPacket(t, sig, 1))
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
	assert.True(t, errors.Is(sig.SetDescriptor(valueDescriptor(t)), errors.ErrSignalRemoved))
}

func mustFloatPacket(t *testing.T, sig *Signal, values ...float64) *packet.DataPacket {
	t.Helper()
	p, err := packet.NewFloat64Packet(sig.Descriptor(), values)
	require.NoError(t, err)
	return p
}

func TestSendPacket_FanOutOrder(t *testing.T) {
	sig := newTestSignal(t)
	a := NewInputPort("a")
	b := NewInputPort("b")
	require.NoError(t, a.Connect(sig))
	require.NoError(t, b.Connect(sig))

	sent := []*packet.DataPacket{
		mustFloatPacket(t, sig, 1, 2),
		mustFloatPacket(t, sig, 3),
		mustFloatPacket(t, sig, 4, 5, 6),
	}
	require.NoError(t, sig.SendPacket(sent[0]))
	require.NoError(t, sig.SendPackets(sent[1], sent[2]))

	for _, port := range []*InputPort{a, b} {
		conn := port.Connection()
		assert.Equal(t, 4, conn.PacketCount())
		assert.True(t, conn.HasEventPacket())
		assert.Equal(t, 0, conn.AvailableSamples(), "event at the head")

		_, ok := conn.Dequeue()
		require.True(t, ok)
		assert.False(t, conn.HasEventPacket())
		assert.Equal(t, 6, conn.AvailableSamples())

		for _, want := range sent {
			got, ok := conn.Dequeue()
			require.True(t, ok)
			assert.Same(t, want, got)
		}
		_, ok = conn.Dequeue()
		assert.False(t, ok)
	}

	last, ok := sig.LastValue()
	require.True(t, ok)
	assert.Equal(t, 6.0, last)
}

func TestSendPacket_Errors(t *testing.T) {
	sig := newTestSignal(t)
	assert.True(t, errors.Is(sig.SendPacket(nil), errors.ErrArgumentNull))
	assert.NoError(t, sig.SendPackets())

	_, ok := sig.LastValue()
	assert.False(t, ok)
}

func TestSetDescriptor_EnqueuesEventAndForwardsToDependents(t *testing.T) {
	timeSig, err := NewSignal("time", domainDescriptor(t))
	require.NoError(t, err)
	sig := newTestSignal(t, WithDomainSignal(timeSig))

	valuePort := NewInputPort("value")
	timePort := NewInputPort("time")
	require.NoError(t, valuePort.Connect(sig))
	require.NoError(t, timePort.Connect(timeSig))
	valuePort.Connection().DequeueAll()
	timePort.Connection().DequeueAll()

	newValue, err := packet.DataDescriptorBuilderFrom(sig.Descriptor()).
		SetSampleType(packet.SampleTypeInt32).
		Build()
	require.NoError(t, err)
	require.NoError(t, sig.SetDescriptor(newValue))

	p, ok := valuePort.Connection().Dequeue()
	require.True(t, ok)
	value, domain := requireDescriptorEvent(t, p)
	assert.True(t, value.Equal(newValue))
	assert.Nil(t, domain)

	newDomain, err := packet.DataDescriptorBuilderFrom(timeSig.Descriptor()).
		SetRule(packet.LinearRule(10, 0)).
		Build()
	require.NoError(t, err)
	require.NoError(t, timeSig.SetDescriptor(newDomain))

	p, ok = timePort.Connection().Dequeue()
	require.True(t, ok)
	value, _ = requireDescriptorEvent(t, p)
	assert.True(t, value.Equal(newDomain))

	p, ok = valuePort.Connection().Dequeue()
	require.True(t, ok)
	value, domain = requireDescriptorEvent(t, p)
	assert.Nil(t, value)
	assert.True(t, domain.Equal(newDomain))
}

func TestSetDescriptor_Validation(t *testing.T) {
	sig := newTestSignal(t, WithTypeManager(NewMapTypeManager("Known")))

	assert.True(t, errors.Is(sig.SetDescriptor(nil), errors.ErrArgumentNull))

	field := valueDescriptor(t)
	unknown, err := packet.NewDataDescriptorBuilder().
		SetStructFields("Unknown", packet.StructField{Name: "x", Descriptor: field}).
		Build()
	require.NoError(t, err)
	assert.True(t, errors.Is(sig.SetDescriptor(unknown), errors.ErrInvalidDescriptor))

	known, err := packet.NewDataDescriptorBuilder().
		SetStructFields("Known", packet.StructField{Name: "x", Descriptor: field}).
		Build()
	require.NoError(t, err)
	assert.NoError(t, sig.SetDescriptor(known))
}

func TestSetDomainSignal(t *testing.T) {
	sig := newTestSignal(t)
	port := NewInputPort("in")
	require.NoError(t, port.Connect(sig))
	port.Connection().DequeueAll()

	timeSig, err := NewSignal("time", domainDescriptor(t))
	require.NoError(t, err)
	require.NoError(t, sig.SetDomainSignal(timeSig))
	assert.Same(t, timeSig, sig.DomainSignal())
	assert.True(t, sig.DomainDescriptor().Equal(timeSig.Descriptor()))

	p, ok := port.Connection().Dequeue()
	require.True(t, ok)
	value, domain := requireDescriptorEvent(t, p)
	assert.Nil(t, value)
	assert.True(t, domain.Equal(timeSig.Descriptor()))

	require.NoError(t, sig.SetDomainSignal(timeSig))
	assert.Equal(t, 0, port.Connection().PacketCount(), "unchanged domain")

	assert.True(t, errors.Is(sig.SetDomainSignal(sig), errors.ErrInvalidParameter))
}

func TestNewDataPacket(t *testing.T) {
	timeSig, err := NewSignal("time", domainDescriptor(t))
	require.NoError(t, err)

	p, err := timeSig.NewDataPacket(4, 100)
	require.NoError(t, err)
	assert.Equal(t, 4, p.SampleCount())
	assert.Equal(t, int64(103), p.Int64At(3))

	empty, err := NewSignal("empty", nil)
	require.NoError(t, err)
	_, err = empty.NewDataPacket(1, 0)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
}

func TestNotification_Scheduler(t *testing.T) {
	sched, err := worker.NewScheduler(1, 16)
	require.NoError(t, err)
	require.NoError(t, sched.Start(context.Background()))
	defer func() { _ = sched.Stop(time.Second) }()

	listener := newRecordingListener()
	port := NewInputPort("in",
		WithListener(listener),
		WithScheduler(sched),
		WithNotificationMethod(NotifyScheduler))
	assert.Equal(t, NotifyScheduler, port.NotificationMethod())

	sig := newTestSignal(t)
	require.NoError(t, port.Connect(sig))

	select {
	case <-listener.receivedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("packet notification was not delivered")
	}
}

func TestNotification_SchedulerFallback(t *testing.T) {
	sched, err := worker.NewScheduler(1, 16)
	require.NoError(t, err)
	// never started: ScheduleWork fails and delivery falls back to the caller

	metrics := metric.NewMetrics()
	listener := newRecordingListener()
	port := NewInputPort("in",
		WithListener(listener),
		WithScheduler(sched),
		WithNotificationMethod(NotifyScheduler),
		WithPortMetrics(metrics))

	sig := newTestSignal(t)
	require.NoError(t, port.Connect(sig))
	require.NoError(t, sig.SendPacket(mustFloatPacket(t, sig, 1)))

	_, _, received := listener.counts()
	assert.Equal(t, 2, received)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.NotificationFailures.WithLabelValues("in")))
}

func TestQueueLimit_DropsNewest(t *testing.T) {
	sig := newTestSignal(t)
	port := NewInputPort("in", WithQueueCapacity(2, 3))
	require.NoError(t, port.Connect(sig))

	for i := 0; i < 5; i++ {
		require.NoError(t, sig.SendPacket(mustFloatPacket(t, sig, float64(i))))
	}

	conn := port.Connection()
	assert.Equal(t, 3, conn.PacketCount())
	assert.Equal(t, int64(3), conn.Stats().Drops)
}

func TestQueueLimit_KeepsEventPackets(t *testing.T) {
	sig := newTestSignal(t)
	port := NewInputPort("in", WithQueueCapacity(2, 2))
	require.NoError(t, port.Connect(sig))

	for i := 0; i < 3; i++ {
		require.NoError(t, sig.SendPacket(mustFloatPacket(t, sig, float64(i))))
	}
	newValue, err := packet.DataDescriptorBuilderFrom(sig.Descriptor()).
		SetSampleType(packet.SampleTypeInt32).
		Build()
	require.NoError(t, err)
	require.NoError(t, sig.SetDescriptor(newValue))

	conn := port.Connection()
	assert.True(t, conn.HasEventPacket())
	assert.Equal(t, 3, conn.PacketCount())
	assert.Equal(t, int64(2), conn.Stats().Drops)

	ps := conn.DequeueAll()
	require.Len(t, ps, 3)
	requireDescriptorEvent(t, ps[0])
	assert.Equal(t, packet.TypeData, ps[1].Type())
	value, _ := requireDescriptorEvent(t, ps[2])
	assert.True(t, value.Equal(newValue))
}

func TestParseNotificationMethod(t *testing.T) {
	m, ok := ParseNotificationMethod("scheduler")
	assert.True(t, ok)
	assert.Equal(t, NotifyScheduler, m)

	m, ok = ParseNotificationMethod("")
	assert.True(t, ok)
	assert.Equal(t, NotifySameThread, m)

	_, ok = ParseNotificationMethod("bogus")
	assert.False(t, ok)
	assert.Equal(t, "Scheduler", NotifyScheduler.String())
}

func TestConcurrentSendAndDisconnect(t *testing.T) {
	sig := newTestSignal(t)
	ports := make([]*InputPort, 8)
	for i := range ports {
		ports[i] = NewInputPort("in")
		require.NoError(t, ports[i].Connect(sig))
	}

	packets := make([]*packet.DataPacket, 200)
	for i := range packets {
		packets[i] = mustFloatPacket(t, sig, float64(i))
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, p := range packets {
			_ = sig.SendPacket(p)
		}
	}()
	for _, p := range ports {
		wg.Add(1)
		go func(p *InputPort) {
			defer wg.Done()
			_ = p.Disconnect()
		}(p)
	}
	wg.Wait()

	assert.Empty(t, sig.Connections())
}
