package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openDAQ/openDAQ-sub014/pkg/worker"
	"github.com/openDAQ/openDAQ-sub014/signal"
	"github.com/openDAQ/openDAQ-sub014/testutil"
)

type validity bool

func (v *validity) IsValid() bool { return bool(*v) }

func TestStatusConstructors(t *testing.T) {
	h := NewHealthy("a", "ok")
	assert.True(t, h.Healthy)
	assert.True(t, h.IsHealthy())
	assert.False(t, h.Timestamp.IsZero())

	d := NewDegraded("b", "slow")
	assert.False(t, d.Healthy)
	assert.True(t, d.IsDegraded())

	u := NewUnhealthy("c", "down")
	assert.True(t, u.IsUnhealthy())
	assert.Equal(t, "c", u.Component)
}

func TestWithSubStatus_DoesNotShareBacking(t *testing.T) {
	base := NewHealthy("root", "ok")
	base.SubStatuses = make([]Status, 0, 4)

	a := base.WithSubStatus(NewHealthy("a", "ok"))
	b := base.WithSubStatus(NewDegraded("b", "slow"))

	require.Len(t, a.SubStatuses, 1)
	require.Len(t, b.SubStatuses, 1)
	assert.Equal(t, "a", a.SubStatuses[0].Component)
	assert.Equal(t, "b", b.SubStatuses[0].Component)
	assert.Empty(t, base.SubStatuses)
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name  string
		subs  []Status
		state string
	}{
		{"empty", nil, StateHealthy},
		{"all healthy", []Status{NewHealthy("a", ""), NewHealthy("b", "")}, StateHealthy},
		{"one degraded", []Status{NewHealthy("a", ""), NewDegraded("b", "")}, StateDegraded},
		{"unhealthy wins", []Status{NewDegraded("a", ""), NewUnhealthy("b", "")}, StateUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate("sys", tt.subs)
			assert.Equal(t, tt.state, got.Status)
			assert.Len(t, got.SubStatuses, len(tt.subs))
		})
	}
}

func TestFromError_Sanitizes(t *testing.T) {
	assert.True(t, FromError("x", nil).IsHealthy())

	s := FromError("x", errors.New("open /etc/daq/config.yaml from 10.0.0.12 via http://host:9090/metrics"))
	assert.True(t, s.IsUnhealthy())
	assert.NotContains(t, s.Message, "/etc/daq")
	assert.NotContains(t, s.Message, "10.0.0.12")
	assert.NotContains(t, s.Message, "http://")
	assert.Contains(t, s.Message, "[PATH]")
	assert.Contains(t, s.Message, "[IP]")
	assert.Contains(t, s.Message, "[URL]")
}

func TestMonitor_UpdateAndGet(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("reader", "ok")
	m.UpdateDegraded("port", "drops")

	s, ok := m.Get("reader")
	require.True(t, ok)
	assert.True(t, s.IsHealthy())
	assert.Equal(t, 2, m.Count())
	assert.ElementsMatch(t, []string{"reader", "port"}, m.ListComponents())

	agg := m.AggregateHealth("sys")
	assert.True(t, agg.IsDegraded())
	require.Len(t, agg.SubStatuses, 2)
	assert.Equal(t, "port", agg.SubStatuses[0].Component)

	m.Remove("port")
	assert.True(t, m.AggregateHealth("sys").IsHealthy())

	m.Clear()
	assert.Equal(t, 0, m.Count())
}

func TestMonitor_CheckRunsProbes(t *testing.T) {
	v := validity(true)
	m := NewMonitor()
	m.Register("reader", ReaderProbe("reader", &v))

	assert.True(t, m.Check("sys").IsHealthy())

	v = false
	status := m.Check("sys")
	assert.True(t, status.IsUnhealthy())
	got, ok := m.Get("reader")
	require.True(t, ok)
	assert.Equal(t, "reader invalidated", got.Message)

	m.Remove("reader")
	assert.True(t, m.Check("sys").IsHealthy())
}

func TestPortProbe(t *testing.T) {
	p := testutil.NewRampProducer(t, "ai0", 10)
	port := signal.NewInputPort("in0", signal.WithQueueCapacity(2, 2))
	probe := PortProbe("in0", port)

	assert.True(t, probe().IsUnhealthy())

	require.NoError(t, port.Connect(p.Value))
	s := probe()
	assert.True(t, s.IsHealthy())
	assert.Equal(t, "connected to ai0", s.Message)

	// The descriptor event already occupies one slot.
	p.Send(t, 1)
	p.Send(t, 1)
	s = probe()
	assert.True(t, s.IsDegraded())
	require.NotNil(t, s.Metrics)
	assert.Positive(t, s.Metrics.Drops)

	require.NoError(t, port.Disconnect())
	assert.True(t, probe().IsUnhealthy())
}

func TestSchedulerProbe(t *testing.T) {
	s, err := worker.NewScheduler(1, 2)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	probe := SchedulerProbe("scheduler", s)

	assert.True(t, probe().IsHealthy())

	running := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, s.ScheduleWork(func() {
		close(running)
		<-release
	}))
	<-running

	require.NoError(t, s.ScheduleWork(func() {}))
	require.NoError(t, s.ScheduleWork(func() {}))
	assert.True(t, probe().IsUnhealthy())

	assert.Error(t, s.ScheduleWork(func() {}))
	close(release)
	require.Eventually(t, func() bool { return s.Stats().QueueDepth == 0 }, time.Second, 5*time.Millisecond)

	status := probe()
	assert.True(t, status.IsDegraded())
	assert.Equal(t, int64(1), status.Metrics.Drops)
	require.NoError(t, s.Stop(time.Second))
}
