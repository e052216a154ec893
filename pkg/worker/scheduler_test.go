package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openDAQ/openDAQ-sub014/errors"
	"github.com/openDAQ/openDAQ-sub014/metric"
)

func TestScheduler_RunsCallbacks(t *testing.T) {
	sched, err := NewScheduler(2, 64, WithSchedulerMetrics(metric.NewMetricsRegistry(), "notifications"))
	require.NoError(t, err)
	require.NoError(t, sched.Start(context.Background()))

	var wg sync.WaitGroup
	var ran atomic.Int64
	for i := 0; i < 20; i++ {
		wg.Add(1)
		require.NoError(t, sched.ScheduleWork(func() {
			defer wg.Done()
			ran.Add(1)
		}))
	}
	wg.Wait()

	require.NoError(t, sched.Stop(5*time.Second))
	assert.Equal(t, int64(20), ran.Load())
	assert.Equal(t, int64(20), sched.Stats().Processed)
}

func TestScheduler_ErrorClassification(t *testing.T) {
	sched, err := NewScheduler(1, 1)
	require.NoError(t, err)

	err = sched.ScheduleWork(nil)
	assert.True(t, errors.Is(err, errors.ErrArgumentNull))

	err = sched.ScheduleWork(func() {})
	assert.True(t, errors.IsInvalid(err), "not started")

	require.NoError(t, sched.Start(context.Background()))

	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, sched.ScheduleWork(func() {
		close(started)
		<-block
	}))
	<-started
	require.NoError(t, sched.ScheduleWork(func() {}))

	err = sched.ScheduleWork(func() {})
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.True(t, errors.Is(err, errors.ErrResourceExhausted))

	close(block)
	require.NoError(t, sched.Stop(5*time.Second))

	err = sched.ScheduleWork(func() {})
	assert.True(t, errors.IsFatal(err))
	assert.True(t, errors.Is(err, errors.ErrSchedulerStopped))
}

func TestScheduler_PanickingCallbackDoesNotKillWorker(t *testing.T) {
	sched, err := NewScheduler(1, 8)
	require.NoError(t, err)
	require.NoError(t, sched.Start(context.Background()))

	done := make(chan struct{})
	require.NoError(t, sched.ScheduleWork(func() { panic("listener bug") }))
	require.NoError(t, sched.ScheduleWork(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive a panicking callback")
	}
	require.NoError(t, sched.Stop(time.Second))
	assert.Equal(t, int64(1), sched.Stats().Panics)
}
