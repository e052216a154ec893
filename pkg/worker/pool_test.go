package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openDAQ/openDAQ-sub014/errors"
	"github.com/openDAQ/openDAQ-sub014/metric"
)

type testWork struct {
	id    int
	delay time.Duration
	fail  bool
	panic bool
}

func newTestPool(t *testing.T, workers, queue int, processor func(context.Context, testWork) error, opts ...Option[testWork]) *Pool[testWork] {
	t.Helper()
	pool, err := NewPool(workers, queue, processor, opts...)
	require.NoError(t, err)
	return pool
}

func TestNewPool(t *testing.T) {
	processor := func(_ context.Context, _ testWork) error { return nil }

	pool := newTestPool(t, 5, 100, processor)
	assert.Equal(t, 5, pool.workers)
	assert.Equal(t, 100, pool.queueSize)

	pool = newTestPool(t, 0, 0, processor)
	assert.Equal(t, 4, pool.workers)
	assert.Equal(t, 1024, pool.queueSize)

	_, err := NewPool[testWork](1, 1, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNilProcessor))
	assert.True(t, errors.Is(err, errors.ErrArgumentNull))
}

func TestPool_StartStop(t *testing.T) {
	var processedCount atomic.Int64
	pool := newTestPool(t, 2, 10, func(_ context.Context, _ testWork) error {
		processedCount.Add(1)
		return nil
	})

	ctx := context.Background()
	require.NoError(t, pool.Start(ctx))
	assert.True(t, errors.Is(pool.Start(ctx), ErrPoolAlreadyStarted))

	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(testWork{id: i}))
	}

	// Stop drains queued work
	require.NoError(t, pool.Stop(5*time.Second))
	assert.Equal(t, int64(5), processedCount.Load())

	err := pool.Submit(testWork{id: 999})
	assert.True(t, errors.Is(err, ErrPoolStopped))
	assert.True(t, errors.Is(pool.Start(ctx), ErrPoolStopped))
	require.NoError(t, pool.Stop(time.Second), "Stop is idempotent")
}

func TestPool_SubmitBeforeStart(t *testing.T) {
	pool := newTestPool(t, 1, 1, func(_ context.Context, _ testWork) error { return nil })
	err := pool.Submit(testWork{})
	assert.True(t, errors.Is(err, ErrPoolNotStarted))
	assert.True(t, errors.IsInvalid(err))
}

func TestPool_QueueFull(t *testing.T) {
	release := make(chan struct{})
	pool := newTestPool(t, 1, 2, func(_ context.Context, _ testWork) error {
		<-release
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop(5 * time.Second)

	dropped := 0
	for i := 0; i < 10; i++ {
		if err := pool.Submit(testWork{id: i}); err != nil {
			assert.True(t, errors.Is(err, ErrQueueFull))
			assert.True(t, errors.IsTransient(err))
			dropped++
		}
	}
	close(release)

	assert.GreaterOrEqual(t, dropped, 7, "at most one in flight plus two queued")
	assert.Equal(t, int64(dropped), pool.Stats().Dropped)
}

func TestPool_ProcessingErrorsAndPanics(t *testing.T) {
	var mu sync.Mutex
	var handled []error

	pool := newTestPool(t, 2, 20, func(_ context.Context, work testWork) error {
		if work.panic {
			panic(fmt.Sprintf("boom %d", work.id))
		}
		if work.fail {
			return errors.New("simulated error")
		}
		return nil
	}, WithErrorHandler(func(_ testWork, err error) {
		mu.Lock()
		handled = append(handled, err)
		mu.Unlock()
	}))
	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(testWork{id: i, fail: i%2 == 0, panic: i == 1}))
	}
	require.NoError(t, pool.Stop(5*time.Second))

	stats := pool.Stats()
	assert.Equal(t, int64(10), stats.Processed)
	assert.Equal(t, int64(6), stats.Failed)
	assert.Equal(t, int64(1), stats.Panics)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, handled, 6)
	var panicErr *PanicError
	found := false
	for _, err := range handled {
		if errors.As(err, &panicErr) {
			found = true
			assert.Equal(t, "boom 1", panicErr.Value)
		}
	}
	assert.True(t, found, "panic must reach the error handler")
}

func TestPool_ContextCancellation(t *testing.T) {
	pool := newTestPool(t, 2, 10, func(ctx context.Context, work testWork) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(work.delay):
			return nil
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, pool.Start(ctx))
	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(testWork{id: i, delay: time.Second}))
	}
	cancel()

	start := time.Now()
	require.NoError(t, pool.Stop(5*time.Second))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestPool_ConcurrentSubmissions(t *testing.T) {
	var processedCount atomic.Int64
	pool := newTestPool(t, 5, 200, func(_ context.Context, _ testWork) error {
		processedCount.Add(1)
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(submitterID int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				assert.NoError(t, pool.Submit(testWork{id: submitterID*10 + j}))
			}
		}(i)
	}
	wg.Wait()

	require.NoError(t, pool.Stop(5*time.Second))
	assert.Equal(t, int64(100), processedCount.Load())
}

func TestPool_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	pool := newTestPool(t, 1, 10, func(_ context.Context, w testWork) error {
		if w.fail {
			return errors.New("fail")
		}
		return nil
	}, WithMetricsRegistry[testWork](registry, "notify"))

	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Submit(testWork{}))
	require.NoError(t, pool.Submit(testWork{fail: true}))

	assert.Equal(t, 2.0, testutil.ToFloat64(pool.metrics.submitted))

	// Duplicate prefix is rejected and leaves the first pool's metrics intact
	_, err := NewPool(1, 1, func(context.Context, testWork) error { return nil },
		WithMetricsRegistry[testWork](registry, "notify"))
	require.Error(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(pool.metrics.submitted))

	require.NoError(t, pool.Stop(5*time.Second))
	assert.Equal(t, 2.0, testutil.ToFloat64(pool.metrics.processed))
	assert.Equal(t, 1.0, testutil.ToFloat64(pool.metrics.failed))

	// Stop releases the prefix
	again, err := NewPool(1, 1, func(context.Context, testWork) error { return nil },
		WithMetricsRegistry[testWork](registry, "notify"))
	require.NoError(t, err)
	require.NoError(t, again.Stop(time.Second))
}
