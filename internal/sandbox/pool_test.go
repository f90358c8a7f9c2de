package sandbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAcquireRelease(t *testing.T) {
	pool, err := NewPool(DefaultConfig(), 2)
	require.NoError(t, err)
	defer pool.Close()

	ctx := context.Background()

	runtime, err := pool.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, PoolStats{Size: 2, Available: 1, InUse: 1}, pool.Stats())

	result, err := runtime.Execute(ctx, "var shared = 42; shared")
	require.NoError(t, err)
	assert.Equal(t, float64(42), result.Value)

	require.NoError(t, pool.Release(runtime))
	assert.Equal(t, 2, pool.Stats().Available)

	// released runtimes are reset
	for i := 0; i < 2; i++ {
		result, err = pool.Execute(ctx, "typeof shared")
		require.NoError(t, err)
		assert.Equal(t, "undefined", result.Value)
	}
}

func TestPoolExecute(t *testing.T) {
	pool, err := NewPool(DefaultConfig(), 2)
	require.NoError(t, err)
	defer pool.Close()

	ctx := context.Background()
	script := "Math.sqrt(16)"

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := pool.Execute(ctx, script)
			if err == nil && result.Value != float64(4) {
				t.Errorf("unexpected value %v", result.Value)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 2, pool.Stats().Available)
}

func TestPoolAcquireWaits(t *testing.T) {
	pool, err := NewPool(DefaultConfig(), 1)
	require.NoError(t, err)
	defer pool.Close()
	pool.acquireTimeout = 20 * time.Millisecond

	runtime, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	_, err = pool.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pool.acquireTimeout = time.Minute
	_, err = pool.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, pool.Release(runtime))
}

func TestPoolClose(t *testing.T) {
	pool, err := NewPool(DefaultConfig(), 0)
	require.NoError(t, err)
	assert.Equal(t, 4, pool.Stats().Size)

	runtime, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close())
	assert.True(t, pool.Stats().Closed)

	_, err = pool.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)

	require.NoError(t, pool.Release(runtime))
	_, err = runtime.Execute(context.Background(), "1")
	assert.ErrorIs(t, err, ErrClosed)
}
