package xferqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_RunsTaskAndResolvesFuture(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New(ctx, WithConcurrency(2))
	defer q.Close()

	future := q.Enqueue(func(ctx context.Context) (any, error) {
		return "ok", nil
	})

	result, err := future.Wait()
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

// P7: never more than `concurrency` tasks run simultaneously.
func TestQueue_P7_BoundsConcurrency(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const concurrency = 3
	q := New(ctx, WithConcurrency(concurrency))
	defer q.Close()

	var current, max int32
	release := make(chan struct{})
	futures := make([]*Future, 0, 10)

	for i := 0; i < 10; i++ {
		futures = append(futures, q.Enqueue(func(ctx context.Context) (any, error) {
			n := atomic.AddInt32(&current, 1)
			for {
				old := atomic.LoadInt32(&max)
				if n <= old || atomic.CompareAndSwapInt32(&max, old, n) {
					break
				}
			}
			<-release
			atomic.AddInt32(&current, -1)
			return nil, nil
		}))
	}

	time.Sleep(50 * time.Millisecond)
	close(release)

	for _, f := range futures {
		_, _ = f.Wait()
	}

	assert.LessOrEqual(t, int(atomic.LoadInt32(&max)), concurrency)
}

func TestQueue_RetriesWithBackoffThenSucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New(ctx, WithConcurrency(1), WithBackoffBase(5*time.Millisecond))
	defer q.Close()

	var attempts int32
	future := q.Enqueue(func(ctx context.Context) (any, error) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return nil, errors.New("transient")
		}
		return "recovered", nil
	})

	result, err := future.Wait()
	require.NoError(t, err)
	assert.Equal(t, "recovered", result)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

// P7 (exhaustion clause): after MaxRetries the future fails with the last error.
func TestQueue_ExhaustsRetriesAndFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New(ctx, WithConcurrency(1), WithMaxRetries(2), WithBackoffBase(2*time.Millisecond))
	defer q.Close()

	var attempts int32
	future := q.Enqueue(func(ctx context.Context) (any, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, errors.New("persistent failure")
	})

	_, err := future.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persistent failure")
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestQueue_FIFOOrderAmongWaitingTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New(ctx, WithConcurrency(1))
	defer q.Close()

	var order []int
	done := make(chan struct{})

	for i := 0; i < 5; i++ {
		i := i
		f := q.Enqueue(func(ctx context.Context) (any, error) {
			order = append(order, i)
			if i == 4 {
				close(done)
			}
			return nil, nil
		})
		_ = f
	}

	<-done
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}
