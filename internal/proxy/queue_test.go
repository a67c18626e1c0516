package proxy

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueNeverExceedsLimit(t *testing.T) {
	q := NewQueue(3)
	var current, peak int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := q.Acquire(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&current, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&current, -1)
			release()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, int32(3))
	assert.Equal(t, 0, q.InFlight())
	assert.Equal(t, 0, q.Waiting())
}

func TestQueueAdmitsInArrivalOrder(t *testing.T) {
	q := NewQueue(1)
	hold, err := q.Acquire(context.Background())
	require.NoError(t, err)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			release, err := q.Acquire(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			release()
		}(i)
		require.Eventually(t, func() bool { return q.Waiting() == i+1 }, time.Second, time.Millisecond)
	}

	hold()
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestQueueCancelledWaiterLeaves(t *testing.T) {
	q := NewQueue(1)
	hold, err := q.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = q.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, q.Waiting())

	hold()
	assert.Equal(t, 0, q.InFlight())

	release, err := q.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, q.InFlight())
	release()
	release()
	assert.Equal(t, 0, q.InFlight())
}
