// Package proxy fronts store B with bounded concurrency: at most N requests talk
// to the store at once, the rest wait in arrival order.
package proxy

import (
	"container/list"
	"context"
	"sync"

	"mandoub-backend/internal/metrics"
)

// Queue admits callers in FIFO order up to a fixed ceiling.
type Queue struct {
	mu       sync.Mutex
	limit    int
	inFlight int
	waiting  *list.List
}

type ticket struct {
	ready chan struct{}
}

func NewQueue(limit int) *Queue {
	if limit < 1 {
		limit = 1
	}
	return &Queue{limit: limit, waiting: list.New()}
}

// Acquire blocks until the caller holds a slot or ctx ends. The returned release
// func is safe to call more than once.
func (q *Queue) Acquire(ctx context.Context) (func(), error) {
	q.mu.Lock()
	if q.inFlight < q.limit && q.waiting.Len() == 0 {
		q.inFlight++
		q.updateGauges()
		q.mu.Unlock()
		return q.releaser(), nil
	}

	t := &ticket{ready: make(chan struct{})}
	elem := q.waiting.PushBack(t)
	q.updateGauges()
	q.mu.Unlock()

	select {
	case <-t.ready:
		return q.releaser(), nil
	case <-ctx.Done():
		q.mu.Lock()
		select {
		case <-t.ready:
			// admitted while we were giving up; hand the slot on
			q.mu.Unlock()
			q.releaser()()
		default:
			q.waiting.Remove(elem)
			q.updateGauges()
			q.mu.Unlock()
		}
		return nil, ctx.Err()
	}
}

func (q *Queue) releaser() func() {
	var once sync.Once
	return func() {
		once.Do(q.release)
	}
}

func (q *Queue) release() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.inFlight--
	for q.inFlight < q.limit && q.waiting.Len() > 0 {
		front := q.waiting.Front()
		q.waiting.Remove(front)
		q.inFlight++
		close(front.Value.(*ticket).ready)
	}
	q.updateGauges()
}

// InFlight returns the number of admitted callers.
func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

// Waiting returns the number of queued callers.
func (q *Queue) Waiting() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.waiting.Len()
}

func (q *Queue) Limit() int { return q.limit }

func (q *Queue) updateGauges() {
	metrics.ProxyInFlight.Set(float64(q.inFlight))
	metrics.ProxyQueueDepth.Set(float64(q.waiting.Len()))
}
