package store

import (
	"context"
	"sync"
)

// WriteQueue serializes writes per lane. Operations submitted to the same
// lane run one at a time in submission order, so a slower earlier write can
// never land after a newer one. Different lanes run concurrently.
type WriteQueue struct {
	mu     sync.Mutex
	lanes  map[string]*lane
	wg     sync.WaitGroup
	closed bool
}

type lane struct {
	pending []writeOp
}

type writeOp struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// NewWriteQueue creates an empty queue.
func NewWriteQueue() *WriteQueue {
	return &WriteQueue{lanes: make(map[string]*lane)}
}

// Submit enqueues fn on lane and returns a channel that receives its result.
// An operation whose context is already done when its turn comes is skipped
// with the context error.
func (q *WriteQueue) Submit(ctx context.Context, laneKey string, fn func(ctx context.Context) error) <-chan error {
	done := make(chan error, 1)

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		done <- ErrClosed
		return done
	}

	l, running := q.lanes[laneKey]
	if !running {
		l = &lane{}
		q.lanes[laneKey] = l
	}
	l.pending = append(l.pending, writeOp{ctx: ctx, fn: fn, done: done})

	if !running {
		q.wg.Add(1)
		go q.drain(laneKey, l)
	}
	return done
}

// Do submits fn and waits for it to finish.
func (q *WriteQueue) Do(ctx context.Context, laneKey string, fn func(ctx context.Context) error) error {
	select {
	case err := <-q.Submit(ctx, laneKey, fn):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued operations across all lanes,
// not counting ones currently executing.
func (q *WriteQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, l := range q.lanes {
		n += len(l.pending)
	}
	return n
}

// Close stops accepting work and waits for queued operations to finish.
func (q *WriteQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wg.Wait()
}

// drain runs a lane's operations until it is empty, then retires the lane.
func (q *WriteQueue) drain(laneKey string, l *lane) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		if len(l.pending) == 0 {
			delete(q.lanes, laneKey)
			q.mu.Unlock()
			return
		}
		op := l.pending[0]
		l.pending = l.pending[1:]
		q.mu.Unlock()

		if err := op.ctx.Err(); err != nil {
			op.done <- err
			continue
		}
		op.done <- op.fn(op.ctx)
	}
}
