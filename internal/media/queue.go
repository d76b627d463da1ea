package media

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Push after Close, and by Pop once a closed
// queue is empty.
var ErrQueueClosed = errors.New("media: queue closed")

// Queue is a bounded FIFO of audio chunks. Push blocks while the queue is
// full and never drops data.
type Queue struct {
	items chan []byte
	done  chan struct{}
	once  sync.Once
}

// NewQueue creates a queue holding at most depth chunks.
func NewQueue(depth int) *Queue {
	if depth < 1 {
		depth = 1
	}
	return &Queue{
		items: make(chan []byte, depth),
		done:  make(chan struct{}),
	}
}

// Push appends chunk, waiting for room.
func (q *Queue) Push(ctx context.Context, chunk []byte) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.items <- chunk:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop removes the oldest chunk, waiting for one. Chunks pushed before Close
// are still returned.
func (q *Queue) Pop(ctx context.Context) ([]byte, error) {
	select {
	case chunk := <-q.items:
		return chunk, nil
	default:
	}
	select {
	case chunk := <-q.items:
		return chunk, nil
	case <-q.done:
		select {
		case chunk := <-q.items:
			return chunk, nil
		default:
			return nil, ErrQueueClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len is the number of queued chunks.
func (q *Queue) Len() int {
	return len(q.items)
}

// Cap is the queue depth.
func (q *Queue) Cap() int {
	return cap(q.items)
}

// Close wakes blocked callers. It is safe to call more than once.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.done) })
}
