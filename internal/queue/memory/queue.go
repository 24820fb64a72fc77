// Package memory provides the in-process task queue used when no broker is
// configured.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"storyvault/internal/archive"
)

// ErrClosed is returned by Dequeue once the queue is closed and drained.
var ErrClosed = errors.New("queue closed")

// A non-positive depth falls back to this, so an unconfigured queue still
// buffers a handful of tasks.
const defaultDepth = 16

// Queue is a bounded in-process task queue. Closing it stops intake; tasks
// already accepted can still be dequeued.
type Queue struct {
	items chan archive.TaskItem
	once  sync.Once
}

// NewQueue builds a queue holding at most depth pending tasks.
func NewQueue(depth int) *Queue {
	if depth <= 0 {
		depth = defaultDepth
	}
	return &Queue{items: make(chan archive.TaskItem, depth)}
}

// Enqueue adds a task. When the queue is full it blocks until room opens up or
// ctx ends.
func (q *Queue) Enqueue(ctx context.Context, item archive.TaskItem) error {
	select {
	case q.items <- item:
		return nil
	default:
	}
	select {
	case q.items <- item:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	}
}

// Dequeue removes the next task. It blocks until a task arrives, the queue is
// drained after Close, or ctx ends.
func (q *Queue) Dequeue(ctx context.Context) (archive.TaskItem, error) {
	select {
	case item, ok := <-q.items:
		if !ok {
			return archive.TaskItem{}, ErrClosed
		}
		return item, nil
	default:
	}
	select {
	case item, ok := <-q.items:
		if !ok {
			return archive.TaskItem{}, ErrClosed
		}
		return item, nil
	case <-ctx.Done():
		return archive.TaskItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	}
}

// Close marks the queue closed. Safe to call more than once.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.items) })
}
