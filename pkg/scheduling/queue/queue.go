package queue

import (
	"sync"

	"github.com/emirpasic/gods/v2/queues/linkedlistqueue"
)

// Queue is a FIFO safe for concurrent use.
type Queue[T comparable] struct {
	mu    sync.Mutex
	items *linkedlistqueue.Queue[T]
}

// New creates an empty queue.
func New[T comparable]() *Queue[T] {
	return &Queue[T]{items: linkedlistqueue.New[T]()}
}

// Push appends v to the tail.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	q.items.Enqueue(v)
	q.mu.Unlock()
}

// PushAll appends every value in order under a single lock acquisition.
func (q *Queue[T]) PushAll(vs ...T) {
	q.mu.Lock()
	for _, v := range vs {
		q.items.Enqueue(v)
	}
	q.mu.Unlock()
}

// Pop removes and returns the head. ok is false when the queue is empty.
func (q *Queue[T]) Pop() (v T, ok bool) {
	q.mu.Lock()
	v, ok = q.items.Dequeue()
	q.mu.Unlock()
	return v, ok
}

// Len returns the number of queued values.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Size()
}

// Drain removes and returns every queued value in FIFO order.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	vs := q.items.Values()
	q.items.Clear()
	return vs
}
