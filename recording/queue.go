package recording

import (
	"context"
	"sync"
)

// serialQueue runs tasks one at a time, in order, on its own goroutine
type serialQueue struct {
	tasks  chan func()
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func newSerialQueue(size int) *serialQueue {
	q := &serialQueue{
		tasks: make(chan func(), size),
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *serialQueue) run() {
	defer close(q.done)
	for task := range q.tasks {
		task()
	}
}

// submit drops fn when the queue is full or closed
func (q *serialQueue) submit(fn func()) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.tasks <- fn:
		return true
	default:
		return false
	}
}

// enqueue waits for room; it must not be called from a task
func (q *serialQueue) enqueue(fn func()) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	q.tasks <- fn
	return true
}

// call runs fn on the queue and waits for it
func (q *serialQueue) call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !q.enqueue(func() {
		defer close(done)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close lets queued tasks run, then stops the goroutine
func (q *serialQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
}

func (q *serialQueue) wait() {
	<-q.done
}
