package worker

import (
	"sync"
)

// Queue is the dedupe FIFO between the filesystem watcher and the runner.
// A path already waiting is not enqueued twice; it becomes eligible again
// once the runner picks it up.
type Queue struct {
	ch        chan string // source file paths
	mu        sync.Mutex
	enqueued  map[string]struct{}
	accepting bool
}

// NewQueue builds a queue with the given buffer headroom.
func NewQueue(buf int) *Queue {
	return &Queue{
		ch:        make(chan string, buf*2+10),
		enqueued:  make(map[string]struct{}),
		accepting: true,
	}
}

// Enqueue adds a path unless it is already waiting or the queue stopped
// accepting. Reports whether the path was added.
func (q *Queue) Enqueue(path string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.accepting {
		return false
	}
	if _, ok := q.enqueued[path]; ok {
		return false
	}
	q.enqueued[path] = struct{}{}
	select {
	case q.ch <- path:
		return true
	default:
		// Full queue: drop and allow a later event to retry.
		delete(q.enqueued, path)
		return false
	}
}

// Dequeued marks a path as no longer waiting, making it eligible to be
// enqueued again.
func (q *Queue) Dequeued(path string) {
	q.mu.Lock()
	delete(q.enqueued, path)
	q.mu.Unlock()
}

// StopAccepting rejects all further enqueues; part of shutdown.
func (q *Queue) StopAccepting() {
	q.mu.Lock()
	q.accepting = false
	q.mu.Unlock()
}

// Chan exposes the consumer side.
func (q *Queue) Chan() <-chan string { return q.ch }

// Len reports how many paths are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.enqueued)
}
