// Package queue provides the FIFO job queue shared by the request reader
// and the worker pool.
package queue

import (
	"sync"
	"sync/atomic"

	"github.com/glottech/sayd/internal/protocol"
)

// Item wraps one request for queue transport. It carries no identity of its
// own beyond the request.
type Item struct {
	Req protocol.Request
}

// Queue is an unbounded, thread-safe FIFO. Producers push without blocking;
// consumers block in Pop until work arrives or shutdown drains the queue.
type Queue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []Item
}

// New returns an empty queue.
func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends an item and wakes one waiting worker.
func (q *Queue) Push(item Item) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.cond.Signal()
}

// Pop blocks until an item is available or until shutdown is set and the
// queue is empty. It returns false only in the latter case, which is the
// worker's terminal state. Items left in the queue when shutdown flips are
// still handed out, so queued work drains instead of being dropped.
func (q *Queue) Pop(shutdown *atomic.Bool) (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !shutdown.Load() {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return Item{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Wake unblocks every waiting worker so it can observe the shutdown flag.
func (q *Queue) Wake() {
	q.cond.Broadcast()
}

// Len reports the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
