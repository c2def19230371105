package feeder

import (
	"container/list"
	"sync"
)

// entryQueue is an unbounded FIFO whose consumer blocks until an entry
// arrives or the queue is closed.
type entryQueue struct {
	list   *list.List
	ch     chan struct{}
	mu     sync.Mutex
	closed bool
}

func newEntryQueue() *entryQueue {
	return &entryQueue{
		list: list.New(),
		ch:   make(chan struct{}, 1),
	}
}

// push reports false once the queue is closed.
func (q *entryQueue) push(v Record) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.list.PushBack(v)
	q.signal()
	return true
}

// pop blocks for the next entry. It returns false when the queue is closed
// and drained.
func (q *entryQueue) pop() (Record, bool) {
	for {
		q.mu.Lock()
		if e := q.list.Front(); e != nil {
			q.list.Remove(e)
			q.mu.Unlock()
			return e.Value, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, false
		}
		<-q.ch
	}
}

func (q *entryQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.signal()
}

func (q *entryQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.list.Len()
}

func (q *entryQueue) signal() {
	select {
	case q.ch <- struct{}{}:
	default:
	}
}
