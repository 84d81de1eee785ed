package cluster

import (
	"sync"

	"github.com/roach88/streamhub/internal/bus"
)

// outbound is one message waiting to be sent to the broker.
type outbound struct {
	topic string
	msg   bus.Message
}

// outboundQueue is a thread-safe bounded FIFO between the bus and the
// broker connection.
//
// Enqueue never blocks: when the queue is full the message is dropped,
// which matches the at-most-once contract of the broker itself.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the relay loop.
type outboundQueue struct {
	mu       sync.Mutex
	items    []outbound
	capacity int
	closed   bool
	signal   chan struct{} // buffered, size 1
}

func newOutboundQueue(capacity int) *outboundQueue {
	return &outboundQueue{
		items:    make([]outbound, 0, min(capacity, 64)),
		capacity: capacity,
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds a message to the back of the queue. It returns false if the
// queue is full or closed.
func (q *outboundQueue) Enqueue(o outbound) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || len(q.items) >= q.capacity {
		return false
	}
	q.items = append(q.items, o)

	// Buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front message without blocking.
func (q *outboundQueue) TryDequeue() (outbound, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return outbound{}, false
	}
	o := q.items[0]
	q.items[0] = outbound{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return o, true
}

// Wait returns a channel that signals when messages may be available. It is
// closed by Close.
func (q *outboundQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued messages.
func (q *outboundQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close rejects further messages and wakes the waiter.
func (q *outboundQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
