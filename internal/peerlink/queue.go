package peerlink

import (
	"sync"
	"sync/atomic"

	"github.com/rmacdonaldsmith/pshare-go/pkg/message"
	"github.com/rmacdonaldsmith/pshare-go/pkg/peerlink"
)

// InboundQueue is a mutex guarded FIFO pushed by listener goroutines and
// drained by the relay
type InboundQueue struct {
	mu       sync.Mutex
	items    []*message.Message
	capacity int

	ready   chan struct{}
	dropped atomic.Uint64
}

// NewInboundQueue creates a queue holding at most capacity messages.
// A capacity of zero or less means unbounded.
func NewInboundQueue(capacity int) *InboundQueue {
	return &InboundQueue{
		capacity: capacity,
		ready:    make(chan struct{}, 1),
	}
}

// Push appends msg. It returns false when the queue is full.
func (q *InboundQueue) Push(msg *message.Message) bool {
	q.mu.Lock()
	if q.capacity > 0 && len(q.items) >= q.capacity {
		q.mu.Unlock()
		q.dropped.Add(1)
		return false
	}
	q.items = append(q.items, msg)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// Drain removes and returns every queued message
func (q *InboundQueue) Drain() []*message.Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}

// Ready is signalled after at least one Push since the last receive
func (q *InboundQueue) Ready() <-chan struct{} {
	return q.ready
}

// Len returns the number of queued messages
func (q *InboundQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns the number of messages rejected because the queue was full
func (q *InboundQueue) Dropped() uint64 {
	return q.dropped.Load()
}

var _ peerlink.Queue = (*InboundQueue)(nil)
