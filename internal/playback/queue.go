// Package playback serializes audio playback through a single worker.
//
// Request handlers push finished audio files onto a Queue; exactly one Worker
// pops them in order and plays them one at a time, so output never overlaps
// and is heard in the order it was enqueued.
package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nadzzz/voicewrite/internal/metrics"
)

// ErrClosed is returned by Push after the queue has been closed.
var ErrClosed = errors.New("playback queue closed")

// Item is one audio file waiting to be played.
type Item struct {
	Path       string
	RequestID  string
	EnqueuedAt time.Time

	stop bool // shutdown sentinel, only created by Close
}

// Queue is an unbounded FIFO safe for many producers and one consumer.
type Queue struct {
	mu     sync.Mutex
	items  []Item
	closed bool
	notify chan struct{}

	metrics *metrics.Metrics
}

// NewQueue creates an empty queue.
func NewQueue(m *metrics.Metrics) *Queue {
	return &Queue{
		notify:  make(chan struct{}, 1),
		metrics: m,
	}
}

// Push appends an item. It never blocks.
func (q *Queue) Push(item Item) error {
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now()
	}
	item.stop = false

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, item)
	q.metrics.QueueDepth(q.pendingLocked())
	q.mu.Unlock()

	q.signal()
	return nil
}

// Close rejects further pushes and appends the shutdown sentinel behind the
// items already queued. Calling Close more than once is a no-op.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.items = append(q.items, Item{stop: true})
	q.mu.Unlock()

	q.signal()
}

// Pop removes and returns the oldest item, waiting until one is available or
// ctx ends. Only one goroutine may call Pop.
func (q *Queue) Pop(ctx context.Context) (Item, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = Item{}
			q.items = q.items[1:]
			q.metrics.QueueDepth(q.pendingLocked())
			q.mu.Unlock()
			return item, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return Item{}, ctx.Err()
		}
	}
}

// Len returns the number of audio files waiting, excluding the sentinel.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pendingLocked()
}

// Drain closes the queue and removes every pending item, returning them in order.
func (q *Queue) Drain() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	out := make([]Item, 0, len(q.items))
	for _, it := range q.items {
		if !it.stop {
			out = append(out, it)
		}
	}
	q.items = nil
	q.metrics.QueueDepth(0)
	return out
}

func (q *Queue) pendingLocked() int {
	n := len(q.items)
	if q.closed && n > 0 && q.items[n-1].stop {
		n--
	}
	return n
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
