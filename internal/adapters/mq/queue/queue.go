// Package queue carries platform updates from the HTTP edge to the single
// writer. Enqueue never blocks; a full queue is reported as backpressure.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/unirank/internal/domain/model"
	"github.com/okian/unirank/pkg/metrics"
)

const defaultQueueCapacity = 10000

// Update is the payload flowing through the queue.
type Update = model.PlatformUpdate

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an update. Returns false when full, closed or cancelled.
	Enqueue(ctx context.Context, u Update) bool

	// TryEnqueue is Enqueue with the failure reason.
	TryEnqueue(ctx context.Context, u Update) error

	// Dequeue returns a channel of updates in arrival order.
	// The channel is closed once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Update

	// Len returns the current number of queued updates.
	Len(ctx context.Context) int

	// Capacity returns the maximum number of queued updates.
	Capacity() int

	// Close stops accepting updates. Pending updates stay readable.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	updates  chan Update
	capacity int
	mu       sync.RWMutex
	closed   bool

	// held is an update a cancelled consumer took but could not deliver.
	heldMu sync.Mutex
	held   *Update
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.updates = make(chan Update, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// Enqueue adds an update to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, u Update) bool { //nolint:gocritic // hugeParam: value semantics on the channel
	return q.TryEnqueue(ctx, u) == nil
}

// TryEnqueue adds an update to the queue or reports why it could not.
func (q *InMemoryQueue) TryEnqueue(ctx context.Context, u Update) error { //nolint:gocritic // hugeParam: value semantics on the channel
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return fmt.Errorf("enqueue %s: %w", u.UpdateID, err)
	}

	select {
	case q.updates <- u:
		metrics.RecordQueueEnqueue()
		q.observe()
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Dequeue returns a channel that will receive updates as they become available.
// Call it once per consumer; a second consumer would break arrival order.
//
// If ctx ends after an update was taken but before the consumer read it, the
// update is held back and the next Dequeue delivers it first.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Update {
	out := make(chan Update)
	go func() {
		defer close(out)
		if u, ok := q.takeHeld(); ok && !q.forward(ctx, out, u) {
			return
		}
		for {
			select {
			case u, ok := <-q.updates:
				if !ok || !q.forward(ctx, out, u) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (q *InMemoryQueue) forward(ctx context.Context, out chan<- Update, u Update) bool { //nolint:gocritic // hugeParam: value semantics on the channel
	select {
	case out <- u:
		metrics.RecordQueueDequeue()
		q.observe()
		return true
	case <-ctx.Done():
		q.heldMu.Lock()
		q.held = &u
		q.heldMu.Unlock()
		return false
	}
}

func (q *InMemoryQueue) takeHeld() (Update, bool) {
	q.heldMu.Lock()
	defer q.heldMu.Unlock()
	if q.held == nil {
		return Update{}, false
	}
	u := *q.held
	q.held = nil
	return u, true
}

// Len returns the current number of queued updates.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	return q.observe()
}

// Capacity returns the configured capacity.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

func (q *InMemoryQueue) observe() int {
	size := len(q.updates)
	q.heldMu.Lock()
	if q.held != nil {
		size++
	}
	q.heldMu.Unlock()
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
	return size
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil // already closed
	}
	close(q.updates)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
