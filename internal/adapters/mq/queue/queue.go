// Package queue buffers accepted webhook deliveries between the HTTP
// handler and the sync workers.
package queue

import (
	"context"
	"sync"

	"github.com/okian/crmflow/internal/domain/model"
	"github.com/okian/crmflow/pkg/metrics"
)

const defaultQueueCapacity = 10000

// Delivery is the payload type flowing through the queue.
type Delivery = model.Delivery

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a delivery without blocking. It returns ErrFull when the
	// queue is at capacity and ErrClosed after Close.
	Enqueue(ctx context.Context, d Delivery) error

	// Dequeue returns a channel that receives deliveries as they become
	// available. The channel is closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Delivery

	// Len returns the current number of queued deliveries.
	Len(ctx context.Context) int

	// Cap returns the queue capacity.
	Cap() int

	// Close stops accepting deliveries.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool

	// Drain closes the queue and returns every delivery that was never
	// handed to a consumer. Call it after the consumers' contexts are done.
	Drain() []Delivery
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	deliveries chan Delivery
	capacity   int
	mu         sync.RWMutex
	closed     bool

	relays sync.WaitGroup
	heldMu sync.Mutex
	held   []Delivery
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.deliveries = make(chan Delivery, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)
	return q
}

// Enqueue adds a delivery to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, d Delivery) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
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
		return err
	}

	select {
	case q.deliveries <- d:
		metrics.RecordQueueEnqueue()
		q.updateGauges()
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Dequeue returns a channel that will receive deliveries as they become
// available. A delivery taken off the buffer when ctx ends is kept for Drain.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Delivery {
	out := make(chan Delivery)
	q.relays.Add(1)
	go func() {
		defer q.relays.Done()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-q.deliveries:
				if !ok {
					return
				}
				select {
				case out <- d:
					metrics.RecordQueueDequeue()
					q.updateGauges()
				case <-ctx.Done():
					q.hold(d)
					return
				}
			}
		}
	}()
	return out
}

func (q *InMemoryQueue) hold(d Delivery) { //nolint:gocritic // hugeParam
	q.heldMu.Lock()
	defer q.heldMu.Unlock()
	q.held = append(q.held, d)
}

// Drain closes the queue, waits for the dequeue relays to stop and returns
// the deliveries they held plus everything still buffered.
func (q *InMemoryQueue) Drain() []Delivery {
	_ = q.Close()
	q.relays.Wait()

	q.heldMu.Lock()
	out := q.held
	q.held = nil
	q.heldMu.Unlock()

	for d := range q.deliveries {
		out = append(out, d)
	}
	q.updateGauges()
	return out
}

// Len returns the current number of queued deliveries.
func (q *InMemoryQueue) Len(_ context.Context) int {
	q.updateGauges()
	return len(q.deliveries)
}

// Cap returns the queue capacity.
func (q *InMemoryQueue) Cap() int { return q.capacity }

func (q *InMemoryQueue) updateGauges() {
	size := len(q.deliveries)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}

// Close gracefully shuts down the queue. Queued deliveries are still handed
// to consumers.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.deliveries)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
