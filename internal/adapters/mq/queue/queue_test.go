package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/crmflow/internal/domain/model"
)

func delivery(key string) model.Delivery {
	return model.Delivery{Key: key, Payload: model.Payload{"email": key + "@example.com"}}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if c := q.Cap(); c != 2 {
		t.Errorf("expected capacity 2, got %d", c)
	}

	if err := q.Enqueue(ctx, delivery("d1")); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	d := <-q.Dequeue(ctx)
	if d.Key != "d1" {
		t.Errorf("expected d1, got %v", d.Key)
	}
	if d.Payload["email"] != "d1@example.com" {
		t.Errorf("payload not carried through: %v", d.Payload)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for _, k := range []string{"d1", "d2"} {
		if err := q.Enqueue(ctx, delivery(k)); err != nil {
			t.Fatalf("expected enqueue to succeed, got %v", err)
		}
	}
	if err := q.Enqueue(ctx, delivery("d3")); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Enqueue(ctx, delivery("d1")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()
	const producers = 10
	const perProducer = 100

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				d := delivery(fmt.Sprintf("d%d_%d", id, j))
				for q.Enqueue(ctx, d) != nil {
					time.Sleep(time.Millisecond)
				}
			}
		}(i)
	}

	consumed := make(chan string, producers*perProducer)
	var consumers sync.WaitGroup
	for i := 0; i < 4; i++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for d := range q.Dequeue(ctx) {
				consumed <- d.Key
			}
		}()
	}

	wg.Wait()
	_ = q.Close()
	consumers.Wait()

	if got := len(consumed); got != producers*perProducer {
		t.Errorf("expected %d consumed, got %d", producers*perProducer, got)
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	for _, k := range []string{"d1", "d2"} {
		if err := q.Enqueue(ctx, delivery(k)); err != nil {
			t.Fatalf("expected enqueue to succeed, got %v", err)
		}
	}
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if err := q.Enqueue(ctx, delivery("d3")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	// Deliveries queued before Close are drained, then the channel closes.
	var keys []string
	timeout := time.After(time.Second)
	ch := q.Dequeue(ctx)
	for done := false; !done; {
		select {
		case d, ok := <-ch:
			if !ok {
				done = true
				break
			}
			keys = append(keys, d.Key)
		case <-timeout:
			t.Fatal("expected dequeue channel to be closed within timeout")
		}
	}
	if len(keys) != 2 || keys[0] != "d1" || keys[1] != "d2" {
		t.Errorf("expected [d1 d2], got %v", keys)
	}

	if err := q.Close(); err != nil {
		t.Errorf("expected second close to succeed, got error: %v", err)
	}
}

func TestInMemoryQueue_DrainAfterCancel(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	for _, k := range []string{"d1", "d2", "d3"} {
		if err := q.Enqueue(context.Background(), delivery(k)); err != nil {
			t.Fatalf("expected enqueue to succeed, got %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch := q.Dequeue(ctx)
	select {
	case d := <-ch:
		if d.Key != "d1" {
			t.Fatalf("expected d1, got %s", d.Key)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a delivery within timeout")
	}

	// The consumer goes away while the relay may be holding d2.
	cancel()
	left := q.Drain()

	var keys []string
	for _, d := range left {
		keys = append(keys, d.Key)
	}
	if len(keys) != 2 || keys[0] != "d2" || keys[1] != "d3" {
		t.Errorf("expected [d2 d3] left over, got %v", keys)
	}
	if !q.IsClosed() {
		t.Error("expected Drain to close the queue")
	}
	if n := q.Len(context.Background()); n != 0 {
		t.Errorf("expected empty queue after drain, got %d", n)
	}
}
