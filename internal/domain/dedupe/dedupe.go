// Package dedupe tracks webhook delivery keys so a redelivered webhook is
// accepted once.
package dedupe

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Deduper records seen delivery keys.
type Deduper interface {
	// SeenAndRecord atomically checks whether key was seen and records it if not.
	// Returns true when key was already seen.
	SeenAndRecord(ctx context.Context, key string) (bool, error)

	// Unrecord forgets key so the delivery can be retried, e.g. after the
	// queue rejected it.
	Unrecord(ctx context.Context, key string) error

	Size() int64
}

// Key returns the idempotency key of a delivery: the sender's delivery id
// when present, otherwise the SHA-256 of the raw body.
func Key(deliveryID string, body []byte) string {
	if id := strings.TrimSpace(deliveryID); id != "" {
		return "id:" + id
	}
	sum := sha256.Sum256(body)
	return "sha256:" + hex.EncodeToString(sum[:])
}

type entry struct {
	key  string
	seen time.Time
}

// inMemoryDeduper keeps keys in insertion order. When bounded, the oldest key
// is evicted first; when a ttl is set, expired keys count as unseen.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // front is newest
	maxSize int        // <= 0 means unbounded
	ttl     time.Duration
	now     func() time.Time
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50000,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if el, ok := d.seen[key]; ok {
		if !d.expired(el.Value.(*entry), now) {
			return true, nil
		}
		d.remove(el)
	}

	if d.maxSize > 0 {
		for len(d.seen) >= d.maxSize {
			d.remove(d.order.Back())
		}
	}
	d.seen[key] = d.order.PushFront(&entry{key: key, seen: now})
	d.size.Add(1)
	return false, nil
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.seen[key]; ok {
		d.remove(el)
	}
	return nil
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

func (d *inMemoryDeduper) expired(e *entry, now time.Time) bool {
	return d.ttl > 0 && now.Sub(e.seen) >= d.ttl
}

// remove must be called with d.mu held.
func (d *inMemoryDeduper) remove(el *list.Element) {
	if el == nil {
		return
	}
	delete(d.seen, el.Value.(*entry).key)
	d.order.Remove(el)
	d.size.Add(-1)
}
