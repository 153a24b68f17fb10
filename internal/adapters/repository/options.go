package repository

import (
	"time"

	"github.com/google/uuid"
)

// Option configures object naming shared by the store implementations.
type Option func(*namer)

// WithClock replaces the clock used in object names and timestamps.
func WithClock(now func() time.Time) Option {
	return func(n *namer) {
		if now != nil {
			n.now = now
		}
	}
}

// WithIDFunc replaces the random suffix generator.
func WithIDFunc(id func() string) Option {
	return func(n *namer) {
		if id != nil {
			n.id = id
		}
	}
}

func newNamer(opts []Option) namer {
	n := namer{now: time.Now, id: uuid.NewString}
	for _, opt := range opts {
		opt(&n)
	}
	return n
}
