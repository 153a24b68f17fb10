// Package repository persists webhooks that could not be processed
// (dead letters) and per-outcome analytic events.
package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"
)

const (
	LetterPrefix = "deadletter-"
	EventPrefix  = "analytic-"
	objectSuffix = ".json"

	nameTimeLayout = "2006-01-02T15:04:05.000Z"
)

// Letter is a stored dead letter.
type Letter struct {
	Timestamp time.Time         `json:"timestamp"`
	Payload   json.RawMessage   `json:"payload"`
	Error     string            `json:"error"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// Store provides write/read access to dead letters and analytic events.
type Store interface {
	// Write stores a dead letter and returns its name. A zero Timestamp is
	// filled from the store's clock.
	Write(ctx context.Context, l Letter) (string, error)

	// WriteEvent stores an analytic event of the given type and returns its name.
	WriteEvent(ctx context.Context, eventType string, data any) (string, error)

	// List returns dead letter names, newest first. limit <= 0 returns all;
	// negative limits are rejected with ErrInvalidLimit.
	List(ctx context.Context, limit int) ([]string, error)

	// Get returns a dead letter by name or ErrNotFound.
	Get(ctx context.Context, name string) (*Letter, error)
}

// HeaderMap flattens request headers into the stored form.
func HeaderMap(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	return out
}

// RawPayload wraps a request body for Letter.Payload. Non-JSON bodies are
// stored as a JSON string.
func RawPayload(body []byte) json.RawMessage {
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}

type namer struct {
	now func() time.Time
	id  func() string
}

// stamp renders t as ISO-8601 with ':' and '.' replaced, so names are safe
// as file and object keys.
func (n namer) stamp(t time.Time) string {
	return stampReplacer.Replace(t.UTC().Format(nameTimeLayout))
}

var stampReplacer = strings.NewReplacer(":", "-", ".", "-") //nolint:gochecknoglobals

func (n namer) letterName(t time.Time) string {
	return LetterPrefix + n.stamp(t) + "-" + n.id() + objectSuffix
}

func (n namer) eventName(eventType string) string {
	return EventPrefix + sanitize(eventType) + "-" + n.stamp(n.now()) + "-" + n.id() + objectSuffix
}

func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	if s == "" {
		return "event"
	}
	return s
}

// validLetterName rejects anything that is not a bare dead letter object name.
func validLetterName(name string) bool {
	return name != "" &&
		path.Base(name) == name &&
		!strings.ContainsAny(name, `/\`) &&
		strings.HasPrefix(name, LetterPrefix) &&
		strings.HasSuffix(name, objectSuffix)
}

// newestFirst sorts names descending and applies limit. Names embed the
// timestamp right after the prefix, so lexical order is time order.
func newestFirst(names []string, limit int) ([]string, error) {
	if limit < 0 {
		return nil, ErrInvalidLimit
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}
	return names, nil
}
