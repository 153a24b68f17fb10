// Package model contains the value types passed between pipeline stages.
package model

import "sort"

// Payload is an untyped JSON document as decoded by encoding/json.
type Payload = map[string]any

// Record maps canonical field names to string values. A key that is absent
// and a key holding "" are both treated as "not set" by every stage.
type Record map[string]string

// Has reports whether field is set to a non-empty value.
func (r Record) Has(field string) bool {
	return r[field] != ""
}

// SetIfAbsent writes value when field is unset and value is non-empty.
// It reports whether the write happened.
func (r Record) SetIfAbsent(field, value string) bool {
	if value == "" || r.Has(field) {
		return false
	}
	r[field] = value
	return true
}

// Clone returns an independent copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Fields returns the set field names in sorted order.
func (r Record) Fields() []string {
	out := make([]string, 0, len(r))
	for k, v := range r {
		if v != "" {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// ValidationResult is the advisory outcome of the validator.
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}
