package rules

import (
	"sync/atomic"
)

// Store holds the active rule set. Readers take a snapshot with Current and
// keep it for the whole pipeline run; Reload swaps in a new one atomically.
type Store struct {
	path    string
	current atomic.Pointer[RuleSet]
}

// NewStore loads path, or uses Default when path is empty.
func NewStore(path string) (*Store, []string, error) {
	s := &Store{path: path}
	if path == "" {
		s.current.Store(Default())
		return s, nil, nil
	}
	rs, warnings, err := Load(path)
	if err != nil {
		return nil, nil, err
	}
	s.current.Store(rs)
	return s, warnings, nil
}

// NewStaticStore wraps an already built rule set.
func NewStaticStore(rs *RuleSet) *Store {
	s := &Store{}
	s.current.Store(rs)
	return s
}

// Current returns the active rule set.
func (s *Store) Current() *RuleSet {
	return s.current.Load()
}

// Path returns the backing file, or "" for built-in rules.
func (s *Store) Path() string {
	return s.path
}

// Reload re-reads the backing file. On error the active rule set is kept.
func (s *Store) Reload() ([]string, error) {
	if s.path == "" {
		return nil, ErrNoPath
	}
	rs, warnings, err := Load(s.path)
	if err != nil {
		return nil, err
	}
	s.current.Store(rs)
	return warnings, nil
}
