// Package static provides an in-memory consent source for tests, demos, and
// integrations that manage consent themselves.
package static

import (
	"sync"

	"consentgate/internal/consent"
)

// Source holds consent values in memory and notifies subscribers on change.
// Safe for concurrent use.
type Source struct {
	mu       sync.Mutex
	values   map[consent.Purpose]bool
	triggers map[int]func()
	nextID   int
}

// New creates a source tracking exactly the purposes present in initial.
func New(initial map[consent.Purpose]bool) *Source {
	values := make(map[consent.Purpose]bool, len(initial))
	for p, v := range initial {
		values[p] = v
	}
	return &Source{
		values:   values,
		triggers: make(map[int]func()),
	}
}

// Set updates one purpose and fires all registered triggers. Setting a
// previously untracked purpose starts tracking it.
func (s *Source) Set(p consent.Purpose, granted bool) {
	s.mu.Lock()
	s.values[p] = granted
	triggers := make([]func(), 0, len(s.triggers))
	for _, t := range s.triggers {
		triggers = append(triggers, t)
	}
	s.mu.Unlock()

	for _, trigger := range triggers {
		trigger()
	}
}

// Getters builds the per-purpose read functions for the tracked purposes.
func (s *Source) Getters() consent.Getters {
	s.mu.Lock()
	defer s.mu.Unlock()
	getters := make(consent.Getters, len(s.values))
	for p := range s.values {
		purpose := p
		getters[purpose] = func() (bool, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.values[purpose], nil
		}
	}
	return getters
}

// Subscribe registers a change trigger and returns its unsubscribe function.
// Matches consent.SubscribeFunc.
func (s *Source) Subscribe(trigger func()) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.triggers[id] = trigger
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.triggers, id)
			s.mu.Unlock()
		})
	}
}

// Snapshot reports the current values, for display surfaces.
func (s *Source) Snapshot() map[consent.Purpose]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[consent.Purpose]bool, len(s.values))
	for p, v := range s.values {
		out[p] = v
	}
	return out
}
