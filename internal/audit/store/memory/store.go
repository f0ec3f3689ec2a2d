package memory

import (
	"context"
	"sync"

	"consentgate/internal/audit"
)

// Store is an in-memory audit store. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	events []audit.Event
}

// NewStore creates an empty in-memory audit store.
func NewStore() *Store {
	return &Store{}
}

// Append records an event.
func (s *Store) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// List returns a copy of all recorded events in append order.
func (s *Store) List(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Event, len(s.events))
	copy(out, s.events)
	return out, nil
}

var _ audit.Store = (*Store)(nil)
