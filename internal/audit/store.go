package audit

import "context"

// Store persists audit events. Implementations must be safe for concurrent
// use; the publisher may append from a background goroutine.
type Store interface {
	Append(ctx context.Context, event Event) error
	// List returns all stored events in append order. Intended for tests and
	// small diagnostic surfaces, not for pagination-scale reads.
	List(ctx context.Context) ([]Event, error)
}
