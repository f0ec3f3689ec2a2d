package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Adapters and infrastructure layers
// return these (optionally wrapped) so the reconciler can translate them into
// fail-closed consent behavior.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: value does not exist in the backing store
// - ErrInvalidState: resource in wrong state for requested operation
// - ErrUnavailable: service or resource temporarily unavailable
// - ErrUnsupported: the host client does not implement the capability
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
	ErrUnsupported  = errors.New("unsupported")
)
