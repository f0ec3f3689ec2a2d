package telemetry

import "github.com/google/uuid"

// EventKind classifies a captured event once, at capture time, so the replay
// path never has to sniff event shapes.
type EventKind string

const (
	// KindException marks events captured from an error value.
	KindException EventKind = "exception"
	// KindMessage marks plain message captures.
	KindMessage EventKind = "message"
	// KindGeneric marks everything else (transactions, check-ins, custom payloads).
	KindGeneric EventKind = "generic"
)

// IsValid checks if the kind is one of the supported enum values.
func (k EventKind) IsValid() bool {
	return k == KindException || k == KindMessage || k == KindGeneric
}

// Event is the gate's view of a captured telemetry event. The host client owns
// the full event shape; only the fields needed for gating and best-effort
// replay are carried here.
type Event struct {
	ID      uuid.UUID
	Kind    EventKind
	Message string
	// Err holds the original error for KindException events. May be nil even
	// for exception events when the host already flattened the error.
	Err   error
	Tags  map[string]string
	Extra map[string]any
}

// Hint carries capture-time context the host client attaches to an event.
// It is passed back unchanged on replay.
type Hint struct {
	// OriginalErr is the error the event was built from, when known.
	OriginalErr error
	Data        map[string]any
}

// NewEvent creates an event of the given kind with a fresh ID.
func NewEvent(kind EventKind) *Event {
	if !kind.IsValid() {
		kind = KindGeneric
	}
	return &Event{ID: uuid.New(), Kind: kind}
}
