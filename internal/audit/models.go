// Package audit records what the consent gate did: readiness transitions,
// consent changes, gating decisions, and recording-guard interventions. It is
// an append-only trail of gate behavior; it never persists consent itself.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Category classifies audit events by their primary purpose. Compliance
// events have regulatory significance and deserve durable storage; operations
// events are debugging aids that can be sampled or dropped.
type Category string

const (
	CategoryCompliance Category = "compliance"
	CategoryOperations Category = "operations"
)

// Action names what the gate did.
type Action string

const (
	// Consent lifecycle - compliance category.
	ActionConsentReady   Action = "consent_ready"
	ActionConsentTimeout Action = "consent_timeout"
	ActionConsentChanged Action = "consent_changed"

	// Recording guard - compliance category.
	ActionRecordingPaused  Action = "recording_paused"
	ActionRecordingResumed Action = "recording_resumed"

	// Per-event gating - operations category.
	ActionEventAllowed   Action = "event_allowed"
	ActionEventBlocked   Action = "event_blocked"
	ActionEventQueued    Action = "event_queued"
	ActionEventReplayed  Action = "event_replayed"
	ActionEventDiscarded Action = "event_discarded"
)

// actionCategories maps each action to its category.
var actionCategories = map[Action]Category{
	ActionConsentReady:     CategoryCompliance,
	ActionConsentTimeout:   CategoryCompliance,
	ActionConsentChanged:   CategoryCompliance,
	ActionRecordingPaused:  CategoryCompliance,
	ActionRecordingResumed: CategoryCompliance,

	ActionEventAllowed:   CategoryOperations,
	ActionEventBlocked:   CategoryOperations,
	ActionEventQueued:    CategoryOperations,
	ActionEventReplayed:  CategoryOperations,
	ActionEventDiscarded: CategoryOperations,
}

// Category returns the category for this action. Unknown actions default to
// operations.
func (a Action) Category() Category {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is emitted from the reconciler to capture one gate decision. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        uuid.UUID
	Timestamp time.Time
	Action    Action
	// Purpose names the consent purpose involved, when the action concerns a
	// single purpose; empty for whole-state actions.
	Purpose string
	// Decision is the outcome ("granted", "denied", "allowed", "blocked").
	Decision string
	// Reason explains the decision where it is not obvious from the action
	// (e.g. "timeout", "unsafe_settings").
	Reason string
	// TelemetryEventID correlates per-event actions with the host client's
	// event, without carrying any event payload.
	TelemetryEventID string
}
