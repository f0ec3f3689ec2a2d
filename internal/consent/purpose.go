package consent

// Purpose labels a named category of data-processing consent. Purpose binding
// allows selective gating without affecting other flows.
type Purpose string

const (
	// PurposeFunctional gates the event pipeline as a whole.
	PurposeFunctional Purpose = "functional"
	// PurposeAnalytics gates breadcrumbs, traces, and profiling.
	PurposeAnalytics Purpose = "analytics"
	// PurposePreferences gates PII defaults and session recording.
	PurposePreferences Purpose = "preferences"
	// PurposeMarketing gates identity, tags, and campaign contexts.
	PurposeMarketing Purpose = "marketing"
)

// All is the closed set of purposes, in a fixed order.
var All = []Purpose{PurposeFunctional, PurposeAnalytics, PurposePreferences, PurposeMarketing}

// validPurposes is the single source of truth for valid consent purposes.
var validPurposes = map[Purpose]bool{
	PurposeFunctional:  true,
	PurposeAnalytics:   true,
	PurposePreferences: true,
	PurposeMarketing:   true,
}

// IsValid checks if the consent purpose is one of the supported enum values.
func (p Purpose) IsValid() bool {
	return validPurposes[p]
}

// String returns the string representation of the purpose.
func (p Purpose) String() string {
	return string(p)
}
