// Package derive maps a consent snapshot plus the originally captured client
// configuration onto the configuration the client should be running now.
// This is pure domain logic - no I/O, no side effects.
package derive

import (
	"consentgate/internal/consent"
	"consentgate/internal/telemetry"
)

// Derive computes the full configuration for the given consent snapshot.
// Each purpose independently gates its fields: granted restores the original
// value, denied applies the most restrictive safe value. Untracked purposes
// read as denied (fail-closed).
//
// Deterministic and idempotent: deriving twice from the same inputs yields
// the same configuration, and granting after denying restores the original
// values exactly.
func Derive(state consent.State, original telemetry.Config) telemetry.Config {
	cfg := original

	if !state.Granted(consent.PurposeFunctional) {
		cfg.Enabled = false
		cfg.SampleRate = 0
		cfg.BeforeSend = BlockAllEvents
		cfg.EnableSessionTracking = false
	}

	if !state.Granted(consent.PurposeAnalytics) {
		cfg.MaxBreadcrumbs = 0
		cfg.AttachStacktrace = false
		cfg.TracesSampleRate = 0
		cfg.ProfilesSampleRate = 0
		cfg.BeforeBreadcrumb = DropAllBreadcrumbs
		cfg.BeforeSendTransaction = BlockAllEvents
	}

	if !state.Granted(consent.PurposePreferences) {
		cfg.SendDefaultPII = false
		cfg.ReplaySessionSampleRate = 0
		cfg.ReplayErrorSampleRate = 0
	}

	return cfg
}

// BlockAllEvents is the deny filter installed while the owning purpose is
// denied. It drops every event.
func BlockAllEvents(_ *telemetry.Event, _ *telemetry.Hint) *telemetry.Event {
	return nil
}

// DropAllBreadcrumbs drops every breadcrumb while analytics is denied.
func DropAllBreadcrumbs(_ *telemetry.Breadcrumb) *telemetry.Breadcrumb {
	return nil
}
