package telemetry

import "context"

// Client is the narrow surface of the host telemetry client the consent gate
// depends on. The host's real client (event capture, transport, batching) sits
// behind this interface; the gate is injected with a handle at construction
// rather than reaching for ambient globals.
type Client interface {
	// Config returns the current live configuration.
	Config() Config
	// ApplyConfig replaces the purpose-gated configuration fields.
	ApplyConfig(cfg Config)

	// CaptureException submits an error through the host's capture pipeline.
	CaptureException(ctx context.Context, err error, hint *Hint)
	// CaptureMessage submits a plain message event.
	CaptureMessage(ctx context.Context, msg string, hint *Hint)
	// CaptureEvent submits a pre-built event.
	CaptureEvent(ctx context.Context, ev *Event, hint *Hint)

	// Scope reads the current identity/tag/context data. The second return is
	// false when the host does not expose scope reads; callers must treat the
	// snapshot as best-effort.
	Scope() (ScopeData, bool)
	SetUser(u User)
	SetTag(key, value string)
	RemoveTag(key string)
	SetContext(name string, values map[string]any)
	RemoveContext(name string)

	// Recorder returns the active session-recording subsystem, or nil when
	// recording is not configured. The instance must be re-queried on every
	// use; hosts may recreate it.
	Recorder() Recorder
}
