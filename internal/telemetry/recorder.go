package telemetry

//go:generate mockgen -source=recorder.go -destination=mocks/recorder.go -package=mocks Recorder

// RecordingOptions are the effective privacy settings of the recording
// subsystem. Every field is a pointer: the guard reads undocumented host
// internals, so absence must be distinguishable from false.
type RecordingOptions struct {
	MaskAllText          *bool
	MaskAllInputs        *bool
	BlockAllMedia        *bool
	CaptureNetworkBodies *bool
}

// Recorder is the narrow capability interface over the privacy-sensitive
// session-recording subsystem. Implementations should be defensively
// idempotent: double-stop and double-start must not fail.
type Recorder interface {
	// EffectiveOptions reports the recorder's live privacy settings.
	EffectiveOptions() (RecordingOptions, error)
	// Stop halts recording. Must be safe to call when already stopped.
	Stop() error
	// Start resumes recording. Returns sentinel.ErrUnsupported when the host
	// cannot resume a stopped recorder.
	Start() error
}

// Bool returns a pointer to b, for building RecordingOptions literals.
func Bool(b bool) *bool { return &b }
