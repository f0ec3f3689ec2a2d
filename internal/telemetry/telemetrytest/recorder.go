package telemetrytest

import (
	"sync"

	"consentgate/internal/telemetry"
)

// Recorder is a stateful fake for the recording subsystem.
type Recorder struct {
	mu         sync.Mutex
	opts       telemetry.RecordingOptions
	running    bool
	stopErr    error
	startErr   error
	StopCalls  int
	StartCalls int
}

var _ telemetry.Recorder = (*Recorder)(nil)

// NewRecorder creates a running fake recorder with the given options.
func NewRecorder(opts telemetry.RecordingOptions) *Recorder {
	return &Recorder{opts: opts, running: true}
}

// SafeOptions returns options with every privacy protection enabled.
func SafeOptions() telemetry.RecordingOptions {
	return telemetry.RecordingOptions{
		MaskAllText:          telemetry.Bool(true),
		MaskAllInputs:        telemetry.Bool(true),
		BlockAllMedia:        telemetry.Bool(true),
		CaptureNetworkBodies: telemetry.Bool(false),
	}
}

func (r *Recorder) EffectiveOptions() (telemetry.RecordingOptions, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts, nil
}

func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StopCalls++
	if r.stopErr != nil {
		return r.stopErr
	}
	r.running = false
	return nil
}

func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StartCalls++
	if r.startErr != nil {
		return r.startErr
	}
	r.running = true
	return nil
}

// Running reports whether the fake recorder is currently recording.
func (r *Recorder) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// SetOptions replaces the effective options, simulating integrator fixes.
func (r *Recorder) SetOptions(opts telemetry.RecordingOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts = opts
}

// FailStart makes subsequent Start calls return err.
func (r *Recorder) FailStart(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startErr = err
}

// FailStop makes subsequent Stop calls return err.
func (r *Recorder) FailStop(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopErr = err
}
