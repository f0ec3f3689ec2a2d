// Package recguard enforces that the privacy-sensitive session-recording
// subsystem never operates with unsafe settings, even while preferences
// consent is granted. Defense in depth against integrator misconfiguration.
package recguard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"consentgate/internal/telemetry"
)

// Guard watches the recording subsystem and pauses it when unsafe settings
// are detected. It owns exactly one piece of state: whether the guard itself
// paused the recorder.
type Guard struct {
	client telemetry.Client
	logger *slog.Logger

	mu     sync.Mutex
	paused bool
}

// Option configures a Guard.
type Option func(*Guard)

// WithLogger installs a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) { g.logger = logger }
}

// New creates a guard for the given client handle.
func New(client telemetry.Client, opts ...Option) (*Guard, error) {
	if client == nil {
		return nil, fmt.Errorf("telemetry client is required")
	}
	g := &Guard{client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Paused reports whether the guard paused the recorder due to unsafe settings.
func (g *Guard) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Validate inspects the live recorder and reacts:
//
//   - no recorder configured: no-op
//   - unsafe settings found: stop the recorder (once) and remember the pause
//   - settings safe and the guard had paused: try to resume
//
// Never returns an error and never panics; recording is halted on failure
// modes, the telemetry pipeline itself is unaffected. The recorder instance
// is queried fresh on every pass since the host may recreate it.
func (g *Guard) Validate(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.ErrorContext(ctx, "recording guard panic recovered", "panic", r)
		}
	}()

	recorder := g.client.Recorder()
	if recorder == nil {
		return
	}

	opts, err := recorder.EffectiveOptions()
	if err != nil {
		// Cannot verify safety: treat as unsafe.
		g.logger.WarnContext(ctx, "recording options unreadable; pausing recording", "error", err)
		g.pause(recorder, []string{"options unreadable: " + err.Error()})
		return
	}

	warnings := unsafeSettings(opts)
	if len(warnings) > 0 {
		g.pause(recorder, warnings)
		return
	}

	g.resumeIfPaused(recorder)
}

// Reset clears the pause flag unconditionally. Called whenever preferences
// consent becomes denied: sample-rate gating already stops new recordings, so
// the guard's job is done.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paused = false
}

func (g *Guard) pause(recorder telemetry.Recorder, warnings []string) {
	g.mu.Lock()
	alreadyPaused := g.paused
	g.paused = true
	g.mu.Unlock()

	g.logger.Warn("recording subsystem has unsafe privacy settings; pausing",
		"warnings", warnings, "already_paused", alreadyPaused)

	if alreadyPaused {
		// Suppress redundant stop calls; the recorder is already halted.
		return
	}
	if err := recorder.Stop(); err != nil {
		g.logger.Error("failed to stop recording subsystem", "error", err)
	}
}

func (g *Guard) resumeIfPaused(recorder telemetry.Recorder) {
	g.mu.Lock()
	wasPaused := g.paused
	g.mu.Unlock()
	if !wasPaused {
		return
	}

	if err := recorder.Start(); err != nil {
		g.logger.Warn("recording settings are safe again but resume failed; staying paused", "error", err)
		return
	}

	g.mu.Lock()
	g.paused = false
	g.mu.Unlock()
	g.logger.Info("recording settings are safe again; resumed recording")
}

// unsafeSettings builds the warning list for the given options. Masking
// fields must affirmatively be true: an absent field cannot be verified and
// counts as unsafe. Network-body capture warns only when affirmatively on.
func unsafeSettings(opts telemetry.RecordingOptions) []string {
	var warnings []string
	if !boolValue(opts.MaskAllText) {
		warnings = append(warnings, "maskAllText is disabled")
	}
	if !boolValue(opts.MaskAllInputs) {
		warnings = append(warnings, "maskAllInputs is disabled")
	}
	if !boolValue(opts.BlockAllMedia) {
		warnings = append(warnings, "blockAllMedia is disabled")
	}
	if opts.CaptureNetworkBodies != nil && *opts.CaptureNetworkBodies {
		warnings = append(warnings, "network body capture is enabled")
	}
	return warnings
}

func boolValue(b *bool) bool {
	return b != nil && *b
}
