// Package reconciler keeps the host telemetry client in sync with consent. It
// owns the readiness state machine, holds captured events while consent is
// undetermined, and dispatches configuration, scope, and recording-guard
// updates whenever consent changes.
package reconciler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"consentgate/internal/audit"
	"consentgate/internal/consent"
	"consentgate/internal/derive"
	"consentgate/internal/reconciler/metrics"
	"consentgate/internal/recguard"
	"consentgate/internal/scope"
	"consentgate/internal/telemetry"
	dErrors "consentgate/pkg/domain-errors"
)

//go:generate mockgen -source=reconciler.go -destination=mocks/audit_publisher.go -package=mocks

// AuditPublisher records what the gate decided. Satisfied by *audit.Publisher.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// DefaultTimeout is how long the gate waits for an initial consent
// determination before assuming denial for every purpose.
const DefaultTimeout = 30 * time.Second

// queueEntry pairs a captured event with its hint. The event's kind was
// tagged at capture time, so replay never has to re-inspect the payload.
type queueEntry struct {
	event *telemetry.Event
	hint  *telemetry.Hint
}

// Reconciler gates the telemetry event pipeline on consent.
//
// It starts Pending: events are queued, not forwarded. The first successful
// consent read (or the timeout fallback, which forces all-denied) moves it to
// Ready, after which every event passes or is blocked by functional consent
// and every consent change re-derives configuration, scope, and recording
// state. The transition happens once; Cleanup tears everything down.
type Reconciler struct {
	client telemetry.Client
	source *consent.Source
	scope  *scope.Manager
	guard  *recguard.Guard

	logger  *slog.Logger
	metrics *metrics.Metrics
	auditor AuditPublisher
	tracer  trace.Tracer

	timeout    time.Duration
	queueLimit int

	mu             sync.Mutex
	ready          bool
	state          consent.State
	originalConfig telemetry.Config
	queue          []queueEntry
	timer          *time.Timer
	unsubscribe    func()

	setupOnce   sync.Once
	cleanupOnce sync.Once
	drainWG     sync.WaitGroup
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger for all gate diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// WithTimeout overrides the initial-determination timeout. Non-positive
// values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// WithAuditPublisher attaches an audit trail for gate decisions.
func WithAuditPublisher(p AuditPublisher) Option {
	return func(r *Reconciler) { r.auditor = p }
}

// WithQueueLimit bounds the pending-event queue. When full, the oldest entry
// is dropped to make room. Zero or negative leaves the queue unbounded.
func WithQueueLimit(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.queueLimit = n
		}
	}
}

// New creates a Reconciler around the given telemetry client and consent
// source.
func New(client telemetry.Client, source *consent.Source, opts ...Option) (*Reconciler, error) {
	if client == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "telemetry client is required")
	}
	if source == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "consent source is required")
	}

	r := &Reconciler{
		client:  client,
		source:  source,
		logger:  slog.Default(),
		timeout: DefaultTimeout,
		tracer:  otel.Tracer("consentgate/reconciler"),
	}
	for _, opt := range opts {
		opt(r)
	}

	sm, err := scope.NewManager(client, scope.WithLogger(r.logger))
	if err != nil {
		return nil, err
	}
	r.scope = sm

	g, err := recguard.New(client, recguard.WithLogger(r.logger))
	if err != nil {
		return nil, err
	}
	r.guard = g

	return r, nil
}

// Setup wires the gate into the host client. It captures the original
// configuration and scope snapshots, attempts the initial consent read,
// schedules the timeout fallback when no determination is available yet, and
// registers the change-notification trigger. Runs at most once; repeated
// calls are no-ops. Never returns or panics out of internal failures.
func (r *Reconciler) Setup(ctx context.Context) {
	r.setupOnce.Do(func() {
		defer r.recoverPanic("setup")

		ctx, span := r.tracer.Start(ctx, "reconciler.setup")
		defer span.End()

		r.mu.Lock()
		r.originalConfig = r.client.Config()
		r.mu.Unlock()
		r.scope.CaptureOriginal()

		state, err := r.source.Read()
		if err == nil {
			r.mu.Lock()
			r.becomeReady(ctx, state, "read")
			r.mu.Unlock()
		} else {
			r.logger.Debug("initial consent read not yet determined", "error", err)
			r.mu.Lock()
			r.timer = time.AfterFunc(r.timeout, r.onTimeout)
			r.mu.Unlock()
		}

		unsub := r.source.Subscribe(func() { r.onConsentChange(context.Background()) })
		r.mu.Lock()
		r.unsubscribe = unsub
		r.mu.Unlock()
	})
}

// ProcessEvent gates one captured event. While the gate is pending the event
// is queued and nil is returned; once ready, the event passes through
// unchanged when functional consent is granted and is dropped otherwise.
// Never panics out to the capture pipeline.
func (r *Reconciler) ProcessEvent(ctx context.Context, event *telemetry.Event, hint *telemetry.Hint) *telemetry.Event {
	defer r.recoverPanic("process_event")

	if event == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ready {
		if r.queueLimit > 0 && len(r.queue) >= r.queueLimit {
			dropped := r.queue[0]
			r.queue = r.queue[1:]
			r.logger.Warn("pending queue full; dropping oldest event", "event_id", dropped.event.ID)
			r.metrics.IncEventOutcome("discarded")
		}
		r.queue = append(r.queue, queueEntry{event: event, hint: hint})
		r.metrics.IncEventOutcome("queued")
		r.metrics.SetQueueDepth(len(r.queue))
		r.audit(ctx, audit.Event{
			Action:           audit.ActionEventQueued,
			TelemetryEventID: event.ID.String(),
		})
		return nil
	}

	if r.state.Granted(consent.PurposeFunctional) {
		r.metrics.IncEventOutcome("passed")
		r.audit(ctx, audit.Event{
			Action:           audit.ActionEventAllowed,
			Purpose:          string(consent.PurposeFunctional),
			Decision:         "allowed",
			TelemetryEventID: event.ID.String(),
		})
		return event
	}

	r.logger.Debug("event blocked: functional consent not granted", "event_id", event.ID)
	r.metrics.IncEventOutcome("blocked")
	r.audit(ctx, audit.Event{
		Action:           audit.ActionEventBlocked,
		Purpose:          string(consent.PurposeFunctional),
		Decision:         "blocked",
		TelemetryEventID: event.ID.String(),
	})
	return nil
}

// Revalidate re-runs the recording privacy check on demand, so an integrator
// who fixed unsafe recording settings can resume without waiting for a
// consent change.
func (r *Reconciler) Revalidate(ctx context.Context) {
	defer r.recoverPanic("revalidate")
	r.validateRecording(ctx)
}

// OriginalConfig returns the configuration snapshot captured at setup.
func (r *Reconciler) OriginalConfig() telemetry.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.originalConfig
}

// OriginalScope returns the best-effort scope snapshot captured at setup.
func (r *Reconciler) OriginalScope() telemetry.ScopeData {
	return r.scope.Original()
}

// Paused reports whether the recording guard is currently holding the
// recording subsystem stopped.
func (r *Reconciler) Paused() bool {
	return r.guard.Paused()
}

// Ready reports whether a consent determination (or the timeout fallback)
// has been made.
func (r *Reconciler) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

// QueueDepth returns the number of events held while pending.
func (r *Reconciler) QueueDepth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Flush waits for any in-flight queue replay to finish. Mainly for orderly
// shutdown and tests; callers of the change path never wait on it.
func (r *Reconciler) Flush() {
	r.drainWG.Wait()
}

// Cleanup cancels the pending timeout, unsubscribes from change
// notifications, discards the queue, and resets the recording guard.
// Idempotent; safe before Setup completes.
func (r *Reconciler) Cleanup() {
	r.cleanupOnce.Do(func() {
		r.mu.Lock()
		if r.timer != nil {
			r.timer.Stop()
			r.timer = nil
		}
		unsub := r.unsubscribe
		r.unsubscribe = nil
		discarded := len(r.queue)
		r.queue = nil
		r.mu.Unlock()

		if unsub != nil {
			unsub()
		}
		r.guard.Reset()
		r.metrics.SetQueueDepth(0)
		if discarded > 0 {
			r.logger.Debug("cleanup discarded queued events", "count", discarded)
		}
	})
}

// onTimeout fires when no consent determination arrived in time. Denial is
// assumed for every purpose so the pipeline never blocks indefinitely.
func (r *Reconciler) onTimeout() {
	defer r.recoverPanic("timeout")

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ready {
		return
	}
	r.logger.Warn("no consent determination before timeout; assuming denial for all purposes",
		"timeout", r.timeout)
	r.becomeReady(context.Background(), consent.Denied(), "timeout")
}

// becomeReady transitions Pending to Ready exactly once, applies the first
// determination, and settles the queue. Caller holds r.mu.
func (r *Reconciler) becomeReady(ctx context.Context, state consent.State, trigger string) {
	if r.ready {
		return
	}
	r.ready = true
	r.state = state
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}

	r.applyLocked(ctx, state)
	r.metrics.IncReadyTransition(trigger)

	action := audit.ActionConsentReady
	if trigger == "timeout" {
		action = audit.ActionConsentTimeout
	}
	r.audit(ctx, audit.Event{Action: action, Reason: trigger})

	queued := r.queue
	r.queue = nil
	r.metrics.SetQueueDepth(0)
	if len(queued) == 0 {
		return
	}
	if state.Granted(consent.PurposeFunctional) {
		r.drain(ctx, queued)
	} else {
		r.discard(ctx, queued)
	}
}

// onConsentChange re-enters the reconciliation path when the host platform
// signals a change. While pending, only a successful read can complete
// readiness; once ready, the fresh snapshot is compared field-wise and
// applied only when it actually differs.
func (r *Reconciler) onConsentChange(ctx context.Context) {
	defer r.recoverPanic("consent_change")

	ctx, span := r.tracer.Start(ctx, "reconciler.consent_change")
	defer span.End()
	start := time.Now()

	state, err := r.source.Read()

	r.mu.Lock()
	if !r.ready {
		if err != nil {
			r.mu.Unlock()
			r.logger.Debug("consent changed but still undetermined", "error", err)
			return
		}
		r.becomeReady(ctx, state, "read")
		r.mu.Unlock()
		r.metrics.ObserveReconcileLatency(time.Since(start))
		return
	}

	// After readiness, a failed read still yields a fail-closed snapshot and
	// it applies as-is.
	if err != nil {
		r.logger.Debug("consent read degraded; applying fail-closed values", "error", err)
	}

	prev := r.state
	if state.Equal(prev) {
		r.mu.Unlock()
		span.SetAttributes(attribute.Bool("consent.changed", false))
		return
	}
	span.SetAttributes(attribute.Bool("consent.changed", true))
	r.state = state

	for _, p := range consent.All {
		if prev.Granted(p) != state.Granted(p) || prev.Tracked(p) != state.Tracked(p) {
			decision := "denied"
			if state.Granted(p) {
				decision = "granted"
			}
			r.metrics.IncConsentChange(string(p), decision)
			r.audit(ctx, audit.Event{
				Action:   audit.ActionConsentChanged,
				Purpose:  string(p),
				Decision: decision,
			})
		}
	}

	r.applyChangeLocked(ctx, prev, state)

	var queued []queueEntry
	if !prev.Granted(consent.PurposeFunctional) && state.Granted(consent.PurposeFunctional) {
		queued = r.queue
		r.queue = nil
		r.metrics.SetQueueDepth(0)
	}
	r.mu.Unlock()

	if len(queued) > 0 {
		r.drain(ctx, queued)
	}
	r.metrics.ObserveReconcileLatency(time.Since(start))
}

// applyLocked pushes a full derived configuration, scope state, and
// recording-guard state for a fresh determination. Caller holds r.mu.
func (r *Reconciler) applyLocked(ctx context.Context, state consent.State) {
	cfg := derive.Derive(state, r.originalConfig)
	r.client.ApplyConfig(cfg)
	r.scope.Apply(state.Granted(consent.PurposeMarketing))
	if state.Granted(consent.PurposePreferences) {
		r.validateRecording(ctx)
	} else {
		r.guard.Reset()
	}
}

// applyChangeLocked is the ordered reconciliation pass for a consent change:
// configuration first, then scope, then the recording guard (only when the
// preferences purpose actually moved). Caller holds r.mu.
func (r *Reconciler) applyChangeLocked(ctx context.Context, prev, next consent.State) {
	cfg := derive.Derive(next, r.originalConfig)
	r.client.ApplyConfig(cfg)

	if prev.Granted(consent.PurposeMarketing) != next.Granted(consent.PurposeMarketing) {
		r.scope.Apply(next.Granted(consent.PurposeMarketing))
	}

	if prev.Granted(consent.PurposePreferences) != next.Granted(consent.PurposePreferences) {
		if next.Granted(consent.PurposePreferences) {
			r.validateRecording(ctx)
		} else {
			r.guard.Reset()
		}
	}
}

// validateRecording runs the guard and audits pause/resume transitions.
func (r *Reconciler) validateRecording(ctx context.Context) {
	before := r.guard.Paused()
	r.guard.Validate(ctx)
	after := r.guard.Paused()

	switch {
	case !before && after:
		r.audit(ctx, audit.Event{
			Action:  audit.ActionRecordingPaused,
			Purpose: string(consent.PurposePreferences),
			Reason:  "unsafe_settings",
		})
	case before && !after:
		r.audit(ctx, audit.Event{
			Action:  audit.ActionRecordingResumed,
			Purpose: string(consent.PurposePreferences),
		})
	}
}

// drain replays queued events in FIFO order on a background goroutine. Each
// replay uses the most specific capture operation for the event's kind.
// Replay failures are contained per event; delivery is best-effort.
func (r *Reconciler) drain(ctx context.Context, queued []queueEntry) {
	r.drainWG.Add(1)
	go func() {
		defer r.drainWG.Done()
		for _, entry := range queued {
			r.replay(ctx, entry)
		}
	}()
}

func (r *Reconciler) replay(ctx context.Context, entry queueEntry) {
	defer r.recoverPanic("replay")

	switch {
	case entry.event.Kind == telemetry.KindException && entry.event.Err != nil:
		r.client.CaptureException(ctx, entry.event.Err, entry.hint)
	case entry.event.Kind == telemetry.KindMessage:
		r.client.CaptureMessage(ctx, entry.event.Message, entry.hint)
	default:
		r.client.CaptureEvent(ctx, entry.event, entry.hint)
	}
	r.metrics.IncEventOutcome("replayed")
	r.audit(ctx, audit.Event{
		Action:           audit.ActionEventReplayed,
		TelemetryEventID: entry.event.ID.String(),
	})
}

// discard drops queued events without replay. Used when the first
// determination denies functional consent.
func (r *Reconciler) discard(ctx context.Context, queued []queueEntry) {
	for _, entry := range queued {
		r.metrics.IncEventOutcome("discarded")
		r.audit(ctx, audit.Event{
			Action:           audit.ActionEventDiscarded,
			Purpose:          string(consent.PurposeFunctional),
			Decision:         "denied",
			TelemetryEventID: entry.event.ID.String(),
		})
	}
	r.logger.Debug("discarded queued events captured before denial", "count", len(queued))
}

// audit emits one trail entry. Audit failures never disturb the gate.
func (r *Reconciler) audit(ctx context.Context, event audit.Event) {
	if r.auditor == nil {
		return
	}
	if err := r.auditor.Emit(ctx, event); err != nil {
		r.logger.Warn("audit emit failed", "action", event.Action, "error", err)
	}
}

// recoverPanic keeps internal failures from escaping the public hooks. The
// gate degrades to its current fail-closed state instead of crashing the
// host's capture pipeline.
func (r *Reconciler) recoverPanic(op string) {
	if rec := recover(); rec != nil {
		r.logger.Error("recovered panic in consent gate", "op", op, "panic", rec)
	}
}
