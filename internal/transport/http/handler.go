// Package httptransport is the demo's thin HTTP layer: it drives consent
// changes, feeds captured events through the gate, and exposes the audit
// trail. Transport concerns only; gating logic lives in the reconciler.
package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mssola/useragent"

	"consentgate/internal/audit"
	"consentgate/internal/consent"
	"consentgate/internal/reconciler"
	"consentgate/internal/telemetry"
	"consentgate/internal/telemetry/telemetrytest"
	dErrors "consentgate/pkg/domain-errors"
	"consentgate/pkg/platform/httputil"
)

// AuditLister reads back the audit trail. Satisfied by *audit.Publisher.
type AuditLister interface {
	List(ctx context.Context) ([]audit.Event, error)
}

// ConsentStore lets the demo write and snapshot consent regardless of which
// backing source (in-memory, Redis) is wired in.
type ConsentStore interface {
	Set(ctx context.Context, p consent.Purpose, granted bool) error
	Snapshot(ctx context.Context) (map[consent.Purpose]bool, error)
}

// Handler handles the demo endpoints.
type Handler struct {
	logger *slog.Logger
	gate   *reconciler.Reconciler
	client *telemetrytest.Client
	store  ConsentStore
	trail  AuditLister
}

// New creates a demo Handler.
func New(
	gate *reconciler.Reconciler,
	client *telemetrytest.Client,
	store ConsentStore,
	trail AuditLister,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		logger: logger,
		gate:   gate,
		client: client,
		store:  store,
		trail:  trail,
	}
}

// Register registers the demo routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/consent/{purpose}/grant", h.handleConsentSet(true))
	r.Post("/consent/{purpose}/revoke", h.handleConsentSet(false))
	r.Get("/state", h.handleState)
	r.Post("/capture", h.handleCapture)
	r.Get("/events", h.handleEvents)
	r.Get("/audit", h.handleAudit)
	r.Post("/gate/revalidate", h.handleRevalidate)
}

func (h *Handler) handleConsentSet(granted bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		purpose := consent.Purpose(chi.URLParam(r, "purpose"))
		if !purpose.IsValid() {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "unknown consent purpose"))
			return
		}

		if err := h.store.Set(r.Context(), purpose, granted); err != nil {
			h.logger.ErrorContext(r.Context(), "consent write failed",
				"purpose", purpose, "error", err)
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "consent store write failed"))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"purpose": purpose,
			"granted": granted,
		})
	}
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.store.Snapshot(r.Context())
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "consent store read failed"))
		return
	}

	cfg := h.client.Config()
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"consent":          snapshot,
		"ready":            h.gate.Ready(),
		"queue_depth":      h.gate.QueueDepth(),
		"recording_paused": h.gate.Paused(),
		"config": map[string]any{
			"enabled":          cfg.Enabled,
			"sample_rate":      cfg.SampleRate,
			"max_breadcrumbs":  cfg.MaxBreadcrumbs,
			"send_default_pii": cfg.SendDefaultPII,
		},
	})
}

type captureRequest struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// handleCapture simulates the host client capturing an event: the request
// becomes a telemetry event tagged with browser context parsed from the
// User-Agent header, then runs through the gate.
func (h *Handler) handleCapture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	kind := telemetry.EventKind(req.Kind)
	if req.Kind == "" {
		kind = telemetry.KindMessage
	}
	if !kind.IsValid() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "unknown event kind"))
		return
	}

	event := telemetry.NewEvent(kind)
	event.Message = req.Message
	if tags := browserTags(r.UserAgent()); len(tags) > 0 {
		event.Tags = tags
	}

	passed := h.gate.ProcessEvent(r.Context(), event, nil)
	outcome := "queued_or_blocked"
	if passed != nil {
		h.client.CaptureEvent(r.Context(), passed, nil)
		outcome = "allowed"
	}

	httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
		"event_id": event.ID,
		"outcome":  outcome,
	})
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		Kind    telemetry.EventKind `json:"kind"`
		Message string              `json:"message,omitempty"`
		Error   string              `json:"error,omitempty"`
	}

	captured := h.client.Captured()
	out := make([]entry, 0, len(captured))
	for _, c := range captured {
		e := entry{Kind: c.Kind, Message: c.Message}
		if c.Err != nil {
			e.Error = c.Err.Error()
		}
		if c.Event != nil && e.Message == "" {
			e.Message = c.Event.Message
		}
		out = append(out, e)
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	events, err := h.trail.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "audit list failed", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "audit trail unavailable"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

func (h *Handler) handleRevalidate(w http.ResponseWriter, r *http.Request) {
	h.gate.Revalidate(r.Context())
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"recording_paused": h.gate.Paused(),
	})
}

// browserTags derives coarse device tags from a User-Agent header. Only
// non-identifying buckets: browser family, OS family, desktop/mobile.
func browserTags(uaString string) map[string]string {
	if uaString == "" {
		return nil
	}

	ua := useragent.New(uaString)
	browser, _ := ua.Browser()
	browser = strings.ToLower(strings.TrimSpace(browser))
	if browser == "" {
		browser = "unknown"
	}
	os := strings.ToLower(strings.TrimSpace(ua.OS()))
	if os == "" {
		os = "unknown"
	}
	platform := "desktop"
	if ua.Mobile() {
		platform = "mobile"
	}

	return map[string]string{
		"browser":  browser,
		"os":       os,
		"platform": platform,
	}
}
