package httptransport_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentgate/internal/audit"
	"consentgate/internal/audit/store/memory"
	"consentgate/internal/consent"
	"consentgate/internal/consent/sources/static"
	"consentgate/internal/platform/logger"
	"consentgate/internal/reconciler"
	"consentgate/internal/telemetry"
	"consentgate/internal/telemetry/telemetrytest"
	httptransport "consentgate/internal/transport/http"
)

type fixture struct {
	server *httptest.Server
	gate   *reconciler.Reconciler
	client *telemetrytest.Client
	source *static.Source
}

func newFixture(t *testing.T, initial map[consent.Purpose]bool) *fixture {
	t.Helper()

	client := telemetrytest.NewClient(telemetry.Config{
		Enabled:        true,
		SampleRate:     1.0,
		MaxBreadcrumbs: 50,
	})
	staticSource := static.New(initial)

	source, err := consent.NewSource(staticSource.Getters(),
		consent.WithSubscription(staticSource.Subscribe))
	require.NoError(t, err)

	trail := audit.NewPublisher(memory.NewStore())
	gate, err := reconciler.New(client, source, reconciler.WithAuditPublisher(trail))
	require.NoError(t, err)
	gate.Setup(context.Background())
	t.Cleanup(gate.Cleanup)

	log := logger.New(false)
	handler := httptransport.New(gate, client,
		httptransport.StaticStore{Source: staticSource}, trail, log)
	server := httptest.NewServer(httptransport.NewRouter(handler, log))
	t.Cleanup(server.Close)

	return &fixture{server: server, gate: gate, client: client, source: staticSource}
}

func (f *fixture) post(t *testing.T, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(f.server.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestConsentGrantRevoke(t *testing.T) {
	f := newFixture(t, map[consent.Purpose]bool{
		consent.PurposeFunctional: true,
		consent.PurposeAnalytics:  false,
	})

	resp, body := f.post(t, "/consent/analytics/grant", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["granted"])
	assert.True(t, f.source.Snapshot()[consent.PurposeAnalytics])

	resp, body = f.post(t, "/consent/analytics/revoke", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["granted"])
}

func TestConsentUnknownPurposeRejected(t *testing.T) {
	f := newFixture(t, map[consent.Purpose]bool{consent.PurposeFunctional: true})

	resp, body := f.post(t, "/consent/advertising/grant", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_input", body["error"])
}

func TestCaptureAllowedWithFunctionalConsent(t *testing.T) {
	f := newFixture(t, map[consent.Purpose]bool{consent.PurposeFunctional: true})

	resp, body := f.post(t, "/capture", `{"kind":"message","message":"hello"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "allowed", body["outcome"])

	captured := f.client.Captured()
	require.Len(t, captured, 1)
	assert.Equal(t, "hello", captured[0].Event.Message)
}

func TestCaptureBlockedWithoutFunctionalConsent(t *testing.T) {
	f := newFixture(t, map[consent.Purpose]bool{consent.PurposeFunctional: false})

	resp, body := f.post(t, "/capture", `{"kind":"message","message":"hello"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "queued_or_blocked", body["outcome"])
	assert.Empty(t, f.client.Captured())
}

func TestCaptureTagsDerivedFromUserAgent(t *testing.T) {
	f := newFixture(t, map[consent.Purpose]bool{consent.PurposeFunctional: true})

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/capture",
		strings.NewReader(`{"kind":"message","message":"ua"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	captured := f.client.Captured()
	require.Len(t, captured, 1)
	assert.Equal(t, "chrome", captured[0].Event.Tags["browser"])
	assert.Equal(t, "desktop", captured[0].Event.Tags["platform"])
}

func TestStateReportsDerivedConfig(t *testing.T) {
	f := newFixture(t, map[consent.Purpose]bool{
		consent.PurposeFunctional: true,
		consent.PurposeAnalytics:  false,
	})

	resp, err := http.Get(f.server.URL + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Consent         map[string]bool `json:"consent"`
		Ready           bool            `json:"ready"`
		RecordingPaused bool            `json:"recording_paused"`
		Config          struct {
			Enabled        bool    `json:"enabled"`
			MaxBreadcrumbs float64 `json:"max_breadcrumbs"`
		} `json:"config"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.True(t, body.Consent["functional"])
	assert.True(t, body.Ready)
	assert.True(t, body.Config.Enabled)
	assert.Equal(t, float64(0), body.Config.MaxBreadcrumbs, "analytics denied forces breadcrumb limit to zero")
}

func TestAuditTrailExposed(t *testing.T) {
	f := newFixture(t, map[consent.Purpose]bool{consent.PurposeFunctional: true})

	f.post(t, "/capture", `{"kind":"message","message":"hello"}`)

	resp, err := http.Get(f.server.URL + "/audit")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var events []audit.Event
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
	assert.NotEmpty(t, events)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, map[consent.Purpose]bool{consent.PurposeFunctional: true})

	resp, err := http.Get(f.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
