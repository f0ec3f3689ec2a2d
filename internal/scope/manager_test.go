package scope

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"consentgate/internal/telemetry"
	"consentgate/internal/telemetry/telemetrytest"
)

type ManagerSuite struct {
	suite.Suite
	client  *telemetrytest.Client
	manager *Manager
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.client = telemetrytest.NewClient(telemetry.Config{})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager, err := NewManager(s.client, WithLogger(logger))
	s.Require().NoError(err)
	s.manager = manager
}

func (s *ManagerSuite) seedScope() {
	s.client.SeedScope(telemetry.ScopeData{
		User: telemetry.User{ID: "u1"},
		Tags: map[string]string{
			"campaign": "x",
			"other":    "y",
		},
		Contexts: map[string]map[string]any{
			"campaign": {"id": "summer"},
			"device":   {"model": "p8"},
		},
	})
}

func (s *ManagerSuite) TestNewManagerRequiresClient() {
	_, err := NewManager(nil)
	s.Require().Error(err)
}

func (s *ManagerSuite) TestDenyClearsMarketingDataOnly() {
	s.seedScope()
	s.manager.CaptureOriginal()

	s.manager.Apply(false)

	current, ok := s.client.Scope()
	s.Require().True(ok)
	s.True(current.User.IsEmpty(), "identity must be cleared")
	s.NotContains(current.Tags, "campaign")
	s.Equal("y", current.Tags["other"], "non-marketing tags are retained")
	s.NotContains(current.Contexts, "campaign")
	s.Contains(current.Contexts, "device", "non-marketing contexts are retained")
}

func (s *ManagerSuite) TestDenyThenGrantRestores() {
	s.seedScope()
	s.manager.CaptureOriginal()

	s.manager.Apply(false)
	s.manager.Apply(true)

	current, ok := s.client.Scope()
	s.Require().True(ok)
	s.Equal("u1", current.User.ID)
	s.Equal("x", current.Tags["campaign"])
	s.Equal("y", current.Tags["other"])
	s.Equal(map[string]any{"id": "summer"}, current.Contexts["campaign"])
}

func (s *ManagerSuite) TestRestoreWithoutSnapshotIsNoOp() {
	s.client.DisableScopeRead()
	s.manager.CaptureOriginal()

	// Must not panic and must not invent data.
	s.manager.Apply(true)
	s.True(s.manager.Original().IsEmpty())
}

func (s *ManagerSuite) TestDenyWithoutScopeReadFallsBackToSnapshotKeys() {
	s.seedScope()
	s.manager.CaptureOriginal()
	s.client.DisableScopeRead()

	s.manager.Apply(false)

	// The fake still records removals even with reads disabled.
	s.manager.Apply(true) // restore uses snapshot; no panic
}

func (s *ManagerSuite) TestLazyRecapture() {
	// First capture sees an empty scope.
	s.manager.CaptureOriginal()
	s.True(s.manager.Original().IsEmpty())

	// Host populates identity later; a subsequent capture picks it up.
	s.seedScope()
	s.manager.CaptureOriginal()
	s.Equal("u1", s.manager.Original().User.ID)
}

func TestIsMarketingTag(t *testing.T) {
	cases := map[string]bool{
		"campaign":          true,
		"utm_source":        true,
		"UserCohortBucket":  true,
		"subscription_tier": true,
		"release":           false,
		"environment":       false,
		"browser":           false,
	}
	for key, want := range cases {
		if got := IsMarketingTag(key); got != want {
			t.Errorf("IsMarketingTag(%q) = %v, want %v", key, got, want)
		}
	}
}
