package reconciler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"consentgate/internal/audit"
	"consentgate/internal/audit/store/memory"
	"consentgate/internal/consent"
	"consentgate/internal/reconciler"
	"consentgate/internal/reconciler/mocks"
	"consentgate/internal/telemetry"
	"consentgate/internal/telemetry/telemetrytest"
)

// fakePlatform simulates the host consent platform: per-purpose getters that
// can be held undetermined, and a change-notification hook.
type fakePlatform struct {
	mu           sync.Mutex
	undetermined bool
	values       map[consent.Purpose]bool
	triggers     []func()
}

func newFakePlatform(values map[consent.Purpose]bool) *fakePlatform {
	return &fakePlatform{values: values}
}

func (f *fakePlatform) getters() consent.Getters {
	getters := make(consent.Getters, len(f.values))
	for p := range f.values {
		purpose := p
		getters[purpose] = func() (bool, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.undetermined {
				return false, errors.New("no determination yet")
			}
			return f.values[purpose], nil
		}
	}
	return getters
}

func (f *fakePlatform) subscribe(trigger func()) func() {
	f.mu.Lock()
	f.triggers = append(f.triggers, trigger)
	f.mu.Unlock()
	return func() {}
}

func (f *fakePlatform) holdUndetermined() {
	f.mu.Lock()
	f.undetermined = true
	f.mu.Unlock()
}

// set updates one purpose and fires the registered triggers, resolving any
// held determination first.
func (f *fakePlatform) set(p consent.Purpose, granted bool) {
	f.mu.Lock()
	f.undetermined = false
	f.values[p] = granted
	triggers := append([]func(){}, f.triggers...)
	f.mu.Unlock()
	for _, trigger := range triggers {
		trigger()
	}
}

func baseConfig() telemetry.Config {
	return telemetry.Config{
		Enabled:               true,
		SampleRate:            0.8,
		EnableSessionTracking: true,

		MaxBreadcrumbs:     100,
		AttachStacktrace:   true,
		TracesSampleRate:   0.5,
		ProfilesSampleRate: 0.25,

		SendDefaultPII:          true,
		ReplaySessionSampleRate: 0.1,
		ReplayErrorSampleRate:   1.0,
	}
}

type ReconcilerSuite struct {
	suite.Suite
	client *telemetrytest.Client
	store  *memory.Store
}

func TestReconcilerSuite(t *testing.T) {
	suite.Run(t, new(ReconcilerSuite))
}

func (s *ReconcilerSuite) SetupTest() {
	s.client = telemetrytest.NewClient(baseConfig())
	s.store = memory.NewStore()
}

func (s *ReconcilerSuite) newReconciler(platform *fakePlatform, opts ...reconciler.Option) *reconciler.Reconciler {
	source, err := consent.NewSource(platform.getters(), consent.WithSubscription(platform.subscribe))
	s.Require().NoError(err)

	opts = append(opts, reconciler.WithAuditPublisher(audit.NewPublisher(s.store)))
	r, err := reconciler.New(s.client, source, opts...)
	s.Require().NoError(err)
	return r
}

func (s *ReconcilerSuite) auditActions() []audit.Action {
	events, err := s.store.List(context.Background())
	s.Require().NoError(err)
	actions := make([]audit.Action, len(events))
	for i, e := range events {
		actions[i] = e.Action
	}
	return actions
}

func (s *ReconcilerSuite) TestNewRequiresClientAndSource() {
	source, err := consent.NewSource(consent.Getters{})
	s.Require().NoError(err)

	_, err = reconciler.New(nil, source)
	s.Error(err)

	_, err = reconciler.New(s.client, nil)
	s.Error(err)
}

func (s *ReconcilerSuite) TestAllGrantedPassesEventsThrough() {
	platform := newFakePlatform(map[consent.Purpose]bool{
		consent.PurposeFunctional:  true,
		consent.PurposeAnalytics:   true,
		consent.PurposePreferences: true,
		consent.PurposeMarketing:   true,
	})
	r := s.newReconciler(platform)
	defer r.Cleanup()

	r.Setup(context.Background())

	event := telemetry.NewEvent(telemetry.KindException)
	event.Err = errors.New("boom")
	got := r.ProcessEvent(context.Background(), event, nil)
	s.Same(event, got)

	cfg := s.client.Config()
	s.True(cfg.Enabled)
	s.Equal(0.8, cfg.SampleRate)
	s.Contains(s.auditActions(), audit.ActionConsentReady)
	s.Contains(s.auditActions(), audit.ActionEventAllowed)
}

func (s *ReconcilerSuite) TestFunctionalDeniedBlocksButKeepsOtherGrants() {
	platform := newFakePlatform(map[consent.Purpose]bool{
		consent.PurposeFunctional:  false,
		consent.PurposeAnalytics:   true,
		consent.PurposePreferences: true,
	})
	r := s.newReconciler(platform)
	defer r.Cleanup()

	r.Setup(context.Background())

	got := r.ProcessEvent(context.Background(), telemetry.NewEvent(telemetry.KindMessage), nil)
	s.Nil(got)

	cfg := s.client.Config()
	s.False(cfg.Enabled)
	s.Equal(0.0, cfg.SampleRate)
	s.Equal(100, cfg.MaxBreadcrumbs)
	s.True(cfg.SendDefaultPII)
	s.Contains(s.auditActions(), audit.ActionEventBlocked)
}

func (s *ReconcilerSuite) TestTimeoutForcesDenialAndDiscardsQueue() {
	platform := newFakePlatform(map[consent.Purpose]bool{
		consent.PurposeFunctional: true,
		consent.PurposeAnalytics:  true,
	})
	platform.holdUndetermined()

	r := s.newReconciler(platform, reconciler.WithTimeout(20*time.Millisecond))
	defer r.Cleanup()

	r.Setup(context.Background())

	s.Nil(r.ProcessEvent(context.Background(), telemetry.NewEvent(telemetry.KindMessage), nil))
	s.Nil(r.ProcessEvent(context.Background(), telemetry.NewEvent(telemetry.KindGeneric), nil))

	s.Eventually(func() bool {
		for _, action := range s.auditActions() {
			if action == audit.ActionConsentTimeout {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	r.Flush()
	s.Empty(s.client.Captured(), "queued events must be discarded, not replayed")
	s.False(s.client.Config().Enabled)

	actions := s.auditActions()
	discarded := 0
	for _, action := range actions {
		if action == audit.ActionEventDiscarded {
			discarded++
		}
	}
	s.Equal(2, discarded)
}

func (s *ReconcilerSuite) TestQueueReplayedInOrderWhenDeterminationArrives() {
	platform := newFakePlatform(map[consent.Purpose]bool{
		consent.PurposeFunctional: true,
	})
	platform.holdUndetermined()

	r := s.newReconciler(platform)
	defer r.Cleanup()

	r.Setup(context.Background())

	first := telemetry.NewEvent(telemetry.KindException)
	first.Err = errors.New("first")
	second := telemetry.NewEvent(telemetry.KindMessage)
	second.Message = "second"

	s.Nil(r.ProcessEvent(context.Background(), first, nil))
	s.Nil(r.ProcessEvent(context.Background(), second, nil))

	platform.set(consent.PurposeFunctional, true)
	r.Flush()

	captured := s.client.Captured()
	s.Require().Len(captured, 2)
	s.Equal(telemetry.KindException, captured[0].Kind)
	s.EqualError(captured[0].Err, "first")
	s.Equal(telemetry.KindMessage, captured[1].Kind)
	s.Equal("second", captured[1].Message)
}

func (s *ReconcilerSuite) TestQueueLimitDropsOldest() {
	platform := newFakePlatform(map[consent.Purpose]bool{
		consent.PurposeFunctional: true,
	})
	platform.holdUndetermined()

	r := s.newReconciler(platform, reconciler.WithQueueLimit(2))
	defer r.Cleanup()

	r.Setup(context.Background())

	for _, msg := range []string{"a", "b", "c"} {
		ev := telemetry.NewEvent(telemetry.KindMessage)
		ev.Message = msg
		s.Nil(r.ProcessEvent(context.Background(), ev, nil))
	}

	platform.set(consent.PurposeFunctional, true)
	r.Flush()

	captured := s.client.Captured()
	s.Require().Len(captured, 2)
	s.Equal("b", captured[0].Message)
	s.Equal("c", captured[1].Message)
}

func (s *ReconcilerSuite) TestConsentChangeReappliesConfiguration() {
	platform := newFakePlatform(map[consent.Purpose]bool{
		consent.PurposeFunctional: true,
		consent.PurposeAnalytics:  true,
	})
	r := s.newReconciler(platform)
	defer r.Cleanup()

	r.Setup(context.Background())
	s.Equal(100, s.client.Config().MaxBreadcrumbs)

	platform.set(consent.PurposeAnalytics, false)

	cfg := s.client.Config()
	s.True(cfg.Enabled, "functional grant must survive an analytics change")
	s.Equal(0, cfg.MaxBreadcrumbs)
	s.False(cfg.AttachStacktrace)
	s.Equal(0.0, cfg.TracesSampleRate)

	platform.set(consent.PurposeAnalytics, true)
	s.Equal(100, s.client.Config().MaxBreadcrumbs)
	s.Contains(s.auditActions(), audit.ActionConsentChanged)
}

func (s *ReconcilerSuite) TestUnchangedNotificationIsIgnored() {
	platform := newFakePlatform(map[consent.Purpose]bool{
		consent.PurposeFunctional: true,
	})
	r := s.newReconciler(platform)
	defer r.Cleanup()

	r.Setup(context.Background())
	before := len(s.auditActions())

	// Same values, just a redundant notification.
	platform.set(consent.PurposeFunctional, true)
	s.Len(s.auditActions(), before)
}

func (s *ReconcilerSuite) TestUnsafeRecordingPausedOnPreferencesGrant() {
	recorder := telemetrytest.NewRecorder(telemetry.RecordingOptions{
		MaskAllText:   telemetry.Bool(false),
		MaskAllInputs: telemetry.Bool(true),
		BlockAllMedia: telemetry.Bool(true),
	})
	s.client.SetRecorder(recorder)

	platform := newFakePlatform(map[consent.Purpose]bool{
		consent.PurposeFunctional:  true,
		consent.PurposePreferences: true,
	})
	r := s.newReconciler(platform)
	defer r.Cleanup()

	r.Setup(context.Background())

	s.True(r.Paused())
	s.False(recorder.Running())
	s.Contains(s.auditActions(), audit.ActionRecordingPaused)

	// Integrator fixes the options and asks for re-validation.
	recorder.SetOptions(telemetrytest.SafeOptions())
	r.Revalidate(context.Background())

	s.False(r.Paused())
	s.True(recorder.Running())
	s.Contains(s.auditActions(), audit.ActionRecordingResumed)
}

func (s *ReconcilerSuite) TestPreferencesRevokeResetsGuard() {
	recorder := telemetrytest.NewRecorder(telemetry.RecordingOptions{
		MaskAllText: telemetry.Bool(false),
	})
	s.client.SetRecorder(recorder)

	platform := newFakePlatform(map[consent.Purpose]bool{
		consent.PurposeFunctional:  true,
		consent.PurposePreferences: true,
	})
	r := s.newReconciler(platform)
	defer r.Cleanup()

	r.Setup(context.Background())
	s.Require().True(r.Paused())

	platform.set(consent.PurposePreferences, false)
	s.False(r.Paused())
}

func (s *ReconcilerSuite) TestMarketingDenyThenGrantRestoresScope() {
	s.client.SeedScope(telemetry.ScopeData{
		User: telemetry.User{ID: "u1"},
		Tags: map[string]string{"campaign": "x", "other": "y"},
	})

	platform := newFakePlatform(map[consent.Purpose]bool{
		consent.PurposeFunctional: true,
		consent.PurposeMarketing:  true,
	})
	r := s.newReconciler(platform)
	defer r.Cleanup()

	r.Setup(context.Background())

	platform.set(consent.PurposeMarketing, false)
	scopeData, ok := s.client.Scope()
	s.Require().True(ok)
	s.True(scopeData.User.IsEmpty())
	s.NotContains(scopeData.Tags, "campaign")
	s.Equal("y", scopeData.Tags["other"])

	platform.set(consent.PurposeMarketing, true)
	scopeData, ok = s.client.Scope()
	s.Require().True(ok)
	s.Equal("u1", scopeData.User.ID)
	s.Equal("x", scopeData.Tags["campaign"])
	s.Equal("y", scopeData.Tags["other"])
}

func (s *ReconcilerSuite) TestOriginalSnapshotsExposed() {
	s.client.SeedScope(telemetry.ScopeData{
		User: telemetry.User{ID: "u1"},
	})

	platform := newFakePlatform(map[consent.Purpose]bool{
		consent.PurposeFunctional: true,
	})
	r := s.newReconciler(platform)
	defer r.Cleanup()

	r.Setup(context.Background())

	s.Equal(0.8, r.OriginalConfig().SampleRate)
	s.Equal("u1", r.OriginalScope().User.ID)
}

func (s *ReconcilerSuite) TestSetupRunsOnce() {
	platform := newFakePlatform(map[consent.Purpose]bool{
		consent.PurposeFunctional: true,
	})
	r := s.newReconciler(platform)
	defer r.Cleanup()

	r.Setup(context.Background())
	r.Setup(context.Background())

	ready := 0
	for _, action := range s.auditActions() {
		if action == audit.ActionConsentReady {
			ready++
		}
	}
	s.Equal(1, ready)
}

func (s *ReconcilerSuite) TestCleanupIdempotentAndBeforeSetup() {
	platform := newFakePlatform(map[consent.Purpose]bool{
		consent.PurposeFunctional: true,
	})
	r := s.newReconciler(platform)

	r.Cleanup()
	r.Cleanup()
}

func (s *ReconcilerSuite) TestAuditFailureDoesNotDisturbGate() {
	ctrl := gomock.NewController(s.T())
	auditor := mocks.NewMockAuditPublisher(ctrl)
	auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("sink down")).AnyTimes()

	platform := newFakePlatform(map[consent.Purpose]bool{
		consent.PurposeFunctional: true,
	})
	source, err := consent.NewSource(platform.getters(), consent.WithSubscription(platform.subscribe))
	s.Require().NoError(err)

	r, err := reconciler.New(s.client, source, reconciler.WithAuditPublisher(auditor))
	s.Require().NoError(err)
	defer r.Cleanup()

	r.Setup(context.Background())

	event := telemetry.NewEvent(telemetry.KindMessage)
	s.Same(event, r.ProcessEvent(context.Background(), event, nil))
}

func (s *ReconcilerSuite) TestNilEventIsDropped() {
	platform := newFakePlatform(map[consent.Purpose]bool{
		consent.PurposeFunctional: true,
	})
	r := s.newReconciler(platform)
	defer r.Cleanup()

	r.Setup(context.Background())
	s.Nil(r.ProcessEvent(context.Background(), nil, nil))
}
