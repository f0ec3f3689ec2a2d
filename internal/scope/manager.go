// Package scope gates identity, tag, and context data behind the marketing
// consent purpose.
package scope

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"consentgate/internal/telemetry"
)

// marketingTagPatterns is the fixed lexicon of tag-key substrings treated as
// marketing data. Matching is case-insensitive.
var marketingTagPatterns = []string{
	"campaign", "cohort", "segment", "experiment", "variant",
	"source", "medium", "channel", "funnel", "journey",
	"user_type", "subscription", "plan", "tier",
}

// marketingContexts are the named context buckets cleared on marketing denial.
var marketingContexts = []string{"marketing", "campaign", "cohort"}

// Manager applies or clears marketing-gated scope data on the host client and
// owns the original snapshot it restores from.
type Manager struct {
	client telemetry.Client
	logger *slog.Logger

	mu       sync.Mutex
	original telemetry.ScopeData
	captured bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger installs a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a scope manager for the given client handle.
func NewManager(client telemetry.Client, opts ...Option) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("telemetry client is required")
	}
	m := &Manager{client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// CaptureOriginal snapshots the client's current scope. The snapshot is
// best-effort: hosts that do not expose scope reads yield an empty snapshot,
// and later restores become no-ops. Capture retries lazily: an empty snapshot
// is re-attempted on the next call, a populated one is kept.
func (m *Manager) CaptureOriginal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.captured && !m.original.IsEmpty() {
		return
	}
	snapshot, ok := m.client.Scope()
	if !ok {
		m.logger.Debug("host client does not expose scope reads; marketing restore will be best-effort")
		m.captured = true
		return
	}
	m.original = snapshot.Clone()
	m.captured = true
}

// Original returns the captured snapshot.
func (m *Manager) Original() telemetry.ScopeData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.original.Clone()
}

// Apply enforces the marketing purpose: denial clears identity, marketing
// tags, and marketing context buckets; grant restores them from the original
// snapshot. Restoration from an empty snapshot is a documented no-op, not an
// error.
func (m *Manager) Apply(marketingGranted bool) {
	if marketingGranted {
		m.restore()
		return
	}
	m.clear()
}

func (m *Manager) clear() {
	m.client.SetUser(telemetry.User{})

	for _, key := range m.marketingTagKeys() {
		m.client.RemoveTag(key)
	}
	for _, name := range marketingContexts {
		m.client.RemoveContext(name)
	}
	m.logger.Debug("marketing consent denied; cleared identity, marketing tags, and contexts")
}

// marketingTagKeys lists tag keys to clear: the client's live tags when
// readable, falling back to the original snapshot's keys otherwise.
func (m *Manager) marketingTagKeys() []string {
	tags := map[string]string{}
	if live, ok := m.client.Scope(); ok {
		tags = live.Tags
	} else {
		m.mu.Lock()
		tags = m.original.Tags
		m.mu.Unlock()
	}

	var keys []string
	for key := range tags {
		if IsMarketingTag(key) {
			keys = append(keys, key)
		}
	}
	return keys
}

func (m *Manager) restore() {
	m.mu.Lock()
	original := m.original.Clone()
	m.mu.Unlock()

	if original.IsEmpty() {
		m.logger.Debug("no original scope snapshot; marketing restore is a no-op")
		return
	}

	if !original.User.IsEmpty() {
		m.client.SetUser(original.User)
	}
	for key, value := range original.Tags {
		if IsMarketingTag(key) {
			m.client.SetTag(key, value)
		}
	}
	for _, name := range marketingContexts {
		if values, ok := original.Contexts[name]; ok {
			m.client.SetContext(name, values)
		}
	}
	m.logger.Debug("marketing consent granted; restored identity, marketing tags, and contexts")
}

// IsMarketingTag reports whether a tag key matches the marketing lexicon.
func IsMarketingTag(key string) bool {
	lower := strings.ToLower(key)
	for _, pattern := range marketingTagPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
