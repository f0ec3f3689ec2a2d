// Package telemetrytest provides in-memory doubles for the host telemetry
// client, used by unit tests and the demo binary.
package telemetrytest

import (
	"context"
	"sync"

	"consentgate/internal/telemetry"
)

// Captured records one capture call made against the fake client.
type Captured struct {
	Kind    telemetry.EventKind
	Message string
	Err     error
	Event   *telemetry.Event
	Hint    *telemetry.Hint
}

// Client is a recording fake for telemetry.Client. Safe for concurrent use.
type Client struct {
	mu        sync.Mutex
	cfg       telemetry.Config
	scope     telemetry.ScopeData
	scopeRead bool
	recorder  telemetry.Recorder
	captured  []Captured
}

var _ telemetry.Client = (*Client)(nil)

// NewClient creates a fake client with the given starting configuration.
// Scope reads are enabled by default.
func NewClient(cfg telemetry.Config) *Client {
	return &Client{
		cfg:       cfg,
		scopeRead: true,
		scope: telemetry.ScopeData{
			Tags:     map[string]string{},
			Contexts: map[string]map[string]any{},
		},
	}
}

func (c *Client) Config() telemetry.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

func (c *Client) ApplyConfig(cfg telemetry.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
}

func (c *Client) CaptureException(_ context.Context, err error, hint *telemetry.Hint) {
	c.record(Captured{Kind: telemetry.KindException, Err: err, Hint: hint})
}

func (c *Client) CaptureMessage(_ context.Context, msg string, hint *telemetry.Hint) {
	c.record(Captured{Kind: telemetry.KindMessage, Message: msg, Hint: hint})
}

func (c *Client) CaptureEvent(_ context.Context, ev *telemetry.Event, hint *telemetry.Hint) {
	kind := telemetry.KindGeneric
	if ev != nil {
		kind = ev.Kind
	}
	c.record(Captured{Kind: kind, Event: ev, Hint: hint})
}

func (c *Client) record(entry Captured) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.captured = append(c.captured, entry)
}

func (c *Client) Scope() (telemetry.ScopeData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.scopeRead {
		return telemetry.ScopeData{}, false
	}
	return c.scope.Clone(), true
}

func (c *Client) SetUser(u telemetry.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scope.User = u
}

func (c *Client) SetTag(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scope.Tags == nil {
		c.scope.Tags = map[string]string{}
	}
	c.scope.Tags[key] = value
}

func (c *Client) RemoveTag(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.scope.Tags, key)
}

func (c *Client) SetContext(name string, values map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scope.Contexts == nil {
		c.scope.Contexts = map[string]map[string]any{}
	}
	c.scope.Contexts[name] = values
}

func (c *Client) RemoveContext(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.scope.Contexts, name)
}

func (c *Client) Recorder() telemetry.Recorder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recorder
}

// SetRecorder installs (or removes, with nil) the fake recording subsystem.
func (c *Client) SetRecorder(r telemetry.Recorder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recorder = r
}

// DisableScopeRead makes Scope() report unsupported, simulating hosts that do
// not expose identity reads.
func (c *Client) DisableScopeRead() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scopeRead = false
}

// SeedScope replaces the fake's scope wholesale, for arranging test fixtures.
func (c *Client) SeedScope(scope telemetry.ScopeData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scope = scope.Clone()
	if c.scope.Tags == nil {
		c.scope.Tags = map[string]string{}
	}
	if c.scope.Contexts == nil {
		c.scope.Contexts = map[string]map[string]any{}
	}
}

// Captured returns a copy of all capture calls in order.
func (c *Client) Captured() []Captured {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Captured, len(c.captured))
	copy(out, c.captured)
	return out
}

// Reset clears recorded captures.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.captured = nil
}
