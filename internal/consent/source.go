package consent

import (
	"fmt"

	dErrors "consentgate/pkg/domain-errors"
)

// Getter reads current consent for one purpose from the host platform. An
// error means the platform has not produced a determination yet; it is never
// treated as "granted".
type Getter func() (bool, error)

// Getters maps purposes to caller-supplied consent reads. Absent entries are
// fail-closed: the purpose is untracked and reads as denied.
type Getters map[Purpose]Getter

// SubscribeFunc registers trigger to be invoked whenever consent changes in
// the host platform and returns an unsubscribe function.
type SubscribeFunc func(trigger func()) (unsubscribe func())

// Source determines current consent through externally supplied queries and
// relays change notifications. It owns no consent state itself; every Read
// produces a fresh snapshot.
type Source struct {
	getters   Getters
	subscribe SubscribeFunc
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithSubscription installs the host platform's change-notification hook.
// Without it the source never signals changes and the reconciler relies on
// the initial read alone.
func WithSubscription(fn SubscribeFunc) SourceOption {
	return func(s *Source) {
		s.subscribe = fn
	}
}

// NewSource validates the getter map and builds a Source. An empty map is
// allowed: everything is untracked and the gate fails closed.
func NewSource(getters Getters, opts ...SourceOption) (*Source, error) {
	for p := range getters {
		if !p.IsValid() {
			return nil, fmt.Errorf("unknown consent purpose %q", p)
		}
	}
	s := &Source{getters: getters}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Read produces a fresh snapshot. The snapshot is always fully populated with
// fail-closed values; additionally, when any tracked getter failed or
// panicked, a non-nil error reports that the state is not (yet) a
// determination. Callers decide what that means: during setup it keeps
// readiness pending, after readiness the fail-closed values apply as-is.
func (s *Source) Read() (State, error) {
	var state State
	var firstErr error
	for _, p := range All {
		getter, ok := s.getters[p]
		if !ok {
			continue
		}
		granted, err := readOne(getter)
		if err != nil {
			denied := false
			state.set(p, &denied)
			if firstErr == nil {
				firstErr = dErrors.Wrap(err, dErrors.CodeConsentUnknown,
					fmt.Sprintf("consent read failed for purpose %q", p))
			}
			continue
		}
		v := granted
		state.set(p, &v)
	}
	return state, firstErr
}

// Subscribe registers trigger with the host platform. The returned function
// unsubscribes and is safe to call multiple times. When no subscription hook
// was supplied, Subscribe is a no-op returning a no-op unsubscribe.
func (s *Source) Subscribe(trigger func()) func() {
	if s.subscribe == nil {
		return func() {}
	}
	unsub := s.subscribe(trigger)
	if unsub == nil {
		return func() {}
	}
	return unsub
}

// readOne isolates getter panics: a panicking getter reads as "no
// determination", never as a crash of the event pipeline.
func readOne(getter Getter) (granted bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			granted = false
			err = fmt.Errorf("consent getter panicked: %v", r)
		}
	}()
	return getter()
}
