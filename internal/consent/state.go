package consent

// State is an immutable snapshot of consent per purpose. A nil entry means the
// caller does not track that purpose; everywhere a nil or false value is used
// as a gating condition it reads as "denied" (fail-closed).
//
// Snapshots are compared field-wise, never structurally, so key ordering can
// never produce a false negative.
type State struct {
	Functional  *bool
	Analytics   *bool
	Preferences *bool
	Marketing   *bool
}

// Denied returns a snapshot with every purpose explicitly denied. Used by the
// timeout fallback, which must force denial rather than leave purposes
// untracked.
func Denied() State {
	f := false
	return State{Functional: &f, Analytics: &f, Preferences: &f, Marketing: &f}
}

// Granted reports consent for a purpose, fail-closed: untracked purposes and
// unknown purpose names read as denied.
func (s State) Granted(p Purpose) bool {
	v := s.value(p)
	return v != nil && *v
}

// Tracked reports whether a getter was supplied for the purpose.
func (s State) Tracked(p Purpose) bool {
	return s.value(p) != nil
}

// Equal compares two snapshots field-wise by value.
func (s State) Equal(o State) bool {
	for _, p := range All {
		if !boolPtrEqual(s.value(p), o.value(p)) {
			return false
		}
	}
	return true
}

func (s State) value(p Purpose) *bool {
	switch p {
	case PurposeFunctional:
		return s.Functional
	case PurposeAnalytics:
		return s.Analytics
	case PurposePreferences:
		return s.Preferences
	case PurposeMarketing:
		return s.Marketing
	default:
		return nil
	}
}

func (s *State) set(p Purpose, v *bool) {
	switch p {
	case PurposeFunctional:
		s.Functional = v
	case PurposeAnalytics:
		s.Analytics = v
	case PurposePreferences:
		s.Preferences = v
	case PurposeMarketing:
		s.Marketing = v
	}
}

func boolPtrEqual(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
