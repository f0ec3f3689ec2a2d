package telemetry

// User identifies the person the host client attributes events to.
type User struct {
	ID       string
	Email    string
	Username string
}

// IsEmpty returns true when no identifying field is set.
func (u User) IsEmpty() bool {
	return u.ID == "" && u.Email == "" && u.Username == ""
}

// ScopeData is a snapshot of identity, tags, and named context buckets held by
// the host client's scope. Snapshots are best-effort: a host that does not
// expose scope reads yields an empty snapshot.
type ScopeData struct {
	User     User
	Tags     map[string]string
	Contexts map[string]map[string]any
}

// IsEmpty returns true when the snapshot carries no data at all.
func (s ScopeData) IsEmpty() bool {
	return s.User.IsEmpty() && len(s.Tags) == 0 && len(s.Contexts) == 0
}

// Clone returns a deep copy so snapshots stay immutable after capture.
func (s ScopeData) Clone() ScopeData {
	out := ScopeData{User: s.User}
	if s.Tags != nil {
		out.Tags = make(map[string]string, len(s.Tags))
		for k, v := range s.Tags {
			out.Tags[k] = v
		}
	}
	if s.Contexts != nil {
		out.Contexts = make(map[string]map[string]any, len(s.Contexts))
		for name, values := range s.Contexts {
			ctx := make(map[string]any, len(values))
			for k, v := range values {
				ctx[k] = v
			}
			out.Contexts[name] = ctx
		}
	}
	return out
}
