package telemetry

// BeforeSendFunc filters or mutates an event just before submission.
// Returning nil drops the event.
type BeforeSendFunc func(ev *Event, hint *Hint) *Event

// BreadcrumbFunc filters or mutates a breadcrumb before it is recorded.
// Returning nil drops the breadcrumb.
type BreadcrumbFunc func(b *Breadcrumb) *Breadcrumb

// Breadcrumb is a trail entry recorded by the host client alongside events.
type Breadcrumb struct {
	Category string
	Message  string
	Data     map[string]any
}

// Config is the subset of host-client configuration the consent gate is
// permitted to read and mutate. Fields outside this struct are owned by the
// host and never touched.
//
// Each field is gated by exactly one consent purpose; see the derive package
// for the mapping.
type Config struct {
	// Functional purpose.
	Enabled               bool
	SampleRate            float64
	BeforeSend            BeforeSendFunc
	EnableSessionTracking bool

	// Analytics purpose.
	MaxBreadcrumbs        int
	AttachStacktrace      bool
	TracesSampleRate      float64
	ProfilesSampleRate    float64
	BeforeBreadcrumb      BreadcrumbFunc
	BeforeSendTransaction BeforeSendFunc

	// Preferences purpose.
	SendDefaultPII          bool
	ReplaySessionSampleRate float64
	ReplayErrorSampleRate   float64
}
