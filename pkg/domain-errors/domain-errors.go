package domainerrors

import "errors"

// Code represents a domain error category independent of any transport or
// host-client concern. These codes describe what went wrong in consent-gating
// terms, not in terms of the backing infrastructure.
type Code string

const (
	CodeInvalidInput       Code = "invalid_input"
	CodeInternal           Code = "internal_error"
	CodeUnavailable        Code = "unavailable"
	CodeInvariantViolation Code = "invariant_violation"

	// CodeConsentUnknown marks a consent read that produced no determination.
	// Callers must treat it as "deny until known", never as an outage.
	CodeConsentUnknown Code = "consent_unknown"

	// CodeMissingConsent marks an operation attempted without the purpose
	// consent it requires.
	CodeMissingConsent Code = "missing_consent"
)

// Error wraps domain or infrastructure failures with a stable code.
// It is transport-agnostic and can be used across source, guard, and
// reconciler layers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
