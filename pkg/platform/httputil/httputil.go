// Package httputil contains small helpers for JSON HTTP responses.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "consentgate/pkg/domain-errors"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to an HTTP status and JSON error body.
// Internal errors never leak their description to the client.
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	description := ""

	var dErr *dErrors.Error
	if errors.As(err, &dErr) {
		switch dErr.Code {
		case dErrors.CodeInvalidInput:
			status = http.StatusBadRequest
			code = "invalid_input"
			description = dErr.Message
		case dErrors.CodeMissingConsent:
			status = http.StatusForbidden
			code = "missing_consent"
			description = dErr.Message
		case dErrors.CodeConsentUnknown:
			status = http.StatusConflict
			code = "consent_unknown"
			description = dErr.Message
		case dErrors.CodeUnavailable:
			status = http.StatusServiceUnavailable
			code = "unavailable"
		}
	}

	body := map[string]string{"error": code}
	if description != "" {
		body["error_description"] = description
	}
	WriteJSON(w, status, body)
}
