package llm

import "errors"

var (
	// ErrNotConfigured is returned when no provider is configured or
	// enabled for a request. Surfaced to the user immediately, no retry.
	ErrNotConfigured = errors.New("llm: provider not configured")

	// ErrCompletion is returned when a completion request fails.
	ErrCompletion = errors.New("llm: completion failed")
)

// ErrorResponse is the JSON error envelope shared by the HTTP API.
type ErrorResponse struct {
	Error string `json:"error"`
}
