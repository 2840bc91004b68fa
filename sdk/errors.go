package codemate

import "fmt"

// APIError is returned when the CodeMate API responds with a non-success status.
type APIError struct {
	StatusCode int
	Message    string
	// Explanation is set when an autofix could not be produced but the
	// server still returned an explanation of the failure.
	Explanation string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("codemate: HTTP %d: %s", e.StatusCode, e.Message)
}
