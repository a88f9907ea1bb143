package git

import "fmt"

// APIError is a failed call to a hosting platform API.
// StatusCode and Message come from the upstream answer
// when present.
type APIError struct {
	Platform   string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf(
		"%s api error: status %d: %s",
		e.Platform, e.StatusCode, e.Message,
	)
}

// Unwrap returns the underlying client error.
func (e *APIError) Unwrap() error {
	return e.Err
}
