package errors

import "fmt"

// UpstreamError describes a non-success response from an AI provider:
// the HTTP status and the provider's own message, when one could be
// extracted from the response body.
//
// Matches both errors.Is(err, ErrUpstream) and errors.As with
// *UpstreamError, so callers can branch on the taxonomy or dig out the
// status code as needed.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s API request failed with status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API error: %s", e.Provider, e.Message)
}

// Is makes the sentinel check work through the typed value.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// NewUpstreamError creates an upstream error carrying the provider identity
// and response status. Pass statusCode 0 for failures without an HTTP status,
// such as a malformed response body.
func NewUpstreamError(provider string, statusCode int, message string) error {
	return &UpstreamError{
		Provider:   provider,
		StatusCode: statusCode,
		Message:    message,
	}
}

// IsUpstreamError checks if an error is or wraps ErrUpstream
func IsUpstreamError(err error) bool {
	return err != nil && Is(err, ErrUpstream)
}

// AsUpstream extracts the typed upstream error, if the chain contains one.
func AsUpstream(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if As(err, &ue) {
		return ue, true
	}
	return nil, false
}
