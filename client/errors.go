package client

import (
	"errors"
	"fmt"
)

// Sentinel errors for transport outcomes.
var (
	// ErrUnauthorized indicates the backend rejected the session (401/403),
	// or a configured bearer token is already expired.
	ErrUnauthorized = errors.New("client: unauthorized")

	// ErrMalformedResponse indicates a 2xx response whose body could not be
	// decoded or is missing required fields.
	ErrMalformedResponse = errors.New("client: malformed response")
)

// TransportError reports a failed request: either the request never completed
// (Status 0) or the backend answered with a non-2xx status.
type TransportError struct {
	// Status is the HTTP status code, or 0 for network-level failures.
	Status int

	// Body is the response body text, truncated for readability.
	Body string

	err error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("client: request failed: %v", e.err)
	}
	if e.Body == "" {
		return fmt.Sprintf("client: unexpected status %d", e.Status)
	}
	return fmt.Sprintf("client: unexpected status %d: %s", e.Status, e.Body)
}

func (e *TransportError) Unwrap() error { return e.err }
