package telemetry

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable means the worker did not answer, or had nothing to report yet.
	ErrUnavailable = errors.New("status unavailable")
	// ErrMalformedPayload means the worker answered with something that is not a summary.
	ErrMalformedPayload = errors.New("malformed status payload")
	// ErrUnauthorized means the access token was rejected.
	ErrUnauthorized = errors.New("unauthorized")
)

// StatusError is a non 2xx answer of the worker's HTTP API.
type StatusError struct {
	StatusCode int
	Endpoint   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("xmrig API error (HTTP %d) at %s", e.StatusCode, e.Endpoint)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == 401 || e.StatusCode == 403 {
		return ErrUnauthorized
	}
	return ErrUnavailable
}
