package connector

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-checkable failure category for a call.
type ErrorKind string

const (
	// ErrMissingEndpoint means the named endpoint is not configured.
	ErrMissingEndpoint ErrorKind = "missing_endpoint"

	// ErrClientError is a terminal 4xx response (never retried).
	ErrClientError ErrorKind = "http_client_error"

	// ErrServerErrorExhausted is a 5xx response that persisted through all
	// retry attempts.
	ErrServerErrorExhausted ErrorKind = "http_server_error_exhausted"

	// ErrTimeoutExhausted means every attempt timed out.
	ErrTimeoutExhausted ErrorKind = "timeout_exhausted"

	// ErrConnectionExhausted means every attempt failed at the transport
	// level (connection refused, reset, DNS failure).
	ErrConnectionExhausted ErrorKind = "connection_error_exhausted"

	// ErrRequestInvalid means the request could not be built or sent for a
	// reason unrelated to the network; it aborts without retry.
	ErrRequestInvalid ErrorKind = "request_invalid"
)

// CallError is the hard-failure result of Connector.Call. It always carries a
// human-readable message plus a machine-checkable kind; HTTP failures also
// carry the last observed status code.
type CallError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *CallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// KindOf returns the error kind of err if it is a CallError, or "" otherwise.
func KindOf(err error) ErrorKind {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
