package workflow

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind classifies a trigger failure.
type Kind int

const (
	// Terminal failures are not worth retrying anywhere.
	Terminal Kind = iota

	// Retryable failures (timeouts, origin-timeout statuses) justify the
	// single fallback attempt against the external endpoint.
	Retryable

	// EmptyResponse means the engine answered 2xx with no body. The job
	// may well have run, so no fallback is attempted.
	EmptyResponse
)

func (k Kind) String() string {
	switch k {
	case Retryable:
		return "retryable"
	case EmptyResponse:
		return "empty_response"
	default:
		return "terminal"
	}
}

// Error is a classified workflow trigger failure with a human-readable
// message suitable for relaying to the requesting user.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or Terminal for non-workflow errors.
func KindOf(err error) Kind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return Terminal
}

// statusError is an internal marker for non-2xx responses.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("request failed with status code %d", e.code)
}

// classify turns a raw request failure into a workflow Error.
func classify(err error) *Error {
	var we *Error
	if errors.As(err, &we) {
		return we
	}

	var se *statusError
	if errors.As(err, &se) {
		if se.code == 524 {
			return &Error{
				Kind:    Retryable,
				Message: "request failed with status code 524 (gateway timeout)",
				Err:     err,
			}
		}
		return &Error{Kind: Terminal, Message: se.Error(), Err: err}
	}

	if isTimeout(err) {
		return &Error{Kind: Retryable, Message: "request to the workflow engine timed out", Err: err}
	}

	return &Error{Kind: Terminal, Message: err.Error(), Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
