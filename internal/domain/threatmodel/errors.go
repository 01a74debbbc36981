package threatmodel

import (
	"errors"
	"fmt"
)

var (
	// ErrCanceled marks a caller-initiated abort. It is not a failure to report.
	ErrCanceled = errors.New("analysis canceled")
	// ErrTransportFailure indicates the reasoning service could not be reached or
	// answered with a non-retryable or persistent error status.
	ErrTransportFailure = errors.New("reasoning service unavailable")
	// ErrMalformedReply indicates the reply arrived but violates the output contract.
	ErrMalformedReply = errors.New("malformed reasoning service reply")
	// ErrInvalidRequest is returned by caller-side validation before any network call.
	ErrInvalidRequest = errors.New("invalid analysis request")
)

// Canceled wraps the context error so both errors.Is(err, ErrCanceled) and
// errors.Is(err, context.Canceled) hold.
func Canceled(cause error) error {
	if cause == nil {
		return ErrCanceled
	}
	return fmt.Errorf("%w: %w", ErrCanceled, cause)
}

// TransportError carries the last known status after the transport gave up.
// StatusCode is 0 when the last attempt failed below the HTTP layer.
type TransportError struct {
	StatusCode int
	Attempts   int
	Err        error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("%v after %d attempt(s)", ErrTransportFailure, e.Attempts)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%v: status %d after %d attempt(s)", ErrTransportFailure, e.StatusCode, e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransportFailure }

// MalformedReplyError describes why a reply was rejected.
type MalformedReplyError struct {
	Reason string
	Err    error
}

func (e *MalformedReplyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", ErrMalformedReply, e.Reason, e.Err)
	}
	return fmt.Sprintf("%v: %s", ErrMalformedReply, e.Reason)
}

func (e *MalformedReplyError) Unwrap() error { return e.Err }

func (e *MalformedReplyError) Is(target error) bool { return target == ErrMalformedReply }

// Malformed is shorthand for building a MalformedReplyError.
func Malformed(reason string, err error) error {
	return &MalformedReplyError{Reason: reason, Err: err}
}

// Invalid reports a caller-side validation failure.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
