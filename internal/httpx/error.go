package httpx

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a transport failure.
type Kind int

const (
	// KindConnectionFailed covers network errors, cancellation and deadlines.
	KindConnectionFailed Kind = iota + 1
	// KindInvalidRequest means the request could not be turned into a
	// well-formed HTTP request.
	KindInvalidRequest
	// KindInvalidResponse means no HTTP response metadata was obtained.
	KindInvalidResponse
)

func (k Kind) String() string {
	switch k {
	case KindConnectionFailed:
		return "connection failed"
	case KindInvalidRequest:
		return "invalid request"
	case KindInvalidResponse:
		return "invalid response"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrTransport matches every *TransportError via errors.Is.
var ErrTransport = errors.New("httpx: transport error")

// TransportError is returned when no usable HTTP response was obtained.
type TransportError struct {
	Kind Kind
	Err  error
}

func (e *TransportError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err == nil {
		return fmt.Sprintf("httpx: %s", e.Kind)
	}
	return fmt.Sprintf("httpx: %s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports ErrTransport as a match so callers can test the category
// without unwrapping.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// Canceled reports whether the request was abandoned because its context
// was cancelled or timed out.
func (e *TransportError) Canceled() bool {
	if e == nil {
		return false
	}
	return errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded)
}

func newError(kind Kind, err error) *TransportError {
	return &TransportError{Kind: kind, Err: err}
}

// InvalidRequest builds a KindInvalidRequest error from a message.
func InvalidRequest(format string, args ...any) *TransportError {
	return newError(KindInvalidRequest, fmt.Errorf(format, args...))
}
