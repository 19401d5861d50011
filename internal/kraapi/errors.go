package kraapi

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthorized is returned whenever the server answers with the
	// unauthorized status, whatever the body says.
	ErrUnauthorized = errors.New("kra: unauthorized")
	// ErrMalformedResponse matches every *MalformedResponseError.
	ErrMalformedResponse = errors.New("kra: malformed response")
)

// APIError is a failure declared by the server inside an otherwise
// well-formed envelope.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("kra: %s (code %d)", e.Message, e.Code)
}

// MalformedResponseError reports a body matching none of the shapes the
// decoder tried.
type MalformedResponseError struct {
	// Shapes lists the candidate interpretations, in the order attempted.
	Shapes     []string
	StatusCode int
	Err        error
}

func (e *MalformedResponseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("kra: malformed response (status %d, tried %s)", e.StatusCode, strings.Join(e.Shapes, ", "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedResponseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrMalformedResponse
}

func malformed(status int, err error, shapes ...string) *MalformedResponseError {
	return &MalformedResponseError{
		Shapes:     append([]string(nil), shapes...),
		StatusCode: status,
		Err:        err,
	}
}
