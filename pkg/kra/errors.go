package kra

import (
	"errors"

	"github.com/mlabs/kra_sdk_go/internal/httpx"
	"github.com/mlabs/kra_sdk_go/internal/kraapi"
)

type (
	// APIError is a failure declared by the server in a well-formed answer.
	APIError = kraapi.APIError
	// MalformedResponseError reports an answer matching no expected shape.
	MalformedResponseError = kraapi.MalformedResponseError
	// TransportError reports that no usable HTTP response was obtained.
	TransportError = httpx.TransportError
	// TransportErrorKind classifies a TransportError.
	TransportErrorKind = httpx.Kind
)

const (
	KindConnectionFailed = httpx.KindConnectionFailed
	KindInvalidRequest   = httpx.KindInvalidRequest
	KindInvalidResponse  = httpx.KindInvalidResponse
)

var (
	// ErrUnauthorized means the session is invalid or expired.
	ErrUnauthorized = kraapi.ErrUnauthorized
	// ErrMalformedResponse matches every *MalformedResponseError.
	ErrMalformedResponse = kraapi.ErrMalformedResponse
	// ErrTransport matches every *TransportError.
	ErrTransport = httpx.ErrTransport
	// ErrNotImplemented is returned by operations the client does not support
	// yet.
	ErrNotImplemented = errors.New("kra: not implemented")
)
