// Package kraapi decodes Kra API response envelopes. Every function is a pure
// function of the HTTP status and body, so decoding the same input twice
// yields equal results.
package kraapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// StatusUnauthorized is the HTTP status the server uses for an invalid or
// expired session.
const StatusUnauthorized = http.StatusUnauthorized

const unknownError = "unknown error"

// IsSuccess reports whether code belongs to the success sentinel family.
func IsSuccess(code int) bool {
	switch code {
	case 1, 201, 2011:
		return true
	default:
		return false
	}
}

// Envelope is the generic wrapper around every API answer.
type Envelope struct {
	Msg     string
	Success int
	// Data is nil when the field is absent and "null" when it is explicitly
	// null.
	Data json.RawMessage
}

type rawEnvelope struct {
	Msg     *string         `json:"msg"`
	Success *int            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// DecodeEnvelope validates the envelope and its success sentinel. The
// unauthorized status wins over any body. A success code paired with a
// non-empty msg that is not one of accepted is a failure reported with that
// msg.
func DecodeEnvelope(status int, body []byte, accepted ...string) (*Envelope, error) {
	if status == StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	raw, err := parseEnvelope(status, body)
	if err != nil {
		return nil, err
	}
	env := &Envelope{Data: raw.Data}
	if raw.Msg != nil {
		env.Msg = *raw.Msg
	}
	if raw.Success == nil {
		return nil, &APIError{Code: 0, Message: failureReason(env.Msg, "missing success code")}
	}
	env.Success = *raw.Success
	if !IsSuccess(env.Success) {
		return nil, &APIError{Code: env.Success, Message: failureReason(env.Msg, unknownError)}
	}
	if !acceptedMessage(env.Msg, accepted) {
		return nil, &APIError{Code: env.Success, Message: env.Msg}
	}
	return env, nil
}

// acceptedMessage reports whether msg agrees with a success code: it is
// empty or matches one of the endpoint's canonical success messages.
func acceptedMessage(msg string, accepted []string) bool {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return true
	}
	for _, ok := range accepted {
		if strings.EqualFold(msg, strings.TrimSpace(ok)) {
			return true
		}
	}
	return false
}

// DecodeLogin returns the session token of a login answer.
func DecodeLogin(status int, body []byte) (string, error) {
	if status == StatusUnauthorized {
		return "", ErrUnauthorized
	}
	trimmed := bytes.TrimSpace(body)
	if !isObject(trimmed) {
		return "", malformed(status, errors.New("body is not a JSON object"), "login")
	}
	var resp struct {
		SessionID *string `json:"session_id"`
		Success   *int    `json:"success"`
		Msg       *string `json:"msg"`
	}
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return "", malformed(status, err, "login")
	}
	if resp.SessionID != nil && *resp.SessionID != "" {
		return *resp.SessionID, nil
	}
	code := 0
	if resp.Success != nil {
		code = *resp.Success
	}
	msg := ""
	if resp.Msg != nil {
		msg = *resp.Msg
	}
	return "", &APIError{Code: code, Message: failureReason(msg, unknownError)}
}

// DecodeObject decodes an envelope whose data must be a single JSON object,
// such as account or object info.
func DecodeObject[T any](status int, body []byte, accepted ...string) (*T, error) {
	env, err := DecodeEnvelope(status, body, accepted...)
	if err != nil {
		return nil, err
	}
	return ObjectData[T](status, env.Data)
}

// ObjectData decodes data as a single object.
func ObjectData[T any](status int, data json.RawMessage) (*T, error) {
	out, err := probeSingle[T](data)
	if err != nil {
		return nil, malformed(status, err, ShapeSingle.String())
	}
	return out, nil
}

// DecodeLogout accepts any answer that is not an explicit failure. An empty
// body counts as success; a non-empty one must be a JSON object whose code,
// if present, is a success sentinel and whose msg, if set, is accepted.
func DecodeLogout(status int, body []byte, accepted ...string) error {
	if status == StatusUnauthorized {
		return ErrUnauthorized
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if !isObject(trimmed) {
		return malformed(status, errors.New("body is not a JSON object"), "logout")
	}
	var raw rawEnvelope
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return malformed(status, err, "logout")
	}
	if raw.Success != nil && !IsSuccess(*raw.Success) {
		msg := ""
		if raw.Msg != nil {
			msg = *raw.Msg
		}
		return &APIError{Code: *raw.Success, Message: failureReason(msg, unknownError)}
	}
	if raw.Msg != nil && !acceptedMessage(*raw.Msg, accepted) {
		code := 0
		if raw.Success != nil {
			code = *raw.Success
		}
		return &APIError{Code: code, Message: *raw.Msg}
	}
	return nil
}

// ExtractData returns the data field of an envelope when the body is one,
// otherwise the body itself. Envelopes are validated against the success
// sentinel.
func ExtractData(status int, body []byte, accepted ...string) (json.RawMessage, error) {
	if status == StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if !json.Valid(trimmed) {
		return nil, malformed(status, errors.New("body is not valid JSON"), "json")
	}
	if !isObject(trimmed) {
		return append(json.RawMessage(nil), trimmed...), nil
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, malformed(status, err, "json")
	}
	if _, ok := probe["success"]; !ok {
		return append(json.RawMessage(nil), trimmed...), nil
	}
	env, err := DecodeEnvelope(status, trimmed, accepted...)
	if err != nil {
		return nil, err
	}
	if env.Data == nil {
		return append(json.RawMessage(nil), trimmed...), nil
	}
	return append(json.RawMessage(nil), env.Data...), nil
}

func parseEnvelope(status int, body []byte) (*rawEnvelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, malformed(status, errors.New("empty body"), "envelope")
	}
	if !isObject(trimmed) {
		return nil, malformed(status, errors.New("body is not a JSON object"), "envelope")
	}
	var raw rawEnvelope
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, malformed(status, err, "envelope")
	}
	return &raw, nil
}

func failureReason(msg, fallback string) string {
	if strings.TrimSpace(msg) != "" {
		return msg
	}
	return fallback
}

func isObject(b []byte) bool {
	return len(b) > 0 && b[0] == '{'
}

func isArray(b []byte) bool {
	return len(b) > 0 && b[0] == '['
}

func describe(b []byte) string {
	switch {
	case len(b) == 0:
		return "nothing"
	case b[0] == '{':
		return "object"
	case b[0] == '[':
		return "array"
	case b[0] == '"':
		return "string"
	case b[0] == 'n':
		return "null"
	case b[0] == 't' || b[0] == 'f':
		return "boolean"
	default:
		return fmt.Sprintf("token %q", string(b[:1]))
	}
}
