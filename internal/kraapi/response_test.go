package kraapi

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testFile struct {
	Ident  string `json:"ident"`
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	Folder bool   `json:"folder"`
	Link   string `json:"link"`
}

type testLink struct {
	Link string `json:"link"`
}

func TestDecodeLogin(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		token   string
		message string
		code    int
	}{
		{
			name:   "session issued",
			status: http.StatusOK,
			body:   `{"session_id":"abc123","success":1,"msg":"Login successful"}`,
			token:  "abc123",
		},
		{
			name:    "invalid credentials",
			status:  http.StatusOK,
			body:    `{"session_id":null,"success":0,"msg":"Invalid credentials"}`,
			message: "Invalid credentials",
		},
		{
			name:    "no session and no message",
			status:  http.StatusOK,
			body:    `{"success":0}`,
			message: "unknown error",
		},
		{
			name:    "empty session id",
			status:  http.StatusOK,
			body:    `{"session_id":"","success":3,"msg":""}`,
			message: "unknown error",
			code:    3,
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			token, err := DecodeLogin(tc.status, []byte(tc.body))
			if tc.token != "" {
				require.NoError(t, err)
				assert.Equal(t, tc.token, token)
				return
			}
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), "got %v", err)
			assert.Equal(t, tc.message, apiErr.Message)
			assert.Equal(t, tc.code, apiErr.Code)
			assert.Empty(t, token)
		})
	}
}

func TestDecodeLoginMalformed(t *testing.T) {
	for _, body := range []string{``, `[]`, `"abc"`, `{"session_id":5}`, `{`} {
		_, err := DecodeLogin(http.StatusOK, []byte(body))
		assert.ErrorIs(t, err, ErrMalformedResponse, "body %q", body)
	}
}

func TestUnauthorizedWinsOverBody(t *testing.T) {
	okLogin := []byte(`{"session_id":"abc123","success":1}`)
	okList := []byte(`{"data":[{"link":"https://x/f1"}],"success":1}`)
	garbage := []byte(`<html>nope</html>`)

	_, err := DecodeLogin(http.StatusUnauthorized, okLogin)
	assert.ErrorIs(t, err, ErrUnauthorized)

	for _, body := range [][]byte{okList, garbage, nil} {
		_, err = DecodePayload[testFile, testLink](http.StatusUnauthorized, body)
		assert.ErrorIs(t, err, ErrUnauthorized)
		_, err = DecodeObject[testFile](http.StatusUnauthorized, body)
		assert.ErrorIs(t, err, ErrUnauthorized)
		_, err = ExtractData(http.StatusUnauthorized, body)
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.ErrorIs(t, DecodeLogout(http.StatusUnauthorized, body), ErrUnauthorized)
	}
}

func TestDecodePayloadList(t *testing.T) {
	body := []byte(`{"data":[{"link":"https://x/f1"},{"link":"https://x/f2"}],"success":1}`)
	payload, err := DecodePayload[testFile, testLink](http.StatusOK, body)
	require.NoError(t, err)
	require.Equal(t, ShapeList, payload.Shape)
	require.Len(t, payload.List, 2)
	assert.Equal(t, "https://x/f1", payload.List[0].Link)
	assert.Equal(t, "https://x/f2", payload.List[1].Link)
	assert.Nil(t, payload.Single)
}

func TestDecodePayloadEmptyList(t *testing.T) {
	payload, err := DecodePayload[testFile, testLink](http.StatusOK, []byte(`{"data":[],"success":1}`))
	require.NoError(t, err)
	assert.Equal(t, ShapeList, payload.Shape)
	assert.NotNil(t, payload.List)
	assert.Empty(t, payload.List)
}

func TestDecodePayloadListKeepsOrder(t *testing.T) {
	body := []byte(`{"success":201,"data":[
		{"ident":"c","name":"zeta","size":3},
		{"ident":"a","name":"alpha","size":1,"folder":true},
		{"ident":"b","name":"beta","size":2}
	]}`)
	payload, err := DecodePayload[testFile, testLink](http.StatusOK, body)
	require.NoError(t, err)
	var idents []string
	for _, f := range payload.List {
		idents = append(idents, f.Ident)
	}
	assert.Equal(t, []string{"c", "a", "b"}, idents)
	assert.True(t, payload.List[1].Folder)
}

func TestDecodePayloadSingle(t *testing.T) {
	payload, err := DecodePayload[testFile, testLink](http.StatusOK, []byte(`{"data":{"link":"https://x/one"},"success":1}`))
	require.NoError(t, err)
	require.Equal(t, ShapeSingle, payload.Shape)
	require.NotNil(t, payload.Single)
	assert.Equal(t, "https://x/one", payload.Single.Link)
	assert.Nil(t, payload.List)
	assert.JSONEq(t, `{"link":"https://x/one"}`, string(payload.Raw))
}

func TestDecodePayloadEmpty(t *testing.T) {
	payload, err := DecodePayload[testFile, testLink](http.StatusOK, []byte(`{"success":2011,"msg":"done"}`), "done")
	require.NoError(t, err)
	assert.Equal(t, ShapeEmpty, payload.Shape)
	assert.Nil(t, payload.List)
	assert.Nil(t, payload.Single)
}

func TestDecodePayloadNeitherShape(t *testing.T) {
	tests := map[string]string{
		"null":             `{"data":null,"success":1}`,
		"string":           `{"data":"https://x/one","success":1}`,
		"number":           `{"data":42,"success":1}`,
		"boolean":          `{"data":true,"success":1}`,
		"array of strings": `{"data":["a","b"],"success":1}`,
		"array with null":  `{"data":[{"link":"a"},null],"success":1}`,
		"wrong field type": `{"data":{"link":5},"success":1}`,
		"bad element type": `{"data":[{"size":"big"}],"success":1}`,
	}
	for name, body := range tests {
		body := body
		t.Run(name, func(t *testing.T) {
			_, err := DecodePayload[testFile, testLink](http.StatusOK, []byte(body))
			require.ErrorIs(t, err, ErrMalformedResponse)
			var mErr *MalformedResponseError
			require.True(t, errors.As(err, &mErr))
			assert.Equal(t, []string{"list", "single"}, mErr.Shapes)
			assert.Equal(t, http.StatusOK, mErr.StatusCode)
			assert.Contains(t, mErr.Error(), "tried list, single")
		})
	}
}

func TestDecodePayloadApplicationFailure(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		code    int
		message string
	}{
		{name: "failure code with message", status: http.StatusOK, body: `{"success":0,"msg":"Folder not found"}`, code: 0, message: "Folder not found"},
		{name: "unknown code", status: http.StatusOK, body: `{"success":500,"data":[]}`, code: 500, message: "unknown error"},
		{name: "failure ignores malformed data", status: http.StatusOK, body: `{"success":0,"msg":"nope","data":"x"}`, code: 0, message: "nope"},
		{name: "missing success", status: http.StatusOK, body: `{"data":[]}`, code: 0, message: "missing success code"},
		{name: "failure on server error status", status: http.StatusInternalServerError, body: `{"success":0,"msg":"boom"}`, code: 0, message: "boom"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodePayload[testFile, testLink](tc.status, []byte(tc.body))
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), "got %v", err)
			assert.Equal(t, tc.code, apiErr.Code)
			assert.Equal(t, tc.message, apiErr.Message)
		})
	}
}

func TestDecodeEnvelopeContradictingMessageFails(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
		msg  string
	}{
		{name: "session expired", body: `{"success":1,"msg":"Session expired, please log in","data":[]}`, code: 1, msg: "Session expired, please log in"},
		{name: "created code", body: `{"success":201,"msg":"File not found","data":{"link":"https://x/one"}}`, code: 201, msg: "File not found"},
		{name: "2011 code", body: `{"success":2011,"msg":"Quota exceeded"}`, code: 2011, msg: "Quota exceeded"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeEnvelope(http.StatusOK, []byte(tc.body))
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), "got %v", err)
			assert.Equal(t, tc.code, apiErr.Code)
			assert.Equal(t, tc.msg, apiErr.Message)

			_, err = DecodePayload[testFile, testLink](http.StatusOK, []byte(tc.body))
			assert.True(t, errors.As(err, &apiErr), "got %v", err)
		})
	}
}

func TestDecodeEnvelopeAcceptedMessages(t *testing.T) {
	env, err := DecodeEnvelope(http.StatusOK, []byte(`{"success":1,"msg":"  "}`))
	require.NoError(t, err)
	assert.Nil(t, env.Data)

	env, err = DecodeEnvelope(http.StatusOK, []byte(`{"success":1,"msg":"logged out successfully"}`), "Logged out successfully")
	require.NoError(t, err)
	assert.Equal(t, "logged out successfully", env.Msg)

	_, err = DecodeEnvelope(http.StatusOK, []byte(`{"success":1,"msg":"Logged out"}`), "Logged out successfully")
	var apiErr *APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestDecodeEnvelopeNonJSONBody(t *testing.T) {
	_, err := DecodeEnvelope(http.StatusBadGateway, []byte("<html>bad gateway</html>"))
	var mErr *MalformedResponseError
	require.True(t, errors.As(err, &mErr))
	assert.Equal(t, http.StatusBadGateway, mErr.StatusCode)
	assert.Equal(t, []string{"envelope"}, mErr.Shapes)
}

func TestDecodeIsIdempotent(t *testing.T) {
	bodies := []string{
		`{"data":[{"link":"https://x/f1"},{"link":"https://x/f2"}],"success":1}`,
		`{"data":{"link":"https://x/one"},"success":1}`,
		`{"data":null,"success":1}`,
		`{"success":0,"msg":"x"}`,
	}
	for _, body := range bodies {
		first, err1 := DecodePayload[testFile, testLink](http.StatusOK, []byte(body))
		second, err2 := DecodePayload[testFile, testLink](http.StatusOK, []byte(body))
		assert.Equal(t, first, second, body)
		assert.Equal(t, err1, err2, body)
	}
}

func TestDecodeObject(t *testing.T) {
	f, err := DecodeObject[testFile](http.StatusOK, []byte(`{"data":{"ident":"abc","name":"doc.pdf","size":12},"success":1}`))
	require.NoError(t, err)
	assert.Equal(t, testFile{Ident: "abc", Name: "doc.pdf", Size: 12}, *f)

	_, err = DecodeObject[testFile](http.StatusOK, []byte(`{"success":1}`))
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = DecodeObject[testFile](http.StatusOK, []byte(`{"data":[{"ident":"abc"}],"success":1}`))
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestDecodeLogout(t *testing.T) {
	assert.NoError(t, DecodeLogout(http.StatusOK, nil))
	assert.NoError(t, DecodeLogout(http.StatusOK, []byte(`{"success":1}`)))
	assert.NoError(t, DecodeLogout(http.StatusOK, []byte(`{"success":1,"msg":"bye"}`), "bye"))
	assert.NoError(t, DecodeLogout(http.StatusOK, []byte(`{"msg":""}`)))

	err := DecodeLogout(http.StatusOK, []byte(`{"success":1,"msg":"Session not found"}`), "bye")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 1, apiErr.Code)
	assert.Equal(t, "Session not found", apiErr.Message)
	assert.ErrorIs(t, DecodeLogout(http.StatusOK, []byte(`bye`)), ErrMalformedResponse)

	err = DecodeLogout(http.StatusOK, []byte(`{"success":0,"msg":"Not logged in"}`))
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Not logged in", apiErr.Message)
}

func TestExtractData(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{name: "envelope data", body: `{"success":1,"data":{"version":"2.1"}}`, expected: `{"version":"2.1"}`},
		{name: "envelope without data", body: `{"success":1}`, expected: `{"success":1}`},
		{name: "plain object", body: `{"version":"2.1"}`, expected: `{"version":"2.1"}`},
		{name: "plain string", body: `"2.1"`, expected: `"2.1"`},
		{name: "empty body", body: ``, expected: ``},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractData(http.StatusOK, []byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.expected, string(got))
		})
	}

	_, err := ExtractData(http.StatusOK, []byte(`{"success":0,"msg":"down"}`))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))

	_, err = ExtractData(http.StatusOK, []byte(`{"success":1,"msg":"Maintenance","data":"2.1"}`))
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Maintenance", apiErr.Message)

	_, err = ExtractData(http.StatusOK, []byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestProbeOrderIsListFirst(t *testing.T) {
	assert.Equal(t, []Shape{ShapeList, ShapeSingle}, ProbeOrder())
	order := ProbeOrder()
	order[0] = ShapeSingle
	assert.Equal(t, ShapeList, ProbeOrder()[0], "ProbeOrder must return a copy")
}

func TestIsSuccess(t *testing.T) {
	for _, code := range []int{1, 201, 2011} {
		assert.True(t, IsSuccess(code), code)
	}
	for _, code := range []int{0, -1, 2, 200, 401, 2010} {
		assert.False(t, IsSuccess(code), code)
	}
}
