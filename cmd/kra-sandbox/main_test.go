package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlabs/kra_sdk_go/pkg/kra"
	"github.com/mlabs/kra_sdk_go/pkg/kra/mock"
)

func TestParseFailConfig(t *testing.T) {
	cfg, err := parseFailConfig("")
	require.NoError(t, err)
	assert.Empty(t, cfg.rules)

	cfg, err = parseFailConfig("rate=0.25, code=401")
	require.NoError(t, err)
	require.Len(t, cfg.rules, 1)
	assert.Equal(t, failRule{rate: 0.25, reply: replyStatus, code: 401}, cfg.rules[0])

	cfg, err = parseFailConfig("path=/api/file/list,reply=contradict,msg=Session expired; path=/user/,code=503")
	require.NoError(t, err)
	require.Len(t, cfg.rules, 2)
	assert.Equal(t, failRule{path: "/file/list", rate: 1, reply: replyContradict, code: http.StatusInternalServerError, msg: "Session expired"}, cfg.rules[0])
	assert.Equal(t, "/user/", cfg.rules[1].path)
	assert.Equal(t, http.StatusServiceUnavailable, cfg.rules[1].code)

	for _, raw := range []string{"rate", "rate=x", "rate=2", "code=abc", "code=200", "color=red", "path=file/list", "reply=teapot"} {
		_, err := parseFailConfig(raw)
		assert.Error(t, err, raw)
	}
}

func TestFailRuleMatches(t *testing.T) {
	assert.True(t, failRule{}.matches("/version"))
	assert.True(t, failRule{path: "/file/list"}.matches("/file/list"))
	assert.False(t, failRule{path: "/file/list"}.matches("/file/listing"))
	assert.True(t, failRule{path: "/file/"}.matches("/file/delete"))
	assert.False(t, failRule{path: "/file/"}.matches("/user/info"))
}

func newSandbox(t *testing.T, delay time.Duration, cfg failConfig) (*mock.Server, *kra.Client) {
	t.Helper()
	srv := mock.New()
	srv.AddUser("alice", "secret")
	ts := httptest.NewServer(newRouter(srv, delay, cfg, zerolog.Nop()))
	t.Cleanup(ts.Close)

	c, err := kra.New(kra.WithBaseURL(ts.URL + "/api"))
	require.NoError(t, err)
	return srv, c
}

func TestSandboxServesAPI(t *testing.T) {
	_, c := newSandbox(t, 0, failConfig{})
	token, err := c.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)

	files, err := c.ListFiles(context.Background(), token, "")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func alwaysFire() float64 { return 0 }

func TestInjectedUnauthorized(t *testing.T) {
	_, c := newSandbox(t, 0, failConfig{rules: []failRule{{rate: 1, reply: replyStatus, code: http.StatusUnauthorized}}, roll: alwaysFire})
	_, err := c.Login(context.Background(), "alice", "secret")
	assert.ErrorIs(t, err, kra.ErrUnauthorized)
}

func TestInjectedServerError(t *testing.T) {
	cfg, err := parseFailConfig("rate=0.5")
	require.NoError(t, err)
	cfg.roll = func() float64 { return 0.1 }
	_, c := newSandbox(t, 0, cfg)
	_, err = c.Version(context.Background())
	var malformed *kra.MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, http.StatusInternalServerError, malformed.StatusCode)
}

func TestInjectedFailureTargetsPath(t *testing.T) {
	cfg, err := parseFailConfig("path=/file/list,reply=contradict,msg=Session expired")
	require.NoError(t, err)
	_, c := newSandbox(t, 0, cfg)
	ctx := context.Background()

	token, err := c.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	_, err = c.UserInfo(ctx, token)
	require.NoError(t, err)

	_, err = c.ListFiles(ctx, token, "")
	var apiErr *kra.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 1, apiErr.Code)
	assert.Equal(t, "Session expired", apiErr.Message)
}

func TestInjectedReplies(t *testing.T) {
	cfg, err := parseFailConfig("path=/version,reply=envelope,msg=Maintenance; path=/file/,reply=garbage")
	require.NoError(t, err)
	_, c := newSandbox(t, 0, cfg)
	ctx := context.Background()

	_, err = c.Version(ctx)
	var apiErr *kra.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Maintenance", apiErr.Message)

	_, err = c.ObjectInfo(ctx, "tok", "f1")
	assert.ErrorIs(t, err, kra.ErrMalformedResponse)
}

func TestHealthzIsNeverFailed(t *testing.T) {
	h := newRouter(mock.New(), 0, failConfig{rules: []failRule{{rate: 1, reply: replyStatus, code: http.StatusServiceUnavailable}}, roll: alwaysFire}, zerolog.Nop())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLatencyHonoursDeadline(t *testing.T) {
	_, c := newSandbox(t, time.Second, failConfig{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Version(ctx)
	var te *kra.TransportError
	require.ErrorAs(t, err, &te)
	assert.True(t, te.Canceled())
}
