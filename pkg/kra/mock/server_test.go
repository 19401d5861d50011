package mock_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlabs/kra_sdk_go/internal/devseed"
	"github.com/mlabs/kra_sdk_go/pkg/kra"
	"github.com/mlabs/kra_sdk_go/pkg/kra/mock"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id%d", n)
	}
}

func newFixture(t *testing.T, opts ...mock.Option) (*mock.Server, *kra.Client) {
	t.Helper()
	opts = append([]mock.Option{
		mock.WithIDGenerator(sequentialIDs()),
		mock.WithClock(func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }),
	}, opts...)
	srv := mock.New(opts...)
	days := 12
	require.NoError(t, srv.Seed(&devseed.Seed{
		Users: []devseed.User{{Username: "alice", Password: "secret", Email: "alice@example.com", DaysLeft: &days}},
		Objects: []devseed.Object{
			{Ident: "docs", Owner: "alice", Name: "Documents", Folder: true},
			{Ident: "f1", Owner: "alice", Name: "report.pdf", Parent: "docs", Size: 2048},
			{Ident: "f2", Owner: "alice", Name: "notes.txt", Size: 10},
		},
	}))
	return srv, kra.NewWithTransport(mock.NewTransport(srv))
}

func login(t *testing.T, c *kra.Client) string {
	t.Helper()
	token, err := c.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	return token
}

func TestLoginAndUserInfo(t *testing.T) {
	_, c := newFixture(t)
	ctx := context.Background()

	_, err := c.Login(ctx, "alice", "wrong")
	var apiErr *kra.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid credentials", apiErr.Message)

	token := login(t, c)
	info, err := c.UserInfo(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", info.Username)
	assert.Equal(t, "12", info.VIPDays())
	assert.EqualValues(t, 3, info.Objects)
	assert.EqualValues(t, 2058, info.Bytes)
}

func TestListFiles(t *testing.T) {
	_, c := newFixture(t)
	token := login(t, c)
	ctx := context.Background()

	root, err := c.ListFiles(ctx, token, "")
	require.NoError(t, err)
	require.Len(t, root, 2)
	assert.Equal(t, "Documents", root[0].Name)
	assert.True(t, root[0].Folder)
	assert.Equal(t, "notes.txt", root[1].Name)

	docs, err := c.ListFiles(ctx, token, "docs")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "report.pdf", docs[0].Name)

	_, err = c.ListFiles(ctx, token, "f1")
	assert.Error(t, err)
}

func TestListFilesCollapsedSingleton(t *testing.T) {
	_, c := newFixture(t, mock.WithSingletonObjects())
	token := login(t, c)

	docs, err := c.ListFiles(context.Background(), token, "docs")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "f1", docs[0].Ident)
}

func TestFileLink(t *testing.T) {
	_, c := newFixture(t, mock.WithLinkBase("https://dl.example.com/"))
	token := login(t, c)
	ctx := context.Background()

	link, err := c.FileLink(ctx, token, "f1")
	require.NoError(t, err)
	assert.Equal(t, "https://dl.example.com/f1/report.pdf", link.URL)

	_, err = c.FileLink(ctx, token, "docs")
	var apiErr *kra.APIError
	assert.ErrorAs(t, err, &apiErr)
}

func TestCreateAndDelete(t *testing.T) {
	srv, c := newFixture(t)
	token := login(t, c)
	ctx := context.Background()

	folder, err := c.CreateFolder(ctx, token, "Music", "", true)
	require.NoError(t, err)
	assert.NotEmpty(t, folder.Ident)
	assert.True(t, folder.Folder)
	assert.True(t, folder.Shared)
	assert.Equal(t, "2024-03-01 12:00:00", folder.Created)

	_, err = c.CreateFolder(ctx, token, "Music", "", false)
	assert.Error(t, err)

	srv.AddFile("alice", folder.Ident, "song.mp3", 100)

	err = c.DeleteObject(ctx, token, folder.Ident, false)
	var apiErr *kra.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Folder is not empty", apiErr.Message)

	require.NoError(t, c.DeleteObject(ctx, token, folder.Ident, true))
	_, err = c.ObjectInfo(ctx, token, folder.Ident)
	assert.ErrorAs(t, err, &apiErr)
}

func TestObjectInfoAndVersion(t *testing.T) {
	_, c := newFixture(t)
	token := login(t, c)
	ctx := context.Background()

	f, err := c.ObjectInfo(ctx, token, "f2")
	require.NoError(t, err)
	assert.EqualValues(t, 10, f.Size)

	v, err := c.Version(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"`+mock.Version+`"}`, string(v))
}

func TestExpiredSessionIsUnauthorized(t *testing.T) {
	srv, c := newFixture(t)
	token := login(t, c)
	srv.ExpireSession(token)

	_, err := c.ListFiles(context.Background(), token, "")
	assert.ErrorIs(t, err, kra.ErrUnauthorized)
}

func TestLogoutEndsSession(t *testing.T) {
	srv, c := newFixture(t)
	token := login(t, c)
	require.Equal(t, 1, srv.SessionCount())

	require.NoError(t, c.Logout(context.Background(), token))
	assert.Equal(t, 0, srv.SessionCount())

	_, err := c.UserInfo(context.Background(), token)
	assert.ErrorIs(t, err, kra.ErrUnauthorized)
}

func TestServerOverHTTP(t *testing.T) {
	srv, _ := newFixture(t)
	ts := httptest.NewServer(http.StripPrefix("/api", srv))
	defer ts.Close()

	c, err := kra.New(kra.WithBaseURL(ts.URL + "/api"))
	require.NoError(t, err)
	token := login(t, c)

	files, err := c.ListFiles(context.Background(), token, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	resp, err := http.Post(ts.URL+"/api/nope", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSeedRejectsInvalidObjects(t *testing.T) {
	srv := mock.New()
	err := srv.Seed(&devseed.Seed{Objects: []devseed.Object{{Owner: "ghost", Name: "x"}}})
	assert.Error(t, err)
	assert.NoError(t, srv.Seed(nil))
}

func TestAddSession(t *testing.T) {
	srv, c := newFixture(t)
	assert.Error(t, srv.AddSession("tok", "ghost"))
	require.NoError(t, srv.AddSession("tok", "alice"))

	info, err := c.UserInfo(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "alice", info.Username)
}
