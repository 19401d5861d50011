package kra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mlabs/kra_sdk_go/internal/httpx"
	"github.com/mlabs/kra_sdk_go/internal/kraapi"
)

// Transport executes one request and returns the raw response. *httpx.Client
// satisfies it; tests substitute doubles that perform no I/O.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Option configures a Client.
type Option func(*config)

type config struct {
	apiURL         string
	uploadURL      string
	onUnauthorized func(Operation)
	logger         zerolog.Logger
	httpOpts       []httpx.Option
}

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(u string) Option {
	return func(c *config) {
		c.apiURL = strings.TrimSpace(u)
	}
}

// WithUploadURL overrides DefaultUploadURL.
func WithUploadURL(u string) Option {
	return func(c *config) {
		c.uploadURL = strings.TrimSpace(u)
	}
}

// WithUnauthorizedHook registers fn to be called once for every call that
// ends in ErrUnauthorized. The client never re-authenticates by itself.
func WithUnauthorizedHook(fn func(Operation)) Option {
	return func(c *config) {
		c.onUnauthorized = fn
	}
}

// WithLogger sets the logger used for per-call debug events.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) {
		c.logger = l
		c.httpOpts = append(c.httpOpts, httpx.WithLogger(l))
	}
}

// WithHTTPClient sets the underlying HTTP client. Ignored by
// NewWithTransport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *config) {
		c.httpOpts = append(c.httpOpts, httpx.WithHTTPClient(h))
	}
}

// WithTimeout bounds each request. Ignored by NewWithTransport.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.httpOpts = append(c.httpOpts, httpx.WithTimeout(d))
	}
}

// WithHeaders adds headers to every request. Ignored by NewWithTransport.
func WithHeaders(h http.Header) Option {
	return func(c *config) {
		c.httpOpts = append(c.httpOpts, httpx.WithHeaders(h))
	}
}

// Client provides access to the Kra API. It holds no session state and is
// safe for concurrent use.
type Client struct {
	transport      Transport
	apiURL         string
	uploadURL      string
	onUnauthorized func(Operation)
	logger         zerolog.Logger
}

// New constructs an HTTP-backed client.
func New(opts ...Option) (*Client, error) {
	cfg := newConfig(opts)
	for _, u := range []string{cfg.apiURL, cfg.uploadURL} {
		if err := validateBaseURL(u); err != nil {
			return nil, err
		}
	}
	return newClient(httpx.NewClient(cfg.httpOpts...), cfg), nil
}

// NewWithHTTPClient wraps an existing httpx.Client.
func NewWithHTTPClient(httpClient *httpx.Client, opts ...Option) *Client {
	return newClient(httpClient, newConfig(opts))
}

// NewWithTransport allows callers to supply a custom transport (e.g., mocks).
func NewWithTransport(t Transport, opts ...Option) *Client {
	return newClient(t, newConfig(opts))
}

func newConfig(opts []Option) *config {
	cfg := &config{
		apiURL:    DefaultBaseURL,
		uploadURL: DefaultUploadURL,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

func newClient(t Transport, cfg *config) *Client {
	return &Client{
		transport:      t,
		apiURL:         cfg.apiURL,
		uploadURL:      cfg.uploadURL,
		onUnauthorized: cfg.onUnauthorized,
		logger:         cfg.logger,
	}
}

func validateBaseURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("kra: invalid base URL %q: %w", raw, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("kra: invalid base URL %q", raw)
	}
	return nil
}

// Login authenticates and returns a session token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return "", httpx.InvalidRequest("username and password are required")
	}
	resp, err := c.send(ctx, LoginTarget(username, password))
	if err != nil {
		return "", err
	}
	token, err := kraapi.DecodeLogin(resp.StatusCode, resp.Body)
	return token, c.observe(OpLogin, err)
}

// UserInfo fetches account and quota information.
func (c *Client) UserInfo(ctx context.Context, sessionID string) (*UserInfo, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, UserInfoTarget(sessionID))
	if err != nil {
		return nil, err
	}
	info, err := kraapi.DecodeObject[UserInfo](resp.StatusCode, resp.Body, OpUserInfo.SuccessMessages()...)
	return info, c.observe(OpUserInfo, err)
}

// ListFiles lists folderIdent, or the root folder when folderIdent is empty.
// Entries keep the server order. A single-object answer is returned as a
// one-element list.
func (c *Client) ListFiles(ctx context.Context, sessionID, folderIdent string) ([]File, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, ListFilesTarget(sessionID, folderIdent))
	if err != nil {
		return nil, err
	}
	payload, err := kraapi.DecodePayload[File, File](resp.StatusCode, resp.Body, OpListFiles.SuccessMessages()...)
	if err != nil {
		return nil, c.observe(OpListFiles, err)
	}
	switch payload.Shape {
	case kraapi.ShapeList:
		return payload.List, nil
	case kraapi.ShapeSingle:
		return []File{*payload.Single}, nil
	default:
		return []File{}, nil
	}
}

// FileLink returns a download link for a single file.
func (c *Client) FileLink(ctx context.Context, sessionID, fileIdent string) (*Link, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	if err := requireIdent(fileIdent); err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, DownloadLinkTarget(sessionID, fileIdent))
	if err != nil {
		return nil, err
	}
	payload, err := kraapi.DecodePayload[File, Link](resp.StatusCode, resp.Body, OpDownloadLink.SuccessMessages()...)
	if err != nil {
		return nil, c.observe(OpDownloadLink, err)
	}
	if payload.Shape != kraapi.ShapeSingle {
		return nil, &MalformedResponseError{
			Shapes:     []string{kraapi.ShapeSingle.String()},
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("expected a single link, got %s", payload.Shape),
		}
	}
	if strings.TrimSpace(payload.Single.URL) == "" {
		return nil, &MalformedResponseError{
			Shapes:     []string{kraapi.ShapeSingle.String()},
			StatusCode: resp.StatusCode,
			Err:        errors.New("link is empty"),
		}
	}
	return payload.Single, nil
}

// CreateFolder creates a folder under parentIdent, or under the root when it
// is empty. When the server does not echo the new object, the returned File
// only carries the requested attributes.
func (c *Client) CreateFolder(ctx context.Context, sessionID, name, parentIdent string, shared bool) (*File, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, httpx.InvalidRequest("folder name is required")
	}
	resp, err := c.send(ctx, CreateFolderTarget(sessionID, name, parentIdent, shared))
	if err != nil {
		return nil, err
	}
	env, err := kraapi.DecodeEnvelope(resp.StatusCode, resp.Body, OpCreateFolder.SuccessMessages()...)
	if err != nil {
		return nil, c.observe(OpCreateFolder, err)
	}
	if env.Data == nil {
		return &File{Name: name, Folder: true, Shared: shared}, nil
	}
	return kraapi.ObjectData[File](resp.StatusCode, env.Data)
}

// DeleteObject removes a file or folder. Non-empty folders require recursive.
func (c *Client) DeleteObject(ctx context.Context, sessionID, ident string, recursive bool) error {
	if err := requireSession(sessionID); err != nil {
		return err
	}
	if err := requireIdent(ident); err != nil {
		return err
	}
	resp, err := c.send(ctx, DeleteObjectTarget(sessionID, ident, recursive))
	if err != nil {
		return err
	}
	_, err = kraapi.DecodeEnvelope(resp.StatusCode, resp.Body, OpDeleteObject.SuccessMessages()...)
	return c.observe(OpDeleteObject, err)
}

// ObjectInfo describes a single file or folder.
func (c *Client) ObjectInfo(ctx context.Context, sessionID, ident string) (*File, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	if err := requireIdent(ident); err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, ObjectInfoTarget(sessionID, ident))
	if err != nil {
		return nil, err
	}
	f, err := kraapi.DecodeObject[File](resp.StatusCode, resp.Body, OpObjectInfo.SuccessMessages()...)
	return f, c.observe(OpObjectInfo, err)
}

// Version returns the version document published by the API.
func (c *Client) Version(ctx context.Context) (json.RawMessage, error) {
	resp, err := c.send(ctx, VersionTarget())
	if err != nil {
		return nil, err
	}
	data, err := kraapi.ExtractData(resp.StatusCode, resp.Body, OpVersion.SuccessMessages()...)
	return data, c.observe(OpVersion, err)
}

// Logout invalidates the session. Any answer that is not an explicit
// failure counts as success.
func (c *Client) Logout(ctx context.Context, sessionID string) error {
	if err := requireSession(sessionID); err != nil {
		return err
	}
	resp, err := c.send(ctx, LogoutTarget(sessionID))
	if err != nil {
		return err
	}
	return c.observe(OpLogout, kraapi.DecodeLogout(resp.StatusCode, resp.Body, OpLogout.SuccessMessages()...))
}

// UploadFile is not supported by the client yet and always returns
// ErrNotImplemented without contacting the server.
func (c *Client) UploadFile(ctx context.Context, sessionID, filename, folderIdent string, shared bool, chunkMB int) error {
	if c == nil {
		return fmt.Errorf("kra: client is nil")
	}
	_, err := UploadFileTarget(sessionID, filename, folderIdent, shared, chunkMB).Request(c.apiURL, c.uploadURL)
	if err == nil {
		err = ErrNotImplemented
	}
	return err
}

func (c *Client) send(ctx context.Context, target Target) (*Response, error) {
	if c == nil || c.transport == nil {
		return nil, fmt.Errorf("kra: client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := target.Request(c.apiURL, c.uploadURL)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.transport.Do(ctx, req)
	event := c.logger.Debug().Str("op", target.Op.String()).Dur("elapsed", time.Since(start))
	if err != nil {
		var te *TransportError
		if !errors.As(err, &te) {
			err = &TransportError{Kind: KindConnectionFailed, Err: err}
		}
		event.Err(err).Msg("kra: call failed")
		return nil, err
	}
	if resp == nil {
		err = &TransportError{Kind: KindInvalidResponse, Err: errors.New("transport returned no response")}
		event.Err(err).Msg("kra: call failed")
		return nil, err
	}
	event.Int("status", resp.StatusCode).Msg("kra: call done")
	return resp, nil
}

// observe notifies the unauthorized hook and passes err through.
func (c *Client) observe(op Operation, err error) error {
	if err != nil && errors.Is(err, ErrUnauthorized) {
		c.logger.Debug().Str("op", op.String()).Msg("kra: session rejected")
		if c.onUnauthorized != nil {
			c.onUnauthorized(op)
		}
	}
	return err
}

func requireSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return httpx.InvalidRequest("session id is required")
	}
	return nil
}

func requireIdent(ident string) error {
	if strings.TrimSpace(ident) == "" {
		return httpx.InvalidRequest("ident is required")
	}
	return nil
}
