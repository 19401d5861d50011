package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient bases the helper on a copy of h. The caller's client is
// never modified.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			hc := *h
			c.httpClient = &hc
		}
	}
}

// WithHeaders assigns default headers added to every request.
func WithHeaders(h http.Header) Option {
	return func(c *Client) {
		for k, values := range h {
			for _, v := range values {
				c.headers.Add(k, v)
			}
		}
	}
}

// WithTimeout bounds every request issued by the client. Zero leaves the
// deadline to the request context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if strings.TrimSpace(ua) != "" {
			c.headers.Set("User-Agent", ua)
		}
	}
}

// WithLogger routes request tracing and resty diagnostics to l.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// Client issues single-shot HTTP requests. It never retries and always
// bypasses caches.
type Client struct {
	rest       *resty.Client
	httpClient *http.Client
	headers    http.Header
	timeout    time.Duration
	logger     zerolog.Logger
}

// Request describes a single outbound request.
type Request struct {
	Method  string
	BaseURL string
	Path    string
	Query   url.Values
	Header  http.Header
	Body    []byte
}

// Response carries the raw outcome of a request. Any HTTP status is a
// response; classifying it is the caller's job.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// NewClient creates a Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		headers:    make(http.Header),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.rest = resty.NewWithClient(c.httpClient).
		SetRetryCount(0).
		SetLogger(restyLogger{l: c.logger})
	if c.timeout > 0 {
		c.rest.SetTimeout(c.timeout)
	}
	return c
}

// Do executes the provided request exactly once.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, InvalidRequest("request is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(req.Method) == "" {
		return nil, InvalidRequest("HTTP method is required")
	}

	fullURL, err := BuildURL(req.BaseURL, req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	r := c.rest.R().SetContext(ctx)
	header := cloneHeader(c.headers)
	for k, values := range req.Header {
		header.Del(k)
		for _, v := range values {
			header.Add(k, v)
		}
	}
	setCacheBypass(header)
	for k, values := range header {
		for _, v := range values {
			r.Header.Add(k, v)
		}
	}
	if req.Body != nil {
		r.SetBody(req.Body)
	}

	start := time.Now()
	resp, err := r.Execute(req.Method, fullURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		c.logger.Debug().Err(err).Str("method", req.Method).Str("url", fullURL).Msg("httpx: request failed")
		return nil, newError(KindConnectionFailed, err)
	}
	if resp == nil || resp.RawResponse == nil {
		return nil, newError(KindInvalidResponse, errors.New("no HTTP response metadata"))
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("url", fullURL).
		Int("status", resp.StatusCode()).
		Dur("elapsed", time.Since(start)).
		Msg("httpx: request done")

	return &Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header().Clone(),
		Body:       append([]byte(nil), resp.Body()...),
	}, nil
}

// BuildURL appends path to the path of baseURL. Unlike URL reference
// resolution, a base path such as "/api" is preserved.
func BuildURL(baseURL, path string, q url.Values) (string, error) {
	if strings.TrimSpace(baseURL) == "" {
		return "", InvalidRequest("base URL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", newError(KindInvalidRequest, fmt.Errorf("invalid base URL: %w", err))
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", InvalidRequest("unsupported URL scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", InvalidRequest("base URL %q has no host", baseURL)
	}
	if path != "" {
		parsed.Path = strings.TrimRight(parsed.Path, "/") + "/" + strings.TrimLeft(path, "/")
	}
	if len(q) > 0 {
		parsed.RawQuery = q.Encode()
	}
	return parsed.String(), nil
}

// EncodeJSON serializes v without HTML escaping and without the trailing
// newline added by json.Encoder.
func EncodeJSON(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// setCacheBypass marks the request as uncacheable. It runs after caller
// headers are merged so they cannot override it.
func setCacheBypass(h http.Header) {
	h.Set("Cache-Control", "no-cache, no-store, max-age=0")
	h.Set("Pragma", "no-cache")
}

func cloneHeader(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for k, values := range src {
		vCopy := make([]string, len(values))
		copy(vCopy, values)
		dst[k] = vCopy
	}
	return dst
}

type restyLogger struct {
	l zerolog.Logger
}

func (r restyLogger) Errorf(format string, v ...interface{}) {
	r.l.Error().Msgf(strings.TrimSpace(format), v...)
}

func (r restyLogger) Warnf(format string, v ...interface{}) {
	r.l.Warn().Msgf(strings.TrimSpace(format), v...)
}

func (r restyLogger) Debugf(format string, v ...interface{}) {
	r.l.Debug().Msgf(strings.TrimSpace(format), v...)
}
