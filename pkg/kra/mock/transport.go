package mock

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/mlabs/kra_sdk_go/internal/httpx"
	"github.com/mlabs/kra_sdk_go/pkg/kra"
)

// HandlerTransport serves kra requests straight from an http.Handler using a
// response recorder. Only the request path is routed; base URLs are ignored.
type HandlerTransport struct {
	Handler http.Handler
}

// NewTransport returns a transport backed by s.
func NewTransport(s *Server) *HandlerTransport {
	return &HandlerTransport{Handler: s}
}

// Do implements kra.Transport.
func (t *HandlerTransport) Do(ctx context.Context, req *kra.Request) (*kra.Response, error) {
	if t == nil || t.Handler == nil {
		return nil, &kra.TransportError{Kind: kra.KindInvalidRequest, Err: errors.New("mock transport has no handler")}
	}
	if req == nil {
		return nil, httpx.InvalidRequest("request is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, &kra.TransportError{Kind: kra.KindConnectionFailed, Err: err}
	}

	target := req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}
	httpReq := httptest.NewRequest(req.Method, target, bytes.NewReader(req.Body)).WithContext(ctx)
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}

	rec := httptest.NewRecorder()
	t.Handler.ServeHTTP(rec, httpReq)
	result := rec.Result()
	defer result.Body.Close()

	return &kra.Response{
		StatusCode: result.StatusCode,
		Header:     result.Header.Clone(),
		Body:       rec.Body.Bytes(),
	}, nil
}

// Reply is one canned answer of a Stub.
type Reply struct {
	Status int
	Body   string
	Err    error
}

// Stub answers requests with queued replies and records every request it
// receives. When the queue is exhausted the last reply repeats.
type Stub struct {
	mu       sync.Mutex
	replies  []Reply
	requests []*kra.Request
}

// NewStub returns a stub that answers with replies in order.
func NewStub(replies ...Reply) *Stub {
	return &Stub{replies: replies}
}

// Do implements kra.Transport.
func (s *Stub) Do(ctx context.Context, req *kra.Request) (*kra.Response, error) {
	if req == nil {
		return nil, httpx.InvalidRequest("request is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	if len(s.replies) == 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("mock stub: no reply queued for %s %s", req.Method, req.Path)
	}
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &kra.TransportError{Kind: kra.KindConnectionFailed, Err: err}
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	return &kra.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(reply.Body),
	}, nil
}

// Requests returns the requests received so far.
func (s *Stub) Requests() []*kra.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*kra.Request(nil), s.requests...)
}

// Calls returns the number of requests received so far.
func (s *Stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
