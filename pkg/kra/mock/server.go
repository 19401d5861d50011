// Package mock provides an in-memory fake of the Kra API for tests and
// sandboxing, plus transports that exercise kra.Client without a network.
package mock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mlabs/kra_sdk_go/internal/devseed"
	"github.com/mlabs/kra_sdk_go/pkg/kra"
)

// Version is reported by the fake /version endpoint.
const Version = "kra-mock/1"

type account struct {
	info     kra.UserInfo
	password string
}

type object struct {
	file   kra.File
	owner  string
	parent string
	seq    int
}

// Option configures a Server.
type Option func(*Server)

// WithClock overrides the time source used for created timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how session tokens and object idents are made.
func WithIDGenerator(gen func() string) Option {
	return func(s *Server) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithLinkBase sets the prefix of generated download links.
func WithLinkBase(base string) Option {
	return func(s *Server) {
		s.linkBase = strings.TrimRight(base, "/")
	}
}

// WithSingletonObjects makes listings holding exactly one entry answer with a
// bare object instead of a one-element array, as the live API sometimes does.
func WithSingletonObjects() Option {
	return func(s *Server) {
		s.collapseSingletons = true
	}
}

// WithLogger logs every handled request.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// Server implements the Kra API endpoints in memory. It is an http.Handler
// serving paths relative to the API base (/user/login, /file/list, ...).
type Server struct {
	mu       sync.RWMutex
	accounts map[string]*account
	sessions map[string]string
	objects  map[string]*object
	seq      int

	now                func() time.Time
	newID              func() string
	linkBase           string
	collapseSingletons bool
	logger             zerolog.Logger
	router             chi.Router
}

// New constructs an empty fake API.
func New(opts ...Option) *Server {
	s := &Server{
		accounts: make(map[string]*account),
		sessions: make(map[string]string),
		objects:  make(map[string]*object),
		now: func() time.Time {
			return time.Now().UTC()
		},
		newID:    func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
		linkBase: "https://download.kra.sk/files",
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Post("/user/login", s.handleLogin)
	r.Post("/user/info", s.withSession(s.handleUserInfo))
	r.Post("/user/logout", s.withSession(s.handleLogout))
	r.Post("/file/list", s.withSession(s.handleList))
	r.Post("/file/download", s.withSession(s.handleDownload))
	r.Post("/file/create", s.withSession(s.handleCreate))
	r.Post("/file/delete", s.withSession(s.handleDelete))
	r.Post("/file/info", s.withSession(s.handleInfo))
	r.Post("/version", s.handleVersion)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusNotFound, "Unknown endpoint")
	})
	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Seed loads users and objects. Objects without an ident get a generated
// one.
func (s *Server) Seed(seed *devseed.Seed) error {
	if seed == nil {
		return nil
	}
	if err := seed.Validate(); err != nil {
		return fmt.Errorf("mock kra: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range seed.Users {
		s.accounts[u.Username] = &account{
			password: u.Password,
			info: kra.UserInfo{
				DaysLeft:        copyInt(u.DaysLeft),
				ObjectQuota:     u.ObjectQuota,
				BytesQuota:      u.BytesQuota,
				Mailing:         u.Mailing,
				Username:        u.Username,
				Email:           u.Email,
				SubscribedUntil: u.SubscribedUntil,
			},
		}
	}
	for _, o := range seed.Objects {
		ident := o.Ident
		if ident == "" {
			ident = s.newID()
		}
		created := o.Created
		if created == "" {
			created = s.timestamp()
		}
		s.insertLocked(o.Owner, o.Parent, kra.File{
			Ident:    ident,
			Name:     o.Name,
			Size:     o.Size,
			Folder:   o.Folder,
			Shared:   o.Shared,
			Password: o.Password,
			Created:  created,
		})
	}
	return nil
}

// AddUser registers an account without subscription days.
func (s *Server) AddUser(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[username] = &account{
		password: password,
		info:     kra.UserInfo{Username: username},
	}
}

// AddFile stores a file for owner under parent ("" for root) and returns its
// ident.
func (s *Server) AddFile(owner, parent, name string, size int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := kra.File{Ident: s.newID(), Name: name, Size: size, Created: s.timestamp()}
	s.insertLocked(owner, parent, f)
	return f.Ident
}

// AddSession registers token as a live session of username.
func (s *Server) AddSession(token, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[username]; !ok {
		return fmt.Errorf("mock kra: unknown user %q", username)
	}
	s.sessions[token] = username
	return nil
}

// ExpireSession forgets a token so later calls answer 401.
func (s *Server) ExpireSession(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// SessionCount returns the number of live sessions.
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Server) insertLocked(owner, parent string, f kra.File) {
	s.seq++
	s.objects[f.Ident] = &object{file: f, owner: owner, parent: parent, seq: s.seq}
	if acc, ok := s.accounts[owner]; ok {
		acc.info.Objects++
		acc.info.Bytes += f.Size
	}
}

func (s *Server) timestamp() string {
	return s.now().Format("2006-01-02 15:04:05")
}

type apiRequest struct {
	SessionID string          `json:"session_id"`
	Data      json.RawMessage `json:"data"`
}

type objectArgs struct {
	Ident     string `json:"ident"`
	Name      string `json:"name"`
	Parent    string `json:"parent"`
	Folder    bool   `json:"folder"`
	Shared    bool   `json:"shared"`
	Recursive bool   `json:"recursive"`
}

// call is an authenticated request after session lookup.
type call struct {
	token    string
	username string
	args     objectArgs
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, c call)

func (s *Server) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeFailure(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		s.mu.RLock()
		username, ok := s.sessions[req.SessionID]
		s.mu.RUnlock()
		if req.SessionID == "" || !ok {
			writeFailure(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		var args objectArgs
		if len(req.Data) > 0 && string(req.Data) != "null" {
			if err := json.Unmarshal(req.Data, &args); err != nil {
				writeFailure(w, http.StatusBadRequest, "Invalid request data")
				return
			}
		}
		next(w, r, call{token: req.SessionID, username: username, args: args})
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Data struct {
			Username string `json:"username"`
			Password string `json:"password"`
		} `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[req.Data.Username]
	if !ok || acc.password != req.Data.Password {
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"session_id": nil,
			"success":    0,
			"msg":        "Invalid credentials",
		})
		return
	}
	token := s.newID()
	s.sessions[token] = req.Data.Username
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": token,
		"success":    1,
		"msg":        "Login successful",
	})
}

func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request, c call) {
	username := c.username
	s.mu.RLock()
	acc, ok := s.accounts[username]
	var info kra.UserInfo
	if ok {
		info = acc.info
		info.DaysLeft = copyInt(acc.info.DaysLeft)
	}
	s.mu.RUnlock()
	if !ok {
		writeFailure(w, http.StatusOK, "User not found")
		return
	}
	writeSuccess(w, 1, info)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, c call) {
	s.mu.Lock()
	delete(s.sessions, c.token)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": 1, "msg": "Logged out successfully"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, c call) {
	username, args := c.username, c.args
	s.mu.RLock()
	defer s.mu.RUnlock()

	if args.Ident != "" {
		parent, ok := s.objects[args.Ident]
		if !ok || parent.owner != username {
			writeFailure(w, http.StatusOK, "Folder not found")
			return
		}
		if !parent.file.Folder {
			writeFailure(w, http.StatusOK, "Not a folder")
			return
		}
	}

	children := s.childrenLocked(username, args.Ident)
	files := make([]kra.File, 0, len(children))
	for _, o := range children {
		files = append(files, o.file)
	}
	if s.collapseSingletons && len(files) == 1 {
		writeSuccess(w, 1, files[0])
		return
	}
	writeSuccess(w, 1, files)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, c call) {
	username, args := c.username, c.args
	s.mu.RLock()
	o, ok := s.objects[args.Ident]
	s.mu.RUnlock()
	if !ok || o.owner != username {
		writeFailure(w, http.StatusOK, "File not found")
		return
	}
	if o.file.Folder {
		writeFailure(w, http.StatusOK, "Cannot download a folder")
		return
	}
	writeSuccess(w, 1, kra.Link{URL: fmt.Sprintf("%s/%s/%s", s.linkBase, o.file.Ident, o.file.Name)})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, c call) {
	username, args := c.username, c.args
	if strings.TrimSpace(args.Name) == "" {
		writeFailure(w, http.StatusOK, "Name is required")
		return
	}
	if !args.Folder {
		writeFailure(w, http.StatusOK, "Only folders can be created")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if args.Parent != "" {
		parent, ok := s.objects[args.Parent]
		if !ok || parent.owner != username || !parent.file.Folder {
			writeFailure(w, http.StatusOK, "Parent folder not found")
			return
		}
	}
	for _, o := range s.childrenLocked(username, args.Parent) {
		if o.file.Name == args.Name {
			writeFailure(w, http.StatusOK, "Object already exists")
			return
		}
	}
	f := kra.File{
		Ident:   s.newID(),
		Name:    args.Name,
		Folder:  true,
		Shared:  args.Shared,
		Created: s.timestamp(),
	}
	s.insertLocked(username, args.Parent, f)
	writeSuccess(w, 201, f)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, c call) {
	username, args := c.username, c.args
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[args.Ident]
	if !ok || o.owner != username {
		writeFailure(w, http.StatusOK, "Object not found")
		return
	}
	children := s.childrenLocked(username, o.file.Ident)
	if len(children) > 0 && !args.Recursive {
		writeFailure(w, http.StatusOK, "Folder is not empty")
		return
	}
	s.deleteLocked(o)
	writeJSON(w, http.StatusOK, map[string]any{"success": 1})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request, c call) {
	username, args := c.username, c.args
	s.mu.RLock()
	o, ok := s.objects[args.Ident]
	s.mu.RUnlock()
	if !ok || o.owner != username {
		writeFailure(w, http.StatusOK, "Object not found")
		return
	}
	writeSuccess(w, 1, o.file)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, 1, map[string]string{"version": Version})
}

func (s *Server) childrenLocked(owner, parent string) []*object {
	var out []*object
	for _, o := range s.objects {
		if o.owner == owner && o.parent == parent {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (s *Server) deleteLocked(o *object) {
	for _, child := range s.childrenLocked(o.owner, o.file.Ident) {
		s.deleteLocked(child)
	}
	delete(s.objects, o.file.Ident)
	if acc, ok := s.accounts[o.owner]; ok {
		acc.info.Objects--
		acc.info.Bytes -= o.file.Size
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("mock kra: request")
	})
}

func writeSuccess(w http.ResponseWriter, code int, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"success": code, "data": data})
}

func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": 0, "msg": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
