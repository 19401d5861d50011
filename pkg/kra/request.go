package kra

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/mlabs/kra_sdk_go/internal/httpx"
)

const (
	// DefaultBaseURL is the API host used by every operation except uploads.
	DefaultBaseURL = "https://api.kra.sk/api"
	// DefaultUploadURL is the resumable-upload host.
	DefaultUploadURL = "https://upload.kra.sk"
)

// Request and Response are the transport-level shapes exchanged with a
// Transport.
type (
	Request  = httpx.Request
	Response = httpx.Response
)

// Operation identifies one API call.
type Operation int

const (
	OpLogin Operation = iota + 1
	OpUserInfo
	OpListFiles
	OpDownloadLink
	OpUploadFile
	OpCreateFolder
	OpDeleteObject
	OpObjectInfo
	OpVersion
	OpLogout
)

type host int

const (
	apiHost host = iota
	uploadHost
)

type route struct {
	name   string
	method string
	path   string
	host   host
	// okMsgs are the msg values the endpoint sends alongside a success code.
	okMsgs []string
}

var routes = map[Operation]route{
	OpLogin:        {name: "login", method: http.MethodPost, path: "/user/login", okMsgs: []string{"Login successful"}},
	OpUserInfo:     {name: "user_info", method: http.MethodPost, path: "/user/info"},
	OpListFiles:    {name: "list_files", method: http.MethodPost, path: "/file/list"},
	OpDownloadLink: {name: "download_link", method: http.MethodPost, path: "/file/download"},
	OpUploadFile:   {name: "upload_file", method: http.MethodPatch, path: "/upload/upload/", host: uploadHost},
	OpCreateFolder: {name: "create_folder", method: http.MethodPost, path: "/file/create"},
	OpDeleteObject: {name: "delete_object", method: http.MethodPost, path: "/file/delete"},
	OpObjectInfo:   {name: "object_info", method: http.MethodPost, path: "/file/info"},
	OpVersion:      {name: "version", method: http.MethodPost, path: "/version"},
	OpLogout:       {name: "logout", method: http.MethodPost, path: "/user/logout", okMsgs: []string{"Logged out successfully"}},
}

// Operations lists every operation in declaration order.
func Operations() []Operation {
	ops := make([]Operation, 0, len(routes))
	for op := OpLogin; op <= OpLogout; op++ {
		ops = append(ops, op)
	}
	return ops
}

// SuccessMessages returns the messages the endpoint may pair with a success
// code. Any other non-empty message turns a success code into an *APIError.
func (op Operation) SuccessMessages() []string {
	return append([]string(nil), routes[op].okMsgs...)
}

func (op Operation) String() string {
	if r, ok := routes[op]; ok {
		return r.name
	}
	return fmt.Sprintf("operation(%d)", int(op))
}

// Target is one operation together with its parameters. Build it with the
// *Target constructors; the zero value is invalid.
type Target struct {
	Op        Operation
	SessionID string
	Username  string
	Password  string
	// Ident is the object, file or folder identifier the operation acts on.
	Ident     string
	Name      string
	Parent    string
	Shared    bool
	Recursive bool
	ChunkMB   int
}

func LoginTarget(username, password string) Target {
	return Target{Op: OpLogin, Username: username, Password: password}
}

func UserInfoTarget(sessionID string) Target {
	return Target{Op: OpUserInfo, SessionID: sessionID}
}

// ListFilesTarget lists folderIdent, or the root folder when it is empty.
func ListFilesTarget(sessionID, folderIdent string) Target {
	return Target{Op: OpListFiles, SessionID: sessionID, Ident: folderIdent}
}

func DownloadLinkTarget(sessionID, fileIdent string) Target {
	return Target{Op: OpDownloadLink, SessionID: sessionID, Ident: fileIdent}
}

func UploadFileTarget(sessionID, filename, folderIdent string, shared bool, chunkMB int) Target {
	return Target{Op: OpUploadFile, SessionID: sessionID, Name: filename, Parent: folderIdent, Shared: shared, ChunkMB: chunkMB}
}

// CreateFolderTarget creates name under parentIdent, or under the root when
// parentIdent is empty.
func CreateFolderTarget(sessionID, name, parentIdent string, shared bool) Target {
	return Target{Op: OpCreateFolder, SessionID: sessionID, Name: name, Parent: parentIdent, Shared: shared}
}

func DeleteObjectTarget(sessionID, ident string, recursive bool) Target {
	return Target{Op: OpDeleteObject, SessionID: sessionID, Ident: ident, Recursive: recursive}
}

func ObjectInfoTarget(sessionID, ident string) Target {
	return Target{Op: OpObjectInfo, SessionID: sessionID, Ident: ident}
}

func VersionTarget() Target {
	return Target{Op: OpVersion}
}

func LogoutTarget(sessionID string) Target {
	return Target{Op: OpLogout, SessionID: sessionID}
}

// Method returns the HTTP method of the operation.
func (t Target) Method() string {
	return routes[t.Op].method
}

// Path returns the endpoint path relative to the operation's base URL.
func (t Target) Path() string {
	return routes[t.Op].path
}

// BaseURL picks apiURL or uploadURL depending on the operation.
func (t Target) BaseURL(apiURL, uploadURL string) string {
	if routes[t.Op].host == uploadHost {
		return uploadURL
	}
	return apiURL
}

// Header returns the request headers of the operation.
func (t Target) Header() http.Header {
	if t.Op == OpUploadFile {
		return http.Header{
			"Tus-Resumable": []string{"1.0.0"},
			"Content-Type":  []string{"application/offset+octet-stream"},
		}
	}
	return http.Header{"Content-Type": []string{"application/json"}}
}

// Payload returns the JSON-encodable body of the operation, or nil when the
// operation sends no body.
func (t Target) Payload() (any, error) {
	switch t.Op {
	case OpLogin:
		return map[string]any{
			"data": map[string]string{
				"username": t.Username,
				"password": t.Password,
			},
		}, nil
	case OpUserInfo, OpLogout:
		return map[string]any{"session_id": t.SessionID}, nil
	case OpListFiles:
		body := map[string]any{"session_id": t.SessionID}
		if t.Ident != "" {
			body["data"] = map[string]string{"ident": t.Ident}
		}
		return body, nil
	case OpDownloadLink, OpObjectInfo:
		return map[string]any{
			"session_id": t.SessionID,
			"data":       map[string]string{"ident": t.Ident},
		}, nil
	case OpCreateFolder:
		data := map[string]any{
			"name":   t.Name,
			"folder": true,
			"shared": t.Shared,
		}
		if t.Parent != "" {
			data["parent"] = t.Parent
		}
		return map[string]any{"session_id": t.SessionID, "data": data}, nil
	case OpDeleteObject:
		data := map[string]any{"ident": t.Ident}
		if t.Recursive {
			data["recursive"] = true
		}
		return map[string]any{"session_id": t.SessionID, "data": data}, nil
	case OpVersion:
		return nil, nil
	case OpUploadFile:
		return nil, fmt.Errorf("%w: chunked upload", ErrNotImplemented)
	default:
		return nil, httpx.InvalidRequest("unknown operation %d", int(t.Op))
	}
}

// Request describes the operation on the wire. It performs no I/O.
func (t Target) Request(apiURL, uploadURL string) (*Request, error) {
	if _, ok := routes[t.Op]; !ok {
		return nil, httpx.InvalidRequest("unknown operation %d", int(t.Op))
	}
	payload, err := t.Payload()
	if err != nil {
		return nil, err
	}
	var body []byte
	if payload != nil {
		body, err = httpx.EncodeJSON(payload)
		if err != nil {
			return nil, httpx.InvalidRequest("encode %s body: %v", t.Op, err)
		}
	}
	base := strings.TrimSpace(t.BaseURL(apiURL, uploadURL))
	return &Request{
		Method:  t.Method(),
		BaseURL: base,
		Path:    t.Path(),
		Header:  t.Header(),
		Body:    body,
	}, nil
}
