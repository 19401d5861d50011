// Package kra is a client for the Kra cloud file-storage API
// (https://api.kra.sk/api). The Client type exposes one method per API
// operation: Login, UserInfo, ListFiles, FileLink, CreateFolder,
// DeleteObject, ObjectInfo, Version and Logout.
//
// The client is stateless. Session tokens returned by Login are opaque and
// owned by the caller, who passes them to every other call. Each call issues
// exactly one HTTP request, never retries and never caches, so one Client can
// serve any number of concurrent calls.
//
// Every call returns either a typed value or one of the errors below:
//
//   - ErrUnauthorized: the server rejected the session (HTTP 401). This wins
//     over any body sent with the status. WithUnauthorizedHook is notified.
//   - *APIError: the server declared a failure inside a well-formed answer,
//     even over HTTP 200.
//   - *MalformedResponseError: the answer matched none of the expected
//     shapes. List answers are probed as an array first, then as a single
//     object.
//   - *TransportError: no usable HTTP response (network failure,
//     cancellation, bad request description).
//
// Chunked uploads are not supported; UploadFile returns ErrNotImplemented.
package kra
