// Package erpclient is an authenticated HTTP client for the ERP backend. Every call carries
// the caller's bearer token; a 401 triggers one transparent token refresh that all concurrent
// callers share, after which each rejected request is replayed exactly once.
//
// A Client is safe for concurrent use after [Builder.Build].
//
// # Architecture boundaries
//
// erpclient owns request construction, the 401 interception path and the single-flight
// refresh state (flag, pending queue, superseded tokens). Token persistence lives behind
// [credential.Store]; the refresh HTTP exchange lives in the refresh package; exporters for
// [Metrics] live under metrics/export.
//
// # What this package must NOT do
//
//   - Keep refresh state in package globals; each Client owns its own.
//   - Issue more than one refresh call at a time, or retry a request more than once.
//   - Navigate anywhere itself. Session teardown is reported through [SessionEndedFunc].
//
// # Result contract
//
// Every call returns (*Response, error). Transport failures return a *RequestError. A failed
// refresh returns an error matching [ErrRefreshFailed] after the stored token is cleared.
// Any HTTP status that survives interception, including a 401 on the replayed attempt, is
// returned as a *Response with a nil error.
package erpclient
