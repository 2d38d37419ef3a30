package erpclient

import (
	"errors"
	"fmt"
)

var (
	// ErrRefreshFailed wraps every error produced while renewing the session token.
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrNoCredentialStore is returned by Build when no store was supplied.
	ErrNoCredentialStore = errors.New("credential store required")
	// ErrInvalidRequest reports a request that cannot be built (bad method, unencodable body).
	ErrInvalidRequest = errors.New("invalid request")
	// ErrClientClosed is returned for calls made after Close.
	ErrClientClosed = errors.New("client closed")
	// ErrBuilderUsed is returned when Build is called twice on the same Builder.
	ErrBuilderUsed = errors.New("builder already used")
)

// RequestError is returned when a request never produced an HTTP response.
type RequestError struct {
	Op        string
	Method    string
	Path      string
	RequestID string
	Err       error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s %s (request %s): %v", e.Op, e.Method, e.Path, e.RequestID, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }
