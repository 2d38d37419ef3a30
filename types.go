package erpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const (
	contentTypeJSON = "application/json"
	contentTypeForm = "multipart/form-data"
)

// Request describes one call to the ERP backend. Body holds the encoded payload so a
// replay after refresh sends identical bytes. Do never modifies a Request, so one value
// can be sent any number of times.
type Request struct {
	ID          string
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	ContentType string
	Accept      string
	Header      http.Header
	Token       string
	NoCache     bool

	retried bool
}

// Response is a completed HTTP exchange with its body fully read.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	RequestID  string
	Retried    bool
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v any) error {
	if r == nil || len(r.Body) == 0 {
		return fmt.Errorf("decode response: empty body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// SessionEndedFunc is called when the session is torn down, either because a refresh failed
// (cause is the refresh error) or because of Logout (cause is nil). loginURL is where an
// interactive caller should send the user next.
type SessionEndedFunc func(ctx context.Context, loginURL string, cause error)

type refreshOutcome struct {
	token string
	err   error
}

// pendingRequest is a request parked behind a running refresh. done is buffered so the
// refresh leader never blocks on a caller that gave up.
type pendingRequest struct {
	request *Request
	done    chan refreshOutcome
}

func newPendingRequest(req *Request) *pendingRequest {
	return &pendingRequest{request: req, done: make(chan refreshOutcome, 1)}
}
