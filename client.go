package erpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anujChoudhary-1712/erp-fn-sub001/credential"
	"github.com/anujChoudhary-1712/erp-fn-sub001/refresh"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client issues authenticated requests and owns the session refresh state.
type Client struct {
	cfg            Config
	http           *http.Client
	transport      *http.Transport
	headers        http.Header
	store          credential.Store
	refresher      refresh.Refresher
	logger         *zap.Logger
	metrics        *Metrics
	audit          *auditDispatcher
	onSessionEnded SessionEndedFunc

	mu         sync.Mutex
	refreshing bool
	pending    []*pendingRequest
	// superseded holds the tokens the last successful refresh replaced.
	superseded map[string]struct{}
	current    string

	closed atomic.Bool
}

// Get fetches path with params as the query string.
func (c *Client) Get(ctx context.Context, path string, params url.Values, token string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: params, Token: token})
}

// GetNoCache is Get with caching disabled on every intermediary.
func (c *Client) GetNoCache(ctx context.Context, path string, params url.Values, token string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: params, Token: token, NoCache: true})
}

// Put sends body as JSON to path.
func (c *Client) Put(ctx context.Context, path string, body any, token string) (*Response, error) {
	return c.doJSON(ctx, http.MethodPut, path, body, token)
}

// Post sends body as JSON to path.
func (c *Client) Post(ctx context.Context, path string, body any, token string) (*Response, error) {
	return c.doJSON(ctx, http.MethodPost, path, body, token)
}

// Patch sends body as JSON to path.
func (c *Client) Patch(ctx context.Context, path string, body any, token string) (*Response, error) {
	return c.doJSON(ctx, http.MethodPatch, path, body, token)
}

// Delete removes the resource at path.
func (c *Client) Delete(ctx context.Context, path string, params url.Values, token string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path, Query: params, Token: token})
}

// PostFormData sends form as multipart/form-data.
func (c *Client) PostFormData(ctx context.Context, path string, form *FormData, token string) (*Response, error) {
	return c.doForm(ctx, http.MethodPost, path, form, token)
}

// PatchFormData sends form as multipart/form-data.
func (c *Client) PatchFormData(ctx context.Context, path string, form *FormData, token string) (*Response, error) {
	return c.doForm(ctx, http.MethodPatch, path, form, token)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, token string) (*Response, error) {
	data, err := encodeJSON(body)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s %s body: %v", ErrInvalidRequest, method, path, err)
	}
	return c.Do(ctx, &Request{Method: method, Path: path, Body: data, Token: token})
}

func (c *Client) doForm(ctx context.Context, method, path string, form *FormData, token string) (*Response, error) {
	data, contentType, err := form.Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s %s form: %v", ErrInvalidRequest, method, path, err)
	}
	return c.Do(ctx, &Request{
		Method:      method,
		Path:        path,
		Body:        data,
		ContentType: contentType,
		Accept:      contentTypeForm,
		Token:       token,
	})
}

func encodeJSON(body any) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// Do sends req. A 401 on the first attempt is resolved by refreshing the session token
// (shared with every concurrent caller) and replaying req once with the new token.
// Do works on a copy of req; ID, ContentType and Accept defaults are filled per call.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if req == nil || strings.TrimSpace(req.Method) == "" {
		return nil, fmt.Errorf("%w: method is required", ErrInvalidRequest)
	}
	r := *req
	r.retried = false
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.ContentType == "" {
		r.ContentType = contentTypeJSON
	}
	if r.Accept == "" {
		r.Accept = contentTypeJSON
	}
	c.metrics.Inc(MetricRequests)

	if err := c.ensureFresh(ctx, &r); err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, &r)
	if err != nil {
		return nil, err
	}
	return c.intercept(ctx, &r, resp)
}

// Token returns the stored session token.
func (c *Client) Token(ctx context.Context) (string, error) {
	return c.store.Get(ctx)
}

// Logout discards the stored token and reports the session as ended.
func (c *Client) Logout(ctx context.Context) error {
	err := c.store.Clear(ctx)

	c.mu.Lock()
	c.current = ""
	c.superseded = nil
	c.mu.Unlock()

	c.metrics.Inc(MetricLogout)
	c.emitAudit(ctx, auditEventLogout, nil, err, nil)
	c.onSessionEnded(ctx, c.cfg.LoginURL, nil)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Close rejects further calls, flushes audit events and drops idle connections.
func (c *Client) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.audit.Close()
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
}

// MetricsSnapshot returns a point-in-time copy of the client's counters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// Metrics returns the live metrics registry.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// AuditDropped returns how many audit events were dropped on a full queue.
func (c *Client) AuditDropped() uint64 {
	return c.audit.Dropped()
}

func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	hreq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, &RequestError{Op: "build", Method: req.Method, Path: req.Path, RequestID: req.ID, Err: err}
	}

	start := time.Now()
	hresp, err := c.http.Do(hreq)
	if err != nil {
		c.metrics.Inc(MetricTransportErrors)
		c.logger.Debug("erp request failed",
			zap.String("request_id", req.ID),
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Error(err),
		)
		return nil, &RequestError{Op: "send", Method: req.Method, Path: req.Path, RequestID: req.ID, Err: err}
	}
	defer hresp.Body.Close()

	body, err := io.ReadAll(hresp.Body)
	if err != nil {
		c.metrics.Inc(MetricTransportErrors)
		return nil, &RequestError{Op: "read", Method: req.Method, Path: req.Path, RequestID: req.ID, Err: err}
	}
	elapsed := time.Since(start)
	c.metrics.Observe(MetricRequestLatency, elapsed)

	c.logger.Debug("erp request",
		zap.String("request_id", req.ID),
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status", hresp.StatusCode),
		zap.Bool("retried", req.retried),
		zap.Duration("elapsed", elapsed),
	)

	return &Response{
		StatusCode: hresp.StatusCode,
		Status:     hresp.Status,
		Header:     hresp.Header,
		Body:       body,
		RequestID:  req.ID,
		Retried:    req.retried,
	}, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	target, err := c.resolve(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, err
	}

	for k, vs := range c.headers {
		hreq.Header[k] = append([]string(nil), vs...)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	hreq.Header.Set("Accept", req.Accept)
	hreq.Header.Set("Content-Type", req.ContentType)
	hreq.Header.Set("X-Request-Id", req.ID)
	if req.Token != "" {
		hreq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	if req.NoCache {
		hreq.Header.Set("Cache-Control", "no-cache")
		hreq.Header.Set("Pragma", "no-cache")
		hreq.Header.Set("Expires", "0")
	}
	return hreq, nil
}

func (c *Client) resolve(path string, query url.Values) (string, error) {
	raw := path
	if u, err := url.Parse(path); err != nil || !u.IsAbs() {
		raw = joinURL(c.cfg.BaseURL, path)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
