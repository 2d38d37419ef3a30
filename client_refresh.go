package erpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/anujChoudhary-1712/erp-fn-sub001/credential"
	"github.com/anujChoudhary-1712/erp-fn-sub001/jwt"
	"go.uber.org/zap"
)

// intercept inspects a first-attempt response. Anything but a 401, and any response to a
// replayed request, is returned unchanged.
func (c *Client) intercept(ctx context.Context, req *Request, resp *Response) (*Response, error) {
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	if req.retried {
		c.metrics.Inc(MetricUnauthorizedAfterRetry)
		return resp, nil
	}

	c.metrics.Inc(MetricUnauthorized)
	req.retried = true

	token, err := c.awaitToken(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.replay(ctx, req, token)
}

// awaitToken returns a token to replay req with. Exactly one caller at a time runs the
// refresh; the others park on the pending queue until it settles.
func (c *Client) awaitToken(ctx context.Context, req *Request) (string, error) {
	c.mu.Lock()
	if c.refreshing {
		p := newPendingRequest(req)
		c.pending = append(c.pending, p)
		c.mu.Unlock()

		c.metrics.Inc(MetricRequestQueued)
		c.emitAudit(ctx, auditEventRequestQueued, req, nil, nil)
		return c.wait(ctx, p)
	}
	// req carried a token the last refresh already replaced; replay with its successor.
	// Any other token, including one rotated into a shared store by another process,
	// goes through a refresh of its own.
	if _, ok := c.superseded[req.Token]; ok && c.current != "" {
		token := c.current
		c.mu.Unlock()
		c.metrics.Inc(MetricStaleReplay)
		return token, nil
	}
	c.refreshing = true
	c.mu.Unlock()

	return c.lead(ctx, req)
}

func (c *Client) wait(ctx context.Context, p *pendingRequest) (string, error) {
	select {
	case out := <-p.done:
		return out.token, out.err
	case <-ctx.Done():
		req := p.request
		return "", &RequestError{Op: "await refresh", Method: req.Method, Path: req.Path, RequestID: req.ID, Err: ctx.Err()}
	}
}

// lead runs the refresh on behalf of every queued request. The caller must have set
// c.refreshing.
func (c *Client) lead(ctx context.Context, req *Request) (string, error) {
	start := time.Now()
	c.metrics.Inc(MetricRefreshStarted)
	c.emitAudit(ctx, auditEventRefreshStarted, req, nil, nil)

	replaced, token, err := c.runRefresh(ctx)
	c.metrics.Observe(MetricRefreshLatency, time.Since(start))

	if err != nil {
		c.clearStore(ctx)
	}

	c.mu.Lock()
	c.refreshing = false
	waiters := c.pending
	c.pending = nil
	if err == nil {
		c.current = token
		c.superseded = supersededBy(token, replaced, req, waiters)
	} else {
		c.current = ""
		c.superseded = nil
	}
	c.mu.Unlock()

	for _, p := range waiters {
		p.done <- refreshOutcome{token: token, err: err}
	}

	if err != nil {
		c.metrics.Inc(MetricRefreshFailure)
		c.emitAudit(ctx, auditEventRefreshFailed, req, err, nil)
		c.logger.Warn("token refresh failed",
			zap.String("request_id", req.ID),
			zap.Int("queued", len(waiters)),
			zap.Error(err),
		)
		c.endSession(ctx, err)
		return "", err
	}

	c.metrics.Inc(MetricRefreshSuccess)
	c.emitAudit(ctx, auditEventRefreshSucceeded, req, nil, map[string]string{
		"queued": fmt.Sprint(len(waiters)),
	})
	c.logger.Debug("token refreshed",
		zap.String("request_id", req.ID),
		zap.Int("queued", len(waiters)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return token, nil
}

// supersededBy collects the tokens a refresh to next replaced: the stored one and whatever
// the leader and its queue were sent with.
func supersededBy(next, stored string, leader *Request, waiters []*pendingRequest) map[string]struct{} {
	set := make(map[string]struct{}, len(waiters)+2)
	add := func(token string) {
		if token != "" && token != next {
			set[token] = struct{}{}
		}
	}
	add(stored)
	add(leader.Token)
	for _, p := range waiters {
		add(p.request.Token)
	}
	return set
}

// runRefresh is detached from the caller's cancellation so one caller giving up does not
// end the session for everyone queued behind it.
func (c *Client) runRefresh(ctx context.Context) (stored, token string, err error) {
	rctx := context.WithoutCancel(ctx)
	if c.cfg.Refresh.Timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(rctx, c.cfg.Refresh.Timeout)
		defer cancel()
	}

	stored, err = c.store.Get(rctx)
	if err != nil {
		return "", "", fmt.Errorf("%w: read stored token: %w", ErrRefreshFailed, err)
	}

	token, err = c.refresher.Refresh(rctx, stored)
	if err != nil {
		return stored, "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	if err := c.store.Set(rctx, token); err != nil {
		c.logger.Warn("store refreshed token", zap.Error(err))
	}
	return stored, token, nil
}

func (c *Client) replay(ctx context.Context, req *Request, token string) (*Response, error) {
	req.Token = token
	c.metrics.Inc(MetricRequestReplayed)
	c.emitAudit(ctx, auditEventRequestReplayed, req, nil, nil)

	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		c.metrics.Inc(MetricUnauthorizedAfterRetry)
	}
	return resp, nil
}

// ensureFresh refreshes ahead of sending when the caller's token is about to expire.
func (c *Client) ensureFresh(ctx context.Context, req *Request) error {
	window := c.cfg.Refresh.ProactiveWindow
	if window <= 0 || req.Token == "" || !jwt.ExpiresWithin(req.Token, window, time.Now()) {
		return nil
	}

	c.mu.Lock()
	current := c.current
	_, stale := c.superseded[req.Token]
	c.mu.Unlock()
	if stale && current != "" {
		req.Token = current
		if !jwt.ExpiresWithin(current, window, time.Now()) {
			return nil
		}
	}

	c.metrics.Inc(MetricProactiveRefresh)
	token, err := c.awaitToken(ctx, req)
	if err != nil {
		return err
	}
	req.Token = token
	return nil
}

func (c *Client) endSession(ctx context.Context, cause error) {
	c.metrics.Inc(MetricSessionEnded)
	c.emitAudit(ctx, auditEventSessionEnded, nil, cause, map[string]string{"login_url": c.cfg.LoginURL})
	c.onSessionEnded(ctx, c.cfg.LoginURL, cause)
}

func (c *Client) clearStore(ctx context.Context) {
	err := c.store.Clear(context.WithoutCancel(ctx))
	if err != nil && !errors.Is(err, credential.ErrNoToken) {
		c.logger.Warn("clear stored token", zap.Error(err))
	}
}
