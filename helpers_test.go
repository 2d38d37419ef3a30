package erpclient

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anujChoudhary-1712/erp-fn-sub001/credential"
	"github.com/anujChoudhary-1712/erp-fn-sub001/erptest"
)

func newFakeERP(t *testing.T, opts erptest.Options) *erptest.Server {
	t.Helper()
	srv, err := erptest.NewServer(opts)
	if err != nil {
		t.Fatalf("start fake erp: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string, store credential.Store, configure ...func(*Builder)) *Client {
	t.Helper()
	b := New().
		WithBaseURL(baseURL).
		WithCredentialStore(store).
		WithMetricsEnabled(true)
	for _, fn := range configure {
		fn(b)
	}
	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func issue(t *testing.T, srv *erptest.Server, ttl time.Duration) string {
	t.Helper()
	token, err := srv.IssueToken(ttl)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

type sessionRecorder struct {
	calls    atomic.Int32
	mu       sync.Mutex
	loginURL string
	cause    error
}

func (r *sessionRecorder) handle(_ context.Context, loginURL string, cause error) {
	r.calls.Add(1)
	r.mu.Lock()
	r.loginURL = loginURL
	r.cause = cause
	r.mu.Unlock()
}

func (r *sessionRecorder) last() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loginURL, r.cause
}
