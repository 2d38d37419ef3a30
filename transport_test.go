package erpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anujChoudhary-1712/erp-fn-sub001/credential"
	"github.com/anujChoudhary-1712/erp-fn-sub001/refresh"
	"go.uber.org/zap"
)

func TestTransportRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, credential.NewMemoryStore("T1"), func(b *Builder) {
		cfg := DefaultConfig()
		cfg.BaseURL = ts.URL
		cfg.Transport.RetryMax = 3
		cfg.Transport.RetryWaitMin = time.Millisecond
		cfg.Transport.RetryWaitMax = 5 * time.Millisecond
		cfg.Transport.Tracing = true
		b.WithConfig(cfg).WithLogger(zap.NewNop())
	})

	resp, err := c.Get(context.Background(), "/api/orders", nil, "T1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != http.StatusOK || hits.Load() != 3 {
		t.Fatalf("expected 200 after 3 hits, got %d after %d", resp.StatusCode, hits.Load())
	}
}

func TestTransportPassesThroughExhaustedErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream"}`))
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, credential.NewMemoryStore("T1"))
	resp, err := c.Get(context.Background(), "/api/orders", nil, "T1")
	if err != nil {
		t.Fatalf("expected response, got %v", err)
	}
	if resp.StatusCode != http.StatusBadGateway || string(resp.Body) != `{"error":"upstream"}` {
		t.Fatalf("unexpected response %d %q", resp.StatusCode, resp.Body)
	}
}

func TestTransportDoesNotRetryUnauthorized(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, credential.NewMemoryStore("T1"), func(b *Builder) {
		cfg := DefaultConfig()
		cfg.BaseURL = ts.URL
		cfg.Transport.RetryMax = 3
		cfg.Transport.RetryWaitMin = time.Millisecond
		cfg.Transport.RetryWaitMax = time.Millisecond
		b.WithConfig(cfg).WithRefresher(refresh.Func(func(context.Context, string) (string, error) {
			return "T2", nil
		}))
	})

	resp, err := c.Get(context.Background(), "/api/orders", nil, "T1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized || hits.Load() != 2 {
		t.Fatalf("expected 401 after original+replay, got %d after %d hits", resp.StatusCode, hits.Load())
	}
}
