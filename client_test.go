package erpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/anujChoudhary-1712/erp-fn-sub001/credential"
	"github.com/anujChoudhary-1712/erp-fn-sub001/erptest"
)

func TestClientVerbs(t *testing.T) {
	srv := newFakeERP(t, erptest.Options{})
	token := issue(t, srv, 0)
	c := newTestClient(t, srv.URL, credential.NewMemoryStore(token))
	ctx := context.Background()

	resp, err := c.Get(ctx, "/api/orders", url.Values{"status": {"open"}}, token)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var echo erptest.Echo
	if err := resp.DecodeJSON(&echo); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if echo.Method != http.MethodGet || echo.Resource != "orders" || echo.Query["status"][0] != "open" {
		t.Fatalf("unexpected echo: %+v", echo)
	}
	if echo.Accept != "application/json" || echo.ContentType != "application/json" {
		t.Fatalf("expected json headers, got accept=%q content-type=%q", echo.Accept, echo.ContentType)
	}

	resp, err = c.Post(ctx, "/api/orders", map[string]any{"item": "bolt", "qty": 3}, token)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	echo = erptest.Echo{}
	_ = resp.DecodeJSON(&echo)
	if !strings.Contains(string(echo.Body), `"item":"bolt"`) {
		t.Fatalf("body not echoed: %s", echo.Body)
	}

	for _, call := range []struct {
		method string
		do     func() (*Response, error)
	}{
		{http.MethodPut, func() (*Response, error) { return c.Put(ctx, "/api/orders/7", []byte(`{"qty":4}`), token) }},
		{http.MethodPatch, func() (*Response, error) { return c.Patch(ctx, "/api/orders/7", map[string]int{"qty": 5}, token) }},
		{http.MethodDelete, func() (*Response, error) { return c.Delete(ctx, "/api/orders/7", nil, token) }},
	} {
		resp, err := call.do()
		if err != nil {
			t.Fatalf("%s: %v", call.method, err)
		}
		echo := erptest.Echo{}
		_ = resp.DecodeJSON(&echo)
		if !resp.OK() || echo.Method != call.method || echo.ID != "7" {
			t.Fatalf("%s: status %d echo %+v", call.method, resp.StatusCode, echo)
		}
	}

	if srv.RefreshCalls() != 0 {
		t.Fatalf("valid token must not refresh, got %d calls", srv.RefreshCalls())
	}
}

func TestGetNoCacheHeaders(t *testing.T) {
	srv := newFakeERP(t, erptest.Options{})
	token := issue(t, srv, 0)
	c := newTestClient(t, srv.URL, credential.NewMemoryStore(token))

	resp, err := c.GetNoCache(context.Background(), "/api/stock", nil, token)
	if err != nil {
		t.Fatalf("GetNoCache: %v", err)
	}
	var echo erptest.Echo
	_ = resp.DecodeJSON(&echo)
	if echo.CacheControl != "no-cache" {
		t.Fatalf("expected no-cache, got %q", echo.CacheControl)
	}
}

func TestRequestHeaders(t *testing.T) {
	var mu sync.Mutex
	var seen http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = r.Header.Clone()
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, credential.NewMemoryStore(""), func(b *Builder) {
		cfg := DefaultConfig()
		cfg.BaseURL = ts.URL
		cfg.Transport.Header = map[string]string{"X-App": "erp-web"}
		b.WithConfig(cfg)
	})

	if _, err := c.GetNoCache(context.Background(), "/api/public", nil, ""); err != nil {
		t.Fatalf("GetNoCache: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if v := seen.Get("Authorization"); v != "" {
		t.Fatalf("expected no Authorization header for empty token, got %q", v)
	}
	if seen.Get("X-Request-Id") == "" {
		t.Fatal("expected X-Request-Id")
	}
	if seen.Get("X-App") != "erp-web" || seen.Get("User-Agent") != "erpclient/1" {
		t.Fatalf("static headers missing: %v", seen)
	}
	if seen.Get("Pragma") != "no-cache" || seen.Get("Expires") != "0" {
		t.Fatalf("no-cache headers missing: %v", seen)
	}
}

func TestFormData(t *testing.T) {
	srv := newFakeERP(t, erptest.Options{})
	token := issue(t, srv, 0)
	c := newTestClient(t, srv.URL, credential.NewMemoryStore(token))

	form := NewFormData().Add("name", "invoice-7").AddFileBytes("attachment", "inv.txt", []byte("hello"))
	if err := form.AddFile("scan", "scan.txt", strings.NewReader("scanned")); err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	resp, err := c.PostFormData(context.Background(), "/api/invoices", form, token)
	if err != nil {
		t.Fatalf("PostFormData: %v", err)
	}
	var echo erptest.Echo
	_ = resp.DecodeJSON(&echo)
	if echo.Form["name"] != "invoice-7" {
		t.Fatalf("form field missing: %+v", echo.Form)
	}
	if echo.Files["attachment"] != "inv.txt:hello" || echo.Files["scan"] != "scan.txt:scanned" {
		t.Fatalf("files missing: %+v", echo.Files)
	}
	if echo.Accept != "multipart/form-data" || !strings.HasPrefix(echo.ContentType, "multipart/form-data; boundary=") {
		t.Fatalf("unexpected form headers: accept=%q content-type=%q", echo.Accept, echo.ContentType)
	}

	resp, err = c.PatchFormData(context.Background(), "/api/invoices/7", NewFormData().Add("state", "paid"), token)
	if err != nil {
		t.Fatalf("PatchFormData: %v", err)
	}
	echo = erptest.Echo{}
	_ = resp.DecodeJSON(&echo)
	if echo.Method != http.MethodPatch || echo.Form["state"] != "paid" {
		t.Fatalf("unexpected patch echo: %+v", echo)
	}
}

func TestNon2xxReturnedAsResponse(t *testing.T) {
	srv := newFakeERP(t, erptest.Options{})
	token := issue(t, srv, 0)
	c := newTestClient(t, srv.URL, credential.NewMemoryStore(token))

	for _, code := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusInternalServerError} {
		resp, err := c.Get(context.Background(), "/api/status/"+strconv.Itoa(code), nil, token)
		if err != nil {
			t.Fatalf("status %d: unexpected error %v", code, err)
		}
		if resp.StatusCode != code || resp.OK() || resp.Retried {
			t.Fatalf("status %d: got %+v", code, resp)
		}
	}
	if srv.RefreshCalls() != 0 {
		t.Fatal("non-401 statuses must not refresh")
	}
}

func TestTransportErrorIsRequestError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	base := ts.URL
	ts.Close()

	c := newTestClient(t, base, credential.NewMemoryStore("T1"))
	_, err := c.Get(context.Background(), "/api/orders", nil, "T1")
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if reqErr.Op != "send" || reqErr.Method != http.MethodGet || reqErr.Path != "/api/orders" || reqErr.RequestID == "" {
		t.Fatalf("unexpected RequestError: %+v", reqErr)
	}
	if got := c.Metrics().Value(MetricTransportErrors); got != 1 {
		t.Fatalf("expected 1 transport error, got %d", got)
	}
}

func TestInvalidRequest(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1", credential.NewMemoryStore(""))

	if _, err := c.Post(context.Background(), "/api/x", make(chan int), ""); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := c.Do(context.Background(), &Request{Path: "/api/x"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for missing method, got %v", err)
	}
}

func TestClosedClient(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1", credential.NewMemoryStore(""))
	c.Close()
	if _, err := c.Get(context.Background(), "/api/x", nil, ""); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed, got %v", err)
	}
}

func TestBuildRequiresStore(t *testing.T) {
	if _, err := New().WithBaseURL("http://erp.local").Build(); !errors.Is(err, ErrNoCredentialStore) {
		t.Fatalf("expected ErrNoCredentialStore, got %v", err)
	}

	b := New().WithBaseURL("http://erp.local").WithCredentialStore(credential.NewMemoryStore(""))
	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer c.Close()
	if _, err := b.Build(); !errors.Is(err, ErrBuilderUsed) {
		t.Fatalf("expected ErrBuilderUsed, got %v", err)
	}
}
