package erptest

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anujChoudhary-1712/erp-fn-sub001/jwt"
	"github.com/gorilla/mux"
)

// Options configures a Backend. Zero values pick test-friendly defaults.
type Options struct {
	AccessTTL time.Duration
	// RefreshGrace is how long after expiry a token can still be renewed.
	RefreshGrace time.Duration
	Secret       []byte
	Issuer       string
	Subject      string
	Company      string
}

// RecordedRequest is one request seen by the /api routes.
type RecordedRequest struct {
	Method        string
	Path          string
	Authorization string
	RequestID     string
}

// Backend is the fake ERP HTTP handler.
type Backend struct {
	opts    Options
	manager *jwt.Manager
	router  *mux.Router

	refreshCalls       atomic.Int64
	requestCount       atomic.Int64
	failRefresh        atomic.Bool
	alwaysUnauthorized atomic.Bool

	mu       sync.Mutex
	revoked  map[string]struct{}
	gate     chan struct{}
	requests []RecordedRequest
}

// NewBackend builds a Backend.
func NewBackend(opts Options) (*Backend, error) {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = time.Minute
	}
	if opts.RefreshGrace <= 0 {
		opts.RefreshGrace = 10 * time.Minute
	}
	if opts.Issuer == "" {
		opts.Issuer = "erp-fake"
	}
	if opts.Subject == "" {
		opts.Subject = "user-1"
	}
	if len(opts.Secret) == 0 {
		opts.Secret = make([]byte, 32)
		if _, err := rand.Read(opts.Secret); err != nil {
			return nil, fmt.Errorf("generate secret: %w", err)
		}
	}

	manager, err := jwt.NewManager(jwt.Config{
		AccessTTL:     opts.AccessTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    opts.Secret,
		Issuer:        opts.Issuer,
		RequireIAT:    true,
	})
	if err != nil {
		return nil, err
	}

	b := &Backend{
		opts:    opts,
		manager: manager,
		revoked: make(map[string]struct{}),
	}
	b.router = b.routes()
	return b, nil
}

func (b *Backend) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/auth/refresh", b.handleRefresh).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(b.guard)
	methods := []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}
	api.HandleFunc("/status/{code:[2-5][0-9]{2}}", b.handleStatus).Methods(methods...)
	api.HandleFunc("/{resource}", b.handleResource).Methods(methods...)
	api.HandleFunc("/{resource}/{id}", b.handleResource).Methods(methods...)
	return r
}

func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.router.ServeHTTP(w, r)
}

// IssueToken mints a session token. A negative ttl yields an expired token that is still
// renewable within RefreshGrace.
func (b *Backend) IssueToken(ttl time.Duration) (string, error) {
	return b.manager.CreateAccess(b.opts.Subject, b.opts.Company, ttl)
}

// Revoke makes token unusable for /api routes and for refresh.
func (b *Backend) Revoke(token string) {
	c, err := jwt.Inspect(token)
	if err != nil {
		return
	}
	b.mu.Lock()
	b.revoked[c.ID] = struct{}{}
	b.mu.Unlock()
}

func (b *Backend) isRevoked(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.revoked[id]
	return ok
}

// SetFailRefresh makes /auth/refresh answer 401.
func (b *Backend) SetFailRefresh(fail bool) { b.failRefresh.Store(fail) }

// SetAlwaysUnauthorized makes every /api request answer 401.
func (b *Backend) SetAlwaysUnauthorized(on bool) { b.alwaysUnauthorized.Store(on) }

// HoldRefresh blocks refresh calls until release is called.
func (b *Backend) HoldRefresh() (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.gate = gate
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if b.gate == gate {
				b.gate = nil
			}
			b.mu.Unlock()
			close(gate)
		})
	}
}

// RefreshCalls counts GET /auth/refresh requests.
func (b *Backend) RefreshCalls() int64 { return b.refreshCalls.Load() }

// RequestCount counts /api requests, rejected ones included.
func (b *Backend) RequestCount() int64 { return b.requestCount.Load() }

// LastAuthorization returns the Authorization header of the latest /api request.
func (b *Backend) LastAuthorization() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.requests) == 0 {
		return ""
	}
	return b.requests[len(b.requests)-1].Authorization
}

// Requests returns a copy of every /api request seen so far.
func (b *Backend) Requests() []RecordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]RecordedRequest(nil), b.requests...)
}

func (b *Backend) record(r *http.Request) {
	b.requestCount.Add(1)
	b.mu.Lock()
	b.requests = append(b.requests, RecordedRequest{
		Method:        r.Method,
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		RequestID:     r.Header.Get("X-Request-Id"),
	})
	b.mu.Unlock()
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)

	b.mu.Lock()
	gate := b.gate
	b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	if b.failRefresh.Load() {
		writeUnauthorized(w, "refresh rejected")
		return
	}
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		writeUnauthorized(w, "missing bearer token")
		return
	}
	claims, err := b.manager.ParseExpired(token, b.opts.RefreshGrace)
	if err != nil || b.isRevoked(claims.ID) {
		writeUnauthorized(w, "session expired")
		return
	}

	next, err := b.manager.CreateAccess(claims.Subject, claims.Company, 0)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	b.mu.Lock()
	b.revoked[claims.ID] = struct{}{}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"result": map[string]string{"accessToken": next},
	})
}

// Echo is the body returned by resource routes.
type Echo struct {
	Method       string              `json:"method"`
	Resource     string              `json:"resource"`
	ID           string              `json:"id,omitempty"`
	Subject      string              `json:"subject"`
	Query        map[string][]string `json:"query,omitempty"`
	ContentType  string              `json:"content_type,omitempty"`
	Accept       string              `json:"accept,omitempty"`
	CacheControl string              `json:"cache_control,omitempty"`
	Body         json.RawMessage     `json:"body,omitempty"`
	Form         map[string]string   `json:"form,omitempty"`
	Files        map[string]string   `json:"files,omitempty"`
}

func (b *Backend) handleResource(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	echo := Echo{
		Method:       r.Method,
		Resource:     vars["resource"],
		ID:           vars["id"],
		Query:        r.URL.Query(),
		ContentType:  r.Header.Get("Content-Type"),
		Accept:       r.Header.Get("Accept"),
		CacheControl: r.Header.Get("Cache-Control"),
	}
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		echo.Subject = claims.Subject
	}

	mediaType, params, _ := mime.ParseMediaType(echo.ContentType)
	if mediaType == "multipart/form-data" {
		form, files, err := readMultipart(r.Body, params["boundary"])
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		echo.Form, echo.Files = form, files
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if len(body) > 0 {
			if !json.Valid(body) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body is not json"})
				return
			}
			echo.Body = body
		}
	}

	status := http.StatusOK
	if r.Method == http.MethodPost {
		status = http.StatusCreated
	}
	writeJSON(w, status, echo)
}

func (b *Backend) handleStatus(w http.ResponseWriter, r *http.Request) {
	code, _ := strconv.Atoi(mux.Vars(r)["code"])
	writeJSON(w, code, map[string]int{"status": code})
}

func readMultipart(body io.Reader, boundary string) (map[string]string, map[string]string, error) {
	if boundary == "" {
		return nil, nil, errors.New("multipart boundary missing")
	}
	form := map[string]string{}
	files := map[string]string{}
	mr := multipart.NewReader(body, boundary)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return form, files, nil
		}
		if err != nil {
			return nil, nil, err
		}
		data, err := io.ReadAll(part)
		if err != nil {
			return nil, nil, err
		}
		if part.FileName() != "" {
			files[part.FormName()] = part.FileName() + ":" + string(data)
		} else {
			form[part.FormName()] = string(data)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Server is a Backend listening on a loopback httptest server.
type Server struct {
	*Backend
	URL string

	srv *httptest.Server
}

// NewServer starts a Backend. Callers must Close it.
func NewServer(opts Options) (*Server, error) {
	b, err := NewBackend(opts)
	if err != nil {
		return nil, err
	}
	srv := httptest.NewServer(b)
	return &Server{Backend: b, URL: strings.TrimRight(srv.URL, "/"), srv: srv}, nil
}

// Close shuts the listener down.
func (s *Server) Close() {
	s.srv.Close()
}

// Client returns an http.Client wired to the server.
func (s *Server) Client() *http.Client {
	return s.srv.Client()
}
