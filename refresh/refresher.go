package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultTokenPath is where the ERP backend puts the new access token.
const DefaultTokenPath = "result.accessToken"

// maxBodyBytes caps how much of a refresh response is read.
const maxBodyBytes = 1 << 20

var (
	// ErrMissingToken is returned when a 200 response carries no usable token.
	ErrMissingToken = errors.New("refresh response missing access token")
	// ErrNoRefreshURL is returned by an HTTPRefresher without a URL.
	ErrNoRefreshURL = errors.New("refresh url not configured")
)

// StatusError reports a non-200 refresh response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("refresh failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("refresh failed with status %d: %s", e.StatusCode, e.Body)
}

// Refresher exchanges the current token for a new one.
type Refresher interface {
	Refresh(ctx context.Context, current string) (string, error)
}

// Func adapts a function to Refresher.
type Func func(ctx context.Context, current string) (string, error)

func (f Func) Refresh(ctx context.Context, current string) (string, error) {
	return f(ctx, current)
}

// HTTPRefresher calls the refresh endpoint over HTTP.
type HTTPRefresher struct {
	Client *http.Client
	URL    string
	// TokenPath is a dot-separated path into the JSON body; empty means DefaultTokenPath.
	TokenPath string
	// Header is added to every refresh call (app name, version, ...).
	Header http.Header
}

// NewHTTPRefresher returns a refresher for url. A nil client uses http.DefaultClient.
func NewHTTPRefresher(client *http.Client, url string) *HTTPRefresher {
	return &HTTPRefresher{Client: client, URL: url}
}

func (r *HTTPRefresher) Refresh(ctx context.Context, current string) (string, error) {
	if r == nil || r.URL == "" {
		return "", ErrNoRefreshURL
	}
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return "", fmt.Errorf("build refresh request: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if current != "" {
		req.Header.Set("Authorization", "Bearer "+current)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read refresh response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	path := r.TokenPath
	if path == "" {
		path = DefaultTokenPath
	}
	return ExtractToken(body, path)
}

// ExtractToken walks a dot-separated path through a JSON document and returns the string
// found there.
func ExtractToken(body []byte, path string) (string, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("%w: decode body: %v", ErrMissingToken, err)
	}

	node := doc
	for _, part := range strings.Split(path, ".") {
		obj, ok := node.(map[string]any)
		if !ok {
			return "", fmt.Errorf("%w at %q", ErrMissingToken, path)
		}
		node, ok = obj[part]
		if !ok {
			return "", fmt.Errorf("%w at %q", ErrMissingToken, path)
		}
	}

	token, ok := node.(string)
	if !ok || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w at %q", ErrMissingToken, path)
	}
	return token, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
