package credential

import (
	"context"
	"errors"
)

const (
	// KeyAccessToken is the key name the dashboard stores its bearer token under.
	KeyAccessToken = "accessToken"
	// KeyToken is the legacy key name still read by older pages.
	KeyToken = "token"
)

var (
	// ErrNoToken is returned by Get when no token is stored.
	ErrNoToken = errors.New("no token stored")
	// ErrStoreUnavailable wraps backend failures (Redis down, unreadable file).
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// Store persists the current session token.
//
// Implementations must be safe for concurrent use: erpclient reads the store from many
// goroutines and writes it from the single refresh leader.
type Store interface {
	// Get returns the stored token or ErrNoToken.
	Get(ctx context.Context) (string, error)
	// Set replaces the stored token.
	Set(ctx context.Context, token string) error
	// Clear removes the stored token. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}
