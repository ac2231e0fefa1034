package tokenstore

import (
	"context"
	"errors"
)

// ErrTokenNotFound is returned by Get when no token is stored under the key.
var ErrTokenNotFound = errors.New("token not found")

// TokenStore reads and writes tokens by key.
//
// Writes are last-write-wins; stores do not coordinate concurrent writers.
type TokenStore interface {
	// Get returns the token stored under key. Returns ErrTokenNotFound
	// (possibly wrapped) if nothing or an empty value is stored.
	Get(ctx context.Context, key string) (string, error)

	// Set stores the token under key, replacing any previous value. Returns error
	// if the backend is read-only (e.g., environment variables) or the write fails.
	Set(ctx context.Context, key, value string) error
}
