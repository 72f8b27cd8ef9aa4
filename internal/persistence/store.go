package persistence

import (
	"context"
	"errors"
)

var (
	// ErrStateNotFound is returned when no value is stored under a key.
	ErrStateNotFound = errors.New("state not found")
)

// StateStore persists small opaque blobs by key. It backs feature-flag
// values and per-workflow viewports; the caller owns the encoding.
type StateStore interface {
	// Load returns the value stored under key or ErrStateNotFound.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save creates or overwrites the value under key.
	Save(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists the stored keys starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// FlagsKey is the key a named feature-flag store is persisted under.
func FlagsKey(storeName string) string {
	return "flags:" + storeName
}

// ViewportKey is the key the last viewport of a workflow is persisted under.
func ViewportKey(workflowID string) string {
	return "viewport:" + workflowID
}
