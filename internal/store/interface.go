// Package store persists reading state as JSON blobs in a key/value backend.
package store

import "context"

// KV is the persistence adapter: a durable string-keyed blob store.
// A successful Set or SetBatch is durable before it returns.
type KV interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key.
	Set(ctx context.Context, key string, value []byte) error
	// SetBatch stores every entry in one atomic write: either all keys are
	// updated or none are.
	SetBatch(ctx context.Context, entries map[string][]byte) error
	// Keys lists stored keys starting with prefix, in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}
