package store

import "errors"

// Sentinel errors.
var (
	// ErrNotFound is returned by KV.Get for a missing key.
	ErrNotFound = errors.New("key not found")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store closed")
)
