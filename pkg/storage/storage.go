// Package storage defines the blob store surface used for video payloads.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound signals that no blob exists under the requested key.
var ErrNotFound = errors.New("blob not found")

// ErrInvalidKey signals a key that is empty or escapes the store root.
var ErrInvalidKey = errors.New("invalid blob key")

// BlobInfo describes a stored blob.
type BlobInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Store is the minimal blob interface the ingest and streaming paths depend on.
// Implementations must make Put atomic: a key is either fully written and
// readable, or absent.
type Store interface {
	// Put streams r to the blob under key and returns the byte count written.
	Put(ctx context.Context, key string, r io.Reader) (int64, error)

	// Open returns a reader over the full blob.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// OpenRange returns a reader positioned at offset serving at most length bytes.
	OpenRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error)

	// Stat returns blob metadata or ErrNotFound.
	Stat(ctx context.Context, key string) (BlobInfo, error)

	// Exists reports whether the key holds a blob.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the blob. Deleting an absent key returns ErrNotFound.
	Delete(ctx context.Context, key string) error
}
