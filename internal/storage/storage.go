package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get for a key that has no blob.
var ErrNotFound = errors.New("object not found")

// StorageError wraps a backing-store failure (transport, disk, permissions).
// A failed Get surfaces one of these rather than returning empty bytes.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Backend is a durable key/value blob store. Blobs are written once, read
// many, deleted once; there is no shared mutable state behind a key.
type Backend interface {
	// Put stores data under key, overwriting any previous blob.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get returns the blob stored under key. An absent key yields an error
	// wrapping ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the blob under key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// PublicURL returns a URL from which the blob can be fetched by a third
	// party for at least ttl. Depending on the backend this is a presigned URL
	// or a path served by the application itself.
	PublicURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
