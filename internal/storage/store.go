// Package storage provides the persistence layer for session blobs.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no blob exists for a key.
var ErrNotFound = errors.New("blob not found")

// BlobStore keeps one serialized state document per key.
// Implementations must be safe for concurrent use.
type BlobStore interface {
	// Load returns the blob stored under key, or ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save writes data under key, replacing any previous blob.
	Save(ctx context.Context, key string, data []byte) error

	// Delete removes the blob under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}
