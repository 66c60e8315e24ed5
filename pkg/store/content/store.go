// Package content defines the blob store that holds file bytes.
//
// Blobs are addressed only by storage key. The registry decides which keys
// exist; the blob store just moves bytes. Implementations live in the
// memory, fs and s3 subpackages and are validated by the shared suite in
// content/testing.
package content

import (
	"context"
	"io"
	"strings"
)

// BlobStore stores whole byte blobs keyed by storage key.
//
// Thread Safety:
// Implementations must be safe for concurrent use. Concurrent writes to the
// same key are last-write-wins; the registry guarantees a key has a single
// writer in practice.
type BlobStore interface {
	// Exists reports whether a blob is stored under key.
	// A missing blob is (false, nil), never an error.
	Exists(ctx context.Context, key string) (bool, error)

	// Write stores data under key, replacing any previous blob.
	Write(ctx context.Context, key string, data []byte) error

	// Read opens the blob stored under key. The caller closes the reader.
	// Returns ErrBlobNotFound (wrapped) when no blob exists.
	Read(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the blob under key. Deleting a missing blob succeeds.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// ListableStore is implemented by stores that can enumerate their keys.
// The orphan collector requires it.
type ListableStore interface {
	BlobStore

	// ListKeys returns every stored key, in no particular order.
	ListKeys(ctx context.Context) ([]string, error)
}

// ValidateKey rejects keys that are empty or could escape a key namespace.
func ValidateKey(key string) error {
	if key == "" || key == "." || key == ".." {
		return ErrInvalidKey
	}
	if strings.ContainsAny(key, "/\\\x00") {
		return ErrInvalidKey
	}
	return nil
}
