package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/marmos91/dittodrive/pkg/store/content"
)

const (
	dirPerm  = 0755
	filePerm = 0644

	// tempPrefix marks in-flight writes; such files are never listed.
	tempPrefix = ".tmp-"
)

// FSBlobStore implements content.ListableStore on a local directory.
//
// Each blob is a regular file named after its storage key, so the upload
// directory stays human-inspectable. Writes go to a temp file in the same
// directory and are renamed into place, so readers never observe a partially
// written blob.
//
// Thread Safety:
// Safe for concurrent use; atomicity comes from rename(2).
type FSBlobStore struct {
	basePath string
}

// NewFSBlobStore creates a filesystem blob store rooted at basePath.
//
// The directory is created with permissions 0755 if missing.
//
// Parameters:
//   - ctx: Context for cancellation, checked before touching the filesystem
//   - basePath: Root directory for blob files
//
// Returns:
//   - *FSBlobStore: Initialized store
//   - error: Directory creation failure or context cancellation
func NewFSBlobStore(ctx context.Context, basePath string) (*FSBlobStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if basePath == "" {
		return nil, fmt.Errorf("base path is required")
	}

	if err := os.MkdirAll(basePath, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSBlobStore{basePath: basePath}, nil
}

// path resolves key inside basePath. Keys with separators are rejected so a
// key can never address a file outside the store.
func (s *FSBlobStore) path(key string) (string, error) {
	if err := content.ValidateKey(key); err != nil {
		return "", fmt.Errorf("key %q: %w", key, err)
	}
	return filepath.Join(s.basePath, key), nil
}

// Exists reports whether a blob file exists for key.
func (s *FSBlobStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	p, err := s.path(key)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat blob: %w", err)
	}

	return info.Mode().IsRegular(), nil
}

// Write stores data under key via temp file and rename.
func (s *FSBlobStore) Write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := s.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.basePath, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	// Any failure below leaves no temp file behind.
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close blob: %w", err)
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		cleanup()
		return fmt.Errorf("failed to chmod blob: %w", err)
	}

	if err := ctx.Err(); err != nil {
		cleanup()
		return err
	}

	if err := os.Rename(tmpName, p); err != nil {
		cleanup()
		return fmt.Errorf("failed to commit blob: %w", err)
	}

	return nil
}

// Read opens the blob file for key.
func (s *FSBlobStore) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %s: %w", key, content.ErrBlobNotFound)
		}
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}

	return f, nil
}

// Delete removes the blob file for key. Missing files are not an error.
func (s *FSBlobStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}

	return nil
}

// ListKeys returns the names of all committed blob files.
func (s *FSBlobStore) ListKeys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		keys = append(keys, e.Name())
	}

	return keys, nil
}

// Close is a no-op; the store holds no open descriptors.
func (s *FSBlobStore) Close() error {
	return nil
}

// BasePath returns the root directory of the store.
func (s *FSBlobStore) BasePath() string {
	return s.basePath
}
