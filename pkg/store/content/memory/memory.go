package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/marmos91/dittodrive/pkg/store/content"
)

// MemoryBlobStore implements content.ListableStore in memory.
//
// Intended for tests and single-process development setups. Data is lost
// when the process exits.
//
// Thread Safety:
// All operations are protected by a sync.RWMutex. Data is copied on write
// and on read so callers never share buffers with the store.
type MemoryBlobStore struct {
	data   map[string][]byte
	closed bool
	mu     sync.RWMutex
}

// NewMemoryBlobStore creates an empty in-memory blob store.
func NewMemoryBlobStore(ctx context.Context) (*MemoryBlobStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &MemoryBlobStore{
		data: make(map[string][]byte),
	}, nil
}

// Exists reports whether key holds a blob.
func (s *MemoryBlobStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, content.ErrStoreClosed
	}

	_, ok := s.data[key]
	return ok, nil
}

// Write stores a copy of data under key.
func (s *MemoryBlobStore) Write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := content.ValidateKey(key); err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return content.ErrStoreClosed
	}

	s.data[key] = buf
	return nil
}

// Read returns a reader over a copy of the blob.
func (s *MemoryBlobStore) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, content.ErrStoreClosed
	}

	data, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", key, content.ErrBlobNotFound)
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	return io.NopCloser(bytes.NewReader(buf)), nil
}

// Delete removes key. Missing keys are not an error.
func (s *MemoryBlobStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return content.ErrStoreClosed
	}

	delete(s.data, key)
	return nil
}

// ListKeys returns all keys in lexical order.
func (s *MemoryBlobStore) ListKeys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, content.ErrStoreClosed
	}

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close drops all data. Subsequent calls fail with ErrStoreClosed.
func (s *MemoryBlobStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.data = nil
	return nil
}
