package content

import (
	"context"
	"io"
	"time"

	"github.com/marmos91/dittodrive/pkg/metrics"
)

// Instrument wraps store so every call is reported to m. The result
// implements ListableStore when store does.
func Instrument(store BlobStore, m metrics.BlobMetrics) BlobStore {
	if m == nil {
		return store
	}
	inst := &instrumentedStore{inner: store, metrics: m}
	if listable, ok := store.(ListableStore); ok {
		return &instrumentedListableStore{instrumentedStore: inst, lister: listable}
	}
	return inst
}

type instrumentedStore struct {
	inner   BlobStore
	metrics metrics.BlobMetrics
}

func (s *instrumentedStore) Exists(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	ok, err := s.inner.Exists(ctx, key)
	s.metrics.RecordBlobOperation("exists", time.Since(start), err)
	return ok, err
}

func (s *instrumentedStore) Write(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	err := s.inner.Write(ctx, key, data)
	s.metrics.RecordBlobOperation("write", time.Since(start), err)
	if err == nil {
		s.metrics.RecordBlobBytes("write", int64(len(data)))
	}
	return err
}

func (s *instrumentedStore) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := s.inner.Read(ctx, key)
	s.metrics.RecordBlobOperation("read", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return &countingReader{ReadCloser: rc, metrics: s.metrics}, nil
}

func (s *instrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.inner.Delete(ctx, key)
	s.metrics.RecordBlobOperation("delete", time.Since(start), err)
	return err
}

func (s *instrumentedStore) Close() error {
	return s.inner.Close()
}

type instrumentedListableStore struct {
	*instrumentedStore
	lister ListableStore
}

func (s *instrumentedListableStore) ListKeys(ctx context.Context) ([]string, error) {
	start := time.Now()
	keys, err := s.lister.ListKeys(ctx)
	s.metrics.RecordBlobOperation("list", time.Since(start), err)
	return keys, err
}

// countingReader reports bytes read when closed.
type countingReader struct {
	io.ReadCloser
	metrics metrics.BlobMetrics
	n       int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	r.n += int64(n)
	return n, err
}

func (r *countingReader) Close() error {
	r.metrics.RecordBlobBytes("read", r.n)
	return r.ReadCloser.Close()
}
