package testing

import (
	"fmt"
	"io"
	"sync/atomic"
	"testing"

	"github.com/marmos91/dittodrive/pkg/store/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keyCounter atomic.Uint64

// AssertErrorIs checks the error chain for the expected sentinel.
func AssertErrorIs(t *testing.T, expected error, actual error) {
	t.Helper()
	require.Error(t, actual)
	assert.ErrorIs(t, actual, expected)
}

func mustWrite(t *testing.T, store content.BlobStore, key string, data []byte) {
	t.Helper()
	require.NoError(t, store.Write(testContext(), key, data))
}

func mustRead(t *testing.T, store content.BlobStore, key string) []byte {
	t.Helper()
	r, err := store.Read(testContext(), key)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

func assertExists(t *testing.T, store content.BlobStore, key string, expected bool) {
	t.Helper()
	ok, err := store.Exists(testContext(), key)
	require.NoError(t, err)
	assert.Equal(t, expected, ok)
}

func generateTestData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

// generateTestKey returns a unique storage key shaped like the ones the
// name resolver produces.
func generateTestKey(name string) string {
	return fmt.Sprintf("%s (%d).bin", name, keyCounter.Add(1))
}
