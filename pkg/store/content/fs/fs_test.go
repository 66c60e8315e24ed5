package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/dittodrive/pkg/store/content"
	contenttesting "github.com/marmos91/dittodrive/pkg/store/content/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSBlobStore(t *testing.T) {
	suite := &contenttesting.StoreTestSuite{
		NewStore: func() content.BlobStore {
			store, err := NewFSBlobStore(context.Background(), t.TempDir())
			require.NoError(t, err)
			return store
		},
	}

	suite.Run(t)
}

func TestFSBlobStore_FileNamedAfterKey(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSBlobStore(context.Background(), dir)
	require.NoError(t, err)

	require.NoError(t, store.Write(context.Background(), "report (1).pdf", []byte("pdf")))

	data, err := os.ReadFile(filepath.Join(dir, "report (1).pdf"))
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf"), data)
}

func TestFSBlobStore_RejectsPathEscape(t *testing.T) {
	store, err := NewFSBlobStore(context.Background(), t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../escape.txt", "a/b.txt", "..", ""} {
		err := store.Write(context.Background(), key, []byte("x"))
		assert.ErrorIs(t, err, content.ErrInvalidKey, "key %q", key)
	}
}

func TestFSBlobStore_ListSkipsTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSBlobStore(context.Background(), dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, tempPrefix+"123"), []byte("partial"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0755))
	require.NoError(t, store.Write(context.Background(), "a.txt", []byte("a")))

	keys, err := store.ListKeys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, keys)
}

func TestNewFSBlobStore_RequiresPath(t *testing.T) {
	_, err := NewFSBlobStore(context.Background(), "")
	assert.Error(t, err)
}
