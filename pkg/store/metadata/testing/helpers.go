package testing

import (
	"context"
	"sync"
	"testing"

	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() context.Context {
	return context.Background()
}

// assertCode checks that err is a registry error with the given code.
func assertCode(t *testing.T, expected metadata.ErrorCode, err error) {
	t.Helper()
	require.Error(t, err)
	code, ok := metadata.CodeOf(err)
	require.True(t, ok, "expected registry error, got %T: %v", err, err)
	assert.Equal(t, expected, code, "error: %v", err)
}

// mustUpload reserves a key for name.ext and commits a file for owner.
func mustUpload(t *testing.T, store metadata.Registry, owner, name, ext string) *metadata.File {
	t.Helper()

	key, err := store.ReserveStorageKey(testContext(), name, ext, nil)
	require.NoError(t, err)

	file, err := store.CreateFile(testContext(), metadata.FileSpec{
		StorageKey:  key,
		DisplayName: name,
		Extension:   ext,
		OwnerID:     owner,
		Size:        3,
		ContentType: "text/plain; charset=utf-8",
		Checksum:    "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
	})
	require.NoError(t, err)
	return file
}

func mustGrant(t *testing.T, store metadata.Registry, fileID, grantee string) {
	t.Helper()
	_, err := store.GrantRight(testContext(), fileID, grantee)
	require.NoError(t, err)
}

func publicIDs(files []*metadata.File) []string {
	ids := make([]string, len(files))
	for i, f := range files {
		ids[i] = f.PublicID
	}
	return ids
}

func reservationFor(t *testing.T, store metadata.Registry, key string) (metadata.StorageKeyReservation, bool) {
	t.Helper()
	all, err := store.ListStorageKeys(testContext())
	require.NoError(t, err)
	for _, r := range all {
		if r.Key == key {
			return r, true
		}
	}
	return metadata.StorageKeyReservation{}, false
}

// sequenceIDs returns an IDGenerator yielding ids in order, then falling
// back to fresh UUIDs.
func sequenceIDs(ids ...string) metadata.IDGenerator {
	var mu sync.Mutex
	next := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		if next < len(ids) {
			id := ids[next]
			next++
			return id
		}
		return metadata.NewUUID()
	}
}
