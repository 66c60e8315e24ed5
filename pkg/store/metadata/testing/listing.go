package testing

import (
	"testing"

	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunListingTests covers ListOwnedFiles and ListFilesSharedWith.
func (suite *StoreTestSuite) RunListingTests(t *testing.T) {
	t.Run("Owned_Empty", suite.testOwnedEmpty)
	t.Run("Owned_OnlyOwnFiles", suite.testOwnedOnlyOwn)
	t.Run("Owned_SameNameSeparateEntries", suite.testOwnedSameName)
	t.Run("Shared_ViaRight", suite.testSharedViaRight)
	t.Run("Shared_NotWithoutRight", suite.testSharedNotWithoutRight)
	t.Run("Shared_AfterRevoke", suite.testSharedAfterRevoke)
}

func (suite *StoreTestSuite) testOwnedEmpty(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})

	files, err := store.ListOwnedFiles(testContext(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func (suite *StoreTestSuite) testOwnedOnlyOwn(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})

	a1 := mustUpload(t, store, "alice", "one", "txt")
	mustUpload(t, store, "bob", "two", "txt")
	a2 := mustUpload(t, store, "alice", "three", "txt")

	files, err := store.ListOwnedFiles(testContext(), "alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a1.PublicID, a2.PublicID}, publicIDs(files))
	for _, f := range files {
		assert.Equal(t, "alice", f.OwnerID)
	}
}

func (suite *StoreTestSuite) testOwnedSameName(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})

	first := mustUpload(t, store, "alice", "Report", "pdf")
	second := mustUpload(t, store, "alice", "Report", "pdf")

	assert.NotEqual(t, first.PublicID, second.PublicID)
	assert.Equal(t, "report.pdf", first.StorageKey)
	assert.Equal(t, "report (1).pdf", second.StorageKey)
	assert.Equal(t, "Report", second.DisplayName)

	files, err := store.ListOwnedFiles(testContext(), "alice")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func (suite *StoreTestSuite) testSharedViaRight(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})

	file := mustUpload(t, store, "alice", "a", "txt")
	mustUpload(t, store, "alice", "private", "txt")
	mustGrant(t, store, file.PublicID, "bob")

	shared, err := store.ListFilesSharedWith(testContext(), "bob")
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Equal(t, file.PublicID, shared[0].PublicID)
	assert.Equal(t, "alice", shared[0].OwnerID)
}

func (suite *StoreTestSuite) testSharedNotWithoutRight(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})
	mustUpload(t, store, "alice", "Report", "pdf")

	shared, err := store.ListFilesSharedWith(testContext(), "bob")
	require.NoError(t, err)
	assert.Empty(t, shared)

	own, err := store.ListFilesSharedWith(testContext(), "alice")
	require.NoError(t, err)
	assert.Empty(t, own, "owners never see their own files as shared")
}

func (suite *StoreTestSuite) testSharedAfterRevoke(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})
	file := mustUpload(t, store, "alice", "a", "txt")
	mustGrant(t, store, file.PublicID, "bob")

	require.NoError(t, store.RevokeRight(testContext(), file.PublicID, "bob"))

	shared, err := store.ListFilesSharedWith(testContext(), "bob")
	require.NoError(t, err)
	assert.Empty(t, shared)
}
