package testing

import (
	"testing"

	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunFileTests covers CreateFile, GetFile, RenameFile and DeleteFile.
func (suite *StoreTestSuite) RunFileTests(t *testing.T) {
	t.Run("Create_Success", suite.testCreateSuccess)
	t.Run("Create_RequiresReservation", suite.testCreateRequiresReservation)
	t.Run("Create_KeyBindsOnce", suite.testCreateKeyBindsOnce)
	t.Run("Create_InvalidSpec", suite.testCreateInvalidSpec)
	t.Run("Create_RetriesIDCollision", suite.testCreateRetriesCollision)
	t.Run("Create_CollisionExhausted", suite.testCreateCollisionExhausted)
	t.Run("Get_NotFound", suite.testGetNotFound)
	t.Run("Rename_Success", suite.testRenameSuccess)
	t.Run("Rename_NotFound", suite.testRenameNotFound)
	t.Run("Rename_Blank", suite.testRenameBlank)
	t.Run("Delete_Success", suite.testDeleteSuccess)
	t.Run("Delete_Twice", suite.testDeleteTwice)
	t.Run("Delete_CascadesRights", suite.testDeleteCascadesRights)
	t.Run("Delete_FreesStorageKey", suite.testDeleteFreesKey)
}

func (suite *StoreTestSuite) testCreateSuccess(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})

	file := mustUpload(t, store, "alice", "Report", "pdf")
	assert.NotEmpty(t, file.PublicID)
	assert.Equal(t, "Report", file.DisplayName)
	assert.Equal(t, "pdf", file.Extension)
	assert.Equal(t, "report.pdf", file.StorageKey)
	assert.Equal(t, "alice", file.OwnerID)
	assert.Equal(t, int64(3), file.Size)
	assert.False(t, file.CreatedAt.IsZero())

	got, err := store.GetFile(testContext(), file.PublicID)
	require.NoError(t, err)
	assert.Equal(t, file.PublicID, got.PublicID)
	assert.Equal(t, file.StorageKey, got.StorageKey)
	assert.Equal(t, file.Checksum, got.Checksum)
	assert.Equal(t, file.ContentType, got.ContentType)
	assert.True(t, file.CreatedAt.Equal(got.CreatedAt))

	res, ok := reservationFor(t, store, file.StorageKey)
	require.True(t, ok)
	assert.Equal(t, metadata.ReservationBound, res.State)
	assert.Equal(t, file.PublicID, res.FileID)
}

func (suite *StoreTestSuite) testCreateRequiresReservation(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})

	_, err := store.CreateFile(testContext(), metadata.FileSpec{
		StorageKey:  "unreserved.txt",
		DisplayName: "unreserved",
		Extension:   "txt",
		OwnerID:     "alice",
	})
	assertCode(t, metadata.ErrNotReserved, err)
}

func (suite *StoreTestSuite) testCreateKeyBindsOnce(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})
	file := mustUpload(t, store, "alice", "a", "txt")

	_, err := store.CreateFile(testContext(), metadata.FileSpec{
		StorageKey:  file.StorageKey,
		DisplayName: "a",
		Extension:   "txt",
		OwnerID:     "bob",
	})
	assertCode(t, metadata.ErrNotReserved, err)
}

func (suite *StoreTestSuite) testCreateInvalidSpec(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})
	key, err := store.ReserveStorageKey(testContext(), "a", "txt", nil)
	require.NoError(t, err)

	_, err = store.CreateFile(testContext(), metadata.FileSpec{StorageKey: key, DisplayName: "a"})
	assertCode(t, metadata.ErrInvalidArgument, err)

	_, err = store.CreateFile(testContext(), metadata.FileSpec{StorageKey: key, OwnerID: "alice", DisplayName: "  "})
	assertCode(t, metadata.ErrInvalidArgument, err)
}

func (suite *StoreTestSuite) testCreateRetriesCollision(t *testing.T) {
	store := suite.newStore(t, metadata.Options{
		NewID: sequenceIDs("id-1", "id-1", "id-1", "id-2"),
	})

	first := mustUpload(t, store, "alice", "a", "txt")
	second := mustUpload(t, store, "alice", "b", "txt")

	assert.Equal(t, "id-1", first.PublicID)
	assert.Equal(t, "id-2", second.PublicID)
}

func (suite *StoreTestSuite) testCreateCollisionExhausted(t *testing.T) {
	store := suite.newStore(t, metadata.Options{
		NewID:         func() string { return "always-the-same" },
		MaxIDAttempts: 3,
	})

	mustUpload(t, store, "alice", "a", "txt")

	key, err := store.ReserveStorageKey(testContext(), "b", "txt", nil)
	require.NoError(t, err)

	_, err = store.CreateFile(testContext(), metadata.FileSpec{
		StorageKey:  key,
		DisplayName: "b",
		Extension:   "txt",
		OwnerID:     "alice",
	})
	assertCode(t, metadata.ErrIOError, err)

	res, ok := reservationFor(t, store, key)
	require.True(t, ok, "failed create keeps the pending reservation for the caller to release")
	assert.Equal(t, metadata.ReservationPending, res.State)
}

func (suite *StoreTestSuite) testGetNotFound(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})

	_, err := store.GetFile(testContext(), "does-not-exist")
	assertCode(t, metadata.ErrNotFound, err)
	assert.True(t, metadata.IsNotFound(err))
}

func (suite *StoreTestSuite) testRenameSuccess(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})
	file := mustUpload(t, store, "alice", "Report", "pdf")

	renamed, err := store.RenameFile(testContext(), file.PublicID, "Final Report")
	require.NoError(t, err)
	assert.Equal(t, "Final Report", renamed.DisplayName)
	assert.Equal(t, file.StorageKey, renamed.StorageKey)
	assert.Equal(t, file.Extension, renamed.Extension)
	assert.Equal(t, file.OwnerID, renamed.OwnerID)
	assert.False(t, renamed.UpdatedAt.Before(file.UpdatedAt))

	got, err := store.GetFile(testContext(), file.PublicID)
	require.NoError(t, err)
	assert.Equal(t, "Final Report", got.DisplayName)
	assert.Equal(t, "report.pdf", got.StorageKey)
}

func (suite *StoreTestSuite) testRenameNotFound(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})

	_, err := store.RenameFile(testContext(), "missing", "x")
	assertCode(t, metadata.ErrNotFound, err)
}

func (suite *StoreTestSuite) testRenameBlank(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})
	file := mustUpload(t, store, "alice", "a", "txt")

	_, err := store.RenameFile(testContext(), file.PublicID, "   ")
	assertCode(t, metadata.ErrInvalidArgument, err)
}

func (suite *StoreTestSuite) testDeleteSuccess(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})
	file := mustUpload(t, store, "alice", "a", "txt")

	require.NoError(t, store.DeleteFile(testContext(), file.PublicID))

	_, err := store.GetFile(testContext(), file.PublicID)
	assertCode(t, metadata.ErrNotFound, err)

	owned, err := store.ListOwnedFiles(testContext(), "alice")
	require.NoError(t, err)
	assert.Empty(t, owned)
}

func (suite *StoreTestSuite) testDeleteTwice(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})
	file := mustUpload(t, store, "alice", "a", "txt")

	require.NoError(t, store.DeleteFile(testContext(), file.PublicID))
	err := store.DeleteFile(testContext(), file.PublicID)
	assertCode(t, metadata.ErrNotFound, err)
}

func (suite *StoreTestSuite) testDeleteCascadesRights(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})
	file := mustUpload(t, store, "alice", "a", "txt")
	mustGrant(t, store, file.PublicID, "bob")

	require.NoError(t, store.DeleteFile(testContext(), file.PublicID))

	rights, err := store.ListRights(testContext(), file.PublicID)
	require.NoError(t, err)
	assert.Empty(t, rights)

	shared, err := store.ListFilesSharedWith(testContext(), "bob")
	require.NoError(t, err)
	assert.Empty(t, shared)

	err = store.RevokeRight(testContext(), file.PublicID, "bob")
	assertCode(t, metadata.ErrNotFound, err)
}

func (suite *StoreTestSuite) testDeleteFreesKey(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})
	file := mustUpload(t, store, "alice", "a", "txt")

	require.NoError(t, store.DeleteFile(testContext(), file.PublicID))

	_, ok := reservationFor(t, store, file.StorageKey)
	assert.False(t, ok)

	key, err := store.ReserveStorageKey(testContext(), "a", "txt", nil)
	require.NoError(t, err)
	assert.Equal(t, file.StorageKey, key)
}
