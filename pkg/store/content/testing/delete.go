package testing

import (
	"testing"

	"github.com/marmos91/dittodrive/pkg/store/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunDeleteTests covers Delete semantics.
func (suite *StoreTestSuite) RunDeleteTests(t *testing.T) {
	t.Run("Delete_Success", suite.testDeleteSuccess)
	t.Run("Delete_Idempotent", suite.testDeleteIdempotent)
	t.Run("Delete_LeavesOthers", suite.testDeleteLeavesOthers)
}

func (suite *StoreTestSuite) testDeleteSuccess(t *testing.T) {
	store := suite.NewStore()
	key := generateTestKey("delete")

	mustWrite(t, store, key, []byte("bye"))
	require.NoError(t, store.Delete(testContext(), key))

	assertExists(t, store, key, false)
	_, err := store.Read(testContext(), key)
	AssertErrorIs(t, content.ErrBlobNotFound, err)
}

func (suite *StoreTestSuite) testDeleteIdempotent(t *testing.T) {
	store := suite.NewStore()
	key := generateTestKey("delete-twice")

	mustWrite(t, store, key, []byte("bye"))
	require.NoError(t, store.Delete(testContext(), key))
	assert.NoError(t, store.Delete(testContext(), key))
	assert.NoError(t, store.Delete(testContext(), generateTestKey("never-written")))
}

func (suite *StoreTestSuite) testDeleteLeavesOthers(t *testing.T) {
	store := suite.NewStore()
	a, b := generateTestKey("a"), generateTestKey("b")

	mustWrite(t, store, a, []byte("a"))
	mustWrite(t, store, b, []byte("b"))
	require.NoError(t, store.Delete(testContext(), a))

	assertExists(t, store, a, false)
	assert.Equal(t, []byte("b"), mustRead(t, store, b))
}
