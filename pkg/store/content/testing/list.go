package testing

import (
	"testing"

	"github.com/marmos91/dittodrive/pkg/store/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunListTests covers ListKeys for stores implementing ListableStore.
func (suite *StoreTestSuite) RunListTests(t *testing.T) {
	t.Run("ListKeys_Empty", suite.testListEmpty)
	t.Run("ListKeys_AfterWritesAndDeletes", suite.testListAfterWrites)
}

func (suite *StoreTestSuite) listable(t *testing.T) content.ListableStore {
	store := suite.NewStore()
	listable, ok := store.(content.ListableStore)
	if !ok {
		t.Skip("Store does not implement ListableStore")
	}
	return listable
}

func (suite *StoreTestSuite) testListEmpty(t *testing.T) {
	store := suite.listable(t)

	keys, err := store.ListKeys(testContext())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func (suite *StoreTestSuite) testListAfterWrites(t *testing.T) {
	store := suite.listable(t)
	a, b, c := generateTestKey("a"), generateTestKey("b"), generateTestKey("c")

	mustWrite(t, store, a, []byte("a"))
	mustWrite(t, store, b, []byte("b"))
	mustWrite(t, store, c, []byte("c"))
	require.NoError(t, store.Delete(testContext(), b))

	keys, err := store.ListKeys(testContext())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a, c}, keys)
}
