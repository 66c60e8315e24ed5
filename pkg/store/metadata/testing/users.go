package testing

import (
	"testing"

	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunUserTests covers the user directory.
func (suite *StoreTestSuite) RunUserTests(t *testing.T) {
	t.Run("PutUser_Upsert", suite.testPutUserUpsert)
	t.Run("PutUser_RequiresID", suite.testPutUserRequiresID)
	t.Run("GetUsers_SkipsUnknown", suite.testGetUsersSkipsUnknown)
}

func (suite *StoreTestSuite) testPutUserUpsert(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})

	require.NoError(t, store.PutUser(testContext(), metadata.User{ID: "bob", FullName: "Bob", Email: "bob@old.example"}))
	require.NoError(t, store.PutUser(testContext(), metadata.User{ID: "bob", FullName: "Bob Builder", Email: "bob@example.com"}))

	users, err := store.GetUsers(testContext(), "bob")
	require.NoError(t, err)
	assert.Equal(t, metadata.User{ID: "bob", FullName: "Bob Builder", Email: "bob@example.com"}, users["bob"])
}

func (suite *StoreTestSuite) testPutUserRequiresID(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})

	err := store.PutUser(testContext(), metadata.User{FullName: "Anonymous"})
	assertCode(t, metadata.ErrInvalidArgument, err)
}

func (suite *StoreTestSuite) testGetUsersSkipsUnknown(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})
	require.NoError(t, store.PutUser(testContext(), metadata.User{ID: "carol", FullName: "Carol", Email: "carol@example.com"}))

	users, err := store.GetUsers(testContext(), "carol", "ghost")
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Contains(t, users, "carol")

	none, err := store.GetUsers(testContext())
	require.NoError(t, err)
	assert.Empty(t, none)
}
