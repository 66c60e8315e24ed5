package testing

import (
	"testing"

	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRightTests covers GrantRight, RevokeRight and ListRights.
func (suite *StoreTestSuite) RunRightTests(t *testing.T) {
	t.Run("Grant_Success", suite.testGrantSuccess)
	t.Run("Grant_SelfRejected", suite.testGrantSelfRejected)
	t.Run("Grant_Duplicate", suite.testGrantDuplicate)
	t.Run("Grant_FileNotFound", suite.testGrantFileNotFound)
	t.Run("Revoke_NotFound", suite.testRevokeNotFound)
	t.Run("ListRights_PerFile", suite.testListRightsPerFile)
}

func (suite *StoreTestSuite) testGrantSuccess(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})
	file := mustUpload(t, store, "alice", "a", "txt")

	right, err := store.GrantRight(testContext(), file.PublicID, "bob")
	require.NoError(t, err)
	assert.Equal(t, file.PublicID, right.FileID)
	assert.Equal(t, "bob", right.GranteeID)
	assert.Equal(t, metadata.GrantCoAuthor, right.Kind)
	assert.False(t, right.CreatedAt.IsZero())
}

func (suite *StoreTestSuite) testGrantSelfRejected(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})
	file := mustUpload(t, store, "alice", "a", "txt")

	_, err := store.GrantRight(testContext(), file.PublicID, "alice")
	assertCode(t, metadata.ErrInvalidArgument, err)

	rights, err := store.ListRights(testContext(), file.PublicID)
	require.NoError(t, err)
	assert.Empty(t, rights)
}

func (suite *StoreTestSuite) testGrantDuplicate(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})
	file := mustUpload(t, store, "alice", "a", "txt")
	mustGrant(t, store, file.PublicID, "bob")

	_, err := store.GrantRight(testContext(), file.PublicID, "bob")
	assertCode(t, metadata.ErrAlreadyExists, err)
}

func (suite *StoreTestSuite) testGrantFileNotFound(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})

	_, err := store.GrantRight(testContext(), "missing", "bob")
	assertCode(t, metadata.ErrNotFound, err)
}

func (suite *StoreTestSuite) testRevokeNotFound(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})
	file := mustUpload(t, store, "alice", "a", "txt")

	err := store.RevokeRight(testContext(), file.PublicID, "bob")
	assertCode(t, metadata.ErrNotFound, err)
}

func (suite *StoreTestSuite) testListRightsPerFile(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})
	a := mustUpload(t, store, "alice", "a", "txt")
	b := mustUpload(t, store, "alice", "b", "txt")
	c := mustUpload(t, store, "alice", "c", "txt")

	mustGrant(t, store, a.PublicID, "bob")
	mustGrant(t, store, a.PublicID, "carol")
	mustGrant(t, store, b.PublicID, "carol")

	rights, err := store.ListRights(testContext(), a.PublicID, b.PublicID, c.PublicID)
	require.NoError(t, err)

	require.Len(t, rights, 2)
	assert.Len(t, rights[a.PublicID], 2)
	assert.Len(t, rights[b.PublicID], 1)
	assert.Equal(t, "carol", rights[b.PublicID][0].GranteeID)
	_, hasC := rights[c.PublicID]
	assert.False(t, hasC)

	grantees := []string{rights[a.PublicID][0].GranteeID, rights[a.PublicID][1].GranteeID}
	assert.ElementsMatch(t, []string{"bob", "carol"}, grantees)

	empty, err := store.ListRights(testContext())
	require.NoError(t, err)
	assert.Empty(t, empty)
}
