package testing

import (
	"testing"

	"github.com/marmos91/dittodrive/pkg/store/content"
	"github.com/stretchr/testify/assert"
)

// RunBasicTests covers Exists, Write and Read.
func (suite *StoreTestSuite) RunBasicTests(t *testing.T) {
	t.Run("Read_NotFound", suite.testReadNotFound)
	t.Run("Read_Success", suite.testReadSuccess)
	t.Run("Read_Empty", suite.testReadEmpty)
	t.Run("Read_Large", suite.testReadLarge)
	t.Run("Exists", suite.testExists)
	t.Run("Write_Overwrite", suite.testWriteOverwrite)
	t.Run("Write_CallerBufferNotShared", suite.testWriteCopiesBuffer)
	t.Run("Write_InvalidKey", suite.testWriteInvalidKey)
}

func (suite *StoreTestSuite) testReadNotFound(t *testing.T) {
	store := suite.NewStore()

	_, err := store.Read(testContext(), generateTestKey("missing"))
	AssertErrorIs(t, content.ErrBlobNotFound, err)
}

func (suite *StoreTestSuite) testReadSuccess(t *testing.T) {
	store := suite.NewStore()
	key := generateTestKey("read")

	mustWrite(t, store, key, []byte("Hello, World!"))
	assert.Equal(t, []byte("Hello, World!"), mustRead(t, store, key))
}

func (suite *StoreTestSuite) testReadEmpty(t *testing.T) {
	store := suite.NewStore()
	key := generateTestKey("empty")

	mustWrite(t, store, key, []byte{})
	assertExists(t, store, key, true)
	assert.Empty(t, mustRead(t, store, key))
}

func (suite *StoreTestSuite) testReadLarge(t *testing.T) {
	store := suite.NewStore()
	key := generateTestKey("large")
	data := generateTestData(4 * 1024 * 1024)

	mustWrite(t, store, key, data)
	assert.Equal(t, data, mustRead(t, store, key))
}

func (suite *StoreTestSuite) testExists(t *testing.T) {
	store := suite.NewStore()
	key := generateTestKey("exists")

	assertExists(t, store, key, false)
	mustWrite(t, store, key, []byte("x"))
	assertExists(t, store, key, true)
}

func (suite *StoreTestSuite) testWriteOverwrite(t *testing.T) {
	store := suite.NewStore()
	key := generateTestKey("overwrite")

	mustWrite(t, store, key, []byte("old data that is long"))
	mustWrite(t, store, key, []byte("new"))
	assert.Equal(t, []byte("new"), mustRead(t, store, key))
}

func (suite *StoreTestSuite) testWriteCopiesBuffer(t *testing.T) {
	store := suite.NewStore()
	key := generateTestKey("copy")

	buf := []byte("original")
	mustWrite(t, store, key, buf)
	copy(buf, "MUTATED!")

	assert.Equal(t, []byte("original"), mustRead(t, store, key))
}

func (suite *StoreTestSuite) testWriteInvalidKey(t *testing.T) {
	store := suite.NewStore()

	err := store.Write(testContext(), "../outside", []byte("x"))
	AssertErrorIs(t, content.ErrInvalidKey, err)
}
