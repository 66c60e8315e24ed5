package testing

import (
	"testing"

	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// StoreTestSuite is a contract test suite for Registry implementations.
// It tests the interface behavior, not implementation details, so the same
// suite runs against memory, badger and sql registries.
//
// Usage:
//
//	func TestMyRegistry(t *testing.T) {
//	    suite := &testing.StoreTestSuite{
//	        NewStore: func(t *testing.T, opts metadata.Options) metadata.Registry {
//	            return myregistry.New(opts)
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty registry for each test. Tests pass
	// custom Options to control id generation and resolution bounds.
	NewStore func(t *testing.T, opts metadata.Options) metadata.Registry
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(test *testing.T) {
	test.Run("StorageKeys", suite.RunStorageKeyTests)
	test.Run("Files", suite.RunFileTests)
	test.Run("Listing", suite.RunListingTests)
	test.Run("Rights", suite.RunRightTests)
	test.Run("Users", suite.RunUserTests)
}

func (suite *StoreTestSuite) newStore(t *testing.T, opts metadata.Options) metadata.Registry {
	t.Helper()
	store := suite.NewStore(t, opts)
	t.Cleanup(func() { _ = store.Close() })
	return store
}
