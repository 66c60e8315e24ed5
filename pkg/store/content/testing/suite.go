package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittodrive/pkg/store/content"
)

// StoreTestSuite is a contract test suite for BlobStore implementations.
// It tests the interface behavior only, so it can run unchanged against
// memory, filesystem and S3 backends.
//
// Usage:
//
//	func TestMyBlobStore(t *testing.T) {
//	    suite := &testing.StoreTestSuite{
//	        NewStore: func() content.BlobStore {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test.
	NewStore func() content.BlobStore
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("BasicOperations", suite.RunBasicTests)
	t.Run("DeleteOperations", suite.RunDeleteTests)
	t.Run("Listing", suite.RunListTests)
}

func testContext() context.Context {
	return context.Background()
}
