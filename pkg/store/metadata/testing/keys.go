package testing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/marmos91/dittodrive/pkg/naming"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStorageKeyTests covers reservation, release and resolution bounds.
func (suite *StoreTestSuite) RunStorageKeyTests(t *testing.T) {
	t.Run("Reserve_SlugifiesName", suite.testReserveSlugifies)
	t.Run("Reserve_DisambiguatesDuplicates", suite.testReserveDisambiguates)
	t.Run("Reserve_NonAlphanumericName", suite.testReserveNonAlphanumeric)
	t.Run("Reserve_ProbeSkipsOccupied", suite.testReserveProbeSkips)
	t.Run("Reserve_ProbeError", suite.testReserveProbeError)
	t.Run("Reserve_Exhausted", suite.testReserveExhausted)
	t.Run("Reserve_ConcurrentDistinct", suite.testReserveConcurrent)
	t.Run("Claim_FreeKey", suite.testClaimFree)
	t.Run("Claim_ReservedKey", suite.testClaimReserved)
	t.Run("Claim_BlocksResolution", suite.testClaimBlocksResolution)
	t.Run("Claim_ConcurrentSingleWinner", suite.testClaimConcurrent)
	t.Run("Release_Pending", suite.testReleasePending)
	t.Run("Release_BoundIsNoop", suite.testReleaseBound)
}

func (suite *StoreTestSuite) testReserveSlugifies(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})

	key, err := store.ReserveStorageKey(testContext(), "Quarterly Report", "pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, "quarterly-report.pdf", key)

	res, ok := reservationFor(t, store, key)
	require.True(t, ok)
	assert.Equal(t, metadata.ReservationPending, res.State)
	assert.Empty(t, res.FileID)
}

func (suite *StoreTestSuite) testReserveDisambiguates(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})

	for i, want := range []string{"report.pdf", "report (1).pdf", "report (2).pdf"} {
		key, err := store.ReserveStorageKey(testContext(), "Report", "pdf", nil)
		require.NoError(t, err, "attempt %d", i)
		assert.Equal(t, want, key)
	}

	// Same slug with a different extension does not collide.
	key, err := store.ReserveStorageKey(testContext(), "report", "txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "report.txt", key)
}

func (suite *StoreTestSuite) testReserveNonAlphanumeric(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})

	seen := map[string]bool{}
	for _, name := range []string{"", "!!!", "???", "   "} {
		key, err := store.ReserveStorageKey(testContext(), name, "bin", nil)
		require.NoError(t, err)
		assert.NotEmpty(t, key)
		assert.NotEqual(t, ".bin", key)
		assert.False(t, seen[key])
		seen[key] = true
	}
}

func (suite *StoreTestSuite) testReserveProbeSkips(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})

	orphans := map[string]bool{"a.txt": true, "a (1).txt": true}
	probe := func(_ context.Context, key string) (bool, error) {
		return orphans[key], nil
	}

	key, err := store.ReserveStorageKey(testContext(), "a", "txt", probe)
	require.NoError(t, err)
	assert.Equal(t, "a (2).txt", key)

	_, ok := reservationFor(t, store, "a.txt")
	assert.False(t, ok, "skipped candidates must not be reserved")
}

func (suite *StoreTestSuite) testReserveProbeError(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})
	boom := errors.New("blob store down")

	_, err := store.ReserveStorageKey(testContext(), "a", "txt", func(context.Context, string) (bool, error) {
		return false, boom
	})
	assertCode(t, metadata.ErrIOError, err)
	assert.ErrorIs(t, err, boom)

	all, err := store.ListStorageKeys(testContext())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func (suite *StoreTestSuite) testReserveExhausted(t *testing.T) {
	store := suite.newStore(t, metadata.Options{Resolver: naming.NewResolver(2)})

	_, err := store.ReserveStorageKey(testContext(), "a", "txt", nil)
	require.NoError(t, err)
	_, err = store.ReserveStorageKey(testContext(), "a", "txt", nil)
	require.NoError(t, err)

	_, err = store.ReserveStorageKey(testContext(), "a", "txt", nil)
	assertCode(t, metadata.ErrResolutionExhausted, err)
}

func (suite *StoreTestSuite) testReserveConcurrent(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})

	const n = 20
	keys := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key, err := store.ReserveStorageKey(testContext(), "a", "txt", nil)
			assert.NoError(t, err)
			keys[i] = key
		}(i)
	}
	wg.Wait()

	want := make([]string, n)
	for i := range want {
		want[i] = naming.Candidate("a", "txt", i)
	}
	assert.ElementsMatch(t, want, keys, fmt.Sprintf("keys: %v", keys))
}

func (suite *StoreTestSuite) testClaimFree(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})

	claimed, err := store.ClaimStorageKey(testContext(), "orphan.bin")
	require.NoError(t, err)
	assert.True(t, claimed)

	res, ok := reservationFor(t, store, "orphan.bin")
	require.True(t, ok)
	assert.Equal(t, metadata.ReservationPending, res.State)

	require.NoError(t, store.ReleaseStorageKey(testContext(), "orphan.bin"))
	_, ok = reservationFor(t, store, "orphan.bin")
	assert.False(t, ok)
}

func (suite *StoreTestSuite) testClaimReserved(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})

	pending, err := store.ReserveStorageKey(testContext(), "a", "txt", nil)
	require.NoError(t, err)
	file := mustUpload(t, store, "alice", "b", "txt")

	for _, key := range []string{pending, file.StorageKey} {
		claimed, err := store.ClaimStorageKey(testContext(), key)
		require.NoError(t, err)
		assert.False(t, claimed, key)
	}

	res, ok := reservationFor(t, store, file.StorageKey)
	require.True(t, ok)
	assert.Equal(t, metadata.ReservationBound, res.State, "bound reservation untouched")
}

func (suite *StoreTestSuite) testClaimBlocksResolution(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})

	claimed, err := store.ClaimStorageKey(testContext(), "report.txt")
	require.NoError(t, err)
	require.True(t, claimed)

	key, err := store.ReserveStorageKey(testContext(), "report", "txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "report (1).txt", key)
}

func (suite *StoreTestSuite) testClaimConcurrent(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})

	const n = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := store.ClaimStorageKey(testContext(), "a.txt")
			assert.NoError(t, err)
			if claimed {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func (suite *StoreTestSuite) testReleasePending(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})

	key, err := store.ReserveStorageKey(testContext(), "a", "txt", nil)
	require.NoError(t, err)
	require.NoError(t, store.ReleaseStorageKey(testContext(), key))

	again, err := store.ReserveStorageKey(testContext(), "a", "txt", nil)
	require.NoError(t, err)
	assert.Equal(t, key, again, "released key is free again")

	assert.NoError(t, store.ReleaseStorageKey(testContext(), "never-reserved.txt"))
}

func (suite *StoreTestSuite) testReleaseBound(t *testing.T) {
	store := suite.newStore(t, metadata.Options{})
	file := mustUpload(t, store, "alice", "a", "txt")

	require.NoError(t, store.ReleaseStorageKey(testContext(), file.StorageKey))

	res, ok := reservationFor(t, store, file.StorageKey)
	require.True(t, ok)
	assert.Equal(t, metadata.ReservationBound, res.State)
	assert.Equal(t, file.PublicID, res.FileID)
}
