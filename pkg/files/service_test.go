package files_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/dittodrive/pkg/access"
	"github.com/marmos91/dittodrive/pkg/files"
	"github.com/marmos91/dittodrive/pkg/metrics"
	"github.com/marmos91/dittodrive/pkg/store/content"
	blobmemory "github.com/marmos91/dittodrive/pkg/store/content/memory"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	regmemory "github.com/marmos91/dittodrive/pkg/store/metadata/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "https://drive.example.com"

var (
	alice = &access.Principal{ID: "alice", Username: "alice"}
	bob   = &access.Principal{ID: "bob", Username: "bob"}
)

// ============================================================================
// Fixtures
// ============================================================================

// flakyBlobs fails selected operations on selected keys.
type flakyBlobs struct {
	content.BlobStore

	mu          sync.Mutex
	failWrite   map[string]bool
	failDelete  bool
	deleteCalls int
}

func (b *flakyBlobs) Write(ctx context.Context, key string, data []byte) error {
	b.mu.Lock()
	fail := b.failWrite[key]
	b.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return b.BlobStore.Write(ctx, key, data)
}

func (b *flakyBlobs) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	b.deleteCalls++
	fail := b.failDelete
	b.mu.Unlock()
	if fail {
		return errors.New("permission denied")
	}
	return b.BlobStore.Delete(ctx, key)
}

// failingCommit rejects every CreateFile call.
type failingCommit struct {
	metadata.Registry
}

func (failingCommit) CreateFile(context.Context, metadata.FileSpec) (*metadata.File, error) {
	return nil, metadata.NewIOError("create file", errors.New("db gone"))
}

// leakyShares returns the principal's own files from ListFilesSharedWith,
// as a registry holding a stray self Right might.
type leakyShares struct {
	metadata.Registry
}

func (r leakyShares) ListFilesSharedWith(ctx context.Context, granteeID string) ([]*metadata.File, error) {
	shared, err := r.Registry.ListFilesSharedWith(ctx, granteeID)
	if err != nil {
		return nil, err
	}
	own, err := r.Registry.ListOwnedFiles(ctx, granteeID)
	if err != nil {
		return nil, err
	}
	return append(own, shared...), nil
}

type recordingMetrics struct {
	mu       sync.Mutex
	ops      map[string][]string
	items    []string
	bytes    map[string]int64
	inFlight map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		ops:      map[string][]string{},
		bytes:    map[string]int64{},
		inFlight: map[string]int{},
	}
}

func (m *recordingMetrics) RecordOperation(op string, _ time.Duration, errorKind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops[op] = append(m.ops[op], errorKind)
}

func (m *recordingMetrics) RecordOperationStart(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight[op]++
}

func (m *recordingMetrics) RecordOperationEnd(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight[op]--
}

func (m *recordingMetrics) RecordUploadItem(errorKind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, errorKind)
}

func (m *recordingMetrics) RecordBytes(direction string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytes[direction] += n
}

type fixture struct {
	svc      *files.Service
	registry metadata.Registry
	blobs    *flakyBlobs
	metrics  *recordingMetrics
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	policy access.Policy
	wrap   func(metadata.Registry) metadata.Registry
}

func withPolicy(p access.Policy) fixtureOption {
	return func(c *fixtureConfig) { c.policy = p }
}

func withRegistry(wrap func(metadata.Registry) metadata.Registry) fixtureOption {
	return func(c *fixtureConfig) { c.wrap = wrap }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	var cfg fixtureConfig
	for _, o := range opts {
		o(&cfg)
	}

	inner, err := blobmemory.NewMemoryBlobStore(context.Background())
	require.NoError(t, err)

	var reg metadata.Registry = regmemory.NewMemoryRegistry(metadata.Options{})
	if cfg.wrap != nil {
		reg = cfg.wrap(reg)
	}

	blobs := &flakyBlobs{BlobStore: inner, failWrite: map[string]bool{}}
	rec := newRecordingMetrics()

	return &fixture{
		svc:      files.NewService(reg, blobs, files.Config{BaseURL: baseURL + "/", Policy: cfg.policy}, rec),
		registry: reg,
		blobs:    blobs,
		metrics:  rec,
	}
}

func (f *fixture) upload(t *testing.T, p *access.Principal, name, data string) *metadata.File {
	t.Helper()

	results, err := f.svc.Upload(context.Background(), p, []files.Payload{{Name: name, Data: []byte(data)}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.NotNil(t, results[0].File)
	return results[0].File
}

func (f *fixture) blobExists(t *testing.T, key string) bool {
	t.Helper()

	ok, err := f.blobs.Exists(context.Background(), key)
	require.NoError(t, err)
	return ok
}

func (f *fixture) reservation(t *testing.T, key string) (metadata.StorageKeyReservation, bool) {
	t.Helper()

	all, err := f.registry.ListStorageKeys(context.Background())
	require.NoError(t, err)
	for _, r := range all {
		if r.Key == key {
			return r, true
		}
	}
	return metadata.StorageKeyReservation{}, false
}

func readAll(t *testing.T, dl *files.Download) string {
	t.Helper()

	defer dl.Content.Close()
	data, err := io.ReadAll(dl.Content)
	require.NoError(t, err)
	return string(data)
}

// ============================================================================
// Upload
// ============================================================================

func TestUpload_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	results, err := f.svc.Upload(ctx, alice, []files.Payload{
		{Name: "Report.pdf", Data: []byte("%PDF-1.4 body")},
		{Name: "notes.txt", Data: []byte("hello")},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	first := results[0]
	require.NoError(t, first.Err)
	assert.Equal(t, "Report.pdf", first.Name)
	assert.NotEmpty(t, first.PublicID)
	assert.Equal(t, baseURL+"/files/"+first.PublicID, first.URL)
	assert.Equal(t, "Report", first.File.DisplayName)
	assert.Equal(t, "pdf", first.File.Extension)
	assert.Equal(t, "report.pdf", first.File.StorageKey)
	assert.Equal(t, "alice", first.File.OwnerID)
	assert.Equal(t, "application/pdf", first.File.ContentType)
	assert.Len(t, first.File.Checksum, 64)

	assert.Equal(t, "notes.txt", results[1].Name)
	assert.Equal(t, "notes.txt", results[1].File.StorageKey)

	assert.True(t, f.blobExists(t, "report.pdf"))
	res, ok := f.reservation(t, "report.pdf")
	require.True(t, ok)
	assert.Equal(t, metadata.ReservationBound, res.State)
	assert.Equal(t, first.PublicID, res.FileID)

	assert.Equal(t, []string{""}, f.metrics.ops[metrics.OpUpload])
	assert.Equal(t, []string{"", ""}, f.metrics.items)
	assert.Equal(t, int64(18), f.metrics.bytes[metrics.DirectionIn])
	assert.Zero(t, f.metrics.inFlight[metrics.OpUpload])
}

func TestUpload_OwnerViewAndSharedView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	file := f.upload(t, alice, "Report.pdf", "x")

	owned, err := f.svc.ListOwned(ctx, alice)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, file.PublicID, owned[0].PublicID)
	assert.Equal(t, "Report", owned[0].Name)
	assert.Empty(t, owned[0].Grantees)

	shared, err := f.svc.ListShared(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, shared)
}

func TestUpload_SameNameGetsNextKey(t *testing.T) {
	f := newFixture(t)

	first := f.upload(t, alice, "Report.pdf", "one")
	second := f.upload(t, bob, "Report.pdf", "two")

	assert.Equal(t, "report.pdf", first.StorageKey)
	assert.Equal(t, "report (1).pdf", second.StorageKey)
	assert.Equal(t, "Report", second.DisplayName)
	assert.NotEqual(t, first.PublicID, second.PublicID)
}

func TestUpload_ManySameNameDistinctKeys(t *testing.T) {
	f := newFixture(t)

	const n = 25
	payloads := make([]files.Payload, n)
	for i := range payloads {
		payloads[i] = files.Payload{Name: "a.txt", Data: []byte(fmt.Sprintf("v%d", i))}
	}

	results, err := f.svc.Upload(context.Background(), alice, payloads)
	require.NoError(t, err)

	keys := make(map[string]bool)
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, "a", r.File.DisplayName)
		assert.False(t, keys[r.File.StorageKey], "duplicate key %s", r.File.StorageKey)
		keys[r.File.StorageKey] = true
	}
	assert.Len(t, keys, n)
}

func TestUpload_ConcurrentSameName(t *testing.T) {
	f := newFixture(t)

	const n = 20
	keys := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results, err := f.svc.Upload(context.Background(), alice, []files.Payload{{Name: "a.txt", Data: []byte("x")}})
			if assert.NoError(t, err) && assert.NoError(t, results[0].Err) {
				keys[i] = results[0].File.StorageKey
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, k := range keys {
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
}

func TestUpload_NonAlphanumericName(t *testing.T) {
	f := newFixture(t)

	first := f.upload(t, alice, "!!!.txt", "x")
	second := f.upload(t, alice, "???.txt", "y")

	assert.NotEmpty(t, first.StorageKey)
	assert.NotEqual(t, ".txt", first.StorageKey)
	assert.NotEqual(t, first.StorageKey, second.StorageKey)
	assert.Equal(t, "!!!", first.DisplayName)
}

func TestUpload_BlankName(t *testing.T) {
	tests := []struct {
		name string
		ext  string
	}{
		{"", ""},
		{" ", ""},
		{"   .pdf", "pdf"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.name), func(t *testing.T) {
			f := newFixture(t)

			file := f.upload(t, alice, tt.name, "data")
			assert.Regexp(t, `^file-[0-9a-f]{8}$`, file.DisplayName)
			assert.Equal(t, tt.ext, file.Extension)
			assert.Equal(t, file.Filename(), file.StorageKey)
			assert.True(t, f.blobExists(t, file.StorageKey))

			res, ok := f.reservation(t, file.StorageKey)
			require.True(t, ok)
			assert.Equal(t, metadata.ReservationBound, res.State)
		})
	}
}

func TestUpload_SkipsOrphanBlob(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.blobs.Write(context.Background(), "report.pdf", []byte("orphan")))

	file := f.upload(t, alice, "Report.pdf", "fresh")
	assert.Equal(t, "report (1).pdf", file.StorageKey)
}

func TestUpload_Rejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, nil, []files.Payload{{Name: "a.txt"}})
	assert.ErrorIs(t, err, files.ErrUnauthenticated)

	_, err = f.svc.Upload(ctx, &access.Principal{}, []files.Payload{{Name: "a.txt"}})
	assert.ErrorIs(t, err, files.ErrUnauthenticated)

	_, err = f.svc.Upload(ctx, alice, nil)
	assert.ErrorIs(t, err, files.ErrNoPayload)

	owned, err := f.svc.ListOwned(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, owned)
	assert.Equal(t, []string{"unauthenticated", "unauthenticated", "no_payload"}, f.metrics.ops[metrics.OpUpload])
}

func TestUpload_BestEffortOnWriteFailure(t *testing.T) {
	f := newFixture(t)
	f.blobs.failWrite["broken.txt"] = true

	results, err := f.svc.Upload(context.Background(), alice, []files.Payload{
		{Name: "ok.txt", Data: []byte("1")},
		{Name: "broken.txt", Data: []byte("2")},
		{Name: "", Data: []byte("3")},
		{Name: "also-ok.txt", Data: []byte("4")},
	})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, files.ErrBackendFailure)
	assert.Empty(t, results[1].PublicID)
	assert.Nil(t, results[1].File)
	assert.ErrorIs(t, results[2].Err, files.ErrInvalidName)
	assert.NoError(t, results[3].Err)

	_, reserved := f.reservation(t, "broken.txt")
	assert.False(t, reserved, "failed write releases the reservation")

	owned, err := f.svc.ListOwned(context.Background(), alice)
	require.NoError(t, err)
	assert.Len(t, owned, 2)
	assert.Equal(t, []string{"", "backend_failure", "invalid_name", ""}, f.metrics.items)
}

func TestUpload_CommitFailureCleansUp(t *testing.T) {
	f := newFixture(t, withRegistry(func(r metadata.Registry) metadata.Registry {
		return failingCommit{Registry: r}
	}))

	results, err := f.svc.Upload(context.Background(), alice, []files.Payload{{Name: "a.txt", Data: []byte("x")}})
	require.NoError(t, err)
	assert.ErrorIs(t, results[0].Err, files.ErrBackendFailure)

	assert.False(t, f.blobExists(t, "a.txt"), "blob removed after failed commit")
	_, reserved := f.reservation(t, "a.txt")
	assert.False(t, reserved, "reservation released after failed commit")
}

// ============================================================================
// Rename
// ============================================================================

func TestRename(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	file := f.upload(t, alice, "Report.pdf", "x")

	renamed, err := f.svc.Rename(ctx, alice, file.PublicID, "  Final  ")
	require.NoError(t, err)
	assert.Equal(t, "Final", renamed.DisplayName)
	assert.Equal(t, "pdf", renamed.Extension)
	assert.Equal(t, "report.pdf", renamed.StorageKey)

	dl, err := f.svc.Download(ctx, alice, file.PublicID)
	require.NoError(t, err)
	assert.Equal(t, "Final.pdf", dl.Filename)
	assert.Equal(t, "x", readAll(t, dl))
}

func TestRename_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	file := f.upload(t, alice, "Report.pdf", "x")

	tests := []struct {
		name string
		p    *access.Principal
		id   string
		to   string
		want error
	}{
		{"missing file", alice, "nope", "x", files.ErrNotFound},
		{"missing file beats auth", nil, "nope", "x", files.ErrNotFound},
		{"anonymous", nil, file.PublicID, "x", files.ErrUnauthenticated},
		{"not owner", bob, file.PublicID, "x", files.ErrForbidden},
		{"blank name", alice, file.PublicID, "   ", files.ErrInvalidName},
		{"slash in name", alice, file.PublicID, "a/b", files.ErrInvalidName},
		{"backslash in name", alice, file.PublicID, `a\b`, files.ErrInvalidName},
		{"too long", alice, file.PublicID, strings.Repeat("x", 256), files.ErrInvalidName},
		{"not owner bad name", bob, file.PublicID, "a/b", files.ErrForbidden},
		{"missing file bad name", alice, "nope", "a/b", files.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Rename(ctx, tt.p, tt.id, tt.to)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	got, err := f.registry.GetFile(ctx, file.PublicID)
	require.NoError(t, err)
	assert.Equal(t, "Report", got.DisplayName, "failed renames have no effect")
}

func TestRename_GranteeForbidden(t *testing.T) {
	f := newFixture(t, withPolicy(access.Policy{GranteesCanRead: true}))
	ctx := context.Background()
	file := f.upload(t, alice, "a.txt", "x")
	_, err := f.registry.GrantRight(ctx, file.PublicID, bob.ID)
	require.NoError(t, err)

	_, err = f.svc.Rename(ctx, bob, file.PublicID, "mine")
	assert.ErrorIs(t, err, files.ErrForbidden)
}

// ============================================================================
// Delete
// ============================================================================

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	file := f.upload(t, alice, "a.txt", "x")
	_, err := f.registry.GrantRight(ctx, file.PublicID, bob.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, alice, file.PublicID))

	assert.False(t, f.blobExists(t, "a.txt"))
	_, err = f.registry.GetFile(ctx, file.PublicID)
	assert.True(t, metadata.IsNotFound(err))

	rights, err := f.registry.ListRights(ctx, file.PublicID)
	require.NoError(t, err)
	assert.Empty(t, rights, "rights cascade with the file")

	shared, err := f.svc.ListShared(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, shared)

	err = f.svc.Delete(ctx, alice, file.PublicID)
	assert.ErrorIs(t, err, files.ErrNotFound)
}

func TestDelete_FreesStorageKey(t *testing.T) {
	f := newFixture(t)
	file := f.upload(t, alice, "a.txt", "x")
	require.NoError(t, f.svc.Delete(context.Background(), alice, file.PublicID))

	again := f.upload(t, alice, "a.txt", "y")
	assert.Equal(t, "a.txt", again.StorageKey)
}

func TestDelete_NotOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	file := f.upload(t, alice, "a.txt", "x")

	assert.ErrorIs(t, f.svc.Delete(ctx, bob, file.PublicID), files.ErrForbidden)
	assert.ErrorIs(t, f.svc.Delete(ctx, nil, file.PublicID), files.ErrUnauthenticated)

	assert.True(t, f.blobExists(t, "a.txt"))
	_, err := f.registry.GetFile(ctx, file.PublicID)
	require.NoError(t, err)
	assert.Zero(t, f.blobs.deleteCalls, "no blob touched before authorization")
}

func TestDelete_BlobFailureKeepsRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	file := f.upload(t, alice, "a.txt", "x")
	f.blobs.failDelete = true

	err := f.svc.Delete(ctx, alice, file.PublicID)
	assert.ErrorIs(t, err, files.ErrBackendFailure)

	_, err = f.registry.GetFile(ctx, file.PublicID)
	assert.NoError(t, err, "record survives a failed byte removal")
	assert.Equal(t, []string{"backend_failure"}, f.metrics.ops[metrics.OpDelete])
}

// ============================================================================
// Download
// ============================================================================

func TestDownload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	file := f.upload(t, alice, "Report.pdf", "%PDF-1.4 body")

	dl, err := f.svc.Download(ctx, alice, file.PublicID)
	require.NoError(t, err)
	assert.Equal(t, "Report.pdf", dl.Filename)
	assert.Equal(t, "application/pdf", dl.ContentType)
	assert.Equal(t, int64(13), dl.Size)
	assert.Equal(t, "%PDF-1.4 body", readAll(t, dl))
	assert.Equal(t, int64(13), f.metrics.bytes[metrics.DirectionOut])
}

func TestDownload_NoExtension(t *testing.T) {
	f := newFixture(t)
	file := f.upload(t, alice, "README", "hi")

	dl, err := f.svc.Download(context.Background(), alice, file.PublicID)
	require.NoError(t, err)
	assert.Equal(t, "README", dl.Filename)
	readAll(t, dl)
}

func TestDownload_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	file := f.upload(t, alice, "a.txt", "x")
	_, err := f.registry.GrantRight(ctx, file.PublicID, bob.ID)
	require.NoError(t, err)

	_, err = f.svc.Download(ctx, alice, "nope")
	assert.ErrorIs(t, err, files.ErrNotFound)

	_, err = f.svc.Download(ctx, nil, file.PublicID)
	assert.ErrorIs(t, err, files.ErrUnauthenticated)

	_, err = f.svc.Download(ctx, bob, file.PublicID)
	assert.ErrorIs(t, err, files.ErrForbidden, "grantees cannot download by default")

	_, err = f.svc.Download(ctx, &access.Principal{ID: "carol"}, file.PublicID)
	assert.ErrorIs(t, err, files.ErrForbidden)
}

func TestDownload_MissingBytes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	file := f.upload(t, alice, "a.txt", "x")
	require.NoError(t, f.blobs.BlobStore.Delete(ctx, "a.txt"))

	_, err := f.svc.Download(ctx, alice, file.PublicID)
	assert.ErrorIs(t, err, files.ErrNotFound)
	assert.ErrorIs(t, err, content.ErrBlobNotFound)
}

func TestDownload_GranteePolicy(t *testing.T) {
	f := newFixture(t, withPolicy(access.Policy{GranteesCanRead: true}))
	ctx := context.Background()
	file := f.upload(t, alice, "a.txt", "x")
	_, err := f.registry.GrantRight(ctx, file.PublicID, bob.ID)
	require.NoError(t, err)

	dl, err := f.svc.Download(ctx, bob, file.PublicID)
	require.NoError(t, err)
	assert.Equal(t, "x", readAll(t, dl))

	_, err = f.svc.Download(ctx, &access.Principal{ID: "carol"}, file.PublicID)
	assert.ErrorIs(t, err, files.ErrForbidden)
}

// ============================================================================
// Listings
// ============================================================================

func TestListOwned_Grantees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.registry.PutUser(ctx, metadata.User{ID: "bob", FullName: "Bob Builder", Email: "bob@example.com"}))

	shared := f.upload(t, alice, "a.txt", "x")
	private := f.upload(t, alice, "b.txt", "y")
	f.upload(t, bob, "c.txt", "z")

	_, err := f.registry.GrantRight(ctx, shared.PublicID, "bob")
	require.NoError(t, err)
	_, err = f.registry.GrantRight(ctx, shared.PublicID, "ghost")
	require.NoError(t, err)

	owned, err := f.svc.ListOwned(ctx, alice)
	require.NoError(t, err)
	require.Len(t, owned, 2)

	byID := map[string]files.OwnedFile{}
	for _, o := range owned {
		byID[o.PublicID] = o
	}

	require.Len(t, byID[shared.PublicID].Grantees, 2)
	grantees := map[string]files.Grantee{}
	for _, g := range byID[shared.PublicID].Grantees {
		grantees[g.ID] = g
	}
	assert.Equal(t, files.Grantee{ID: "bob", FullName: "Bob Builder", Email: "bob@example.com", Type: "co-author"}, grantees["bob"])
	assert.Equal(t, "co-author", grantees["ghost"].Type)
	assert.Empty(t, grantees["ghost"].Email)

	assert.NotNil(t, byID[private.PublicID].Grantees)
	assert.Empty(t, byID[private.PublicID].Grantees)
	assert.Equal(t, baseURL+"/files/"+private.PublicID, byID[private.PublicID].URL)
}

func TestListShared(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	file := f.upload(t, alice, "a.txt", "x")
	f.upload(t, alice, "b.txt", "y")
	_, err := f.registry.GrantRight(ctx, file.PublicID, "bob")
	require.NoError(t, err)

	shared, err := f.svc.ListShared(ctx, bob)
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Equal(t, files.SharedFile{PublicID: file.PublicID, Name: "a", URL: baseURL + "/files/" + file.PublicID}, shared[0])

	mine, err := f.svc.ListShared(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestListShared_ExcludesSelfOwned(t *testing.T) {
	f := newFixture(t, withRegistry(func(r metadata.Registry) metadata.Registry {
		return leakyShares{Registry: r}
	}))
	ctx := context.Background()

	own := f.upload(t, bob, "mine.txt", "x")
	theirs := f.upload(t, alice, "theirs.txt", "y")
	_, err := f.registry.GrantRight(ctx, theirs.PublicID, "bob")
	require.NoError(t, err)

	shared, err := f.svc.ListShared(ctx, bob)
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Equal(t, theirs.PublicID, shared[0].PublicID)
	assert.NotEqual(t, own.PublicID, shared[0].PublicID)
}

func TestListings_Unauthenticated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ListOwned(ctx, nil)
	assert.ErrorIs(t, err, files.ErrUnauthenticated)

	_, err = f.svc.ListShared(ctx, &access.Principal{})
	assert.ErrorIs(t, err, files.ErrUnauthenticated)
}

func TestNewService_NilMetrics(t *testing.T) {
	inner, err := blobmemory.NewMemoryBlobStore(context.Background())
	require.NoError(t, err)
	svc := files.NewService(regmemory.NewMemoryRegistry(metadata.Options{}), inner, files.Config{}, nil)

	results, err := svc.Upload(context.Background(), alice, []files.Payload{{Name: "a.txt", Data: []byte("x")}})
	require.NoError(t, err)
	assert.Equal(t, "/files/"+results[0].PublicID, results[0].URL)
}
