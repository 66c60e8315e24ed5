// Package files implements the file service: upload, rename, delete,
// download and the owned and shared listings.
//
// The service is the only component adapters call. It takes the principal
// explicitly on every call, asks the access package for a decision, and
// coordinates the registry with the blob store so that bytes are written
// before a record commits and removed before a record is deleted.
package files

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/access"
	"github.com/marmos91/dittodrive/pkg/metrics"
	"github.com/marmos91/dittodrive/pkg/naming"
	"github.com/marmos91/dittodrive/pkg/store/content"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// nameRule constrains display names set by rename.
const nameRule = "required,max=255,excludesall=/\\"

var validate = validator.New()

// Config tunes a Service.
type Config struct {
	// BaseURL prefixes file URLs: BaseURL + "/files/" + public id.
	// A trailing slash is ignored.
	BaseURL string

	// Policy decides read access for non-owners.
	Policy access.Policy
}

// Payload is one file of an upload batch.
type Payload struct {
	// Name is the client supplied filename, extension included
	Name string

	Data []byte
}

// UploadResult reports the outcome of one payload, in input order.
type UploadResult struct {
	// Name echoes Payload.Name
	Name string

	PublicID string
	URL      string

	// File is the committed record. Nil when Err is set.
	File *metadata.File

	// Err is a *Error when this payload failed
	Err error
}

// Grantee summarizes a principal holding a Right on an owned file.
type Grantee struct {
	ID       string
	FullName string
	Email    string
	Type     string
}

// OwnedFile is one entry of the owner view.
type OwnedFile struct {
	PublicID string
	Name     string
	URL      string
	Grantees []Grantee
}

// SharedFile is one entry of the shared view.
type SharedFile struct {
	PublicID string
	Name     string
	URL      string
}

// Download is an open blob plus the headers needed to serve it. The caller
// closes Content.
type Download struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.ReadCloser
}

// Service coordinates the registry, the blob store and access control.
//
// Thread Safety:
// Service holds no mutable state. Concurrency guarantees come from the
// registry's atomic operations.
type Service struct {
	registry metadata.Registry
	blobs    content.BlobStore
	policy   access.Policy
	baseURL  string
	metrics  metrics.FileMetrics
}

// NewService creates a Service. m may be nil.
func NewService(registry metadata.Registry, blobs content.BlobStore, cfg Config, m metrics.FileMetrics) *Service {
	if m == nil {
		m = metrics.NewNoopFileMetrics()
	}

	return &Service{
		registry: registry,
		blobs:    blobs,
		policy:   cfg.Policy,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		metrics:  m,
	}
}

// URL returns the external address of a file.
func (s *Service) URL(publicID string) string {
	return s.baseURL + "/files/" + publicID
}

// begin records operation start and returns the matching completion hook.
func (s *Service) begin(op string) func(err error) {
	start := time.Now()
	s.metrics.RecordOperationStart(op)

	return func(err error) {
		s.metrics.RecordOperationEnd(op)
		s.metrics.RecordOperation(op, time.Since(start), errorKind(err))
	}
}

func errorKind(err error) string {
	if err == nil {
		return ""
	}
	return KindOf(err).String()
}

// ============================================================================
// Upload
// ============================================================================

// Upload stores every payload as a new file owned by p.
//
// Items are independent: a failing payload produces an UploadResult with
// Err set and the remaining payloads are still attempted. The returned
// error is only set when the whole batch is rejected (Unauthenticated or
// NoPayload).
func (s *Service) Upload(ctx context.Context, p *access.Principal, payloads []Payload) (results []UploadResult, err error) {
	done := s.begin(metrics.OpUpload)
	defer func() { done(err) }()

	if !p.Authenticated() {
		return nil, newError(KindUnauthenticated, access.ErrUnauthenticated)
	}
	if len(payloads) == 0 {
		return nil, ErrNoPayload
	}

	results = make([]UploadResult, len(payloads))
	for i, payload := range payloads {
		results[i].Name = payload.Name

		file, err := s.uploadOne(ctx, p, payload)
		s.metrics.RecordUploadItem(errorKind(err))
		if err != nil {
			logger.Warn("upload %q by %s failed: %v", payload.Name, p.ID, err)
			results[i].Err = err
			continue
		}

		s.metrics.RecordBytes(metrics.DirectionIn, file.Size)
		results[i].PublicID = file.PublicID
		results[i].URL = s.URL(file.PublicID)
		results[i].File = file
	}

	return results, nil
}

// uploadOne runs reserve, write, commit for a single payload.
//
// A failed write releases the reservation. A failed commit deletes the blob
// and releases the reservation. Cleanup failures are logged and left to the
// orphan collector.
func (s *Service) uploadOne(ctx context.Context, p *access.Principal, payload Payload) (*metadata.File, error) {
	base, ext := naming.SplitName(payload.Name)

	// Step 1: claim a storage key, skipping keys already on the blob store
	key, err := s.registry.ReserveStorageKey(ctx, base, ext, s.blobs.Exists)
	if err != nil {
		return nil, translate(err)
	}

	// A blank name resolves to a generated slug, which doubles as the
	// display name.
	if strings.TrimSpace(base) == "" {
		base = fallbackDisplayName(key, ext)
	}

	// Step 2: bytes before record
	if err := s.blobs.Write(ctx, key, payload.Data); err != nil {
		s.release(ctx, key)
		return nil, translate(err)
	}

	// Step 3: commit the record, binding the reservation
	sum := sha256.Sum256(payload.Data)
	file, err := s.registry.CreateFile(ctx, metadata.FileSpec{
		StorageKey:  key,
		DisplayName: base,
		Extension:   ext,
		OwnerID:     p.ID,
		Size:        int64(len(payload.Data)),
		ContentType: mimetype.Detect(payload.Data).String(),
		Checksum:    hex.EncodeToString(sum[:]),
	})
	if err != nil {
		cleanup := context.WithoutCancel(ctx)
		if derr := s.blobs.Delete(cleanup, key); derr != nil {
			logger.Warn("upload: could not remove blob %s after failed commit: %v", key, derr)
		}
		s.release(ctx, key)
		return nil, translate(err)
	}

	logger.Debug("upload: %s stored as %s (%d bytes)", file.PublicID, key, file.Size)
	return file, nil
}

// fallbackDisplayName strips the extension from a resolved storage key.
func fallbackDisplayName(key, ext string) string {
	if ext == "" {
		return key
	}
	return strings.TrimSuffix(key, "."+ext)
}

func (s *Service) release(ctx context.Context, key string) {
	if err := s.registry.ReleaseStorageKey(context.WithoutCancel(ctx), key); err != nil {
		logger.Warn("upload: could not release storage key %s: %v", key, err)
	}
}

// ============================================================================
// Rename / Delete
// ============================================================================

// authorized loads a file and checks that p may perform action on it.
// Existence is checked before authorization.
func (s *Service) authorized(ctx context.Context, p *access.Principal, publicID string, action access.Action) (*metadata.File, error) {
	file, err := s.registry.GetFile(ctx, publicID)
	if err != nil {
		return nil, translate(err)
	}

	var rights []metadata.Right
	if s.policy.NeedsRights(action) {
		byFile, err := s.registry.ListRights(ctx, publicID)
		if err != nil {
			return nil, translate(err)
		}
		rights = byFile[publicID]
	}

	decision := s.policy.Authorize(p, file, action, rights)
	if !decision.Allowed {
		logger.Debug("access denied: %s", decision.Detail)
		return nil, translate(decision.Err())
	}

	return file, nil
}

// Rename changes the display name of a file owned by p. The extension and
// storage key are unchanged.
func (s *Service) Rename(ctx context.Context, p *access.Principal, publicID, newName string) (file *metadata.File, err error) {
	done := s.begin(metrics.OpRename)
	defer func() { done(err) }()

	if _, err := s.authorized(ctx, p, publicID, access.ActionMutate); err != nil {
		return nil, err
	}

	// Name checks come after existence and ownership, so strangers learn
	// nothing from them.
	newName = strings.TrimSpace(newName)
	if err := validate.Var(newName, nameRule); err != nil {
		return nil, newError(KindInvalidName, err)
	}

	file, err = s.registry.RenameFile(ctx, publicID, newName)
	if err != nil {
		return nil, translate(err)
	}

	logger.Info("rename: %s -> %q by %s", publicID, newName, p.ID)
	return file, nil
}

// Delete removes a file owned by p.
//
// Bytes are deleted first. If that fails the record is left untouched and
// KindBackendFailure is returned, so a record never points at missing bytes
// because of a half-finished delete.
func (s *Service) Delete(ctx context.Context, p *access.Principal, publicID string) (err error) {
	done := s.begin(metrics.OpDelete)
	defer func() { done(err) }()

	file, err := s.authorized(ctx, p, publicID, access.ActionMutate)
	if err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, file.StorageKey); err != nil {
		return newError(KindBackendFailure, err)
	}

	if err := s.registry.DeleteFile(ctx, publicID); err != nil {
		return translate(err)
	}

	logger.Info("delete: %s (%s) by %s", publicID, file.StorageKey, p.ID)
	return nil
}

// ============================================================================
// Download
// ============================================================================

// Download opens the bytes of a file p may read. A record whose blob is
// missing is reported as KindNotFound.
func (s *Service) Download(ctx context.Context, p *access.Principal, publicID string) (dl *Download, err error) {
	done := s.begin(metrics.OpDownload)
	defer func() { done(err) }()

	file, err := s.authorized(ctx, p, publicID, access.ActionRead)
	if err != nil {
		return nil, err
	}

	rc, err := s.blobs.Read(ctx, file.StorageKey)
	if err != nil {
		err = translate(err)
		if KindOf(err) == KindNotFound {
			logger.Warn("download: record %s has no blob at %s", publicID, file.StorageKey)
		}
		return nil, err
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	s.metrics.RecordBytes(metrics.DirectionOut, file.Size)
	return &Download{
		Filename:    file.Filename(),
		ContentType: contentType,
		Size:        file.Size,
		Content:     rc,
	}, nil
}

// ============================================================================
// Listings
// ============================================================================

// ListOwned returns p's files with their grantees, oldest first.
func (s *Service) ListOwned(ctx context.Context, p *access.Principal) (out []OwnedFile, err error) {
	done := s.begin(metrics.OpListOwned)
	defer func() { done(err) }()

	if !p.Authenticated() {
		return nil, newError(KindUnauthenticated, access.ErrUnauthenticated)
	}

	owned, err := s.registry.ListOwnedFiles(ctx, p.ID)
	if err != nil {
		return nil, translate(err)
	}

	ids := make([]string, len(owned))
	for i, f := range owned {
		ids[i] = f.PublicID
	}

	rights, err := s.registry.ListRights(ctx, ids...)
	if err != nil {
		return nil, translate(err)
	}

	granteeIDs := make([]string, 0)
	seen := make(map[string]bool)
	for _, list := range rights {
		for _, r := range list {
			if !seen[r.GranteeID] {
				seen[r.GranteeID] = true
				granteeIDs = append(granteeIDs, r.GranteeID)
			}
		}
	}

	users, err := s.registry.GetUsers(ctx, granteeIDs...)
	if err != nil {
		return nil, translate(err)
	}

	out = make([]OwnedFile, 0, len(owned))
	for _, f := range owned {
		entry := OwnedFile{
			PublicID: f.PublicID,
			Name:     f.DisplayName,
			URL:      s.URL(f.PublicID),
			Grantees: make([]Grantee, 0, len(rights[f.PublicID])),
		}
		for _, r := range rights[f.PublicID] {
			if r.GranteeID == f.OwnerID {
				continue
			}
			u := users[r.GranteeID]
			entry.Grantees = append(entry.Grantees, Grantee{
				ID:       r.GranteeID,
				FullName: u.FullName,
				Email:    u.Email,
				Type:     string(r.Kind),
			})
		}
		out = append(out, entry)
	}

	return out, nil
}

// ListShared returns files other principals shared with p, oldest first.
// Files p owns never appear, even if a Right names p.
func (s *Service) ListShared(ctx context.Context, p *access.Principal) (out []SharedFile, err error) {
	done := s.begin(metrics.OpListShared)
	defer func() { done(err) }()

	if !p.Authenticated() {
		return nil, newError(KindUnauthenticated, access.ErrUnauthenticated)
	}

	shared, err := s.registry.ListFilesSharedWith(ctx, p.ID)
	if err != nil {
		return nil, translate(err)
	}

	out = make([]SharedFile, 0, len(shared))
	for _, f := range shared {
		if f.OwnerID == p.ID {
			continue
		}
		out = append(out, SharedFile{
			PublicID: f.PublicID,
			Name:     f.DisplayName,
			URL:      s.URL(f.PublicID),
		})
	}

	return out, nil
}
