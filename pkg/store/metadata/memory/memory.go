// Package memory implements metadata.Registry with in-process maps, for
// tests and single-process development.
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

var errClosed = errors.New("registry closed")

// MemoryRegistry implements metadata.Registry in memory.
//
// Suitable for tests and single-process development. All state is lost on
// exit.
//
// Thread Safety:
// A single RWMutex guards all maps. Storage key resolution runs entirely
// under the write lock, so the claim check and the reservation are one
// atomic step. That includes the KeyProbe: with a filesystem or S3 blob
// store every candidate costs a blob lookup, and all other registry calls
// wait behind it. Use the badger or sql registry for anything shared.
type MemoryRegistry struct {
	mu sync.RWMutex

	// files maps public id to file
	files map[string]*metadata.File

	// reservations maps storage key to its reservation
	reservations map[string]*metadata.StorageKeyReservation

	// rights maps public id to grantee id to right
	rights map[string]map[string]metadata.Right

	users map[string]metadata.User

	// owned and shared index public ids by owner and by grantee
	owned  map[string]map[string]struct{}
	shared map[string]map[string]struct{}

	opts   metadata.Options
	now    func() time.Time
	closed bool
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry(opts metadata.Options) *MemoryRegistry {
	return &MemoryRegistry{
		files:        make(map[string]*metadata.File),
		reservations: make(map[string]*metadata.StorageKeyReservation),
		rights:       make(map[string]map[string]metadata.Right),
		users:        make(map[string]metadata.User),
		owned:        make(map[string]map[string]struct{}),
		shared:       make(map[string]map[string]struct{}),
		opts:         opts.WithDefaults(),
		now:          time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (r *MemoryRegistry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *MemoryRegistry) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.closed {
		return metadata.NewIOError("registry", errClosed)
	}
	return nil
}

// ============================================================================
// Storage keys
// ============================================================================

func (r *MemoryRegistry) ReserveStorageKey(ctx context.Context, displayName, ext string, probe metadata.KeyProbe) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.check(ctx); err != nil {
		return "", err
	}

	now := r.now()
	return r.opts.ResolveStorageKey(ctx, displayName, ext, func(ctx context.Context, key string) (bool, error) {
		if _, taken := r.reservations[key]; taken {
			return false, nil
		}
		if probe != nil {
			occupied, err := probe(ctx, key)
			if err != nil {
				return false, err
			}
			if occupied {
				return false, nil
			}
		}
		r.reservations[key] = &metadata.StorageKeyReservation{
			Key:       key,
			State:     metadata.ReservationPending,
			CreatedAt: now,
		}
		return true, nil
	})
}

func (r *MemoryRegistry) ClaimStorageKey(ctx context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.check(ctx); err != nil {
		return false, err
	}

	if _, taken := r.reservations[key]; taken {
		return false, nil
	}
	r.reservations[key] = &metadata.StorageKeyReservation{
		Key:       key,
		State:     metadata.ReservationPending,
		CreatedAt: r.now(),
	}
	return true, nil
}

func (r *MemoryRegistry) ReleaseStorageKey(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.check(ctx); err != nil {
		return err
	}

	if res, ok := r.reservations[key]; ok && res.State == metadata.ReservationPending {
		delete(r.reservations, key)
	}
	return nil
}

func (r *MemoryRegistry) ListStorageKeys(ctx context.Context) ([]metadata.StorageKeyReservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.check(ctx); err != nil {
		return nil, err
	}

	out := make([]metadata.StorageKeyReservation, 0, len(r.reservations))
	for _, res := range r.reservations {
		out = append(out, *res)
	}
	return out, nil
}

// ============================================================================
// Files
// ============================================================================

func (r *MemoryRegistry) CreateFile(ctx context.Context, spec metadata.FileSpec) (*metadata.File, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.check(ctx); err != nil {
		return nil, err
	}

	res, ok := r.reservations[spec.StorageKey]
	if !ok || res.State != metadata.ReservationPending {
		return nil, &metadata.StoreError{
			Code:    metadata.ErrNotReserved,
			Message: "storage key has no pending reservation",
			Key:     spec.StorageKey,
		}
	}

	id, err := r.opts.AssignPublicID(ctx, func(id string) (bool, error) {
		_, taken := r.files[id]
		return taken, nil
	})
	if err != nil {
		return nil, err
	}

	now := r.now()
	file := &metadata.File{
		PublicID:    id,
		DisplayName: spec.DisplayName,
		Extension:   spec.Extension,
		StorageKey:  spec.StorageKey,
		OwnerID:     spec.OwnerID,
		Size:        spec.Size,
		ContentType: spec.ContentType,
		Checksum:    spec.Checksum,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	r.files[id] = file
	res.State = metadata.ReservationBound
	res.FileID = id
	addToIndex(r.owned, spec.OwnerID, id)

	return file.Clone(), nil
}

func (r *MemoryRegistry) GetFile(ctx context.Context, publicID string) (*metadata.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.check(ctx); err != nil {
		return nil, err
	}

	f, ok := r.files[publicID]
	if !ok {
		return nil, metadata.NewNotFoundError("file", publicID)
	}
	return f.Clone(), nil
}

func (r *MemoryRegistry) RenameFile(ctx context.Context, publicID, displayName string) (*metadata.File, error) {
	if strings.TrimSpace(displayName) == "" {
		return nil, metadata.NewInvalidArgumentError("display name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.check(ctx); err != nil {
		return nil, err
	}

	f, ok := r.files[publicID]
	if !ok {
		return nil, metadata.NewNotFoundError("file", publicID)
	}

	f.DisplayName = displayName
	f.UpdatedAt = r.now()
	return f.Clone(), nil
}

func (r *MemoryRegistry) DeleteFile(ctx context.Context, publicID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.check(ctx); err != nil {
		return err
	}

	f, ok := r.files[publicID]
	if !ok {
		return metadata.NewNotFoundError("file", publicID)
	}

	for grantee := range r.rights[publicID] {
		removeFromIndex(r.shared, grantee, publicID)
	}
	delete(r.rights, publicID)
	removeFromIndex(r.owned, f.OwnerID, publicID)
	delete(r.reservations, f.StorageKey)
	delete(r.files, publicID)

	return nil
}

func (r *MemoryRegistry) ListOwnedFiles(ctx context.Context, ownerID string) ([]*metadata.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.check(ctx); err != nil {
		return nil, err
	}

	return r.collect(r.owned[ownerID], func(*metadata.File) bool { return true }), nil
}

func (r *MemoryRegistry) ListFilesSharedWith(ctx context.Context, granteeID string) ([]*metadata.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.check(ctx); err != nil {
		return nil, err
	}

	return r.collect(r.shared[granteeID], func(f *metadata.File) bool {
		return f.OwnerID != granteeID
	}), nil
}

func (r *MemoryRegistry) collect(ids map[string]struct{}, keep func(*metadata.File) bool) []*metadata.File {
	out := make([]*metadata.File, 0, len(ids))
	for id := range ids {
		if f, ok := r.files[id]; ok && keep(f) {
			out = append(out, f.Clone())
		}
	}
	metadata.SortFiles(out)
	return out
}

// ============================================================================
// Rights
// ============================================================================

func (r *MemoryRegistry) ListRights(ctx context.Context, publicIDs ...string) (map[string][]metadata.Right, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.check(ctx); err != nil {
		return nil, err
	}

	out := make(map[string][]metadata.Right)
	for _, id := range publicIDs {
		grants := r.rights[id]
		if len(grants) == 0 {
			continue
		}
		list := make([]metadata.Right, 0, len(grants))
		for _, right := range grants {
			list = append(list, right)
		}
		metadata.SortRights(list)
		out[id] = list
	}
	return out, nil
}

func (r *MemoryRegistry) GrantRight(ctx context.Context, publicID, granteeID string) (*metadata.Right, error) {
	if granteeID == "" {
		return nil, metadata.NewInvalidArgumentError("grantee id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.check(ctx); err != nil {
		return nil, err
	}

	f, ok := r.files[publicID]
	if !ok {
		return nil, metadata.NewNotFoundError("file", publicID)
	}
	if f.OwnerID == granteeID {
		return nil, metadata.NewInvalidArgumentError("cannot grant a right to the file owner")
	}
	if _, exists := r.rights[publicID][granteeID]; exists {
		return nil, &metadata.StoreError{
			Code:    metadata.ErrAlreadyExists,
			Message: "right already granted",
			Key:     publicID + "/" + granteeID,
		}
	}

	right := metadata.Right{
		FileID:    publicID,
		GranteeID: granteeID,
		Kind:      metadata.GrantCoAuthor,
		CreatedAt: r.now(),
	}
	if r.rights[publicID] == nil {
		r.rights[publicID] = make(map[string]metadata.Right)
	}
	r.rights[publicID][granteeID] = right
	addToIndex(r.shared, granteeID, publicID)

	return &right, nil
}

func (r *MemoryRegistry) RevokeRight(ctx context.Context, publicID, granteeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.check(ctx); err != nil {
		return err
	}

	if _, ok := r.rights[publicID][granteeID]; !ok {
		return metadata.NewNotFoundError("right", publicID+"/"+granteeID)
	}

	delete(r.rights[publicID], granteeID)
	if len(r.rights[publicID]) == 0 {
		delete(r.rights, publicID)
	}
	removeFromIndex(r.shared, granteeID, publicID)
	return nil
}

// ============================================================================
// Users
// ============================================================================

func (r *MemoryRegistry) PutUser(ctx context.Context, user metadata.User) error {
	if user.ID == "" {
		return metadata.NewInvalidArgumentError("user id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.check(ctx); err != nil {
		return err
	}

	r.users[user.ID] = user
	return nil
}

func (r *MemoryRegistry) GetUsers(ctx context.Context, ids ...string) (map[string]metadata.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.check(ctx); err != nil {
		return nil, err
	}

	out := make(map[string]metadata.User, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

// Close marks the registry closed; later calls fail.
func (r *MemoryRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func addToIndex(index map[string]map[string]struct{}, key, id string) {
	set, ok := index[key]
	if !ok {
		set = make(map[string]struct{})
		index[key] = set
	}
	set[id] = struct{}{}
}

func removeFromIndex(index map[string]map[string]struct{}, key, id string) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(index, key)
	}
}
