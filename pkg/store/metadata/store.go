// Package metadata defines the file registry: the authoritative record of
// files, share rights, directory users and storage key reservations.
//
// Upload is split into three registry calls around the blob write:
//
//	key, _ := reg.ReserveStorageKey(ctx, "Report", "pdf", blobs.Exists) // pending
//	_ = blobs.Write(ctx, key, data)
//	file, _ := reg.CreateFile(ctx, FileSpec{StorageKey: key, ...})       // bound
//
// A crash between the reservation and CreateFile leaves a pending
// reservation and possibly an orphan blob. Both are cleaned up by the orphan
// collector; neither can be mistaken for a live file.
package metadata

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/naming"
)

// DefaultMaxIDAttempts bounds public id generation retries.
const DefaultMaxIDAttempts = 8

// KeyProbe reports whether a key is already occupied outside the registry,
// typically blob store Exists. It lets resolution skip orphan blobs.
type KeyProbe func(ctx context.Context, key string) (bool, error)

// IDGenerator returns a fresh public id candidate.
type IDGenerator func() string

// NewUUID is the default IDGenerator.
func NewUUID() string {
	return uuid.NewString()
}

// Registry is the repository interface for file records.
//
// Thread Safety:
// Implementations must be safe for concurrent use. Every mutating method is
// atomic: either all of its effects are visible or none are.
type Registry interface {
	// ReserveStorageKey resolves a free storage key for the given name and
	// records a pending reservation for it, atomically.
	//
	// Parameters:
	//   - displayName: original base name, slugified by the resolver
	//   - ext: original extension
	//   - probe: optional external occupancy check (may be nil)
	//
	// Returns the reserved key, or ErrResolutionExhausted.
	ReserveStorageKey(ctx context.Context, displayName, ext string, probe KeyProbe) (string, error)

	// ClaimStorageKey records a pending reservation for exactly key when key
	// has no reservation, atomically. It returns false when key is already
	// reserved, pending or bound.
	//
	// The orphan collector holds such a claim while it deletes a blob, so no
	// upload can reserve the key in between.
	ClaimStorageKey(ctx context.Context, key string) (bool, error)

	// ReleaseStorageKey drops a pending reservation. Releasing a bound or
	// unknown key is a no-op.
	ReleaseStorageKey(ctx context.Context, key string) error

	// CreateFile commits a File for a pending reservation and assigns a
	// unique public id. Returns ErrNotReserved when spec.StorageKey has no
	// pending reservation.
	CreateFile(ctx context.Context, spec FileSpec) (*File, error)

	// GetFile returns the file with the given public id, or ErrNotFound.
	GetFile(ctx context.Context, publicID string) (*File, error)

	// RenameFile changes the display name only.
	RenameFile(ctx context.Context, publicID, displayName string) (*File, error)

	// DeleteFile removes the file record, its reservation and every Right
	// referencing it. Returns ErrNotFound when the file doesn't exist.
	DeleteFile(ctx context.Context, publicID string) error

	// ListOwnedFiles returns files owned by ownerID, oldest first.
	ListOwnedFiles(ctx context.Context, ownerID string) ([]*File, error)

	// ListFilesSharedWith returns files granteeID holds a Right on,
	// excluding files granteeID owns, oldest first.
	ListFilesSharedWith(ctx context.Context, granteeID string) ([]*File, error)

	// ListRights returns the Rights on each given file, keyed by public id.
	// Files without rights are absent from the map.
	ListRights(ctx context.Context, publicIDs ...string) (map[string][]Right, error)

	// GrantRight records a co-author Right. Granting to the file owner is
	// rejected with ErrInvalidArgument; granting twice is ErrAlreadyExists.
	GrantRight(ctx context.Context, publicID, granteeID string) (*Right, error)

	// RevokeRight removes a Right, or returns ErrNotFound.
	RevokeRight(ctx context.Context, publicID, granteeID string) error

	// PutUser inserts or replaces a directory user.
	PutUser(ctx context.Context, user User) error

	// GetUsers returns the known users among ids, keyed by id.
	GetUsers(ctx context.Context, ids ...string) (map[string]User, error)

	// ListStorageKeys returns every reservation, pending and bound.
	ListStorageKeys(ctx context.Context) ([]StorageKeyReservation, error)

	// Close releases the backing store.
	Close() error
}

// Options are shared by all registry implementations.
type Options struct {
	// Resolver walks candidate storage keys. Defaults to naming.NewResolver(0).
	Resolver *naming.Resolver

	// NewID generates public id candidates. Defaults to NewUUID.
	NewID IDGenerator

	// MaxIDAttempts bounds public id collisions. Defaults to DefaultMaxIDAttempts.
	MaxIDAttempts int
}

// WithDefaults fills zero fields.
func (o Options) WithDefaults() Options {
	if o.Resolver == nil {
		o.Resolver = naming.NewResolver(0)
	}
	if o.NewID == nil {
		o.NewID = NewUUID
	}
	if o.MaxIDAttempts <= 0 {
		o.MaxIDAttempts = DefaultMaxIDAttempts
	}
	return o
}

// AssignPublicID draws ids from NewID until taken reports a free one.
//
// Collisions are retried up to MaxIDAttempts times and then surface as
// ErrIOError, so ErrIDCollision never escapes the registry. A lookup error
// stops the loop immediately.
func (o Options) AssignPublicID(ctx context.Context, taken func(id string) (bool, error)) (string, error) {
	var id string

	op := func() error {
		candidate := o.NewID()
		used, err := taken(candidate)
		if err != nil {
			return backoff.Permanent(NewIOError("public id lookup", err))
		}
		if used {
			return &StoreError{Code: ErrIDCollision, Message: "public id already taken", Key: candidate}
		}
		id = candidate
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(o.MaxIDAttempts-1)),
		ctx,
	)

	if err := backoff.Retry(op, policy); err != nil {
		if code, ok := CodeOf(err); ok && code == ErrIDCollision {
			return "", &StoreError{
				Code:    ErrIOError,
				Message: "could not assign a unique public id",
				Err:     err,
			}
		}
		return "", err
	}

	return id, nil
}

// ResolveStorageKey runs the resolver and maps exhaustion to a StoreError.
func (o Options) ResolveStorageKey(ctx context.Context, displayName, ext string, claim naming.ClaimFunc) (string, error) {
	key, err := o.Resolver.Resolve(ctx, displayName, ext, claim)
	if err != nil {
		if errors.Is(err, naming.ErrResolutionExhausted) {
			return "", &StoreError{
				Code:    ErrResolutionExhausted,
				Message: "no free storage key",
				Key:     displayName,
				Err:     err,
			}
		}
		if _, ok := CodeOf(err); ok {
			return "", err
		}
		if ctx.Err() != nil {
			return "", err
		}
		return "", NewIOError("storage key resolution", err)
	}
	return key, nil
}
