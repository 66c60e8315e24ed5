package badger

import (
	"context"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// ============================================================================
// Storage keys
// ============================================================================

func (s *BadgerRegistry) ReserveStorageKey(ctx context.Context, displayName, ext string, probe metadata.KeyProbe) (string, error) {
	var reserved string

	err := s.update(ctx, "reserve storage key", func(txn *badger.Txn) error {
		now := s.now()
		key, err := s.opts.ResolveStorageKey(ctx, displayName, ext, func(ctx context.Context, key string) (bool, error) {
			taken, err := exists(txn, keyStorageKey(key))
			if err != nil || taken {
				return false, err
			}
			if probe != nil {
				occupied, err := probe(ctx, key)
				if err != nil || occupied {
					return false, err
				}
			}
			return true, putReservation(txn, &metadata.StorageKeyReservation{
				Key:       key,
				State:     metadata.ReservationPending,
				CreatedAt: now,
			})
		})
		reserved = key
		return err
	})
	if err != nil {
		return "", err
	}
	return reserved, nil
}

func (s *BadgerRegistry) ClaimStorageKey(ctx context.Context, key string) (bool, error) {
	var claimed bool

	err := s.update(ctx, "claim storage key", func(txn *badger.Txn) error {
		claimed = false
		taken, err := exists(txn, keyStorageKey(key))
		if err != nil || taken {
			return err
		}
		if err := putReservation(txn, &metadata.StorageKeyReservation{
			Key:       key,
			State:     metadata.ReservationPending,
			CreatedAt: s.now(),
		}); err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

func (s *BadgerRegistry) ReleaseStorageKey(ctx context.Context, key string) error {
	return s.update(ctx, "release storage key", func(txn *badger.Txn) error {
		res, err := getReservation(txn, key)
		if err != nil || res == nil || res.State != metadata.ReservationPending {
			return err
		}
		return txn.Delete(keyStorageKey(key))
	})
}

func (s *BadgerRegistry) ListStorageKeys(ctx context.Context) ([]metadata.StorageKeyReservation, error) {
	var out []metadata.StorageKeyReservation

	err := s.view(ctx, "list storage keys", func(txn *badger.Txn) error {
		out = out[:0]
		return scanValues(txn, []byte(prefixStorageKey), func(val []byte) error {
			res, err := decodeValue[metadata.StorageKeyReservation]("reservation", val)
			if err != nil {
				return err
			}
			out = append(out, res)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ============================================================================
// Files
// ============================================================================

func (s *BadgerRegistry) CreateFile(ctx context.Context, spec metadata.FileSpec) (*metadata.File, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	var created *metadata.File

	err := s.update(ctx, "create file", func(txn *badger.Txn) error {
		res, err := getReservation(txn, spec.StorageKey)
		if err != nil {
			return err
		}
		if res == nil || res.State != metadata.ReservationPending {
			return &metadata.StoreError{
				Code:    metadata.ErrNotReserved,
				Message: "storage key has no pending reservation",
				Key:     spec.StorageKey,
			}
		}

		id, err := s.opts.AssignPublicID(ctx, func(id string) (bool, error) {
			return exists(txn, keyFile(id))
		})
		if err != nil {
			return err
		}

		now := s.now()
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
		if err := putFile(txn, file); err != nil {
			return err
		}

		res.State = metadata.ReservationBound
		res.FileID = id
		if err := putReservation(txn, res); err != nil {
			return err
		}
		if err := txn.Set(keyOwnerIndex(spec.OwnerID, id), nil); err != nil {
			return err
		}

		created = file
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *BadgerRegistry) GetFile(ctx context.Context, publicID string) (*metadata.File, error) {
	var file *metadata.File
	err := s.view(ctx, "get file", func(txn *badger.Txn) error {
		var err error
		file, err = getFile(txn, publicID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (s *BadgerRegistry) RenameFile(ctx context.Context, publicID, displayName string) (*metadata.File, error) {
	if strings.TrimSpace(displayName) == "" {
		return nil, metadata.NewInvalidArgumentError("display name is required")
	}

	var renamed *metadata.File
	err := s.update(ctx, "rename file", func(txn *badger.Txn) error {
		file, err := getFile(txn, publicID)
		if err != nil {
			return err
		}
		file.DisplayName = displayName
		file.UpdatedAt = s.now()
		if err := putFile(txn, file); err != nil {
			return err
		}
		renamed = file
		return nil
	})
	if err != nil {
		return nil, err
	}
	return renamed, nil
}

func (s *BadgerRegistry) DeleteFile(ctx context.Context, publicID string) error {
	return s.update(ctx, "delete file", func(txn *badger.Txn) error {
		file, err := getFile(txn, publicID)
		if err != nil {
			return err
		}

		prefix := keyRightPrefix(publicID)
		for _, key := range scanKeys(txn, prefix) {
			grantee := suffixAfter(key, prefix)
			if err := txn.Delete(key); err != nil {
				return err
			}
			if err := txn.Delete(keySharedIndex(grantee, publicID)); err != nil {
				return err
			}
		}

		for _, key := range [][]byte{
			keyOwnerIndex(file.OwnerID, publicID),
			keyStorageKey(file.StorageKey),
			keyFile(publicID),
		} {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerRegistry) ListOwnedFiles(ctx context.Context, ownerID string) ([]*metadata.File, error) {
	return s.listIndexed(ctx, "list owned files", keyOwnerIndexPrefix(ownerID), func(*metadata.File) bool {
		return true
	})
}

func (s *BadgerRegistry) ListFilesSharedWith(ctx context.Context, granteeID string) ([]*metadata.File, error) {
	return s.listIndexed(ctx, "list shared files", keySharedIndexPrefix(granteeID), func(f *metadata.File) bool {
		return f.OwnerID != granteeID
	})
}

// listIndexed resolves every public id under an index prefix to its file.
// Index entries pointing at missing files are skipped.
func (s *BadgerRegistry) listIndexed(ctx context.Context, op string, prefix []byte, keep func(*metadata.File) bool) ([]*metadata.File, error) {
	var out []*metadata.File

	err := s.view(ctx, op, func(txn *badger.Txn) error {
		out = out[:0]
		for _, key := range scanKeys(txn, prefix) {
			file, err := getFile(txn, suffixAfter(key, prefix))
			if metadata.IsNotFound(err) {
				continue
			}
			if err != nil {
				return err
			}
			if keep(file) {
				out = append(out, file)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out == nil {
		out = []*metadata.File{}
	}
	metadata.SortFiles(out)
	return out, nil
}
