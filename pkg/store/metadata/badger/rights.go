package badger

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// ============================================================================
// Rights
// ============================================================================

func (s *BadgerRegistry) ListRights(ctx context.Context, publicIDs ...string) (map[string][]metadata.Right, error) {
	out := make(map[string][]metadata.Right)

	err := s.view(ctx, "list rights", func(txn *badger.Txn) error {
		for _, id := range publicIDs {
			var list []metadata.Right
			err := scanValues(txn, keyRightPrefix(id), func(val []byte) error {
				right, err := decodeValue[metadata.Right]("right", val)
				if err != nil {
					return err
				}
				list = append(list, right)
				return nil
			})
			if err != nil {
				return err
			}
			if len(list) > 0 {
				metadata.SortRights(list)
				out[id] = list
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerRegistry) GrantRight(ctx context.Context, publicID, granteeID string) (*metadata.Right, error) {
	if granteeID == "" {
		return nil, metadata.NewInvalidArgumentError("grantee id is required")
	}

	var granted *metadata.Right
	err := s.update(ctx, "grant right", func(txn *badger.Txn) error {
		file, err := getFile(txn, publicID)
		if err != nil {
			return err
		}
		if file.OwnerID == granteeID {
			return metadata.NewInvalidArgumentError("cannot grant a right to the file owner")
		}

		taken, err := exists(txn, keyRight(publicID, granteeID))
		if err != nil {
			return err
		}
		if taken {
			return &metadata.StoreError{
				Code:    metadata.ErrAlreadyExists,
				Message: "right already granted",
				Key:     publicID + "/" + granteeID,
			}
		}

		right := metadata.Right{
			FileID:    publicID,
			GranteeID: granteeID,
			Kind:      metadata.GrantCoAuthor,
			CreatedAt: s.now(),
		}
		val, err := encodeValue("right", right)
		if err != nil {
			return err
		}
		if err := txn.Set(keyRight(publicID, granteeID), val); err != nil {
			return err
		}
		if err := txn.Set(keySharedIndex(granteeID, publicID), nil); err != nil {
			return err
		}

		granted = &right
		return nil
	})
	if err != nil {
		return nil, err
	}
	return granted, nil
}

func (s *BadgerRegistry) RevokeRight(ctx context.Context, publicID, granteeID string) error {
	return s.update(ctx, "revoke right", func(txn *badger.Txn) error {
		_, err := txn.Get(keyRight(publicID, granteeID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return metadata.NewNotFoundError("right", publicID+"/"+granteeID)
		}
		if err != nil {
			return fmt.Errorf("failed to get right: %w", err)
		}
		if err := txn.Delete(keyRight(publicID, granteeID)); err != nil {
			return err
		}
		return txn.Delete(keySharedIndex(granteeID, publicID))
	})
}

// ============================================================================
// Users
// ============================================================================

func (s *BadgerRegistry) PutUser(ctx context.Context, user metadata.User) error {
	if user.ID == "" {
		return metadata.NewInvalidArgumentError("user id is required")
	}

	val, err := encodeValue("user", user)
	if err != nil {
		return metadata.NewIOError("put user", err)
	}

	return s.update(ctx, "put user", func(txn *badger.Txn) error {
		return txn.Set(keyUser(user.ID), val)
	})
}

func (s *BadgerRegistry) GetUsers(ctx context.Context, ids ...string) (map[string]metadata.User, error) {
	out := make(map[string]metadata.User, len(ids))

	err := s.view(ctx, "get users", func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := txn.Get(keyUser(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			err = item.Value(func(val []byte) error {
				user, err := decodeValue[metadata.User]("user", val)
				if err != nil {
					return err
				}
				out[id] = user
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
