package sql

import (
	"context"
	"errors"
	"strings"

	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ============================================================================
// Storage keys
// ============================================================================

func (s *SQLRegistry) ReserveStorageKey(ctx context.Context, displayName, ext string, probe metadata.KeyProbe) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	db := s.db.WithContext(ctx)
	now := s.timestamp()

	key, err := s.opts.ResolveStorageKey(ctx, displayName, ext, func(ctx context.Context, key string) (bool, error) {
		var count int64
		if err := db.Model(&reservationRow{}).Where("storage_key = ?", key).Count(&count).Error; err != nil {
			return false, err
		}
		if count > 0 {
			return false, nil
		}
		if probe != nil {
			occupied, err := probe(ctx, key)
			if err != nil || occupied {
				return false, err
			}
		}

		// A concurrent claim of the same key turns this insert into a no-op.
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&reservationRow{
			StorageKey: key,
			State:      string(metadata.ReservationPending),
			CreatedAt:  now,
		})
		if res.Error != nil {
			return false, res.Error
		}
		return res.RowsAffected == 1, nil
	})
	if err != nil {
		return "", s.wrap(ctx, "reserve storage key", err)
	}
	return key, nil
}

func (s *SQLRegistry) ClaimStorageKey(ctx context.Context, key string) (bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&reservationRow{
		StorageKey: key,
		State:      string(metadata.ReservationPending),
		CreatedAt:  s.timestamp(),
	})
	if res.Error != nil {
		return false, s.wrap(ctx, "claim storage key", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *SQLRegistry) ReleaseStorageKey(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).
		Where("storage_key = ? AND state = ?", key, string(metadata.ReservationPending)).
		Delete(&reservationRow{}).Error
	return s.wrap(ctx, "release storage key", err)
}

func (s *SQLRegistry) ListStorageKeys(ctx context.Context) ([]metadata.StorageKeyReservation, error) {
	var rows []reservationRow
	if err := s.db.WithContext(ctx).Order("storage_key").Find(&rows).Error; err != nil {
		return nil, s.wrap(ctx, "list storage keys", err)
	}

	out := make([]metadata.StorageKeyReservation, len(rows))
	for i, r := range rows {
		out[i] = r.toReservation()
	}
	return out, nil
}

// ============================================================================
// Files
// ============================================================================

func (s *SQLRegistry) CreateFile(ctx context.Context, spec metadata.FileSpec) (*metadata.File, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	var created *metadata.File

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Step 1: Flip the reservation to bound; only a pending one matches
		res := tx.Model(&reservationRow{}).
			Where("storage_key = ? AND state = ?", spec.StorageKey, string(metadata.ReservationPending)).
			Update("state", string(metadata.ReservationBound))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return &metadata.StoreError{
				Code:    metadata.ErrNotReserved,
				Message: "storage key has no pending reservation",
				Key:     spec.StorageKey,
			}
		}

		// Step 2: Draw a public id
		id, err := s.opts.AssignPublicID(ctx, func(id string) (bool, error) {
			var count int64
			err := tx.Model(&fileRow{}).Where("public_id = ?", id).Count(&count).Error
			return count > 0, err
		})
		if err != nil {
			return err
		}

		// Step 3: Insert the file and point the reservation at it
		now := s.timestamp()
		row := fileRow{
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
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if err := tx.Model(&reservationRow{}).
			Where("storage_key = ?", spec.StorageKey).
			Update("file_id", id).Error; err != nil {
			return err
		}

		created = row.toFile()
		return nil
	})
	if err != nil {
		return nil, s.wrap(ctx, "create file", err)
	}
	return created, nil
}

func (s *SQLRegistry) GetFile(ctx context.Context, publicID string) (*metadata.File, error) {
	row, err := findFile(s.db.WithContext(ctx), publicID)
	if err != nil {
		return nil, s.wrap(ctx, "get file", err)
	}
	return row.toFile(), nil
}

func (s *SQLRegistry) RenameFile(ctx context.Context, publicID, displayName string) (*metadata.File, error) {
	if strings.TrimSpace(displayName) == "" {
		return nil, metadata.NewInvalidArgumentError("display name is required")
	}

	var renamed *metadata.File
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := findFile(tx, publicID)
		if err != nil {
			return err
		}
		row.DisplayName = displayName
		row.UpdatedAt = s.timestamp()
		if err := tx.Model(&fileRow{}).Where("id = ?", row.ID).Updates(map[string]any{
			"display_name": row.DisplayName,
			"updated_at":   row.UpdatedAt,
		}).Error; err != nil {
			return err
		}
		renamed = row.toFile()
		return nil
	})
	if err != nil {
		return nil, s.wrap(ctx, "rename file", err)
	}
	return renamed, nil
}

func (s *SQLRegistry) DeleteFile(ctx context.Context, publicID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := findFile(tx, publicID)
		if err != nil {
			return err
		}
		if err := tx.Where("file_id = ?", publicID).Delete(&rightRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("storage_key = ?", row.StorageKey).Delete(&reservationRow{}).Error; err != nil {
			return err
		}
		return tx.Delete(&fileRow{}, row.ID).Error
	})
	return s.wrap(ctx, "delete file", err)
}

func (s *SQLRegistry) ListOwnedFiles(ctx context.Context, ownerID string) ([]*metadata.File, error) {
	var rows []fileRow
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at, public_id").
		Find(&rows).Error
	if err != nil {
		return nil, s.wrap(ctx, "list owned files", err)
	}
	return toFiles(rows), nil
}

func (s *SQLRegistry) ListFilesSharedWith(ctx context.Context, granteeID string) ([]*metadata.File, error) {
	var rows []fileRow
	err := s.db.WithContext(ctx).
		Joins("JOIN file_rights ON file_rights.file_id = files.public_id").
		Where("file_rights.grantee_id = ? AND files.owner_id <> ?", granteeID, granteeID).
		Order("files.created_at, files.public_id").
		Find(&rows).Error
	if err != nil {
		return nil, s.wrap(ctx, "list shared files", err)
	}
	return toFiles(rows), nil
}

func findFile(db *gorm.DB, publicID string) (*fileRow, error) {
	var row fileRow
	err := db.Where("public_id = ?", publicID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, metadata.NewNotFoundError("file", publicID)
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func toFiles(rows []fileRow) []*metadata.File {
	out := make([]*metadata.File, len(rows))
	for i, r := range rows {
		out[i] = r.toFile()
	}
	metadata.SortFiles(out)
	return out
}
