package sql

import (
	"context"

	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *SQLRegistry) ListRights(ctx context.Context, publicIDs ...string) (map[string][]metadata.Right, error) {
	out := make(map[string][]metadata.Right)
	if len(publicIDs) == 0 {
		return out, nil
	}

	var rows []rightRow
	err := s.db.WithContext(ctx).
		Where("file_id IN ?", publicIDs).
		Order("created_at, grantee_id").
		Find(&rows).Error
	if err != nil {
		return nil, s.wrap(ctx, "list rights", err)
	}

	for _, r := range rows {
		out[r.FileID] = append(out[r.FileID], r.toRight())
	}
	for id := range out {
		metadata.SortRights(out[id])
	}
	return out, nil
}

func (s *SQLRegistry) GrantRight(ctx context.Context, publicID, granteeID string) (*metadata.Right, error) {
	if granteeID == "" {
		return nil, metadata.NewInvalidArgumentError("grantee id is required")
	}

	var granted *metadata.Right
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		file, err := findFile(tx, publicID)
		if err != nil {
			return err
		}
		if file.OwnerID == granteeID {
			return metadata.NewInvalidArgumentError("cannot grant a right to the file owner")
		}

		row := rightRow{
			FileID:    publicID,
			GranteeID: granteeID,
			Kind:      string(metadata.GrantCoAuthor),
			CreatedAt: s.timestamp(),
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &metadata.StoreError{
				Code:    metadata.ErrAlreadyExists,
				Message: "right already granted",
				Key:     publicID + "/" + granteeID,
			}
		}

		right := row.toRight()
		granted = &right
		return nil
	})
	if err != nil {
		return nil, s.wrap(ctx, "grant right", err)
	}
	return granted, nil
}

func (s *SQLRegistry) RevokeRight(ctx context.Context, publicID, granteeID string) error {
	res := s.db.WithContext(ctx).
		Where("file_id = ? AND grantee_id = ?", publicID, granteeID).
		Delete(&rightRow{})
	if res.Error != nil {
		return s.wrap(ctx, "revoke right", res.Error)
	}
	if res.RowsAffected == 0 {
		return metadata.NewNotFoundError("right", publicID+"/"+granteeID)
	}
	return nil
}

func (s *SQLRegistry) PutUser(ctx context.Context, user metadata.User) error {
	if user.ID == "" {
		return metadata.NewInvalidArgumentError("user id is required")
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&userRow{ID: user.ID, FullName: user.FullName, Email: user.Email}).Error
	return s.wrap(ctx, "put user", err)
}

func (s *SQLRegistry) GetUsers(ctx context.Context, ids ...string) (map[string]metadata.User, error) {
	out := make(map[string]metadata.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []userRow
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, s.wrap(ctx, "get users", err)
	}
	for _, r := range rows {
		out[r.ID] = metadata.User{ID: r.ID, FullName: r.FullName, Email: r.Email}
	}
	return out, nil
}
