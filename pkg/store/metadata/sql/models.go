package sql

import (
	"time"

	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// fileRow is the files table. ID is a surrogate key; PublicID is what
// callers see.
type fileRow struct {
	ID          uint      `gorm:"primaryKey"`
	PublicID    string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	DisplayName string    `gorm:"type:varchar(255);not null"`
	Extension   string    `gorm:"type:varchar(64);not null;default:''"`
	StorageKey  string    `gorm:"type:varchar(512);not null;uniqueIndex"`
	OwnerID     string    `gorm:"type:varchar(255);not null;index"`
	Size        int64     `gorm:"not null;default:0"`
	ContentType string    `gorm:"type:varchar(255)"`
	Checksum    string    `gorm:"type:varchar(64)"`
	CreatedAt   time.Time `gorm:"not null;index"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (fileRow) TableName() string { return "files" }

func (r fileRow) toFile() *metadata.File {
	return &metadata.File{
		PublicID:    r.PublicID,
		DisplayName: r.DisplayName,
		Extension:   r.Extension,
		StorageKey:  r.StorageKey,
		OwnerID:     r.OwnerID,
		Size:        r.Size,
		ContentType: r.ContentType,
		Checksum:    r.Checksum,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// reservationRow is the storage key table. The primary key on StorageKey is
// what makes a claim atomic: two inserts of the same key cannot both succeed.
type reservationRow struct {
	StorageKey string    `gorm:"column:storage_key;type:varchar(512);primaryKey"`
	State      string    `gorm:"type:varchar(16);not null;index"`
	FileID     string    `gorm:"type:varchar(64);not null;default:''"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (reservationRow) TableName() string { return "storage_key_reservations" }

func (r reservationRow) toReservation() metadata.StorageKeyReservation {
	return metadata.StorageKeyReservation{
		Key:       r.StorageKey,
		State:     metadata.ReservationState(r.State),
		FileID:    r.FileID,
		CreatedAt: r.CreatedAt,
	}
}

type rightRow struct {
	ID        uint      `gorm:"primaryKey"`
	FileID    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_right_file_grantee"`
	GranteeID string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_right_file_grantee;index"`
	Kind      string    `gorm:"type:varchar(32);not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (rightRow) TableName() string { return "file_rights" }

func (r rightRow) toRight() metadata.Right {
	return metadata.Right{
		FileID:    r.FileID,
		GranteeID: r.GranteeID,
		Kind:      metadata.GrantKind(r.Kind),
		CreatedAt: r.CreatedAt,
	}
}

type userRow struct {
	ID       string `gorm:"type:varchar(255);primaryKey"`
	FullName string `gorm:"type:varchar(255)"`
	Email    string `gorm:"type:varchar(255)"`
}

func (userRow) TableName() string { return "users" }

func allModels() []any {
	return []any{&fileRow{}, &reservationRow{}, &rightRow{}, &userRow{}}
}
