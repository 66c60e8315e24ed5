package badger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// Values are JSON encoded. metadata.File hides StorageKey from JSON, so files
// go through fileRecord, which persists every field.

type fileRecord struct {
	PublicID    string    `json:"public_id"`
	DisplayName string    `json:"display_name"`
	Extension   string    `json:"extension"`
	StorageKey  string    `json:"storage_key"`
	OwnerID     string    `json:"owner_id"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Checksum    string    `json:"checksum"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toRecord(f *metadata.File) fileRecord {
	return fileRecord{
		PublicID:    f.PublicID,
		DisplayName: f.DisplayName,
		Extension:   f.Extension,
		StorageKey:  f.StorageKey,
		OwnerID:     f.OwnerID,
		Size:        f.Size,
		ContentType: f.ContentType,
		Checksum:    f.Checksum,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func (r fileRecord) toFile() *metadata.File {
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

func encodeFile(f *metadata.File) ([]byte, error) {
	bytes, err := json.Marshal(toRecord(f))
	if err != nil {
		return nil, fmt.Errorf("failed to encode file: %w", err)
	}
	return bytes, nil
}

func decodeFile(bytes []byte) (*metadata.File, error) {
	var rec fileRecord
	if err := json.Unmarshal(bytes, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode file: %w", err)
	}
	return rec.toFile(), nil
}

// encodeValue and decodeValue handle the types whose JSON form is already
// complete: reservations, rights and users.
func encodeValue(kind string, v any) ([]byte, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", kind, err)
	}
	return bytes, nil
}

func decodeValue[T any](kind string, bytes []byte) (T, error) {
	var v T
	if err := json.Unmarshal(bytes, &v); err != nil {
		return v, fmt.Errorf("failed to decode %s: %w", kind, err)
	}
	return v, nil
}
