package metadata

import (
	"sort"
	"strings"
	"time"
)

// File is the registry record for one uploaded file.
//
// PublicID is the only handle exposed outside the service. StorageKey names
// the blob on the blob store; it is assigned once at creation and never
// serialized to callers.
type File struct {
	// PublicID is an opaque, URL-safe identifier assigned at creation
	PublicID string `json:"public_id"`

	// DisplayName is the user-chosen base name, without extension
	DisplayName string `json:"name"`

	// Extension is the original extension without the leading dot (may be empty)
	Extension string `json:"extension"`

	// StorageKey is the blob store key. Never exposed externally.
	StorageKey string `json:"-"`

	// OwnerID is the principal that uploaded the file
	OwnerID string `json:"owner_id"`

	// Size is the blob length in bytes
	Size int64 `json:"size"`

	// ContentType is the MIME type detected from the uploaded bytes
	ContentType string `json:"content_type"`

	// Checksum is the hex-encoded SHA-256 of the uploaded bytes
	Checksum string `json:"checksum"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Filename returns the download filename: display name plus extension.
func (f *File) Filename() string {
	if f.Extension == "" {
		return f.DisplayName
	}
	return f.DisplayName + "." + f.Extension
}

// Clone returns a copy that shares no memory with f.
func (f *File) Clone() *File {
	c := *f
	return &c
}

// FileSpec carries the fields needed to create a File. The registry assigns
// PublicID and timestamps.
type FileSpec struct {
	StorageKey  string
	DisplayName string
	Extension   string
	OwnerID     string
	Size        int64
	ContentType string
	Checksum    string
}

// Validate checks the fields every backend requires.
func (s FileSpec) Validate() error {
	switch {
	case s.StorageKey == "":
		return NewInvalidArgumentError("storage key is required")
	case s.OwnerID == "":
		return NewInvalidArgumentError("owner id is required")
	case strings.TrimSpace(s.DisplayName) == "":
		return NewInvalidArgumentError("display name is required")
	}
	return nil
}

// GrantKind names the kind of access a Right grants. Co-author is the only
// kind.
type GrantKind string

const GrantCoAuthor GrantKind = "co-author"

// Right lets a grantee see a file owned by somebody else.
type Right struct {
	FileID    string    `json:"file_id"`
	GranteeID string    `json:"grantee_id"`
	Kind      GrantKind `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// User is a directory entry used to render grantee summaries.
type User struct {
	ID       string `json:"id"`
	FullName string `json:"fullname"`
	Email    string `json:"email"`
}

// ReservationState tracks a storage key from claim to binding.
type ReservationState string

const (
	// ReservationPending means the key is claimed but no File references it yet.
	ReservationPending ReservationState = "pending"

	// ReservationBound means a committed File references the key.
	ReservationBound ReservationState = "bound"
)

// StorageKeyReservation is the registry's claim on a blob store key.
type StorageKeyReservation struct {
	Key       string           `json:"key"`
	State     ReservationState `json:"state"`
	FileID    string           `json:"file_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// SortFiles orders files by creation time, then public id.
func SortFiles(files []*File) {
	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].CreatedAt.Before(files[j].CreatedAt)
		}
		return files[i].PublicID < files[j].PublicID
	})
}

// SortRights orders rights by creation time, then grantee id.
func SortRights(rights []Right) {
	sort.SliceStable(rights, func(i, j int) bool {
		if !rights[i].CreatedAt.Equal(rights[j].CreatedAt) {
			return rights[i].CreatedAt.Before(rights[j].CreatedAt)
		}
		return rights[i].GranteeID < rights[j].GranteeID
	})
}
