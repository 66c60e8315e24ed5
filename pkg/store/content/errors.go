package content

import "errors"

// Implementations wrap these with context:
//
//	return nil, fmt.Errorf("blob %s: %w", key, content.ErrBlobNotFound)
var (
	// ErrBlobNotFound indicates no blob is stored under the key.
	//
	// The file service maps this to NotFound so that a record whose bytes
	// went missing looks the same to callers as a missing record.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrInvalidKey indicates the key is empty or contains a path separator.
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("blob store closed")
)
