package files

import (
	"errors"
	"fmt"

	"github.com/marmos91/dittodrive/pkg/access"
	"github.com/marmos91/dittodrive/pkg/store/content"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// Kind classifies a service failure. Each kind has one stable message that
// adapters may show to callers verbatim.
type Kind int

const (
	// KindBackendFailure covers registry and blob store failures
	KindBackendFailure Kind = iota

	// KindNotFound: no record, or the record's bytes are gone
	KindNotFound

	// KindUnauthenticated: no principal
	KindUnauthenticated

	// KindForbidden: principal is not allowed to act on the file
	KindForbidden

	// KindNoPayload: upload called with an empty batch
	KindNoPayload

	// KindInvalidName: blank or path-like display name on rename
	KindInvalidName

	// KindResolutionExhausted: every candidate storage key was taken
	KindResolutionExhausted
)

func (k Kind) String() string {
	switch k {
	case KindBackendFailure:
		return "backend_failure"
	case KindNotFound:
		return "not_found"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNoPayload:
		return "no_payload"
	case KindInvalidName:
		return "invalid_name"
	case KindResolutionExhausted:
		return "resolution_exhausted"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Message returns the stable caller-facing message for k.
func (k Kind) Message() string {
	switch k {
	case KindNotFound:
		return "Not found"
	case KindUnauthenticated:
		return "Login failed"
	case KindForbidden:
		return "Forbidden for you"
	case KindNoPayload:
		return "No files to upload"
	case KindInvalidName:
		return "Invalid file name"
	case KindResolutionExhausted:
		return "Could not allocate a storage name"
	default:
		return "Storage backend failure"
	}
}

// Error is returned by every Service operation.
type Error struct {
	// Kind is the failure category
	Kind Kind

	// Message is Kind.Message()
	Message string

	// Err is the underlying cause, for logs. Never shown to callers.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same Kind, so the sentinels below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrNotFound            = &Error{Kind: KindNotFound, Message: KindNotFound.Message()}
	ErrUnauthenticated     = &Error{Kind: KindUnauthenticated, Message: KindUnauthenticated.Message()}
	ErrForbidden           = &Error{Kind: KindForbidden, Message: KindForbidden.Message()}
	ErrNoPayload           = &Error{Kind: KindNoPayload, Message: KindNoPayload.Message()}
	ErrInvalidName         = &Error{Kind: KindInvalidName, Message: KindInvalidName.Message()}
	ErrResolutionExhausted = &Error{Kind: KindResolutionExhausted, Message: KindResolutionExhausted.Message()}
	ErrBackendFailure      = &Error{Kind: KindBackendFailure, Message: KindBackendFailure.Message()}
)

func newError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Message: kind.Message(), Err: cause}
}

// KindOf returns the Kind carried by err. Errors that did not come from the
// service are reported as KindBackendFailure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindBackendFailure
}

// translate maps collaborator errors onto service kinds.
//
// Registry codes, blob store sentinels and access decisions are the only
// sources; anything unrecognized is a backend failure.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}

	switch {
	case errors.Is(err, access.ErrUnauthenticated):
		return newError(KindUnauthenticated, err)
	case errors.Is(err, access.ErrForbidden):
		return newError(KindForbidden, err)
	case errors.Is(err, content.ErrBlobNotFound):
		return newError(KindNotFound, err)
	case errors.Is(err, content.ErrInvalidKey):
		return newError(KindInvalidName, err)
	}

	if code, ok := metadata.CodeOf(err); ok {
		switch code {
		case metadata.ErrNotFound:
			return newError(KindNotFound, err)
		case metadata.ErrResolutionExhausted:
			return newError(KindResolutionExhausted, err)
		case metadata.ErrInvalidArgument:
			return newError(KindInvalidName, err)
		}
	}

	return newError(KindBackendFailure, err)
}
