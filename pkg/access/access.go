// Package access decides whether a principal may act on a file.
//
// Two actions exist. Mutate (rename, delete) is reserved to the owner. Read
// (download) is owner-only unless the Policy lets grantees download too; a
// Right always makes a file visible in the grantee's shared listing,
// regardless of policy.
package access

import (
	"errors"
	"fmt"

	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

var (
	// ErrUnauthenticated is returned when no valid principal is present
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden is returned when the principal is valid but not allowed
	ErrForbidden = errors.New("forbidden")
)

// Principal is an authenticated actor.
type Principal struct {
	// ID is the stable identifier files are owned by (OIDC subject or
	// static token user id)
	ID string

	// Username is informational only
	Username string

	// AuthMethod is the authenticator that produced the principal
	// Examples: "oidc", "static"
	AuthMethod string
}

// Authenticated reports whether p identifies somebody. A nil principal is
// anonymous.
func (p *Principal) Authenticated() bool {
	return p != nil && p.ID != ""
}

// Action is what the principal wants to do with a file.
type Action int

const (
	// ActionRead covers download and metadata view
	ActionRead Action = iota

	// ActionMutate covers rename and delete
	ActionMutate
)

func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionMutate:
		return "mutate"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// DenyReason classifies a denial.
type DenyReason int

const (
	ReasonNone DenyReason = iota
	ReasonUnauthenticated
	ReasonForbidden
)

// Decision is the result of an authorization check.
type Decision struct {
	// Allowed indicates whether access is granted
	Allowed bool

	// Reason classifies the denial. ReasonNone when Allowed.
	Reason DenyReason

	// Detail is a human-readable explanation for logs
	// Empty when Allowed is true
	Detail string
}

// Err returns nil for an allowed decision, otherwise ErrUnauthenticated or
// ErrForbidden wrapped with the detail.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.Reason == ReasonUnauthenticated {
		return fmt.Errorf("%s: %w", d.Detail, ErrUnauthenticated)
	}
	return fmt.Errorf("%s: %w", d.Detail, ErrForbidden)
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason DenyReason, format string, args ...any) Decision {
	return Decision{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Policy configures read access for grantees.
type Policy struct {
	// GranteesCanRead lets principals holding a Right download the file.
	// When false only the owner may read.
	GranteesCanRead bool
}

// Authorize decides whether p may perform action on f.
//
// rights is the current Right set for f. It is only consulted for ActionRead
// when GranteesCanRead is set; callers may pass nil otherwise.
func (pol Policy) Authorize(p *Principal, f *metadata.File, action Action, rights []metadata.Right) Decision {
	if !p.Authenticated() {
		return deny(ReasonUnauthenticated, "no principal for %s", action)
	}

	if p.ID == f.OwnerID {
		return allow()
	}

	if action == ActionRead && pol.GranteesCanRead && holdsRight(p.ID, f, rights) {
		return allow()
	}

	return deny(ReasonForbidden, "%s may not %s file %s", p.ID, action, f.PublicID)
}

// NeedsRights reports whether Authorize consults rights for action, so
// callers can skip the lookup.
func (pol Policy) NeedsRights(action Action) bool {
	return action == ActionRead && pol.GranteesCanRead
}

// Authorize applies the default owner-only policy.
func Authorize(p *Principal, f *metadata.File, action Action) Decision {
	return Policy{}.Authorize(p, f, action, nil)
}

func holdsRight(principalID string, f *metadata.File, rights []metadata.Right) bool {
	for _, r := range rights {
		if r.FileID == f.PublicID && r.GranteeID == principalID && r.GranteeID != f.OwnerID {
			return true
		}
	}
	return false
}
