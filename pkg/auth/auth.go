// Package auth turns bearer tokens into principals.
//
// The file service never sees tokens. The HTTP adapter calls an
// Authenticator once per request and passes the resulting principal
// explicitly. Two implementations exist: OIDC ID-token verification and a
// static token table for development and tests.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/access"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

var (
	// ErrMissingToken is returned when no bearer token was presented
	ErrMissingToken = errors.New("missing bearer token")

	// ErrInvalidToken is returned when a token is malformed, expired or unknown
	ErrInvalidToken = errors.New("invalid token")
)

// Authenticator resolves a bearer token.
//
// Returns the principal and, when the token carries profile claims, the
// directory entry describing it (may be nil). Failures wrap ErrMissingToken
// or ErrInvalidToken.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*access.Principal, *metadata.User, error)
}

// BearerToken extracts the token from an Authorization header value.
// The scheme is matched case-insensitively.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrInvalidToken
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// UserStore is the part of the registry the provisioner writes to.
type UserStore interface {
	PutUser(ctx context.Context, user metadata.User) error
}

// Provisioning wraps an Authenticator and upserts the profile of every
// authenticated principal into the user directory, so owner listings can
// name grantees.
//
// Profiles are written only when they change. A failed write is logged and
// does not fail authentication.
type Provisioning struct {
	next  Authenticator
	users UserStore

	mu   sync.Mutex
	seen map[string]metadata.User
}

// NewProvisioning wraps next.
func NewProvisioning(next Authenticator, users UserStore) *Provisioning {
	return &Provisioning{
		next:  next,
		users: users,
		seen:  make(map[string]metadata.User),
	}
}

// Authenticate implements Authenticator.
func (p *Provisioning) Authenticate(ctx context.Context, token string) (*access.Principal, *metadata.User, error) {
	principal, user, err := p.next.Authenticate(ctx, token)
	if err != nil || user == nil {
		return principal, user, err
	}

	p.mu.Lock()
	prev, ok := p.seen[user.ID]
	p.mu.Unlock()
	if ok && prev == *user {
		return principal, user, nil
	}

	if err := p.users.PutUser(ctx, *user); err != nil {
		logger.Warn("auth: could not store profile for %s: %v", user.ID, err)
		return principal, user, nil
	}

	p.mu.Lock()
	p.seen[user.ID] = *user
	p.mu.Unlock()

	return principal, user, nil
}
