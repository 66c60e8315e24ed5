package auth

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/marmos91/dittodrive/pkg/access"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// StaticToken maps one fixed bearer token to a user.
type StaticToken struct {
	// Token is the bearer secret
	Token string `mapstructure:"token" yaml:"token" validate:"required"`

	// UserID becomes the principal id and file owner id
	UserID string `mapstructure:"user_id" yaml:"user_id" validate:"required"`

	Username string `mapstructure:"username" yaml:"username"`
	FullName string `mapstructure:"full_name" yaml:"full_name"`
	Email    string `mapstructure:"email" yaml:"email"`
}

// StaticAuthenticator checks tokens against a fixed table.
type StaticAuthenticator struct {
	tokens []StaticToken
}

// NewStaticAuthenticator builds an authenticator from tokens. Empty tokens
// and duplicate tokens are rejected.
func NewStaticAuthenticator(tokens []StaticToken) (*StaticAuthenticator, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("static authenticator: no tokens configured")
	}

	seen := make(map[string]bool, len(tokens))
	for i, t := range tokens {
		if t.Token == "" || t.UserID == "" {
			return nil, fmt.Errorf("static token %d: token and user_id are required", i)
		}
		if seen[t.Token] {
			return nil, fmt.Errorf("static token %d: duplicate token for user %s", i, t.UserID)
		}
		seen[t.Token] = true
	}

	return &StaticAuthenticator{tokens: append([]StaticToken(nil), tokens...)}, nil
}

// Authenticate implements Authenticator. Every entry is compared in
// constant time.
func (a *StaticAuthenticator) Authenticate(_ context.Context, token string) (*access.Principal, *metadata.User, error) {
	if token == "" {
		return nil, nil, ErrMissingToken
	}

	var match *StaticToken
	for i := range a.tokens {
		if subtle.ConstantTimeCompare([]byte(a.tokens[i].Token), []byte(token)) == 1 {
			match = &a.tokens[i]
		}
	}
	if match == nil {
		return nil, nil, ErrInvalidToken
	}

	username := match.Username
	if username == "" {
		username = match.UserID
	}

	principal := &access.Principal{ID: match.UserID, Username: username, AuthMethod: "static"}
	user := &metadata.User{ID: match.UserID, FullName: match.FullName, Email: match.Email}
	return principal, user, nil
}
