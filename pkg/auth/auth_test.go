package auth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		err    error
	}{
		{"Bearer abc", "abc", nil},
		{"bearer abc", "abc", nil},
		{"  Bearer   abc  ", "abc", nil},
		{"", "", ErrMissingToken},
		{"Bearer ", "", ErrInvalidToken},
		{"Bearer", "", ErrInvalidToken},
		{"Basic dXNlcjpwdw==", "", ErrInvalidToken},
		{"abc", "", ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			token, err := BearerToken(tt.header)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.token, token)
		})
	}
}

type countingUsers struct {
	mu   sync.Mutex
	puts []metadata.User
	err  error
}

func (u *countingUsers) PutUser(_ context.Context, user metadata.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return u.err
	}
	u.puts = append(u.puts, user)
	return nil
}

func newTestStatic(t *testing.T, tokens ...StaticToken) *StaticAuthenticator {
	t.Helper()
	a, err := NewStaticAuthenticator(tokens)
	require.NoError(t, err)
	return a
}

func TestProvisioning_UpsertsChangedProfiles(t *testing.T) {
	users := &countingUsers{}
	static := newTestStatic(t,
		StaticToken{Token: "t-alice", UserID: "alice", FullName: "Alice", Email: "alice@example.com"},
	)
	p := NewProvisioning(static, users)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		principal, user, err := p.Authenticate(ctx, "t-alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", principal.ID)
		assert.Equal(t, "alice@example.com", user.Email)
	}
	assert.Len(t, users.puts, 1, "unchanged profile is written once")

	_, _, err := p.Authenticate(ctx, "nope")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Len(t, users.puts, 1)
}

func TestProvisioning_StoreFailureDoesNotFailAuth(t *testing.T) {
	users := &countingUsers{err: errors.New("db down")}
	p := NewProvisioning(newTestStatic(t, StaticToken{Token: "t", UserID: "u"}), users)

	principal, _, err := p.Authenticate(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, "u", principal.ID)
}
