package auth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientID = "dittodrive"

type testIDP struct {
	srv *httptest.Server
	key *rsa.PrivateKey
}

func newTestIDP(t *testing.T) *testIDP {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	idp := &testIDP{key: key}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                idp.srv.URL,
			"authorization_endpoint":                idp.srv.URL + "/auth",
			"token_endpoint":                        idp.srv.URL + "/token",
			"jwks_uri":                              idp.srv.URL + "/keys",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
			Key:       &key.PublicKey,
			KeyID:     "k1",
			Algorithm: string(jose.RS256),
			Use:       "sig",
		}}})
	})
	idp.srv = httptest.NewServer(mux)
	t.Cleanup(idp.srv.Close)

	return idp
}

func (idp *testIDP) sign(t *testing.T, claims map[string]any) string {
	t.Helper()

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: jose.JSONWebKey{Key: idp.key, KeyID: "k1"}},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(t, err)

	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	obj, err := signer.Sign(payload)
	require.NoError(t, err)

	token, err := obj.CompactSerialize()
	require.NoError(t, err)
	return token
}

func (idp *testIDP) claims(overrides map[string]any) map[string]any {
	now := time.Now()
	c := map[string]any{
		"iss":                idp.srv.URL,
		"aud":                testClientID,
		"sub":                "user-123",
		"iat":                now.Unix(),
		"exp":                now.Add(time.Hour).Unix(),
		"email":              "alice@example.com",
		"name":               "Alice Liddell",
		"preferred_username": "alice",
	}
	for k, v := range overrides {
		c[k] = v
	}
	return c
}

func TestOIDCAuthenticator_Discovery(t *testing.T) {
	idp := newTestIDP(t)
	ctx := context.Background()

	a, err := NewOIDCAuthenticator(ctx, OIDCConfig{Issuer: idp.srv.URL, ClientID: testClientID})
	require.NoError(t, err)

	principal, user, err := a.Authenticate(ctx, idp.sign(t, idp.claims(nil)))
	require.NoError(t, err)
	assert.Equal(t, "user-123", principal.ID)
	assert.Equal(t, "alice", principal.Username)
	assert.Equal(t, "oidc", principal.AuthMethod)
	assert.Equal(t, "Alice Liddell", user.FullName)
	assert.Equal(t, "alice@example.com", user.Email)
}

func TestOIDCAuthenticator_Rejects(t *testing.T) {
	idp := newTestIDP(t)
	ctx := context.Background()

	a, err := NewOIDCAuthenticator(ctx, OIDCConfig{Issuer: idp.srv.URL, ClientID: testClientID})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"expired", idp.sign(t, idp.claims(map[string]any{"exp": time.Now().Add(-time.Hour).Unix()}))},
		{"wrong audience", idp.sign(t, idp.claims(map[string]any{"aud": "someone-else"}))},
		{"wrong issuer", idp.sign(t, idp.claims(map[string]any{"iss": "https://evil.example.com"}))},
		{"garbage", "not.a.jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := a.Authenticate(ctx, tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, _, err = a.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestOIDCAuthenticator_PublicIssuer(t *testing.T) {
	idp := newTestIDP(t)
	ctx := context.Background()
	const public = "https://login.example.com/realms/drive"

	keys := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&idp.key.PublicKey}}
	verifier := oidc.NewVerifier(idp.srv.URL, keys, &oidc.Config{ClientID: testClientID, SkipIssuerCheck: true})
	a := NewOIDCAuthenticatorWithVerifier(verifier, public)

	principal, _, err := a.Authenticate(ctx, idp.sign(t, idp.claims(map[string]any{"iss": public})))
	require.NoError(t, err)
	assert.Equal(t, "user-123", principal.ID)

	_, _, err = a.Authenticate(ctx, idp.sign(t, idp.claims(nil)))
	assert.ErrorIs(t, err, ErrInvalidToken, "internal issuer is not accepted once a public issuer is set")
}

func TestOIDCAuthenticator_DiscoveryFails(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	_, err := NewOIDCAuthenticator(context.Background(), OIDCConfig{
		Issuer:            srv.URL,
		ClientID:          testClientID,
		DiscoveryAttempts: 2,
		DiscoveryInterval: time.Millisecond,
	})
	assert.Error(t, err)
}
