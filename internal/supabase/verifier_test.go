package supabase

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeSegment(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func signHS256(t *testing.T, secret string, claims map[string]any) string {
	t.Helper()
	input := encodeSegment(t, map[string]string{"alg": "HS256", "typ": "JWT"}) + "." + encodeSegment(t, claims)
	return input + "." + base64.RawURLEncoding.EncodeToString(hmacSign([]byte(secret), input))
}

type fakeFetcher struct {
	user  *User
	calls int
}

func (f *fakeFetcher) GetUser(ctx context.Context, token string) (*User, error) {
	f.calls++
	return f.user, nil
}

func TestVerifyHS256(t *testing.T) {
	v := NewTokenVerifier("secret", nil, nil)
	token := signHS256(t, "secret", map[string]any{
		"sub":           "u-1",
		"email":         "a@example.com",
		"exp":           time.Now().Add(time.Hour).Unix(),
		"user_metadata": map[string]any{"username": "alice"},
	})
	user, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, "alice", user.MetadataString("username"))
}

func TestVerifyHS256Rejects(t *testing.T) {
	v := NewTokenVerifier("secret", nil, nil)
	expired := signHS256(t, "secret", map[string]any{"sub": "u-1", "exp": time.Now().Add(-time.Minute).Unix()})
	_, err := v.Verify(context.Background(), expired)
	assert.EqualError(t, err, "token expired")

	forged := signHS256(t, "other", map[string]any{"sub": "u-1"})
	_, err = v.Verify(context.Background(), forged)
	assert.EqualError(t, err, "invalid signature")

	anon := signHS256(t, "secret", map[string]any{"role": "anon"})
	_, err = v.Verify(context.Background(), anon)
	assert.EqualError(t, err, "token has no subject")

	_, err = v.Verify(context.Background(), "not-a-token")
	assert.Error(t, err)
}

func TestVerifyFallsBackToRemoteWithoutSecret(t *testing.T) {
	fetcher := &fakeFetcher{user: &User{ID: "u-9", Email: "z@example.com"}}
	v := NewTokenVerifier("", nil, fetcher)
	token := signHS256(t, "whatever", map[string]any{"sub": "u-9"})
	user, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u-9", user.ID)
	assert.Equal(t, 1, fetcher.calls)

	fetcher.user = nil
	_, err = v.Verify(context.Background(), token)
	assert.EqualError(t, err, "invalid supabase token")
}

func TestVerifyES256WithKeySet(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/.well-known/jwks.json", r.URL.Path)
		fetches++
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{{
			"kid": "k1",
			"kty": "EC",
			"crv": "P-256",
			"alg": "ES256",
			"x":   base64.RawURLEncoding.EncodeToString(priv.PublicKey.X.FillBytes(make([]byte, 32))),
			"y":   base64.RawURLEncoding.EncodeToString(priv.PublicKey.Y.FillBytes(make([]byte, 32))),
		}}})
	}))
	defer srv.Close()

	input := encodeSegment(t, map[string]string{"alg": "ES256", "kid": "k1"}) + "." +
		encodeSegment(t, map[string]any{"sub": "u-3", "email": "c@example.com", "exp": time.Now().Add(time.Hour).Unix()})
	digest := sha256.Sum256([]byte(input))
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	require.NoError(t, err)
	sig := append(r.FillBytes(make([]byte, 32)), s.FillBytes(make([]byte, 32))...)
	token := input + "." + base64.RawURLEncoding.EncodeToString(sig)

	v := NewTokenVerifier("", NewKeySet(srv.URL, nil), nil)
	user, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "c@example.com", user.Email)

	_, err = v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, 1, fetches, "keys are cached between verifications")
}

func TestKeySetThrottlesUnknownKidRefresh(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{{
			"kid": "k1",
			"kty": "EC",
			"crv": "P-256",
			"x":   base64.RawURLEncoding.EncodeToString(priv.PublicKey.X.FillBytes(make([]byte, 32))),
			"y":   base64.RawURLEncoding.EncodeToString(priv.PublicKey.Y.FillBytes(make([]byte, 32))),
		}}})
	}))
	defer srv.Close()

	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	keys := NewKeySet(srv.URL, nil)
	keys.now = func() time.Time { return now }
	ctx := context.Background()
	sig := make([]byte, 64)

	for i := 0; i < 5; i++ {
		err := keys.Verify(ctx, "ES256", "forged", "a.b", sig)
		assert.ErrorIs(t, err, errUnknownKid)
	}
	assert.Equal(t, 1, fetches, "unknown kids must not refetch within the refresh interval")

	now = now.Add(jwksMinRefresh + time.Second)
	assert.ErrorIs(t, keys.Verify(ctx, "ES256", "forged", "a.b", sig), errUnknownKid)
	assert.Equal(t, 2, fetches)
}
