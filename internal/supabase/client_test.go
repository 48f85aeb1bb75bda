package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glucowizard/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Options{URL: srv.URL + "/", Key: "anon-key"})
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresURLAndKey(t *testing.T) {
	_, err := NewClient(Options{URL: "https://x.supabase.co"})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.EqualError(t, err, "SUPABASE_URL or SUPABASE_KEY not set")
}

func TestSignUpHandlesBareUserAndSession(t *testing.T) {
	responses := []string{
		`{"id":"u-1","email":"a@example.com","user_metadata":{"username":"alice"}}`,
		`{"access_token":"at","refresh_token":"rt","user":{"id":"u-2","email":"b@example.com"}}`,
	}
	call := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/signup", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"username": "alice"}, body["data"])
		_, _ = io.WriteString(w, responses[call])
		call++
	})

	user, err := client.SignUp(context.Background(), "a@example.com", "pw", map[string]any{"username": "alice"})
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, "alice", user.MetadataString("username"))

	user, err = client.SignUp(context.Background(), "b@example.com", "pw", map[string]any{"username": "alice"})
	require.NoError(t, err)
	assert.Equal(t, "u-2", user.ID)
}

func TestSignInWithPasswordDecodesAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`)
	})
	_, err := client.SignInWithPassword(context.Background(), "a@example.com", "bad")
	require.Error(t, err)
	assert.EqualError(t, err, "Invalid login credentials")
	assert.True(t, IsStatus(err, http.StatusBadRequest))
	assert.True(t, errors.Is(err, domain.ErrUpstream))
}

func TestRefreshSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
		_, _ = io.WriteString(w, `{"access_token":"new","refresh_token":"r2","expires_in":3600,"expires_at":1700000000}`)
	})
	session, err := client.RefreshSession(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "new", session.AccessToken)
	assert.Equal(t, int64(1700000000), session.ExpiresAt)
}

func TestGetUserSendsBearer(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"id":"u-1","email":"a@example.com"}`)
	})
	user, err := client.GetUser(context.Background(), "user-token")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", user.Email)
}

func TestUploadAndRemove(t *testing.T) {
	var seen []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.EscapedPath())
		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "true", r.Header.Get("x-upsert"))
			assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, "png-bytes", string(body))
		case http.MethodDelete:
			var body map[string][]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, []string{"avatars/1_old.png"}, body["prefixes"])
		}
		_, _ = io.WriteString(w, `{}`)
	})
	require.NoError(t, client.Upload(context.Background(), "profiles", "avatars/1_me.png", []byte("png-bytes"), "image/png", true))
	require.NoError(t, client.Remove(context.Background(), "profiles", []string{"avatars/1_old.png"}))
	assert.Equal(t, []string{
		"POST /storage/v1/object/profiles/avatars/1_me.png",
		"DELETE /storage/v1/object/profiles",
	}, seen)
}

func TestPublicURLAndAuthorizeURL(t *testing.T) {
	client, err := NewClient(Options{URL: "https://proj.supabase.co/", Key: "k"})
	require.NoError(t, err)
	assert.Equal(t, "https://proj.supabase.co/storage/v1/object/public/profiles/avatars/1_me%20x.png",
		client.PublicURL("profiles", "avatars/1_me x.png"))

	authURL := client.AuthorizeURL("google", "http://localhost:3000/auth/callback", "challenge")
	assert.True(t, strings.HasPrefix(authURL, "https://proj.supabase.co/auth/v1/authorize?"))
	assert.Contains(t, authURL, "provider=google")
	assert.Contains(t, authURL, "code_challenge=challenge")
	assert.Contains(t, authURL, "code_challenge_method=s256")
}

func TestDecodeErrorFallsBackToBody(t *testing.T) {
	err := decodeError(http.StatusBadGateway, []byte("upstream down"))
	assert.Equal(t, "upstream down", err.Message)
	err = decodeError(http.StatusNotFound, nil)
	assert.Equal(t, "Not Found", err.Message)
	err = decodeError(http.StatusUnprocessableEntity, []byte(`{"code":422,"error_code":"weak_password","msg":"Password should be at least 6 characters."}`))
	assert.Equal(t, "Password should be at least 6 characters.", err.Message)
	assert.Equal(t, "weak_password", err.Code)
}
