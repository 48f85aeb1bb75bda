package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// User is the subset of the GoTrue user object the backend relies on.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
}

// MetadataString returns a string value from user_metadata.
func (u *User) MetadataString(key string) string {
	if u == nil || u.UserMetadata == nil {
		return ""
	}
	v, _ := u.UserMetadata[key].(string)
	return strings.TrimSpace(v)
}

// Session is a GoTrue token response.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         *User  `json:"user,omitempty"`
}

// SignUp registers a user. GoTrue answers with a bare user when email
// confirmation is pending and with a session when the user is auto-confirmed.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*User, error) {
	body := map[string]any{"email": email, "password": password}
	if len(metadata) > 0 {
		body["data"] = metadata
	}
	payload, err := c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/signup", body: body})
	if err != nil {
		return nil, err
	}
	raw := payload
	if nested := gjson.GetBytes(payload, "user"); nested.IsObject() {
		raw = []byte(nested.Raw)
	}
	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("supabase: decode signup: %w", err)
	}
	if user.ID == "" {
		return nil, nil
	}
	return &user, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	return c.token(ctx, "password", map[string]any{"email": email, "password": password})
}

func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	return c.token(ctx, "refresh_token", map[string]any{"refresh_token": refreshToken})
}

// ExchangeCodeForSession completes a PKCE authorization code flow.
func (c *Client) ExchangeCodeForSession(ctx context.Context, authCode, codeVerifier string) (*Session, error) {
	return c.token(ctx, "pkce", map[string]any{"auth_code": authCode, "code_verifier": codeVerifier})
}

func (c *Client) token(ctx context.Context, grant string, body map[string]any) (*Session, error) {
	var session Session
	err := c.doJSON(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token?grant_type=" + url.QueryEscape(grant),
		body:   body,
	}, &session)
	if err != nil {
		return nil, err
	}
	if session.AccessToken == "" {
		return nil, nil
	}
	return &session, nil
}

// GetUser resolves an access token to its user through the auth server.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var user User
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: "/auth/v1/user", token: accessToken}, &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, nil
	}
	return &user, nil
}

func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	path := "/auth/v1/recover"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	_, err := c.do(ctx, request{method: http.MethodPost, path: path, body: map[string]any{"email": email}})
	return err
}

// UpdateUser changes the password of the user owning accessToken.
func (c *Client) UpdateUser(ctx context.Context, accessToken, password string) (*User, error) {
	var user User
	err := c.doJSON(ctx, request{
		method: http.MethodPut,
		path:   "/auth/v1/user",
		token:  accessToken,
		body:   map[string]any{"password": password},
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// AuthorizeURL builds the OAuth redirect for provider using a PKCE S256 challenge.
func (c *Client) AuthorizeURL(provider, redirectTo, codeChallenge string) string {
	q := url.Values{}
	q.Set("provider", provider)
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	if codeChallenge != "" {
		q.Set("code_challenge", codeChallenge)
		q.Set("code_challenge_method", "s256")
	}
	return c.baseURL + "/auth/v1/authorize?" + q.Encode()
}
