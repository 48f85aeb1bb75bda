package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glucowizard/internal/domain"
	"glucowizard/internal/supabase"
)

const sbID = "5f0c6b1e-2d7a-4c43-9e1f-0c6b1e2d7a4c"

type harness struct {
	svc     *Service
	users   *memoryUsers
	flows   *memoryFlows
	auth    *fakeAuth
	avatars *fakeAvatars
}

func newHarness(verifier TokenVerifier, seed ...domain.User) *harness {
	h := &harness{
		users:   newMemoryUsers(seed...),
		flows:   &memoryFlows{flows: map[string]domain.OAuthFlow{}},
		auth:    &fakeAuth{},
		avatars: &fakeAvatars{},
	}
	h.svc = NewService(Deps{
		Auth:            h.auth,
		Verifier:        verifier,
		Avatars:         h.avatars,
		Users:           h.users,
		Flows:           h.flows,
		DefaultRedirect: "http://localhost:3000/auth/callback",
		Logger:          zerolog.Nop(),
	})
	return h
}

func validationFields(t *testing.T, err error) map[string][]string {
	t.Helper()
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	return verr.Fields
}

func TestRegisterCreatesLocalUser(t *testing.T) {
	h := newHarness(nil)
	h.auth.signUpUser = &supabase.User{ID: sbID, Email: "alice@example.com"}

	user, err := h.svc.Register(context.Background(), RegisterInput{
		Username: "alice", Email: "alice@Example.COM", Password: "Tr1cky-Glucose", Password2: "Tr1cky-Glucose",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, sbID, user.SupabaseID)
	assert.True(t, checkPassword(user.PasswordHash, "Tr1cky-Glucose"))
	assert.Equal(t, map[string]any{"username": "alice"}, h.auth.signUpMeta)
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(nil, domain.User{ID: 1, Username: "taken", IsActive: true})
	ctx := context.Background()

	_, err := h.svc.Register(ctx, RegisterInput{Username: "", Email: "bad", Password: "x"})
	fields := validationFields(t, err)
	assert.Equal(t, []string{"This field is required."}, fields["username"])
	assert.Equal(t, []string{"Enter a valid email address."}, fields["email"])
	assert.Equal(t, []string{"This field is required."}, fields["password2"])

	_, err = h.svc.Register(ctx, RegisterInput{Username: "taken", Password: "Tr1cky-Glucose", Password2: "Tr1cky-Glucose"})
	assert.Equal(t, []string{"A user with that username already exists."}, validationFields(t, err)["username"])

	_, err = h.svc.Register(ctx, RegisterInput{Username: "bob", Password: "Tr1cky-Glucose", Password2: "other"})
	assert.EqualError(t, err, "Passwords do not match")

	_, err = h.svc.Register(ctx, RegisterInput{Username: "bob", Password: "12345678", Password2: "12345678"})
	assert.Equal(t, []string{"This password is too common.", "This password is entirely numeric."}, validationFields(t, err)["non_field_errors"])

	_, err = h.svc.Register(ctx, RegisterInput{Username: "bad name!", Password: "Tr1cky-Glucose", Password2: "Tr1cky-Glucose"})
	assert.Contains(t, validationFields(t, err), "username")
}

func TestRegisterSupabaseFailures(t *testing.T) {
	h := newHarness(nil)
	in := RegisterInput{Username: "carol", Email: "carol@example.com", Password: "Tr1cky-Glucose", Password2: "Tr1cky-Glucose"}

	_, err := h.svc.Register(context.Background(), in)
	assert.EqualError(t, err, "Supabase signup failed")

	h.auth.signUpErr = &supabase.APIError{Status: 422, Message: "User already registered"}
	_, err = h.svc.Register(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.EqualError(t, err, "User already registered")
}

func TestLoginSyncsUserByEmail(t *testing.T) {
	h := newHarness(nil, domain.User{ID: 1, Username: "dave", IsActive: true})
	h.auth.session = &supabase.Session{AccessToken: "at", User: &supabase.User{ID: sbID, Email: "dave@example.com"}}

	res, err := h.svc.Login(context.Background(), "dave@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "dave1", res.User.Username, "collides with existing username")
	assert.Equal(t, sbID, res.User.SupabaseID)

	again, err := h.svc.Login(context.Background(), "dave@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, again.User.ID)
	stored, _ := h.users.GetByID(context.Background(), res.User.ID)
	assert.NotNil(t, stored.LastLogin)
}

func TestLoginErrors(t *testing.T) {
	h := newHarness(nil)
	_, err := h.svc.Login(context.Background(), "", "pw")
	assert.EqualError(t, err, "email and password are required")

	_, err = h.svc.Login(context.Background(), "a@example.com", "pw")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.EqualError(t, err, "Invalid credentials")

	h.auth.signInErr = &supabase.APIError{Status: 400, Message: "Invalid login credentials"}
	_, err = h.svc.Login(context.Background(), "a@example.com", "pw")
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestRefreshToken(t *testing.T) {
	h := newHarness(nil)
	_, err := h.svc.RefreshToken(context.Background(), " ")
	assert.EqualError(t, err, "refresh_token is required")
	_, err = h.svc.RefreshToken(context.Background(), "rt")
	assert.EqualError(t, err, "Invalid refresh token")
}

func TestChangePassword(t *testing.T) {
	h := newHarness(nil, domain.User{ID: 1, Username: "erin", Email: "erin@example.com", IsActive: true})
	user, _ := h.users.GetByID(context.Background(), 1)

	err := h.svc.ChangePassword(context.Background(), user, "", "new")
	assert.EqualError(t, err, "Both old_password and new_password are required")

	err = h.svc.ChangePassword(context.Background(), user, "old", "Brand-new-pass")
	assert.EqualError(t, err, "Invalid old password")

	h.auth.session = &supabase.Session{AccessToken: "fresh"}
	require.NoError(t, h.svc.ChangePassword(context.Background(), user, "old", "Brand-new-pass"))
	assert.Equal(t, "fresh", h.auth.updatedToken)
	stored, _ := h.users.GetByID(context.Background(), 1)
	assert.True(t, checkPassword(stored.PasswordHash, "Brand-new-pass"))
}

func TestUpdatePasswordRequiresValue(t *testing.T) {
	h := newHarness(nil, domain.User{ID: 1, Username: "f", IsActive: true})
	user, _ := h.users.GetByID(context.Background(), 1)
	assert.EqualError(t, h.svc.UpdatePassword(context.Background(), user, "tok", ""), "new password is required")
	require.NoError(t, h.svc.UpdatePassword(context.Background(), user, "tok", "another-pass"))
	assert.Equal(t, "tok", h.auth.updatedToken)
}

func TestUploadAvatarReplacesOldObject(t *testing.T) {
	h := newHarness(nil, domain.User{
		ID: 7, Username: "gina", IsActive: true,
		AvatarURL: "https://proj.supabase.co/storage/v1/object/public/profiles/avatars/7_old.png?t=123",
	})
	user, _ := h.users.GetByID(context.Background(), 7)

	_, err := h.svc.UploadAvatar(context.Background(), user, AvatarUpload{})
	assert.EqualError(t, err, "No file provided")

	url, err := h.svc.UploadAvatar(context.Background(), user, AvatarUpload{Filename: "me pic.png", ContentType: "image/png", Data: []byte("png")})
	require.NoError(t, err)
	assert.Equal(t, "https://proj.supabase.co/storage/v1/object/public/profiles/avatars/7_me_pic.png", url)
	assert.Equal(t, []string{"profiles/avatars/7_old.png"}, h.avatars.removed)
	assert.Equal(t, []string{"profiles/avatars/7_me_pic.png"}, h.avatars.uploaded)

	_, err = h.svc.UploadAvatar(context.Background(), user, AvatarUpload{Filename: "me pic.png", Data: []byte("png2")})
	require.NoError(t, err)
	assert.Len(t, h.avatars.removed, 1, "same path is overwritten, not removed")
}

func TestAvatarPathFromURL(t *testing.T) {
	assert.Equal(t, "avatars/1_a.png", avatarPathFromURL("https://x/storage/v1/object/public/profiles/avatars/1_a.png?v=2", "profiles"))
	assert.Equal(t, "", avatarPathFromURL("https://cdn.example.com/a.png", "profiles"))
	assert.Equal(t, "", avatarPathFromURL("", "profiles"))
}

func TestGoogleAuthRoundTrip(t *testing.T) {
	h := newHarness(nil)
	start, err := h.svc.BeginGoogleAuth(context.Background(), "")
	require.NoError(t, err)
	assert.Contains(t, start.URL, "redirect_to=http://localhost:3000/auth/callback")
	require.Contains(t, h.flows.flows, start.FlowID)
	verifier := h.flows.flows[start.FlowID].CodeVerifier

	_, err = h.svc.CompleteGoogleAuth(context.Background(), "", start.FlowID)
	assert.EqualError(t, err, "No code provided")

	h.auth.session = &supabase.Session{
		AccessToken: "at", RefreshToken: "rt", ExpiresIn: 3600,
		User: &supabase.User{ID: sbID, Email: "hank@example.com", UserMetadata: map[string]any{"username": "hankster"}},
	}
	res, err := h.svc.CompleteGoogleAuth(context.Background(), "code-1", start.FlowID)
	require.NoError(t, err)
	assert.Equal(t, verifier, h.auth.exchangeVer)
	assert.Equal(t, "hankster", res.User.Username)
	assert.NotContains(t, h.flows.flows, start.FlowID, "flow is consumed")

	_, err = h.svc.CompleteGoogleAuth(context.Background(), "code-2", start.FlowID)
	require.NoError(t, err)
	assert.Equal(t, "", h.auth.exchangeVer)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	h := newHarness(fakeVerifier{user: &supabase.User{ID: sbID, Email: "ivy@example.com"}})
	user, token, err := h.svc.Authenticate(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.Empty(t, token)

	_, _, err = h.svc.Authenticate(ctx, "Bearer")
	assert.EqualError(t, err, "Bearer token malformed")

	user, token, err = h.svc.Authenticate(ctx, "Bearer tok")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	assert.Equal(t, "ivy", user.Username)

	h = newHarness(fakeVerifier{err: errors.New("token expired")})
	_, _, err = h.svc.Authenticate(ctx, "Bearer tok")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.EqualError(t, err, "Supabase authentication failed: token expired")

	h = newHarness(fakeVerifier{user: &supabase.User{ID: sbID, Email: "jo@example.com"}},
		domain.User{ID: 3, Username: "jo", Email: "jo@example.com", IsActive: false})
	_, _, err = h.svc.Authenticate(ctx, "Bearer tok")
	assert.EqualError(t, err, "User inactive or deleted.")
}
