// Package accounts implements registration, login and profile operations on
// top of Supabase Auth, mirroring every identity into the local users table.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"glucowizard/internal/domain"
	"glucowizard/internal/storage"
	"glucowizard/internal/supabase"
)

const (
	// OAuthFlowTTL bounds how long a PKCE verifier waits for its callback.
	OAuthFlowTTL = 10 * time.Minute

	googleProvider = "google"
)

// AuthProvider is the subset of the Supabase auth API used by the service.
type AuthProvider interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*supabase.User, error)
	SignInWithPassword(ctx context.Context, email, password string) (*supabase.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*supabase.Session, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	UpdateUser(ctx context.Context, accessToken, password string) (*supabase.User, error)
	AuthorizeURL(provider, redirectTo, codeChallenge string) string
	ExchangeCodeForSession(ctx context.Context, authCode, codeVerifier string) (*supabase.Session, error)
}

// TokenVerifier resolves bearer tokens to Supabase users.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*supabase.User, error)
}

// AvatarStorage uploads profile pictures to a public bucket.
type AvatarStorage interface {
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string, upsert bool) error
	Remove(ctx context.Context, bucket string, paths []string) error
	PublicURL(bucket, path string) string
}

type Deps struct {
	Auth            AuthProvider
	Verifier        TokenVerifier
	Avatars         AvatarStorage
	Users           domain.UserRepository
	Flows           domain.OAuthFlowRepository
	AvatarsBucket   string
	DefaultRedirect string
	Logger          zerolog.Logger
}

type Service struct {
	auth            AuthProvider
	verifier        TokenVerifier
	avatars         AvatarStorage
	users           domain.UserRepository
	flows           domain.OAuthFlowRepository
	avatarsBucket   string
	defaultRedirect string
	logger          zerolog.Logger
	validate        *validator.Validate
	now             func() time.Time
}

func NewService(deps Deps) *Service {
	bucket := deps.AvatarsBucket
	if bucket == "" {
		bucket = "profiles"
	}
	return &Service{
		auth:            deps.Auth,
		verifier:        deps.Verifier,
		avatars:         deps.Avatars,
		users:           deps.Users,
		flows:           deps.Flows,
		avatarsBucket:   bucket,
		defaultRedirect: deps.DefaultRedirect,
		logger:          deps.Logger,
		validate:        newValidator(),
		now:             time.Now,
	}
}

// RegisterInput is the body of POST /api/users/register/.
type RegisterInput struct {
	Username  string `json:"username" validate:"required,max=150"`
	Email     string `json:"email" validate:"omitempty,email,max=254"`
	Password  string `json:"password" validate:"required"`
	Password2 string `json:"password2" validate:"required"`
}

// LoginResult pairs the local user with the Supabase session.
type LoginResult struct {
	User    *domain.User
	Session *supabase.Session
}

// AvatarUpload is one uploaded profile picture.
type AvatarUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// GoogleAuthStart is returned when a Google sign-in begins. FlowID must be
// handed back on the callback so the verifier can be found.
type GoogleAuthStart struct {
	URL       string
	FlowID    string
	ExpiresAt time.Time
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Username = NormalizeUsername(in.Username)
	in.Email = NormalizeEmail(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return nil, validationFromStruct(err)
	}
	if !ValidUsername(in.Username) {
		return nil, domain.FieldErrors(map[string][]string{"username": {
			"Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.",
		}})
	}
	exists, err := s.users.UsernameExists(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, usernameTaken()
	}
	if in.Password != in.Password2 {
		return nil, nonFieldError("Passwords do not match")
	}
	if problems := ValidatePassword(in.Password, in.Username, in.Email); len(problems) > 0 {
		return nil, domain.FieldErrors(map[string][]string{"non_field_errors": problems})
	}

	sbUser, err := s.auth.SignUp(ctx, in.Email, in.Password, map[string]any{"username": in.Username})
	if err != nil {
		return nil, upstream(err)
	}
	if sbUser == nil {
		return nil, nonFieldError("Supabase signup failed")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Create(ctx, domain.NewUser{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		SupabaseID:   validSupabaseID(sbUser.ID),
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, usernameTaken()
		}
		return nil, err
	}
	s.logger.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	return user, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.NewValidationError("email and password are required")
	}
	session, err := s.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, upstream(err)
	}
	if session == nil {
		return nil, &domain.AuthError{Message: "Invalid credentials"}
	}
	user, err := s.syncUser(ctx, email, session.User, "")
	if err != nil {
		return nil, err
	}
	if err := s.users.TouchLogin(ctx, user.ID); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("update last_login failed")
	}
	return &LoginResult{User: user, Session: session}, nil
}

func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*supabase.Session, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, domain.NewValidationError("refresh_token is required")
	}
	session, err := s.auth.RefreshSession(ctx, refreshToken)
	if err != nil {
		return nil, upstream(err)
	}
	if session == nil {
		return nil, &domain.AuthError{Message: "Invalid refresh token"}
	}
	return session, nil
}

func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return domain.NewValidationError("email is required")
	}
	if err := s.auth.ResetPasswordForEmail(ctx, email, ""); err != nil {
		return upstream(err)
	}
	return nil
}

// UpdatePassword sets a new password for the token owner without checking the
// old one. It is used after a password reset link.
func (s *Service) UpdatePassword(ctx context.Context, user *domain.User, accessToken, password string) error {
	if password == "" {
		return domain.NewValidationError("new password is required")
	}
	if _, err := s.auth.UpdateUser(ctx, accessToken, password); err != nil {
		return upstream(err)
	}
	s.syncPasswordHash(ctx, user, password)
	return nil
}

func (s *Service) ChangePassword(ctx context.Context, user *domain.User, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return domain.NewValidationError("Both old_password and new_password are required")
	}
	if user.Email == "" {
		return domain.NewValidationError("An email address is required to change the password")
	}
	session, err := s.auth.SignInWithPassword(ctx, user.Email, oldPassword)
	if err != nil {
		if supabase.IsStatus(err, 400) {
			return &domain.AuthError{Message: "Invalid old password"}
		}
		return upstream(err)
	}
	if session == nil {
		return &domain.AuthError{Message: "Invalid old password"}
	}
	if _, err := s.auth.UpdateUser(ctx, session.AccessToken, newPassword); err != nil {
		return upstream(err)
	}
	s.syncPasswordHash(ctx, user, newPassword)
	return nil
}

func (s *Service) syncPasswordHash(ctx context.Context, user *domain.User, password string) {
	hash, err := HashPassword(password)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		s.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("local password hash not updated")
		return
	}
	user.PasswordHash = hash
}

// UploadAvatar replaces the profile picture and returns its public URL.
func (s *Service) UploadAvatar(ctx context.Context, user *domain.User, file AvatarUpload) (string, error) {
	if file.Filename == "" && len(file.Data) == 0 {
		return "", domain.NewValidationError("No file provided")
	}
	path := fmt.Sprintf("avatars/%d_%s", user.ID, storage.SanitizeFilename(file.Filename))

	if old := avatarPathFromURL(user.AvatarURL, s.avatarsBucket); old != "" && old != path {
		if err := s.avatars.Remove(ctx, s.avatarsBucket, []string{old}); err != nil {
			s.logger.Debug().Err(err).Str("path", old).Msg("old avatar not removed")
		}
	}
	if err := s.avatars.Upload(ctx, s.avatarsBucket, path, file.Data, file.ContentType, true); err != nil {
		return "", upstream(err)
	}
	url := s.avatars.PublicURL(s.avatarsBucket, path)
	if err := s.users.UpdateAvatar(ctx, user.ID, url); err != nil {
		return "", err
	}
	user.AvatarURL = url
	return url, nil
}

// avatarPathFromURL extracts the object path from a public bucket URL.
func avatarPathFromURL(avatarURL, bucket string) string {
	marker := "/public/" + bucket + "/"
	idx := strings.LastIndex(avatarURL, marker)
	if idx < 0 {
		return ""
	}
	path := avatarURL[idx+len(marker):]
	if q := strings.Index(path, "?"); q >= 0 {
		path = path[:q]
	}
	return path
}

// BeginGoogleAuth stores a fresh PKCE verifier and returns the authorize URL.
func (s *Service) BeginGoogleAuth(ctx context.Context, redirectTo string) (*GoogleAuthStart, error) {
	redirectTo = strings.TrimSpace(redirectTo)
	if redirectTo == "" {
		redirectTo = s.defaultRedirect
	}
	verifier := oauth2.GenerateVerifier()
	flow := domain.OAuthFlow{
		ID:           uuid.NewString(),
		CodeVerifier: verifier,
		RedirectTo:   redirectTo,
		ExpiresAt:    s.now().Add(OAuthFlowTTL),
	}
	if err := s.flows.Save(ctx, flow); err != nil {
		return nil, fmt.Errorf("save oauth flow: %w", err)
	}
	return &GoogleAuthStart{
		URL:       s.auth.AuthorizeURL(googleProvider, redirectTo, oauth2.S256ChallengeFromVerifier(verifier)),
		FlowID:    flow.ID,
		ExpiresAt: flow.ExpiresAt,
	}, nil
}

// CompleteGoogleAuth exchanges the authorization code. A missing or expired
// flow leaves the verifier empty and lets Supabase reject the exchange.
func (s *Service) CompleteGoogleAuth(ctx context.Context, code, flowID string) (*LoginResult, error) {
	if strings.TrimSpace(code) == "" {
		return nil, domain.NewValidationError("No code provided")
	}
	verifier := ""
	if _, err := uuid.Parse(flowID); err == nil {
		flow, err := s.flows.Consume(ctx, flowID)
		switch {
		case err == nil:
			verifier = flow.CodeVerifier
		case errors.Is(err, domain.ErrNotFound):
			s.logger.Debug().Str("flow_id", flowID).Msg("oauth flow missing or expired")
		default:
			s.logger.Warn().Err(err).Str("flow_id", flowID).Msg("load oauth flow failed")
		}
	}
	session, err := s.auth.ExchangeCodeForSession(ctx, code, verifier)
	if err != nil {
		return nil, upstream(err)
	}
	if session == nil || session.User == nil {
		return nil, &domain.UpstreamError{Service: "supabase", Message: "code exchange returned no session"}
	}
	user, err := s.syncUser(ctx, session.User.Email, session.User, session.User.MetadataString("username"))
	if err != nil {
		return nil, err
	}
	if err := s.users.TouchLogin(ctx, user.ID); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("update last_login failed")
	}
	return &LoginResult{User: user, Session: session}, nil
}

// Authenticate resolves an Authorization header. An empty header is anonymous
// and returns a nil user without error.
func (s *Service) Authenticate(ctx context.Context, header string) (*domain.User, string, error) {
	if header == "" {
		return nil, "", nil
	}
	parts := strings.Fields(header)
	if len(parts) < 2 {
		return nil, "", &domain.AuthError{Message: "Bearer token malformed"}
	}
	token := parts[1]
	sbUser, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return nil, "", &domain.AuthError{Message: "Supabase authentication failed: " + err.Error()}
	}
	if sbUser == nil {
		return nil, "", &domain.AuthError{Message: "Supabase authentication failed: Invalid Supabase token"}
	}
	if strings.TrimSpace(sbUser.Email) == "" {
		return nil, "", &domain.AuthError{Message: "Supabase authentication failed: token has no email"}
	}
	user, err := s.syncUser(ctx, sbUser.Email, sbUser, "")
	if err != nil {
		return nil, "", err
	}
	if !user.IsActive {
		return nil, "", &domain.AuthError{Message: "User inactive or deleted."}
	}
	return user, token, nil
}

// syncUser returns the local user for email, creating it on first sight.
func (s *Service) syncUser(ctx context.Context, email string, sbUser *supabase.User, preferredUsername string) (*domain.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, domain.NewValidationError("Supabase user has no email")
	}
	supabaseID := ""
	if sbUser != nil {
		supabaseID = validSupabaseID(sbUser.ID)
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		s.attachSupabaseID(ctx, user, supabaseID)
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	base := NormalizeUsername(preferredUsername)
	if !ValidUsername(base) {
		base = usernameFromEmail(email)
	}
	username, err := uniqueUsername(ctx, s.users, base)
	if err != nil {
		return nil, err
	}
	user, err = s.users.Create(ctx, domain.NewUser{Username: username, Email: email, SupabaseID: supabaseID})
	if errors.Is(err, domain.ErrConflict) {
		// Another request created the same identity first.
		return s.users.GetByEmail(ctx, email)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("local user created from supabase identity")
	return user, nil
}

func (s *Service) attachSupabaseID(ctx context.Context, user *domain.User, supabaseID string) {
	if supabaseID == "" || user.SupabaseID != "" {
		return
	}
	if err := s.users.AttachSupabaseID(ctx, user.ID, supabaseID); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("attach supabase id failed")
		return
	}
	user.SupabaseID = supabaseID
}

func validSupabaseID(id string) string {
	if _, err := uuid.Parse(id); err != nil {
		return ""
	}
	return id
}

func upstream(err error) error {
	var apiErr *supabase.APIError
	if errors.As(err, &apiErr) {
		return &domain.UpstreamError{Service: "supabase", Message: apiErr.Message, Err: err}
	}
	return &domain.UpstreamError{Service: "supabase", Err: err}
}

func usernameTaken() error {
	return domain.FieldErrors(map[string][]string{"username": {"A user with that username already exists."}})
}

func nonFieldError(msg string) error {
	return domain.FieldErrors(map[string][]string{"non_field_errors": {msg}})
}
