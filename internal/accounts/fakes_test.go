package accounts

import (
	"context"
	"strings"
	"sync"
	"time"

	"glucowizard/internal/domain"
	"glucowizard/internal/supabase"
)

type memoryUsers struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*domain.User
}

func newMemoryUsers(seed ...domain.User) *memoryUsers {
	m := &memoryUsers{users: map[int64]*domain.User{}}
	for _, u := range seed {
		u := u
		m.users[u.ID] = &u
		if u.ID > m.nextID {
			m.nextID = u.ID
		}
	}
	return m
}

func (m *memoryUsers) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memoryUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *domain.User
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) && (found == nil || u.ID < found.ID) {
			found = u
		}
	}
	if found == nil {
		return nil, domain.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (m *memoryUsers) UsernameExists(ctx context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryUsers) Create(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
	if exists, _ := m.UsernameExists(ctx, nu.Username); exists {
		return nil, domain.ErrConflict
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	u := &domain.User{
		ID:           m.nextID,
		Username:     nu.Username,
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		SupabaseID:   nu.SupabaseID,
		IsActive:     true,
		DateJoined:   time.Now(),
		UpdatedAt:    time.Now(),
	}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memoryUsers) update(id int64, fn func(u *domain.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(u)
	return nil
}

func (m *memoryUsers) UpdateAvatar(ctx context.Context, id int64, url string) error {
	return m.update(id, func(u *domain.User) { u.AvatarURL = url })
}

func (m *memoryUsers) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return m.update(id, func(u *domain.User) { u.PasswordHash = hash })
}

func (m *memoryUsers) TouchLogin(ctx context.Context, id int64) error {
	now := time.Now()
	return m.update(id, func(u *domain.User) { u.LastLogin = &now })
}

func (m *memoryUsers) AttachSupabaseID(ctx context.Context, id int64, sid string) error {
	return m.update(id, func(u *domain.User) {
		if u.SupabaseID == "" {
			u.SupabaseID = sid
		}
	})
}

func (m *memoryUsers) SetStaff(ctx context.Context, id int64, staff, superuser bool) (*domain.User, error) {
	if err := m.update(id, func(u *domain.User) { u.IsStaff, u.IsSuperuser = staff, superuser }); err != nil {
		return nil, err
	}
	return m.GetByID(ctx, id)
}

func (m *memoryUsers) List(ctx context.Context, query string, limit, offset int) ([]domain.User, error) {
	return nil, nil
}

type memoryFlows struct {
	flows map[string]domain.OAuthFlow
}

func (m *memoryFlows) Save(ctx context.Context, flow domain.OAuthFlow) error {
	m.flows[flow.ID] = flow
	return nil
}

func (m *memoryFlows) Consume(ctx context.Context, id string) (*domain.OAuthFlow, error) {
	flow, ok := m.flows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	delete(m.flows, id)
	return &flow, nil
}

type fakeAuth struct {
	signUpUser   *supabase.User
	signUpErr    error
	signUpMeta   map[string]any
	session      *supabase.Session
	signInErr    error
	updateErr    error
	updatedToken string
	exchangeCode string
	exchangeVer  string
	resetEmail   string
}

func (f *fakeAuth) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*supabase.User, error) {
	f.signUpMeta = metadata
	return f.signUpUser, f.signUpErr
}

func (f *fakeAuth) SignInWithPassword(ctx context.Context, email, password string) (*supabase.Session, error) {
	return f.session, f.signInErr
}

func (f *fakeAuth) RefreshSession(ctx context.Context, refreshToken string) (*supabase.Session, error) {
	return f.session, f.signInErr
}

func (f *fakeAuth) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	f.resetEmail = email
	return nil
}

func (f *fakeAuth) UpdateUser(ctx context.Context, accessToken, password string) (*supabase.User, error) {
	f.updatedToken = accessToken
	return &supabase.User{}, f.updateErr
}

func (f *fakeAuth) AuthorizeURL(provider, redirectTo, codeChallenge string) string {
	return "https://proj.supabase.co/auth/v1/authorize?provider=" + provider + "&redirect_to=" + redirectTo + "&code_challenge=" + codeChallenge
}

func (f *fakeAuth) ExchangeCodeForSession(ctx context.Context, authCode, codeVerifier string) (*supabase.Session, error) {
	f.exchangeCode, f.exchangeVer = authCode, codeVerifier
	return f.session, f.signInErr
}

type fakeVerifier struct {
	user *supabase.User
	err  error
}

func (f fakeVerifier) Verify(ctx context.Context, token string) (*supabase.User, error) {
	return f.user, f.err
}

type fakeAvatars struct {
	uploaded []string
	removed  []string
}

func (f *fakeAvatars) Upload(ctx context.Context, bucket, path string, data []byte, contentType string, upsert bool) error {
	f.uploaded = append(f.uploaded, bucket+"/"+path)
	return nil
}

func (f *fakeAvatars) Remove(ctx context.Context, bucket string, paths []string) error {
	for _, p := range paths {
		f.removed = append(f.removed, bucket+"/"+p)
	}
	return nil
}

func (f *fakeAvatars) PublicURL(bucket, path string) string {
	return "https://proj.supabase.co/storage/v1/object/public/" + bucket + "/" + path
}
