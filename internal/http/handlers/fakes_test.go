package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"glucowizard/internal/accounts"
	"glucowizard/internal/domain"
	"glucowizard/internal/middleware"
	"glucowizard/internal/reports"
	"glucowizard/internal/supabase"
)

var errNotImplemented = errors.New("not implemented in fake")

type fakeAccounts struct {
	register       func(in accounts.RegisterInput) (*domain.User, error)
	login          func(email, password string) (*accounts.LoginResult, error)
	changePassword func(user *domain.User, oldPw, newPw string) error
	uploadAvatar   func(user *domain.User, file accounts.AvatarUpload) (string, error)
	beginGoogle    func(redirect string) (*accounts.GoogleAuthStart, error)
	completeGoogle func(code, flowID string) (*accounts.LoginResult, error)
	updatedToken   string
}

func (f *fakeAccounts) Register(_ context.Context, in accounts.RegisterInput) (*domain.User, error) {
	return f.register(in)
}

func (f *fakeAccounts) Login(_ context.Context, email, password string) (*accounts.LoginResult, error) {
	return f.login(email, password)
}

func (f *fakeAccounts) RefreshToken(_ context.Context, token string) (*supabase.Session, error) {
	if token == "" {
		return nil, domain.NewValidationError("refresh_token is required")
	}
	return &supabase.Session{AccessToken: "new-access", RefreshToken: token, ExpiresAt: 1700000000}, nil
}

func (f *fakeAccounts) ForgotPassword(_ context.Context, email string) error {
	if email == "" {
		return domain.NewValidationError("email is required")
	}
	return nil
}

func (f *fakeAccounts) UpdatePassword(_ context.Context, _ *domain.User, token, password string) error {
	if password == "" {
		return domain.NewValidationError("new password is required")
	}
	f.updatedToken = token
	return nil
}

func (f *fakeAccounts) ChangePassword(_ context.Context, user *domain.User, oldPw, newPw string) error {
	return f.changePassword(user, oldPw, newPw)
}

func (f *fakeAccounts) UploadAvatar(_ context.Context, user *domain.User, file accounts.AvatarUpload) (string, error) {
	return f.uploadAvatar(user, file)
}

func (f *fakeAccounts) BeginGoogleAuth(_ context.Context, redirect string) (*accounts.GoogleAuthStart, error) {
	return f.beginGoogle(redirect)
}

func (f *fakeAccounts) CompleteGoogleAuth(_ context.Context, code, flowID string) (*accounts.LoginResult, error) {
	return f.completeGoogle(code, flowID)
}

type fakeReports struct {
	create  func(user *domain.User, in reports.CreateInput) (*domain.Report, error)
	reports map[string]*domain.Report
	stats   *domain.ReportStats
	export  []byte
}

func (f *fakeReports) Create(_ context.Context, user *domain.User, in reports.CreateInput) (*domain.Report, error) {
	return f.create(user, in)
}

func (f *fakeReports) List(_ context.Context, userID int64, limit, offset int) (*reports.Page, error) {
	var items []domain.ReportListItem
	for _, r := range f.reports {
		if r.UserID == userID {
			items = append(items, domain.ReportListItem{ID: r.ID, PDFFile: r.PDFFile, CreatedAt: r.CreatedAt})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return &reports.Page{Items: items, Count: int64(len(items))}, nil
}

func (f *fakeReports) Get(_ context.Context, userID int64, id string) (*domain.Report, error) {
	r, ok := f.reports[id]
	if !ok || r.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

func (f *fakeReports) Stats(context.Context, int64) (*domain.ReportStats, error) {
	return f.stats, nil
}

func (f *fakeReports) PDF(ctx context.Context, userID int64, id string) ([]byte, string, error) {
	r, err := f.Get(ctx, userID, id)
	if err != nil {
		return nil, "", err
	}
	if r.PDFFile == "" {
		return nil, "", domain.ErrNotFound
	}
	return []byte("%PDF-1.4 fake"), "labs.pdf", nil
}

func (f *fakeReports) Export(_ context.Context, _ *domain.Report, detail []byte) ([]byte, error) {
	if f.export == nil {
		return nil, errNotImplemented
	}
	return append(f.export, detail...), nil
}

type memPrompts struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*domain.AdminPrompt
}

func newMemPrompts() *memPrompts {
	return &memPrompts{items: map[int64]*domain.AdminPrompt{}}
}

func (m *memPrompts) ListActive(ctx context.Context) ([]domain.AdminPrompt, error) {
	active := true
	return m.List(ctx, domain.AdminPromptFilter{Active: &active})
}

func (m *memPrompts) List(_ context.Context, filter domain.AdminPromptFilter) ([]domain.AdminPrompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AdminPrompt
	for _, p := range m.items {
		if filter.Active != nil && p.IsActive != *filter.Active {
			continue
		}
		if filter.Query != "" && !strings.Contains(strings.ToLower(p.CustomInstructions), strings.ToLower(filter.Query)) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memPrompts) Get(_ context.Context, id int64) (*domain.AdminPrompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPrompts) Create(_ context.Context, active bool, text string) (*domain.AdminPrompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	now := time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC)
	p := &domain.AdminPrompt{ID: m.nextID, IsActive: active, CustomInstructions: text, CreatedAt: now, UpdatedAt: now}
	m.items[p.ID] = p
	cp := *p
	return &cp, nil
}

func (m *memPrompts) Update(_ context.Context, id int64, active bool, text string) (*domain.AdminPrompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	p.IsActive, p.CustomInstructions = active, text
	cp := *p
	return &cp, nil
}

func (m *memPrompts) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestApp() (*App, *fakeAccounts, *fakeReports) {
	acc := &fakeAccounts{}
	rep := &fakeReports{reports: map[string]*domain.Report{}}
	app := &App{
		Accounts: acc,
		Reports:  rep,
		Prompts:  newMemPrompts(),
		Config:   Config{MaxUploadBytes: 1 << 20},
		Logger:   zerolog.Nop(),
	}
	return app, acc, rep
}

func asUser(r *http.Request, u *domain.User) *http.Request {
	return r.WithContext(middleware.ContextWithUser(r.Context(), u, "access-token"))
}
