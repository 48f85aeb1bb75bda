// Package handlers holds the HTTP endpoints of the Glucowizard API.
package handlers

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"glucowizard/internal/accounts"
	"glucowizard/internal/domain"
	"glucowizard/internal/reports"
	"glucowizard/internal/supabase"
)

// AccountService is implemented by accounts.Service.
type AccountService interface {
	Register(ctx context.Context, in accounts.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*accounts.LoginResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (*supabase.Session, error)
	ForgotPassword(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, user *domain.User, accessToken, password string) error
	ChangePassword(ctx context.Context, user *domain.User, oldPassword, newPassword string) error
	UploadAvatar(ctx context.Context, user *domain.User, file accounts.AvatarUpload) (string, error)
	BeginGoogleAuth(ctx context.Context, redirectTo string) (*accounts.GoogleAuthStart, error)
	CompleteGoogleAuth(ctx context.Context, code, flowID string) (*accounts.LoginResult, error)
}

// ReportService is implemented by reports.Service.
type ReportService interface {
	Create(ctx context.Context, user *domain.User, in reports.CreateInput) (*domain.Report, error)
	List(ctx context.Context, userID int64, limit, offset int) (*reports.Page, error)
	Get(ctx context.Context, userID int64, id string) (*domain.Report, error)
	Stats(ctx context.Context, userID int64) (*domain.ReportStats, error)
	PDF(ctx context.Context, userID int64, id string) ([]byte, string, error)
	Export(ctx context.Context, report *domain.Report, detail []byte) ([]byte, error)
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	CookieSecure   bool
	MaxUploadBytes int64
}

type App struct {
	Accounts AccountService
	Reports  ReportService

	// Admin endpoints work on the repositories directly.
	ReportRepo domain.ReportRepository
	Prompts    domain.AdminPromptRepository
	Users      domain.UserRepository

	DB     Pinger
	Config Config
	Logger zerolog.Logger
}

var validate = validator.New(validator.WithRequiredStructEnabled())
