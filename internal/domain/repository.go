package domain

import "context"

// UserRepository defines access methods for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, user NewUser) (*User, error)
	UpdateAvatar(ctx context.Context, id int64, avatarURL string) error
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	TouchLogin(ctx context.Context, id int64) error
	AttachSupabaseID(ctx context.Context, id int64, supabaseID string) error
	SetStaff(ctx context.Context, id int64, staff, superuser bool) (*User, error)
	List(ctx context.Context, query string, limit, offset int) ([]User, error)
}

// ReportRepository handles report persistence.
type ReportRepository interface {
	Create(ctx context.Context, report *Report) error
	Complete(ctx context.Context, report *Report, result ReportResult) error
	Fail(ctx context.Context, report *Report, message string) error
	GetForUser(ctx context.Context, id string, userID int64) (*Report, error)
	GetByID(ctx context.Context, id string) (*Report, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]ReportListItem, int64, error)
	StatsByUser(ctx context.Context, userID int64) (*ReportStats, error)
	AdminList(ctx context.Context, filter AdminReportFilter) ([]AdminReportRow, int64, error)
}

// AdminPromptRepository persists staff prompts.
type AdminPromptRepository interface {
	ListActive(ctx context.Context) ([]AdminPrompt, error)
	List(ctx context.Context, filter AdminPromptFilter) ([]AdminPrompt, error)
	Get(ctx context.Context, id int64) (*AdminPrompt, error)
	Create(ctx context.Context, active bool, instructions string) (*AdminPrompt, error)
	Update(ctx context.Context, id int64, active bool, instructions string) (*AdminPrompt, error)
	Delete(ctx context.Context, id int64) error
}

// OAuthFlowRepository stores pending PKCE flows.
type OAuthFlowRepository interface {
	Save(ctx context.Context, flow OAuthFlow) error
	Consume(ctx context.Context, id string) (*OAuthFlow, error)
}
