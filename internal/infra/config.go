package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ReportStorageLocal    = "local"
	ReportStorageSupabase = "supabase"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv       string
	ListenAddr   string
	ListenSocket string
	DatabaseURL  string

	SupabaseURL       string
	SupabaseKey       string
	SupabaseJWTSecret string

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	OpenAIOrg     string
	OpenAITimeout time.Duration

	ReportStorage  string
	MediaRoot      string
	ReportsBucket  string
	AvatarsBucket  string
	MaxUploadBytes int64

	CORSAllowedOrigins    []string
	GoogleRedirectDefault string
	CookieSecure          bool
	RateLimitPerMin       int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	LogFile     string
	LogLevel    string
	GeoIPDBPath string

	AutoMigrate         bool
	StaleReportAfter    time.Duration
	MaintenanceSchedule string
	// MaintenanceInAPI runs the scheduler inside the API process. Turn it off
	// when cmd/worker runs it instead.
	MaintenanceInAPI bool
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:       getEnv("APP_ENV", "development"),
		ListenAddr:   getEnv("LISTEN_ADDR", ":8000"),
		ListenSocket: strings.TrimSpace(os.Getenv("LISTEN_SOCKET")),
		DatabaseURL:  strings.TrimSpace(os.Getenv("DATABASE_URL")),

		SupabaseURL:       strings.TrimRight(strings.TrimSpace(os.Getenv("SUPABASE_URL")), "/"),
		SupabaseKey:       strings.TrimSpace(os.Getenv("SUPABASE_KEY")),
		SupabaseJWTSecret: strings.TrimSpace(os.Getenv("SUPABASE_JWT_SECRET")),

		OpenAIAPIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-5.2"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIOrg:     os.Getenv("OPENAI_ORG"),
		OpenAITimeout: time.Second * time.Duration(getEnvInt("OPENAI_TIMEOUT_SECONDS", 120)),

		ReportStorage:  strings.ToLower(getEnv("REPORT_STORAGE", ReportStorageLocal)),
		MediaRoot:      getEnv("MEDIA_ROOT", "./media"),
		ReportsBucket:  getEnv("REPORTS_BUCKET", "reports"),
		AvatarsBucket:  getEnv("AVATARS_BUCKET", "profiles"),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_MB", 20)) << 20,

		CORSAllowedOrigins:    splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		GoogleRedirectDefault: getEnv("GOOGLE_REDIRECT_DEFAULT", "http://localhost:3000/auth/callback"),
		CookieSecure:          getEnvBool("COOKIE_SECURE", false),
		RateLimitPerMin:       getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 180)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),

		LogFile:     strings.TrimSpace(os.Getenv("LOG_FILE")),
		LogLevel:    strings.ToLower(os.Getenv("LOG_LEVEL")),
		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),

		AutoMigrate:         getEnvBool("AUTO_MIGRATE", false),
		StaleReportAfter:    time.Minute * time.Duration(getEnvInt("STALE_REPORT_MINUTES", 15)),
		MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "@every 5m"),
		MaintenanceInAPI:    getEnvBool("MAINTENANCE_IN_API", true),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	switch cfg.ReportStorage {
	case ReportStorageLocal, ReportStorageSupabase:
	default:
		return nil, fmt.Errorf("REPORT_STORAGE must be %q or %q, got %q", ReportStorageLocal, ReportStorageSupabase, cfg.ReportStorage)
	}

	return cfg, nil
}

// RequireSupabase reports whether the Supabase project settings are present.
// The CLI can run without them; the API cannot.
func (c *Config) RequireSupabase() error {
	if c.SupabaseURL == "" || c.SupabaseKey == "" {
		return fmt.Errorf("SUPABASE_URL or SUPABASE_KEY not set")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
