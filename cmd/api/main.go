package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"glucowizard/internal/accounts"
	"glucowizard/internal/adapter/repo"
	"glucowizard/internal/http/handlers"
	"glucowizard/internal/http/httpapi"
	"glucowizard/internal/infra"
	"glucowizard/internal/infra/credentials"
	"glucowizard/internal/infra/geoip"
	"glucowizard/internal/maintenance"
	"glucowizard/internal/providers/summary"
	"glucowizard/internal/reports"
	"glucowizard/internal/storage"
	"glucowizard/internal/supabase"
)

const shutdownTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel, cfg.LogFile)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("api stopped with error")
	}
	logger.Info().Msg("api stopped")
}

func run(cfg *infra.Config, logger infra.Logger) error {
	if err := cfg.RequireSupabase(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AutoMigrate {
		if err := migrate(ctx, cfg, logger); err != nil {
			return err
		}
	}

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	sb, err := supabase.NewClient(supabase.Options{URL: cfg.SupabaseURL, Key: cfg.SupabaseKey})
	if err != nil {
		return err
	}
	verifier := supabase.NewTokenVerifier(cfg.SupabaseJWTSecret, supabase.NewKeySet(sb.URL(), nil), sb)

	var store storage.ObjectStore
	switch cfg.ReportStorage {
	case infra.ReportStorageSupabase:
		store, err = storage.NewSupabaseStore(sb, cfg.ReportsBucket)
	default:
		var files *storage.FileStore
		if files, err = storage.NewFileStore(cfg.MediaRoot); err == nil {
			logger.Info().Str("root", files.BasePath()).Msg("report pdfs stored on local disk")
			store = files
		}
	}
	if err != nil {
		return fmt.Errorf("report storage: %w", err)
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer resolver.Close()

	creds := credentials.NewStore(runner)
	summarizer := summary.NewOpenAISummarizer(summary.OpenAIOptions{
		APIKey:       cfg.OpenAIAPIKey,
		Model:        cfg.OpenAIModel,
		BaseURL:      cfg.OpenAIBaseURL,
		Organization: cfg.OpenAIOrg,
		HTTPClient:   &http.Client{Timeout: cfg.OpenAITimeout},
		KeySource:    creds.OpenAIAPIKey,
	})

	users := repo.NewUserRepository(runner)
	reportRepo := repo.NewReportRepository(runner)
	prompts := repo.NewAdminPromptRepository(runner)

	accountSvc := accounts.NewService(accounts.Deps{
		Auth:            sb,
		Verifier:        verifier,
		Avatars:         sb,
		Users:           users,
		Flows:           repo.NewOAuthFlowRepository(runner),
		AvatarsBucket:   cfg.AvatarsBucket,
		DefaultRedirect: cfg.GoogleRedirectDefault,
		Logger:          logger.With().Str("component", "accounts").Logger(),
	})
	reportSvc := reports.NewService(reports.Deps{
		Reports:        reportRepo,
		Prompts:        prompts,
		Store:          store,
		Summarizer:     summarizer,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger.With().Str("component", "reports").Logger(),
	})

	app := &handlers.App{
		Accounts:   accountSvc,
		Reports:    reportSvc,
		ReportRepo: reportRepo,
		Prompts:    prompts,
		Users:      users,
		DB:         runner,
		Config:     handlers.Config{CookieSecure: cfg.CookieSecure, MaxUploadBytes: cfg.MaxUploadBytes},
		Logger:     logger,
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		Auth:            accountSvc,
		Logger:          logger.With().Str("component", "http").Logger(),
		CountryLookup:   resolver.Lookup(),
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})
	server := infra.NewHTTPServer(cfg, router)

	var scheduler *maintenance.Scheduler
	if cfg.MaintenanceInAPI {
		scheduler = maintenance.NewScheduler(runner, cfg.MaintenanceSchedule, cfg.StaleReportAfter,
			logger.With().Str("component", "maintenance").Logger())
		if err := scheduler.Start(); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", server.Address()).
			Str("storage", cfg.ReportStorage).
			Str("model", summarizer.Model()).
			Msg("api listening")
		return server.Start()
	})
	if scheduler != nil {
		g.Go(func() error {
			<-gctx.Done()
			scheduler.Stop()
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info().Msg("shutting down")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func migrate(ctx context.Context, cfg *infra.Config, logger infra.Logger) error {
	m, err := infra.NewMigrator(cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up(ctx)
}
