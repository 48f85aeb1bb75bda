package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"glucowizard/internal/http/handlers"
	"glucowizard/internal/middleware"
)

type Options struct {
	Auth           middleware.Authenticator
	Logger         zerolog.Logger
	CountryLookup  middleware.CountryLookup
	AllowedOrigins []string
	// RateLimitPerMin caps register, login and forgot-password per client IP.
	RateLimitPerMin int
}

// NewRouter wires every route. Paths match with or without a trailing slash.
func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger, opts.CountryLookup),
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
		chimw.StripSlashes,
	)

	r.Get("/healthz", app.Health)
	r.Get("/api/openapi.json", app.OpenAPIJSON)
	r.Get("/api/docs", app.OpenAPIDocs)

	throttle := middleware.RateLimit(opts.RateLimitPerMin, time.Minute)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(opts.Auth, opts.Logger))

		r.Route("/api/users", func(r chi.Router) {
			r.With(throttle).Post("/register", app.Register)
			r.With(throttle).Post("/login", app.Login)
			r.With(throttle).Post("/forgot-password", app.ForgotPassword)
			r.Post("/refresh-token", app.RefreshToken)
			r.Get("/google-auth", app.GoogleAuth)
			r.Get("/google-callback", app.GoogleCallback)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireUser)
				r.Get("/me", app.Me)
				r.Post("/update-password", app.UpdatePassword)
				r.Post("/change-password", app.ChangePassword)
				r.Post("/upload-avatar", app.UploadAvatar)
			})
		})

		r.Route("/api/reports", func(r chi.Router) {
			r.Use(middleware.RequireUser)
			r.Get("/", app.ListReports)
			r.Post("/create", app.CreateReport)
			r.Get("/stats", app.ReportStats)
			r.Get("/{id}", app.GetReport)
			r.Get("/{id}/pdf", app.ReportPDF)
			r.Get("/{id}/export", app.ExportReport)
		})

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.RequireStaff)
			r.Get("/reports", app.AdminListReports)
			r.Get("/reports/{id}", app.AdminGetReport)
			r.Get("/prompts", app.AdminListPrompts)
			r.Post("/prompts", app.AdminCreatePrompt)
			r.Get("/prompts/{id}", app.AdminGetPrompt)
			r.Put("/prompts/{id}", app.AdminUpdatePrompt)
			r.Patch("/prompts/{id}", app.AdminUpdatePrompt)
			r.Delete("/prompts/{id}", app.AdminDeletePrompt)
			r.Get("/users", app.AdminListUsers)
		})
	})

	return r
}
