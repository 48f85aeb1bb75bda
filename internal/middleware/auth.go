package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"glucowizard/internal/domain"
)

// Authenticator resolves an Authorization header to a local user. A nil user
// with a nil error means the request is anonymous.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (*domain.User, string, error)
}

type authContextKey struct{}

type principal struct {
	user  *domain.User
	token string
}

// Authenticate attaches the caller to the request context. Invalid credentials
// are rejected here; anonymous requests pass through and are turned away by
// RequireUser where needed.
func Authenticate(auth Authenticator, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			user, token, err := auth.Authenticate(r.Context(), header)
			if err != nil {
				var authErr *domain.AuthError
				if errors.As(err, &authErr) {
					writeError(w, http.StatusUnauthorized, authErr.Message)
					return
				}
				logger.Error().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("authenticate request")
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if user == nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user, token)))
		})
	}
}

// RequireUser answers 401 for anonymous requests.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireStaff answers 401 for anonymous requests and 403 for non-staff users.
func RequireStaff(next http.Handler) http.Handler {
	return RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !UserFromContext(r.Context()).IsStaff {
			writeError(w, http.StatusForbidden, "You do not have permission to perform this action.")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func UserFromContext(ctx context.Context) *domain.User {
	if p, ok := ctx.Value(authContextKey{}).(principal); ok {
		return p.user
	}
	return nil
}

// TokenFromContext returns the bearer token the caller authenticated with.
func TokenFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(authContextKey{}).(principal); ok {
		return p.token
	}
	return ""
}

func ContextWithUser(ctx context.Context, user *domain.User, token string) context.Context {
	if user == nil {
		return ctx
	}
	return context.WithValue(ctx, authContextKey{}, principal{user: user, token: token})
}
