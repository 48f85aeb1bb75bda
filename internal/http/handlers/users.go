package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"glucowizard/internal/accounts"
	"glucowizard/internal/domain"
	"glucowizard/internal/middleware"
	"glucowizard/internal/supabase"
)

// OAuthFlowCookie carries the PKCE flow id between google-auth and google-callback.
const OAuthFlowCookie = "gw_oauth_flow"

type userDTO struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type registeredUserDTO struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type sessionDTO struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
}

func toUserDTO(u *domain.User) userDTO {
	return userDTO{ID: u.ID, Username: u.Username, Email: u.Email, AvatarURL: u.AvatarURL}
}

func toSessionDTO(s *supabase.Session) sessionDTO {
	return sessionDTO{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken, ExpiresAt: s.ExpiresAt}
}

func (a *App) Register(w http.ResponseWriter, r *http.Request) {
	var in accounts.RegisterInput
	if err := a.decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	user, err := a.Accounts.Register(r.Context(), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]any{
		"user":    registeredUserDTO{ID: user.ID, Username: user.Username, Email: user.Email},
		"message": "User registered successfully. Please check your email for verification.",
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *App) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := a.decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.Accounts.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"user":    toUserDTO(res.User),
		"session": toSessionDTO(res.Session),
	})
}

func (a *App) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := a.decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	session, err := a.Accounts.RefreshToken(r.Context(), in.RefreshToken)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"session": toSessionDTO(session)})
}

func (a *App) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := a.decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.Accounts.ForgotPassword(r.Context(), in.Email); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"message": "Password reset email sent"})
}

func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, toUserDTO(middleware.UserFromContext(r.Context())))
}

func (a *App) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Password string `json:"password"`
	}
	if err := a.decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	ctx := r.Context()
	if err := a.Accounts.UpdatePassword(ctx, middleware.UserFromContext(ctx), middleware.TokenFromContext(ctx), in.Password); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

func (a *App) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := a.decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.Accounts.ChangePassword(r.Context(), middleware.UserFromContext(r.Context()), in.OldPassword, in.NewPassword); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

func (a *App) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload()+(1<<20))
	upload := accounts.AvatarUpload{}
	if err := r.ParseMultipartForm(8 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "The file is too large.")
			return
		}
		a.error(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	if file, header, err := r.FormFile("avatar"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		upload.Filename = header.Filename
		upload.ContentType = header.Header.Get("Content-Type")
		if upload.ContentType == "" || upload.ContentType == "application/octet-stream" {
			upload.ContentType = http.DetectContentType(data)
		}
		upload.Data = data
	}
	url, err := a.Accounts.UploadAvatar(r.Context(), middleware.UserFromContext(r.Context()), upload)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"avatar_url": url})
}

func (a *App) GoogleAuth(w http.ResponseWriter, r *http.Request) {
	start, err := a.Accounts.BeginGoogleAuth(r.Context(), r.URL.Query().Get("redirect_to"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	http.SetCookie(w, a.flowCookie(start.FlowID, time.Until(start.ExpiresAt)))
	a.json(w, http.StatusOK, map[string]string{"url": start.URL})
}

func (a *App) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	flowID := ""
	if c, err := r.Cookie(OAuthFlowCookie); err == nil {
		flowID = c.Value
		http.SetCookie(w, a.flowCookie("", -1))
	}
	res, err := a.Accounts.CompleteGoogleAuth(r.Context(), r.URL.Query().Get("code"), flowID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"user": toUserDTO(res.User),
		"session": sessionDTO{
			AccessToken:  res.Session.AccessToken,
			RefreshToken: res.Session.RefreshToken,
			ExpiresIn:    res.Session.ExpiresIn,
		},
	})
}

// flowCookie builds the PKCE cookie. A negative ttl deletes it.
func (a *App) flowCookie(value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     OAuthFlowCookie,
		Value:    value,
		Path:     "/api/users/",
		HttpOnly: true,
		Secure:   a.Config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl < 0 {
		c.MaxAge = -1
	} else {
		c.MaxAge = int(ttl.Seconds())
	}
	return c
}

func (a *App) maxUpload() int64 {
	if a.Config.MaxUploadBytes > 0 {
		return a.Config.MaxUploadBytes
	}
	return 20 << 20
}
