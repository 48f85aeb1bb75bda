package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"glucowizard/internal/domain"
	"glucowizard/internal/middleware"
)

const maxJSONBody = 1 << 20

type errorBody struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, msg string) {
	a.json(w, code, errorBody{Error: msg})
}

// fail maps service errors to responses. Anything unrecognised is logged and
// answered with a 500.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *domain.ValidationError
		authErr    *domain.AuthError
		upstream   *domain.UpstreamError
	)
	switch {
	case errors.As(err, &validation):
		a.json(w, http.StatusBadRequest, errorBody{Error: validation.Error(), Fields: validation.Fields})
	case errors.As(err, &authErr):
		a.error(w, http.StatusUnauthorized, authErr.Message)
	case errors.As(err, &upstream):
		a.Logger.Warn().Err(err).Str("service", upstream.Service).Str("request_id", middleware.RequestIDFromContext(r.Context())).Msg("upstream call failed")
		a.error(w, http.StatusBadRequest, upstream.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, domain.ErrForbidden):
		a.error(w, http.StatusForbidden, "You do not have permission to perform this action.")
	case errors.Is(err, domain.ErrConflict):
		a.error(w, http.StatusConflict, "conflict")
	default:
		a.Logger.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal server error")
	}
}

// decode binds a JSON body, or form fields, into dst. An empty body leaves dst
// untouched.
func (a *App) decode(r *http.Request, dst any) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := parseForm(r, maxJSONBody); err != nil {
			return domain.NewValidationError("invalid form body")
		}
		fields := make(map[string]string, len(r.Form))
		for k, v := range r.Form {
			if len(v) > 0 {
				fields[k] = v[0]
			}
		}
		raw, err := json.Marshal(fields)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return domain.NewValidationError("invalid form body")
		}
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxJSONBody {
		return domain.NewValidationError("request body too large")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return domain.NewValidationError("JSON parse error - " + err.Error())
	}
	return nil
}

func parseForm(r *http.Request, maxMemory int64) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		return r.ParseMultipartForm(maxMemory)
	}
	return r.ParseForm()
}

func attachment(w http.ResponseWriter, disposition, filename, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
