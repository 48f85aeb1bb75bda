package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"glucowizard/internal/domain"
	"glucowizard/internal/reports"
)

type adminReportDTO struct {
	ID               string    `json:"id"`
	UserID           int64     `json:"user_id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	Status           string    `json:"status"`
	OpenAIResponseID string    `json:"openai_response_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type adminReportDetailDTO struct {
	reportDetailDTO
	UserID int64 `json:"user_id"`
}

type adminPromptDTO struct {
	ID                 int64     `json:"id"`
	IsActive           bool      `json:"is_active"`
	CustomInstructions string    `json:"custom_instructions"`
	Display            string    `json:"display"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type adminUserDTO struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	IsStaff     bool       `json:"is_staff"`
	IsSuperuser bool       `json:"is_superuser"`
	IsActive    bool       `json:"is_active"`
	DateJoined  time.Time  `json:"date_joined"`
	LastLogin   *time.Time `json:"last_login"`
}

type promptInput struct {
	IsActive           *bool   `json:"is_active"`
	CustomInstructions *string `json:"custom_instructions"`
}

func toPromptDTO(p domain.AdminPrompt) adminPromptDTO {
	return adminPromptDTO{
		ID:                 p.ID,
		IsActive:           p.IsActive,
		CustomInstructions: p.CustomInstructions,
		Display:            p.String(),
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func (a *App) AdminListReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.AdminReportFilter{
		Status: strings.TrimSpace(q.Get("status")),
		Query:  strings.TrimSpace(q.Get("q")),
	}
	if filter.Status != "" && !domain.ReportStatus(filter.Status).Valid() {
		a.json(w, http.StatusBadRequest, errorBody{
			Error:  "Select a valid choice. " + filter.Status + " is not one of the available choices.",
			Fields: map[string][]string{"status": {"Select a valid choice."}},
		})
		return
	}
	var err error
	if filter.CreatedAfter, err = parseDateParam(q.Get("created_after"), false); err != nil {
		a.fail(w, r, fieldError("created_after", "Enter a valid date/time."))
		return
	}
	if filter.CreatedBefore, err = parseDateParam(q.Get("created_before"), true); err != nil {
		a.fail(w, r, fieldError("created_before", "Enter a valid date/time."))
		return
	}
	filter.Limit, filter.Offset = pageParams(r)
	if filter.Limit <= 0 {
		filter.Limit = reports.DefaultPageSize
	}
	filter.Limit = min(filter.Limit, reports.MaxPageSize)
	filter.Offset = max(filter.Offset, 0)

	rows, total, err := a.ReportRepo.AdminList(r.Context(), filter)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := lo.Map(rows, func(row domain.AdminReportRow, _ int) adminReportDTO {
		return adminReportDTO{
			ID:               row.ID,
			UserID:           row.UserID,
			Username:         row.Username,
			Email:            row.Email,
			Status:           string(row.Status),
			OpenAIResponseID: row.OpenAIResponseID,
			CreatedAt:        row.CreatedAt,
			UpdatedAt:        row.UpdatedAt,
		}
	})
	a.json(w, http.StatusOK, map[string]any{"items": items, "count": total})
}

func (a *App) AdminGetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		a.fail(w, r, domain.ErrNotFound)
		return
	}
	report, err := a.ReportRepo.GetByID(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, adminReportDetailDTO{reportDetailDTO: toReportDetail(report), UserID: report.UserID})
}

func (a *App) AdminListPrompts(w http.ResponseWriter, r *http.Request) {
	filter := domain.AdminPromptFilter{Query: strings.TrimSpace(r.URL.Query().Get("q"))}
	if raw := r.URL.Query().Get("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			a.fail(w, r, fieldError("is_active", "Must be a valid boolean."))
			return
		}
		filter.Active = &active
	}
	prompts, err := a.Prompts.List(r.Context(), filter)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": lo.Map(prompts, func(p domain.AdminPrompt, _ int) adminPromptDTO {
		return toPromptDTO(p)
	})})
}

func (a *App) AdminGetPrompt(w http.ResponseWriter, r *http.Request) {
	id, ok := a.int64Param(w, r, "id")
	if !ok {
		return
	}
	prompt, err := a.Prompts.Get(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toPromptDTO(*prompt))
}

func (a *App) AdminCreatePrompt(w http.ResponseWriter, r *http.Request) {
	var in promptInput
	if err := a.decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	text := strings.TrimSpace(lo.FromPtr(in.CustomInstructions))
	if err := validate.Var(text, "required"); err != nil {
		a.fail(w, r, fieldError("custom_instructions", "This field is required."))
		return
	}
	prompt, err := a.Prompts.Create(r.Context(), lo.FromPtrOr(in.IsActive, true), text)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.Logger.Info().Int64("prompt_id", prompt.ID).Bool("active", prompt.IsActive).Msg("admin prompt created")
	a.json(w, http.StatusCreated, toPromptDTO(*prompt))
}

// AdminUpdatePrompt applies a partial update: absent fields keep their value.
func (a *App) AdminUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	id, ok := a.int64Param(w, r, "id")
	if !ok {
		return
	}
	var in promptInput
	if err := a.decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	current, err := a.Prompts.Get(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	text := current.CustomInstructions
	if in.CustomInstructions != nil {
		text = strings.TrimSpace(*in.CustomInstructions)
		if text == "" {
			a.fail(w, r, fieldError("custom_instructions", "This field may not be blank."))
			return
		}
	}
	prompt, err := a.Prompts.Update(r.Context(), id, lo.FromPtrOr(in.IsActive, current.IsActive), text)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toPromptDTO(*prompt))
}

func (a *App) AdminDeletePrompt(w http.ResponseWriter, r *http.Request) {
	id, ok := a.int64Param(w, r, "id")
	if !ok {
		return
	}
	if err := a.Prompts.Delete(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	if limit <= 0 {
		limit = reports.DefaultPageSize
	}
	users, err := a.Users.List(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")), min(limit, reports.MaxPageSize), max(offset, 0))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": lo.Map(users, func(u domain.User, _ int) adminUserDTO {
		return adminUserDTO{
			ID:          u.ID,
			Username:    u.Username,
			Email:       u.Email,
			IsStaff:     u.IsStaff,
			IsSuperuser: u.IsSuperuser,
			IsActive:    u.IsActive,
			DateJoined:  u.DateJoined,
			LastLogin:   u.LastLogin,
		}
	})})
}

func (a *App) int64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		a.fail(w, r, domain.ErrNotFound)
		return 0, false
	}
	return id, true
}

// parseDateParam accepts RFC 3339 timestamps or plain dates. A plain date used
// as an upper bound covers the whole day.
func parseDateParam(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func fieldError(field, msg string) error {
	return domain.FieldErrors(map[string][]string{field: {msg}})
}
