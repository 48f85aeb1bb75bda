package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"glucowizard/internal/domain"
	"glucowizard/internal/middleware"
	"glucowizard/internal/providers/summary"
	"glucowizard/internal/reports"
)

type reportItemDTO struct {
	ID        string    `json:"id"`
	PDFFile   *string   `json:"pdf_file"`
	CreatedAt time.Time `json:"created_at"`
}

type reportDetailDTO struct {
	ID               string            `json:"id"`
	DiabeticValues   json.RawMessage   `json:"diabetic_values"`
	PDFFile          *string           `json:"pdf_file"`
	AISummaryText    string            `json:"ai_summary_text"`
	AIRaw            json.RawMessage   `json:"ai_raw"`
	OpenAIResponseID string            `json:"openai_response_id"`
	Status           string            `json:"status"`
	ErrorMessage     string            `json:"error_message"`
	Analysis         *summary.Analysis `json:"analysis,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

type reportStatsDTO struct {
	Total          int64            `json:"total"`
	ByStatus       map[string]int64 `json:"by_status"`
	Last30Days     int64            `json:"last_30_days"`
	LatestReportAt *time.Time       `json:"latest_report_at"`
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func rawOrEmpty(doc json.RawMessage) json.RawMessage {
	if len(doc) == 0 {
		return json.RawMessage(`{}`)
	}
	return doc
}

func toReportDetail(r *domain.Report) reportDetailDTO {
	dto := reportDetailDTO{
		ID:               r.ID,
		DiabeticValues:   rawOrEmpty(r.DiabeticValues),
		PDFFile:          nullable(r.PDFFile),
		AISummaryText:    r.AISummaryText,
		AIRaw:            rawOrEmpty(r.AIRaw),
		OpenAIResponseID: r.OpenAIResponseID,
		Status:           string(r.Status),
		ErrorMessage:     r.ErrorMessage,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if analysis, ok := summary.ParseAnalysis(r.AISummaryText); ok {
		dto.Analysis = analysis
	}
	return dto
}

// CreateReport accepts multipart, urlencoded or JSON bodies. The summary is
// produced before the response is written.
func (a *App) CreateReport(w http.ResponseWriter, r *http.Request) {
	in, err := a.reportInput(w, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	report, err := a.Reports.Create(r.Context(), middleware.UserFromContext(r.Context()), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	status := http.StatusCreated
	if report.Status == domain.ReportStatusError {
		status = http.StatusInternalServerError
	}
	a.json(w, status, toReportDetail(report))
}

func (a *App) reportInput(w http.ResponseWriter, r *http.Request) (reports.CreateInput, error) {
	var in reports.CreateInput
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "multipart/form-data", "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload()+(1<<20))
		if err := parseForm(r, 8<<20); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return in, domain.FieldErrors(map[string][]string{"pdf_file": {
					"The file is too large. The limit is " + strconv.FormatInt(a.maxUpload()>>20, 10) + " MB.",
				}})
			}
			return in, domain.NewValidationError("invalid form body")
		}
		values, err := reports.ParseFormValues(r.FormValue("diabetic_values"))
		if err != nil {
			return in, err
		}
		in.DiabeticValues = values
		if ct == "multipart/form-data" {
			file, header, err := r.FormFile("pdf_file")
			if err == nil {
				defer file.Close()
				data, err := io.ReadAll(file)
				if err != nil {
					return in, err
				}
				in.PDF = &reports.Upload{Filename: header.Filename, ContentType: header.Header.Get("Content-Type"), Data: data}
			}
		}
		return in, nil
	default:
		var body struct {
			DiabeticValues json.RawMessage `json:"diabetic_values"`
		}
		if err := a.decode(r, &body); err != nil {
			return in, err
		}
		values, err := reports.ParseDiabeticValues(body.DiabeticValues)
		if err != nil {
			return in, err
		}
		in.DiabeticValues = values
		return in, nil
	}
}

func (a *App) ListReports(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	page, err := a.Reports.List(r.Context(), middleware.UserFromContext(r.Context()).ID, limit, offset)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := lo.Map(page.Items, func(it domain.ReportListItem, _ int) reportItemDTO {
		return reportItemDTO{ID: it.ID, PDFFile: nullable(it.PDFFile), CreatedAt: it.CreatedAt}
	})
	a.json(w, http.StatusOK, map[string]any{"items": items, "count": page.Count})
}

func (a *App) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := a.Reports.Get(r.Context(), middleware.UserFromContext(r.Context()).ID, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toReportDetail(report))
}

func (a *App) ReportStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.Reports.Stats(r.Context(), middleware.UserFromContext(r.Context()).ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	byStatus := map[string]int64{}
	for _, s := range []domain.ReportStatus{domain.ReportStatusCreated, domain.ReportStatusProcessing, domain.ReportStatusDone, domain.ReportStatusError} {
		byStatus[string(s)] = stats.ByStatus[s]
	}
	a.json(w, http.StatusOK, reportStatsDTO{
		Total:          stats.Total,
		ByStatus:       byStatus,
		Last30Days:     stats.Last30Days,
		LatestReportAt: stats.LatestReportAt,
	})
}

func (a *App) ReportPDF(w http.ResponseWriter, r *http.Request) {
	data, name, err := a.Reports.PDF(r.Context(), middleware.UserFromContext(r.Context()).ID, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	attachment(w, "inline", name, "application/pdf", data)
}

func (a *App) ExportReport(w http.ResponseWriter, r *http.Request) {
	report, err := a.Reports.Get(r.Context(), middleware.UserFromContext(r.Context()).ID, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	detail, err := json.MarshalIndent(toReportDetail(report), "", "  ")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	archive, err := a.Reports.Export(r.Context(), report, detail)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	attachment(w, "attachment", "report-"+report.ID+".zip", "application/zip", archive)
}

func pageParams(r *http.Request) (int, int) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return limit, offset
}
