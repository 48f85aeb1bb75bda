// Package reports creates diabetic reports and obtains their AI summaries.
package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"glucowizard/internal/domain"
	"glucowizard/internal/providers/summary"
	"glucowizard/internal/storage"
	"glucowizard/pkg/zip"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	defaultMaxUpload = 20 << 20
)

// Summarizer produces the AI summary for a prompt and optional PDF.
type Summarizer interface {
	Summarize(ctx context.Context, req summary.Request) (*summary.Result, error)
}

type Deps struct {
	Reports        domain.ReportRepository
	Prompts        domain.AdminPromptRepository
	Store          storage.ObjectStore
	Summarizer     Summarizer
	MaxUploadBytes int64
	Logger         zerolog.Logger
}

type Service struct {
	reports    domain.ReportRepository
	prompts    domain.AdminPromptRepository
	store      storage.ObjectStore
	summarizer Summarizer
	maxUpload  int64
	logger     zerolog.Logger
}

func NewService(deps Deps) *Service {
	maxUpload := deps.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &Service{
		reports:    deps.Reports,
		prompts:    deps.Prompts,
		store:      deps.Store,
		summarizer: deps.Summarizer,
		maxUpload:  maxUpload,
		logger:     deps.Logger,
	}
}

// Upload is an uploaded PDF.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type CreateInput struct {
	DiabeticValues json.RawMessage
	PDF            *Upload
}

// ParseDiabeticValues accepts a JSON document or a JSON string holding one,
// as sent by multipart forms. Empty values become an empty object.
func ParseDiabeticValues(raw []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, invalidValues()
		}
		return ParseFormValues(inner)
	}
	if !json.Valid(trimmed) {
		return nil, invalidValues()
	}
	return emptyAsObject(trimmed), nil
}

// ParseFormValues parses diabetic_values sent as a form field.
func ParseFormValues(value string) (json.RawMessage, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return json.RawMessage(`{}`), nil
	}
	if !json.Valid([]byte(value)) {
		return nil, invalidValues()
	}
	return emptyAsObject([]byte(value)), nil
}

func emptyAsObject(doc []byte) json.RawMessage {
	switch string(doc) {
	case "null", "false", "0", `""`, "[]", "{}":
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(doc)
}

func invalidValues() error {
	return domain.NewValidationError("diabetic_values must be valid JSON")
}

// Create stores the report and summarizes it synchronously. A failed
// summarization is not an error: the returned report has status error.
func (s *Service) Create(ctx context.Context, user *domain.User, in CreateInput) (*domain.Report, error) {
	values := in.DiabeticValues
	if len(values) == 0 {
		values = json.RawMessage(`{}`)
	}
	if in.PDF != nil {
		if err := s.checkPDF(in.PDF); err != nil {
			return nil, err
		}
	}
	report := &domain.Report{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		DiabeticValues: values,
		Status:         domain.ReportStatusProcessing,
		AIRaw:          json.RawMessage(`{}`),
	}
	var pdf *summary.File
	if in.PDF != nil {
		name := storage.SanitizeFilename(in.PDF.Filename)
		key := fmt.Sprintf("reports/%d/%s/%s", user.ID, report.ID, name)
		stored, err := s.store.Write(ctx, key, in.PDF.Data, "application/pdf")
		if err != nil {
			return nil, fmt.Errorf("store pdf: %w", err)
		}
		report.PDFFile = stored
		pdf = &summary.File{Name: path.Base(stored), Data: in.PDF.Data}
	}
	if err := s.reports.Create(ctx, report); err != nil {
		if report.PDFFile != "" {
			if derr := s.store.Delete(context.WithoutCancel(ctx), report.PDFFile); derr != nil {
				s.logger.Warn().Err(derr).Str("key", report.PDFFile).Msg("orphaned report pdf not removed")
			}
		}
		return nil, fmt.Errorf("create report: %w", err)
	}

	log := s.logger.With().Str("report_id", report.ID).Int64("user_id", user.ID).Logger()
	start := time.Now()
	result, err := s.summarize(ctx, report, pdf)
	// The outcome must be recorded even if the client went away.
	writeCtx := context.WithoutCancel(ctx)
	if err != nil {
		log.Error().Err(err).Dur("took", time.Since(start)).Msg("report summarization failed")
		if ferr := s.reports.Fail(writeCtx, report, err.Error()); ferr != nil {
			return nil, fmt.Errorf("mark report failed: %w", ferr)
		}
		return report, nil
	}
	if err := s.reports.Complete(writeCtx, report, domain.ReportResult{
		ResponseID:  result.ResponseID,
		SummaryText: result.OutputText,
		Raw:         result.Raw,
	}); err != nil {
		return nil, fmt.Errorf("complete report: %w", err)
	}
	log.Info().Str("response_id", result.ResponseID).Dur("took", time.Since(start)).Msg("report summarized")
	return report, nil
}

func (s *Service) summarize(ctx context.Context, report *domain.Report, pdf *summary.File) (*summary.Result, error) {
	if s.summarizer == nil {
		return nil, summary.ErrMissingAPIKey
	}
	prompts, err := s.prompts.ListActive(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("load admin prompts failed, using base prompt")
		prompts = nil
	}
	return s.summarizer.Summarize(ctx, summary.Request{
		Prompt: BuildPrompt(report.DiabeticValues, prompts),
		PDF:    pdf,
	})
}

func (s *Service) checkPDF(up *Upload) error {
	if int64(len(up.Data)) > s.maxUpload {
		return domain.FieldErrors(map[string][]string{"pdf_file": {
			fmt.Sprintf("The file is too large. The limit is %d MB.", s.maxUpload>>20),
		}})
	}
	if len(up.Data) == 0 {
		return domain.FieldErrors(map[string][]string{"pdf_file": {"The submitted file is empty."}})
	}
	if !bytes.HasPrefix(up.Data, []byte("%PDF")) && http.DetectContentType(up.Data) != "application/pdf" {
		return domain.FieldErrors(map[string][]string{"pdf_file": {"Upload a valid PDF file."}})
	}
	return nil
}

// Page is one page of a user's reports.
type Page struct {
	Items []domain.ReportListItem
	Count int64
}

func (s *Service) List(ctx context.Context, userID int64, limit, offset int) (*Page, error) {
	limit, offset = clampPage(limit, offset)
	items, total, err := s.reports.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &Page{Items: items, Count: total}, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Get returns one of the user's reports. Unknown, foreign and malformed ids
// all yield domain.ErrNotFound.
func (s *Service) Get(ctx context.Context, userID int64, id string) (*domain.Report, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	return s.reports.GetForUser(ctx, id, userID)
}

func (s *Service) Stats(ctx context.Context, userID int64) (*domain.ReportStats, error) {
	return s.reports.StatsByUser(ctx, userID)
}

// PDF returns the stored PDF of a report and its file name.
func (s *Service) PDF(ctx context.Context, userID int64, id string) ([]byte, string, error) {
	report, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, "", err
	}
	if report.PDFFile == "" {
		return nil, "", domain.ErrNotFound
	}
	data, err := s.store.Read(ctx, report.PDFFile)
	if err != nil {
		return nil, "", err
	}
	return data, path.Base(report.PDFFile), nil
}

// Export bundles the report document, its summary and the PDF into a zip.
// detail is the JSON rendering of the report as served by the API.
func (s *Service) Export(ctx context.Context, report *domain.Report, detail []byte) ([]byte, error) {
	assets := []zip.Asset{
		{Filename: "report.json", MIME: "application/json", Data: detail, Modified: report.UpdatedAt},
		{Filename: "summary.txt", MIME: "text/plain", Data: []byte(report.AISummaryText), Modified: report.UpdatedAt},
	}
	if report.PDFFile != "" {
		data, err := s.store.Read(ctx, report.PDFFile)
		switch {
		case err == nil:
			assets = append(assets, zip.Asset{Filename: path.Base(report.PDFFile), MIME: "application/pdf", Data: data, Modified: report.CreatedAt})
		case errors.Is(err, domain.ErrNotFound):
			s.logger.Warn().Str("report_id", report.ID).Str("pdf", report.PDFFile).Msg("pdf missing from storage, exporting without it")
		default:
			return nil, err
		}
	}
	return zip.ArchiveAssets(assets)
}
