package repo

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"glucowizard/internal/domain"
	"glucowizard/internal/infra"
	"glucowizard/internal/sqlinline"
)

// ReportRepositoryPG implements domain.ReportRepository.
type ReportRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewReportRepository creates a new report repository backed by PostgreSQL.
func NewReportRepository(sql infra.SQLExecutor) *ReportRepositoryPG {
	return &ReportRepositoryPG{sql: sql}
}

// Create inserts the report and fills in its timestamps.
func (r *ReportRepositoryPG) Create(ctx context.Context, report *domain.Report) error {
	values := report.DiabeticValues
	if len(values) == 0 {
		values = json.RawMessage(`{}`)
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertReport,
		report.ID,
		report.UserID,
		values,
		report.PDFFile,
		string(report.Status),
	)
	return row.Scan(&report.CreatedAt, &report.UpdatedAt)
}

// Complete stores a successful summarization and marks the report done.
func (r *ReportRepositoryPG) Complete(ctx context.Context, report *domain.Report, result domain.ReportResult) error {
	raw := result.Raw
	if len(raw) == 0 || !json.Valid(raw) {
		raw = json.RawMessage(`{}`)
	}
	row := r.sql.QueryRow(ctx, sqlinline.QCompleteReport,
		report.ID,
		result.ResponseID,
		result.SummaryText,
		raw,
	)
	if err := row.Scan(&report.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrNotFound
		}
		return err
	}
	report.OpenAIResponseID = result.ResponseID
	report.AISummaryText = result.SummaryText
	report.AIRaw = raw
	report.Status = domain.ReportStatusDone
	return nil
}

// Fail marks the report as errored with the given message.
func (r *ReportRepositoryPG) Fail(ctx context.Context, report *domain.Report, message string) error {
	if err := r.sql.QueryRow(ctx, sqlinline.QFailReport, report.ID, message).Scan(&report.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrNotFound
		}
		return err
	}
	report.Status = domain.ReportStatusError
	report.ErrorMessage = message
	return nil
}

func (r *ReportRepositoryPG) GetForUser(ctx context.Context, id string, userID int64) (*domain.Report, error) {
	return scanReport(r.sql.QueryRow(ctx, sqlinline.QSelectReportForUser, id, userID))
}

func (r *ReportRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	return scanReport(r.sql.QueryRow(ctx, sqlinline.QSelectReportByID, id))
}

// ListByUser returns one page of the user's reports, newest first, plus the total count.
func (r *ReportRepositoryPG) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.ReportListItem, int64, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListReportsByUser, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		items []domain.ReportListItem
		total int64
	)
	for rows.Next() {
		var item domain.ReportListItem
		if err := rows.Scan(&item.ID, &item.PDFFile, &item.CreatedAt, &total); err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	// The windowed total is only present on returned rows.
	if len(items) == 0 && offset > 0 {
		if err := r.sql.QueryRow(ctx, sqlinline.QCountReportsByUser, userID).Scan(&total); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func (r *ReportRepositoryPG) StatsByUser(ctx context.Context, userID int64) (*domain.ReportStats, error) {
	var (
		stats                              domain.ReportStats
		created, processing, done, errored int64
	)
	err := r.sql.QueryRow(ctx, sqlinline.QReportStatsByUser, userID).Scan(
		&stats.Total,
		&created,
		&processing,
		&done,
		&errored,
		&stats.Last30Days,
		&stats.LatestReportAt,
	)
	if err != nil {
		return nil, err
	}
	stats.ByStatus = map[domain.ReportStatus]int64{
		domain.ReportStatusCreated:    created,
		domain.ReportStatusProcessing: processing,
		domain.ReportStatusDone:       done,
		domain.ReportStatusError:      errored,
	}
	return &stats, nil
}

func (r *ReportRepositoryPG) AdminList(ctx context.Context, filter domain.AdminReportFilter) ([]domain.AdminReportRow, int64, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QAdminListReports,
		filter.Status,
		filter.CreatedAfter,
		filter.CreatedBefore,
		filter.Query,
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		out   []domain.AdminReportRow
		total int64
	)
	for rows.Next() {
		var row domain.AdminReportRow
		var status string
		if err := rows.Scan(
			&row.ID,
			&row.UserID,
			&row.Username,
			&row.Email,
			&status,
			&row.OpenAIResponseID,
			&row.CreatedAt,
			&row.UpdatedAt,
			&total,
		); err != nil {
			return nil, 0, err
		}
		row.Status = domain.ReportStatus(status)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(out) == 0 && filter.Offset > 0 {
		err := r.sql.QueryRow(ctx, sqlinline.QAdminCountReports,
			filter.Status,
			filter.CreatedAfter,
			filter.CreatedBefore,
			filter.Query,
		).Scan(&total)
		if err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

func scanReport(row pgx.Row) (*domain.Report, error) {
	var (
		rep    domain.Report
		status string
	)
	if err := row.Scan(
		&rep.ID,
		&rep.UserID,
		&rep.DiabeticValues,
		&rep.PDFFile,
		&rep.AISummaryText,
		&rep.AIRaw,
		&rep.OpenAIResponseID,
		&status,
		&rep.ErrorMessage,
		&rep.CreatedAt,
		&rep.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	rep.Status = domain.ReportStatus(status)
	return &rep, nil
}
