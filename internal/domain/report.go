package domain

import (
	"encoding/json"
	"time"
)

// ReportStatus enumerates the report lifecycle.
type ReportStatus string

const (
	ReportStatusCreated    ReportStatus = "created"
	ReportStatusProcessing ReportStatus = "processing"
	ReportStatusDone       ReportStatus = "done"
	ReportStatusError      ReportStatus = "error"
)

// Valid reports whether s is one of the known statuses.
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportStatusCreated, ReportStatusProcessing, ReportStatusDone, ReportStatusError:
		return true
	}
	return false
}

// Report is a set of diabetic readings plus the AI generated summary.
type Report struct {
	ID               string
	UserID           int64
	DiabeticValues   json.RawMessage
	PDFFile          string
	AISummaryText    string
	AIRaw            json.RawMessage
	OpenAIResponseID string
	Status           ReportStatus
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ReportListItem is the compact row returned by per-user listings.
type ReportListItem struct {
	ID        string
	PDFFile   string
	CreatedAt time.Time
}

// AdminReportRow is a report joined with its owner for staff listings.
type AdminReportRow struct {
	ID               string
	UserID           int64
	Username         string
	Email            string
	Status           ReportStatus
	OpenAIResponseID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AdminReportFilter narrows staff report listings. Zero values disable a filter.
type AdminReportFilter struct {
	Status        string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Query         string
	Limit         int
	Offset        int
}

// ReportStats aggregates one user's reports.
type ReportStats struct {
	Total          int64
	ByStatus       map[ReportStatus]int64
	Last30Days     int64
	LatestReportAt *time.Time
}

// ReportResult is what a successful summarization stores on the report.
type ReportResult struct {
	ResponseID  string
	SummaryText string
	Raw         json.RawMessage
}
