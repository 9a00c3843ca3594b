package models

import (
	"fmt"
	"time"
)

// Export job lifecycle states persisted in Postgres.
// pending -> processing -> completed|failed; completed and failed are terminal.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// IsTerminal reports whether a job in this status may never transition again.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// Format identifies the requested report output.
type Format string

const (
	FormatPPTX  Format = "pptx"
	FormatPDF   Format = "pdf"
	FormatExcel Format = "excel"
	FormatHTML  Format = "html"
)

// Valid reports whether the format is one of the supported values.
func (f Format) Valid() bool {
	switch f {
	case FormatPPTX, FormatPDF, FormatExcel, FormatHTML:
		return true
	}
	return false
}

// Ext returns the download file extension. Excel reports download as .xlsx.
func (f Format) Ext() string {
	switch f {
	case FormatExcel:
		return "xlsx"
	default:
		return string(f)
	}
}

// ContentType returns the MIME type served on download.
func (f Format) ContentType() string {
	switch f {
	case FormatPPTX:
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case FormatPDF:
		return "application/pdf"
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatHTML:
		return "text/html"
	default:
		return "application/octet-stream"
	}
}

// DateLayout is the wire format for report period boundaries.
const DateLayout = "2006-01-02"

// ExportFilters narrows the visit set a report covers. Empty id lists mean
// no restriction. Dates are inclusive; EndDate covers the whole day.
type ExportFilters struct {
	StartDate   string   `json:"startDate"`
	EndDate     string   `json:"endDate"`
	PromoterIDs []string `json:"promoterIds,omitempty"`
	StoreIDs    []string `json:"storeIds,omitempty"`
}

// Range resolves the filter dates into a half-open interval [start, end).
func (f ExportFilters) Range() (time.Time, time.Time, error) {
	start, err := time.Parse(DateLayout, f.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse start date: %w", err)
	}
	end, err := time.Parse(DateLayout, f.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse end date: %w", err)
	}
	return start, end.AddDate(0, 0, 1), nil
}

// Filename derives the download name, e.g. relatorio-2024-01-01-2024-01-31.pptx.
func (f ExportFilters) Filename(format Format) string {
	return fmt.Sprintf("relatorio-%s-%s.%s", f.StartDate, f.EndDate, format.Ext())
}

// ExportJob is one report-generation request persisted in Postgres.
// Only the worker mutates a job after creation.
type ExportJob struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	Format      Format        `json:"format"`
	Filters     ExportFilters `json:"filters"`
	Status      string        `json:"status"`
	Progress    int           `json:"progress"`
	DownloadRef *string       `json:"download_ref,omitempty"`
	LastError   *string       `json:"last_error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
