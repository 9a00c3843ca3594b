package models

import (
	"testing"
	"time"
)

func TestFormatValid(t *testing.T) {
	for _, f := range []Format{FormatPPTX, FormatPDF, FormatExcel, FormatHTML} {
		if !f.Valid() {
			t.Errorf("%s should be valid", f)
		}
	}
	for _, f := range []Format{"", "docx", "PPTX"} {
		if f.Valid() {
			t.Errorf("%q should be invalid", f)
		}
	}
}

func TestFilenameUsesXlsxForExcel(t *testing.T) {
	filters := ExportFilters{StartDate: "2024-01-01", EndDate: "2024-01-31"}
	if got := filters.Filename(FormatExcel); got != "relatorio-2024-01-01-2024-01-31.xlsx" {
		t.Fatalf("unexpected filename %q", got)
	}
	if got := filters.Filename(FormatPPTX); got != "relatorio-2024-01-01-2024-01-31.pptx" {
		t.Fatalf("unexpected filename %q", got)
	}
}

func TestRangeCoversFullEndDay(t *testing.T) {
	filters := ExportFilters{StartDate: "2024-01-01", EndDate: "2024-01-31"}
	start, end, err := filters.Range()
	if err != nil {
		t.Fatal(err)
	}
	if !start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %v", start)
	}
	// A check-in at 23:59 on the end date must fall inside the interval.
	lastMinute := time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC)
	if !lastMinute.Before(end) {
		t.Fatalf("end %v excludes the end date's final hours", end)
	}
	if !end.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end %v", end)
	}
}

func TestRangeRejectsMalformedDates(t *testing.T) {
	if _, _, err := (ExportFilters{StartDate: "01/01/2024", EndDate: "2024-01-31"}).Range(); err == nil {
		t.Fatal("expected error for malformed start date")
	}
	if _, _, err := (ExportFilters{StartDate: "2024-01-01", EndDate: "soon"}).Range(); err == nil {
		t.Fatal("expected error for malformed end date")
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(StatusPending) || IsTerminal(StatusProcessing) {
		t.Fatal("pending and processing are not terminal")
	}
	if !IsTerminal(StatusCompleted) || !IsTerminal(StatusFailed) {
		t.Fatal("completed and failed are terminal")
	}
}
