// Package report renders visit/photo data into downloadable documents.
// Rendering is split in two phases: an I/O phase that fetches the visit set
// and photo bytes, and a pure phase that lays a Report out in the requested
// format.
package report

import (
	"context"
	"fmt"
	"time"

	"visit-export-service/internal/models"
	"visit-export-service/internal/store"
)

// VisitSource supplies the filtered visit set. Implemented by store.Store.
type VisitSource interface {
	ListVisits(ctx context.Context, p store.ListVisitsParams) ([]models.Visit, error)
}

// ProgressFunc receives monotonic progress updates in the 0-100 range while
// a report is being built.
type ProgressFunc func(percent int)

// Image is the outcome of one photo fetch. Failed fetches render as
// placeholder tiles; they never fail the report.
type Image struct {
	Data []byte // normalized JPEG bytes, nil when the fetch failed
	OK   bool
}

// Report is the fully resolved input to a renderer.
type Report struct {
	Title   string
	Filters models.ExportFilters
	Visits  []models.Visit
	// Images maps photo id to fetched bytes. Only populated for formats
	// that embed photo data (pptx, pdf).
	Images map[string]Image
}

// PeriodLabel renders the report period, e.g. "01/01/2024 a 31/01/2024".
func (r Report) PeriodLabel() string {
	start, _ := time.Parse(models.DateLayout, r.Filters.StartDate)
	end, _ := time.Parse(models.DateLayout, r.Filters.EndDate)
	return fmt.Sprintf("%s a %s", start.Format("02/01/2006"), end.Format("02/01/2006"))
}

// Result is a rendered artifact.
type Result struct {
	Data        []byte
	ContentType string
}

// Builder orchestrates data retrieval and rendering for one export job.
type Builder struct {
	source  VisitSource
	fetcher *PhotoFetcher
	title   string
}

// NewBuilder wires a builder. fetcher may be nil only if no embed format is
// ever requested; callers normally pass one.
func NewBuilder(source VisitSource, fetcher *PhotoFetcher, title string) *Builder {
	if title == "" {
		title = "Relatório de Visitas"
	}
	return &Builder{source: source, fetcher: fetcher, title: title}
}

// Build produces the artifact for the given format and filters. Progress is
// reported through progress (which may be nil): a small step after the visit
// query, per-visit steps during photo fetching, and a final step when layout
// is done. Photo fetch failures degrade to placeholders; any other error
// aborts the build.
func (b *Builder) Build(ctx context.Context, format models.Format, filters models.ExportFilters, progress ProgressFunc) (*Result, error) {
	if progress == nil {
		progress = func(int) {}
	}

	start, end, err := filters.Range()
	if err != nil {
		return nil, err
	}
	visits, err := b.source.ListVisits(ctx, store.ListVisitsParams{
		Start:       start,
		End:         end,
		PromoterIDs: filters.PromoterIDs,
		StoreIDs:    filters.StoreIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	progress(5)

	rep := Report{
		Title:   b.title,
		Filters: filters,
		Visits:  visits,
	}

	// pptx and pdf embed photo bytes; excel and html reference photo URLs.
	if format == models.FormatPPTX || format == models.FormatPDF {
		rep.Images = make(map[string]Image)
		for i, visit := range visits {
			for _, photo := range visit.Photos {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				rep.Images[photo.ID] = b.fetcher.Fetch(ctx, photo.URL)
			}
			progress(5 + (i+1)*75/max(len(visits), 1))
		}
	}
	progress(80)

	var data []byte
	switch format {
	case models.FormatPPTX:
		data, err = renderPPTX(rep)
	case models.FormatPDF:
		data, err = renderPDF(rep)
	case models.FormatExcel:
		data, err = renderExcel(rep)
	case models.FormatHTML:
		data, err = renderHTML(rep)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", format, err)
	}
	progress(95)

	return &Result{Data: data, ContentType: format.ContentType()}, nil
}
