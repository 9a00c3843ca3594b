package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"visit-export-service/internal/models"
)

// ErrNotFound is returned when no export job matches both id and owner.
// Ownership mismatches are indistinguishable from missing rows on purpose.
var ErrNotFound = errors.New("export job not found")

// Store wraps pgxpool for Postgres persistence.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a pooled connection to Postgres.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// CreateExportJobParams collects inputs required to insert an export job.
type CreateExportJobParams struct {
	UserID  string
	Format  models.Format
	Filters models.ExportFilters
}

// CreateExportJob inserts a job row in pending state with zero progress.
func (s *Store) CreateExportJob(ctx context.Context, p CreateExportJobParams) (models.ExportJob, error) {
	filtersJSON, err := json.Marshal(p.Filters)
	if err != nil {
		return models.ExportJob{}, fmt.Errorf("marshal filters: %w", err)
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err = s.pool.Exec(ctx, `
		INSERT INTO export_jobs (id, user_id, format, filters, status, progress, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $6)
	`, id, p.UserID, string(p.Format), filtersJSON, models.StatusPending, now)
	if err != nil {
		return models.ExportJob{}, fmt.Errorf("insert export job: %w", err)
	}

	return models.ExportJob{
		ID:        id,
		UserID:    p.UserID,
		Format:    p.Format,
		Filters:   p.Filters,
		Status:    models.StatusPending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetExportJob fetches a job by id, scoped to its owner.
func (s *Store) GetExportJob(ctx context.Context, id, userID string) (models.ExportJob, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, format, filters, status, progress, download_ref, last_error, created_at, updated_at
		FROM export_jobs WHERE id = $1 AND user_id = $2
	`, id, userID)
	return scanExportJob(row)
}

// GetExportJobAnyOwner fetches a job by id alone; worker-side use only.
func (s *Store) GetExportJobAnyOwner(ctx context.Context, id string) (models.ExportJob, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, format, filters, status, progress, download_ref, last_error, created_at, updated_at
		FROM export_jobs WHERE id = $1
	`, id)
	return scanExportJob(row)
}

func scanExportJob(row pgx.Row) (models.ExportJob, error) {
	var job models.ExportJob
	var format string
	var filtersJSON []byte
	var downloadRef, lastErr pgtype.Text

	err := row.Scan(&job.ID, &job.UserID, &format, &filtersJSON, &job.Status, &job.Progress,
		&downloadRef, &lastErr, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ExportJob{}, ErrNotFound
	}
	if err != nil {
		return models.ExportJob{}, fmt.Errorf("scan export job: %w", err)
	}

	job.Format = models.Format(format)
	if err := json.Unmarshal(filtersJSON, &job.Filters); err != nil {
		return models.ExportJob{}, fmt.Errorf("unmarshal filters: %w", err)
	}
	job.DownloadRef = textPtr(downloadRef)
	job.LastError = textPtr(lastErr)
	return job, nil
}

// MarkProcessing transitions a pending job to processing. Terminal and
// already-processing rows are left untouched; the boolean reports whether
// this call claimed the job.
func (s *Store) MarkProcessing(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE export_jobs SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, id, models.StatusProcessing, models.StatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetProgress records render progress. Progress never moves backwards and
// terminal jobs are never touched.
func (s *Store) SetProgress(ctx context.Context, id string, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE export_jobs SET progress = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3 AND progress < $2
	`, id, progress, models.StatusProcessing)
	return err
}

// MarkCompleted finalizes a job with its artifact reference.
func (s *Store) MarkCompleted(ctx context.Context, id, downloadRef string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE export_jobs
		SET status = $2, progress = 100, download_ref = $3, last_error = NULL, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`, id, models.StatusCompleted, downloadRef, models.StatusProcessing)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete job %s: not in processing state", id)
	}
	return nil
}

// MarkFailed finalizes a job with an error cause and no download reference.
func (s *Store) MarkFailed(ctx context.Context, id, cause string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE export_jobs
		SET status = $2, last_error = $3, download_ref = NULL, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ($4, $2)
	`, id, models.StatusFailed, cause, models.StatusCompleted)
	return err
}

// CountPendingJobs reports jobs awaiting a worker, for telemetry.
func (s *Store) CountPendingJobs(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM export_jobs WHERE status = $1
	`, models.StatusPending).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending jobs: %w", err)
	}
	return n, nil
}

// ListVisitsParams narrows the visit set covered by a report.
// Interval is half-open: Start <= check_in_at < End.
type ListVisitsParams struct {
	Start       time.Time
	End         time.Time
	PromoterIDs []string
	StoreIDs    []string
}

// ListVisits returns visits within the interval joined with their store and
// promoter, ordered by check-in ascending, each with its photos ordered by
// capture time ascending. Empty id filters mean no restriction.
func (s *Store) ListVisits(ctx context.Context, p ListVisitsParams) ([]models.Visit, error) {
	query := `
		SELECT v.id, v.store_id, v.promoter_id, v.check_in_at, v.check_out_at,
		       v.check_in_latitude, v.check_in_longitude,
		       s.name, s.address,
		       u.name, u.email
		FROM visits v
		JOIN stores s ON s.id = v.store_id
		JOIN users u ON u.id = v.promoter_id
		WHERE v.check_in_at >= $1 AND v.check_in_at < $2`
	args := []any{p.Start, p.End}
	if len(p.PromoterIDs) > 0 {
		args = append(args, p.PromoterIDs)
		query += fmt.Sprintf(" AND v.promoter_id = ANY($%d)", len(args))
	}
	if len(p.StoreIDs) > 0 {
		args = append(args, p.StoreIDs)
		query += fmt.Sprintf(" AND v.store_id = ANY($%d)", len(args))
	}
	query += " ORDER BY v.check_in_at ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query visits: %w", err)
	}
	defer rows.Close()

	var visits []models.Visit
	index := map[string]int{}
	for rows.Next() {
		var v models.Visit
		var checkOut pgtype.Timestamptz
		if err := rows.Scan(&v.ID, &v.StoreID, &v.PromoterID, &v.CheckInAt, &checkOut,
			&v.CheckInLatitude, &v.CheckInLongitude,
			&v.Store.Name, &v.Store.Address,
			&v.Promoter.Name, &v.Promoter.Email); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		if checkOut.Valid {
			t := checkOut.Time
			v.CheckOutAt = &t
		}
		v.Store.ID = v.StoreID
		v.Promoter.ID = v.PromoterID
		index[v.ID] = len(visits)
		visits = append(visits, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate visits: %w", err)
	}
	if len(visits) == 0 {
		return visits, nil
	}

	ids := make([]string, len(visits))
	for i, v := range visits {
		ids[i] = v.ID
	}
	photoRows, err := s.pool.Query(ctx, `
		SELECT id, visit_id, type, url, latitude, longitude, created_at
		FROM photos WHERE visit_id = ANY($1)
		ORDER BY created_at ASC
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("query photos: %w", err)
	}
	defer photoRows.Close()

	for photoRows.Next() {
		var ph models.Photo
		var lat, lng pgtype.Float8
		if err := photoRows.Scan(&ph.ID, &ph.VisitID, &ph.Type, &ph.URL, &lat, &lng, &ph.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		if lat.Valid {
			v := lat.Float64
			ph.Latitude = &v
		}
		if lng.Valid {
			v := lng.Float64
			ph.Longitude = &v
		}
		if i, ok := index[ph.VisitID]; ok {
			visits[i].Photos = append(visits[i].Photos, ph)
		}
	}
	if err := photoRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}

	return visits, nil
}

func textPtr(t pgtype.Text) *string {
	if t.Valid {
		return &t.String
	}
	return nil
}
