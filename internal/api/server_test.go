package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"visit-export-service/internal/artifact"
	"visit-export-service/internal/config"
	"visit-export-service/internal/models"
	"visit-export-service/internal/store"
)

type fakeJobStore struct {
	jobs map[string]models.ExportJob
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]models.ExportJob)}
}

func (f *fakeJobStore) CreateExportJob(_ context.Context, p store.CreateExportJobParams) (models.ExportJob, error) {
	now := time.Now().UTC()
	job := models.ExportJob{
		ID:        uuid.New().String(),
		UserID:    p.UserID,
		Format:    p.Format,
		Filters:   p.Filters,
		Status:    models.StatusPending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeJobStore) GetExportJob(_ context.Context, id, userID string) (models.ExportJob, error) {
	job, ok := f.jobs[id]
	if !ok || job.UserID != userID {
		return models.ExportJob{}, store.ErrNotFound
	}
	return job, nil
}

type fakeEnqueuer struct {
	ids []string
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, jobID string) error {
	f.ids = append(f.ids, jobID)
	return nil
}

func testServer(t *testing.T) (*Server, *fakeJobStore, *fakeEnqueuer, *artifact.Memory) {
	t.Helper()
	st := newFakeJobStore()
	q := &fakeEnqueuer{}
	artifacts := artifact.NewMemory(0)
	t.Cleanup(artifacts.Close)
	srv := New(config.Config{}, st, q, artifacts, nil, nil)
	return srv, st, q, artifacts
}

func doRequest(t *testing.T, srv *Server, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestCreateExportInitialState(t *testing.T) {
	srv, st, q, _ := testServer(t)

	w := doRequest(t, srv, http.MethodPost, "/exports", "user-1",
		`{"startDate":"2024-01-01","endDate":"2024-01-31","format":"pptx"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	jobID := resp["jobId"]
	if jobID == "" {
		t.Fatal("expected jobId in response")
	}

	job := st.jobs[jobID]
	if job.Status != models.StatusPending || job.Progress != 0 || job.DownloadRef != nil {
		t.Fatalf("unexpected initial job state: %+v", job)
	}
	if len(q.ids) != 1 || q.ids[0] != jobID {
		t.Fatalf("expected job enqueued once, got %v", q.ids)
	}
}

func TestCreateExportInvalidFormat(t *testing.T) {
	srv, _, q, _ := testServer(t)

	w := doRequest(t, srv, http.MethodPost, "/exports", "user-1",
		`{"startDate":"2024-01-01","endDate":"2024-01-31","format":"docx"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Format") {
		t.Fatalf("expected field detail in response: %s", w.Body)
	}
	if len(q.ids) != 0 {
		t.Fatal("invalid request must not enqueue a job")
	}
}

func TestCreateExportInvalidDateRange(t *testing.T) {
	srv, _, _, _ := testServer(t)

	w := doRequest(t, srv, http.MethodPost, "/exports", "user-1",
		`{"startDate":"2024-02-01","endDate":"2024-01-01","format":"pptx"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted range, got %d", w.Code)
	}

	w = doRequest(t, srv, http.MethodPost, "/exports", "user-1",
		`{"startDate":"01/01/2024","endDate":"2024-01-31","format":"pptx"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed date, got %d", w.Code)
	}
}

func TestCreateExportRequiresUser(t *testing.T) {
	srv, _, _, _ := testServer(t)

	w := doRequest(t, srv, http.MethodPost, "/exports", "",
		`{"startDate":"2024-01-01","endDate":"2024-01-31","format":"pptx"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestStatusOwnership(t *testing.T) {
	srv, st, _, _ := testServer(t)
	job, _ := st.CreateExportJob(context.Background(), store.CreateExportJobParams{
		UserID: "user-1", Format: models.FormatPPTX,
		Filters: models.ExportFilters{StartDate: "2024-01-01", EndDate: "2024-01-31"},
	})

	w := doRequest(t, srv, http.MethodGet, "/exports/"+job.ID, "user-2", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for non-owner, got %d", w.Code)
	}

	w = doRequest(t, srv, http.MethodGet, "/exports/"+job.ID, "user-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for owner, got %d", w.Code)
	}
}

func TestStatusDownloadURLOnlyWhenCompleted(t *testing.T) {
	srv, st, _, _ := testServer(t)
	job, _ := st.CreateExportJob(context.Background(), store.CreateExportJobParams{
		UserID: "user-1", Format: models.FormatPPTX,
		Filters: models.ExportFilters{StartDate: "2024-01-01", EndDate: "2024-01-31"},
	})

	w := doRequest(t, srv, http.MethodGet, "/exports/"+job.ID, "user-1", "")
	var resp exportStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.DownloadURL != nil {
		t.Fatalf("pending job must not expose a download url: %v", *resp.DownloadURL)
	}

	ref := "mem:" + job.ID
	job.Status = models.StatusCompleted
	job.Progress = 100
	job.DownloadRef = &ref
	st.jobs[job.ID] = job

	w = doRequest(t, srv, http.MethodGet, "/exports/"+job.ID, "user-1", "")
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.DownloadURL == nil || !strings.HasSuffix(*resp.DownloadURL, "/download") {
		t.Fatalf("completed job must expose a download url: %+v", resp)
	}
}

func TestDownloadNotReady(t *testing.T) {
	srv, st, _, _ := testServer(t)
	job, _ := st.CreateExportJob(context.Background(), store.CreateExportJobParams{
		UserID: "user-1", Format: models.FormatPPTX,
		Filters: models.ExportFilters{StartDate: "2024-01-01", EndDate: "2024-01-31"},
	})

	w := doRequest(t, srv, http.MethodGet, "/exports/"+job.ID+"/download", "user-1", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for pending job, got %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != models.StatusPending {
		t.Fatalf("expected status detail, got %v", resp)
	}
}

func TestDownloadCompleted(t *testing.T) {
	srv, st, _, artifacts := testServer(t)
	job, _ := st.CreateExportJob(context.Background(), store.CreateExportJobParams{
		UserID: "user-1", Format: models.FormatExcel,
		Filters: models.ExportFilters{StartDate: "2024-01-01", EndDate: "2024-01-31"},
	})
	ref, err := artifacts.Put(context.Background(), "k", []byte("workbook"), job.Format.ContentType())
	if err != nil {
		t.Fatalf("put artifact: %v", err)
	}
	job.Status = models.StatusCompleted
	job.Progress = 100
	job.DownloadRef = &ref
	st.jobs[job.ID] = job

	w := doRequest(t, srv, http.MethodGet, "/exports/"+job.ID+"/download", "user-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	if got := w.Header().Get("Content-Type"); got != job.Format.ContentType() {
		t.Fatalf("wrong content type: %s", got)
	}
	disposition := w.Header().Get("Content-Disposition")
	if !strings.Contains(disposition, "relatorio-2024-01-01-2024-01-31.xlsx") {
		t.Fatalf("wrong filename: %s", disposition)
	}
	if w.Body.String() != "workbook" {
		t.Fatal("artifact bytes were not served")
	}
}

func TestDownloadEvictedArtifact(t *testing.T) {
	srv, st, _, _ := testServer(t)
	job, _ := st.CreateExportJob(context.Background(), store.CreateExportJobParams{
		UserID: "user-1", Format: models.FormatPDF,
		Filters: models.ExportFilters{StartDate: "2024-01-01", EndDate: "2024-01-31"},
	})
	ref := "mem:gone"
	job.Status = models.StatusCompleted
	job.DownloadRef = &ref
	st.jobs[job.ID] = job

	w := doRequest(t, srv, http.MethodGet, "/exports/"+job.ID+"/download", "user-1", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for evicted artifact, got %d", w.Code)
	}
}
