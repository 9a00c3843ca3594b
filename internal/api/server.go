package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"visit-export-service/internal/artifact"
	"visit-export-service/internal/config"
	"visit-export-service/internal/models"
	"visit-export-service/internal/ratelimit"
	"visit-export-service/internal/store"
	"visit-export-service/internal/telemetry"
)

// JobStore is the persistence surface the API needs.
type JobStore interface {
	CreateExportJob(ctx context.Context, p store.CreateExportJobParams) (models.ExportJob, error)
	GetExportJob(ctx context.Context, id, userID string) (models.ExportJob, error)
}

// Enqueuer hands accepted jobs to the worker queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID string) error
}

// Limiter throttles intake per user.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, float64, error)
}

// Server wires HTTP handlers for the export API.
type Server struct {
	cfg       config.Config
	store     JobStore
	queue     Enqueuer
	artifacts artifact.Store
	limiter   Limiter
	validate  *validator.Validate
	log       *logrus.Logger
}

// New constructs the API server.
func New(cfg config.Config, st JobStore, q Enqueuer, artifacts artifact.Store, limiter Limiter, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}
	return &Server{
		cfg:       cfg,
		store:     st,
		queue:     q,
		artifacts: artifacts,
		limiter:   limiter,
		validate:  validator.New(),
		log:       log,
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/metrics", telemetry.Handler())

	r.Post("/exports", s.handleCreateExport)
	r.Get("/exports/{jobID}", s.handleExportStatus)
	r.Get("/exports/{jobID}/download", s.handleExportDownload)
	return r
}

type createExportRequest struct {
	StartDate   string   `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate     string   `json:"endDate" validate:"required,datetime=2006-01-02"`
	PromoterIDs []string `json:"promoterIds"`
	StoreIDs    []string `json:"storeIds"`
	Format      string   `json:"format" validate:"required,oneof=pptx pdf excel html"`
}

type exportStatusResponse struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Progress    int       `json:"progress"`
	DownloadURL *string   `json:"downloadUrl"`
	Format      string    `json:"format"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (s *Server) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	userID := userFromRequest(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "usuário não autenticado")
		return
	}

	var req createExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"message": "requisição inválida",
				"fields":  fields,
			})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.StartDate > req.EndDate {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message": "requisição inválida",
			"fields":  map[string]string{"startDate": "must not be after endDate"},
		})
		return
	}

	if s.limiter != nil {
		allowed, _, err := s.limiter.Allow(r.Context(), ratelimit.UserKey(userID))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "rate limit error")
			return
		}
		if !allowed {
			telemetry.RateLimitRejects.Inc()
			writeError(w, http.StatusTooManyRequests, "rate limited")
			return
		}
	}

	job, err := s.store.CreateExportJob(r.Context(), store.CreateExportJobParams{
		UserID: userID,
		Format: models.Format(req.Format),
		Filters: models.ExportFilters{
			StartDate:   req.StartDate,
			EndDate:     req.EndDate,
			PromoterIDs: req.PromoterIDs,
			StoreIDs:    req.StoreIDs,
		},
	})
	if err != nil {
		s.log.WithError(err).Error("create export job")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := s.queue.Enqueue(r.Context(), job.ID); err != nil {
		s.log.WithFields(logrus.Fields{"job_id": job.ID}).WithError(err).Error("enqueue export job")
		writeError(w, http.StatusInternalServerError, "enqueue failed")
		return
	}
	telemetry.ExportsCreated.Inc()
	s.log.WithFields(logrus.Fields{
		"job_id":  job.ID,
		"user_id": userID,
		"format":  req.Format,
	}).Info("export job accepted")

	writeJSON(w, http.StatusCreated, map[string]string{"jobId": job.ID})
}

func (s *Server) handleExportStatus(w http.ResponseWriter, r *http.Request) {
	userID := userFromRequest(r)
	jobID := chi.URLParam(r, "jobID")

	job, err := s.store.GetExportJob(r.Context(), jobID, userID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job de exportação não encontrado")
		return
	}
	if err != nil {
		s.log.WithError(err).Error("get export job")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := exportStatusResponse{
		ID:        job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		Format:    string(job.Format),
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	if job.Status == models.StatusCompleted && job.DownloadRef != nil {
		url := fmt.Sprintf("/exports/%s/download", job.ID)
		resp.DownloadURL = &url
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExportDownload(w http.ResponseWriter, r *http.Request) {
	userID := userFromRequest(r)
	jobID := chi.URLParam(r, "jobID")

	job, err := s.store.GetExportJob(r.Context(), jobID, userID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job de exportação não encontrado")
		return
	}
	if err != nil {
		s.log.WithError(err).Error("get export job")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if job.Status != models.StatusCompleted || job.DownloadRef == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message":  "relatório ainda não está pronto",
			"status":   job.Status,
			"progress": job.Progress,
		})
		return
	}

	data, contentType, err := s.artifacts.Get(r.Context(), *job.DownloadRef)
	if errors.Is(err, artifact.ErrNotFound) {
		writeError(w, http.StatusNotFound, "artefato expirado ou não encontrado")
		return
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{"job_id": job.ID}).WithError(err).Error("read artifact")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = job.Format.ContentType()
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.Filters.Filename(job.Format)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// userFromRequest trusts the authenticated user id supplied upstream.
func userFromRequest(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"message": message})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
