package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"visit-export-service/internal/artifact"
	"visit-export-service/internal/config"
	"visit-export-service/internal/models"
	"visit-export-service/internal/report"
	"visit-export-service/internal/telemetry"
)

// JobStore is the persistence surface the worker needs.
type JobStore interface {
	GetExportJobAnyOwner(ctx context.Context, id string) (models.ExportJob, error)
	MarkProcessing(ctx context.Context, id string) (bool, error)
	SetProgress(ctx context.Context, id string, progress int) error
	MarkCompleted(ctx context.Context, id, downloadRef string) error
	MarkFailed(ctx context.Context, id, cause string) error
}

// Queue is the lease queue surface the worker needs.
type Queue interface {
	DequeueWithLease(ctx context.Context) (string, error)
	ExtendLease(ctx context.Context, jobID string, extension time.Duration) error
	Ack(ctx context.Context, jobID string) error
	ExpiredLeases(ctx context.Context, now time.Time, limit int64) ([]string, error)
	Depth(ctx context.Context) (int64, error)
}

// Processor drives the export worker loop: it leases pending jobs, renders
// the requested report, stores the artifact, and finalizes job state. Export
// jobs are never retried automatically; a failure is terminal and the user
// re-submits.
type Processor struct {
	cfg       config.Config
	queue     Queue
	store     JobStore
	builder   *report.Builder
	artifacts artifact.Store
	workerID  string
	log       *logrus.Logger
}

// NewProcessor creates a processor with a worker ID for log attribution.
func NewProcessor(cfg config.Config, q Queue, st JobStore, builder *report.Builder, artifacts artifact.Store, workerID string, log *logrus.Logger) *Processor {
	if log == nil {
		log = logrus.New()
	}
	return &Processor{
		cfg:       cfg,
		queue:     q,
		store:     st,
		builder:   builder,
		artifacts: artifacts,
		workerID:  workerID,
		log:       log,
	}
}

// Run starts the main worker loop until context cancellation.
func (p *Processor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		p.reclaimExpired(ctx)
		if depth, err := p.queue.Depth(ctx); err == nil {
			telemetry.QueueDepthGauge.Set(float64(depth))
		}

		jobID, err := p.queue.DequeueWithLease(ctx)
		if err != nil || jobID == "" {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.cfg.WorkerPollInterval):
			}
			continue
		}

		p.handle(ctx, jobID)
	}
}

// reclaimExpired marks jobs whose lease lapsed as failed. A lapsed lease
// means the owning worker died mid-render; the job is not re-run.
func (p *Processor) reclaimExpired(ctx context.Context) {
	expired, err := p.queue.ExpiredLeases(ctx, time.Now(), 100)
	if err != nil || len(expired) == 0 {
		return
	}
	for _, id := range expired {
		job, err := p.store.GetExportJobAnyOwner(ctx, id)
		if err != nil || models.IsTerminal(job.Status) {
			continue
		}
		_ = p.store.MarkFailed(ctx, id, "worker lease expired")
		telemetry.ExportsFailed.Inc()
		p.log.WithFields(logrus.Fields{"job_id": id}).Warn("lease expired, job marked failed")
	}
}

func (p *Processor) handle(ctx context.Context, jobID string) {
	defer func() { _ = p.queue.Ack(ctx, jobID) }()

	job, err := p.store.GetExportJobAnyOwner(ctx, jobID)
	if err != nil {
		p.log.WithFields(logrus.Fields{"job_id": jobID}).WithError(err).Error("load job")
		return
	}
	if models.IsTerminal(job.Status) {
		return
	}

	claimed, err := p.store.MarkProcessing(ctx, job.ID)
	if err != nil {
		p.log.WithFields(logrus.Fields{"job_id": job.ID}).WithError(err).Error("claim job")
		return
	}
	if !claimed {
		return
	}

	telemetry.InFlightGauge.Inc()
	defer telemetry.InFlightGauge.Dec()

	log := p.log.WithFields(logrus.Fields{
		"job_id": job.ID,
		"format": string(job.Format),
		"worker": p.workerID,
	})
	log.Info("export started")

	started := time.Now()
	ref, err := p.runJob(ctx, job)
	telemetry.RenderSeconds.WithLabelValues(string(job.Format)).Observe(time.Since(started).Seconds())

	if err != nil {
		if markErr := p.store.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			log.WithError(markErr).Error("mark failed")
		}
		telemetry.ExportsFailed.Inc()
		log.WithError(err).Error("export failed")
		return
	}

	if err := p.store.MarkCompleted(ctx, job.ID, ref); err != nil {
		log.WithError(err).Error("mark completed")
		return
	}
	telemetry.ExportsCompleted.Inc()
	log.WithFields(logrus.Fields{"duration": time.Since(started).String()}).Info("export completed")
}

// runJob renders the report under the job wall-clock ceiling and stores the
// artifact. The returned ref becomes the job's download reference.
func (p *Processor) runJob(ctx context.Context, job models.ExportJob) (string, error) {
	jobCtx := ctx
	if p.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, p.cfg.JobTimeout)
		defer cancel()
		// Hold the lease for the whole ceiling so no reclaim races the render.
		_ = p.queue.ExtendLease(ctx, job.ID, p.cfg.JobTimeout+p.cfg.VisibilityTimeout)
	}

	progress := func(percent int) {
		_ = p.store.SetProgress(ctx, job.ID, percent)
	}

	result, err := p.builder.Build(jobCtx, job.Format, job.Filters, progress)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%s/%s", job.ID, job.Filters.Filename(job.Format))
	ref, err := p.artifacts.Put(ctx, key, result.Data, result.ContentType)
	if err != nil {
		return "", fmt.Errorf("store artifact: %w", err)
	}
	return ref, nil
}
