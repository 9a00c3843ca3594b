package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"visit-export-service/internal/artifact"
	"visit-export-service/internal/config"
	"visit-export-service/internal/queue"
	"visit-export-service/internal/report"
	"visit-export-service/internal/store"
	"visit-export-service/internal/telemetry"
	"visit-export-service/internal/worker"
)

func main() {
	cfg := config.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	st, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.WithError(err).Fatal("connect postgres")
	}
	defer st.Close()

	if err := st.RunMigrations(ctx); err != nil {
		log.WithError(err).Fatal("migrations")
	}

	q := queue.NewRedisQueue(cfg)

	artifacts, err := artifact.FromConfig(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("init artifact store")
	}

	workerID := os.Getenv("WORKER_ID")
	if workerID == "" {
		hostname, _ := os.Hostname()
		if hostname != "" {
			workerID = hostname
		} else {
			workerID = fmt.Sprintf("worker-%d", os.Getpid())
		}
	}

	fetcher := report.NewPhotoFetcher(cfg.PhotoFetchTimeout, cfg.PhotoMaxBytes, log)
	builder := report.NewBuilder(st, fetcher, cfg.ReportTitle)
	processor := worker.NewProcessor(cfg, q, st, builder, artifacts, workerID, log)

	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, telemetry.Handler()); err != nil {
			log.WithError(err).Warn("metrics server stopped")
		}
	}()

	log.WithFields(logrus.Fields{
		"worker":     workerID,
		"visibility": cfg.VisibilityTimeout.String(),
		"backend":    cfg.ArtifactBackend,
	}).Info("worker started")
	if err := processor.Run(ctx); err != nil {
		log.WithError(err).Info("worker stopped")
	}
}
