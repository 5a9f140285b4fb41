package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medpipe/patient-summarizer/internal/bootstrap"
	"github.com/medpipe/patient-summarizer/internal/config"
	"github.com/medpipe/patient-summarizer/internal/core/domain"
	"github.com/medpipe/patient-summarizer/internal/observability/logging"
	"github.com/medpipe/patient-summarizer/internal/observability/metrics"
)

const serviceName = "patient-summarizer-worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		slog.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	errs := make(chan error, 2)

	go func() {
		stageLog := logging.ForStage(slog.Default(), "ocr")
		stageLog.Info("worker subscribed", "subject", cfg.NATSDocumentSubject)
		errs <- app.Queue.SubscribeDocumentUploaded(ctx, func(handlerCtx context.Context, documentID string) error {
			processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
			defer cancel()

			if doc, err := app.Documents.GetByID(processCtx, documentID); err == nil {
				workerMetrics.ObserveQueueLag(serviceName, time.Since(doc.CreatedAt))
			}

			workerMetrics.StartDocument()
			start := time.Now()
			err := app.ProcessUC.ProcessByID(processCtx, documentID)
			workerMetrics.FinishDocument(serviceName, time.Since(start), err)
			if err != nil {
				stageLog.Error("document processing failed", "document_id", documentID, "error", err)
			}
			return err
		})
	}()

	go func() {
		stageLog := logging.ForStage(slog.Default(), "summarize")
		stageLog.Info("worker subscribed", "subject", cfg.NATSSummarySubject)
		errs <- app.Queue.SubscribeSummaryRequested(ctx, func(handlerCtx context.Context, req domain.SummaryRequest) error {
			generateCtx, cancel := context.WithTimeout(handlerCtx, 10*time.Minute)
			defer cancel()

			start := time.Now()
			_, err := app.SummaryUC.GenerateForPatient(generateCtx, req.PatientID, req.RequestedBy)
			workerMetrics.FinishSummary(serviceName, time.Since(start), err)
			if err != nil {
				stageLog.Error("summary generation failed", "patient_id", req.PatientID, "error", err)
			}
			return err
		})
	}()

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			log.Fatalf("worker subscribe error: %v", err)
		}
	}
}
