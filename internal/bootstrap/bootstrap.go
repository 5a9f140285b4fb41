package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/medpipe/patient-summarizer/internal/config"
	"github.com/medpipe/patient-summarizer/internal/core/ports"
	"github.com/medpipe/patient-summarizer/internal/core/usecase"
	"github.com/medpipe/patient-summarizer/internal/infrastructure/llm/openai"
	"github.com/medpipe/patient-summarizer/internal/infrastructure/ocr/tesseract"
	"github.com/medpipe/patient-summarizer/internal/infrastructure/queue/nats"
	"github.com/medpipe/patient-summarizer/internal/infrastructure/repository/postgres"
	"github.com/medpipe/patient-summarizer/internal/infrastructure/resilience"
	"github.com/medpipe/patient-summarizer/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Patients  ports.PatientRepository
	Documents ports.DocumentRepository
	Summaries ports.SummaryRepository

	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	SummaryUC ports.SummaryService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	patients := postgres.NewPatientRepository(db)
	documents := postgres.NewDocumentRepository(db)
	summaries := postgres.NewSummaryRepository(db)
	for _, schema := range []interface {
		EnsureSchema(context.Context) error
	}{patients, documents, summaries} {
		if err := schema.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig(), slog.Default())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSDocumentSubject, cfg.NATSSummarySubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	extractor := tesseract.NewExtractor(tesseract.Config{
		Tesseract:       cfg.TesseractBin,
		Pdftoppm:        cfg.PdftoppmBin,
		Lang:            cfg.OCRLang,
		DPI:             cfg.OCRDPI,
		PSM:             cfg.OCRPSM,
		OEM:             cfg.OCROEM,
		PageParallelism: cfg.OCRPageParallel,
	}, storage, nil)

	backend := openai.NewWithOptions(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, openai.Options{
		ResilienceExecutor: executor,
	})

	ingestUC := usecase.NewIngestDocumentUseCase(documents, patients, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(documents, extractor)
	summaryUC := usecase.NewGenerateSummaryUseCase(patients, documents, summaries, backend, queue)

	return &App{
		Config: cfg,

		Queue:     queue,
		Patients:  patients,
		Documents: documents,
		Summaries: summaries,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		SummaryUC: summaryUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
