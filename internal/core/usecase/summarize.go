package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/medpipe/patient-summarizer/internal/core/domain"
	"github.com/medpipe/patient-summarizer/internal/core/ports"
)

// Generation parameters for clinical summaries: a low temperature keeps the
// output consistent across runs, the token cap bounds backend cost.
const (
	summaryTemperature = 0.3
	summaryMaxTokens   = 2000
)

type GenerateSummaryUseCase struct {
	patients  ports.PatientRepository
	documents ports.DocumentRepository
	summaries ports.SummaryRepository
	backend   ports.CompletionBackend
	queue     ports.MessageQueue
	now       func() time.Time
}

func NewGenerateSummaryUseCase(
	patients ports.PatientRepository,
	documents ports.DocumentRepository,
	summaries ports.SummaryRepository,
	backend ports.CompletionBackend,
	queue ports.MessageQueue,
) *GenerateSummaryUseCase {
	return &GenerateSummaryUseCase{
		patients:  patients,
		documents: documents,
		summaries: summaries,
		backend:   backend,
		queue:     queue,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Request validates that a summarization run can produce something and
// enqueues it. It fails with ErrPreconditionFailed when the patient has no
// completed documents, so callers learn synchronously that nothing would be
// summarized.
func (uc *GenerateSummaryUseCase) Request(ctx context.Context, patientID, requestedBy string) error {
	if _, err := uc.patients.GetByID(ctx, patientID); err != nil {
		return fmt.Errorf("look up patient: %w", err)
	}

	count, err := uc.documents.CountCompletedByPatient(ctx, patientID)
	if err != nil {
		return fmt.Errorf("count completed documents: %w", err)
	}
	if count == 0 {
		return domain.WrapError(
			domain.ErrPreconditionFailed,
			"request summary",
			errors.New("no completed documents available for this patient"),
		)
	}

	if err := uc.queue.PublishSummaryRequested(ctx, domain.SummaryRequest{
		PatientID:   patientID,
		RequestedBy: requestedBy,
	}); err != nil {
		return fmt.Errorf("publish summarization job: %w", err)
	}
	return nil
}

// GenerateForPatient runs one summarization pass: gather completed document
// texts, prompt the backend, extract structure, commit the new version.
// A missing patient is a logged no-op, as with background processing there is
// nobody to raise to; every other failure propagates to the worker for
// logging and produces no new Summary.
func (uc *GenerateSummaryUseCase) GenerateForPatient(ctx context.Context, patientID, requestedBy string) (*domain.Summary, error) {
	patient, err := uc.patients.GetByID(ctx, patientID)
	if err != nil {
		if domain.IsKind(err, domain.ErrPatientNotFound) {
			slog.Warn("summarization skipped: patient not found", "patient_id", patientID)
			return nil, nil
		}
		return nil, fmt.Errorf("fetch patient: %w", err)
	}

	docs, err := uc.documents.ListCompletedByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list completed documents: %w", err)
	}

	texts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc.OCRText != "" {
			texts = append(texts, doc.OCRText)
		}
	}
	if len(texts) == 0 {
		return nil, domain.WrapError(
			domain.ErrPreconditionFailed,
			"generate summary",
			errors.New("no extracted text available for this patient"),
		)
	}

	combined := CombineDocumentTexts(texts)
	prompt := BuildSummaryPrompt(*patient, combined, uc.now())

	summaryText, err := uc.backend.Complete(ctx, prompt, summaryTemperature, summaryMaxTokens)
	if err != nil {
		return nil, domain.WrapError(domain.ErrGenerationFailed, "complete summary prompt", err)
	}

	extraction := ExtractStructured(summaryText, combined)

	summary := &domain.Summary{
		ID:          uuid.NewString(),
		PatientID:   patientID,
		CreatedBy:   requestedBy,
		SummaryText: extraction.SummaryText,
		RedFlags:    extraction.RedFlags,
		LabResults:  extraction.LabResults,
		Medications: extraction.Medications,
		CreatedAt:   uc.now(),
	}

	if err := uc.summaries.CommitLatest(ctx, summary); err != nil {
		return nil, fmt.Errorf("commit summary version: %w", err)
	}

	slog.Info("summary generated",
		"patient_id", patientID,
		"summary_id", summary.ID,
		"version", summary.Version,
		"red_flags", len(summary.RedFlags),
		"lab_results", len(summary.LabResults),
		"medications", len(summary.Medications),
	)
	return summary, nil
}
