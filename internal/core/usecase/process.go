package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/medpipe/patient-summarizer/internal/core/domain"
	"github.com/medpipe/patient-summarizer/internal/core/ports"
)

// ProcessDocumentUseCase owns the document lifecycle
// pending → processing → completed|failed. Both terminal states are final:
// re-processing requires a new document record upstream.
type ProcessDocumentUseCase struct {
	documents ports.DocumentRepository
	extractor ports.TextExtractor
}

func NewProcessDocumentUseCase(
	documents ports.DocumentRepository,
	extractor ports.TextExtractor,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		documents: documents,
		extractor: extractor,
	}
}

// ProcessByID runs text extraction for a pending document. A missing document
// and an already-claimed document are logged no-ops: the trigger is
// fire-and-forget and has nothing to update. Once the document is claimed,
// exactly one terminal status is written on every exit path, so a document
// never remains in processing after this call returns.
func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) (err error) {
	doc, err := uc.documents.GetByID(ctx, documentID)
	if err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			slog.Warn("process skipped: document not found", "document_id", documentID)
			return nil
		}
		return fmt.Errorf("fetch document by id: %w", err)
	}

	claimed, err := uc.documents.ClaimPending(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("claim pending document: %w", err)
	}
	if !claimed {
		slog.Warn("process skipped: document not pending",
			"document_id", doc.ID, "status", string(doc.Status))
		return nil
	}

	completed := false
	defer func() {
		if completed {
			return
		}
		detail := "document processing aborted"
		if err != nil {
			detail = err.Error()
		}
		// The terminal write must survive cancellation of the job context.
		failCtx := context.WithoutCancel(ctx)
		if failErr := uc.documents.MarkFailed(failCtx, doc.ID, detail); failErr != nil {
			err = errors.Join(err, fmt.Errorf("mark failed status: %w", failErr))
		}
	}()

	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}

	if err = uc.documents.MarkCompleted(ctx, doc.ID, text); err != nil {
		return fmt.Errorf("mark completed status: %w", err)
	}
	completed = true

	slog.Info("document processed", "document_id", doc.ID, "text_chars", len(text))
	return nil
}
