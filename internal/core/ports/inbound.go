package ports

import (
	"context"
	"io"

	"github.com/medpipe/patient-summarizer/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, patientID, uploadedBy, filename string, size int64, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous OCR processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// SummaryService is the inbound contract for summarization: Request enqueues
// a background run after checking preconditions, GenerateForPatient executes
// one run synchronously (called by the worker).
type SummaryService interface {
	Request(ctx context.Context, patientID, requestedBy string) error
	GenerateForPatient(ctx context.Context, patientID, requestedBy string) (*domain.Summary, error)
}
