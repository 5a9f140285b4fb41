package ports

import (
	"context"
	"io"

	"github.com/medpipe/patient-summarizer/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	// ClaimPending transitions a document from pending to processing.
	// Returns false without error when the document is no longer pending,
	// so duplicate triggers and retries cannot double-process it.
	ClaimPending(ctx context.Context, id string) (bool, error)
	MarkCompleted(ctx context.Context, id string, ocrText string) error
	MarkFailed(ctx context.Context, id string, errMessage string) error
	ListByPatient(ctx context.Context, patientID string) ([]domain.Document, error)
	ListCompletedByPatient(ctx context.Context, patientID string) ([]domain.Document, error)
	CountCompletedByPatient(ctx context.Context, patientID string) (int, error)
}

// PatientRepository looks up patient records.
type PatientRepository interface {
	Create(ctx context.Context, patient *domain.PatientInfo) error
	GetByID(ctx context.Context, id string) (*domain.PatientInfo, error)
}

// SummaryRepository persists versioned summaries.
type SummaryRepository interface {
	// CommitLatest atomically demotes the patient's current latest summary
	// and inserts the given one as latest with the next version number.
	// The passed summary's Version and IsLatest fields are assigned.
	CommitLatest(ctx context.Context, summary *domain.Summary) error
	GetByID(ctx context.Context, id string) (*domain.Summary, error)
	ListByPatient(ctx context.Context, patientID string, latestOnly bool) ([]domain.Summary, error)
}

// ObjectStorage stores source document bytes.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes background pipeline jobs.
type MessageQueue interface {
	PublishDocumentUploaded(ctx context.Context, documentID string) error
	SubscribeDocumentUploaded(ctx context.Context, handler func(context.Context, string) error) error
	PublishSummaryRequested(ctx context.Context, req domain.SummaryRequest) error
	SubscribeSummaryRequested(ctx context.Context, handler func(context.Context, domain.SummaryRequest) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// CompletionBackend invokes the generative text backend.
type CompletionBackend interface {
	Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}
