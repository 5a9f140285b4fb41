package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medpipe/patient-summarizer/internal/core/domain"
	"github.com/medpipe/patient-summarizer/internal/core/ports"
)

type IngestDocumentUseCase struct {
	documents ports.DocumentRepository
	patients  ports.PatientRepository
	storage   ports.ObjectStorage
	queue     ports.MessageQueue
}

func NewIngestDocumentUseCase(
	documents ports.DocumentRepository,
	patients ports.PatientRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		documents: documents,
		patients:  patients,
		storage:   storage,
		queue:     queue,
	}
}

// Upload stores the document bytes, creates a pending document record and
// publishes the processing job. The document's final state is observable
// through the repository once the worker picks it up.
func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	patientID, uploadedBy, filename string,
	size int64,
	body io.Reader,
) (*domain.Document, error) {
	if _, err := uc.patients.GetByID(ctx, patientID); err != nil {
		return nil, fmt.Errorf("look up patient: %w", err)
	}

	fileType := domain.FileTypeOf(filename)
	if !domain.IsAllowedFileType(fileType) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"validate file type",
			fmt.Errorf("file type %q not allowed, allowed: %s", fileType, strings.Join(domain.AllowedFileTypes(), ", ")),
		)
	}
	if size > domain.MaxUploadSize {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"validate file size",
			fmt.Errorf("file size %d exceeds maximum %d bytes", size, domain.MaxUploadSize),
		)
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s/%s_%s", patientID, id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, io.LimitReader(body, domain.MaxUploadSize)); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:          id,
		PatientID:   patientID,
		UploadedBy:  uploadedBy,
		FileName:    filename,
		FileType:    fileType,
		StoragePath: storageKey,
		FileSize:    size,
		Status:      domain.StatusPending,
		CreatedAt:   now,
	}

	if err := uc.documents.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document record: %w", err)
	}

	if err := uc.queue.PublishDocumentUploaded(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish processing job: %w", err)
	}

	return doc, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
