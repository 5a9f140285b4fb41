package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/medpipe/patient-summarizer/internal/core/domain"
)

type ingestStorageFake struct {
	savedKey  string
	savedBody string
	err       error
}

func (f *ingestStorageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.savedBody = string(raw)
	return nil
}

func (f *ingestStorageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

type ingestDocsFake struct {
	processRepoFake
	created *domain.Document
	err     error
}

func (f *ingestDocsFake) Create(_ context.Context, doc *domain.Document) error {
	if f.err != nil {
		return f.err
	}
	copyDoc := *doc
	f.created = &copyDoc
	return nil
}

func TestIngestUploadSuccess(t *testing.T) {
	docs := &ingestDocsFake{}
	storage := &ingestStorageFake{}
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(docs, &patientsFake{patient: &domain.PatientInfo{ID: "pat-1"}}, storage, queue)

	doc, err := uc.Upload(context.Background(), "pat-1", "user-1", "lab report 1.pdf", 5, bytes.NewBufferString("hello"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.Status != domain.StatusPending {
		t.Fatalf("expected status pending, got %s", doc.Status)
	}
	if doc.FileType != "pdf" {
		t.Fatalf("expected file type pdf, got %s", doc.FileType)
	}
	if docs.created == nil {
		t.Fatalf("expected document record created")
	}
	if queue.documentID != doc.ID {
		t.Fatalf("expected queued doc id %s, got %s", doc.ID, queue.documentID)
	}
	if !strings.HasPrefix(storage.savedKey, "pat-1/") || !strings.HasSuffix(storage.savedKey, "_lab_report_1.pdf") {
		t.Fatalf("unexpected storage key: %s", storage.savedKey)
	}
	if storage.savedBody != "hello" {
		t.Fatalf("expected saved body hello, got %s", storage.savedBody)
	}
}

func TestIngestUploadRejectsDisallowedFileType(t *testing.T) {
	uc := NewIngestDocumentUseCase(
		&ingestDocsFake{},
		&patientsFake{patient: &domain.PatientInfo{ID: "pat-1"}},
		&ingestStorageFake{},
		&queueFake{},
	)

	_, err := uc.Upload(context.Background(), "pat-1", "user-1", "notes.txt", 5, bytes.NewBufferString("hello"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestIngestUploadRejectsOversizedFile(t *testing.T) {
	uc := NewIngestDocumentUseCase(
		&ingestDocsFake{},
		&patientsFake{patient: &domain.PatientInfo{ID: "pat-1"}},
		&ingestStorageFake{},
		&queueFake{},
	)

	_, err := uc.Upload(context.Background(), "pat-1", "user-1", "scan.png", domain.MaxUploadSize+1, bytes.NewBufferString("hello"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestIngestUploadUnknownPatient(t *testing.T) {
	uc := NewIngestDocumentUseCase(
		&ingestDocsFake{},
		&patientsFake{err: domain.WrapError(domain.ErrPatientNotFound, "fetch", errors.New("no rows"))},
		&ingestStorageFake{},
		&queueFake{},
	)

	_, err := uc.Upload(context.Background(), "missing", "user-1", "scan.png", 5, bytes.NewBufferString("hello"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
}
