package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/medpipe/patient-summarizer/internal/core/domain"
)

type processRepoFake struct {
	doc           *domain.Document
	getErr        error
	claimed       bool
	claimErr      error
	completedID   string
	completedText string
	failedID      string
	failedDetail  string
	completeErr   error
}

func (f *processRepoFake) Create(context.Context, *domain.Document) error { return nil }

func (f *processRepoFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copyDoc := *f.doc
	return &copyDoc, nil
}

func (f *processRepoFake) ClaimPending(context.Context, string) (bool, error) {
	if f.claimErr != nil {
		return false, f.claimErr
	}
	return f.claimed, nil
}

func (f *processRepoFake) MarkCompleted(_ context.Context, id, text string) error {
	if f.completeErr != nil {
		return f.completeErr
	}
	f.completedID = id
	f.completedText = text
	return nil
}

func (f *processRepoFake) MarkFailed(_ context.Context, id, detail string) error {
	f.failedID = id
	f.failedDetail = detail
	return nil
}

func (f *processRepoFake) ListByPatient(context.Context, string) ([]domain.Document, error) {
	return nil, errors.New("not implemented")
}

func (f *processRepoFake) ListCompletedByPatient(context.Context, string) ([]domain.Document, error) {
	return nil, errors.New("not implemented")
}

func (f *processRepoFake) CountCompletedByPatient(context.Context, string) (int, error) {
	return 0, errors.New("not implemented")
}

type extractorFake struct {
	text string
	err  error
}

func (f *extractorFake) Extract(context.Context, *domain.Document) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func TestProcessByIDSuccess(t *testing.T) {
	repo := &processRepoFake{
		doc:     &domain.Document{ID: "doc-1", Status: domain.StatusPending},
		claimed: true,
	}
	uc := NewProcessDocumentUseCase(repo, &extractorFake{text: "=== Page 1 ===\nCBC panel"})

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if repo.completedID != "doc-1" {
		t.Fatalf("expected completed write for doc-1, got %q", repo.completedID)
	}
	if repo.completedText != "=== Page 1 ===\nCBC panel" {
		t.Fatalf("unexpected extracted text: %q", repo.completedText)
	}
	if repo.failedID != "" {
		t.Fatalf("unexpected failed write: %q", repo.failedID)
	}
}

func TestProcessByIDWritesFailedOnExtractError(t *testing.T) {
	repo := &processRepoFake{
		doc:     &domain.Document{ID: "doc-1", Status: domain.StatusPending},
		claimed: true,
	}
	uc := NewProcessDocumentUseCase(repo, &extractorFake{
		err: domain.WrapError(domain.ErrExtractionFailed, "rasterize pdf", errors.New("decode error")),
	})

	err := uc.ProcessByID(context.Background(), "doc-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if repo.failedID != "doc-1" {
		t.Fatalf("expected failed write for doc-1, got %q", repo.failedID)
	}
	if repo.failedDetail == "" {
		t.Fatalf("expected human-readable failure detail")
	}
	if repo.completedID != "" {
		t.Fatalf("unexpected completed write: %q", repo.completedID)
	}
}

func TestProcessByIDWritesFailedWhenCompletedWriteFails(t *testing.T) {
	repo := &processRepoFake{
		doc:         &domain.Document{ID: "doc-1", Status: domain.StatusPending},
		claimed:     true,
		completeErr: errors.New("db down"),
	}
	uc := NewProcessDocumentUseCase(repo, &extractorFake{text: "text"})

	err := uc.ProcessByID(context.Background(), "doc-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if repo.failedID != "doc-1" {
		t.Fatalf("expected terminal failed write, got %q", repo.failedID)
	}
}

func TestProcessByIDMissingDocumentIsNoOp(t *testing.T) {
	repo := &processRepoFake{
		getErr: domain.WrapError(domain.ErrDocumentNotFound, "fetch", errors.New("no rows")),
	}
	uc := NewProcessDocumentUseCase(repo, &extractorFake{text: "text"})

	if err := uc.ProcessByID(context.Background(), "missing"); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	if repo.failedID != "" || repo.completedID != "" {
		t.Fatalf("expected no status writes, got failed=%q completed=%q", repo.failedID, repo.completedID)
	}
}

func TestProcessByIDNotPendingIsNoOp(t *testing.T) {
	repo := &processRepoFake{
		doc:     &domain.Document{ID: "doc-1", Status: domain.StatusCompleted},
		claimed: false,
	}
	uc := NewProcessDocumentUseCase(repo, &extractorFake{text: "text"})

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	if repo.failedID != "" || repo.completedID != "" {
		t.Fatalf("expected no status writes, got failed=%q completed=%q", repo.failedID, repo.completedID)
	}
}
