package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/medpipe/patient-summarizer/internal/core/domain"
)

func newSummaryRepoWithMock(t *testing.T) (*SummaryRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &SummaryRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestSummaryGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newSummaryRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, patient_id, created_by").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrSummaryNotFound) {
		t.Fatalf("expected ErrSummaryNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCommitLatestDemotesThenInsertsUnderPatientLock(t *testing.T) {
	repo, mock, done := newSummaryRepoWithMock(t)
	defer done()

	summary := &domain.Summary{
		ID:          "sum-2",
		PatientID:   "pat-1",
		CreatedBy:   "dr-house",
		SummaryText: "stable",
		LabResults:  map[string]domain.LabResult{},
		CreatedAt:   time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("pat-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE summaries").
		WithArgs("pat-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO summaries").
		WithArgs("sum-2", "pat-1", "dr-house", "stable",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), summary.CreatedAt).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(2))
	mock.ExpectCommit()

	if err := repo.CommitLatest(context.Background(), summary); err != nil {
		t.Fatalf("CommitLatest() error = %v", err)
	}
	if summary.Version != 2 {
		t.Fatalf("Version = %d, want 2", summary.Version)
	}
	if !summary.IsLatest {
		t.Fatalf("expected IsLatest = true")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCommitLatestRollsBackOnInsertFailure(t *testing.T) {
	repo, mock, done := newSummaryRepoWithMock(t)
	defer done()

	summary := &domain.Summary{
		ID:        "sum-1",
		PatientID: "pat-1",
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("pat-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE summaries").
		WithArgs("pat-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO summaries").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	if err := repo.CommitLatest(context.Background(), summary); err == nil {
		t.Fatalf("expected error")
	}
	if summary.Version != 0 {
		t.Fatalf("Version mutated on failed commit: %d", summary.Version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListByPatientLatestOnlyFilters(t *testing.T) {
	repo, mock, done := newSummaryRepoWithMock(t)
	defer done()

	created := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "patient_id", "created_by", "summary_text",
		"red_flags", "lab_results", "medications",
		"version", "is_latest", "created_at",
	}).AddRow("sum-3", "pat-1", "dr-house", "latest text",
		[]byte(`[{"category":"Cardiac","finding":"Chest pain","severity":"critical"}]`),
		[]byte(`{"glucose":{"value":"110","unit":"mg/dL"}}`),
		[]byte(`[{"name":"Aspirin","dosage":"See original document"}]`),
		3, true, created)

	mock.ExpectQuery("SELECT id, patient_id, created_by").
		WithArgs("pat-1").
		WillReturnRows(rows)

	summaries, err := repo.ListByPatient(context.Background(), "pat-1", true)
	if err != nil {
		t.Fatalf("ListByPatient() error = %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("len(summaries) = %d, want 1", len(summaries))
	}
	got := summaries[0]
	if got.Version != 3 || !got.IsLatest {
		t.Fatalf("unexpected summary row: %+v", got)
	}
	if len(got.RedFlags) != 1 || got.RedFlags[0].Severity != domain.SeverityCritical {
		t.Fatalf("red flags not decoded: %+v", got.RedFlags)
	}
	if got.LabResults["glucose"].Unit != "mg/dL" {
		t.Fatalf("lab results not decoded: %+v", got.LabResults)
	}
	if len(got.Medications) != 1 || got.Medications[0].Name != "Aspirin" {
		t.Fatalf("medications not decoded: %+v", got.Medications)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
