package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/medpipe/patient-summarizer/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	patient_id TEXT NOT NULL,
	uploaded_by TEXT NOT NULL,
	file_name TEXT NOT NULL,
	file_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	file_size BIGINT NOT NULL DEFAULT 0,
	ocr_text TEXT,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_patient_id ON documents(patient_id);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, patient_id, uploaded_by, file_name, file_type, storage_path, file_size, ocr_text, status, error_message, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,NULL,$8,NULL,$9)
`,
		doc.ID, doc.PatientID, doc.UploadedBy, doc.FileName, doc.FileType, doc.StoragePath,
		doc.FileSize, string(doc.Status), doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

const documentColumns = `id, patient_id, uploaded_by, file_name, file_type, storage_path, file_size, ocr_text, status, error_message, created_at`

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

// ClaimPending performs the conditional pending → processing transition.
// The WHERE clause on status is the per-document lease: only one caller can
// move the row out of pending, duplicates observe zero affected rows.
func (r *DocumentRepository) ClaimPending(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = NULL
WHERE id = $1 AND status = $3
`, id, string(domain.StatusProcessing), string(domain.StatusPending))
	if err != nil {
		return false, fmt.Errorf("claim pending document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *DocumentRepository) MarkCompleted(ctx context.Context, id, ocrText string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, ocr_text = $3, error_message = NULL
WHERE id = $1
`, id, string(domain.StatusCompleted), ocrText)
	if err != nil {
		return fmt.Errorf("mark document completed: %w", err)
	}
	return requireRow(res, "mark document completed", id)
}

func (r *DocumentRepository) MarkFailed(ctx context.Context, id, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, ocr_text = NULL
WHERE id = $1
`, id, string(domain.StatusFailed), errMessage)
	if err != nil {
		return fmt.Errorf("mark document failed: %w", err)
	}
	return requireRow(res, "mark document failed", id)
}

func (r *DocumentRepository) ListByPatient(ctx context.Context, patientID string) ([]domain.Document, error) {
	return r.list(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE patient_id = $1
ORDER BY created_at
`, patientID)
}

func (r *DocumentRepository) ListCompletedByPatient(ctx context.Context, patientID string) ([]domain.Document, error) {
	return r.list(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE patient_id = $1 AND status = '`+string(domain.StatusCompleted)+`'
ORDER BY created_at
`, patientID)
}

func (r *DocumentRepository) CountCompletedByPatient(ctx context.Context, patientID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM documents
WHERE patient_id = $1 AND status = $2
`, patientID, string(domain.StatusCompleted)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count completed documents: %w", err)
	}
	return count, nil
}

func (r *DocumentRepository) list(ctx context.Context, query, patientID string) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var ocrText, errMessage sql.NullString
	var status string

	err := row.Scan(
		&doc.ID, &doc.PatientID, &doc.UploadedBy, &doc.FileName, &doc.FileType, &doc.StoragePath,
		&doc.FileSize, &ocrText, &status, &errMessage, &doc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.OCRText = ocrText.String
	doc.ErrorMessage = errMessage.String
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

func requireRow(res sql.Result, operation, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, fmt.Errorf("id %s", id))
	}
	return nil
}
