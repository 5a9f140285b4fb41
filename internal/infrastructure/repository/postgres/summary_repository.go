package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/medpipe/patient-summarizer/internal/core/domain"
)

type SummaryRepository struct {
	db *sql.DB
}

func NewSummaryRepository(db *sql.DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

func (r *SummaryRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS summaries (
	id TEXT PRIMARY KEY,
	patient_id TEXT NOT NULL,
	created_by TEXT NOT NULL,
	summary_text TEXT NOT NULL,
	red_flags JSONB NOT NULL DEFAULT '[]',
	lab_results JSONB NOT NULL DEFAULT '{}',
	medications JSONB NOT NULL DEFAULT '[]',
	version INT NOT NULL,
	is_latest BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (patient_id, version)
);

CREATE INDEX IF NOT EXISTS idx_summaries_patient_id ON summaries(patient_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_summaries_patient_latest
	ON summaries(patient_id) WHERE is_latest;
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// CommitLatest demotes the patient's current latest summary and inserts the
// new one as version max+1 in a single transaction. A per-patient advisory
// lock serializes concurrent commits so the unique partial index on
// (patient_id) WHERE is_latest never trips under contention.
func (r *SummaryRepository) CommitLatest(ctx context.Context, summary *domain.Summary) error {
	redFlags, err := json.Marshal(summary.RedFlags)
	if err != nil {
		return fmt.Errorf("marshal red flags: %w", err)
	}
	labResults, err := json.Marshal(summary.LabResults)
	if err != nil {
		return fmt.Errorf("marshal lab results: %w", err)
	}
	medications, err := json.Marshal(summary.Medications)
	if err != nil {
		return fmt.Errorf("marshal medications: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, summary.PatientID,
	); err != nil {
		return fmt.Errorf("acquire patient lock: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE summaries
SET is_latest = FALSE
WHERE patient_id = $1 AND is_latest
`, summary.PatientID); err != nil {
		return fmt.Errorf("demote latest summary: %w", err)
	}

	var version int
	err = tx.QueryRowContext(ctx, `
INSERT INTO summaries (
	id, patient_id, created_by, summary_text, red_flags, lab_results, medications, version, is_latest, created_at
)
SELECT $1, $2, $3, $4, $5, $6, $7, COALESCE(MAX(version), 0) + 1, TRUE, $8
FROM summaries
WHERE patient_id = $2
RETURNING version
`,
		summary.ID, summary.PatientID, summary.CreatedBy, summary.SummaryText,
		redFlags, labResults, medications, summary.CreatedAt,
	).Scan(&version)
	if err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit summary tx: %w", err)
	}

	summary.Version = version
	summary.IsLatest = true
	return nil
}

const summaryColumns = `id, patient_id, created_by, summary_text, red_flags, lab_results, medications, version, is_latest, created_at`

func (r *SummaryRepository) GetByID(ctx context.Context, id string) (*domain.Summary, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+summaryColumns+`
FROM summaries
WHERE id = $1
`, id)

	summary, err := scanSummary(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrSummaryNotFound, "get summary", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan summary: %w", err)
	}
	return summary, nil
}

func (r *SummaryRepository) ListByPatient(ctx context.Context, patientID string, latestOnly bool) ([]domain.Summary, error) {
	query := `
SELECT ` + summaryColumns + `
FROM summaries
WHERE patient_id = $1
ORDER BY version DESC
`
	if latestOnly {
		query = `
SELECT ` + summaryColumns + `
FROM summaries
WHERE patient_id = $1 AND is_latest
`
	}

	rows, err := r.db.QueryContext(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var summaries []domain.Summary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, *summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return summaries, nil
}

func scanSummary(row rowScanner) (*domain.Summary, error) {
	var summary domain.Summary
	var redFlags, labResults, medications []byte

	err := row.Scan(
		&summary.ID, &summary.PatientID, &summary.CreatedBy, &summary.SummaryText,
		&redFlags, &labResults, &medications,
		&summary.Version, &summary.IsLatest, &summary.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(redFlags, &summary.RedFlags); err != nil {
		return nil, fmt.Errorf("unmarshal red flags: %w", err)
	}
	if err := json.Unmarshal(labResults, &summary.LabResults); err != nil {
		return nil, fmt.Errorf("unmarshal lab results: %w", err)
	}
	if err := json.Unmarshal(medications, &summary.Medications); err != nil {
		return nil, fmt.Errorf("unmarshal medications: %w", err)
	}
	return &summary, nil
}
