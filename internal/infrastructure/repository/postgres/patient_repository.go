package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/medpipe/patient-summarizer/internal/core/domain"
)

type PatientRepository struct {
	db *sql.DB
}

func NewPatientRepository(db *sql.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

func (r *PatientRepository) EnsureSchema(ctx context.Context) error {
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
CREATE TABLE IF NOT EXISTS patients (
	id TEXT PRIMARY KEY,
	mrn TEXT NOT NULL UNIQUE,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	date_of_birth DATE,
	gender TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *PatientRepository) Create(ctx context.Context, patient *domain.PatientInfo) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO patients (id, mrn, first_name, last_name, date_of_birth, gender, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		patient.ID, patient.MRN, patient.FirstName, patient.LastName,
		patient.DateOfBirth, patient.Gender, patient.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *PatientRepository) GetByID(ctx context.Context, id string) (*domain.PatientInfo, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, mrn, first_name, last_name, date_of_birth, gender, created_at
FROM patients
WHERE id = $1
`, id)

	var patient domain.PatientInfo
	var dob sql.NullTime
	err := row.Scan(
		&patient.ID, &patient.MRN, &patient.FirstName, &patient.LastName,
		&dob, &patient.Gender, &patient.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrPatientNotFound, "get patient", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	if dob.Valid {
		t := dob.Time
		patient.DateOfBirth = &t
	}
	return &patient, nil
}
