package domain

import "time"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type RedFlag struct {
	Category string   `json:"category"`
	Finding  string   `json:"finding"`
	Severity Severity `json:"severity"`
}

// LabResult keeps the value as text because source formatting varies
// (e.g. "9.2" vs "9,2" in scanned documents).
type LabResult struct {
	Value string `json:"value"`
	Unit  string `json:"unit"`
}

type Medication struct {
	Name   string `json:"name"`
	Dosage string `json:"dosage"`
}

// DosagePlaceholder marks medications whose dosage was not parsed from the
// source text.
const DosagePlaceholder = "See original document"

// Summary is a versioned clinical summary. Immutable after creation except
// for IsLatest, which the versioning commit flips on older rows.
type Summary struct {
	ID          string               `json:"id"`
	PatientID   string               `json:"patient_id"`
	CreatedBy   string               `json:"created_by"`
	SummaryText string               `json:"summary_text"`
	RedFlags    []RedFlag            `json:"red_flags"`
	LabResults  map[string]LabResult `json:"lab_results"`
	Medications []Medication         `json:"medications"`
	Version     int                  `json:"version"`
	IsLatest    bool                 `json:"is_latest"`
	CreatedAt   time.Time            `json:"created_at"`
}

// SummaryExtraction is the structured output of one summarization run before
// it is committed as a versioned Summary.
type SummaryExtraction struct {
	SummaryText string
	RedFlags    []RedFlag
	LabResults  map[string]LabResult
	Medications []Medication
}
