package domain

import "time"

// PatientInfo is the demographic slice of a patient record the pipeline
// consumes. DateOfBirth is nil when the record has none on file.
type PatientInfo struct {
	ID          string     `json:"id"`
	MRN         string     `json:"mrn"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Gender      string     `json:"gender,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// SummaryRequest is the payload of a queued summarization job.
type SummaryRequest struct {
	PatientID   string `json:"patient_id"`
	RequestedBy string `json:"requested_by"`
}
