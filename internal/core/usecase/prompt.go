package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/medpipe/patient-summarizer/internal/core/domain"
)

// Severity markers the prompt asks the backend to use. The structured
// extractor scans the generated text for these exact markers.
const (
	CriticalMarker = "🔴"
	AbnormalMarker = "⚠️"
)

// DocumentSeparator joins per-document texts before prompting.
const DocumentSeparator = "\n\n--- Document Separator ---\n\n"

// maxPromptDocumentChars bounds how much document text enters the prompt.
// The cut is hard, not sentence-aware.
const maxPromptDocumentChars = 4000

func CombineDocumentTexts(texts []string) string {
	return strings.Join(texts, DocumentSeparator)
}

// BuildSummaryPrompt assembles the summarization prompt from patient
// demographics and concatenated document text. It never fails: missing
// demographic fields render as placeholders.
func BuildSummaryPrompt(patient domain.PatientInfo, documentsText string, now time.Time) string {
	mrn := patient.MRN
	if mrn == "" {
		mrn = "N/A"
	}
	gender := patient.Gender
	if gender == "" {
		gender = "N/A"
	}

	patientDetails := fmt.Sprintf(`Patient Information:
- MRN: %s
- Name: %s %s
- Age: %s years
- Gender: %s`,
		mrn, patient.FirstName, patient.LastName, ageString(patient.DateOfBirth, now), gender)

	return fmt.Sprintf(`%s

Patient Documents:
%s

Create a comprehensive clinical summary with the following sections:

## PATIENT DEMOGRAPHICS
Brief patient identification and demographics

## CHIEF COMPLAINT & SYMPTOMS
Main reason for visit and presenting symptoms

## RELEVANT MEDICAL HISTORY
- Past medical history
- Surgical history
- Family history (if relevant)
- Social history (if relevant)

## CURRENT MEDICATIONS
List current medications with dosages (if available)

## VITAL SIGNS & LABORATORY RESULTS
List all vital signs and lab values. Mark abnormal values with %[3]s and critical values with %[4]s.
For lab values, include reference ranges when possible.

## CLINICAL RED FLAGS
%[4]s List any critical findings, abnormal vital signs, or concerning results that require immediate attention.
Use %[4]s for critical issues and %[3]s for abnormal but non-critical findings.

## ASSESSMENT & RECOMMENDATIONS
Clinical assessment and recommended next steps

Use clear medical terminology. Be concise but thorough. Highlight abnormalities clearly.
`, patientDetails, truncateRunes(documentsText, maxPromptDocumentChars), AbnormalMarker, CriticalMarker)
}

// ageString computes age in completed calendar years, adjusting for whether
// the birth month/day has occurred yet this year. A nil date of birth renders
// as "Unknown" so prompt construction cannot fail on demographics.
func ageString(dob *time.Time, now time.Time) string {
	if dob == nil {
		return "Unknown"
	}
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	if years < 0 {
		return "Unknown"
	}
	return fmt.Sprintf("%d", years)
}

func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
