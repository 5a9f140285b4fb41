// Structured extraction over generated summary text and source document text.
//
// The red-flag pass is deliberately coupled to BuildSummaryPrompt: the prompt
// requests a "## CLINICAL RED FLAGS" section, and abnormal-marker lines are
// only flagged when the literal "RED FLAG" occurs within the 200 characters
// preceding the line. Changing the prompt's section headings changes what
// this pass extracts.
package usecase

import (
	"regexp"
	"strings"

	"github.com/medpipe/patient-summarizer/internal/core/domain"
)

const redFlagContextWindow = 200

// ExtractStructured runs the three extraction passes and assembles the run
// result. Every pass tolerates absence: a summary without markers, labs or a
// medication section yields empty structures, never an error.
func ExtractStructured(summaryText, combinedDocumentText string) domain.SummaryExtraction {
	return domain.SummaryExtraction{
		SummaryText: summaryText,
		RedFlags:    ExtractRedFlags(summaryText),
		LabResults:  ExtractLabResults(combinedDocumentText),
		Medications: ExtractMedications(combinedDocumentText),
	}
}

// ExtractRedFlags scans the generated summary line by line. Critical-marker
// lines always yield a critical flag. Abnormal-marker lines are included only
// when "RED FLAG" (case-insensitive) appears within the preceding 200
// characters, which keeps abnormal mentions outside the red-flag section out.
func ExtractRedFlags(summaryText string) []domain.RedFlag {
	flags := []domain.RedFlag{}

	offset := 0
	for _, line := range strings.Split(summaryText, "\n") {
		lineStart := offset
		offset += len(line) + 1

		switch {
		case strings.Contains(line, CriticalMarker):
			flags = append(flags, domain.RedFlag{
				Category: "critical",
				Finding:  strings.TrimSpace(strings.ReplaceAll(line, CriticalMarker, "")),
				Severity: domain.SeverityCritical,
			})
		case strings.Contains(line, AbnormalMarker):
			windowStart := lineStart - redFlagContextWindow
			if windowStart < 0 {
				windowStart = 0
			}
			window := strings.ToUpper(summaryText[windowStart:lineStart])
			if strings.Contains(window, "RED FLAG") {
				flags = append(flags, domain.RedFlag{
					Category: "abnormal",
					Finding:  strings.TrimSpace(strings.ReplaceAll(line, AbnormalMarker, "")),
					Severity: domain.SeverityMedium,
				})
			}
		}
	}

	return flags
}

// labPattern definitions keep a fixed order so repeated runs over the same
// text produce identical results.
var labPatterns = []struct {
	name        string
	defaultUnit string
	re          *regexp.Regexp
}{
	{"hemoglobin", "g/dL", regexp.MustCompile(`(?:hemoglobin|hgb|hb)[:=\s]*(\d+\.?\d*)\s*(?:g/dl|mg/dl)?`)},
	{"glucose", "mg/dL", regexp.MustCompile(`(?:glucose|blood sugar)[:=\s]*(\d+\.?\d*)\s*(?:mg/dl)?`)},
	{"creatinine", "mg/dL", regexp.MustCompile(`(?:creatinine|cr)[:=\s]*(\d+\.?\d*)\s*(?:mg/dl)?`)},
	{"wbc", "K/μL", regexp.MustCompile(`(?:wbc|white blood cell)[:=\s]*(\d+\.?\d*)\s*(?:k/ul)?`)},
}

// ExtractLabResults matches a fixed set of lab patterns against the lowercased
// text, keeping the first numeric match per test name. Units default to the
// per-test canonical unit since scanned sources rarely carry them cleanly.
func ExtractLabResults(text string) map[string]domain.LabResult {
	results := map[string]domain.LabResult{}
	lower := strings.ToLower(text)

	for _, p := range labPatterns {
		match := p.re.FindStringSubmatch(lower)
		if match == nil {
			continue
		}
		results[p.name] = domain.LabResult{
			Value: match[1],
			Unit:  p.defaultUnit,
		}
	}

	return results
}

var (
	medicationSectionRe = regexp.MustCompile(`(?i)(?:medications?|drugs?)[:：]\s*([^\n]+(?:\n[^\n]+)*)`)
	medicationSplitRe   = regexp.MustCompile(`[,;\n]+`)
)

const maxMedications = 10

// ExtractMedications locates a single labeled medication section and splits
// its content into entries. Only the first ten split fragments are considered;
// short fragments among them are dropped, not replaced by later ones.
// Line-level dosage parsing is not attempted; each entry carries the dosage
// placeholder.
func ExtractMedications(text string) []domain.Medication {
	medications := []domain.Medication{}

	match := medicationSectionRe.FindStringSubmatch(text)
	if match == nil {
		return medications
	}

	fragments := medicationSplitRe.Split(match[1], -1)
	if len(fragments) > maxMedications {
		fragments = fragments[:maxMedications]
	}
	for _, fragment := range fragments {
		fragment = strings.TrimSpace(fragment)
		if len(fragment) <= 3 {
			continue
		}
		medications = append(medications, domain.Medication{
			Name:   fragment,
			Dosage: domain.DosagePlaceholder,
		})
	}

	return medications
}
