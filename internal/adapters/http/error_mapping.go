package httpadapter

import (
	"net/http"

	"github.com/medpipe/patient-summarizer/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrUnsupportedFormat),
		domain.IsKind(err, domain.ErrPreconditionFailed):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrPatientNotFound),
		domain.IsKind(err, domain.ErrDocumentNotFound),
		domain.IsKind(err, domain.ErrSummaryNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
