package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPatientNotFound    = errors.New("patient not found")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrSummaryNotFound    = errors.New("summary not found")
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrExtractionFailed   = errors.New("extraction failed")
	ErrGenerationFailed   = errors.New("generation backend failed")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTemporary          = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
