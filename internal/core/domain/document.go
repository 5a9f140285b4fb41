package domain

import (
	"strings"
	"time"
)

type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// MaxUploadSize caps uploaded document payloads at 10 MiB.
const MaxUploadSize = 10 << 20

type Document struct {
	ID           string         `json:"id"`
	PatientID    string         `json:"patient_id"`
	UploadedBy   string         `json:"uploaded_by"`
	FileName     string         `json:"file_name"`
	FileType     string         `json:"file_type"`
	StoragePath  string         `json:"storage_path"`
	FileSize     int64          `json:"file_size"`
	OCRText      string         `json:"ocr_text,omitempty"`
	Status       DocumentStatus `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// FileKind selects the extraction strategy for a declared file type.
type FileKind int

const (
	KindUnknown FileKind = iota
	KindImage
	KindPDF
)

// uploadFileTypes is the declared-type allow-list enforced at upload time.
// doc/docx are accepted for storage but rejected later by KindForFileType,
// so such documents end in status failed rather than being refused upfront.
var uploadFileTypes = []string{"pdf", "jpg", "jpeg", "png", "tiff", "bmp", "doc", "docx"}

func IsAllowedFileType(fileType string) bool {
	fileType = strings.ToLower(fileType)
	for _, allowed := range uploadFileTypes {
		if fileType == allowed {
			return true
		}
	}
	return false
}

func AllowedFileTypes() []string {
	out := make([]string, len(uploadFileTypes))
	copy(out, uploadFileTypes)
	return out
}

// KindForFileType maps a declared file type (case-insensitive suffix, no dot)
// to an extraction kind. Types outside the extraction allow-list return
// ErrUnsupportedFormat.
func KindForFileType(fileType string) (FileKind, error) {
	switch strings.ToLower(fileType) {
	case "pdf":
		return KindPDF, nil
	case "jpg", "jpeg", "png", "tiff", "bmp":
		return KindImage, nil
	default:
		return KindUnknown, WrapError(ErrUnsupportedFormat, "derive file kind", errFileType(fileType))
	}
}

type errFileType string

func (e errFileType) Error() string { return "file type ." + string(e) }

// FileTypeOf derives the declared type from a filename: the lowercased
// suffix after the last dot, empty when the name has no extension.
func FileTypeOf(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}
