package tesseract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/medpipe/patient-summarizer/internal/core/domain"
	"github.com/medpipe/patient-summarizer/internal/core/ports"
)

type Config struct {
	Tesseract string // binary name or absolute path; if empty -> "tesseract"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"

	Lang string // default "eng"
	DPI  int    // rasterization DPI for scanned PDFs, default 300
	PSM  int    // page segmentation mode, default 6 (uniform block of text)
	OEM  int    // engine mode, default 3

	PageParallelism int // concurrent page OCR workers, default 4
}

// Extractor pulls documents out of object storage and runs them through the
// OCR toolchain. Images are preprocessed and fed to tesseract directly; PDFs
// try the embedded text layer first and fall back to rasterization.
type Extractor struct {
	cfg     Config
	storage ports.ObjectStorage
	runner  Runner
	logger  *slog.Logger
}

func NewExtractor(cfg Config, storage ports.ObjectStorage, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.PSM <= 0 {
		cfg.PSM = 6
	}
	if cfg.OEM <= 0 {
		cfg.OEM = 3
	}
	if cfg.PageParallelism <= 0 {
		cfg.PageParallelism = 4
	}
	return &Extractor{cfg: cfg, storage: storage, runner: execRunner{}, logger: logger}
}

// Extract returns the document's text. Unsupported formats are rejected
// before any bytes are read from storage.
func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	kind, err := domain.KindForFileType(doc.FileType)
	if err != nil {
		return "", err
	}

	start := time.Now()
	body, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", domain.WrapError(domain.ErrExtractionFailed, "open stored document", err)
	}
	defer body.Close()

	var text string
	switch kind {
	case domain.KindImage:
		text, err = e.extractImage(ctx, body)
	case domain.KindPDF:
		text, err = e.extractPDF(ctx, body)
	default:
		return "", domain.WrapError(domain.ErrUnsupportedFormat, "extract text",
			fmt.Errorf("no extraction strategy for kind %q", kind))
	}
	if err != nil {
		return "", domain.WrapError(domain.ErrExtractionFailed, "extract text", err)
	}

	e.logger.Debug("extraction finished",
		"document_id", doc.ID,
		"file_type", doc.FileType,
		"chars", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return strings.TrimSpace(text), nil
}

func (e *Extractor) extractImage(ctx context.Context, body io.Reader) (string, error) {
	tmpDir, err := os.MkdirTemp("", "psum-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	imgPath := filepath.Join(tmpDir, "input.png")
	if err := preprocessImage(body, imgPath); err != nil {
		return "", err
	}
	return e.tesseractOCR(ctx, imgPath)
}

// tesseractOCR runs tesseract on the given image file and returns stdout.
func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, error) {
	args := []string{
		path, "stdout",
		"-l", e.cfg.Lang,
		"--oem", strconv.Itoa(e.cfg.OEM),
		"--psm", strconv.Itoa(e.cfg.PSM),
	}
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w (stderr: %s)", err, truncate(string(errb), 1<<10))
	}
	return string(out), nil
}
