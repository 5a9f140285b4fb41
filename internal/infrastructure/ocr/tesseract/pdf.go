package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"
)

// minTextLayerChars is the cutoff below which an embedded PDF text layer is
// treated as absent (scanned PDFs often carry a few stray glyphs).
const minTextLayerChars = 32

func (e *Extractor) extractPDF(ctx context.Context, body io.Reader) (string, error) {
	tmpDir, err := os.MkdirTemp("", "psum-pdf-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "input.pdf")
	if err := spool(body, pdfPath); err != nil {
		return "", err
	}

	if text, ok := e.textLayer(pdfPath); ok {
		return text, nil
	}
	return e.rasterizeAndOCR(ctx, tmpDir, pdfPath)
}

// textLayer reads the embedded text layer. Scanned documents return little
// or nothing here and fall through to rasterization.
func (e *Extractor) textLayer(path string) (string, bool) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		e.logger.Debug("pdf text layer unavailable", "error", err)
		return "", false
	}
	defer f.Close()

	content, err := reader.GetPlainText()
	if err != nil {
		e.logger.Debug("pdf text layer unreadable", "error", err)
		return "", false
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, content); err != nil {
		return "", false
	}

	text := strings.TrimSpace(buf.String())
	if len(text) < minTextLayerChars {
		return "", false
	}
	return text, true
}

func (e *Extractor) rasterizeAndOCR(ctx context.Context, tmpDir, pdfPath string) (string, error) {
	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm,
		"-r", strconv.Itoa(e.cfg.DPI), "-png", pdfPath, prefix)
	if err != nil {
		return "", fmt.Errorf("pdftoppm: %w (stderr: %s)", err, truncate(string(errb), 1<<10))
	}

	pages, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(pages)
	if len(pages) == 0 {
		return "", fmt.Errorf("pdftoppm produced no pages")
	}

	results := make([]string, len(pages))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.cfg.PageParallelism)
	for i, page := range pages {
		group.Go(func() error {
			text, err := e.ocrRasterizedPage(groupCtx, page)
			if err != nil {
				return fmt.Errorf("page %d: %w", i+1, err)
			}
			results[i] = text
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return "", err
	}

	sections := make([]string, 0, len(results))
	for i, text := range results {
		sections = append(sections, fmt.Sprintf("=== Page %d ===\n%s", i+1, strings.TrimSpace(text)))
	}
	return strings.Join(sections, "\n\n"), nil
}

// ocrRasterizedPage runs one rasterized page through the same preprocessing
// as direct image uploads before handing it to tesseract. pdftoppm emits
// color pages at whatever resolution the source dictates, so the grayscale,
// contrast, and upscale passes apply here too.
func (e *Extractor) ocrRasterizedPage(ctx context.Context, pagePath string) (string, error) {
	f, err := os.Open(pagePath)
	if err != nil {
		return "", fmt.Errorf("open rasterized page: %w", err)
	}
	defer f.Close()

	prePath := filepath.Join(filepath.Dir(pagePath), "prep-"+filepath.Base(pagePath))
	if err := preprocessImage(f, prePath); err != nil {
		return "", err
	}
	return e.tesseractOCR(ctx, prePath)
}

func spool(src io.Reader, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create spool file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, src); err != nil {
		return fmt.Errorf("spool document: %w", err)
	}
	return nil
}
