package tesseract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/medpipe/patient-summarizer/internal/core/domain"
)

type storageFake struct {
	data      map[string][]byte
	openCalls int
}

func (s *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if s.data == nil {
		s.data = map[string][]byte{}
	}
	s.data[key] = buf
	return nil
}

func (s *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.openCalls++
	buf, ok := s.data[key]
	if !ok {
		return nil, errors.New("missing object")
	}
	return io.NopCloser(bytes.NewReader(buf)), nil
}

type runnerStub struct {
	stdout []byte
	err    error
	calls  [][]string
}

func (r *runnerStub) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	return r.stdout, nil, r.err
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x + y) % 256)})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func testDocument(fileType, storagePath string) *domain.Document {
	return &domain.Document{
		ID:          "doc-1",
		PatientID:   "pat-1",
		FileName:    "scan." + fileType,
		FileType:    fileType,
		StoragePath: storagePath,
		Status:      domain.StatusProcessing,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestExtractRejectsUnsupportedFormatBeforeStorageRead(t *testing.T) {
	storage := &storageFake{}
	extractor := NewExtractor(Config{}, storage, nil)

	for _, fileType := range []string{"doc", "docx", "txt"} {
		_, err := extractor.Extract(context.Background(), testDocument(fileType, "pat-1/x"))
		if !domain.IsKind(err, domain.ErrUnsupportedFormat) {
			t.Fatalf("Extract(%q) error = %v, want ErrUnsupportedFormat", fileType, err)
		}
	}
	if storage.openCalls != 0 {
		t.Fatalf("storage read %d times for unsupported formats, want 0", storage.openCalls)
	}
}

func TestExtractImageRunsTesseractWithConfiguredModes(t *testing.T) {
	storage := &storageFake{}
	_ = storage.Save(context.Background(), "pat-1/scan.png", bytes.NewReader(pngBytes(t, 40, 40)))

	runner := &runnerStub{stdout: []byte("Hemoglobin: 9.2 g/dL\n")}
	extractor := NewExtractor(Config{}, storage, nil)
	extractor.runner = runner

	text, err := extractor.Extract(context.Background(), testDocument("png", "pat-1/scan.png"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "Hemoglobin: 9.2 g/dL" {
		t.Fatalf("text = %q", text)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("runner calls = %d, want 1", len(runner.calls))
	}
	call := strings.Join(runner.calls[0], " ")
	if !strings.Contains(call, "--oem 3") || !strings.Contains(call, "--psm 6") {
		t.Fatalf("tesseract invoked without engine/segmentation modes: %s", call)
	}
	if !strings.Contains(call, "-l eng") {
		t.Fatalf("tesseract invoked without language: %s", call)
	}
}

func TestExtractWrapsToolFailureAsExtractionFailed(t *testing.T) {
	storage := &storageFake{}
	_ = storage.Save(context.Background(), "pat-1/scan.jpg", bytes.NewReader(pngBytes(t, 20, 20)))

	runner := &runnerStub{err: errors.New("tesseract crashed")}
	extractor := NewExtractor(Config{}, storage, nil)
	extractor.runner = runner

	_, err := extractor.Extract(context.Background(), testDocument("jpg", "pat-1/scan.jpg"))
	if !domain.IsKind(err, domain.ErrExtractionFailed) {
		t.Fatalf("Extract() error = %v, want ErrExtractionFailed", err)
	}
}

func TestExtractFailsWhenObjectMissing(t *testing.T) {
	extractor := NewExtractor(Config{}, &storageFake{}, nil)

	_, err := extractor.Extract(context.Background(), testDocument("png", "pat-1/gone"))
	if !domain.IsKind(err, domain.ErrExtractionFailed) {
		t.Fatalf("Extract() error = %v, want ErrExtractionFailed", err)
	}
}

// pdfRunnerStub fabricates rasterized color pages when invoked as pdftoppm
// and, when invoked as tesseract, decodes its input so tests can assert the
// page went through preprocessing first.
type pdfRunnerStub struct {
	pages    int
	pageData []byte
	inputs   []ocrInput
}

type ocrInput struct {
	path  string
	width int
	color bool
}

func (r *pdfRunnerStub) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	if name == "pdftoppm" {
		prefix := args[len(args)-1]
		for i := 1; i <= r.pages; i++ {
			if err := os.WriteFile(fmt.Sprintf("%s-%d.png", prefix, i), r.pageData, 0o644); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	}
	// tesseract <page> stdout ...
	img, err := imageOpen(args[0])
	if err != nil {
		return nil, nil, fmt.Errorf("decode ocr input: %w", err)
	}
	r.inputs = append(r.inputs, ocrInput{
		path:  args[0],
		width: img.Bounds().Dx(),
		color: hasColor(img),
	})
	return []byte("text from " + filepath.Base(args[0])), nil, nil
}

func hasColor(img image.Image) bool {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r != g || g != b {
				return true
			}
		}
	}
	return false
}

func colorPNGBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestExtractScannedPDFJoinsPagesWithHeaders(t *testing.T) {
	storage := &storageFake{}
	_ = storage.Save(context.Background(), "pat-1/scan.pdf", strings.NewReader("not a real pdf"))

	runner := &pdfRunnerStub{pages: 2, pageData: colorPNGBytes(t, 400, 200)}
	extractor := NewExtractor(Config{PageParallelism: 1}, storage, nil)
	extractor.runner = runner

	text, err := extractor.Extract(context.Background(), testDocument("pdf", "pat-1/scan.pdf"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !strings.Contains(text, "=== Page 1 ===") || !strings.Contains(text, "=== Page 2 ===") {
		t.Fatalf("missing page headers: %q", text)
	}
	if strings.Index(text, "=== Page 1 ===") > strings.Index(text, "=== Page 2 ===") {
		t.Fatalf("pages out of order: %q", text)
	}
	if len(runner.inputs) != 2 {
		t.Fatalf("tesseract ran %d times, want 2", len(runner.inputs))
	}
	for _, in := range runner.inputs {
		if in.color {
			t.Fatalf("tesseract received a color page, want grayscale: %s", in.path)
		}
		if in.width < minOCRWidth {
			t.Fatalf("tesseract input width = %d, want at least %d: %s", in.width, minOCRWidth, in.path)
		}
	}
}

func imageOpen(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

func TestStretchContrastClampsAroundMidpoint(t *testing.T) {
	cases := []struct {
		in   uint8
		want uint8
	}{
		{0, 0},
		{64, 0},
		{128, 128},
		{160, 192},
		{192, 255},
		{255, 255},
	}
	for _, tc := range cases {
		if got := stretchContrast(tc.in); got != tc.want {
			t.Fatalf("stretchContrast(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestPreprocessUpscalesNarrowImages(t *testing.T) {
	tmp := t.TempDir() + "/out.png"
	if err := preprocessImage(bytes.NewReader(pngBytes(t, 200, 100)), tmp); err != nil {
		t.Fatalf("preprocessImage() error = %v", err)
	}

	f, err := imageOpen(tmp)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if f.Bounds().Dx() != minOCRWidth {
		t.Fatalf("output width = %d, want %d", f.Bounds().Dx(), minOCRWidth)
	}
	if f.Bounds().Dy() != 500 {
		t.Fatalf("output height = %d, want 500 (aspect preserved)", f.Bounds().Dy())
	}
}
