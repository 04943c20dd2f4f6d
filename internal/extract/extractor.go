package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for file types with no extraction method.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Extraction methods reported in Result.Method.
const (
	MethodText     = "text"
	MethodHTML     = "html"
	MethodPDFText  = "pdf-text"
	MethodPDFOCR   = "pdf-ocr"
	MethodImageOCR = "image-ocr"
)

// Config holds OCR and HTML extraction settings.
type Config struct {
	Tesseract     string // tesseract binary
	Pdftoppm      string // pdftoppm binary
	TesseractLang string
	DPI           int
	MaxPages      int // 0 renders every page
	// MinPDFChars is the number of non-space characters below which the PDF
	// text layer is considered empty and OCR is attempted.
	MinPDFChars int
	// Selector limits HTML extraction to matching elements.
	Selector string
	// IncludeAll skips readability and converts the whole HTML page.
	IncludeAll bool
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		Tesseract:     "tesseract",
		Pdftoppm:      "pdftoppm",
		TesseractLang: "eng",
		DPI:           300,
		MinPDFChars:   50,
	}
}

// Result is the text extracted from one source.
type Result struct {
	Source string
	Text   string
	Method string
	Pages  int
}

// Extractor dispatches on file extension.
type Extractor struct {
	cfg    Config
	runner Runner
}

// New creates an Extractor. A nil runner uses os/exec.
func New(cfg Config, runner Runner) *Extractor {
	def := DefaultConfig()
	if cfg.Tesseract == "" {
		cfg.Tesseract = def.Tesseract
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = def.Pdftoppm
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = def.TesseractLang
	}
	if cfg.DPI <= 0 {
		cfg.DPI = def.DPI
	}
	if cfg.MinPDFChars <= 0 {
		cfg.MinPDFChars = def.MinPDFChars
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Extractor{cfg: cfg, runner: runner}
}

// Extract reads the file at path and returns its text.
func (e *Extractor) Extract(ctx context.Context, path string) (Result, error) {
	ext := strings.ToLower(filepath.Ext(path))
	slog.Debug("Extracting text", "path", path, "ext", ext)

	var (
		res Result
		err error
	)
	switch ext {
	case ".txt", ".md", ".markdown", "":
		res, err = e.extractText(path)
	case ".html", ".htm":
		res, err = e.extractHTML(path)
	case ".pdf":
		res, err = e.extractPDF(ctx, path)
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff":
		res, err = e.extractImage(ctx, path)
	default:
		return Result{Source: path}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	res.Source = path
	if err != nil {
		return res, err
	}

	slog.Debug("Text extracted", "path", path, "method", res.Method, "pages", res.Pages, "chars", len(res.Text))
	return res, nil
}

func (e *Extractor) extractText(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Result{Text: string(data), Method: MethodText, Pages: 1}, nil
}

func (e *Extractor) extractHTML(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	text, err := HTMLText(f, HTMLOptions{Selector: e.cfg.Selector, IncludeAll: e.cfg.IncludeAll})
	if err != nil {
		return Result{}, err
	}
	return Result{Text: text, Method: MethodHTML, Pages: 1}, nil
}

func (e *Extractor) extractImage(ctx context.Context, path string) (Result, error) {
	text, err := e.tesseractOCR(ctx, path)
	if err != nil {
		return Result{Method: MethodImageOCR}, err
	}
	return Result{Text: text, Method: MethodImageOCR, Pages: 1}, nil
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, error) {
	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, path, "stdout", "-l", e.cfg.TesseractLang)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(string(errb)))
	}
	return string(out), nil
}

// nonSpaceCount counts characters that are not whitespace.
func nonSpaceCount(s string) int {
	return len(strings.Join(strings.Fields(s), ""))
}
