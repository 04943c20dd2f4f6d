package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF reads the text layer and falls back to OCR when it holds fewer
// than MinPDFChars non-space characters.
func (e *Extractor) extractPDF(ctx context.Context, path string) (Result, error) {
	text, pages, err := pdfText(path)
	if err != nil {
		slog.Debug("PDF text layer unreadable, trying OCR", "path", path, "error", err)
	} else if nonSpaceCount(text) >= e.cfg.MinPDFChars {
		return Result{Text: text, Method: MethodPDFText, Pages: pages}, nil
	} else {
		slog.Debug("PDF text layer sparse, trying OCR", "path", path, "chars", nonSpaceCount(text))
	}

	ocrText, ocrPages, ocrErr := e.pdfOCR(ctx, path)
	if ocrErr != nil {
		if err == nil {
			// keep the sparse text layer rather than failing
			return Result{Text: text, Method: MethodPDFText, Pages: pages}, nil
		}
		return Result{Method: MethodPDFOCR}, fmt.Errorf("failed to extract PDF %s: %w", path, ocrErr)
	}
	return Result{Text: ocrText, Method: MethodPDFOCR, Pages: ocrPages}, nil
}

// pdfText returns the embedded text of every page, one line per text row.
// Rows are grouped by baseline, so lines positioned with Td or Tm keep their
// breaks. Pages are separated by a newline.
func pdfText(path string) (text string, pages int, err error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	n := r.NumPage()
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", 0, fmt.Errorf("failed to read text of page %d: %w", i, err)
		}
		for _, row := range rows {
			for _, t := range row.Content {
				b.WriteString(t.S)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String(), n, nil
}

// pdfOCR renders pages to PNG with pdftoppm and OCRs each one.
func (e *Extractor) pdfOCR(ctx context.Context, path string) (string, int, error) {
	tmpDir, err := os.MkdirTemp("", "cram-pp-*")
	if err != nil {
		return "", 0, err
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", 0, fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(string(errb)))
	}

	// prefix-1.png, prefix-2.png, ...
	images, _ := filepath.Glob(prefix + "-*.png")
	sortPages(images)
	if e.cfg.MaxPages > 0 && len(images) > e.cfg.MaxPages {
		images = images[:e.cfg.MaxPages]
	}
	if len(images) == 0 {
		return "", 0, fmt.Errorf("pdftoppm produced no images")
	}

	var b strings.Builder
	for _, img := range images {
		txt, err := e.tesseractOCR(ctx, img)
		if err != nil {
			if ctx.Err() != nil {
				return "", 0, ctx.Err()
			}
			slog.Debug("Skipping page after OCR failure", "image", img, "error", err)
			continue
		}
		b.WriteString(txt)
		b.WriteString("\n")
	}
	return b.String(), len(images), nil
}

// sortPages orders page images numerically; pdftoppm zero-pads page numbers
// only for large documents.
func sortPages(images []string) {
	num := func(p string) int {
		base := strings.TrimSuffix(filepath.Base(p), ".png")
		n, _ := strconv.Atoi(base[strings.LastIndex(base, "-")+1:])
		return n
	}
	sort.SliceStable(images, func(i, j int) bool {
		return num(images[i]) < num(images[j])
	})
}
