package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/chriscorrea/cram/internal/segment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRunner answers tesseract with canned text per image and fakes
// pdftoppm by writing empty page images.
type stubRunner struct {
	pages     int
	ocrText   string
	ocrErr    error
	renderErr error
	calls     []string
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.calls = append(s.calls, name+" "+strings.Join(args, " "))
	switch name {
	case "pdftoppm":
		if s.renderErr != nil {
			return nil, []byte("render failed"), s.renderErr
		}
		prefix := args[len(args)-1]
		for i := 1; i <= s.pages; i++ {
			if err := os.WriteFile(prefix+"-"+strconv.Itoa(i)+".png", nil, 0o600); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	case "tesseract":
		if s.ocrErr != nil {
			return nil, []byte("ocr failed"), s.ocrErr
		}
		return []byte(s.ocrText + " " + filepath.Base(args[0])), nil, nil
	}
	return nil, nil, errors.New("unexpected command " + name)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestExtractText(t *testing.T) {
	path := writeFile(t, "paper.txt", "Q.1 What is a compiler?")

	res, err := New(Config{}, &stubRunner{}).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Q.1 What is a compiler?", res.Text)
	assert.Equal(t, MethodText, res.Method)
	assert.Equal(t, path, res.Source)
}

func TestExtractHTML(t *testing.T) {
	path := writeFile(t, "paper.html", `<html><body><div class="q"><p>Q.1 Define a token.</p></div></body></html>`)

	res, err := New(Config{Selector: ".q"}, nil).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, res.Text, "Q.1 Define a token.")
	assert.Equal(t, MethodHTML, res.Method)
}

func TestExtractImage(t *testing.T) {
	runner := &stubRunner{ocrText: "Q.1 Explain parsing"}
	path := writeFile(t, "scan.PNG", "")

	res, err := New(Config{TesseractLang: "eng+hin"}, runner).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, MethodImageOCR, res.Method)
	assert.Contains(t, res.Text, "Q.1 Explain parsing")
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "tesseract "+path+" stdout -l eng+hin", runner.calls[0])
}

func TestExtractImageFailure(t *testing.T) {
	runner := &stubRunner{ocrErr: errors.New("exit status 1")}
	path := writeFile(t, "scan.jpg", "")

	_, err := New(Config{}, runner).Extract(context.Background(), path)
	assert.ErrorContains(t, err, "tesseract")
}

func TestExtractUnsupported(t *testing.T) {
	path := writeFile(t, "paper.docx", "")
	_, err := New(Config{}, nil).Extract(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExtractMissingFile(t *testing.T) {
	_, err := New(Config{}, nil).Extract(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

// writePDF builds a PDF with one Helvetica page per entry of pages. Lines
// of a page are placed with relative Td moves, not T*.
func writePDF(t *testing.T, pages ...[]string) string {
	t.Helper()
	escape := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)

	fontID := 3 + 2*len(pages)
	kids := make([]string, len(pages))
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"", // page tree, filled below
	}
	for i, lines := range pages {
		pageID, contentID := 3+2*i, 4+2*i
		kids[i] = fmt.Sprintf("%d 0 R", pageID)

		var content strings.Builder
		content.WriteString("BT /F1 12 Tf 72 720 Td\n")
		for j, line := range lines {
			if j > 0 {
				content.WriteString("0 -20 Td\n")
			}
			fmt.Fprintf(&content, "(%s) Tj\n", escape.Replace(line))
		}
		content.WriteString("ET")

		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>", fontID, contentID),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()),
		)
	}
	objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return writeFile(t, "paper.pdf", buf.String())
}

func TestExtractPDFTextKeepsLines(t *testing.T) {
	first := []string{
		"Q.1 What is a compiler? Explain its phases in detail.",
		"Q.2 Define lexical analysis and describe the role of tokens.",
		"Q.3 Construct an LR parsing table for the given grammar.",
	}
	second := []string{"Q.4 Explain code optimization techniques with examples."}
	path := writePDF(t, first, second)
	runner := &stubRunner{}

	res, err := New(Config{}, runner).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, MethodPDFText, res.Method)
	assert.Equal(t, 2, res.Pages)
	assert.Empty(t, runner.calls, "text layer is dense enough, OCR must not run")

	want := append(append([]string{}, first...), second...)
	assert.Equal(t, want, segment.ExtractQuestions(res.Text))
}

func TestExtractPDFFallsBackToOCR(t *testing.T) {
	// not a real PDF, so the text layer fails and OCR takes over
	path := writeFile(t, "scanned.pdf", "garbage")
	runner := &stubRunner{pages: 3, ocrText: "Q.1 What is a compiler?"}

	res, err := New(Config{DPI: 150}, runner).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, MethodPDFOCR, res.Method)
	assert.Equal(t, 3, res.Pages)
	assert.Contains(t, runner.calls[0], "pdftoppm -r 150 -png "+path)

	// pages are OCRed in order
	first := strings.Index(res.Text, "page-1.png")
	last := strings.Index(res.Text, "page-3.png")
	assert.True(t, first >= 0 && last > first, "pages out of order: %q", res.Text)
}

func TestExtractPDFMaxPages(t *testing.T) {
	path := writeFile(t, "scanned.pdf", "garbage")
	runner := &stubRunner{pages: 4, ocrText: "text"}

	res, err := New(Config{MaxPages: 2}, runner).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pages)
	assert.Len(t, runner.calls, 3) // one render, two OCR
}

func TestExtractPDFRenderFailure(t *testing.T) {
	path := writeFile(t, "scanned.pdf", "garbage")
	runner := &stubRunner{renderErr: errors.New("exit status 99")}

	_, err := New(Config{}, runner).Extract(context.Background(), path)
	assert.ErrorContains(t, err, "pdftoppm")
}

func TestSortPages(t *testing.T) {
	images := []string{"/t/page-10.png", "/t/page-2.png", "/t/page-1.png"}
	sortPages(images)
	assert.Equal(t, []string{"/t/page-1.png", "/t/page-2.png", "/t/page-10.png"}, images)
}

func TestNewDefaults(t *testing.T) {
	e := New(Config{}, nil)
	assert.Equal(t, DefaultConfig().Tesseract, e.cfg.Tesseract)
	assert.Equal(t, 300, e.cfg.DPI)
	assert.Equal(t, 50, e.cfg.MinPDFChars)
	assert.IsType(t, ExecRunner{}, e.runner)
}

func TestNonSpaceCount(t *testing.T) {
	assert.Equal(t, 0, nonSpaceCount(" \n\t "))
	assert.Equal(t, 6, nonSpaceCount(" ab c\nd ef "))
}
