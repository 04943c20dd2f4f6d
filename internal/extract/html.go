// Package extract turns exam papers and syllabi into plain text.
//
// Plain text and Markdown are read as is. HTML pages are reduced to their
// main content and flattened to text lines. PDFs use their embedded text
// layer and fall back to OCR (pdftoppm + tesseract) when that layer is nearly
// empty; images are OCRed directly. External commands run through a Runner
// so tests can stub them.
package extract

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// noiseSelector matches elements that never hold paper content.
const noiseSelector = "script, style, noscript, nav, form, iframe, button, svg"

// HTMLOptions selects which part of a page is converted.
type HTMLOptions struct {
	Selector   string // CSS selector; takes precedence over IncludeAll
	IncludeAll bool   // convert the whole body without readability
	BaseURL    *url.URL
}

var (
	headingPrefix = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
	mdLink        = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	mdStrong      = regexp.MustCompile(`(\*\*|__)(\S(?:.*?\S)?)(\*\*|__)`)
	mdEmphasis    = regexp.MustCompile(`\*(\S(?:[^*]*\S)?)\*`)
	mdEscape      = regexp.MustCompile("\\\\([\\\\`*_{}\\[\\]()#+\\-.!|>])")
	blankRuns     = regexp.MustCompile(`\n{3,}`)
)

// HTMLText extracts the paper content of an HTML page as plain text lines.
//
// Readability picks the main content unless a selector or IncludeAll is
// given. Question-bank pages are often bare lists that readability rejects;
// when it returns no text the whole body is used instead. Markdown markup
// produced by the conversion is removed so that question markers such as
// "1." or "Q.2" start their line.
func HTMLText(r io.Reader, opts HTMLOptions) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find(noiseSelector).Remove()

	body := doc.Find("body")
	if strings.TrimSpace(body.Text()) == "" {
		return "", nil
	}

	var fragment string
	switch {
	case opts.Selector != "":
		fragment, err = selectFragment(doc, opts.Selector)
	case opts.IncludeAll:
		fragment, err = body.Html()
	default:
		fragment, err = mainContent(doc, opts.BaseURL)
	}
	if err != nil {
		return "", err
	}

	markdown, err := convert(fragment)
	if err != nil {
		return "", err
	}
	return flatten(markdown), nil
}

func selectFragment(doc *goquery.Document, selector string) (string, error) {
	selection := doc.Find(selector)
	if selection.Length() == 0 {
		return "", fmt.Errorf("no elements found matching selector: %s", selector)
	}

	parts := make([]string, 0, selection.Length())
	selection.Each(func(_ int, s *goquery.Selection) {
		if html, err := goquery.OuterHtml(s); err == nil {
			parts = append(parts, html)
		}
	})
	if len(parts) == 0 {
		return "", fmt.Errorf("failed to extract HTML from selection %s", selector)
	}
	return strings.Join(parts, "\n"), nil
}

func mainContent(doc *goquery.Document, baseURL *url.URL) (string, error) {
	if baseURL == nil {
		baseURL = &url.URL{}
	}
	page, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(page), baseURL)
	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		return doc.Find("body").Html()
	}
	return article.Content, nil
}

func convert(fragment string) (string, error) {
	converter := md.NewConverter("", true, &md.Options{EmDelimiter: "*", StrongDelimiter: "**"})
	out, err := converter.ConvertString(fragment)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML: %w", err)
	}
	return out, nil
}

// flatten strips Markdown markup, keeping list numbering.
func flatten(markdown string) string {
	text := mdLink.ReplaceAllString(markdown, "$1")
	text = mdStrong.ReplaceAllString(text, "$2")
	text = mdEmphasis.ReplaceAllString(text, "$1")
	text = headingPrefix.ReplaceAllString(text, "")
	text = mdEscape.ReplaceAllString(text, "$1")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text = strings.Join(lines, "\n")
	return strings.TrimSpace(blankRuns.ReplaceAllString(text, "\n\n"))
}
