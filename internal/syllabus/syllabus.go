// Package syllabus turns syllabus text into a list of topics.
//
// The heuristic is line based: a topic is any line of moderate length once
// its leading bullet or numbering is removed. Administrative lines can be
// dropped with a stemmed keyword ratio, and long lines can be broken into
// sentences before the length check.
package syllabus

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jdkato/prose/v2"
)

// Topic length bounds in runes, after bullet stripping.
const (
	MinTopicLength = 5
	MaxTopicLength = 99
)

var bulletRegex = regexp.MustCompile(`^[\d\.\-•●]+\s*`)

// Parser extracts topics from syllabus text.
type Parser struct {
	// DropBoilerplate removes lines that are mostly course administration.
	DropBoilerplate bool
	// SplitSentences breaks lines longer than MaxTopicLength into sentences.
	SplitSentences bool
}

// NewParser returns a Parser with sentence splitting enabled. Boilerplate
// removal is opt-in.
func NewParser() *Parser {
	return &Parser{SplitSentences: true}
}

// Parse returns the topics found in text in document order, without
// duplicates. Empty text yields an empty slice.
func (p *Parser) Parse(text string) []string {
	topics := []string{}
	seen := make(map[string]bool)

	add := func(candidate string) {
		topic, ok := p.topic(candidate)
		if !ok || seen[topic] {
			return
		}
		seen[topic] = true
		topics = append(topics, topic)
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if p.SplitSentences && utf8.RuneCountInString(line) > MaxTopicLength {
			for _, s := range sentences(line) {
				add(s)
			}
			continue
		}
		add(line)
	}

	slog.Debug("Syllabus parsed", "topics", len(topics))
	return topics
}

// topic strips bullets from candidate and checks it qualifies.
func (p *Parser) topic(candidate string) (string, bool) {
	cleaned := strings.TrimSpace(bulletRegex.ReplaceAllString(strings.TrimSpace(candidate), ""))
	n := utf8.RuneCountInString(cleaned)
	if n < MinTopicLength || n > MaxTopicLength {
		return "", false
	}
	if p.DropBoilerplate && IsBoilerplate(cleaned) {
		slog.Debug("Dropping boilerplate syllabus line", "line", cleaned)
		return "", false
	}
	return cleaned, true
}

// sentences splits text with prose's segmenter. On failure the text is
// returned whole.
func sentences(text string) []string {
	doc, err := prose.NewDocument(text, prose.WithTagging(false), prose.WithExtraction(false))
	if err != nil {
		slog.Debug("Sentence segmentation failed", "error", err)
		return []string{text}
	}
	var out []string
	for _, s := range doc.Sentences() {
		out = append(out, s.Text)
	}
	return out
}
