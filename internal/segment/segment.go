// Package segment splits cleaned exam-paper text into candidate questions.
//
// Segmentation is line based. A line that starts with a question marker
// (Q.1, 2), (b), c.) opens a new question and every following line without a
// marker is treated as a continuation of it. Each assembled candidate must
// pass IsValid to be kept.
//
// The classification never looks ahead or backtracks, so a continuation line
// that happens to begin like a marker ("e.g. ...") starts a new question, and
// a real question whose marker was lost in extraction is merged into the
// previous one. Both are accepted limitations of prefix matching.
//
// Usage Example:
//
//	questions := segment.ExtractQuestions(rawText)
package segment

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/chriscorrea/cram/internal/clean"
)

const (
	// MinQuestionLength is the shortest candidate (in characters) kept
	MinQuestionLength = 15
	// MaxSymbolRatio is the largest tolerated share of characters that are
	// neither alphanumeric nor whitespace
	MaxSymbolRatio = 0.30
	// minLineLength drops stray fragments such as lone page numbers
	minLineLength = 3
)

// BoundaryPattern is a line-start marker that opens a new question.
type BoundaryPattern struct {
	Name    string
	Pattern string // matched at the start of a trimmed line
}

// BoundaryPatterns are tried in order; the first match wins.
var BoundaryPatterns = []BoundaryPattern{
	{Name: "q-number", Pattern: `Q\.?\s*\d+[.:)]`}, // Q.1, Q1., Q 1)
	{Name: "number", Pattern: `\d+[.:)]`},          // 1., 2)
	{Name: "paren-token", Pattern: `\([a-zA-Z0-9]+\)`},
	{Name: "letter", Pattern: `[a-zA-Z][.:)]`}, // a., b)
}

var boundaryRegexes = compileBoundaries(BoundaryPatterns)

func compileBoundaries(patterns []BoundaryPattern) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(`^(?:` + p.Pattern + `)`)
	}
	return res
}

// Stats describes one segmentation pass.
type Stats struct {
	Lines      int // lines that survived trimming and length filtering
	Candidates int // assembled candidate questions
	Rejected   int // candidates that failed IsValid
}

// Segmenter extracts questions and keeps the statistics of the last pass.
// A Segmenter is not safe for concurrent use; ExtractQuestions is.
type Segmenter struct {
	stats Stats
}

// Stats returns the statistics of the most recent Extract call
func (s *Segmenter) Stats() Stats {
	return s.stats
}

// ExtractQuestions cleans raw text and splits it into valid questions.
// Empty input yields an empty slice.
func ExtractQuestions(rawText string) []string {
	var s Segmenter
	return s.Extract(rawText)
}

// Extract cleans raw text and splits it into valid questions.
func (s *Segmenter) Extract(rawText string) []string {
	s.stats = Stats{}
	questions := []string{}
	if strings.TrimSpace(rawText) == "" {
		return questions
	}

	cleaned := clean.Clean(rawText)

	var current []string
	flush := func() {
		if len(current) == 0 {
			return
		}
		s.stats.Candidates++
		candidate := strings.TrimSpace(strings.Join(current, " "))
		if IsValid(candidate) {
			questions = append(questions, candidate)
		} else {
			s.stats.Rejected++
			slog.Debug("Rejected candidate question", "text", candidate)
		}
		current = nil
	}

	for _, line := range strings.Split(cleaned, "\n") {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) < minLineLength {
			continue
		}
		s.stats.Lines++

		if IsBoundary(line) {
			flush()
			current = []string{line}
			continue
		}
		// continuation of the current question (or orphan preamble text)
		current = append(current, line)
	}
	flush()

	slog.Debug("Segmentation completed", "lines", s.stats.Lines, "candidates", s.stats.Candidates,
		"rejected", s.stats.Rejected, "questions", len(questions))
	return questions
}

// IsBoundary reports whether a trimmed line starts a new question.
func IsBoundary(line string) bool {
	return BoundaryName(line) != ""
}

// BoundaryName returns the name of the first boundary pattern matching the line,
// or "" when the line is a continuation.
func BoundaryName(line string) string {
	for i, re := range boundaryRegexes {
		if re.MatchString(line) {
			return BoundaryPatterns[i].Name
		}
	}
	return ""
}

// IsValid reports whether text looks like a real question rather than
// extraction debris.
func IsValid(text string) bool {
	length := utf8.RuneCountInString(text)
	if length < MinQuestionLength {
		return false
	}

	symbols := 0
	hasVowel := false
	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			symbols++
		}
		switch unicode.ToLower(r) {
		case 'a', 'e', 'i', 'o', 'u':
			hasVowel = true
		}
	}

	if float64(symbols)/float64(length) > MaxSymbolRatio {
		return false
	}
	return hasVowel
}
