// Package tfidf provides TF-IDF (Term Frequency-Inverse Document Frequency) document vectors.
//
// A Vectorizer is fit on a whole collection at once so that every document
// is expressed over the same vocabulary. That is what makes a question vector
// comparable to a syllabus topic vector: fit both together, then slice the
// resulting matrix.
//
// The weighting follows the common smoothed formulation:
//   - TF: raw count of the term in the document
//   - IDF: ln((1 + n) / (1 + df)) + 1
//   - each row is L2 normalised, so cosine similarity is a dot product
//
// Usage Example:
//
//	v := tfidf.NewVectorizer()
//	m, err := v.FitTransform(append(questions, topics...))
//	sim := tfidf.Cosine(m.Rows[0], m.Rows[len(questions)])
//
// Tokenization keeps runs of two or more letters, digits or underscores and
// drops English stop words.
package tfidf

import (
	"errors"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/kljensen/snowball"
	"gonum.org/v1/gonum/floats"
)

// ErrEmptyVocabulary is returned when no document yields a usable term,
// for example when every token is a stop word.
var ErrEmptyVocabulary = errors.New("empty vocabulary; documents may contain only stop words")

// tokenRegex is compiled once at package initialization for efficient tokenization
var tokenRegex = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Matrix holds one dense TF-IDF row per fitted document.
type Matrix struct {
	Rows       [][]float64 // L2-normalised vectors, one per document
	Vocabulary []string    // term for each column, sorted
}

// Vectorizer builds TF-IDF vectors over a jointly fitted vocabulary.
//
// A Vectorizer keeps its fitted state (vocabulary and idf weights) from the
// last FitTransform. Fitting mutates it and is not safe for concurrent use;
// Transform on a fitted Vectorizer only reads and may be shared.
type Vectorizer struct {
	stopWords map[string]struct{}
	stem      bool

	vocabulary map[string]int
	terms      []string
	idf        []float64
}

// Option configures a Vectorizer.
type Option func(*Vectorizer)

// WithStemming reduces tokens to their English snowball stem, so that
// "parsing" and "parser" share a column.
func WithStemming(enabled bool) Option {
	return func(v *Vectorizer) {
		v.stem = enabled
	}
}

// WithStopWords replaces the default English stop word list. A nil or empty
// slice disables stop word filtering.
func WithStopWords(words []string) Option {
	return func(v *Vectorizer) {
		v.stopWords = make(map[string]struct{}, len(words))
		for _, w := range words {
			v.stopWords[strings.ToLower(w)] = struct{}{}
		}
	}
}

// NewVectorizer creates an unfitted Vectorizer with English stop words.
func NewVectorizer(opts ...Option) *Vectorizer {
	v := &Vectorizer{stopWords: englishStopWords}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// FitTransform learns the vocabulary and idf weights from documents and
// returns their vectors.
func (v *Vectorizer) FitTransform(documents []string) (Matrix, error) {
	tokenized := make([][]string, len(documents))
	docFreq := make(map[string]int)

	for i, doc := range documents {
		tokens := v.tokenize(doc)
		tokenized[i] = tokens

		// track document frequency for each unique term
		seen := make(map[string]bool)
		for _, token := range tokens {
			if !seen[token] {
				seen[token] = true
				docFreq[token]++
			}
		}
	}

	if len(docFreq) == 0 {
		slog.Debug("No terms left after tokenization", "documents", len(documents))
		return Matrix{}, ErrEmptyVocabulary
	}

	terms := make([]string, 0, len(docFreq))
	for term := range docFreq {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	v.terms = terms
	v.vocabulary = make(map[string]int, len(terms))
	v.idf = make([]float64, len(terms))
	n := float64(len(documents))
	for i, term := range terms {
		v.vocabulary[term] = i
		v.idf[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	slog.Debug("TF-IDF vocabulary fitted", "documents", len(documents), "terms", len(terms))

	rows := make([][]float64, len(documents))
	for i, tokens := range tokenized {
		rows[i] = v.vectorize(tokens)
	}
	return Matrix{Rows: rows, Vocabulary: terms}, nil
}

// Transform vectorizes documents with the vocabulary of the last fit.
// Terms unseen during fitting are ignored.
func (v *Vectorizer) Transform(documents []string) (Matrix, error) {
	if len(v.terms) == 0 {
		return Matrix{}, ErrEmptyVocabulary
	}
	rows := make([][]float64, len(documents))
	for i, doc := range documents {
		rows[i] = v.vectorize(v.tokenize(doc))
	}
	return Matrix{Rows: rows, Vocabulary: v.terms}, nil
}

// vectorize turns tokens into an L2-normalised tf*idf row.
func (v *Vectorizer) vectorize(tokens []string) []float64 {
	row := make([]float64, len(v.terms))
	for term, count := range calculateTermFrequency(tokens) {
		if col, ok := v.vocabulary[term]; ok {
			row[col] = count * v.idf[col]
		}
	}

	// zero rows stay zero; cosine treats them as dissimilar to everything
	if norm := floats.Norm(row, 2); norm > 0 {
		floats.Scale(1/norm, row)
	}
	return row
}

// tokenize lowercases text, keeps word runs of two or more characters and
// drops stop words. With stemming enabled each token is reduced to its stem.
func (v *Vectorizer) tokenize(text string) []string {
	if text == "" {
		return []string{}
	}

	matches := tokenRegex.FindAllString(strings.ToLower(text), -1)
	filtered := make([]string, 0, len(matches))
	for _, token := range matches {
		if _, stop := v.stopWords[token]; stop {
			continue
		}
		if v.stem {
			if stemmed, err := snowball.Stem(token, "english", false); err == nil && stemmed != "" {
				token = stemmed
			}
		}
		filtered = append(filtered, token)
	}
	return filtered
}

// calculateTermFrequency computes raw term counts for a slice of tokens.
func calculateTermFrequency(tokens []string) map[string]float64 {
	counts := make(map[string]float64)
	for _, token := range tokens {
		counts[token]++
	}
	return counts
}

// Cosine returns the cosine similarity of two equal-length vectors.
// Zero vectors have similarity 0 with everything.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

// TopTerms returns up to n vocabulary terms with the largest weight in row,
// highest first. Ties keep vocabulary order.
func (m Matrix) TopTerms(row []float64, n int) []string {
	idx := make([]int, 0, len(row))
	for i, w := range row {
		if w > 0 {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return row[idx[i]] > row[idx[j]]
	})
	if len(idx) > n {
		idx = idx[:n]
	}
	terms := make([]string, len(idx))
	for i, col := range idx {
		terms[i] = m.Vocabulary[col]
	}
	return terms
}
