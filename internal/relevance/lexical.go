package relevance

import (
	"context"

	"github.com/chriscorrea/cram/internal/tfidf"
)

// Strategy names.
const (
	StrategyTFIDF     = "tfidf"
	StrategyEmbedding = "embedding"
)

// DefaultLexicalThreshold is the minimum TF-IDF cosine to keep a question.
const DefaultLexicalThreshold = 0.1

// LexicalScorer compares questions and topics by TF-IDF cosine similarity
// over a vocabulary fitted jointly on both.
type LexicalScorer struct {
	opts []tfidf.Option
}

// NewLexicalScorer returns a LexicalScorer; opts configure each fitted
// vectorizer.
func NewLexicalScorer(opts ...tfidf.Option) *LexicalScorer {
	return &LexicalScorer{opts: opts}
}

func (s *LexicalScorer) Name() string { return StrategyTFIDF }

func (s *LexicalScorer) DefaultThreshold() float64 { return DefaultLexicalThreshold }

// Score fits a fresh vectorizer per call, so a LexicalScorer may be shared.
func (s *LexicalScorer) Score(ctx context.Context, questions, topics []string) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs := make([]string, 0, len(questions)+len(topics))
	docs = append(docs, questions...)
	docs = append(docs, topics...)

	m, err := tfidf.NewVectorizer(s.opts...).FitTransform(docs)
	if err != nil {
		return nil, &VectorizationError{Strategy: StrategyTFIDF, Err: err}
	}

	qRows, tRows := m.Rows[:len(questions)], m.Rows[len(questions):]
	scores := make([][]float64, len(qRows))
	for i, q := range qRows {
		scores[i] = make([]float64, len(tRows))
		for j, t := range tRows {
			// rows are unit length, or zero
			scores[i][j] = tfidf.Cosine(q, t)
		}
	}
	return scores, nil
}
