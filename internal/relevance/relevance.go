// Package relevance keeps exam questions that match a syllabus topic.
//
// A Scorer produces a question-by-topic similarity matrix. The Filter picks
// the best topic for each question and keeps the question only when that
// similarity reaches the threshold. Two scorers are provided: a lexical one
// backed by TF-IDF and a semantic one backed by an embedding service.
package relevance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Unknown is the topic assigned when no topics were supplied.
const Unknown = "Unknown"

// Record is a question retained by the filter together with its best topic.
type Record struct {
	Question   string  `json:"question"`
	Topic      string  `json:"topic"`
	Similarity float64 `json:"similarity"`
}

// Scorer produces one row per question and one column per topic, each cell
// a similarity in roughly [0, 1].
type Scorer interface {
	Score(ctx context.Context, questions, topics []string) ([][]float64, error)

	// Name is the strategy name, as used on the command line.
	Name() string

	// DefaultThreshold is used when the caller does not set one.
	DefaultThreshold() float64
}

// VectorizationError reports that a strategy could not turn text into
// comparable vectors.
type VectorizationError struct {
	Strategy string
	Err      error
}

func (e *VectorizationError) Error() string {
	return fmt.Sprintf("%s vectorization failed: %v", e.Strategy, e.Err)
}

func (e *VectorizationError) Unwrap() error {
	return e.Err
}

// IsVectorizationError reports whether err carries a VectorizationError.
func IsVectorizationError(err error) bool {
	var ve *VectorizationError
	return errors.As(err, &ve)
}

// UseDefaultThreshold makes a Filter apply its scorer's default threshold.
const UseDefaultThreshold = -1.0

// Filter assigns questions to topics. A negative Threshold means the
// scorer's default; 0 keeps every scored question.
type Filter struct {
	Scorer    Scorer
	Threshold float64
}

// NewFilter returns a Filter for scorer. A negative threshold, such as
// UseDefaultThreshold, selects the scorer's default.
func NewFilter(scorer Scorer, threshold float64) *Filter {
	return &Filter{Scorer: scorer, Threshold: threshold}
}

// EffectiveThreshold returns the threshold the filter applies.
func (f *Filter) EffectiveThreshold() float64 {
	if f.Threshold >= 0 {
		return f.Threshold
	}
	return f.Scorer.DefaultThreshold()
}

// Filter scores questions against topics and returns the retained records
// in question order.
//
// With no topics every question is kept with topic Unknown and similarity 0,
// and the scorer is not called.
func (f *Filter) Filter(ctx context.Context, questions, topics []string) ([]Record, error) {
	if len(questions) == 0 {
		return []Record{}, nil
	}
	if len(topics) == 0 {
		slog.Debug("No topics supplied, keeping every question", "questions", len(questions))
		return KeepAll(questions), nil
	}

	scores, err := f.Scorer.Score(ctx, questions, topics)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(questions) {
		return nil, &VectorizationError{
			Strategy: f.Scorer.Name(),
			Err:      fmt.Errorf("got %d score rows for %d questions", len(scores), len(questions)),
		}
	}

	threshold := f.EffectiveThreshold()
	records := make([]Record, 0, len(questions))
	for i, row := range scores {
		best, sim := argmax(row)
		if best < 0 || sim < threshold {
			slog.Debug("Question below threshold", "index", i, "similarity", sim)
			continue
		}
		records = append(records, Record{
			Question:   questions[i],
			Topic:      topics[best],
			Similarity: sim,
		})
	}

	slog.Info("Relevance filtering complete",
		"strategy", f.Scorer.Name(),
		"kept", len(records),
		"total", len(questions),
		"threshold", threshold)
	return records, nil
}

// KeepAll wraps every question as an Unknown record with similarity 0.
func KeepAll(questions []string) []Record {
	records := make([]Record, len(questions))
	for i, q := range questions {
		records[i] = Record{Question: q, Topic: Unknown}
	}
	return records
}

// argmax returns the index and value of the largest element. The first
// maximum wins ties. An empty row yields -1.
func argmax(row []float64) (int, float64) {
	best := -1
	var top float64
	for j, v := range row {
		if best < 0 || v > top {
			best, top = j, v
		}
	}
	return best, top
}

// New returns the Scorer for a strategy name.
func New(strategy string, opts ...EmbeddingOption) (Scorer, error) {
	switch strategy {
	case StrategyTFIDF, "":
		return NewLexicalScorer(), nil
	case StrategyEmbedding:
		s := &EmbeddingScorer{}
		for _, opt := range opts {
			opt(s)
		}
		if s.service == nil {
			return nil, errors.New("embedding strategy requires an embedding service")
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (want %s or %s)", strategy, StrategyTFIDF, StrategyEmbedding)
	}
}
