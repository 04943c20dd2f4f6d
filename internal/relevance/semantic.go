package relevance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chriscorrea/cram/internal/counter"
	"github.com/chriscorrea/cram/internal/embedding"
	"github.com/chriscorrea/cram/internal/tfidf"
)

// DefaultEmbeddingThreshold is the minimum embedding cosine to keep a question.
const DefaultEmbeddingThreshold = 0.25

// EmbeddingScorer compares questions and topics by the cosine similarity of
// their embeddings.
type EmbeddingScorer struct {
	service   embedding.Service
	topics    embedding.Service // nil uses service
	truncator counter.Counter
	maxUnits  int
}

// EmbeddingOption configures an EmbeddingScorer.
type EmbeddingOption func(*EmbeddingScorer)

// WithService sets the embedding backend.
func WithService(svc embedding.Service) EmbeddingOption {
	return func(s *EmbeddingScorer) {
		s.service = svc
	}
}

// WithTopicService embeds topics with svc instead of the question backend.
// It is typically an embedding.Cached wrapping the same backend, since the
// topic list repeats for every paper.
func WithTopicService(svc embedding.Service) EmbeddingOption {
	return func(s *EmbeddingScorer) {
		s.topics = svc
	}
}

// WithTruncation cuts each input to limit units of c before embedding.
func WithTruncation(c counter.Counter, limit int) EmbeddingOption {
	return func(s *EmbeddingScorer) {
		s.truncator = c
		s.maxUnits = limit
	}
}

// NewEmbeddingScorer returns an EmbeddingScorer using svc.
func NewEmbeddingScorer(svc embedding.Service, opts ...EmbeddingOption) *EmbeddingScorer {
	s := &EmbeddingScorer{service: svc}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *EmbeddingScorer) Name() string { return StrategyEmbedding }

func (s *EmbeddingScorer) DefaultThreshold() float64 { return DefaultEmbeddingThreshold }

// Score embeds questions then topics and returns their cosine matrix.
func (s *EmbeddingScorer) Score(ctx context.Context, questions, topics []string) ([][]float64, error) {
	if len(questions) == 0 || len(topics) == 0 {
		return make([][]float64, len(questions)), nil
	}
	qVecs, err := s.embed(ctx, s.service, questions)
	if err != nil {
		return nil, &VectorizationError{Strategy: StrategyEmbedding, Err: fmt.Errorf("embed questions: %w", err)}
	}
	topicService := s.service
	if s.topics != nil {
		topicService = s.topics
	}
	tVecs, err := s.embed(ctx, topicService, topics)
	if err != nil {
		return nil, &VectorizationError{Strategy: StrategyEmbedding, Err: fmt.Errorf("embed topics: %w", err)}
	}

	dim := len(qVecs[0])
	for _, v := range append(append([][]float64{}, qVecs...), tVecs...) {
		if len(v) != dim {
			return nil, &VectorizationError{
				Strategy: StrategyEmbedding,
				Err:      fmt.Errorf("embedding dimension mismatch: %d vs %d", len(v), dim),
			}
		}
	}

	scores := make([][]float64, len(qVecs))
	for i, q := range qVecs {
		scores[i] = make([]float64, len(tVecs))
		for j, t := range tVecs {
			scores[i][j] = tfidf.Cosine(q, t)
		}
	}
	return scores, nil
}

func (s *EmbeddingScorer) embed(ctx context.Context, svc embedding.Service, texts []string) ([][]float64, error) {
	inputs := texts
	if s.truncator != nil && s.maxUnits > 0 {
		inputs = make([]string, len(texts))
		for i, t := range texts {
			inputs[i] = s.truncator.Truncate(t, s.maxUnits)
		}
	}

	slog.Debug("Embedding texts", "count", len(inputs), "model", svc.ModelName())
	raw, err := svc.EmbedBatch(ctx, inputs)
	if err != nil {
		return nil, err
	}
	if len(raw) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d texts", len(raw), len(texts))
	}

	vecs := make([][]float64, len(raw))
	for i, r := range raw {
		if len(r) == 0 {
			return nil, embedding.ErrEmptyEmbedding
		}
		vecs[i] = make([]float64, len(r))
		for k, x := range r {
			vecs[i][k] = float64(x)
		}
	}
	return vecs, nil
}
