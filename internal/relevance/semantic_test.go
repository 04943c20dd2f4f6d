package relevance

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/chriscorrea/cram/internal/counter"
	"github.com/chriscorrea/cram/internal/embedding"
)

// fakeService maps texts to vectors; unknown texts get the zero vector
// of the configured dimension.
type fakeService struct {
	vectors map[string][]float32
	dim     int
	err     error
	seen    []string
}

func (f *fakeService) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		f.seen = append(f.seen, t)
		if v, ok := f.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = make([]float32, f.dim)
		}
	}
	return out, nil
}

func (f *fakeService) ModelName() string          { return "fake" }
func (f *fakeService) Ping(context.Context) error { return nil }
func (f *fakeService) Close() error               { return nil }

var _ embedding.Service = (*fakeService)(nil)

func TestEmbeddingScorer(t *testing.T) {
	svc := &fakeService{dim: 2, vectors: map[string][]float32{
		"q lexing":  {1, 0},
		"q parsing": {0.6, 0.8},
		"Lexing":    {1, 0},
		"Parsing":   {0, 1},
	}}

	scores, err := NewEmbeddingScorer(svc).Score(context.Background(), []string{"q lexing", "q parsing"}, []string{"Lexing", "Parsing"})
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}

	want := [][]float64{{1, 0}, {0.6, 0.8}}
	for i := range want {
		for j := range want[i] {
			if math.Abs(scores[i][j]-want[i][j]) > 1e-6 {
				t.Errorf("scores[%d][%d] = %f, want %f", i, j, scores[i][j], want[i][j])
			}
		}
	}
}

func TestEmbeddingScorerErrors(t *testing.T) {
	tests := []struct {
		name string
		svc  *fakeService
	}{
		{"service failure", &fakeService{err: errors.New("connection refused")}},
		{"empty vector", &fakeService{dim: 0}},
		{"dimension mismatch", &fakeService{dim: 2, vectors: map[string][]float32{"T": {1, 0, 0}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEmbeddingScorer(tt.svc).Score(context.Background(), []string{"q"}, []string{"T"})
			var ve *VectorizationError
			if !errors.As(err, &ve) {
				t.Fatalf("Score() error = %v, want VectorizationError", err)
			}
			if ve.Strategy != StrategyEmbedding {
				t.Errorf("Strategy = %q, want %q", ve.Strategy, StrategyEmbedding)
			}
		})
	}
}

func TestEmbeddingScorerTruncation(t *testing.T) {
	svc := &fakeService{dim: 1}
	scorer := NewEmbeddingScorer(svc, WithTruncation(counter.NewRuneCounter(), 5))

	if _, err := scorer.Score(context.Background(), []string{"abcdefghij"}, []string{"xyz"}); err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	for _, s := range svc.seen {
		if len(s) > 5 {
			t.Errorf("input %q was not truncated", s)
		}
	}
	if !strings.HasPrefix("abcdefghij", svc.seen[0]) {
		t.Errorf("truncated input %q is not a prefix", svc.seen[0])
	}
}

func TestEmbeddingFilterDefaultThreshold(t *testing.T) {
	svc := &fakeService{dim: 2, vectors: map[string][]float32{
		"close": {1, 0.1},
		"far":   {0.2, 1},
		"Topic": {1, 0},
	}}
	f := NewFilter(NewEmbeddingScorer(svc), UseDefaultThreshold)
	if got := f.EffectiveThreshold(); got != DefaultEmbeddingThreshold {
		t.Fatalf("EffectiveThreshold() = %f, want %f", got, DefaultEmbeddingThreshold)
	}

	records, err := f.Filter(context.Background(), []string{"close", "far"}, []string{"Topic"})
	if err != nil {
		t.Fatalf("Filter() error: %v", err)
	}
	if len(records) != 1 || records[0].Question != "close" {
		t.Errorf("Filter() = %+v, want only close", records)
	}
}

func TestEmbeddingScorerTopicService(t *testing.T) {
	questions := &fakeService{dim: 2, vectors: map[string][]float32{"q": {1, 0}}}
	topics := &fakeService{dim: 2, vectors: map[string][]float32{"T": {1, 0}}}

	scorer := NewEmbeddingScorer(questions, WithTopicService(topics))
	scores, err := scorer.Score(context.Background(), []string{"q"}, []string{"T"})
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if math.Abs(scores[0][0]-1) > 1e-6 {
		t.Errorf("scores[0][0] = %f, want 1", scores[0][0])
	}
	if len(questions.seen) != 1 || questions.seen[0] != "q" {
		t.Errorf("question backend saw %q, want only the question", questions.seen)
	}
	if len(topics.seen) != 1 || topics.seen[0] != "T" {
		t.Errorf("topic backend saw %q, want only the topic", topics.seen)
	}
}
