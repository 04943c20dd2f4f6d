package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Ensure GeminiService implements the interface.
var _ Service = (*GeminiService)(nil)

// DefaultGeminiModel is the Gemini embedding model used when none is configured.
const DefaultGeminiModel = "text-embedding-004"

// maxGeminiBatch is the largest number of texts sent in one batch request.
const maxGeminiBatch = 100

// GeminiConfig holds configuration for the Gemini embedding service.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// GeminiService generates embeddings with the Gemini API.
type GeminiService struct {
	client *genai.Client
	model  *genai.EmbeddingModel
	name   string
}

// NewGemini creates a Gemini embedding service.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*GeminiService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &GeminiService{
		client: client,
		model:  client.EmbeddingModel(cfg.Model),
		name:   cfg.Model,
	}, nil
}

// Embed generates a vector embedding for the given text.
func (s *GeminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := s.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini: embed content: %w", err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return cloneVector(resp.Embedding.Values), nil
}

// EmbedBatch uses batch requests of up to maxGeminiBatch texts.
func (s *GeminiService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxGeminiBatch {
		end := min(start+maxGeminiBatch, len(texts))

		batch := s.model.NewBatch()
		for _, text := range texts[start:end] {
			batch.AddContent(genai.Text(text))
		}

		resp, err := s.model.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("gemini: batch embed texts %d-%d: %w", start, end-1, err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini: got %d embeddings for %d texts", len(resp.Embeddings), end-start)
		}
		for _, e := range resp.Embeddings {
			if e == nil || len(e.Values) == 0 {
				return nil, ErrEmptyEmbedding
			}
			out = append(out, cloneVector(e.Values))
		}
	}
	return out, nil
}

// ModelName returns the name of the embedding model being used.
func (s *GeminiService) ModelName() string {
	return s.name
}

// Ping embeds a short fixed text.
func (s *GeminiService) Ping(ctx context.Context) error {
	if _, err := s.Embed(ctx, "ping"); err != nil {
		return fmt.Errorf("gemini: ping failed: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *GeminiService) Close() error {
	return s.client.Close()
}

func cloneVector(values []float32) []float32 {
	vec := make([]float32, len(values))
	copy(vec, values)
	return vec
}
