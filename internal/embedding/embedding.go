// Package embedding provides text embedding services used by the semantic
// relevance strategy.
//
// Two backends are available: a local Ollama server and Google's Gemini
// embedding API. Either can be wrapped in a Cached service so that repeated
// texts (typically the syllabus topics, which are the same for every paper)
// are embedded once per session.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyEmbedding is returned when a backend answers without a vector.
var ErrEmptyEmbedding = errors.New("embedding response is empty")

// Service generates vector embeddings from text.
type Service interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Provider names a supported embedding backend.
type Provider string

const (
	Ollama Provider = "ollama"
	Gemini Provider = "gemini"
)

// ParseProvider maps a config string to a Provider.
func ParseProvider(name string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(name))) {
	case Ollama, "":
		return Ollama, nil
	case Gemini:
		return Gemini, nil
	default:
		return "", fmt.Errorf("unknown embedding provider %q (want ollama or gemini)", name)
	}
}

// Options holds the settings shared by every backend.
type Options struct {
	Provider Provider
	Model    string
	BaseURL  string // ollama only
	APIKey   string // gemini only
}

// New constructs the Service selected by opts.Provider.
func New(ctx context.Context, opts Options) (Service, error) {
	switch opts.Provider {
	case Ollama, "":
		return NewOllama(OllamaConfig{BaseURL: opts.BaseURL, Model: opts.Model}), nil
	case Gemini:
		return NewGemini(ctx, GeminiConfig{APIKey: opts.APIKey, Model: opts.Model})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", opts.Provider)
	}
}
