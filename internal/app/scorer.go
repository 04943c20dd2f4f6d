package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chriscorrea/cram/internal/config"
	"github.com/chriscorrea/cram/internal/counter"
	"github.com/chriscorrea/cram/internal/embedding"
	"github.com/chriscorrea/cram/internal/export"
	"github.com/chriscorrea/cram/internal/relevance"
	"github.com/chriscorrea/cram/internal/tfidf"
)

// newFilter builds the relevance filter for the configured strategy. The
// returned release func is always non-nil and closes any service the filter
// created. An unreachable embedding backend is reported as a
// *relevance.VectorizationError.
func newFilter(ctx context.Context, cfg Config) (*relevance.Filter, func(), error) {
	s := cfg.Settings
	noop := func() {}

	switch strategyName(s.Strategy) {
	case relevance.StrategyTFIDF:
		scorer := relevance.NewLexicalScorer(lexicalOptions(s)...)
		return relevance.NewFilter(scorer, threshold(s)), noop, nil

	case relevance.StrategyEmbedding:
		svc, owned, err := embeddingService(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		release := func() {
			if owned {
				if err := svc.Close(); err != nil {
					slog.Debug("Failed to close embedding service", "error", err)
				}
			}
		}

		if err := svc.Ping(ctx); err != nil {
			release()
			return nil, noop, &relevance.VectorizationError{
				Strategy: relevance.StrategyEmbedding,
				Err:      fmt.Errorf("embedding service unavailable: %w", err),
			}
		}

		opts, err := embeddingOptions(cfg, svc)
		if err != nil {
			release()
			return nil, noop, err
		}
		scorer := relevance.NewEmbeddingScorer(svc, opts...)
		return relevance.NewFilter(scorer, threshold(s)), release, nil

	default:
		return nil, noop, fmt.Errorf("unknown strategy %q (want %s or %s)", s.Strategy, relevance.StrategyTFIDF, relevance.StrategyEmbedding)
	}
}

// threshold maps an unset config threshold to the strategy default.
func threshold(s config.Config) float64 {
	if s.Threshold == nil {
		return relevance.UseDefaultThreshold
	}
	return *s.Threshold
}

// embeddingService returns cfg.Embedder or a backend built from the
// settings. owned reports whether the caller must close it.
func embeddingService(ctx context.Context, cfg Config) (svc embedding.Service, owned bool, err error) {
	if cfg.Embedder != nil {
		return cfg.Embedder, false, nil
	}
	e := cfg.Settings.Embedding
	provider, err := embedding.ParseProvider(e.Provider)
	if err != nil {
		return nil, false, err
	}
	svc, err = embedding.New(ctx, embedding.Options{
		Provider: provider,
		Model:    e.Model,
		BaseURL:  e.BaseURL,
		APIKey:   cfg.Settings.APIKey(),
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to create embedding service: %w", err)
	}
	slog.Debug("Embedding service ready", "provider", provider, "model", svc.ModelName())
	return svc, true, nil
}

func embeddingOptions(cfg Config, svc embedding.Service) ([]relevance.EmbeddingOption, error) {
	e := cfg.Settings.Embedding
	var opts []relevance.EmbeddingOption

	if e.MaxTokens > 0 {
		method, err := counter.ParseMethod(e.Counter)
		if err != nil {
			return nil, err
		}
		c, err := counter.NewCounter(method)
		if err != nil {
			if c == nil {
				return nil, err
			}
			cfg.warnf("%v; truncating embedding input by %s", err, c.Name())
		}
		opts = append(opts, relevance.WithTruncation(c, e.MaxTokens))
	}

	if e.CacheTopics {
		opts = append(opts, relevance.WithTopicService(embedding.NewCached(svc)))
	}
	return opts, nil
}

func lexicalOptions(s config.Config) []tfidf.Option {
	return []tfidf.Option{tfidf.WithStemming(s.TFIDF.Stem)}
}

func strategyName(name string) string {
	if name == "" {
		return relevance.StrategyTFIDF
	}
	return name
}

func exportWorkbook(path string, r *Report) error {
	if err := export.WriteXLSX(path, r.Plan, r.Questions); err != nil {
		return fmt.Errorf("failed to export workbook: %w", err)
	}
	slog.Debug("Workbook written", "path", path, "topics", len(r.Plan))
	return nil
}
