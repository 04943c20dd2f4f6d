package app

import (
	"context"
	"sort"
	"strings"

	"github.com/chriscorrea/bm25md"
)

// DefaultSearchLimit is the number of hits returned when no limit is set.
const DefaultSearchLimit = 10

// SearchHit is a retained question matching a search query.
type SearchHit struct {
	Question string  `json:"question"`
	Topic    string  `json:"topic"`
	Filename string  `json:"filename"`
	Score    float64 `json:"score"` // BM25md score (higher = more relevant)
}

// Search analyzes the papers and returns the questions matching query,
// rendered in cfg.OutputFormat.
func Search(ctx context.Context, cfg Config, query string, limit int) (string, error) {
	report, err := Analyze(ctx, cfg)
	if err != nil {
		return "", err
	}
	hits := SearchReport(report, query, limit)

	var sb strings.Builder
	if err := RenderHits(&sb, query, hits, cfg.OutputFormat); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// SearchReport ranks the retained questions of report against query using
// BM25md. Questions that share no term with the query are left out; ties
// keep paper order. A limit <= 0 uses DefaultSearchLimit.
func SearchReport(report *Report, query string, limit int) []SearchHit {
	query = strings.TrimSpace(query)
	if report == nil || query == "" {
		return []SearchHit{}
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	var candidates []SearchHit
	for _, p := range report.Questions {
		for _, r := range p.Questions {
			candidates = append(candidates, SearchHit{Question: r.Question, Topic: r.Topic, Filename: p.Filename})
		}
	}
	if len(candidates) == 0 {
		return []SearchHit{}
	}

	// create BM25md corpus with default field weights and parameters
	corpus := bm25md.NewCorpus()
	parser := bm25md.NewMarkdownFieldParser()
	for i, c := range candidates {
		fields := parser.ParseDocument(c.Question)
		corpus.AddDocument(bm25md.Document{
			ID:       i,
			Fields:   fields,
			Original: c.Question,
		})
	}

	hits := make([]SearchHit, 0, len(candidates))
	for i, c := range candidates {
		score := corpus.Score(query, i)
		if score <= 0 {
			continue
		}
		c.Score = score
		hits = append(hits, c)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
