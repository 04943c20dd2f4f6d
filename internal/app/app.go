// Package app contains the core application logic for the cram CLI tool.
// It runs the paper pipeline (fetch, extract, segment, filter, rank) and
// keeps rendering separate from CLI concerns.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chriscorrea/cram/internal/cluster"
	"github.com/chriscorrea/cram/internal/config"
	"github.com/chriscorrea/cram/internal/embedding"
	"github.com/chriscorrea/cram/internal/extract"
	"github.com/chriscorrea/cram/internal/fetch"
	"github.com/chriscorrea/cram/internal/plan"
	"github.com/chriscorrea/cram/internal/relevance"
	"github.com/chriscorrea/cram/internal/segment"
	"github.com/chriscorrea/cram/internal/spinner"
	"github.com/chriscorrea/cram/internal/syllabus"
)

// OutputFormat defines the output format for results
type OutputFormat int

const (
	// markdown output format (default)
	Markdown OutputFormat = iota
	// plaintext output format
	Text
	// JSON output format
	JSON
)

// String returns the string representation of the output
func (f OutputFormat) String() string {
	switch f {
	case Markdown:
		return "Markdown"
	case Text:
		return "Text"
	case JSON:
		return "JSON"
	default:
		return "Unknown"
	}
}

var (
	// ErrNoSources is returned when no exam papers are given.
	ErrNoSources = errors.New("no exam papers provided")
	// ErrNoValidData is returned when no paper yields a single question.
	ErrNoValidData = errors.New("no valid questions found in any paper")

	errNoText      = errors.New("no text extracted")
	errNoQuestions = errors.New("no questions found")
)

// Config holds all configuration options for a cram run.
type Config struct {
	Papers     []string // URLs, file paths, or "-" for stdin
	Syllabus   string   // syllabus source; empty means no topics
	Topics     []string // extra topics appended to the syllabus topics
	Subject    string
	Selector   string // CSS selector for HTML papers
	IncludeAll bool   // skip readability on HTML papers

	OutputFormat OutputFormat
	XLSXPath     string // also write the plan as a workbook
	Strict       bool   // fail instead of falling back to keep-all
	Quiet        bool   // suppress warnings and progress
	Debug        bool

	Settings config.Config

	Runner   extract.Runner    // nil runs OCR tools with os/exec
	Embedder embedding.Service // nil builds one from Settings.Embedding
	Warnings io.Writer         // nil writes to os.Stderr
}

// PaperSummary describes how much of one paper survived the pipeline.
type PaperSummary struct {
	Filename  string `json:"filename"`
	Method    string `json:"method,omitempty"`
	Extracted int    `json:"extracted"`
	Retained  int    `json:"retained"`
	Skipped   string `json:"skipped,omitempty"`
}

// Report is the read-only result of a run handed to renderers.
type Report struct {
	RunID       string         `json:"run_id"`
	Subject     string         `json:"subject,omitempty"`
	GeneratedAt time.Time      `json:"generated_at"`
	Strategy    string         `json:"strategy"`
	Threshold   float64        `json:"threshold"`
	Clustered   bool           `json:"clustered,omitempty"`
	Degraded    bool           `json:"degraded,omitempty"` // some paper fell back to keep-all
	Topics      []string       `json:"topics"`
	Papers      []PaperSummary `json:"papers"`
	Questions   []plan.Paper   `json:"questions"`
	Plan        []plan.Entry   `json:"plan"`
	Summary     plan.Summary   `json:"summary"`
}

// paperResult is the outcome of one paper pipeline.
type paperResult struct {
	summary  PaperSummary
	records  []relevance.Record
	skip     error // extraction failure, paper left out
	fallback error // vectorization failure, questions kept as Unknown
}

// Run analyzes the papers, writes the optional workbook and returns the
// study plan rendered in cfg.OutputFormat.
//
// ctx allows for cancellation of downloads, OCR and embedding requests.
func Run(ctx context.Context, cfg Config) (string, error) {
	report, err := Analyze(ctx, cfg)
	if err != nil {
		return "", err
	}
	if cfg.XLSXPath != "" {
		if err := exportWorkbook(cfg.XLSXPath, report); err != nil {
			return "", err
		}
	}
	var sb strings.Builder
	if err := RenderPlan(&sb, report, cfg.OutputFormat); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Questions analyzes the papers and returns their retained questions with
// topic assignments, rendered in cfg.OutputFormat.
func Questions(ctx context.Context, cfg Config) (string, error) {
	report, err := Analyze(ctx, cfg)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := RenderQuestions(&sb, report, cfg.OutputFormat); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// ListTopics returns the topics taken from the syllabus and cfg.Topics,
// rendered in cfg.OutputFormat.
func ListTopics(ctx context.Context, cfg Config) (string, error) {
	topics, err := Topics(ctx, cfg)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := RenderTopics(&sb, topics, cfg.OutputFormat); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Analyze runs every paper through the pipeline and ranks the topics.
//
// Processing Pipeline:
// 1. Load topics from the syllabus and cfg.Topics (loadTopics)
// 2. Fetch, extract, segment and filter each paper concurrently (processPapers)
// 3. Relabel Unknown questions by clustering when there are no topics
// 4. Rank the topics into a study plan
func Analyze(ctx context.Context, cfg Config) (*Report, error) {
	if len(cfg.Papers) == 0 {
		return nil, ErrNoSources
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := cfg.Settings

	dir, err := os.MkdirTemp("", "cram-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(dir)

	ex := extract.New(extractorConfig(cfg), cfg.Runner)

	topics, err := loadTopics(ctx, cfg, ex, dir)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		cfg.warnf("failed to read syllabus %q, continuing without topics: %v", cfg.Syllabus, err)
		topics = extraTopics(cfg.Topics, nil)
	}
	slog.Debug("Topics loaded", "count", len(topics))

	filter, release, err := newFilter(ctx, cfg)
	if err != nil {
		if cfg.Strict || !relevance.IsVectorizationError(err) {
			return nil, err
		}
		cfg.warnf("%v; keeping every question", err)
	}
	defer release()

	results, err := processPapers(ctx, cfg, ex, filter, topics, dir)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:       uuid.NewString(),
		Subject:     cfg.Subject,
		GeneratedAt: time.Now().UTC(),
		Strategy:    strategyName(s.Strategy),
		Topics:      topics,
		Papers:      make([]PaperSummary, 0, len(results)),
		Questions:   []plan.Paper{},
	}
	if filter != nil {
		report.Threshold = filter.EffectiveThreshold()
	} else {
		report.Degraded = true
	}

	for _, r := range results {
		report.Papers = append(report.Papers, r.summary)
		switch {
		case r.skip != nil:
			cfg.warnf("skipping paper %q: %v", r.summary.Filename, r.skip)
			continue
		case r.fallback != nil:
			cfg.warnf("relevance scoring failed for %q, keeping all questions: %v", r.summary.Filename, r.fallback)
			report.Degraded = true
		}
		report.Questions = append(report.Questions, plan.Paper{Filename: r.summary.Filename, Questions: r.records})
	}
	if len(report.Questions) == 0 {
		return nil, ErrNoValidData
	}

	if len(topics) == 0 && s.ClusterTopics > 0 {
		if err := relabel(report.Questions, s); err != nil {
			cfg.warnf("clustering failed, questions stay %s: %v", relevance.Unknown, err)
		} else {
			report.Clustered = true
		}
	}

	rankerOpts := []plan.Option{plan.WithSampleSize(s.SampleSize)}
	if s.Seed != 0 {
		rankerOpts = append(rankerOpts, plan.WithSeed(s.Seed))
	}
	report.Plan = plan.NewRanker(rankerOpts...).Generate(report.Questions)
	report.Summary = plan.Summarize(report.Plan)

	slog.Debug("Analysis complete",
		"run_id", report.RunID,
		"papers", len(report.Questions),
		"topics", report.Summary.Topics,
		"high", report.Summary.High)
	return report, nil
}

// Topics returns the topics a run would use, failing if the syllabus
// cannot be read.
func Topics(ctx context.Context, cfg Config) ([]string, error) {
	dir, err := os.MkdirTemp("", "cram-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(dir)

	return loadTopics(ctx, cfg, extract.New(extractorConfig(cfg), cfg.Runner), dir)
}

// loadTopics parses the syllabus, if any, and appends cfg.Topics.
func loadTopics(ctx context.Context, cfg Config, ex *extract.Extractor, dir string) ([]string, error) {
	if cfg.Syllabus == "" {
		return extraTopics(cfg.Topics, nil), nil
	}
	p, err := fetch.Materialize(ctx, cfg.Syllabus, dir)
	if err != nil {
		return nil, err
	}
	doc, err := ex.Extract(ctx, p)
	if err != nil {
		return nil, err
	}

	parser := &syllabus.Parser{
		DropBoilerplate: cfg.Settings.Syllabus.DropBoilerplate,
		SplitSentences:  cfg.Settings.Syllabus.SplitSentences,
	}
	topics := parser.Parse(doc.Text)
	slog.Debug("Syllabus parsed", "source", cfg.Syllabus, "method", doc.Method, "topics", len(topics))
	return extraTopics(cfg.Topics, topics), nil
}

// extraTopics appends the non-blank entries of extra to topics, skipping
// duplicates.
func extraTopics(extra, topics []string) []string {
	out := make([]string, 0, len(topics)+len(extra))
	seen := make(map[string]bool, cap(out))
	for _, t := range append(append([]string{}, topics...), extra...) {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// processPapers fans out one pipeline per paper. Results are stored by
// input index so plan order does not depend on scheduling.
func processPapers(ctx context.Context, cfg Config, ex *extract.Extractor, filter *relevance.Filter, topics []string, dir string) ([]paperResult, error) {
	results := make([]paperResult, len(cfg.Papers))

	var sp *spinner.Spinner
	if !cfg.Quiet && spinner.IsTerminal(os.Stderr) {
		sp = spinner.New(ctx, os.Stderr, "Analyzing papers...")
		sp.SetTotal(len(cfg.Papers))
		sp.Start()
		defer sp.Stop()
	}

	workers := cfg.Settings.Workers
	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, source := range cfg.Papers {
		g.Go(func() error {
			if sp != nil {
				defer sp.Step()
			}
			r, err := processPaper(gctx, cfg, ex, filter, topics, dir, source)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// processPaper runs one paper. The returned error aborts the run; per-paper
// problems are reported through paperResult instead.
func processPaper(ctx context.Context, cfg Config, ex *extract.Extractor, filter *relevance.Filter, topics []string, dir, source string) (paperResult, error) {
	res := paperResult{summary: PaperSummary{Filename: displayName(source)}}
	skip := func(err error) (paperResult, error) {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.skip = err
		res.summary.Skipped = err.Error()
		return res, nil
	}

	p, err := fetch.Materialize(ctx, source, dir)
	if err != nil {
		return skip(err)
	}
	doc, err := ex.Extract(ctx, p)
	if err != nil {
		return skip(err)
	}
	res.summary.Method = doc.Method
	if strings.TrimSpace(doc.Text) == "" {
		return skip(errNoText)
	}

	var seg segment.Segmenter
	questions := seg.Extract(doc.Text)
	st := seg.Stats()
	slog.Debug("Paper segmented",
		"source", source,
		"method", doc.Method,
		"lines", st.Lines,
		"candidates", st.Candidates,
		"rejected", st.Rejected)
	res.summary.Extracted = len(questions)
	if len(questions) == 0 {
		return skip(errNoQuestions)
	}

	if filter == nil {
		res.records = relevance.KeepAll(questions)
	} else {
		res.records, err = filter.Filter(ctx, questions, topics)
		if err != nil {
			if cfg.Strict || !relevance.IsVectorizationError(err) {
				return res, fmt.Errorf("paper %q: %w", res.summary.Filename, err)
			}
			res.fallback = err
			res.records = relevance.KeepAll(questions)
		}
	}
	res.summary.Retained = len(res.records)
	return res, nil
}

// relabel replaces the Unknown topics of every paper with cluster labels
// computed over all questions together.
func relabel(papers []plan.Paper, s config.Config) error {
	var questions []string
	for _, p := range papers {
		for _, r := range p.Questions {
			questions = append(questions, r.Question)
		}
	}
	if len(questions) == 0 {
		return nil
	}

	seed := uint64(cluster.DefaultSeed)
	if s.Seed != 0 {
		seed = s.Seed
	}
	c := cluster.New(s.ClusterTopics,
		cluster.WithSeed(seed),
		cluster.WithVectorizerOptions(lexicalOptions(s)...))
	labeled, err := c.Label(questions)
	if err != nil {
		return err
	}

	next := 0
	for i := range papers {
		n := len(papers[i].Questions)
		papers[i].Questions = labeled[next : next+n]
		next += n
	}
	return nil
}

func extractorConfig(cfg Config) extract.Config {
	ocr := cfg.Settings.OCR
	return extract.Config{
		Tesseract:     ocr.Tesseract,
		Pdftoppm:      ocr.Pdftoppm,
		TesseractLang: ocr.Lang,
		DPI:           ocr.DPI,
		MaxPages:      ocr.MaxPages,
		MinPDFChars:   ocr.MinPDFChars,
		Selector:      cfg.Selector,
		IncludeAll:    cfg.IncludeAll,
	}
}

// displayName is the short paper name shown in reports.
func displayName(source string) string {
	switch {
	case source == "-":
		return "stdin"
	case fetch.IsURL(source):
		u, err := url.Parse(source)
		if err != nil {
			return source
		}
		if base := path.Base(u.Path); base != "/" && base != "." {
			return base
		}
		return u.Host
	default:
		return filepath.Base(source)
	}
}

func (cfg Config) warnf(format string, args ...any) {
	if cfg.Quiet {
		return
	}
	w := cfg.Warnings
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "Warning: "+format+"\n", args...)
}
