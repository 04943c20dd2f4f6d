// Package plan turns topic-tagged questions from several papers into a
// ranked study plan.
package plan

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/chriscorrea/cram/internal/relevance"
)

// DefaultSampleSize is the number of example questions per entry.
const DefaultSampleSize = 3

// Priority thresholds, in percent of all retained questions.
const (
	HighThreshold   = 15.0
	MediumThreshold = 5.0
)

// Priority ranks how much study time a topic deserves.
type Priority int

const (
	Low Priority = iota
	Medium
	High
)

// String returns the display name of the priority.
func (p Priority) String() string {
	switch p {
	case High:
		return "High"
	case Medium:
		return "Medium"
	case Low:
		return "Low"
	default:
		return "unknown"
	}
}

// MarshalText renders the priority by name in JSON and other encoders.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// PriorityFor maps an unrounded weightage to a priority.
func PriorityFor(weightage float64) Priority {
	switch {
	case weightage >= HighThreshold:
		return High
	case weightage >= MediumThreshold:
		return Medium
	default:
		return Low
	}
}

// Paper holds the retained questions of one exam paper.
type Paper struct {
	Filename  string             `json:"filename"`
	Questions []relevance.Record `json:"questions"`
}

// Entry is one row of the study plan.
type Entry struct {
	Topic            string   `json:"topic"`
	Count            int      `json:"count"`
	Weightage        float64  `json:"weightage"`
	Priority         Priority `json:"priority"`
	ExampleQuestions []string `json:"example_questions"`
}

// Ranker builds study plans. Sampling draws from the ranker's random
// source, so a Ranker is not safe for concurrent use.
type Ranker struct {
	sampleSize int
	rng        *rand.Rand
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithSeed makes example sampling reproducible.
func WithSeed(seed uint64) Option {
	return func(r *Ranker) {
		r.rng = rand.New(rand.NewPCG(seed, seed))
	}
}

// WithRand sets the random source used for sampling.
func WithRand(rng *rand.Rand) Option {
	return func(r *Ranker) {
		r.rng = rng
	}
}

// WithSampleSize sets the maximum number of example questions per entry.
// Zero disables examples.
func WithSampleSize(n int) Option {
	return func(r *Ranker) {
		if n >= 0 {
			r.sampleSize = n
		}
	}
}

// NewRanker returns a Ranker. Without WithSeed or WithRand the random
// source is seeded from the runtime.
func NewRanker(opts ...Option) *Ranker {
	r := &Ranker{
		sampleSize: DefaultSampleSize,
		rng:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Generate counts questions per topic across papers and returns entries in
// descending count order. Topics with equal counts keep the order in which
// they first appeared.
func (r *Ranker) Generate(papers []Paper) []Entry {
	var order []string
	counts := make(map[string]int)
	pools := make(map[string][]string)
	total := 0

	for _, p := range papers {
		for _, q := range p.Questions {
			if _, seen := counts[q.Topic]; !seen {
				order = append(order, q.Topic)
			}
			counts[q.Topic]++
			pools[q.Topic] = append(pools[q.Topic], q.Question)
			total++
		}
	}

	entries := make([]Entry, 0, len(order))
	if total == 0 {
		slog.Debug("No questions to rank")
		return entries
	}

	for _, topic := range order {
		w := 100 * float64(counts[topic]) / float64(total)
		entries = append(entries, Entry{
			Topic:            topic,
			Count:            counts[topic],
			Weightage:        math.RoundToEven(w*10) / 10,
			Priority:         PriorityFor(w),
			ExampleQuestions: r.sample(pools[topic]),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})

	slog.Debug("Study plan generated", "topics", len(entries), "questions", total)
	return entries
}

// sample picks up to sampleSize distinct questions from pool.
func (r *Ranker) sample(pool []string) []string {
	distinct := make([]string, 0, len(pool))
	seen := make(map[string]bool, len(pool))
	for _, q := range pool {
		if !seen[q] {
			seen[q] = true
			distinct = append(distinct, q)
		}
	}

	n := min(r.sampleSize, len(distinct))
	// partial Fisher-Yates
	for i := range n {
		j := i + r.rng.IntN(len(distinct)-i)
		distinct[i], distinct[j] = distinct[j], distinct[i]
	}
	return distinct[:n]
}

// Summary counts plan entries by priority.
type Summary struct {
	Topics int `json:"topics"`
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Summarize returns per-priority counts for entries.
func Summarize(entries []Entry) Summary {
	s := Summary{Topics: len(entries)}
	for _, e := range entries {
		switch e.Priority {
		case High:
			s.High++
		case Medium:
			s.Medium++
		default:
			s.Low++
		}
	}
	return s
}
