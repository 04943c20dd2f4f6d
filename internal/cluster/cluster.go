// Package cluster groups questions into topics when no syllabus is given.
//
// Questions are vectorized with TF-IDF and grouped with k-means (k-means++
// seeding, several restarts, lowest inertia wins). Each cluster is named
// after the heaviest terms of its centroid.
package cluster

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/chriscorrea/cram/internal/relevance"
	"github.com/chriscorrea/cram/internal/tfidf"
	"gonum.org/v1/gonum/floats"
)

const (
	// DefaultSeed makes clustering reproducible across runs.
	DefaultSeed = 42
	// DefaultRestarts is the number of independent k-means runs.
	DefaultRestarts = 10
	// DefaultKeywords is the number of terms in a cluster label.
	DefaultKeywords = 3

	maxIterations = 100
)

// ErrNoClusters is returned when k is not positive.
var ErrNoClusters = errors.New("cluster count must be positive")

// Clusterer assigns questions to k keyword-labelled clusters.
// It is not safe for concurrent use; the random source is shared.
type Clusterer struct {
	k        int
	restarts int
	keywords int
	rng      *rand.Rand
	opts     []tfidf.Option
}

// Option configures a Clusterer.
type Option func(*Clusterer)

// WithSeed replaces the default seed.
func WithSeed(seed uint64) Option {
	return func(c *Clusterer) {
		c.rng = rand.New(rand.NewPCG(seed, seed))
	}
}

// WithRand sets the random source directly.
func WithRand(r *rand.Rand) Option {
	return func(c *Clusterer) {
		c.rng = r
	}
}

// WithRestarts sets the number of k-means runs.
func WithRestarts(n int) Option {
	return func(c *Clusterer) {
		if n > 0 {
			c.restarts = n
		}
	}
}

// WithKeywords sets how many centroid terms name a cluster.
func WithKeywords(n int) Option {
	return func(c *Clusterer) {
		if n > 0 {
			c.keywords = n
		}
	}
}

// WithVectorizerOptions configures the TF-IDF vectorizer.
func WithVectorizerOptions(opts ...tfidf.Option) Option {
	return func(c *Clusterer) {
		c.opts = opts
	}
}

// New returns a Clusterer targeting k clusters.
func New(k int, opts ...Option) *Clusterer {
	c := &Clusterer{
		k:        k,
		restarts: DefaultRestarts,
		keywords: DefaultKeywords,
		rng:      rand.New(rand.NewPCG(DefaultSeed, DefaultSeed)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Label clusters questions and returns one record per question, in order.
// The topic is the cluster label and the similarity is the cosine between
// the question and its cluster centroid. Fewer questions than k reduce k.
func (c *Clusterer) Label(questions []string) ([]relevance.Record, error) {
	if c.k <= 0 {
		return nil, ErrNoClusters
	}
	if len(questions) == 0 {
		return []relevance.Record{}, nil
	}

	m, err := tfidf.NewVectorizer(c.opts...).FitTransform(questions)
	if err != nil {
		return nil, fmt.Errorf("vectorize questions: %w", err)
	}

	k := min(c.k, len(questions))
	var best result
	best.inertia = math.Inf(1)
	for run := range c.restarts {
		r := kmeans(m.Rows, k, c.rng)
		slog.Debug("k-means run", "run", run, "k", k, "inertia", r.inertia, "iterations", r.iterations)
		if r.inertia < best.inertia {
			best = r
		}
	}

	labels := c.labels(m, best.centroids)
	records := make([]relevance.Record, len(questions))
	for i, q := range questions {
		cl := best.assign[i]
		records[i] = relevance.Record{
			Question:   q,
			Topic:      labels[cl],
			Similarity: tfidf.Cosine(m.Rows[i], best.centroids[cl]),
		}
	}

	slog.Debug("Clustering complete", "questions", len(questions), "clusters", k, "inertia", best.inertia)
	return records, nil
}

// labels names each centroid by its top terms, keeping names unique.
func (c *Clusterer) labels(m tfidf.Matrix, centroids [][]float64) []string {
	labels := make([]string, len(centroids))
	used := make(map[string]int)
	for i, centroid := range centroids {
		label := strings.Join(m.TopTerms(centroid, c.keywords), ", ")
		if label == "" {
			label = fmt.Sprintf("Cluster %d", i+1)
		}
		used[label]++
		if n := used[label]; n > 1 {
			label = fmt.Sprintf("%s (%d)", label, n)
		}
		labels[i] = label
	}
	return labels
}

type result struct {
	centroids  [][]float64
	assign     []int
	inertia    float64
	iterations int
}

// kmeans runs Lloyd's algorithm from a k-means++ seeding.
func kmeans(points [][]float64, k int, rng *rand.Rand) result {
	centroids := seed(points, k, rng)
	assign := make([]int, len(points))
	for i := range assign {
		assign[i] = -1
	}

	iter := 0
	for ; iter < maxIterations; iter++ {
		changed := false
		for i, p := range points {
			cl, _ := nearest(p, centroids)
			if cl != assign[i] {
				assign[i] = cl
				changed = true
			}
		}
		if !changed {
			break
		}
		centroids = recompute(points, assign, centroids)
	}

	var inertia float64
	for i, p := range points {
		d := floats.Distance(p, centroids[assign[i]], 2)
		inertia += d * d
	}
	return result{centroids: centroids, assign: assign, inertia: inertia, iterations: iter}
}

// seed picks k initial centroids with k-means++: the first uniformly, the
// rest with probability proportional to squared distance from the nearest
// chosen centroid.
func seed(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(points[rng.IntN(len(points))]))

	dist := make([]float64, len(points))
	for len(centroids) < k {
		var total float64
		for i, p := range points {
			_, d := nearest(p, centroids)
			dist[i] = d * d
			total += dist[i]
		}

		// all remaining points coincide with a centroid
		if total == 0 {
			centroids = append(centroids, clone(points[rng.IntN(len(points))]))
			continue
		}

		target := rng.Float64() * total
		pick := len(points) - 1
		for i, d := range dist {
			target -= d
			if target < 0 {
				pick = i
				break
			}
		}
		centroids = append(centroids, clone(points[pick]))
	}
	return centroids
}

// nearest returns the closest centroid index; the first wins ties.
func nearest(p []float64, centroids [][]float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for j, c := range centroids {
		if d := floats.Distance(p, c, 2); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best, bestDist
}

// recompute moves each centroid to the mean of its points. An empty cluster
// keeps its previous centroid.
func recompute(points [][]float64, assign []int, prev [][]float64) [][]float64 {
	dim := len(points[0])
	sums := make([][]float64, len(prev))
	counts := make([]int, len(prev))
	for j := range sums {
		sums[j] = make([]float64, dim)
	}
	for i, p := range points {
		floats.Add(sums[assign[i]], p)
		counts[assign[i]]++
	}
	for j := range sums {
		if counts[j] == 0 {
			sums[j] = prev[j]
			continue
		}
		floats.Scale(1/float64(counts[j]), sums[j])
	}
	return sums
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
