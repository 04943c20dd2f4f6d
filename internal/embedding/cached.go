package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
)

// Ensure Cached implements the interface.
var _ Service = (*Cached)(nil)

// Cached wraps a Service and remembers vectors by exact input text.
// Entries never expire; the cache lives as long as the process.
type Cached struct {
	inner Service
	store *cache.Cache
}

// NewCached wraps inner with an in-memory vector cache.
func NewCached(inner Service) *Cached {
	return &Cached{
		inner: inner,
		store: cache.New(cache.NoExpiration, 10*time.Minute),
	}
}

func (c *Cached) key(text string) string {
	return c.inner.ModelName() + "\x00" + text
}

// Embed returns the cached vector for text or asks the wrapped service.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.store.Get(c.key(text)); ok {
		return v.([]float32), nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store.SetDefault(c.key(text), vec)
	return vec, nil
}

// EmbedBatch sends only uncached texts to the wrapped service, in one batch.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	pending := make(map[string][]int)

	for i, text := range texts {
		if v, ok := c.store.Get(c.key(text)); ok {
			out[i] = v.([]float32)
			continue
		}
		if idx, dup := pending[text]; dup {
			pending[text] = append(idx, i)
			continue
		}
		pending[text] = []int{i}
		missing = append(missing, text)
	}

	slog.Debug("Embedding cache lookup", "requested", len(texts), "misses", len(missing))
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := c.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("%s returned %d embeddings for %d texts", c.inner.ModelName(), len(vecs), len(missing))
	}
	for j, text := range missing {
		c.store.SetDefault(c.key(text), vecs[j])
		for _, i := range pending[text] {
			out[i] = vecs[j]
		}
	}
	return out, nil
}

// ModelName returns the wrapped model name.
func (c *Cached) ModelName() string {
	return c.inner.ModelName()
}

// Ping delegates to the wrapped service.
func (c *Cached) Ping(ctx context.Context) error {
	return c.inner.Ping(ctx)
}

// Close flushes the cache and closes the wrapped service.
func (c *Cached) Close() error {
	c.store.Flush()
	return c.inner.Close()
}

// Len reports the number of cached vectors.
func (c *Cached) Len() int {
	return c.store.ItemCount()
}
