package retrieval

import (
	"context"

	"github.com/connexus-ai/kenyalaw-rag/internal/cache"
)

// CachingEmbedder wraps a QueryEmbedder with cache's query→vector
// cache, so repeated or rephrased-but-identical queries skip the
// Vertex AI embedding call entirely.
type CachingEmbedder struct {
	inner QueryEmbedder
	cache *cache.EmbeddingCache
}

// NewCachingEmbedder builds a CachingEmbedder over inner.
func NewCachingEmbedder(inner QueryEmbedder, c *cache.EmbeddingCache) *CachingEmbedder {
	return &CachingEmbedder{inner: inner, cache: c}
}

// Embed returns a vector per text, in order, serving cache hits
// directly and batching only the misses against inner.
func (e *CachingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	for i, t := range texts {
		hash := cache.EmbeddingQueryHash(t)
		if vec, ok := e.cache.Get(hash); ok {
			vecs[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) == 0 {
		return vecs, nil
	}

	computed, err := e.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for j, idx := range missIdx {
		vecs[idx] = computed[j]
		e.cache.Set(cache.EmbeddingQueryHash(texts[idx]), computed[j])
	}
	return vecs, nil
}
