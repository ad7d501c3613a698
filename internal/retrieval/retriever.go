// Package retrieval finds documents relevant to a query: it embeds the
// query, searches the vector store (optionally fused with full-text
// search via reciprocal rank fusion), re-ranks by similarity and
// freshness, and deduplicates by document identity.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/connexus-ai/kenyalaw-rag/internal/freshness"
	"github.com/connexus-ai/kenyalaw-rag/internal/model"
)

const (
	// candidatePoolSize is how many candidates are pulled from each
	// search path before re-ranking narrows to the caller's topK.
	candidatePoolSize = 20
	defaultThreshold  = 0.35

	weightSimilarity = 0.75
	weightFreshness  = 0.25
)

// VectorSearcher abstracts pgvector cosine-similarity search.
type VectorSearcher interface {
	SimilaritySearch(ctx context.Context, queryVec []float32, topK int, threshold float64) ([]model.Document, error)
}

// QueryEmbedder abstracts query embedding for testability.
type QueryEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// FullTextSearcher abstracts full-text (e.g. PostgreSQL ts_vector/BM25)
// search for hybrid retrieval. Optional: a Retriever without one runs
// vector-only.
type FullTextSearcher interface {
	FullTextSearch(ctx context.Context, query string, topK int) ([]model.Document, error)
}

// Retriever embeds queries, searches, fuses, re-ranks, and deduplicates.
type Retriever struct {
	embedder QueryEmbedder
	searcher VectorSearcher
	fts      FullTextSearcher // nil = vector-only
}

// New creates a Retriever. Attach a FullTextSearcher with SetFullText
// to enable hybrid vector+BM25 retrieval.
func New(embedder QueryEmbedder, searcher VectorSearcher) *Retriever {
	return &Retriever{embedder: embedder, searcher: searcher}
}

// SetFullText attaches a FullTextSearcher for hybrid retrieval.
func (r *Retriever) SetFullText(fts FullTextSearcher) {
	r.fts = fts
}

// Retrieve embeds query, searches for candidates, and returns the
// top-topK documents ordered by final rank score.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]model.Document, error) {
	if query == "" {
		return nil, fmt.Errorf("retrieval.Retrieve: query is empty")
	}

	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("retrieval.Retrieve: embed: %w", err)
	}
	return r.RetrieveWithVec(ctx, query, vecs[0], topK)
}

// RetrieveWithVec performs retrieval using a pre-computed query
// embedding, skipping the embed step so a caller can run an
// embedding-cache lookup in parallel with other work.
func (r *Retriever) RetrieveWithVec(ctx context.Context, query string, queryVec []float32, topK int) ([]model.Document, error) {
	var vectorResults, ftsResults []model.Document

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vectorResults, err = r.searcher.SimilaritySearch(gCtx, queryVec, candidatePoolSize, defaultThreshold)
		return err
	})
	if r.fts != nil && query != "" {
		g.Go(func() error {
			var err error
			ftsResults, err = r.fts.FullTextSearch(gCtx, query, candidatePoolSize)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("retrieval.Retrieve: search: %w", err)
	}

	var candidates []model.Document
	if len(ftsResults) > 0 {
		candidates = reciprocalRankFusion(vectorResults, ftsResults)
	} else {
		candidates = vectorResults
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	candidates = Dedupe(candidates)
	ranked := rerank(candidates, time.Now().UTC())

	if topK > 0 && topK < len(ranked) {
		ranked = ranked[:topK]
	}
	return ranked, nil
}

// rerank scores candidates by a weighted blend of retrieval similarity
// and document freshness, then sorts descending.
func rerank(candidates []model.Document, now time.Time) []model.Document {
	ranked := make([]model.Document, len(candidates))
	copy(ranked, candidates)

	scores := make(map[string]float64, len(ranked))
	for _, d := range ranked {
		f := freshness.Score(d.Metadata.DocumentDate, now)
		scores[d.UUID] = weightSimilarity*d.Similarity + weightFreshness*f
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i].UUID] > scores[ranked[j].UUID]
	})
	return ranked
}

// Dedupe removes duplicate documents by UUID, keeping the first
// (highest-similarity, since candidates arrive sorted) occurrence. The
// retriever should never emit duplicate UUIDs but defends against it
// since a downstream hybrid-fusion bug would otherwise silently
// double-count a source in the context and citation map.
func Dedupe(docs []model.Document) []model.Document {
	seen := make(map[string]struct{}, len(docs))
	out := make([]model.Document, 0, len(docs))
	for _, d := range docs {
		if _, ok := seen[d.UUID]; ok {
			continue
		}
		seen[d.UUID] = struct{}{}
		out = append(out, d)
	}
	return out
}

// reciprocalRankFusion combines vector and full-text candidate lists
// by RRF score: sum(1/(k+rank+1)) across every list a document appears
// in. k=60 is the standard constant balancing rank position against
// list length.
func reciprocalRankFusion(vectorResults, ftsResults []model.Document) []model.Document {
	const k = 60
	scores := make(map[string]float64)
	items := make(map[string]model.Document)

	accumulate := func(list []model.Document) {
		for rank, d := range list {
			scores[d.UUID] += 1.0 / float64(k+rank+1)
			if _, exists := items[d.UUID]; !exists {
				items[d.UUID] = d
			}
		}
	}
	accumulate(vectorResults)
	accumulate(ftsResults)

	type scored struct {
		doc   model.Document
		score float64
	}
	fused := make([]scored, 0, len(items))
	for id, d := range items {
		fused = append(fused, scored{d, scores[id]})
	}
	sort.Slice(fused, func(i, j int) bool { return fused[i].score > fused[j].score })

	out := make([]model.Document, len(fused))
	for i, s := range fused {
		out[i] = s.doc
	}
	return out
}
