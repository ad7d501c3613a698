// Package orchestrator wires retrieval, context assembly, caching,
// dispatch, and source/confidence aggregation into the single
// end-to-end query pipeline.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/connexus-ai/kenyalaw-rag/internal/citation"
	"github.com/connexus-ai/kenyalaw-rag/internal/contextbuilder"
	"github.com/connexus-ai/kenyalaw-rag/internal/freshness"
	"github.com/connexus-ai/kenyalaw-rag/internal/model"
	"github.com/connexus-ai/kenyalaw-rag/internal/rerr"
	"github.com/connexus-ai/kenyalaw-rag/internal/respcache"
	"github.com/connexus-ai/kenyalaw-rag/internal/sourcebuilder"
)

const noSourcesAnswer = "information not available in the retrieved sources"

// Retriever finds and ranks documents relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]model.Document, error)
}

// Dispatcher generates an answer from a prompt pair, returning the
// generated text and the id of the model that produced it.
type Dispatcher interface {
	Dispatch(ctx context.Context, systemPrompt, userPrompt string) (string, string, error)
}

// Cache deduplicates and memoizes query computation.
type Cache interface {
	GetOrCompute(ctx context.Context, key string, compute func(context.Context) (model.QueryResult, error)) (model.QueryResult, error)
}

// Options controls a single query's retrieval depth, token budget, and
// citation behavior. Zero values are replaced by Engine's defaults.
type Options struct {
	TopK         int
	MaxTokens    int
	UseCitations *bool
}

// Engine is the query orchestrator: Retriever → contextbuilder →
// Cache → Dispatcher → sourcebuilder → aggregates.
type Engine struct {
	retriever Retriever
	dispatch  Dispatcher
	cache     Cache
	estimator contextbuilder.TokenEstimator

	defaultTopK         int
	defaultMaxTokens    int
	defaultUseCitations bool
	snippetLength       int
	stopwords           []string
}

// New builds an Engine. estimator may be nil to use the default
// chars/4 heuristic.
func New(retriever Retriever, dispatch Dispatcher, cache Cache, estimator contextbuilder.TokenEstimator, defaultTopK, defaultMaxTokens, snippetLength int, defaultUseCitations bool, stopwords []string) *Engine {
	return &Engine{
		retriever:           retriever,
		dispatch:            dispatch,
		cache:               cache,
		estimator:           estimator,
		defaultTopK:         defaultTopK,
		defaultMaxTokens:    defaultMaxTokens,
		snippetLength:       snippetLength,
		defaultUseCitations: defaultUseCitations,
		stopwords:           stopwords,
	}
}

// Query runs the end-to-end pipeline for a single question, returning
// a populated QueryResult. An empty retrieval set is a valid,
// successful outcome, not an error: the envelope carries
// success=true with an "information not available" answer.
func (e *Engine) Query(ctx context.Context, question string, opts Options) model.QueryResult {
	start := time.Now()

	topK := opts.TopK
	if topK <= 0 {
		topK = e.defaultTopK
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = e.defaultMaxTokens
	}
	useCitations := e.defaultUseCitations
	if opts.UseCitations != nil {
		useCitations = *opts.UseCitations
	}

	slog.Debug("orchestrator: retrieving documents", "top_k", topK)
	docs, err := e.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		slog.Error("orchestrator: retrieval failed", "error", err)
		return e.failureEnvelope(rerr.RetrieverUnavailable, "retrieval failed", err, start)
	}

	if len(docs) == 0 {
		slog.Info("orchestrator: no documents retrieved", "question", question)
		return model.QueryResult{
			Success:     true,
			Answer:      noSourcesAnswer,
			Sources:     []model.StructuredSource{},
			CitationMap: model.CitationMap{},
			LatencyMs:   time.Since(start).Milliseconds(),
			Metadata: model.ResponseMetadata{
				UseCitations: useCitations,
			},
		}
	}

	built := contextbuilder.Build(question, docs, maxTokens, useCitations, e.estimator)

	cacheKey := respcache.Key(question, topK, useCitations)
	computed := false
	result, err := e.cache.GetOrCompute(ctx, cacheKey, func(ctx context.Context) (model.QueryResult, error) {
		computed = true
		return e.generate(ctx, question, built, useCitations, start)
	})
	if err != nil {
		kind := rerr.KindOf(err)
		if kind == "" {
			kind = rerr.ModelUnavailable
		}
		slog.Error("orchestrator: generation failed", "error", err, "kind", kind)
		return e.failureEnvelope(kind, "generation failed", err, start)
	}

	// A cached result was computed for a (possibly) different question
	// at a different time; restamp latency and document count for this
	// call so the envelope reflects what actually happened here. When
	// this call did not run generation itself, ModelUsed reports "cache".
	if !computed {
		result.ModelUsed = "cache"
	}
	result.LatencyMs = time.Since(start).Milliseconds()
	result.RetrievedDocuments = len(docs)
	return result
}

func (e *Engine) generate(ctx context.Context, question string, built contextbuilder.Result, useCitations bool, start time.Time) (model.QueryResult, error) {
	answer, modelUsed, err := e.dispatch.Dispatch(ctx, built.SystemPrompt, built.UserPrompt)
	if err != nil {
		return model.QueryResult{}, fmt.Errorf("orchestrator.generate: %w", err)
	}

	now := time.Now()
	sources := sourcebuilder.Build(question, built.Included, built.CitationMap, e.snippetLength, e.stopwords, now)

	confidence, overallFreshness := aggregate(sources)

	citationMap := built.CitationMap
	if citationMap == nil {
		citationMap = citation.BuildMap(built.Included)
	}

	return model.QueryResult{
		Success:       true,
		Answer:        answer,
		Sources:       sources,
		CitationMap:   citationMap,
		ModelUsed:     modelUsed,
		ContextTokens: built.ContextTokens,
		TotalTokens:   built.ContextTokens + e.estimateTokens(answer),
		LatencyMs:     time.Since(start).Milliseconds(),
		Metadata: model.ResponseMetadata{
			Confidence:     confidence,
			FreshnessScore: overallFreshness,
			CitationCount:  len(citationMap),
			UseCitations:   useCitations,
		},
	}, nil
}

func (e *Engine) estimateTokens(text string) int {
	est := e.estimator
	if est == nil {
		est = contextbuilder.CharEstimator{}
	}
	return est.Estimate(text)
}

// aggregate computes confidence = Σ(relevance·freshness)/Σ(freshness)
// (0 if no sources have freshness weight) and overall_freshness =
// mean(freshness_i).
func aggregate(sources []model.StructuredSource) (confidence, overallFreshness float64) {
	if len(sources) == 0 {
		return 0, 0
	}

	scores := make([]float64, len(sources))
	var weightedSum, freshnessSum float64
	for i, s := range sources {
		f := s.Metadata.FreshnessScore
		scores[i] = f
		weightedSum += s.RelevanceScore * f
		freshnessSum += f
	}

	if freshnessSum > 0 {
		confidence = weightedSum / freshnessSum
	}
	overallFreshness = freshness.Aggregate(scores)
	return confidence, overallFreshness
}

func (e *Engine) failureEnvelope(kind rerr.Kind, message string, cause error, start time.Time) model.QueryResult {
	return model.QueryResult{
		Success:   false,
		LatencyMs: time.Since(start).Milliseconds(),
		Error: &model.QueryError{
			Kind:    string(kind),
			Message: fmt.Sprintf("%s: %v", message, cause),
		},
	}
}

