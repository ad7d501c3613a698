package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/connexus-ai/kenyalaw-rag/internal/model"
	"github.com/connexus-ai/kenyalaw-rag/internal/rerr"
)

type fakeRetriever struct {
	docs []model.Document
	err  error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, topK int) ([]model.Document, error) {
	return f.docs, f.err
}

type fakeDispatcher struct {
	answer    string
	modelUsed string
	err       error
	calls     int
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, systemPrompt, userPrompt string) (string, string, error) {
	f.calls++
	return f.answer, f.modelUsed, f.err
}

// passthroughCache never hits: it always invokes compute. Sufficient
// for exercising Engine.Query without a real respcache instance.
type passthroughCache struct {
	computeCalls int
}

func (c *passthroughCache) GetOrCompute(ctx context.Context, key string, compute func(context.Context) (model.QueryResult, error)) (model.QueryResult, error) {
	c.computeCalls++
	return compute(ctx)
}

type staticCache struct {
	result model.QueryResult
}

func (c *staticCache) GetOrCompute(ctx context.Context, key string, compute func(context.Context) (model.QueryResult, error)) (model.QueryResult, error) {
	return c.result, nil
}

func date(daysAgo int) *time.Time {
	t := time.Now().Add(-time.Duration(daysAgo) * 24 * time.Hour)
	return &t
}

func TestQuery_EmptyRetrievalIsValidNoSourcesResult(t *testing.T) {
	e := New(&fakeRetriever{docs: nil}, &fakeDispatcher{}, &passthroughCache{}, nil, 5, 4000, 200, true, nil)
	res := e.Query(context.Background(), "what is the notice period?", Options{})

	if !res.Success {
		t.Fatalf("Success = false, want true")
	}
	if res.Answer != noSourcesAnswer {
		t.Errorf("Answer = %q, want %q", res.Answer, noSourcesAnswer)
	}
	if len(res.Sources) != 0 || len(res.CitationMap) != 0 {
		t.Errorf("expected empty sources/citation_map, got %+v / %+v", res.Sources, res.CitationMap)
	}
	if res.Metadata.Confidence != 0 {
		t.Errorf("Confidence = %f, want 0", res.Metadata.Confidence)
	}
}

func TestQuery_RetrievalErrorProducesFailureEnvelope(t *testing.T) {
	e := New(&fakeRetriever{err: errors.New("db down")}, &fakeDispatcher{}, &passthroughCache{}, nil, 5, 4000, 200, true, nil)
	res := e.Query(context.Background(), "question", Options{})

	if res.Success {
		t.Fatalf("Success = true, want false")
	}
	if res.Error == nil || res.Error.Kind != string(rerr.RetrieverUnavailable) {
		t.Errorf("Error = %+v, want Kind %s", res.Error, rerr.RetrieverUnavailable)
	}
}

func TestQuery_HappyPathComputesAggregates(t *testing.T) {
	docs := []model.Document{
		{UUID: "U1", Content: "Section 35 governs notice periods.", Similarity: 0.95, Metadata: model.DocumentMetadata{
			Title: "Employment Act 2007, Section 35", DocumentType: model.DocLegislation, CrawledAt: date(10),
		}},
		{UUID: "U2", Content: "The court held notice must be reasonable.", Similarity: 0.82, Metadata: model.DocumentMetadata{
			Title: "ABC Ltd v XYZ [2024] eKLR", DocumentType: model.DocJudgment, CrawledAt: date(60),
		}},
		{UUID: "U3", Content: "Labour relations generally.", Similarity: 0.71, Metadata: model.DocumentMetadata{
			Title: "Labour Relations Act", DocumentType: model.DocLegislation, CrawledAt: date(400),
		}},
	}
	dispatch := &fakeDispatcher{answer: "Notice period is 28 days [1].", modelUsed: "vertex-primary"}
	e := New(&fakeRetriever{docs: docs}, dispatch, &passthroughCache{}, nil, 5, 4000, 200, true, nil)

	res := e.Query(context.Background(), "What is the notice period for employment termination in Kenya?", Options{})

	if !res.Success {
		t.Fatalf("Success = false, want true: %+v", res.Error)
	}
	if res.ModelUsed != "vertex-primary" {
		t.Errorf("ModelUsed = %q", res.ModelUsed)
	}
	if len(res.CitationMap) != 3 {
		t.Fatalf("len(CitationMap) = %d, want 3", len(res.CitationMap))
	}
	if res.Metadata.Confidence < 0.80 || res.Metadata.Confidence > 0.87 {
		t.Errorf("Confidence = %f, want ~0.838", res.Metadata.Confidence)
	}
	if res.Metadata.FreshnessScore < 0.80 || res.Metadata.FreshnessScore > 0.86 {
		t.Errorf("FreshnessScore = %f, want ~0.833", res.Metadata.FreshnessScore)
	}
	if res.RetrievedDocuments != 3 {
		t.Errorf("RetrievedDocuments = %d, want 3", res.RetrievedDocuments)
	}
}

func TestQuery_DispatchErrorPropagatesAsModelUnavailable(t *testing.T) {
	docs := []model.Document{{UUID: "U1", Content: "text", Metadata: model.DocumentMetadata{Title: "Doc"}}}
	dispatch := &fakeDispatcher{err: rerr.New(rerr.AllModelsFailed, "all models failed")}
	e := New(&fakeRetriever{docs: docs}, dispatch, &passthroughCache{}, nil, 5, 4000, 200, true, nil)

	res := e.Query(context.Background(), "question", Options{})

	if res.Success {
		t.Fatalf("Success = true, want false")
	}
	if res.Error == nil || res.Error.Kind != string(rerr.AllModelsFailed) {
		t.Errorf("Error = %+v, want Kind %s", res.Error, rerr.AllModelsFailed)
	}
}

func TestQuery_UsesCacheResultWhenPresent(t *testing.T) {
	docs := []model.Document{{UUID: "U1", Content: "text", Metadata: model.DocumentMetadata{Title: "Doc"}}}
	cached := model.QueryResult{Success: true, Answer: "cached answer", ModelUsed: "cached-model"}
	dispatch := &fakeDispatcher{answer: "fresh answer"}
	e := New(&fakeRetriever{docs: docs}, dispatch, &staticCache{result: cached}, nil, 5, 4000, 200, true, nil)

	res := e.Query(context.Background(), "question", Options{})

	if res.Answer != "cached answer" {
		t.Errorf("Answer = %q, want cached answer", res.Answer)
	}
	if res.ModelUsed != "cache" {
		t.Errorf("ModelUsed = %q, want %q on a cache hit", res.ModelUsed, "cache")
	}
	if dispatch.calls != 0 {
		t.Errorf("dispatch.calls = %d, want 0 (cache should have short-circuited)", dispatch.calls)
	}
	if res.RetrievedDocuments != 1 {
		t.Errorf("RetrievedDocuments = %d, want 1 (restamped post-cache)", res.RetrievedDocuments)
	}
}

func TestQuery_DefaultsAppliedWhenOptionsZero(t *testing.T) {
	e := New(&fakeRetriever{docs: nil}, &fakeDispatcher{}, &passthroughCache{}, nil, 7, 4000, 200, false, nil)
	res := e.Query(context.Background(), "question", Options{})

	if res.Metadata.UseCitations {
		t.Errorf("UseCitations = true, want false (engine default)")
	}
}

func TestQuery_OptionsOverrideUseCitations(t *testing.T) {
	docs := []model.Document{{UUID: "U1", Content: "text", Metadata: model.DocumentMetadata{Title: "Doc"}}}
	e := New(&fakeRetriever{docs: docs}, &fakeDispatcher{answer: "ans"}, &passthroughCache{}, nil, 5, 4000, 200, false, nil)

	enabled := true
	res := e.Query(context.Background(), "question", Options{UseCitations: &enabled})

	if !res.Metadata.UseCitations {
		t.Errorf("UseCitations = false, want true (option override)")
	}
}
