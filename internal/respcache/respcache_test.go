package respcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/connexus-ai/kenyalaw-rag/internal/model"
)

func TestSetGet_RoundTrip(t *testing.T) {
	c := New(time.Minute, 10)
	defer c.Stop()

	key := Key("what is adverse possession", 5, true)
	c.Set(key, model.QueryResult{Answer: "some answer"})

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Answer != "some answer" {
		t.Errorf("Answer = %q, want %q", got.Answer, "some answer")
	}
}

func TestGet_HitStampsModelUsedAsCache(t *testing.T) {
	c := New(time.Minute, 10)
	defer c.Stop()

	key := Key("what is adverse possession", 5, true)
	c.Set(key, model.QueryResult{Answer: "some answer", ModelUsed: "vertex-primary"})

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.ModelUsed != "cache" {
		t.Errorf("ModelUsed = %q, want %q", got.ModelUsed, "cache")
	}
}

func TestGetOrCompute_CacheHitStampsModelUsedAsCache(t *testing.T) {
	c := New(time.Minute, 10)
	defer c.Stop()

	c.Set("key", model.QueryResult{Answer: "cached", ModelUsed: "vertex-primary"})

	r, err := c.GetOrCompute(context.Background(), "key", func(ctx context.Context) (model.QueryResult, error) {
		return model.QueryResult{Answer: "fresh", ModelUsed: "vertex-primary"}, nil
	})
	if err != nil {
		t.Fatalf("GetOrCompute error: %v", err)
	}
	if r.ModelUsed != "cache" {
		t.Errorf("ModelUsed = %q, want %q", r.ModelUsed, "cache")
	}
}

func TestKey_NormalizesWhitespaceAndCase(t *testing.T) {
	a := Key("  What Is Adverse Possession  ", 5, true)
	b := Key("what is adverse possession", 5, true)
	if a != b {
		t.Errorf("Key() not normalized: %q != %q", a, b)
	}
}

func TestKey_DiffersByParams(t *testing.T) {
	a := Key("query", 5, true)
	b := Key("query", 5, false)
	if a == b {
		t.Error("Key() should differ when useCitations differs")
	}
}

func TestGet_ExpiredEntry(t *testing.T) {
	c := New(time.Millisecond, 10)
	defer c.Stop()

	key := Key("query", 5, true)
	c.Set(key, model.QueryResult{Answer: "x"})
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get(key); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestEviction_LRU(t *testing.T) {
	c := New(time.Minute, 2)
	defer c.Stop()

	c.Set("a", model.QueryResult{Answer: "a"})
	c.Set("b", model.QueryResult{Answer: "b"})
	c.Get("a") // touch a so b becomes LRU
	c.Set("c", model.QueryResult{Answer: "c"})

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted as least-recently-used")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to survive eviction")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be present")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestGetOrCompute_DeduplicatesConcurrentMisses(t *testing.T) {
	c := New(time.Minute, 10)
	defer c.Stop()

	var calls int32
	compute := func(ctx context.Context) (model.QueryResult, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return model.QueryResult{Answer: "computed"}, nil
	}

	var wg sync.WaitGroup
	results := make([]model.QueryResult, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := c.GetOrCompute(context.Background(), "shared-key", compute)
			if err != nil {
				t.Errorf("GetOrCompute error: %v", err)
			}
			results[i] = r
		}(i)
	}
	wg.Wait()

	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}
	for _, r := range results {
		if r.Answer != "computed" {
			t.Errorf("Answer = %q, want %q", r.Answer, "computed")
		}
	}
}

func TestGetOrCompute_CacheHitSkipsCompute(t *testing.T) {
	c := New(time.Minute, 10)
	defer c.Stop()

	c.Set("key", model.QueryResult{Answer: "cached"})

	called := false
	r, err := c.GetOrCompute(context.Background(), "key", func(ctx context.Context) (model.QueryResult, error) {
		called = true
		return model.QueryResult{Answer: "fresh"}, nil
	})
	if err != nil {
		t.Fatalf("GetOrCompute error: %v", err)
	}
	if called {
		t.Error("compute should not be called on cache hit")
	}
	if r.Answer != "cached" {
		t.Errorf("Answer = %q, want %q", r.Answer, "cached")
	}
}
