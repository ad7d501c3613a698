// benchmark-dispatcher drives synthetic concurrent load through the
// model dispatcher's fallback chain and reports each model's observed
// health, error rate, and latency distribution as a markdown table.
//
// Usage:
//
//	GOOGLE_CLOUD_PROJECT=kenyalaw-rag-prod go run ./cmd/benchmark-dispatcher
//
// Results are printed as a markdown table to stdout. Redirect to file
// as needed.
package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/connexus-ai/kenyalaw-rag/internal/dispatcher"
	"github.com/connexus-ai/kenyalaw-rag/internal/gcpclient"
)

var queries = []string{
	"What is the notice period for employment termination in Kenya?",
	"What does Article 43 of the Constitution guarantee?",
	"How is land ownership registered under the Land Act?",
	"What is the test for reasonableness in contract law?",
	"Summarize the Labour Relations Act's provisions on collective bargaining",
	"What is the limitation period for filing a civil suit?",
	"What damages are available for wrongful dismissal?",
	"What does the Evidence Act say about admissibility of electronic records?",
}

const systemPrompt = `You are a legal research assistant. Answer questions about Kenyan law concisely, under 150 words.`

// callResult records one dispatch attempt's outcome against the chain.
type callResult struct {
	ModelUsed string
	LatencyMs int64
	Err       error
}

func main() {
	project := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if project == "" {
		project = "kenyalaw-rag-dev"
	}
	location := os.Getenv("VERTEX_AI_LOCATION")
	if location == "" {
		location = "us-east4"
	}
	concurrency := 8
	rounds := 20

	ctx := context.Background()
	disp := dispatcher.New(dispatcher.Config{
		MaxRetries:        1,
		PerAttemptTimeout: 20 * time.Second,
	})

	primary, err := gcpclient.NewGenAIAdapter(ctx, project, location, "gemini-2.5-flash")
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARN: primary Vertex AI client unavailable: %v\n", err)
	} else {
		disp.Register("vertex-primary", 0, primary)
	}

	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		disp.Register("openrouter-fallback", 1, gcpclient.NewBYOLLMClient(key, "https://openrouter.ai/api/v1", "google/gemini-2.5-flash"))
	} else {
		fmt.Fprintln(os.Stderr, "WARN: OPENROUTER_API_KEY not set — fallback chain has only one node")
	}

	fmt.Fprintf(os.Stderr, "Benchmark: %d rounds x %d concurrent callers = %d dispatches\n\n", rounds, concurrency, rounds*concurrency)

	results := runLoad(ctx, disp, rounds, concurrency)
	printReport(disp, results)
}

func runLoad(ctx context.Context, disp *dispatcher.Dispatcher, rounds, concurrency int) []callResult {
	var mu sync.Mutex
	var results []callResult
	var wg sync.WaitGroup

	sem := make(chan struct{}, concurrency)
	for i := 0; i < rounds*concurrency; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			q := queries[rand.Intn(len(queries))]
			start := time.Now()
			_, modelUsed, err := disp.Dispatch(ctx, systemPrompt, q)
			elapsed := time.Since(start)

			mu.Lock()
			results = append(results, callResult{ModelUsed: modelUsed, LatencyMs: elapsed.Milliseconds(), Err: err})
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	return results
}

func printReport(disp *dispatcher.Dispatcher, results []callResult) {
	now := time.Now().Format("2006-01-02 15:04 MST")
	snapshot := disp.Snapshot()

	fmt.Println("# Model Dispatcher Benchmark")
	fmt.Println()
	fmt.Printf("**Date:** %s\n", now)
	fmt.Printf("**Dispatches:** %d\n", len(results))
	fmt.Println()
	fmt.Println("---")
	fmt.Println()

	fmt.Println("## Per-Model Health")
	fmt.Println()
	fmt.Println("| Model | Status | Error Rate | Avg Latency | Consecutive Errors | Last Error |")
	fmt.Println("|-------|--------|------------|-------------|---------------------|------------|")
	for _, e := range snapshot.Entries {
		lastErr := e.LastError
		if lastErr == "" {
			lastErr = "—"
		}
		fmt.Printf("| %s | %s | %.1f%% | %dms | %d | %s |\n",
			e.ID, e.Status, e.ErrorRate*100, e.AvgLatencyMs, e.ConsecutiveErr, lastErr)
	}
	fmt.Println()

	fmt.Println("## Dispatch Outcomes")
	fmt.Println()
	byModel := map[string][]int64{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		byModel[r.ModelUsed] = append(byModel[r.ModelUsed], r.LatencyMs)
	}
	fmt.Println("| Model | Calls Served | Avg Latency | P50 | P95 |")
	fmt.Println("|-------|--------------|-------------|-----|-----|")
	for model, latencies := range byModel {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		fmt.Printf("| %s | %d | %dms | %dms | %dms |\n",
			model, len(latencies), avg(latencies), percentile(latencies, 50), percentile(latencies, 95))
	}
	fmt.Printf("\n**Total dispatch failures (all models exhausted):** %d/%d\n", errCount, len(results))
}

func avg(vals []int64) int64 {
	if len(vals) == 0 {
		return 0
	}
	var sum int64
	for _, v := range vals {
		sum += v
	}
	return sum / int64(len(vals))
}

func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
