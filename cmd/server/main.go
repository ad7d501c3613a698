package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/connexus-ai/kenyalaw-rag/internal/cache"
	"github.com/connexus-ai/kenyalaw-rag/internal/config"
	"github.com/connexus-ai/kenyalaw-rag/internal/contextbuilder"
	"github.com/connexus-ai/kenyalaw-rag/internal/dispatcher"
	"github.com/connexus-ai/kenyalaw-rag/internal/gcpclient"
	"github.com/connexus-ai/kenyalaw-rag/internal/middleware"
	"github.com/connexus-ai/kenyalaw-rag/internal/orchestrator"
	"github.com/connexus-ai/kenyalaw-rag/internal/repository"
	"github.com/connexus-ai/kenyalaw-rag/internal/respcache"
	"github.com/connexus-ai/kenyalaw-rag/internal/retrieval"
	"github.com/connexus-ai/kenyalaw-rag/internal/router"
	"github.com/connexus-ai/kenyalaw-rag/internal/statusapi"
)

const version = "0.1.0"

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("main: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return fmt.Errorf("main: connect database: %w", err)
	}
	defer pool.Close()

	docRepo := repository.NewDocumentRepo(pool)

	embedAdapter, err := gcpclient.NewEmbeddingAdapter(ctx, cfg.GCPProject, cfg.EmbeddingLocation, cfg.EmbeddingModel)
	if err != nil {
		return fmt.Errorf("main: embedding adapter: %w", err)
	}
	embedCache := cache.NewEmbeddingCache(cache.DefaultEmbeddingTTL())
	defer embedCache.Stop()
	if cfg.RedisURL != "" {
		remote, err := cache.NewRedisBackend(cfg.RedisURL, cache.DefaultEmbeddingTTL())
		if err != nil {
			slog.Warn("main: redis embedding tier unavailable, using in-memory cache only", "error", err)
		} else {
			embedCache.SetRemote(remote)
			defer remote.Close()
		}
	}
	cachedEmbedder := retrieval.NewCachingEmbedder(embedAdapter, embedCache)

	retriever := retrieval.New(cachedEmbedder, docRepo)
	retriever.SetFullText(docRepo)

	disp := dispatcher.New(dispatcher.Config{
		MaxRetries:         cfg.MaxModelRetries,
		PerAttemptTimeout:  time.Duration(cfg.ModelTimeoutSeconds) * time.Second,
		ErrorRateThreshold: cfg.ErrorRateThreshold,
		WindowSize:         cfg.WindowSize,
		LatencyThresholdMs: cfg.LatencyThresholdMs,
	})
	if err := registerModels(ctx, disp, cfg); err != nil {
		return fmt.Errorf("main: register models: %w", err)
	}

	respCache := respcache.New(time.Duration(cfg.CacheTTLSeconds)*time.Second, cfg.CacheMaxEntries)
	defer respCache.Stop()

	var estimator contextbuilder.TokenEstimator
	if cfg.TiktokenModel != "" {
		est, err := contextbuilder.NewTiktokenEstimator(cfg.TiktokenModel)
		if err != nil {
			slog.Warn("main: tiktoken estimator unavailable, falling back to chars/4", "error", err)
		} else {
			estimator = est
		}
	}

	engine := orchestrator.New(retriever, disp, respCache, estimator,
		cfg.TopK, cfg.MaxContextTokens, cfg.SnippetLength, cfg.EnableCitations, cfg.Stopwords)
	status := statusapi.New(disp)

	reg := prometheus.NewRegistry()
	metrics := middleware.NewMetrics(reg)

	r := router.New(&router.Dependencies{
		DB:           pool,
		FrontendURL:  cfg.FrontendURL,
		Version:      version,
		Metrics:      metrics,
		MetricsReg:   reg,
		Orchestrator: engine,
		StatusAPI:    status,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "version", version, "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("main: server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("main: graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// registerModels wires the default model plus its fallback chain into
// disp, in priority order. Every entry is a Vertex AI Gemini deployment
// except for entries with a <ID>_API_KEY env var (see envKeyFor; with
// optional <ID>_BASE_URL and <ID>_MODEL), which are wired to the
// OpenAI-compatible BYOLLM client instead.
func registerModels(ctx context.Context, disp *dispatcher.Dispatcher, cfg *config.Config) error {
	chain := append([]string{cfg.DefaultModel}, cfg.FallbackModels...)
	for priority, id := range chain {
		client, err := buildModelClient(ctx, id, cfg)
		if err != nil {
			return fmt.Errorf("model %q: %w", id, err)
		}
		disp.Register(id, priority, client)
	}
	return nil
}

func buildModelClient(ctx context.Context, id string, cfg *config.Config) (dispatcher.ModelClient, error) {
	if apiKey := os.Getenv(envKeyFor(id, "API_KEY")); apiKey != "" {
		baseURL := os.Getenv(envKeyFor(id, "BASE_URL"))
		model := os.Getenv(envKeyFor(id, "MODEL"))
		if model == "" {
			model = cfg.VertexAIModel
		}
		return gcpclient.NewBYOLLMClient(apiKey, baseURL, model), nil
	}
	return gcpclient.NewGenAIAdapter(ctx, cfg.GCPProject, cfg.VertexAILocation, cfg.VertexAIModel)
}

// envKeyFor builds a model-scoped env var name, e.g. id="vertex-secondary"
// suffix="API_KEY" -> "VERTEX_SECONDARY_API_KEY".
func envKeyFor(id, suffix string) string {
	key := make([]byte, 0, len(id)+len(suffix)+1)
	for _, r := range id {
		if r == '-' {
			r = '_'
		}
		if r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		key = append(key, byte(r))
	}
	key = append(key, '_')
	key = append(key, suffix...)
	return string(key)
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
