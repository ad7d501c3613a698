// Package config loads RAG pipeline configuration from environment
// variables, following the same load-once, fail-fast-on-required-vars
// convention the rest of the stack uses.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all pipeline configuration loaded from the environment.
// Immutable after Load() returns.
type Config struct {
	Port        int
	Environment string
	FrontendURL string

	DatabaseURL      string
	DatabaseMaxConns int

	GCPProject        string
	VertexAILocation  string
	VertexAIModel     string
	EmbeddingLocation string
	EmbeddingModel    string

	// Fallback chain, ordered highest to lowest priority. DefaultModel
	// is always priority 0; FallbackModels fill priorities 1..N.
	DefaultModel   string
	FallbackModels []string

	ModelTimeoutSeconds       int
	MaxModelRetries           int
	HealthCheckIntervalSecond int
	ErrorRateThreshold        float64
	LatencyThresholdMs        int64
	WindowSize                int

	CacheTTLSeconds int
	CacheMaxEntries int

	TopK             int
	MaxContextTokens int
	EnableCitations  bool
	SnippetLength    int
	Stopwords        []string

	// TiktokenModel, when set, selects a tiktoken-go encoding for token
	// budget arithmetic instead of the chars/4 estimator.
	TiktokenModel string

	RedisURL string
}

// Load reads configuration from environment variables. DATABASE_URL and
// GOOGLE_CLOUD_PROJECT are required; everything else has a default.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("config.Load: DATABASE_URL is required")
	}

	gcpProject := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if gcpProject == "" {
		return nil, fmt.Errorf("config.Load: GOOGLE_CLOUD_PROJECT is required")
	}

	cfg := &Config{
		Port:        envInt("PORT", 8080),
		Environment: envStr("ENVIRONMENT", "development"),
		FrontendURL: envStr("FRONTEND_URL", "http://localhost:3000"),

		DatabaseURL:      dbURL,
		DatabaseMaxConns: envInt("DATABASE_MAX_CONNS", 25),

		GCPProject:        gcpProject,
		VertexAILocation:  envStr("VERTEX_AI_LOCATION", "global"),
		VertexAIModel:     envStr("VERTEX_AI_MODEL", "gemini-2.5-pro"),
		EmbeddingLocation: envStr("VERTEX_AI_EMBEDDING_LOCATION", envStr("GCP_REGION", "us-east4")),
		EmbeddingModel:    envStr("VERTEX_AI_EMBEDDING_MODEL", "text-embedding-004"),

		DefaultModel:   envStr("DEFAULT_MODEL", "vertex-primary"),
		FallbackModels: envList("FALLBACK_MODELS", []string{"vertex-secondary"}),

		ModelTimeoutSeconds:       envInt("MODEL_TIMEOUT_SECONDS", 20),
		MaxModelRetries:           envInt("MAX_MODEL_RETRIES", 2),
		HealthCheckIntervalSecond: envInt("HEALTH_CHECK_INTERVAL_SECONDS", 30),
		ErrorRateThreshold:        envFloat("ERROR_RATE_THRESHOLD", 0.5),
		LatencyThresholdMs:        int64(envInt("LATENCY_THRESHOLD_MS", 8000)),
		WindowSize:                envInt("WINDOW_SIZE", 100),

		CacheTTLSeconds: envInt("CACHE_TTL_SECONDS", 3600),
		CacheMaxEntries: envInt("CACHE_MAX_ENTRIES", 1000),

		TopK:             envInt("TOP_K", 5),
		MaxContextTokens: envInt("MAX_CONTEXT_TOKENS", 4000),
		EnableCitations:  envBool("ENABLE_CITATIONS", true),
		SnippetLength:    envInt("SNIPPET_LENGTH", 200),
		Stopwords: envList("STOPWORDS", []string{
			"the", "and", "for", "with", "that", "this", "from", "what",
			"where", "when", "which", "are", "is", "of", "to", "in", "on", "a",
		}),

		TiktokenModel: envStr("TIKTOKEN_MODEL", ""),
		RedisURL:      envStr("REDIS_URL", ""),
	}

	if cfg.Environment != "development" && cfg.ErrorRateThreshold <= 0 {
		return nil, fmt.Errorf("config.Load: ERROR_RATE_THRESHOLD must be > 0 in %s environment", cfg.Environment)
	}

	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// envList splits a comma-separated environment variable into a
// trimmed, non-empty slice, falling back when unset.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
