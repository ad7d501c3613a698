package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/connexus-ai/kenyalaw-rag/internal/model"
	"github.com/connexus-ai/kenyalaw-rag/internal/orchestrator"
)

// Orchestrator is the subset of orchestrator.Engine the query handler
// needs.
type Orchestrator interface {
	Query(ctx context.Context, question string, opts orchestrator.Options) model.QueryResult
}

type queryRequest struct {
	Question     string `json:"question"`
	TopK         int    `json:"top_k"`
	MaxTokens    int    `json:"max_tokens"`
	UseCitations *bool  `json:"use_citations"`
}

// Query returns a handler for POST /api/query: runs the full RAG
// pipeline for a single question and returns the QueryResult envelope
// as JSON. A pipeline-level failure (retriever down, all models
// failed) is still reported with HTTP 200 and success=false in the
// body — the envelope itself is the error channel, matching how
// QueryResult.Error already carries the taxonomy.
func Query(engine Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Question == "" {
			http.Error(w, "question is required", http.StatusBadRequest)
			return
		}

		result := engine.Query(r.Context(), req.Question, orchestrator.Options{
			TopK:         req.TopK,
			MaxTokens:    req.MaxTokens,
			UseCitations: req.UseCitations,
		})

		w.Header().Set("Content-Type", "application/json")
		if !result.Success {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(result)
	}
}
