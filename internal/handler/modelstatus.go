package handler

import (
	"encoding/json"
	"net/http"

	"github.com/connexus-ai/kenyalaw-rag/internal/model"
)

// StatusAPI is the subset of statusapi.Service the model-status
// handlers need.
type StatusAPI interface {
	Status() model.ModelStatusSnapshot
	Reload(id string) bool
}

// ModelStatus returns a handler for GET /api/models/status.
func ModelStatus(s StatusAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.Status())
	}
}

// ModelReload returns a handler for POST /api/models/{id}/reload. id
// is read from the chi URL param named "id".
func ModelReload(s StatusAPI, idParam func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := idParam(r)
		if id == "" {
			http.Error(w, "model id is required", http.StatusBadRequest)
			return
		}
		if !s.Reload(id) {
			http.Error(w, "unknown model id", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": id, "status": "reloading"})
	}
}
